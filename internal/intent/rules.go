package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/zulandar/productif/internal/matcher"
)

// rule maps normalized key phrases to a category. Rules are evaluated in
// order and the first rule with a matching phrase wins. Prefix rules only
// match at the start of the message.
type rule struct {
	category Category
	prefix   bool
	phrases  []string
}

var rules = []rule{
	{category: CompleteTask, phrases: []string{"marque", "coche", "j ai fini", "j ai termine", "tache terminee", "c est fait", "mark as done"}},
	{category: CreateTask, prefix: true, phrases: []string{"ajoute", "ajouter", "cree", "creer", "nouvelle tache", "nouvelles taches", "rappelle moi", "add", "add task"}},
	{category: HowTo, phrases: []string{"comment faire", "comment je", "comment on", "how to", "how do i"}},
	{category: PlanTomorrow, phrases: []string{"planifier demain", "planifie demain", "organiser demain", "organise demain", "planifier ma journee", "plan tomorrow"}},
	{category: StartDeepWork, phrases: []string{"deep work", "focus", "me concentrer", "je commence a travailler", "session de travail"}},
	{category: ListTasks, phrases: []string{"mes taches", "ma liste", "qu est ce que j ai", "quoi faire", "faire quoi", "a faire aujourd hui", "a faire demain", "programme", "my tasks"}},
	{category: TrackHabit, phrases: []string{"habitude", "habitudes", "j ai medite", "j ai fait du sport", "j ai fait mon", "j ai lu", "habit"}},
	{category: Statistics, phrases: []string{"statistiques", "stats", "bilan", "progression", "cette semaine"}},
	{category: StatusCheck, phrases: []string{"ou j en suis", "avancement", "statut", "comment ca avance", "ma journee"}},
	{category: Explanation, phrases: []string{"explique", "c est quoi", "qu est ce que", "pourquoi"}},
	{category: AdviceRequest, phrases: []string{"conseil", "conseils", "astuce", "astuces", "recommande", "recommandes", "advice"}},
	{category: HelpRequest, phrases: []string{"aide", "aide moi", "help", "je suis perdu"}},
}

const (
	greetingReply = "Salut ! 👋 Je suis ton assistant Productif.io. Tu peux m'écrire « ajoute réviser les maths », « mes tâches », « je commence à travailler » ou « planifier demain »."
	thanksReply   = "Avec plaisir ! 😊 Je suis là si tu as besoin."
)

var smallTalk = map[string]string{
	"bonjour":        greetingReply,
	"salut":          greetingReply,
	"hello":          greetingReply,
	"coucou":         greetingReply,
	"hey":            greetingReply,
	"merci":          thanksReply,
	"merci beaucoup": thanksReply,
	"thanks":         thanksReply,
	"ok":             "👍",
	"super":          "👍",
	"cool":           "👍",
}

var (
	createPrefixRe = regexp.MustCompile(`(?i)^\s*(?:📝\s*)?(?:ajoute[rz]?|cr[ée]{1,2}[rz]?|nouvelles?\s+t[âa]ches?|rappelle[- ]moi\s+(?:de|d')|add(?:\s+task)?)(?:\s*:\s*|\s+|$)(?:(?:une|la|les|des)\s+t[âa]ches?\s*:?\s*|t[âa]ches?\s*:?\s*)?`)
	listSplitRe    = regexp.MustCompile(`\s*(?:,|;|\n|\s+et\s+|\s+puis\s+)\s*`)
	dateSuffixRe   = regexp.MustCompile(`(?i)\s+(?:pour\s+)?(?:demain|aujourd['’]?hui|ce\s+soir)\s*$`)
	dateWordRe     = regexp.MustCompile(`\b(?:apres demain|demain|aujourd hui|aujourdhui|ce soir|lundi|mardi|mercredi|jeudi|vendredi|samedi|dimanche)\b`)

	completeRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)marque[rz]?\s+(?:la\s+)?t[âa]che\s+(.+?)\s+comme\s+`),
		regexp.MustCompile(`(?i)coche[rz]?\s+(?:la\s+t[âa]che\s+)?(.+)`),
		regexp.MustCompile(`(?i)j['’ ]ai\s+(?:fini|termin[ée])\s+(?:la\s+t[âa]che\s+)?(?:de\s+|d'|le\s+|la\s+|les\s+|mon\s+|ma\s+|mes\s+)?(.+)`),
		regexp.MustCompile(`(?i)t[âa]che\s+(.+?)\s+(?:termin[ée]e?|faite?)`),
	}
	habitRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)habitude\s+(?:de\s+|d')?(.+)`),
		regexp.MustCompile(`(?i)j['’ ]ai\s+(?:fait\s+)?(?:du\s+|de\s+la\s+|mon\s+|ma\s+)?(.+)`),
	}
)

// Rules is a deterministic keyword classifier. It makes no network calls.
type Rules struct{}

// NewRules creates a rule-based classifier.
func NewRules() *Rules { return &Rules{} }

// Classify implements Classifier.
func (Rules) Classify(_ context.Context, text string) Intent {
	norm := matcher.Normalize(text)
	in := Intent{
		EmotionalContext: detectEmotion(norm),
		Parameters:       Parameters{Urgency: detectUrgency(norm)},
		Entities:         Entities{Dates: detectDates(norm)},
	}

	if reply, ok := smallTalk[norm]; ok {
		in.Category = Conversation
		in.Confidence = 0.9
		in.SuggestedResponse = reply
		return in
	}

	in.RequiresAction = true
	in.Category = Unknown
	in.Confidence = 0.2
	for _, r := range rules {
		if r.matches(norm) {
			in.Category = r.category
			in.Confidence = 0.85
			break
		}
	}

	switch in.Category {
	case CreateTask:
		in.Entities.Tasks = extractTaskList(text)
	case CompleteTask:
		if name := firstSubmatch(completeRes, text); name != "" {
			in.Entities.Tasks = []string{name}
		}
	case TrackHabit:
		if name := firstSubmatch(habitRes, text); name != "" {
			in.Entities.Tasks = []string{name}
		}
	}
	return in
}

func (r rule) matches(norm string) bool {
	if !r.prefix {
		return containsAny(norm, r.phrases)
	}
	for _, p := range r.phrases {
		if norm == p || strings.HasPrefix(norm, p+" ") {
			return true
		}
	}
	return false
}

// extractTaskList strips the command prefix and splits the remainder into
// task titles. Trailing date words are removed from titles since they are
// carried in Entities.Dates.
func extractTaskList(text string) []string {
	rest := createPrefixRe.ReplaceAllString(text, "")
	var tasks []string
	for _, part := range listSplitRe.Split(rest, -1) {
		part = dateSuffixRe.ReplaceAllString(part, "")
		part = strings.Trim(part, " .!:-•*\t")
		if part != "" {
			tasks = append(tasks, part)
		}
	}
	return tasks
}

func firstSubmatch(res []*regexp.Regexp, text string) string {
	for _, re := range res {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			if v := strings.Trim(m[1], " .!?\"'«»"); v != "" {
				return v
			}
		}
	}
	return ""
}

func detectDates(norm string) []string {
	var dates []string
	for _, w := range dateWordRe.FindAllString(norm, -1) {
		switch w {
		case "apres demain":
			// dropped: the router would read it as "demain"
		case "aujourd hui", "aujourdhui", "ce soir":
			dates = append(dates, "aujourd'hui")
		default:
			dates = append(dates, w)
		}
	}
	return dates
}

func detectUrgency(norm string) string {
	if containsAny(norm, []string{"urgent", "urgente", "urgence", "asap", "important", "importante", "vite", "prioritaire"}) {
		return UrgencyHigh
	}
	return UrgencyNormal
}

func detectEmotion(norm string) Emotion {
	switch {
	case containsAny(norm, []string{"stress", "stresse", "stressee", "deborde", "debordee", "angoisse", "panique", "trop de"}):
		return Stressed
	case containsAny(norm, []string{"fatigue", "fatiguee", "creve", "crevee", "epuise", "epuisee"}):
		return Tired
	case containsAny(norm, []string{"motive", "motivee", "a fond", "chaud", "chaude"}):
		return Motivated
	case containsAny(norm, []string{"content", "contente", "heureux", "heureuse", "genial", "trop bien"}):
		return Positive
	}
	return Neutral
}

// containsAny reports whether any phrase occurs in s on word boundaries.
// Both s and the phrases must already be normalized.
func containsAny(s string, phrases []string) bool {
	padded := " " + s + " "
	for _, p := range phrases {
		if strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}
