package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zulandar/productif/internal/backend"
	"github.com/zulandar/productif/internal/llm"
	"github.com/zulandar/productif/internal/matcher"
)

// Completion parameters for help answers.
const (
	helpTemperature = 0.7
	helpMaxTokens   = 500
)

// helpPatterns match help-seeking phrasing on normalized text.
var helpPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bcomment (faire|je fais|on fait|puis je|je peux|est ce que je)\b`),
	regexp.MustCompile(`\bje (ne )?sais pas comment\b`),
	regexp.MustCompile(`\bj ai besoin d (aide|un coup de main|un conseil)\b`),
	regexp.MustCompile(`\b(aide|aidez) moi\b`),
	regexp.MustCompile(`\b(tu peux|peux tu|pourrais tu) m aider\b`),
	regexp.MustCompile(`\bc est quoi\b`),
	regexp.MustCompile(`\bqu est ce que (c est|signifie|veut dire)\b`),
	regexp.MustCompile(`\bexplique(z)? moi\b`),
	regexp.MustCompile(`\bquelle est la meilleure (facon|maniere|methode)\b`),
	regexp.MustCompile(`\b(des|un) conseils? (pour|sur)\b`),
	regexp.MustCompile(`\bcomment (m organiser|organiser|gerer|ameliorer|etre plus|arreter de)\b`),
	regexp.MustCompile(`\bje (suis|me sens) (perdu|perdue|bloque|bloquee)\b`),
}

var helpKeywords = []string{
	"aide", "help", "astuce", "conseil", "tutoriel", "tuto", "mode d emploi",
	"guide moi", "je galere", "explique", "methode", "technique",
}

// commandEmojis prefix messages that are task commands, never questions.
var commandEmojis = []string{"📝", "⚙️", "✅"}

// helpTips are appended to answers, first match wins.
var helpTips = []struct {
	keywords []string
	tip      string
}{
	{[]string{"planifi", "organis", "journee", "demain"}, "💡 Astuce : écris « planifier demain » et je t'aide à organiser ta journée."},
	{[]string{"tache", "todo", "liste"}, "💡 Astuce : écris « mes tâches » pour voir ce qui t'attend aujourd'hui."},
	{[]string{"concentr", "focus", "distrait", "procrastin"}, "💡 Astuce : lance une session avec « je commence à travailler » pour te concentrer."},
	{[]string{"habitude", "routine"}, "💡 Astuce : écris « habitude méditation » pour valider une habitude du jour."},
}

const helpFallback = "🤔 Je n'ai pas pu préparer de réponse pour le moment. Je peux t'aider sur :\n" +
	"1. Organiser ta journée (« planifier demain »)\n" +
	"2. Gérer tes tâches (« mes tâches »)\n" +
	"3. Te concentrer (« je commence à travailler »)\n" +
	"4. Suivre tes habitudes (« habitude méditation »)\n\n" +
	"Réessaie dans un instant !"

const helpSystemPrompt = "Tu es l'assistant IA personnel de Productif.io, une application de productivité pour étudiants. " +
	"Contraintes : 300 mots maximum ; pour un processus, donne des étapes numérotées ; " +
	"ton encourageant et concret ; réponds en français. " +
	"Adapte tes conseils au contexte de l'utilisateur quand il est fourni."

// Energy is a coarse time-of-day energy estimate.
type Energy string

const (
	EnergyHigh   Energy = "high"
	EnergyMedium Energy = "medium"
	EnergyLow    Energy = "low"
)

// energyAt maps the local hour to an energy level.
func energyAt(t time.Time) Energy {
	h := t.Hour()
	switch {
	case h >= 8 && h < 12:
		return EnergyHigh
	case h >= 20 || h < 7:
		return EnergyLow
	}
	return EnergyMedium
}

// HelpContext is the user context given to the model.
type HelpContext struct {
	PendingTasks   int
	CompletedToday int
	ActiveSession  bool
	Energy         Energy
}

// Help answers free-form questions with the completion model.
type Help struct {
	backend   Backend
	completer llm.Completer
	now       func() time.Time
	log       *zap.Logger
}

// Triggers reports whether text looks like a request for help.
func (h *Help) Triggers(text string) bool {
	n := matcher.Normalize(text)
	for _, re := range helpPatterns {
		if re.MatchString(n) {
			return true
		}
	}
	if hasKeyword(n, helpKeywords) {
		return true
	}
	trimmed := strings.TrimSpace(text)
	for _, e := range commandEmojis {
		if strings.HasPrefix(trimmed, e) {
			return false
		}
	}
	return strings.Contains(n, "comment") || strings.Contains(n, "process")
}

// hasKeyword reports whether a keyword, or its plural, occurs in n as whole
// words. n must be normalized.
func hasKeyword(n string, keywords []string) bool {
	padded := " " + n + " "
	for _, k := range keywords {
		if strings.Contains(padded, " "+k+" ") || strings.Contains(padded, " "+k+"s ") {
			return true
		}
	}
	return false
}

// Handle answers text when it triggers. hc may be nil, in which case the
// context is gathered from the backend. Once triggered the reply is always
// handled, with a static answer when the model is unavailable.
func (h *Help) Handle(ctx context.Context, u User, text string, hc *HelpContext) (Result, bool) {
	if !h.Triggers(text) {
		return Result{}, false
	}
	if hc == nil {
		c := h.gather(ctx, u)
		hc = &c
	}

	answer := helpFallback
	if h.completer != nil {
		out, err := h.completer.Complete(ctx, llm.Request{
			System:      helpSystemPrompt,
			User:        helpUserPrompt(text, *hc),
			Temperature: helpTemperature,
			MaxTokens:   helpMaxTokens,
		})
		if err != nil {
			h.log.Warn("help completion", zap.String("user", u.ID), zap.Error(err))
		} else {
			answer = out
			if tip := tipFor(text); tip != "" {
				answer += "\n\n" + tip
			}
		}
	}
	return Result{Handled: true, Response: answer, ActionExecuted: ActionHelp}, true
}

// gather collects context best-effort; backend failures leave zero values.
func (h *Help) gather(ctx context.Context, u User) HelpContext {
	now := h.now()
	c := HelpContext{Energy: energyAt(now)}
	if tasks, err := h.backend.TasksForDate(ctx, u.Token, startOfDay(now)); err != nil {
		h.log.Debug("help context tasks", zap.String("user", u.ID), zap.Error(err))
	} else {
		c.CompletedToday = countDone(tasks)
		c.PendingTasks = len(tasks) - c.CompletedToday
	}
	if active, err := h.backend.Sessions(ctx, u.Token, backend.SessionQuery{Status: backend.SessionActive, Limit: 1}); err != nil {
		h.log.Debug("help context sessions", zap.String("user", u.ID), zap.Error(err))
	} else {
		c.ActiveSession = len(active) > 0
	}
	return c
}

func helpUserPrompt(text string, c HelpContext) string {
	session := "aucune"
	if c.ActiveSession {
		session = "en cours"
	}
	return fmt.Sprintf("Contexte : %d tâches en attente, %d terminées aujourd'hui, session Deep Work %s, énergie %s.\n\nQuestion : %s",
		c.PendingTasks, c.CompletedToday, session, c.Energy, text)
}

func tipFor(text string) string {
	n := matcher.Normalize(text)
	for _, t := range helpTips {
		for _, k := range t.keywords {
			if strings.Contains(n, k) {
				return t.tip
			}
		}
	}
	return ""
}
