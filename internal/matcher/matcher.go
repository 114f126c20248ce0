// Package matcher maps free-text chat messages to known commands with a
// confidence score.
package matcher

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FirmMatch is the confidence at or above which a command is considered
// matched. Every command-matching call site uses this value.
const FirmMatch = 0.7

// Result is the outcome of matching one text against one command.
type Result struct {
	Matches    bool
	Confidence float64
	Phrase     string // the phrasing that produced the confidence
	weight     int    // content tokens in Phrase, used to rank firm matches
}

// Matcher scores text against a catalog of command phrasings. It holds no
// mutable state and is safe for concurrent use.
type Matcher struct {
	order   []string
	catalog map[string][]string
}

// New creates a Matcher from command ID → phrasings. Phrasings are
// normalized once at construction.
func New(catalog map[string][]string, order ...string) *Matcher {
	m := &Matcher{catalog: make(map[string][]string, len(catalog))}
	for id, phrases := range catalog {
		for _, p := range phrases {
			if n := Normalize(p); n != "" {
				m.catalog[id] = append(m.catalog[id], n)
			}
		}
	}
	seen := make(map[string]bool)
	for _, id := range order {
		if _, ok := m.catalog[id]; ok && !seen[id] {
			m.order = append(m.order, id)
			seen[id] = true
		}
	}
	for id := range m.catalog {
		if !seen[id] {
			m.order = append(m.order, id)
		}
	}
	return m
}

// Match scores text against every phrasing of commandID and returns the
// best. Unknown command IDs never match.
func (m *Matcher) Match(text, commandID string) Result {
	input := Normalize(text)
	if input == "" {
		return Result{}
	}
	var best Result
	for _, phrase := range m.catalog[commandID] {
		c := score(input, phrase)
		if c > best.Confidence {
			best = Result{Confidence: c, Phrase: phrase, weight: len(contentTokens(phrase))}
		}
	}
	best.Matches = best.Confidence >= FirmMatch
	return best
}

// Best returns the command among ids (all commands when ids is empty) with
// a firm match. When several match, the most specific phrasing wins, then
// the higher confidence, then the earlier command. ok is false when nothing
// matches firmly.
func (m *Matcher) Best(text string, ids ...string) (id string, res Result, ok bool) {
	if len(ids) == 0 {
		ids = m.order
	}
	for _, cand := range ids {
		r := m.Match(text, cand)
		if !r.Matches {
			continue
		}
		if !ok || r.weight > res.weight || (r.weight == res.weight && r.Confidence > res.Confidence) {
			id, res, ok = cand, r, true
		}
	}
	return id, res, ok
}

// score computes the confidence that input expresses phrase. Both are
// already normalized.
//
// Beyond whole-string similarity, a phrase found among the input's words
// scores by how much of the input it accounts for: a command word inside a
// longer sentence about something else never reaches FirmMatch.
func score(input, phrase string) float64 {
	if input == phrase {
		return 1
	}
	best := Similarity(input, phrase)

	pt := contentTokens(phrase)
	it := significantTokens(input)
	if len(pt) == 0 || len(it) == 0 {
		return best
	}
	used := make([]bool, len(it))
	matched, chars := 0, 0
	for _, p := range pt {
		for i, w := range it {
			if !used[i] && tokenEqual(w, p) {
				used[i] = true
				matched++
				chars += utf8.RuneCountInString(w)
				break
			}
		}
	}
	if matched < len(pt) {
		return max(best, 0.6*float64(matched)/float64(len(pt)))
	}
	cov := float64(matched) / float64(len(it))
	charCov := float64(chars) / float64(utf8.RuneCountInString(input))
	return min(max(best, 0.8*cov+0.2*charCov), 1)
}

// tokenEqual treats long tokens one typo apart as equal. Short tokens must
// match exactly ("cause" is not "pause").
func tokenEqual(a, b string) bool {
	if a == b {
		return true
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la < 6 || lb < 6 {
		return false
	}
	return Distance(a, b) <= 1
}

// Similarity returns 1 - editDistance/maxLen, in [0,1].
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	n := max(la, lb)
	if n == 0 {
		return 1
	}
	return 1 - float64(Distance(a, b))/float64(n)
}

// Distance is the Levenshtein distance between a and b in runes.
func Distance(a, b string) int {
	dmp := diffmatchpatch.New()
	return dmp.DiffLevenshtein(dmp.DiffMain(a, b, false))
}

var stopWords = map[string]bool{
	"les": true, "des": true, "une": true, "mon": true, "mes": true,
	"ton": true, "tes": true, "pour": true, "avec": true, "sur": true,
	"the": true, "and": true, "my": true,
}

// fillers are politeness and time words that carry no command meaning.
var fillers = map[string]bool{
	"stp": true, "svp": true, "merci": true, "veux": true, "voudrais": true,
	"peux": true, "vais": true, "moi": true, "maintenant": true, "bon": true,
	"please": true, "can": true, "you": true, "for": true, "now": true,
}

// significantTokens is contentTokens without fillers.
func significantTokens(s string) []string {
	var out []string
	for _, w := range contentTokens(s) {
		if !fillers[w] {
			out = append(out, w)
		}
	}
	return out
}

// contentTokens drops stop words and tokens of two runes or fewer.
func contentTokens(s string) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		if utf8.RuneCountInString(w) <= 2 || stopWords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// Normalize lowercases s, strips diacritics, turns every non-alphanumeric
// rune into a space and collapses whitespace. "J'ai FINI !" → "j ai fini".
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
