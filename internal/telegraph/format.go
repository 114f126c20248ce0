package telegraph

import (
	"strings"
	"unicode/utf8"
)

// Per-platform message size limits, in runes.
const (
	LimitWhatsApp = 4096
	LimitSlack    = 4000
	LimitDiscord  = 2000
)

// Chunk splits text into pieces of at most limit runes. It prefers to cut
// at a line break, then at a space, and only cuts inside a word when a
// single word exceeds the limit. A non-positive limit returns text whole.
func Chunk(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	rest := []rune(text)
	for len(rest) > limit {
		// A separator right at the limit is a valid cut point.
		window := rest[:limit+1]
		cut := lastIndex(window, '\n')
		if cut <= 0 {
			cut = lastIndex(window, ' ')
		}
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, strings.TrimRight(string(rest[:cut]), " \n"))
		rest = rest[cut:]
		for len(rest) > 0 && (rest[0] == '\n' || rest[0] == ' ') {
			rest = rest[1:]
		}
	}
	if len(rest) > 0 {
		chunks = append(chunks, string(rest))
	}
	return chunks
}

func lastIndex(rs []rune, r rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == r {
			return i
		}
	}
	return -1
}

// truncate returns s truncated to maxLen runes with "..." appended if needed.
func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
