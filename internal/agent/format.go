package agent

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// priorityEmoji is indexed by task priority, 0 (none) to 4 (critical).
var priorityEmoji = [...]string{"⚪", "🔵", "🟡", "🟠", "🔴"}

func emojiForPriority(p int) string {
	p = max(0, min(p, len(priorityEmoji)-1))
	return priorityEmoji[p]
}

const retryReply = "❌ Oups, je n'arrive pas à joindre ton espace Productif.io pour le moment. Réessaie dans quelques instants."

// formatMinutes renders a duration in minutes as "45 min", "2h" or "1h35".
func formatMinutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%d min", m)
	}
	if m%60 == 0 {
		return fmt.Sprintf("%dh", m/60)
	}
	return fmt.Sprintf("%dh%02d", m/60, m%60)
}

func formatClock(t time.Time) string { return t.Format("15:04") }

func formatDay(t time.Time) string { return t.Format("02/01") }

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
