package intake

import (
	"strings"
	"unicode"
)

const bullet = "• "

var dashBreaks = strings.NewReplacer("–", "\n–", "—", "\n—")

// FormatDescription renders a raw offering description as bullet lines.
// Dashes start a new item, as do line breaks; blank items are dropped.
// The output is stable under re-application.
func FormatDescription(raw string) string {
	lines := strings.Split(dashBreaks.Replace(raw), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimLeftFunc(strings.TrimSpace(line), isMarker)
		if line == "" {
			continue
		}
		out = append(out, bullet+line)
	}
	return strings.Join(out, "\n")
}

func isMarker(r rune) bool {
	switch r {
	case '–', '—', '-', '•':
		return true
	}
	return unicode.IsSpace(r)
}
