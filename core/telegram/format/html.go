package format

import "strings"

// EscapeHTML escapes text for Telegram HTML parse mode.
// Telegram only requires &, < and > to be escaped; quotes are left alone.
func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Bold wraps escaped text in <b> tags.
func Bold(text string) string {
	return "<b>" + EscapeHTML(text) + "</b>"
}
