// Package format builds Telegram HTML message fragments.
package format

import (
	"strings"
	"unicode/utf8"
)

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Escape makes arbitrary user text safe for ParseMode HTML.
func Escape(text string) string {
	return htmlEscaper.Replace(text)
}

// Bold wraps already-escaped text in <b>.
func Bold(text string) string { return "<b>" + text + "</b>" }

// Italic wraps already-escaped text in <i>.
func Italic(text string) string { return "<i>" + text + "</i>" }

// Truncate cuts s to at most max runes and appends "..." when it did.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
