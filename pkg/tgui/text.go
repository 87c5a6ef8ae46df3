package tgui

import "unicode/utf8"

// TruncRunes truncates s to at most n runes, appending "…" when it
// had to cut. Inline keyboard button labels use it so a long quiz
// option never blows past Telegram's visible button width.
func TruncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	seen := 0
	cut := 0
	for i, r := range s {
		seen++
		switch {
		case seen == n:
			// Byte offset just past the n-th rune; only cut here if
			// another rune follows.
			cut = i + utf8.RuneLen(r)
		case seen > n:
			if cut <= 0 {
				cut = i
			}
			return s[:cut] + "…"
		}
	}
	return s
}
