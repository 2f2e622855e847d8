package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize lowercases a value and strips everything except ASCII letters,
// digits, and CJK characters. Card names arrive from OCR-like model output,
// reference manifests, and market listings with inconsistent punctuation and
// spacing; comparing normalized forms makes those sources agree.
func Normalize(value string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(value) {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case isCJK(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isCJK keeps hiragana, katakana, and the unified ideograph ranges so
// Japanese card names survive normalization.
func isCJK(r rune) bool {
	switch {
	case r >= 0x3040 && r <= 0x30ff:
		return true
	case r >= 0x3400 && r <= 0x9fff:
		return true
	default:
		return false
	}
}

// EitherContains reports whether either normalized value contains the other.
// Both must be non-empty.
func EitherContains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// FirstToken returns the first whitespace-separated token of a value.
func FirstToken(value string) string {
	fields := strings.Fields(strings.TrimSpace(value))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

var titleCaser = cases.Title(language.English)

// DisplayTitle renders a card or set name in title case for table output.
func DisplayTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return titleCaser.String(value)
}
