package normalize

import (
	"strings"
	"unicode/utf8"
)

// maxMerchantLength matches the merchant column width.
const maxMerchantLength = 255

// SanitizeText drops invalid UTF-8 bytes and NUL characters, neither of which
// PostgreSQL accepts in text columns.
func SanitizeText(s string) string {
	if utf8.ValidString(s) && !strings.ContainsRune(s, 0) {
		return s
	}

	var result strings.Builder
	result.Grow(len(s))

	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if (r == utf8.RuneError && size == 1) || r == 0 {
			continue
		}
		result.WriteRune(r)
	}

	return result.String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
