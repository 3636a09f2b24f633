package service

import (
	"path/filepath"
	"strings"
	"unicode"

	"hisabkitab/internal/normalize"
)

// safeFilename keeps the base name of an uploaded file and replaces anything
// that is awkward on disk with an underscore.
func safeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(normalize.SanitizeText(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.TrimLeft(b.String(), ".")
}
