package guard

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Field-specific caps, in runes.
const (
	MaxFullNameLen  = 160
	MaxFirstNameLen = 80
	MaxLastNameLen  = 80
	MaxSubjectLen   = 180
	MaxMessageLen   = 5000
)

var (
	lineBreakRun = regexp.MustCompile(`[\r\n]+`)
	validate     = validator.New()
)

// SanitizeSingleLine collapses line-break runs to single spaces, trims,
// and truncates to max runes. Used for names and subjects.
func SanitizeSingleLine(value string, max int) string {
	value = lineBreakRun.ReplaceAllString(value, " ")
	return TruncateRunes(strings.TrimSpace(value), max)
}

// SanitizeMultiline normalizes all line-ending variants to "\n", trims,
// and truncates to max runes. Used for the message body.
func SanitizeMultiline(value string, max int) string {
	value = strings.ReplaceAll(value, "\r\n", "\n")
	value = strings.ReplaceAll(value, "\r", "\n")
	return TruncateRunes(strings.TrimSpace(value), max)
}

// TruncateRunes truncates to max logical characters, never splitting a
// multi-byte sequence.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// ValidEmail reports whether the value has a standard email shape.
func ValidEmail(value string) bool {
	return validate.Var(value, "required,email") == nil
}
