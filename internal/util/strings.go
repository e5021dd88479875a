package util

import (
	"strings"
	"unicode"
)

// ToSnakeCase converts a display name such as "Customer Support Agent" or
// "EscalationControl" into snake_case. Runs of non-alphanumeric characters
// collapse into a single underscore.
func ToSnakeCase(s string) string {
	var b strings.Builder

	runes := []rune(strings.TrimSpace(s))
	pendingSep := false

	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pendingSep = b.Len() > 0
			continue
		}

		if unicode.IsUpper(r) && i > 0 && b.Len() > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				pendingSep = true
			}
		}

		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}

		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
