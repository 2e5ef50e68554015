// Package security holds input sanitising for values that end up in file
// names and response headers.
package security

import "strings"

const maxFilenameLen = 128

// SanitizeFilename makes a safe file name from an arbitrary string such as a
// run ID or channel name. Characters other than ASCII letters, digits, dot,
// underscore and dash become a single underscore, and leading or trailing
// dots and underscores are trimmed. An empty result becomes "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = r == '_'
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
