package analyzer

import "strings"

// Normalize lower-cases text and strips ASCII punctuation, keeping word
// boundaries and whitespace intact. Idempotent: normalizing an already
// normalized string is a no-op.
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if isASCIIPunct(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isASCIIPunct matches the standard ASCII punctuation set:
// !"#$%&'()*+,-./:;<=>?@[\]^_`{|}~
func isASCIIPunct(r rune) bool {
	switch {
	case r >= '!' && r <= '/':
		return true
	case r >= ':' && r <= '@':
		return true
	case r >= '[' && r <= '`':
		return true
	case r >= '{' && r <= '~':
		return true
	default:
		return false
	}
}

func normalizeAll(phrases []string) []string {
	out := make([]string, len(phrases))
	for i, phrase := range phrases {
		out[i] = Normalize(phrase)
	}
	return out
}
