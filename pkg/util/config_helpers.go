package util

import "strings"

// ParseIdentityList parses a comma- and/or whitespace-separated string
// into a slice of trimmed, non-empty identities
func ParseIdentityList(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})

	identities := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.TrimSpace(field)
		if trimmed != "" {
			identities = append(identities, trimmed)
		}
	}

	return identities
}
