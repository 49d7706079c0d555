// internal/app/system/normalize/normalize.go
// Package normalize canonicalizes user-entered identifiers before they are
// stored or compared.
package normalize

import (
	"strings"
	"unicode"
)

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding space and collapses internal runs of whitespace.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// InviteCode uppercases a code and drops whitespace and dashes, so
// "abcd-1234" and " ABCD1234 " resolve to the same room.
func InviteCode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || r == '-' {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
