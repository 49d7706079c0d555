// internal/app/system/htmlsanitize/htmlsanitize.go
// Package htmlsanitize strips markup from user-supplied chat text before it
// is persisted.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every tag and attribute. bluemonday policies are safe for
// concurrent use once built.
var strict = bluemonday.StrictPolicy()

// PlainText removes all HTML from s and returns literal text. Entities that
// the policy escapes are decoded again because clients render the result as
// text, never as HTML.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return html.UnescapeString(strict.Sanitize(s))
}

// IsPlainText reports whether s contains anything that looks like a tag.
func IsPlainText(s string) bool {
	return !strings.ContainsAny(s, "<>")
}
