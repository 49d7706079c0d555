package planner

import "regexp"

// MentionToken is the reserved token that asks the assistant for a plan.
const MentionToken = "@ai"

var mentionRE = regexp.MustCompile(`(?i)(?:^|[^\w@])@ai\b`)

// Mentions reports whether content addresses the assistant. Matching is
// case-insensitive and whole-word, so "@AI" counts but "@aiden" and
// "mail@ai.com" do not.
func Mentions(content string) bool {
	return mentionRE.MatchString(content)
}
