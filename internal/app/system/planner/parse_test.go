package planner

import (
	"strings"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare", `{"a":1}`, `{"a":1}`, true},
		{"prose around", "Sure! Here you go:\n{\"a\":1}\nHope that helps.", `{"a":1}`, true},
		{"code fence", "```json\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`, true},
		{"brace in string", `{"a":"}{"} trailing }`, `{"a":"}{"}`, true},
		{"escaped quote", `{"a":"say \"hi}\""}`, `{"a":"say \"hi}\""}`, true},
		{"first of two", `{"a":1} {"b":2}`, `{"a":1}`, true},
		{"skips invalid", `{not json} then {"a":1}`, `{"a":1}`, true},
		{"unbalanced", `{"a":1`, "", false},
		{"none", "no braces here", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParsePlan(t *testing.T) {
	resp := "Here is the plan:\n" + `{
  "title": "Beach weekend",
  "summary": "Two days at the coast, one hike.",
  "actionItems": ["Book the hotel", " Rent a car "]
}`
	plan, err := ParsePlan(resp)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if plan.Title != "Beach weekend" || plan.Summary == "" {
		t.Errorf("plan = %+v", plan)
	}
	if len(plan.ActionItems) != 2 || plan.ActionItems[1] != "Rent a car" {
		t.Errorf("ActionItems = %q", plan.ActionItems)
	}
}

func TestParsePlan_AcceptsSnakeCaseItems(t *testing.T) {
	plan, err := ParsePlan(`{"title":"T","summary":"S","action_items":["x"]}`)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	if len(plan.ActionItems) != 1 {
		t.Errorf("ActionItems = %q", plan.ActionItems)
	}
}

func TestParsePlan_StripsMarkup(t *testing.T) {
	plan, err := ParsePlan(`{"title":"<script>x</script>Trip","summary":"<b>S</b>","actionItems":["<i>go</i>"]}`)
	if err != nil {
		t.Fatalf("ParsePlan: %v", err)
	}
	for _, s := range append([]string{plan.Title, plan.Summary}, plan.ActionItems...) {
		if strings.ContainsAny(s, "<>") {
			t.Errorf("markup survived: %q", s)
		}
	}
}

func TestParsePlan_Rejects(t *testing.T) {
	tests := map[string]string{
		"no object":       "I could not decide.",
		"missing title":   `{"summary":"S","actionItems":["x"]}`,
		"blank title":     `{"title":"  ","summary":"S","actionItems":["x"]}`,
		"numeric summary": `{"title":"T","summary":5,"actionItems":["x"]}`,
		"missing items":   `{"title":"T","summary":"S"}`,
		"items not array": `{"title":"T","summary":"S","actionItems":"x"}`,
		"empty items":     `{"title":"T","summary":"S","actionItems":[]}`,
		"non-string item": `{"title":"T","summary":"S","actionItems":["x",2]}`,
		"blank item":      `{"title":"T","summary":"S","actionItems":["x",""]}`,
		"truncated":       `{"title":"T","summary":"S","actionItems":["x"`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			if plan, err := ParsePlan(in); err == nil {
				t.Errorf("ParsePlan(%q) = %+v, want error", in, plan)
			}
		})
	}
}

func TestMentions(t *testing.T) {
	tests := map[string]bool{
		"@ai make a plan":           true,
		"hey @AI what do you think": true,
		"ok (@Ai)":                  true,
		"thoughts?@ai":              true,
		"@aiden is coming":          false,
		"mail me at bob@ai.com":     false,
		"no mention":                false,
		"@@ai":                      false,
	}
	for in, want := range tests {
		if got := Mentions(in); got != want {
			t.Errorf("Mentions(%q) = %v, want %v", in, got, want)
		}
	}
}
