package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/tripsync/internal/app/system/htmlsanitize"
	"github.com/dalemusser/tripsync/internal/domain/models"
	"github.com/tidwall/gjson"
)

var errNoObject = errors.New("no JSON object in response")

// ExtractJSON returns the first balanced, valid JSON object in text. Braces
// inside string literals are ignored, so prose or code fences around the
// object are tolerated.
func ExtractJSON(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchBrace(text, start); end > 0 {
			candidate := text[start:end]
			if gjson.Valid(candidate) {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBrace returns the index just past the brace closing the one at
// start, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// ParsePlan extracts and validates a plan from a generator response. Title
// and summary must be non-empty strings; actionItems must be a non-empty
// array of non-empty strings.
func ParsePlan(text string) (models.Plan, error) {
	obj, ok := ExtractJSON(text)
	if !ok {
		return models.Plan{}, errNoObject
	}
	doc := gjson.Parse(obj)

	title, err := requiredString(doc, "title")
	if err != nil {
		return models.Plan{}, err
	}
	summary, err := requiredString(doc, "summary")
	if err != nil {
		return models.Plan{}, err
	}

	itemsField := doc.Get("actionItems")
	if !itemsField.Exists() {
		itemsField = doc.Get("action_items")
	}
	if !itemsField.IsArray() {
		return models.Plan{}, errors.New("actionItems must be an array")
	}
	var items []string
	for i, it := range itemsField.Array() {
		if it.Type != gjson.String {
			return models.Plan{}, fmt.Errorf("actionItems[%d] must be a string", i)
		}
		s := clean(it.String())
		if s == "" {
			return models.Plan{}, fmt.Errorf("actionItems[%d] is empty", i)
		}
		items = append(items, s)
	}
	if len(items) == 0 {
		return models.Plan{}, errors.New("actionItems is empty")
	}

	return models.Plan{Title: title, Summary: summary, ActionItems: items}, nil
}

func requiredString(doc gjson.Result, field string) (string, error) {
	v := doc.Get(field)
	if v.Type != gjson.String {
		return "", fmt.Errorf("%s must be a string", field)
	}
	s := clean(v.String())
	if s == "" {
		return "", fmt.Errorf("%s is empty", field)
	}
	return s, nil
}

func clean(s string) string {
	return strings.TrimSpace(htmlsanitize.PlainText(s))
}
