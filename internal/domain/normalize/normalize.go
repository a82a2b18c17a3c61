// Package normalize turns raw completion text into a ParameterUpdate.
//
// Attempts run in a fixed order and the first success wins:
//  1. content inside ``` fences (odd-indexed segments), language tag stripped
//  2. the whole trimmed text
//  3. the first flat {...} substring
//
// Keys are not checked against any schema here.
package normalize

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/pkg/metrics"
)

const fence = "```"

var (
	// flatObjectPattern matches a brace pair with no nested braces inside.
	flatObjectPattern = regexp.MustCompile(`\{[^{}]*\}`)
	// languageTagPattern matches an info string such as "json" or "JSON5".
	languageTagPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_+-]*`)
	// trailingCommaPattern matches a trailing comma before a closing brace.
	trailingCommaPattern = regexp.MustCompile(`,\s*}`)
)

// Normalize extracts a ParameterUpdate from text. On failure the error is
// a *ParseError holding the original text.
func Normalize(text string) (model.ParameterUpdate, error) {
	for _, attempt := range []func(string) (model.ParameterUpdate, bool){
		fromFences,
		fromWhole,
		fromFlatObject,
	} {
		if u, ok := attempt(text); ok {
			return u, nil
		}
	}
	metrics.RecordNormalizeFailure()
	return nil, &ParseError{Text: text}
}

func fromFences(text string) (model.ParameterUpdate, bool) {
	if !strings.Contains(text, fence) {
		return nil, false
	}
	parts := strings.Split(text, fence)
	for i := 1; i < len(parts); i += 2 {
		if u, ok := decode(stripLanguageTag(parts[i])); ok {
			return u, true
		}
	}
	return nil, false
}

func fromWhole(text string) (model.ParameterUpdate, bool) {
	return decode(text)
}

func fromFlatObject(text string) (model.ParameterUpdate, bool) {
	m := flatObjectPattern.FindString(text)
	if m == "" {
		return nil, false
	}
	return decode(m)
}

func stripLanguageTag(segment string) string {
	s := strings.TrimSpace(segment)
	if strings.HasPrefix(s, "{") {
		return s
	}
	return strings.TrimSpace(languageTagPattern.ReplaceAllString(s, ""))
}

// decode accepts only a JSON object whose values are all numbers.
func decode(candidate string) (model.ParameterUpdate, bool) {
	s := strings.TrimSpace(candidate)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var u model.ParameterUpdate
	if err := json.Unmarshal([]byte(s), &u); err != nil {
		cleaned := trailingCommaPattern.ReplaceAllString(s, "}")
		if cleaned == s {
			return nil, false
		}
		if err := json.Unmarshal([]byte(cleaned), &u); err != nil {
			return nil, false
		}
	}
	if u == nil {
		u = model.ParameterUpdate{}
	}
	return u, true
}
