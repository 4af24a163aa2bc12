package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencePattern matches fenced code blocks with an optional language tag.
var fencePattern = regexp.MustCompile("(?s)```(\\w*)\\s*\\n(.+?)\\n```")

// ExtractJSON pulls a JSON document out of a model reply that may wrap it
// in markdown. Fenced ```json blocks win over bare objects in prose.
func ExtractJSON(response string) (string, error) {
	for _, match := range fencePattern.FindAllStringSubmatch(response, -1) {
		lang := strings.ToLower(match[1])
		if lang != "" && lang != "json" {
			continue
		}
		body := strings.TrimSpace(match[2])
		if isValidJSON(body) {
			return body, nil
		}
	}

	if doc, ok := extractBareJSON(response); ok {
		return doc, nil
	}
	return "", fmt.Errorf("no valid JSON found in model response")
}

// ExtractJSONAs extracts JSON and unmarshals it into T.
func ExtractJSONAs[T any](response string) (T, error) {
	var result T

	doc, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return result, fmt.Errorf("failed to decode extracted JSON: %w", err)
	}
	return result, nil
}

// extractBareJSON scans for the first balanced object or array outside a
// code fence. Brackets inside string literals do not count.
func extractBareJSON(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}

	open := s[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				doc := s[start : i+1]
				if isValidJSON(doc) {
					return doc, true
				}
				return "", false
			}
		}
	}
	return "", false
}

func isValidJSON(s string) bool {
	var raw json.RawMessage
	return json.Unmarshal([]byte(s), &raw) == nil
}
