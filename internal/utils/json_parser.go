package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSONObject is returned when model output contains no balanced {...} block
var ErrNoJSONObject = errors.New("no JSON object found")

var (
	fencePattern         = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.+?)\\s*```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyPattern   = regexp.MustCompile(`([{,]\s*)([A-Za-z_]\w*)(\s*:)`)
	controlCharPattern   = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
)

// ParseAIJSON decodes the first JSON object found in language model output into target.
//
// Model output may be:
//   - a bare JSON object
//   - an object inside a markdown code fence
//   - an object surrounded by prose
//   - an object with trailing commas, unquoted keys or single quotes
//
// Candidates are tried in that order and the first one that decodes wins.
func ParseAIJSON(input string, target interface{}) error {
	input = strings.TrimPrefix(strings.TrimSpace(input), "\ufeff")
	if input == "" {
		return fmt.Errorf("empty input")
	}

	candidates := make([]string, 0, 4)
	candidates = append(candidates, input)
	if fenced := extractFromMarkdown(input); fenced != "" {
		candidates = append(candidates, fenced)
	}
	obj, found := FirstJSONObject(input)
	if found {
		candidates = append(candidates, obj)
	}

	for _, c := range candidates {
		if err := json.Unmarshal([]byte(c), target); err == nil {
			return nil
		}
	}

	// Repair only the extracted object so surrounding prose cannot leak in
	if found {
		if err := json.Unmarshal([]byte(cleanAndFixJSON(obj)), target); err == nil {
			return nil
		}
		return fmt.Errorf("failed to parse JSON object: %s", truncateString(obj, 100))
	}
	if err := json.Unmarshal([]byte(cleanAndFixJSON(input)), target); err == nil {
		return nil
	}
	return fmt.Errorf("%w in: %s", ErrNoJSONObject, truncateString(input, 100))
}

// FirstJSONObject returns the first balanced {...} block in input.
// Braces inside JSON strings do not count towards the balance.
func FirstJSONObject(input string) (string, bool) {
	for start := strings.IndexByte(input, '{'); start >= 0; {
		if block := extractBalanced(input[start:], '{', '}'); block != "" {
			return block, true
		}
		next := strings.IndexByte(input[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// extractFromMarkdown returns the body of the first code fence that looks like JSON
func extractFromMarkdown(input string) string {
	for _, m := range fencePattern.FindAllStringSubmatch(input, -1) {
		body := strings.TrimSpace(m[1])
		if strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[") {
			return body
		}
	}
	return ""
}

// extractBalanced scans from input[0] and returns the block closed at depth zero
func extractBalanced(input string, open, close rune) string {
	depth := 0
	inString := false
	escape := false

	for i, ch := range input {
		if escape {
			escape = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escape = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return input[:i+1]
			}
			if depth < 0 {
				return ""
			}
		}
	}
	return ""
}

// cleanAndFixJSON attempts to fix common JSON formatting issues
func cleanAndFixJSON(input string) string {
	s := strings.TrimSpace(input)
	s = trailingCommaPattern.ReplaceAllString(s, "$1")
	s = unquotedKeyPattern.ReplaceAllString(s, `$1"$2"$3`)
	s = fixSingleQuotes(s)
	return controlCharPattern.ReplaceAllString(s, "")
}

// fixSingleQuotes converts single-quoted strings to double-quoted ones.
// Apostrophes inside double-quoted strings are left alone.
func fixSingleQuotes(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	inDouble, inSingle, escape := false, false, false

	for _, ch := range input {
		if escape {
			b.WriteRune(ch)
			escape = false
			continue
		}
		switch {
		case ch == '\\':
			escape = true
			b.WriteRune(ch)
		case ch == '"' && !inSingle:
			inDouble = !inDouble
			b.WriteRune(ch)
		case ch == '"' && inSingle:
			b.WriteString(`\"`)
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
			b.WriteRune('"')
		default:
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// truncateString truncates a string to maxLen characters
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
