package evaluation

import (
	"fmt"
	"strconv"
	"strings"

	jsonx "repverse/internal/shared/json"

	"github.com/kaptinlin/jsonrepair"
)

// truncation recovery gives up after this many cut-backs.
const maxTruncationCuts = 32

// ExtractJSON pulls the JSON value a model was asked to produce out of raw
// text. It tolerates code fences, leading prose, trailing prose and output cut
// off mid-structure. It never fails: when nothing usable is found it returns
// an empty object, and callers decide whether missing fields are acceptable.
func ExtractJSON(raw string) any {
	text := stripFences(removeNewlines(raw))

	if value, ok := parseStrict(text); ok {
		if nested, isString := value.(string); isString {
			// Some models double-encode the whole answer as a JSON string.
			text = stripFences(removeNewlines(nested))
			if inner, innerOK := parseStrict(text); innerOK && isStructured(inner) {
				return inner
			}
		} else if isStructured(value) {
			return value
		}
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return map[string]any{}
	}
	text = strings.TrimSpace(stripFences(text[start:]))

	if end := matchingClose(text); end > 0 {
		if value, ok := parseStrict(text[:end+1]); ok && isStructured(value) {
			return value
		}
	}

	if repaired, err := jsonrepair.JSONRepair(text); err == nil {
		if value, ok := parseStrict(repaired); ok && isStructured(value) {
			return value
		}
	}

	if value, ok := closeTruncated(text); ok {
		return value
	}

	return map[string]any{}
}

// ExtractObject is ExtractJSON narrowed to an object. A top-level array
// yields its first object element; anything else yields an empty object.
func ExtractObject(raw string) map[string]any {
	switch v := ExtractJSON(raw).(type) {
	case map[string]any:
		return v
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				return obj
			}
		}
	}
	return map[string]any{}
}

func removeNewlines(s string) string {
	return strings.NewReplacer("\r\n", "", "\n", "", "\r", "").Replace(s)
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func parseStrict(s string) (any, bool) {
	if s == "" {
		return nil, false
	}
	var value any
	if err := jsonx.Unmarshal([]byte(s), &value); err != nil {
		return nil, false
	}
	return value, true
}

func isStructured(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	default:
		return false
	}
}

// matchingClose returns the index of the bracket closing s[0], or -1.
func matchingClose(s string) int {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// scanOpen reports the closers needed to balance s and whether s ends inside
// a string literal. lastComma is the last comma outside any string.
func scanOpen(s string) (closers string, inString bool, lastComma int) {
	var stack []byte
	escaped := false
	lastComma = -1
	for i := 0; i < len(s); i++ {
		c := s[i]
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case ',':
			lastComma = i
		}
	}
	var b strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String(), inString, lastComma
}

// closeTruncated closes open strings and brackets, dropping trailing members
// one comma at a time until the remainder parses.
func closeTruncated(s string) (any, bool) {
	for cut := 0; cut < maxTruncationCuts && s != ""; cut++ {
		closers, inString, lastComma := scanOpen(s)
		candidate := s
		if inString {
			candidate += `"`
		} else {
			candidate = strings.TrimRight(candidate, " \t,:")
		}
		if value, ok := parseStrict(candidate + closers); ok && isStructured(value) {
			return value, true
		}
		if lastComma < 0 {
			return nil, false
		}
		s = s[:lastComma]
	}
	return nil, false
}

// numberField reads a numeric member. Models sometimes quote numbers, so
// numeric strings are accepted too.
func numberField(obj map[string]any, key string) (float64, bool) {
	switch v := obj[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case jsonx.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// stringList reads an array of strings. A lone string becomes a single
// element; non-string elements are rendered with %v.
func stringList(obj map[string]any, key string) ([]string, bool) {
	switch v := obj[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			switch s := item.(type) {
			case string:
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					out = append(out, trimmed)
				}
			case nil:
			default:
				out = append(out, fmt.Sprintf("%v", s))
			}
		}
		return out, true
	case string:
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return []string{trimmed}, true
		}
		return []string{}, true
	default:
		return nil, false
	}
}
