package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// LLM OUTPUT JSON EXTRACTION
// =============================================================================
//
// Sub-agent replies are supposed to be bare JSON, but models routinely wrap
// them in markdown fences or surrounding prose. These helpers recover the
// first balanced JSON value from such text. The scanner is string- and
// escape-aware, so braces inside string literals do not confuse it.

// StripFences removes a leading ```/```json fence and a trailing ``` fence
// from the text, if present. Text without fences is returned trimmed.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// Drop a language hint like "json" up to the first newline.
		if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

// ExtractJSONValue returns the first balanced JSON object or array found in
// text, after stripping markdown fences. It fails if no opening bracket is
// found or the value is never closed.
func ExtractJSONValue(text string) (string, error) {
	s := StripFences(text)

	start := -1
	var open, closing byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			if open == '{' {
				closing = '}'
			} else {
				closing = ']'
			}
			break
		}
	}
	if start < 0 {
		return "", fmt.Errorf("no JSON value found in text")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
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
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON value in text")
}

// ExtractJSONObject extracts and decodes the first JSON object in text.
func ExtractJSONObject(text string) (map[string]interface{}, error) {
	raw, err := ExtractJSONValue(text)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("invalid JSON in response: %w", err)
	}
	return out, nil
}

// =============================================================================
// SAFE MAP EXTRACTION
// =============================================================================
//
// Tool inputs arrive as map[string]interface{} decoded from JSON, where all
// numbers are float64. These helpers replace bare type assertions that panic
// on type mismatch.

// GetString extracts a string field, with a fallback default.
func GetString(m map[string]interface{}, key, def string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return def
}

// GetInt extracts an integer field. JSON numbers decode as float64.
func GetInt(m map[string]interface{}, key string, def int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return def
	}
}

// GetBool extracts a boolean field, with a fallback default.
func GetBool(m map[string]interface{}, key string, def bool) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return def
}

// GetStringSlice extracts a []string field from a JSON array value.
// Non-string elements are skipped.
func GetStringSlice(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// GetInt64Slice extracts a []int64 field from a JSON array value.
func GetInt64Slice(m map[string]interface{}, key string) []int64 {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(raw))
	for _, v := range raw {
		switch n := v.(type) {
		case float64:
			out = append(out, int64(n))
		case int:
			out = append(out, int64(n))
		case int64:
			out = append(out, n)
		}
	}
	return out
}
