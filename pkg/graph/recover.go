package graph

import (
	"encoding/json"
	"strings"
)

// RecoverJSON pulls a JSON object out of model output. It tries a direct
// parse, then a balanced scan from the first '{', then strips a Markdown
// code fence. The first strategy that yields an object wins.
func RecoverJSON(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)

	if obj, ok := parseObject(text); ok {
		return obj, nil
	}

	if candidate, ok := balancedObject(text); ok {
		if obj, ok := parseObject(candidate); ok {
			return obj, nil
		}
	}

	if strings.HasPrefix(text, "```") {
		stripped := strings.Trim(text, "`")
		if i := strings.Index(stripped, "{"); i >= 0 {
			stripped = stripped[i:]
		}
		if obj, ok := parseObject(strings.TrimSpace(stripped)); ok {
			return obj, nil
		}
	}

	return nil, ErrNoJSON
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// balancedObject returns the substring from the first '{' to its matching
// '}'. Braces inside string literals, including escaped quotes, are ignored.
func balancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
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
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
