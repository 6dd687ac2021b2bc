package textgen

import (
	"encoding/json"
	"errors"
	"strings"
)

// FirstJSONObject extracts the first well-formed top-level JSON object from
// text that may carry code-fence markers or surrounding commentary. An
// opening brace whose balanced span is not valid JSON is skipped and the
// scan continues, so brace-shaped noise before the object does not hide it.
func FirstJSONObject(text string) (string, bool) {
	text = StripCodeFences(text)

	for start := 0; start < len(text); start++ {
		idx := strings.IndexByte(text[start:], '{')
		if idx < 0 {
			return "", false
		}
		start += idx

		if end, ok := balancedObjectEnd(text, start); ok {
			candidate := text[start:end]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
	}

	return "", false
}

// balancedObjectEnd returns the index just past the brace matching the one
// at start, tracking strings and escapes so braces inside values do not
// count.
func balancedObjectEnd(text string, start int) (int, bool) {
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
				return i + 1, true
			}
		}
	}
	return 0, false
}

// DecodeShape parses the first JSON object in text into v.
func DecodeShape(text string, v any) error {
	obj, ok := FirstJSONObject(text)
	if !ok {
		return errors.New("no JSON object in generation response")
	}
	return json.Unmarshal([]byte(obj), v)
}

// StripCodeFences removes markdown code-fence lines, keeping the fenced
// content itself.
func StripCodeFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
