package analysis

import (
	"encoding/json"
	"strings"
)

const codeFence = "```"

// ExtractObject finds the most likely JSON object in free-form model output.
// Markdown fence tokens are dropped and the slice from the first '{' to the
// last '}' is returned, so commentary around the object is tolerated.
func ExtractObject(text string) (string, bool) {
	if strings.Contains(text, codeFence) {
		text = strings.ReplaceAll(text, codeFence+"json", "")
		text = strings.ReplaceAll(text, codeFence+"JSON", "")
		text = strings.ReplaceAll(text, codeFence, "")
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// DecodeLenient unmarshals payload into v after escaping raw control
// characters that appear inside string literals. Models regularly emit
// literal newlines and tabs inside JSON strings.
func DecodeLenient(payload string, v any) error {
	return json.Unmarshal(escapeControlInStrings(payload), v)
}

func escapeControlInStrings(s string) []byte {
	out := make([]byte, 0, len(s)+16)
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			out = append(out, c)
			continue
		}
		switch {
		case escaped:
			escaped = false
			out = append(out, c)
		case c == '\\':
			escaped = true
			out = append(out, c)
		case c == '"':
			inString = false
			out = append(out, c)
		case c < 0x20:
			out = append(out, controlEscape(c)...)
		default:
			out = append(out, c)
		}
	}
	return out
}

func controlEscape(c byte) []byte {
	switch c {
	case '\n':
		return []byte(`\n`)
	case '\r':
		return []byte(`\r`)
	case '\t':
		return []byte(`\t`)
	case '\b':
		return []byte(`\b`)
	case '\f':
		return []byte(`\f`)
	}
	const hex = "0123456789abcdef"
	return []byte{'\\', 'u', '0', '0', hex[c>>4], hex[c&0xf]}
}
