package document

import (
	"fmt"
	"strings"
	"unicode"
)

// Attributes is the parsed content of a "{...}" block attribute string.
type Attributes struct {
	flags  map[string]bool
	values map[string][]string
}

// Has reports whether name appears as a bare flag.
func (a Attributes) Has(name string) bool {
	return a.flags[name]
}

// Value returns the last value given for key.
func (a Attributes) Value(key string) (string, bool) {
	vs := a.values[key]
	if len(vs) == 0 {
		return "", false
	}
	return vs[len(vs)-1], true
}

// Values returns every value given for key, in order.
func (a Attributes) Values(key string) []string {
	return a.values[key]
}

// ParseAttributes parses whitespace-separated flags and key=value pairs.
// Values may be quoted with single or double quotes; a backslash escapes
// the next character inside quotes. Surrounding braces are optional.
func ParseAttributes(raw string) (Attributes, error) {
	attrs := Attributes{flags: map[string]bool{}, values: map[string][]string{}}
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")

	i := 0
	for {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			return attrs, nil
		}
		start := i
		for i < len(s) && !isSpace(s[i]) && s[i] != '=' {
			i++
		}
		key := s[start:i]
		if key == "" {
			return attrs, fmt.Errorf("attribute at offset %d has no name", start)
		}
		if i >= len(s) || s[i] != '=' {
			attrs.flags[key] = true
			continue
		}
		i++
		value, next, err := readValue(s, i)
		if err != nil {
			return attrs, fmt.Errorf("attribute %s: %w", key, err)
		}
		attrs.values[key] = append(attrs.values[key], value)
		i = next
	}
}

func readValue(s string, i int) (string, int, error) {
	if i >= len(s) {
		return "", i, nil
	}
	quote := s[i]
	if quote != '"' && quote != '\'' {
		start := i
		for i < len(s) && !isSpace(s[i]) {
			i++
		}
		return s[start:i], i, nil
	}
	var b strings.Builder
	for i++; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			}
		case quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(s[i])
		}
	}
	return "", i, fmt.Errorf("unterminated %c quote", quote)
}

func isSpace(b byte) bool {
	return unicode.IsSpace(rune(b))
}
