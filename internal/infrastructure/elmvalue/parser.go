// Package elmvalue parses values printed by Elm's Debug.toString.
package elmvalue

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/ports"
)

// Parser is a recursive-descent parser for Debug.toString output.
type Parser struct{}

// NewParser returns a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Parse implements ports.ValueParser.
func (p *Parser) Parse(text string) (domain.Value, error) {
	s := &scanner{src: text}
	v, err := s.value(true)
	if err != nil {
		return domain.Value{}, err
	}
	s.skipSpace()
	if !s.done() {
		return domain.Value{}, s.errorf("unexpected %q after value", s.peek())
	}
	return v, nil
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) done() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() byte {
	if s.done() {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) skipSpace() {
	for !s.done() && unicode.IsSpace(rune(s.src[s.pos])) {
		s.pos++
	}
}

func (s *scanner) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("offset %d: %s", s.pos, fmt.Sprintf(format, args...))
}

func (s *scanner) expect(c byte) error {
	s.skipSpace()
	if s.peek() != c {
		if s.done() {
			return s.errorf("expected %q, got end of input", c)
		}
		return s.errorf("expected %q, got %q", c, s.peek())
	}
	s.pos++
	return nil
}

// value parses one value. Constructor arguments are only consumed when
// withArgs is set, so "Just Nothing" nests the way Elm prints it.
func (s *scanner) value(withArgs bool) (domain.Value, error) {
	s.skipSpace()
	if s.done() {
		return domain.Value{}, s.errorf("unexpected end of input")
	}
	c := s.peek()
	switch {
	case c == '"':
		text, err := s.quoted('"')
		return domain.Value{Kind: domain.ValueString, Text: text}, err
	case c == '\'':
		text, err := s.quoted('\'')
		if err == nil && utf8.RuneCountInString(text) != 1 {
			err = s.errorf("char literal %q must hold one character", text)
		}
		return domain.Value{Kind: domain.ValueChar, Text: text}, err
	case c == '(':
		return s.parenthesized()
	case c == '[':
		s.pos++
		items, err := s.sequence(']')
		return domain.Value{Kind: domain.ValueList, Items: items}, err
	case c == '{':
		return s.record()
	case c == '<':
		end := strings.IndexByte(s.src[s.pos:], '>')
		if end < 0 {
			return domain.Value{}, s.errorf("unterminated opaque value")
		}
		name := s.src[s.pos+1 : s.pos+end]
		s.pos += end + 1
		return domain.Value{Kind: domain.ValueOpaque, Name: name}, nil
	case c == '-' || (c >= '0' && c <= '9'):
		return s.number()
	case unicode.IsUpper(rune(c)):
		return s.constructor(withArgs)
	default:
		return domain.Value{}, s.errorf("unexpected %q", c)
	}
}

func (s *scanner) quoted(quote byte) (string, error) {
	s.pos++
	var b strings.Builder
	for !s.done() {
		c := s.src[s.pos]
		switch c {
		case quote:
			s.pos++
			return b.String(), nil
		case '\\':
			s.pos++
			if s.done() {
				return "", s.errorf("unterminated escape")
			}
			esc := s.src[s.pos]
			s.pos++
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'u':
				r, err := s.unicodeEscape()
				if err != nil {
					return "", err
				}
				b.WriteRune(r)
			default:
				b.WriteByte(esc)
			}
		default:
			b.WriteByte(c)
			s.pos++
		}
	}
	return "", s.errorf("unterminated %c literal", quote)
}

// unicodeEscape reads the "{XXXX}" part of a \u{XXXX} escape.
func (s *scanner) unicodeEscape() (rune, error) {
	if s.peek() != '{' {
		return 0, s.errorf("malformed unicode escape")
	}
	end := strings.IndexByte(s.src[s.pos:], '}')
	if end < 0 {
		return 0, s.errorf("unterminated unicode escape")
	}
	code, err := strconv.ParseUint(s.src[s.pos+1:s.pos+end], 16, 32)
	if err != nil {
		return 0, s.errorf("malformed unicode escape: %v", err)
	}
	s.pos += end + 1
	return rune(code), nil
}

func (s *scanner) parenthesized() (domain.Value, error) {
	s.pos++
	s.skipSpace()
	if s.peek() == ')' {
		s.pos++
		return domain.Value{Kind: domain.ValueUnit}, nil
	}
	first, err := s.value(true)
	if err != nil {
		return domain.Value{}, err
	}
	s.skipSpace()
	if s.peek() == ')' {
		s.pos++
		return first, nil
	}
	if err := s.expect(','); err != nil {
		return domain.Value{}, err
	}
	rest, err := s.sequence(')')
	if err != nil {
		return domain.Value{}, err
	}
	return domain.Value{Kind: domain.ValueTuple, Items: append([]domain.Value{first}, rest...)}, nil
}

// sequence parses comma-separated values up to and including closer.
func (s *scanner) sequence(closer byte) ([]domain.Value, error) {
	items := []domain.Value{}
	s.skipSpace()
	if s.peek() == closer {
		s.pos++
		return items, nil
	}
	for {
		v, err := s.value(true)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
		s.skipSpace()
		switch s.peek() {
		case ',':
			s.pos++
		case closer:
			s.pos++
			return items, nil
		default:
			return nil, s.errorf("expected ',' or %q", closer)
		}
	}
}

func (s *scanner) record() (domain.Value, error) {
	s.pos++
	fields := []domain.Field{}
	s.skipSpace()
	if s.peek() == '}' {
		s.pos++
		return domain.Value{Kind: domain.ValueRecord, Fields: fields}, nil
	}
	for {
		s.skipSpace()
		start := s.pos
		for !s.done() && isIdentByte(s.src[s.pos]) {
			s.pos++
		}
		if start == s.pos {
			return domain.Value{}, s.errorf("expected field name")
		}
		name := s.src[start:s.pos]
		if err := s.expect('='); err != nil {
			return domain.Value{}, err
		}
		v, err := s.value(true)
		if err != nil {
			return domain.Value{}, err
		}
		fields = append(fields, domain.Field{Name: name, Value: v})
		s.skipSpace()
		switch s.peek() {
		case ',':
			s.pos++
		case '}':
			s.pos++
			return domain.Value{Kind: domain.ValueRecord, Fields: fields}, nil
		default:
			return domain.Value{}, s.errorf("expected ',' or '}' in record")
		}
	}
}

func (s *scanner) number() (domain.Value, error) {
	start := s.pos
	if s.peek() == '-' {
		s.pos++
		if unicode.IsUpper(rune(s.peek())) {
			v, err := s.constructor(false)
			if err != nil {
				return domain.Value{}, err
			}
			if v.Kind != domain.ValueNumber || !math.IsInf(v.Number, 1) {
				return domain.Value{}, s.errorf("malformed number %q", s.src[start:s.pos])
			}
			return domain.Value{Kind: domain.ValueNumber, Number: math.Inf(-1), Text: "-" + v.Text}, nil
		}
	}
	for !s.done() && strings.IndexByte("0123456789.eE+-", s.src[s.pos]) >= 0 {
		if (s.src[s.pos] == '+' || s.src[s.pos] == '-') && s.pos > start && s.src[s.pos-1] != 'e' && s.src[s.pos-1] != 'E' {
			break
		}
		s.pos++
	}
	literal := s.src[start:s.pos]
	n, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return domain.Value{}, s.errorf("malformed number %q", literal)
	}
	return domain.Value{Kind: domain.ValueNumber, Number: n, Text: literal}, nil
}

func (s *scanner) constructor(withArgs bool) (domain.Value, error) {
	start := s.pos
	for !s.done() && (isIdentByte(s.src[s.pos]) || s.src[s.pos] == '.') {
		s.pos++
	}
	name := s.src[start:s.pos]
	switch name {
	case "True":
		return domain.Value{Kind: domain.ValueBool, Bool: true}, nil
	case "False":
		return domain.Value{Kind: domain.ValueBool, Bool: false}, nil
	case "Infinity":
		return domain.Value{Kind: domain.ValueNumber, Number: math.Inf(1), Text: name}, nil
	case "NaN":
		return domain.Value{Kind: domain.ValueNumber, Number: math.NaN(), Text: name}, nil
	}
	v := domain.Value{Kind: domain.ValueConstructor, Name: name}
	if !withArgs {
		return v, nil
	}
	for {
		s.skipSpace()
		if s.done() || strings.IndexByte(",)]}", s.peek()) >= 0 {
			return v, nil
		}
		arg, err := s.value(false)
		if err != nil {
			return domain.Value{}, err
		}
		v.Items = append(v.Items, arg)
	}
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

var _ ports.ValueParser = (*Parser)(nil)
