package jobj

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// ErrParse is returned by Parse on malformed JSON input.
var ErrParse = errors.New("jobj: parse error")

// Parse parses s as a single JSON document and returns its root node.
// Unlike the builder DSL, a parse failure is reported as an error
// rather than silently returning a partial tree, matching a standard
// JSON decoder's contract (spec.md §4.2's "error policy" governs the
// node-construction helpers; Parse is the boundary that turns
// malformed wire input into a Go error for the transaction engine to
// classify, per spec.md §4.6 step 7).
func Parse(s string) (*J, error) {
	p := &parser{s: s}
	p.skipSpace()
	n, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("%w: trailing data at offset %d", ErrParse, p.pos)
	}
	return n, nil
}

type parser struct {
	s   string
	pos int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) errf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: %s (offset %d)", ErrParse, msg, p.pos)
}

func (p *parser) value() (*J, error) {
	if p.pos >= len(p.s) {
		return nil, p.errf("unexpected end of input")
	}
	switch c := p.s[p.pos]; {
	case c == '{':
		return p.object()
	case c == '[':
		return p.array()
	case c == '"':
		str, err := p.quotedString()
		if err != nil {
			return nil, err
		}
		return NewString(str), nil
	case c == 't':
		return p.literal("true", NewBool(true))
	case c == 'f':
		return p.literal("false", NewBool(false))
	case c == 'n':
		return p.literal("null", NewNull())
	case c == '-' || isDigit(c):
		return p.number()
	default:
		return nil, p.errf("unexpected character %q", c)
	}
}

func (p *parser) literal(word string, node *J) (*J, error) {
	if !strings.HasPrefix(p.s[p.pos:], word) {
		return nil, p.errf("invalid literal, expected %q", word)
	}
	p.pos += len(word)
	return node, nil
}

func (p *parser) object() (*J, error) {
	p.pos++ // consume '{'
	obj := NewObject()
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] == '}' {
		p.pos++
		return obj, nil
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.s) || p.s[p.pos] != '"' {
			return nil, p.errf("expected object key")
		}
		key, err := p.quotedString()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.s) || p.s[p.pos] != ':' {
			return nil, p.errf("expected ':' after object key")
		}
		p.pos++
		p.skipSpace()
		child, err := p.value()
		if err != nil {
			return nil, err
		}
		AddItemToObject(obj, key, child)
		p.skipSpace()
		if p.pos >= len(p.s) {
			return nil, p.errf("unterminated object")
		}
		switch p.s[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return obj, nil
		default:
			return nil, p.errf("expected ',' or '}'")
		}
	}
}

func (p *parser) array() (*J, error) {
	p.pos++ // consume '['
	arr := NewArray()
	p.skipSpace()
	if p.pos < len(p.s) && p.s[p.pos] == ']' {
		p.pos++
		return arr, nil
	}
	for {
		p.skipSpace()
		child, err := p.value()
		if err != nil {
			return nil, err
		}
		AddItemToArray(arr, child)
		p.skipSpace()
		if p.pos >= len(p.s) {
			return nil, p.errf("unterminated array")
		}
		switch p.s[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return arr, nil
		default:
			return nil, p.errf("expected ',' or ']'")
		}
	}
}

func (p *parser) quotedString() (string, error) {
	if p.s[p.pos] != '"' {
		return "", p.errf("expected '\"'")
	}
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		switch {
		case c == '"':
			p.pos++
			return sb.String(), nil
		case c == '\\':
			p.pos++
			if p.pos >= len(p.s) {
				return "", p.errf("unterminated escape")
			}
			esc := p.s[p.pos]
			switch esc {
			case '"', '\\', '/':
				sb.WriteByte(esc)
				p.pos++
			case 'b':
				sb.WriteByte('\b')
				p.pos++
			case 'f':
				sb.WriteByte('\f')
				p.pos++
			case 'n':
				sb.WriteByte('\n')
				p.pos++
			case 'r':
				sb.WriteByte('\r')
				p.pos++
			case 't':
				sb.WriteByte('\t')
				p.pos++
			case 'u':
				r, err := p.unicodeEscape()
				if err != nil {
					return "", err
				}
				sb.WriteRune(r)
			default:
				return "", p.errf("invalid escape \\%c", esc)
			}
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", p.errf("unterminated string")
}

func (p *parser) unicodeEscape() (rune, error) {
	p.pos++ // consume 'u'
	r1, err := p.hex4()
	if err != nil {
		return 0, err
	}
	if utf16.IsSurrogate(rune(r1)) {
		if p.pos+1 < len(p.s) && p.s[p.pos] == '\\' && p.s[p.pos+1] == 'u' {
			p.pos += 2
			r2, err := p.hex4()
			if err != nil {
				return 0, err
			}
			dec := utf16.DecodeRune(rune(r1), rune(r2))
			if dec != utf8.RuneError {
				return dec, nil
			}
		}
		return utf8.RuneError, nil
	}
	return rune(r1), nil
}

func (p *parser) hex4() (uint16, error) {
	if p.pos+4 > len(p.s) {
		return 0, p.errf("truncated \\u escape")
	}
	v, err := strconv.ParseUint(p.s[p.pos:p.pos+4], 16, 16)
	if err != nil {
		return 0, p.errf("invalid \\u escape")
	}
	p.pos += 4
	return uint16(v), nil
}

func (p *parser) number() (*J, error) {
	start := p.pos
	if p.pos < len(p.s) && p.s[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.s) && isDigit(p.s[p.pos]) {
		p.pos++
	}
	isFloat := false
	if p.pos < len(p.s) && p.s[p.pos] == '.' {
		isFloat = true
		p.pos++
		for p.pos < len(p.s) && isDigit(p.s[p.pos]) {
			p.pos++
		}
	}
	if p.pos < len(p.s) && (p.s[p.pos] == 'e' || p.s[p.pos] == 'E') {
		isFloat = true
		p.pos++
		if p.pos < len(p.s) && (p.s[p.pos] == '+' || p.s[p.pos] == '-') {
			p.pos++
		}
		for p.pos < len(p.s) && isDigit(p.s[p.pos]) {
			p.pos++
		}
	}
	lit := p.s[start:p.pos]
	if lit == "" || lit == "-" {
		return nil, p.errf("invalid number literal")
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, p.errf("invalid number literal %q", lit)
	}
	if isFloat {
		return NewNumber(f), nil
	}
	return &J{Kind: KindNumber, Num: f, Int: parseIntSaturating(lit)}, nil
}

// parseIntSaturating parses a signed decimal integer literal, saturating
// to the int64 range instead of overflowing. It negates through the
// unsigned representation so the signed minimum (-9223372036854775808)
// never needs an out-of-range positive intermediate (spec.md §4.2:
// "get-int-or-number must not underflow on the signed minimum; internal
// unary negation must go through the unsigned representation").
func parseIntSaturating(lit string) int64 {
	neg := false
	if strings.HasPrefix(lit, "-") {
		neg = true
		lit = lit[1:]
	}
	const maxInt64AsUint = uint64(1<<63 - 1)
	const minInt64Magnitude = uint64(1 << 63)

	u, err := strconv.ParseUint(lit, 10, 64)
	if err != nil {
		// Overflowed even uint64: saturate by sign.
		if neg {
			return -(1 << 63)
		}
		return 1<<63 - 1
	}
	if neg {
		if u > minInt64Magnitude {
			return -(1 << 63)
		}
		return -int64(u - 1) - 1 // unsigned-safe negation, avoids overflow at u == minInt64Magnitude
	}
	if u > maxInt64AsUint {
		return 1<<63 - 1
	}
	return int64(u)
}
