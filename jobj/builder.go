package jobj

import (
	"strconv"
	"strings"
)

// Objectf builds a new object from a printf-style format string plus
// varargs (spec.md §4.3, "object-from-format"). Each field is
// "name:value", fields separated by any run of space/tab/newline/CR/
// comma. name is either a bare identifier or '%s' (consuming a string
// argument as the dynamic key). value is a value-spec ('%s' '%d' '%f'
// '%b' '%o' '%a'), a literal (true/false, a number, or a quoted
// string), or an unquoted bareword like "hub.set".
//
// Malformed input (a bad colon, an unknown spec, an unterminated
// quote, a bare '-' or '.', an invalid unquoted start, or a null '%s'
// name) stops parsing immediately and returns whatever fields parsed
// successfully so far — this function never returns an error, mirroring
// the original allocator-failure-only error policy of spec.md §4.2.
func Objectf(format string, args ...any) *J {
	b := &builder{s: format, args: args}
	return b.parseDoc()
}

// AddToObject builds a temporary object via Objectf and merges it into
// target (spec.md §4.3: "a convenience that builds a temporary and
// merges"). Returns target.
func AddToObject(target *J, format string, args ...any) *J {
	return Merge(target, Objectf(format, args...))
}

type builder struct {
	s    string
	pos  int
	args []any
	argi int
}

func isSep(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', ',':
		return true
	default:
		return false
	}
}

func (b *builder) skipSep() {
	for b.pos < len(b.s) && isSep(b.s[b.pos]) {
		b.pos++
	}
}

func (b *builder) nextArg() (any, bool) {
	if b.argi >= len(b.args) {
		return nil, false
	}
	v := b.args[b.argi]
	b.argi++
	return v, true
}

func (b *builder) parseDoc() *J {
	result := NewObject()
	for {
		b.skipSep()
		if b.pos >= len(b.s) {
			return result
		}
		key, ok := b.parseName()
		if !ok {
			return result
		}
		if b.pos >= len(b.s) || b.s[b.pos] != ':' {
			return result
		}
		b.pos++
		val, ok := b.parseValue()
		if !ok {
			return result
		}
		if val != nil {
			AddItemToObject(result, key, val)
		}
	}
}

func (b *builder) parseName() (string, bool) {
	if strings.HasPrefix(b.s[b.pos:], "%s") {
		b.pos += 2
		arg, ok := b.nextArg()
		if !ok || arg == nil {
			return "", false
		}
		s, ok := arg.(string)
		if !ok {
			return "", false
		}
		return s, true
	}
	start := b.pos
	for b.pos < len(b.s) && isIdentByte(b.s[b.pos]) {
		b.pos++
	}
	if b.pos == start {
		return "", false
	}
	return b.s[start:b.pos], true
}

func isIdentByte(c byte) bool {
	return c == '_' ||
		(c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9')
}

// parseValue returns (node, ok). ok is false on malformed input,
// signaling parseDoc to stop. A nil, true result means the field was
// validly specified but its argument was null, so the field is simply
// omitted from the result (spec.md §4.3: "a null argument skips the
// field").
func (b *builder) parseValue() (*J, bool) {
	rest := b.s[b.pos:]
	switch {
	case strings.HasPrefix(rest, "%s"):
		b.pos += 2
		arg, ok := b.nextArg()
		if !ok {
			return nil, false
		}
		if arg == nil {
			return nil, true
		}
		s, ok := arg.(string)
		if !ok {
			return nil, false
		}
		return NewString(s), true
	case strings.HasPrefix(rest, "%d"):
		b.pos += 2
		arg, ok := b.nextArg()
		if !ok {
			return nil, false
		}
		i, ok := asInt64(arg)
		if !ok {
			return nil, false
		}
		return NewInt(i), true
	case strings.HasPrefix(rest, "%f"):
		b.pos += 2
		arg, ok := b.nextArg()
		if !ok {
			return nil, false
		}
		f, ok := asFloat64(arg)
		if !ok {
			return nil, false
		}
		return NewNumber(f), true
	case strings.HasPrefix(rest, "%b"):
		b.pos += 2
		arg, ok := b.nextArg()
		if !ok {
			return nil, false
		}
		i, ok := asInt64(arg)
		if !ok {
			return nil, false
		}
		return NewBool(i != 0), true
	case strings.HasPrefix(rest, "%o"), strings.HasPrefix(rest, "%a"):
		b.pos += 2
		arg, ok := b.nextArg()
		if !ok {
			return nil, false
		}
		if arg == nil {
			return nil, true
		}
		node, ok := arg.(*J)
		if !ok {
			return nil, false
		}
		if node == nil {
			return nil, true
		}
		Detach(node) // moved, not copied
		return node, true
	case strings.HasPrefix(rest, "true") && !b.unquotedContinuesAt(b.pos+4):
		b.pos += 4
		return NewBool(true), true
	case strings.HasPrefix(rest, "false") && !b.unquotedContinuesAt(b.pos+5):
		b.pos += 5
		return NewBool(false), true
	case b.pos < len(b.s) && b.s[b.pos] == '\'':
		return b.parseQuoted('\'')
	case b.pos < len(b.s) && b.s[b.pos] == '"':
		return b.parseQuoted('"')
	case b.pos < len(b.s) && (b.s[b.pos] == '-' || isDigit(b.s[b.pos])):
		return b.parseNumberLiteral()
	case b.pos < len(b.s) && isAlpha(b.s[b.pos]):
		return b.parseUnquoted()
	default:
		return nil, false
	}
}

func isAlpha(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func (b *builder) parseQuoted(quote byte) (*J, bool) {
	b.pos++ // opening quote
	var sb strings.Builder
	for b.pos < len(b.s) {
		c := b.s[b.pos]
		switch {
		case c == quote:
			b.pos++
			return NewString(sb.String()), true
		case c == '\\' && b.pos+1 < len(b.s) && (b.s[b.pos+1] == '\'' || b.s[b.pos+1] == '"' || b.s[b.pos+1] == '\\'):
			sb.WriteByte(b.s[b.pos+1])
			b.pos += 2
		default:
			sb.WriteByte(c)
			b.pos++
		}
	}
	return nil, false // unterminated quote
}

func (b *builder) parseNumberLiteral() (*J, bool) {
	start := b.pos
	if b.s[b.pos] == '-' {
		b.pos++
	}
	digitsStart := b.pos
	for b.pos < len(b.s) && isDigit(b.s[b.pos]) {
		b.pos++
	}
	if b.pos == digitsStart {
		return nil, false // bare minus
	}
	isFloat := false
	if b.pos < len(b.s) && b.s[b.pos] == '.' {
		isFloat = true
		b.pos++
		// "42." is accepted: a trailing dot with no following digits is
		// still a valid float literal (spec.md §4.3).
		for b.pos < len(b.s) && isDigit(b.s[b.pos]) {
			b.pos++
		}
	}
	lit := b.s[start:b.pos]
	if isFloat {
		f, ok := parseFloatLiteral(lit)
		if !ok {
			return nil, false
		}
		return NewNumber(f), true
	}
	return NewInt(parseIntSaturating(lit)), true
}

func parseFloatLiteral(lit string) (float64, bool) {
	if strings.HasSuffix(lit, ".") {
		lit += "0"
	}
	f, err := strconv.ParseFloat(lit, 64)
	return f, err == nil
}

func (b *builder) parseUnquoted() (*J, bool) {
	start := b.pos
	for b.pos < len(b.s) && isUnquotedByte(b.s[b.pos]) {
		b.pos++
	}
	return NewString(b.s[start:b.pos]), true
}

func isUnquotedByte(c byte) bool {
	return isAlpha(c) || isDigit(c) || c == '_' || c == '.'
}

// unquotedContinuesAt reports whether an unquoted-string byte follows
// position pos, meaning a literal matched immediately before pos (e.g.
// "true") is actually a prefix of a longer bareword like "trueish" and
// must be parsed as one, not consumed as the literal.
func (b *builder) unquotedContinuesAt(pos int) bool {
	return pos < len(b.s) && isUnquotedByte(b.s[pos])
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
