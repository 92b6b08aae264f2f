package refparse

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"
)

var errBadString = errors.New("refparse: malformed string literal")

// unquote decodes a Luau string literal: single or double quoted with
// backslash escapes, or a long bracket string such as [[...]] or [==[...]==].
func unquote(lit string) (string, error) {
	if len(lit) < 2 {
		return "", errBadString
	}
	switch lit[0] {
	case '"', '\'':
		if lit[len(lit)-1] != lit[0] {
			return "", errBadString
		}
		return unescape(lit[1 : len(lit)-1])
	case '[':
		return longBracket(lit)
	}
	return "", errBadString
}

func longBracket(lit string) (string, error) {
	level := 0
	for 1+level < len(lit) && lit[1+level] == '=' {
		level++
	}
	open := "[" + strings.Repeat("=", level) + "["
	closing := "]" + strings.Repeat("=", level) + "]"
	if !strings.HasPrefix(lit, open) || !strings.HasSuffix(lit, closing) || len(lit) < len(open)+len(closing) {
		return "", errBadString
	}
	body := lit[len(open) : len(lit)-len(closing)]
	// A newline directly after the opening bracket is skipped.
	if strings.HasPrefix(body, "\r\n") {
		body = body[2:]
	} else if strings.HasPrefix(body, "\n") {
		body = body[1:]
	}
	return body, nil
}

func unescape(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", errBadString
		}
		switch c = s[i]; c {
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n', '\n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case '\\', '"', '\'':
			b.WriteByte(c)
		case 'z':
			for i+1 < len(s) && isSpace(s[i+1]) {
				i++
			}
		case 'x':
			if i+2 >= len(s) {
				return "", errBadString
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", errBadString
			}
			b.WriteByte(byte(v))
			i += 2
		case 'u':
			end := strings.IndexByte(s[i:], '}')
			if i+1 >= len(s) || s[i+1] != '{' || end < 0 {
				return "", errBadString
			}
			v, err := strconv.ParseUint(s[i+2:i+end], 16, 32)
			if err != nil || v > utf8.MaxRune {
				return "", errBadString
			}
			b.WriteRune(rune(v))
			i += end
		default:
			if c < '0' || c > '9' {
				return "", errBadString
			}
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '9' {
				j++
			}
			v, err := strconv.Atoi(s[i:j])
			if err != nil || v > 255 {
				return "", errBadString
			}
			b.WriteByte(byte(v))
			i = j - 1
		}
	}
	return b.String(), nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
