package source

import (
	"errors"
	"fmt"
	"strings"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/literal"
	"cuelang.org/go/cue/token"
	cuejson "cuelang.org/go/encoding/json"
)

// ErrMalformedDataModule is returned when a JSON module cannot be parsed.
var ErrMalformedDataModule = errors.New("malformed data module")

// dataModuleHeader starts every module synthesized from JSON.
const dataModuleHeader = "--!strict\nreturn "

// DataModule converts a JSON document into Luau source that returns the
// document as a table literal. Object key order is preserved.
func DataModule(path string, data []byte) (string, error) {
	expr, err := cuejson.Extract(path, data)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrMalformedDataModule, path, err)
	}
	var b strings.Builder
	b.WriteString(dataModuleHeader)
	if err := writeLuau(&b, expr); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrMalformedDataModule, path, err)
	}
	b.WriteByte('\n')
	return b.String(), nil
}

func writeLuau(b *strings.Builder, e ast.Expr) error {
	switch x := e.(type) {
	case *ast.StructLit:
		b.WriteByte('{')
		first := true
		for _, d := range x.Elts {
			f, ok := d.(*ast.Field)
			if !ok {
				return fmt.Errorf("unexpected %T in object", d)
			}
			key, _, err := ast.LabelName(f.Label)
			if err != nil {
				return err
			}
			if !first {
				b.WriteString(", ")
			}
			first = false
			b.WriteByte('[')
			b.WriteString(quoteLuau(key))
			b.WriteString("] = ")
			if err := writeLuau(b, f.Value); err != nil {
				return err
			}
		}
		b.WriteByte('}')

	case *ast.ListLit:
		b.WriteByte('{')
		for i, el := range x.Elts {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := writeLuau(b, el); err != nil {
				return err
			}
		}
		b.WriteByte('}')

	case *ast.BasicLit:
		switch x.Kind {
		case token.STRING:
			s, err := literal.Unquote(x.Value)
			if err != nil {
				return err
			}
			b.WriteString(quoteLuau(s))
		case token.INT, token.FLOAT, token.TRUE, token.FALSE:
			b.WriteString(x.Value)
		case token.NULL:
			b.WriteString("nil")
		default:
			return fmt.Errorf("unexpected literal %s", x.Value)
		}

	case *ast.UnaryExpr:
		if x.Op != token.SUB {
			return fmt.Errorf("unexpected operator %s", x.Op)
		}
		b.WriteByte('-')
		return writeLuau(b, x.X)

	case *ast.Ident:
		switch x.Name {
		case "true", "false":
			b.WriteString(x.Name)
		case "null":
			b.WriteString("nil")
		default:
			return fmt.Errorf("unexpected identifier %s", x.Name)
		}

	default:
		return fmt.Errorf("unexpected %T", e)
	}
	return nil
}

// quoteLuau renders s as a double-quoted Luau string.
func quoteLuau(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&b, `\%03d`, c)
				continue
			}
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
