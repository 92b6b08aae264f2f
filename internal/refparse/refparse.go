// Package refparse finds require calls in Luau source with tree-sitter and
// converts their arguments into require.Expr values.
package refparse

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/instancemap/internal/require"
)

// Require is one require call found in a source file.
type Require struct {
	Expr require.Expr
	// Text is the argument's source text.
	Text string
	// Line and Column are 1-based and locate the start of the call.
	Line   int
	Column int
}

// Parser wraps a tree-sitter parser. A Parser is not safe for concurrent
// use; give each goroutine its own.
type Parser struct {
	p *sitter.Parser
}

// NewParser creates a Parser for Luau source.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(Language())
	return &Parser{p: p}
}

// Close releases the underlying parser.
func (p *Parser) Close() {
	p.p.Close()
}

// Requires returns every require(...) call in src in source order.
func (p *Parser) Requires(ctx context.Context, src []byte) ([]Require, error) {
	tree, err := p.p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("refparse: parse: %w", err)
	}
	defer tree.Close()

	var out []Require
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n.Type() == "function_call" {
			if r, ok := requireCall(n, src); ok {
				out = append(out, r)
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(tree.RootNode())
	return out, nil
}

// ParseExpr parses a single reference expression such as
// `script.Parent.Utils` or `game:GetService("ReplicatedStorage")`.
func (p *Parser) ParseExpr(ctx context.Context, text string) (require.Expr, error) {
	reqs, err := p.Requires(ctx, []byte("local _ = require("+text+")\n"))
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("refparse: %q is not an expression", text)
	}
	return reqs[0].Expr, nil
}

func requireCall(n *sitter.Node, src []byte) (Require, bool) {
	callee := calleeOf(n)
	if callee == nil || callee.Type() != "identifier" || callee.Content(src) != "require" {
		return Require{}, false
	}
	args := argumentsOf(n)
	if len(args) == 0 {
		return Require{}, false
	}
	start := n.StartPoint()
	return Require{
		Expr:   convert(args[0], src),
		Text:   args[0].Content(src),
		Line:   int(start.Row) + 1,
		Column: int(start.Column) + 1,
	}, true
}

func convert(n *sitter.Node, src []byte) require.Expr {
	switch n.Type() {
	case "identifier":
		return require.Global{Name: n.Content(src)}

	case "string":
		v, err := unquote(n.Content(src))
		if err != nil {
			return require.Unsupported{Kind: "string"}
		}
		return require.StringLit{Value: v}

	case "parenthesized_expression":
		if c := firstNamed(n); c != nil {
			return convert(c, src)
		}

	case "dot_index_expression", "field_expression":
		table, field := fieldOr(n, "table", 0), fieldOr(n, "field", -1)
		if table != nil && field != nil && table != field {
			return require.IndexName{Object: convert(table, src), Name: field.Content(src)}
		}

	case "bracket_index_expression":
		table, field := fieldOr(n, "table", 0), fieldOr(n, "field", -1)
		if table != nil && field != nil && table != field {
			return require.IndexExpr{Object: convert(table, src), Key: convert(field, src)}
		}

	case "function_call":
		return convertCall(n, src)
	}
	return require.Unsupported{Kind: n.Type()}
}

func convertCall(n *sitter.Node, src []byte) require.Expr {
	callee := calleeOf(n)
	if callee == nil {
		return require.Unsupported{Kind: n.Type()}
	}

	var args []require.Expr
	for _, a := range argumentsOf(n) {
		args = append(args, convert(a, src))
	}

	switch callee.Type() {
	case "method_index_expression":
		table, method := fieldOr(callee, "table", 0), fieldOr(callee, "method", -1)
		if table == nil || method == nil || table == method {
			break
		}
		return require.Call{Object: convert(table, src), Method: method.Content(src), Args: args, Self: true}
	case "dot_index_expression", "field_expression":
		table, field := fieldOr(callee, "table", 0), fieldOr(callee, "field", -1)
		if table == nil || field == nil || table == field {
			break
		}
		return require.Call{Object: convert(table, src), Method: field.Content(src), Args: args}
	}
	return require.Unsupported{Kind: n.Type()}
}

func calleeOf(call *sitter.Node) *sitter.Node {
	return fieldOr(call, "name", 0)
}

// argumentsOf returns the argument expressions of a call. A call written
// with a bare string or table argument has a single argument.
func argumentsOf(call *sitter.Node) []*sitter.Node {
	args := fieldOr(call, "arguments", -1)
	if args == nil {
		return nil
	}
	if args.Type() != "arguments" {
		return []*sitter.Node{args}
	}
	var out []*sitter.Node
	for i := 0; i < int(args.NamedChildCount()); i++ {
		c := args.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// fieldOr returns the named field of n, falling back to a positional named
// child (negative counts from the end) for grammars without field names.
func fieldOr(n *sitter.Node, field string, pos int) *sitter.Node {
	if c := n.ChildByFieldName(field); c != nil {
		return c
	}
	count := int(n.NamedChildCount())
	if pos < 0 {
		pos += count
	}
	if pos < 0 || pos >= count {
		return nil
	}
	return n.NamedChild(pos)
}

func firstNamed(n *sitter.Node) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() != "comment" {
			return c
		}
	}
	return nil
}
