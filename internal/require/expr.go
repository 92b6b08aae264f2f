// Package require resolves reference expressions, the argument shapes of
// require calls, to module identities.
package require

// Expr is a reference expression. The set of implementations is closed:
// StringLit, Global, IndexName, IndexExpr, Call and Unsupported.
type Expr interface {
	isExpr()
}

// StringLit is a string literal, e.g. require("Modules/Foo").
type StringLit struct {
	Value string
}

// Global is a free identifier such as game or script.
type Global struct {
	Name string
}

// IndexName is field access, Object.Name.
type IndexName struct {
	Object Expr
	Name   string
}

// IndexExpr is bracket indexing, Object[Key].
type IndexExpr struct {
	Object Expr
	Key    Expr
}

// Call is a function call on an object. Self is true for method syntax,
// Object:Method(args).
type Call struct {
	Object Expr
	Method string
	Args   []Expr
	Self   bool
}

// Unsupported stands in for any other expression shape.
type Unsupported struct {
	Kind string
}

func (StringLit) isExpr()   {}
func (Global) isExpr()      {}
func (IndexName) isExpr()   {}
func (IndexExpr) isExpr()   {}
func (Call) isExpr()        {}
func (Unsupported) isExpr() {}

// Object returns the sub-expression e navigates from, or nil for leaves.
func Object(e Expr) Expr {
	switch e := e.(type) {
	case IndexName:
		return e.Object
	case IndexExpr:
		return e.Object
	case Call:
		return e.Object
	}
	return nil
}
