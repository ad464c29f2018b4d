package expr

// VarRef is one distinct variable name referenced by an expression. Every
// AST node for that name points at the same VarRef, so rebinding Index once
// re-targets every occurrence — this is the "vector rewriting" mechanism
// the design notes call for: evaluate the same parsed AST once per vector
// position by mutating Index instead of re-parsing substituted text.
type VarRef struct {
	Name string
	// Index is the position into the bound vartable.Table's Values() slice
	// this reference currently reads. -1 means unbound.
	Index int
}

type nodeKind int

const (
	nodeNumber nodeKind = iota
	nodeVar
	nodeBinary
	nodeUnaryMinus
)

// node is one AST node. Binary nodes use op as one of '+','-','*','/','&','^','|'.
type node struct {
	kind  nodeKind
	num   float64
	ref   *VarRef
	op    byte
	left  *node
	right *node
}

// Expr is a parsed expression ready for repeated evaluation.
type Expr struct {
	root *node
	vars []*VarRef // distinct variables in first-occurrence order
	src  string
}

// Vars returns the distinct variable references in this expression, in
// first-occurrence order. Callers bind each ref's Index before calling Eval.
func (e *Expr) Vars() []*VarRef { return e.vars }
