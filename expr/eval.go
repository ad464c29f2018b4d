package expr

import (
	"fmt"
	"math"

	"github.com/vpbank/sensorpipe/vartable"
)

// UnknownVariableError is returned when an expression references a variable
// whose VarRef was never bound to a table index.
type UnknownVariableError struct{ Name string }

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("expr: unknown variable %q", e.Name)
}

// Eval walks the AST, resolving variable nodes through their bound Index
// into table.Values(). Callers must bind every ref in e.Vars() (set
// ref.Index) before calling Eval; an unbound ref (Index < 0) yields
// UnknownVariableError.
func (e *Expr) Eval(table *vartable.Table) (float64, error) {
	return evalNode(e.root, table)
}

func evalNode(n *node, table *vartable.Table) (float64, error) {
	switch n.kind {
	case nodeNumber:
		return n.num, nil
	case nodeVar:
		if n.ref.Index < 0 {
			return 0, &UnknownVariableError{Name: n.ref.Name}
		}
		values := table.Values()
		if n.ref.Index >= len(values) {
			return 0, &UnknownVariableError{Name: n.ref.Name}
		}
		return values[n.ref.Index], nil
	case nodeUnaryMinus:
		v, err := evalNode(n.left, table)
		if err != nil {
			return 0, err
		}
		return -v, nil
	case nodeBinary:
		l, err := evalNode(n.left, table)
		if err != nil {
			return 0, err
		}
		r, err := evalNode(n.right, table)
		if err != nil {
			return 0, err
		}
		return applyOp(n.op, l, r)
	default:
		return 0, fmt.Errorf("expr: unknown node kind %d", n.kind)
	}
}

// applyOp implements the fixed "+ - * / & ^ |" operator set. Bitwise
// operators truncate both operands toward zero to int64, apply the
// operator, then convert back to float64 — this mirrors the original
// collector's "cast to C int, bitwise, cast back to double" behaviour,
// since libmatheval itself has no native bitwise operators.
func applyOp(op byte, l, r float64) (float64, error) {
	switch op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	case '/':
		return l / r, nil
	case '&':
		return float64(int64(l) & int64(r)), nil
	case '^':
		return float64(int64(l) ^ int64(r)), nil
	case '|':
		return float64(int64(l) | int64(r)), nil
	default:
		return 0, fmt.Errorf("expr: unknown operator %q", string(op))
	}
}

// Finite reports whether v is neither NaN nor infinite, the validity check
// §4.D steps 6 and §8 invariant apply after every evaluation.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
