package filtertree

import (
	"strings"

	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/record"
	"github.com/graphkernel/corequery/internal/value"
)

// Apply evaluates n against rec under env and returns a three-valued
// result: a WHERE clause keeps a row only when this is TriTrue, so a
// row whose predicate evaluates to unknown is excluded the same as
// false.
func Apply(n *Node, rec *record.Record, env arithmetic.Env) value.Tri {
	switch n.Kind {
	case KindLiteral:
		return n.Lit
	case KindAnd:
		result := value.TriTrue
		for _, c := range n.Children {
			result = value.And(result, Apply(c, rec, env))
			if result == value.TriFalse {
				return result
			}
		}
		return result
	case KindOr:
		result := value.TriFalse
		for _, c := range n.Children {
			result = value.Or(result, Apply(c, rec, env))
			if result == value.TriTrue {
				return result
			}
		}
		return result
	case KindNot:
		return value.Not(Apply(n.Children[0], rec, env))
	case KindPredicate:
		return evalPredicate(n, rec, env)
	default:
		return value.TriUnknown
	}
}

func evalPredicate(n *Node, rec *record.Record, env arithmetic.Env) value.Tri {
	switch n.Op {
	case OpIsNull:
		v := arithmetic.Evaluate(n.LHS, rec, env)
		return value.TriFromV(value.Bool(v.IsNull()))
	case OpIsNotNull:
		v := arithmetic.Evaluate(n.LHS, rec, env)
		return value.TriFromV(value.Bool(!v.IsNull()))
	}

	l := arithmetic.Evaluate(n.LHS, rec, env)

	switch n.Op {
	case OpEq, OpNeq, OpLt, OpLe, OpGt, OpGe:
		r := arithmetic.Evaluate(n.RHS, rec, env)
		return evalOrderedCompare(n.Op, l, r, env)
	case OpIn:
		return evalIn(l, arithmetic.Evaluate(n.RHS, rec, env))
	case OpStartsWith, OpEndsWith, OpContains:
		r := arithmetic.Evaluate(n.RHS, rec, env)
		return evalStringMatch(n.Op, l, r)
	case OpHasLabel:
		r := arithmetic.Evaluate(n.RHS, rec, env)
		return evalHasLabel(l, r)
	default:
		return value.TriUnknown
	}
}

func evalHasLabel(l, r value.V) value.Tri {
	if l.Kind() != value.KindNode || r.Kind() != value.KindString {
		return value.TriUnknown
	}
	want := r.Str()
	for _, lbl := range l.NodeRef().Labels {
		if lbl == want {
			return value.TriTrue
		}
	}
	return value.TriFalse
}

func evalOrderedCompare(op CompareOp, l, r value.V, env arithmetic.Env) value.Tri {
	ord, nc := value.Cmp(l, r)

	switch nc {
	case value.CmpNull:
		// Any comparison involving null is unknown, equality included;
		// only disjoint-kind = / != get a definite false/true below.
		return value.TriUnknown
	case value.CmpDisjoint:
		switch op {
		case OpEq:
			return value.TriFalse
		case OpNeq:
			return value.TriTrue
		default:
			return value.TriUnknown
		}
	}

	switch op {
	case OpEq:
		return value.TriFromV(value.Bool(value.Equal(l, r)))
	case OpNeq:
		return value.TriFromV(value.Bool(!value.Equal(l, r)))
	case OpLt:
		return value.TriFromV(value.Bool(ord < 0))
	case OpLe:
		return value.TriFromV(value.Bool(ord <= 0))
	case OpGt:
		return value.TriFromV(value.Bool(ord > 0))
	case OpGe:
		return value.TriFromV(value.Bool(ord >= 0))
	default:
		return value.TriUnknown
	}
}

func evalIn(l, r value.V) value.Tri {
	if l.IsNull() || r.IsNull() {
		return value.TriUnknown
	}
	if r.Kind() != value.KindArray {
		return value.TriUnknown
	}
	sawUnknown := false
	for _, item := range r.Array() {
		if item.IsNull() {
			sawUnknown = true
			continue
		}
		if value.Equal(l, item) {
			return value.TriTrue
		}
	}
	if sawUnknown {
		return value.TriUnknown
	}
	return value.TriFalse
}

func evalStringMatch(op CompareOp, l, r value.V) value.Tri {
	if l.IsNull() || r.IsNull() {
		return value.TriUnknown
	}
	if l.Kind() != value.KindString || r.Kind() != value.KindString {
		return value.TriUnknown
	}
	switch op {
	case OpStartsWith:
		return value.TriFromV(value.Bool(strings.HasPrefix(l.Str(), r.Str())))
	case OpEndsWith:
		return value.TriFromV(value.Bool(strings.HasSuffix(l.Str(), r.Str())))
	case OpContains:
		return value.TriFromV(value.Bool(strings.Contains(l.Str(), r.Str())))
	default:
		return value.TriUnknown
	}
}
