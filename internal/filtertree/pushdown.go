package filtertree

import (
	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/value"
)

// IndexRange is a tightened interval an index scan can apply natively,
// extracted from a chain of comparison predicates against the same
// property.
type IndexRange struct {
	Attr int

	HasEq bool
	Eq    value.V

	HasMin  bool
	Min     value.V
	MinOpen bool // true means '>' (exclusive), false means '>='

	HasMax  bool
	Max     value.V
	MaxOpen bool // true means '<' (exclusive), false means '<='

	NotNullOnly bool // IS NOT NULL with no other bound

	// Invalid is set once the interval crosses itself: min > max, or
	// min == max with either bound exclusive. A range scan built from an
	// Invalid IndexRange matches nothing and can short-circuit the plan
	// to an empty result without touching the index.
	Invalid bool
}

// PushDownIndex scans n's top-level conjuncts for predicates of the
// shape Property(slot, attr) OP constant and composes them into a
// single tightened IndexRange, returning the residual tree that still
// needs per-row evaluation (nil if every conjunct was consumed).
//
// Only the top-level AND is decomposed: a predicate buried under an OR
// can't be range-pushed without changing the query's semantics (an OR
// branch might be satisfied without the indexed property holding at
// all), so PushDownIndex leaves OR subtrees whole in the residual.
func PushDownIndex(n *Node, slot, attr int, env arithmetic.Env) (IndexRange, *Node) {
	conjuncts := SubTrees(Normalize(n))
	rng := IndexRange{Attr: attr}
	var residual []*Node

	for _, c := range conjuncts {
		if consumed := tighten(&rng, c, slot, attr, env); consumed {
			continue
		}
		residual = append(residual, c)
	}

	switch len(residual) {
	case 0:
		return rng, nil
	case 1:
		return rng, residual[0]
	default:
		return rng, And(residual...)
	}
}

func tighten(rng *IndexRange, n *Node, slot, attr int, env arithmetic.Env) bool {
	if n.Kind != KindPredicate || !matchesProperty(n.LHS, slot, attr) {
		return false
	}

	if n.Op == OpIsNotNull {
		if !rng.HasEq && !rng.HasMin && !rng.HasMax {
			rng.NotNullOnly = true
		}
		return true
	}
	if !isOrderingOp(n.Op) || !n.RHS.IsConstant() {
		return false
	}

	bound := arithmetic.Evaluate(n.RHS, nil, env)

	switch n.Op {
	case OpEq:
		if rng.HasEq {
			if !value.Equal(rng.Eq, bound) {
				rng.Invalid = true
			}
		} else {
			rng.HasEq = true
			rng.Eq = bound
			rng.NotNullOnly = false
		}
	case OpGt, OpGe:
		tightenMin(rng, bound, n.Op == OpGt)
	case OpLt, OpLe:
		tightenMax(rng, bound, n.Op == OpLt)
	default:
		return false
	}

	checkCrossed(rng)
	return true
}

func tightenMin(rng *IndexRange, bound value.V, open bool) {
	if !rng.HasMin {
		rng.HasMin, rng.Min, rng.MinOpen = true, bound, open
		rng.NotNullOnly = false
		return
	}
	ord, nc := value.Cmp(bound, rng.Min)
	if nc != value.CmpOK {
		return
	}
	if ord > 0 || (ord == 0 && open && !rng.MinOpen) {
		rng.Min, rng.MinOpen = bound, open
	}
}

func tightenMax(rng *IndexRange, bound value.V, open bool) {
	if !rng.HasMax {
		rng.HasMax, rng.Max, rng.MaxOpen = true, bound, open
		rng.NotNullOnly = false
		return
	}
	ord, nc := value.Cmp(bound, rng.Max)
	if nc != value.CmpOK {
		return
	}
	if ord < 0 || (ord == 0 && open && !rng.MaxOpen) {
		rng.Max, rng.MaxOpen = bound, open
	}
}

// checkCrossed flips Invalid the moment the accumulated interval can no
// longer contain any value:
// min > max, or min == max with either side exclusive.
func checkCrossed(rng *IndexRange) {
	if !rng.HasMin || !rng.HasMax {
		return
	}
	ord, nc := value.Cmp(rng.Min, rng.Max)
	if nc != value.CmpOK {
		return
	}
	if ord > 0 || (ord == 0 && (rng.MinOpen || rng.MaxOpen)) {
		rng.Invalid = true
	}
}

func matchesProperty(n arithmetic.Node, slot, attr int) bool {
	return n.Kind == arithmetic.NodeProperty && n.Slot == slot && n.Attr == attr
}
