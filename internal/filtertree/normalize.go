package filtertree

import (
	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/value"
)

// Normalize rewrites n in place (returning the possibly-new root) so
// that every ordering/equality predicate with a constant LHS and
// non-constant RHS is flipped to carry the constant on the right,
// matching the shape the index push-down pass (PushDownIndex) expects:
// `property OP constant`, never `constant OP property`.
func Normalize(n *Node) *Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindPredicate:
		if !isOrderingOp(n.Op) {
			return n
		}
		if n.LHS.IsConstant() && !n.RHS.IsConstant() {
			n.LHS, n.RHS = n.RHS, n.LHS
			n.Op = flipOp(n.Op)
		}
		return n
	default:
		for i, c := range n.Children {
			n.Children[i] = Normalize(c)
		}
		return n
	}
}

func isOrderingOp(op CompareOp) bool {
	switch op {
	case OpEq, OpNeq, OpLt, OpLe, OpGt, OpGe:
		return true
	default:
		return false
	}
}

// flipOp returns the operator that holds when both comparison operands
// are swapped: a < b becomes b > a.
func flipOp(op CompareOp) CompareOp {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	default:
		return op // Eq/Neq are symmetric
	}
}

// DeMorgan pushes NOT down to the leaves: NOT(AND(a,b)) -> OR(NOT a,
// NOT b), NOT(OR(a,b)) -> AND(NOT a, NOT b), NOT(NOT a) -> a, and a NOT
// over a leaf predicate is rewritten into the predicate's negated
// operator form where one exists.
func DeMorgan(n *Node) *Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindAnd, KindOr:
		for i, c := range n.Children {
			n.Children[i] = DeMorgan(c)
		}
		return n
	case KindNot:
		child := n.Children[0]
		switch child.Kind {
		case KindAnd:
			negated := make([]*Node, len(child.Children))
			for i, c := range child.Children {
				negated[i] = DeMorgan(Not(c))
			}
			return Or(negated...)
		case KindOr:
			negated := make([]*Node, len(child.Children))
			for i, c := range child.Children {
				negated[i] = DeMorgan(Not(c))
			}
			return And(negated...)
		case KindNot:
			return DeMorgan(child.Children[0])
		case KindPredicate:
			if negOp, ok := negateOp(child.Op); ok {
				return &Node{Kind: KindPredicate, Op: negOp, LHS: child.LHS, RHS: child.RHS}
			}
			return Not(child)
		case KindLiteral:
			return Literal(value.Not(child.Lit))
		default:
			return n
		}
	default:
		return n
	}
}

func negateOp(op CompareOp) (CompareOp, bool) {
	switch op {
	case OpEq:
		return OpNeq, true
	case OpNeq:
		return OpEq, true
	case OpIsNull:
		return OpIsNotNull, true
	case OpIsNotNull:
		return OpIsNull, true
	// Lt/Le/Gt/Ge have no safe negation under three-valued logic:
	// NOT(a < b) is not a >= b when either operand is null, so these
	// stay wrapped in an explicit Not node.
	default:
		return 0, false
	}
}

// FoldConstants evaluates every fully-constant subtree (IsConstant())
// to a KindLiteral leaf using env for parameter lookups, collapsing
// And/Or short-circuits along the way.
func FoldConstants(n *Node, env arithmetic.Env) *Node {
	if n == nil {
		return nil
	}
	if n.Kind == KindLiteral {
		return n
	}
	if n.Kind == KindPredicate && n.IsConstant() {
		return Literal(Apply(n, nil, env))
	}

	switch n.Kind {
	case KindNot:
		child := FoldConstants(n.Children[0], env)
		if child.Kind == KindLiteral {
			return Literal(value.Not(child.Lit))
		}
		return Not(child)
	case KindAnd:
		folded := make([]*Node, 0, len(n.Children))
		for _, c := range n.Children {
			fc := FoldConstants(c, env)
			if fc.Kind == KindLiteral && fc.Lit == value.TriFalse {
				return Literal(value.TriFalse)
			}
			if fc.Kind == KindLiteral && fc.Lit == value.TriTrue {
				continue
			}
			folded = append(folded, fc)
		}
		if len(folded) == 0 {
			return Literal(value.TriTrue)
		}
		if len(folded) == 1 {
			return folded[0]
		}
		return And(folded...)
	case KindOr:
		folded := make([]*Node, 0, len(n.Children))
		for _, c := range n.Children {
			fc := FoldConstants(c, env)
			if fc.Kind == KindLiteral && fc.Lit == value.TriTrue {
				return Literal(value.TriTrue)
			}
			if fc.Kind == KindLiteral && fc.Lit == value.TriFalse {
				continue
			}
			folded = append(folded, fc)
		}
		if len(folded) == 0 {
			return Literal(value.TriFalse)
		}
		if len(folded) == 1 {
			return folded[0]
		}
		return Or(folded...)
	default:
		return n
	}
}

// SubTrees breaks a top-level conjunction into its independent
// conjuncts. A
// non-AND root is returned as the single element of a one-node slice.
func SubTrees(n *Node) []*Node {
	if n == nil {
		return nil
	}
	if n.Kind != KindAnd {
		return []*Node{n}
	}
	var out []*Node
	for _, c := range n.Children {
		out = append(out, SubTrees(c)...)
	}
	return out
}
