// Package filtertree implements the boolean predicate tree that backs
// WHERE clauses. A tree is built once at plan
// time from the AST's Where.Condition and then evaluated once per
// candidate Record by the Filter operator.
//
// The tree has exactly three connective kinds (And, Or, Not) over a set
// of leaf Predicate nodes; each Predicate compares two compiled
// arithmetic.Node expressions using three-valued logic, matching the
// query language's SQL-style null semantics.
package filtertree

import (
	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/value"
)

// Kind tags one filter-tree node.
type Kind int

const (
	KindAnd Kind = iota
	KindOr
	KindNot
	KindPredicate
	// KindLiteral is produced by constant folding: a subtree that
	// evaluated to a fixed boolean/null at fold time, carried forward so
	// the rest of the tree doesn't need to special-case "already
	// decided" nodes.
	KindLiteral
)

// CompareOp is the set of leaf-level comparison operators a Predicate
// can carry. Equality/ordering mirror arithmetic's comparison
// BinOpKinds but are evaluated here (evalOrderedCompare); the rest
// (IsNull, In, string matching) have no arithmetic counterpart and are
// evaluated directly against the operands.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpIsNull
	OpIsNotNull
	OpIn
	OpStartsWith
	OpEndsWith
	OpContains
	// OpHasLabel matches a node's label set against a single label name
	// carried in RHS, used for a multi-label pattern's second and later
	// labels and for a post-Expand destination label check.
	OpHasLabel
)

// Node is one filter-tree node. Connectives (And/Or/Not) use Children;
// Predicate uses LHS/RHS/Op and leaves Children empty.
type Node struct {
	Kind     Kind
	Children []*Node

	Op  CompareOp
	LHS arithmetic.Node
	RHS arithmetic.Node // unused for OpIsNull/OpIsNotNull

	Lit value.Tri // KindLiteral only
}

func And(children ...*Node) *Node { return &Node{Kind: KindAnd, Children: children} }
func Or(children ...*Node) *Node  { return &Node{Kind: KindOr, Children: children} }
func Not(child *Node) *Node       { return &Node{Kind: KindNot, Children: []*Node{child}} }

func Predicate(op CompareOp, lhs, rhs arithmetic.Node) *Node {
	return &Node{Kind: KindPredicate, Op: op, LHS: lhs, RHS: rhs}
}

// HasLabel builds a predicate testing whether the node entity operand
// carries label.
func HasLabel(operand arithmetic.Node, label string) *Node {
	return &Node{Kind: KindPredicate, Op: OpHasLabel, LHS: operand, RHS: arithmetic.Const(value.StrSelf(label))}
}

func IsNull(operand arithmetic.Node) *Node {
	return &Node{Kind: KindPredicate, Op: OpIsNull, LHS: operand}
}

func IsNotNull(operand arithmetic.Node) *Node {
	return &Node{Kind: KindPredicate, Op: OpIsNotNull, LHS: operand}
}

// Literal builds a KindLiteral leaf, Tri already decided.
func Literal(t value.Tri) *Node {
	return &Node{Kind: KindLiteral, Lit: t}
}

// IsConstant reports whether the whole subtree can be decided without a
// Record, i.e. every leaf's operands are arithmetic-constant.
func (n *Node) IsConstant() bool {
	switch n.Kind {
	case KindLiteral:
		return true
	case KindPredicate:
		if n.Op == OpIsNull || n.Op == OpIsNotNull {
			return n.LHS.IsConstant()
		}
		return n.LHS.IsConstant() && n.RHS.IsConstant()
	default:
		for _, c := range n.Children {
			if !c.IsConstant() {
				return false
			}
		}
		return true
	}
}

// Clone deep-copies the tree structure (not the arithmetic.Node leaves,
// which are themselves immutable value trees safe to share).
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Kind: n.Kind, Op: n.Op, LHS: n.LHS, RHS: n.RHS, Lit: n.Lit}
	if n.Children != nil {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}
