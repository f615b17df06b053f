// Package arithmetic implements the arithmetic-expression tree and its
// evaluator against a Record.
// This is the compiled, alias-resolved counterpart of ast.Expr: by the
// time a tree reaches this package, every variable/property reference
// has been bound to a record slot and attribute id.
package arithmetic

import "github.com/graphkernel/corequery/internal/value"

// NodeKind tags one arithmetic-tree node.
type NodeKind int

const (
	NodeConst NodeKind = iota
	NodeParam
	NodeVariable  // a whole record slot (node, edge, or scalar)
	NodeProperty  // property access on a node/edge slot
	NodeFunc
	NodeBinOp
	NodeUnaryOp
	NodeCase
	NodeList
	NodeMap
)

// BinOpKind is the set of binary operators the tree supports: both
// arithmetic (+, -, *, /, %) and comparison (=, <>, <, <=, >, >=).
// Comparison operators are included here (rather than only in the
// filter tree) because arithmetic expressions can themselves be
// boolean-valued, e.g. `n.a = n.b` used inside a CASE branch.
type BinOpKind string

const (
	BinAdd    BinOpKind = "+"
	BinSub    BinOpKind = "-"
	BinMul    BinOpKind = "*"
	BinDiv    BinOpKind = "/"
	BinMod    BinOpKind = "%"
	BinEq     BinOpKind = "="
	BinNeq    BinOpKind = "<>"
	BinLt     BinOpKind = "<"
	BinLe     BinOpKind = "<="
	BinGt     BinOpKind = ">"
	BinGe     BinOpKind = ">="
)

// UnaryOpKind is the set of unary operators.
type UnaryOpKind string

const (
	UnaryNeg UnaryOpKind = "-"
	UnaryNot UnaryOpKind = "not"
)

// CaseBranch is one WHEN/THEN pair of a Node's Case.
type CaseBranch struct {
	When Node
	Then Node
}

// Node is one arithmetic-tree node.
type Node struct {
	Kind NodeKind

	Const value.V // NodeConst
	Param string  // NodeParam: looked up in the query's parameter map

	Slot int // NodeVariable / NodeProperty: record slot index
	Attr int // NodeProperty: attr_id within the slot's entity

	Func string // NodeFunc
	Args []Node

	BinOp BinOpKind // NodeBinOp
	Left  *Node
	Right *Node

	UnaryOp UnaryOpKind // NodeUnaryOp
	Operand *Node

	CaseBranches []CaseBranch // NodeCase
	CaseElse     *Node

	Items    []Node          // NodeList
	MapItems map[string]Node // NodeMap
}

func Const(v value.V) Node                     { return Node{Kind: NodeConst, Const: v} }
func Param(name string) Node                   { return Node{Kind: NodeParam, Param: name} }
func Variable(slot int) Node                   { return Node{Kind: NodeVariable, Slot: slot} }
func Property(slot, attr int) Node             { return Node{Kind: NodeProperty, Slot: slot, Attr: attr} }
func Func(name string, args ...Node) Node      { return Node{Kind: NodeFunc, Func: name, Args: args} }
func BinExpr(op BinOpKind, l, r Node) Node      { return Node{Kind: NodeBinOp, BinOp: op, Left: &l, Right: &r} }
func UnaryExpr(op UnaryOpKind, operand Node) Node {
	o := operand
	return Node{Kind: NodeUnaryOp, UnaryOp: op, Operand: &o}
}
func List(items ...Node) Node { return Node{Kind: NodeList, Items: items} }

// IsConstant reports whether the subtree rooted at n contains no
// variable/property reference — used by filter-tree constant folding
// to decide whether a subtree can be evaluated once up
// front rather than per record. Parameters count as constant: their
// value is fixed for the whole query.
func (n Node) IsConstant() bool {
	switch n.Kind {
	case NodeConst, NodeParam:
		return true
	case NodeVariable, NodeProperty:
		return false
	case NodeFunc:
		for _, a := range n.Args {
			if !a.IsConstant() {
				return false
			}
		}
		return true
	case NodeBinOp:
		return n.Left.IsConstant() && n.Right.IsConstant()
	case NodeUnaryOp:
		return n.Operand.IsConstant()
	case NodeCase:
		for _, b := range n.CaseBranches {
			if !b.When.IsConstant() || !b.Then.IsConstant() {
				return false
			}
		}
		if n.CaseElse != nil && !n.CaseElse.IsConstant() {
			return false
		}
		return true
	case NodeList:
		for _, it := range n.Items {
			if !it.IsConstant() {
				return false
			}
		}
		return true
	case NodeMap:
		for _, it := range n.MapItems {
			if !it.IsConstant() {
				return false
			}
		}
		return true
	default:
		return false
	}
}
