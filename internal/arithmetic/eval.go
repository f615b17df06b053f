package arithmetic

import (
	"fmt"

	"github.com/graphkernel/corequery/internal/record"
	"github.com/graphkernel/corequery/internal/value"
)

// Env supplies everything Evaluate needs beyond the Record itself:
// parameter lookup, property resolution against the live graph store,
// function dispatch, and a place to record runtime errors without
// aborting the whole expression.
type Env interface {
	Param(name string) (value.V, bool)
	NodeProperty(nodeID int64, attr int) (value.V, bool)
	EdgeProperty(edgeID int64, attr int) (value.V, bool)
	CallFunction(name string, args []value.V) (value.V, error)
	OnError(err error)
}

// EvalError wraps a runtime error with the node kind that raised it, so
// callers filtering/logging can distinguish arithmetic failures from
// function-call failures.
type EvalError struct {
	Kind NodeKind
	Err  error
}

func (e *EvalError) Error() string { return fmt.Sprintf("eval error: %v", e.Err) }
func (e *EvalError) Unwrap() error { return e.Err }

// Evaluate walks n against rec using env. Any operand error is recorded on env and the
// enclosing subtree collapses to null, but evaluation of sibling
// subtrees continues.
func Evaluate(n Node, rec *record.Record, env Env) value.V {
	switch n.Kind {
	case NodeConst:
		return n.Const
	case NodeParam:
		v, ok := env.Param(n.Param)
		if !ok {
			return value.Null()
		}
		return v
	case NodeVariable:
		return rec.Get(n.Slot)
	case NodeProperty:
		return evalProperty(n, rec, env)
	case NodeFunc:
		return evalFunc(n, rec, env)
	case NodeBinOp:
		return evalBinOp(n, rec, env)
	case NodeUnaryOp:
		return evalUnaryOp(n, rec, env)
	case NodeCase:
		return evalCase(n, rec, env)
	case NodeList:
		items := make([]value.V, len(n.Items))
		for i, it := range n.Items {
			items[i] = Evaluate(it, rec, env)
		}
		return value.ArraySelf(items)
	case NodeMap:
		m := value.NewAttrMap()
		for k, it := range n.MapItems {
			m.Set(k, Evaluate(it, rec, env))
		}
		return value.MapVal(m, value.AllocSelf)
	default:
		return value.Null()
	}
}

func evalProperty(n Node, rec *record.Record, env Env) value.V {
	slotVal := rec.Get(n.Slot)
	switch slotVal.Kind() {
	case value.KindNode:
		v, ok := env.NodeProperty(slotVal.NodeRef().ID, n.Attr)
		if !ok {
			return value.Null()
		}
		return v
	case value.KindEdge:
		v, ok := env.EdgeProperty(slotVal.EdgeRef().ID, n.Attr)
		if !ok {
			return value.Null()
		}
		return v
	case value.KindMap:
		// Property access on a map literal reads by the property's
		// interned name resolved back through env at a higher layer;
		// callers that reach this path pass attr-name maps already
		// projected into KindMap values, so fall through to null if
		// unavailable to keep this evaluator decoupled from name
		// resolution.
		return value.Null()
	case value.KindNull:
		return value.Null()
	default:
		env.OnError(&EvalError{Kind: NodeProperty, Err: fmt.Errorf("property access on non-entity value of kind %s", slotVal.Kind())})
		return value.Null()
	}
}

func evalFunc(n Node, rec *record.Record, env Env) value.V {
	args := make([]value.V, len(n.Args))
	for i, a := range n.Args {
		args[i] = Evaluate(a, rec, env)
	}
	v, err := env.CallFunction(n.Func, args)
	if err != nil {
		env.OnError(&EvalError{Kind: NodeFunc, Err: err})
		return value.Null()
	}
	return v
}

func evalBinOp(n Node, rec *record.Record, env Env) value.V {
	l := Evaluate(*n.Left, rec, env)
	r := Evaluate(*n.Right, rec, env)

	switch n.BinOp {
	case BinAdd:
		v, err := value.Add(l, r)
		if err != nil {
			env.OnError(&EvalError{Kind: NodeBinOp, Err: err})
			return value.Null()
		}
		return v
	case BinSub, BinMul, BinDiv, BinMod:
		v, err := value.Arith(binOpToArith(n.BinOp), l, r)
		if err != nil {
			env.OnError(&EvalError{Kind: NodeBinOp, Err: err})
			return value.Null()
		}
		return v
	case BinEq, BinNeq, BinLt, BinLe, BinGt, BinGe:
		return evalComparison(n.BinOp, l, r, env)
	default:
		env.OnError(&EvalError{Kind: NodeBinOp, Err: fmt.Errorf("unknown binary operator %q", n.BinOp)})
		return value.Null()
	}
}

func binOpToArith(op BinOpKind) value.BinOp {
	switch op {
	case BinSub:
		return value.OpSub
	case BinMul:
		return value.OpMul
	case BinDiv:
		return value.OpDiv
	case BinMod:
		return value.OpMod
	default:
		return value.OpAdd
	}
}

func evalComparison(op BinOpKind, l, r value.V, env Env) value.V {
	ord, nc := value.Cmp(l, r)

	switch nc {
	case value.CmpNull:
		// Any comparison involving null yields null, equality included;
		// only disjoint-kind = / <> get a definite false/true below.
		return value.Null()
	case value.CmpDisjoint:
		switch op {
		case BinEq:
			return value.Bool(false)
		case BinNeq:
			return value.Bool(true)
		default:
			env.OnError(&EvalError{Kind: NodeBinOp, Err: fmt.Errorf("type mismatch comparing %s and %s", l.Kind(), r.Kind())})
			return value.Null()
		}
	}

	switch op {
	case BinEq:
		return value.Bool(value.Equal(l, r))
	case BinNeq:
		return value.Bool(!value.Equal(l, r))
	case BinLt:
		return boolOrNull(nc, ord < 0)
	case BinLe:
		return boolOrNull(nc, ord <= 0)
	case BinGt:
		return boolOrNull(nc, ord > 0)
	case BinGe:
		return boolOrNull(nc, ord >= 0)
	default:
		return value.Null()
	}
}

func boolOrNull(nc value.NullCmp, b bool) value.V {
	if nc != value.CmpOK {
		return value.Null()
	}
	return value.Bool(b)
}

func evalUnaryOp(n Node, rec *record.Record, env Env) value.V {
	v := Evaluate(*n.Operand, rec, env)
	switch n.UnaryOp {
	case UnaryNeg:
		if v.IsNull() {
			return value.Null()
		}
		if !v.IsNumeric() {
			env.OnError(&EvalError{Kind: NodeUnaryOp, Err: fmt.Errorf("cannot negate %s", v.Kind())})
			return value.Null()
		}
		if v.Kind() == value.KindInt {
			return value.Int(-v.Int())
		}
		return value.Float(-v.Float())
	case UnaryNot:
		return value.Not(value.TriFromV(v)).V()
	default:
		return value.Null()
	}
}

func evalCase(n Node, rec *record.Record, env Env) value.V {
	for _, branch := range n.CaseBranches {
		cond := Evaluate(branch.When, rec, env)
		if value.TriFromV(cond) == value.TriTrue {
			return Evaluate(branch.Then, rec, env)
		}
	}
	if n.CaseElse != nil {
		return Evaluate(*n.CaseElse, rec, env)
	}
	return value.Null()
}
