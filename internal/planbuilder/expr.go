package planbuilder

import (
	"fmt"

	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/ast"
	"github.com/graphkernel/corequery/internal/filtertree"
	"github.com/graphkernel/corequery/internal/value"
)

// compileExpr lowers one AST expression into the alias-resolved
// arithmetic tree arithmetic.Evaluate runs against a Record. Property and variable
// references are resolved against b's scope; an unresolved variable is
// a builder-time error, not a runtime null, since the query language's
// scoping rules are enforced by the (external) parser/binder before the
// AST ever reaches this package.
func (b *builder) compileExpr(e *ast.Expr) (arithmetic.Node, error) {
	if e == nil {
		return arithmetic.Const(value.Null()), nil
	}
	switch e.Kind {
	case ast.ExprLiteral:
		return arithmetic.Const(literalValue(e.Literal)), nil
	case ast.ExprParameter:
		return arithmetic.Param(e.Param), nil
	case ast.ExprVariable:
		slot, ok := b.scope.lookup(e.Variable)
		if !ok {
			return arithmetic.Node{}, fmt.Errorf("planbuilder: unbound variable %q", e.Variable)
		}
		return arithmetic.Variable(slot), nil
	case ast.ExprPropertyAccess:
		base, err := b.compileExpr(e.Base)
		if err != nil {
			return arithmetic.Node{}, err
		}
		if base.Kind != arithmetic.NodeVariable {
			return arithmetic.Node{}, fmt.Errorf("planbuilder: property access base must be a bound variable, got kind %d", base.Kind)
		}
		return arithmetic.Property(base.Slot, b.store.Ctx.AttrID(e.Property)), nil
	case ast.ExprFunctionCall:
		args := make([]arithmetic.Node, len(e.Args))
		for i := range e.Args {
			a, err := b.compileExpr(&e.Args[i])
			if err != nil {
				return arithmetic.Node{}, err
			}
			args[i] = a
		}
		return arithmetic.Func(e.Func, args...), nil
	case ast.ExprBinary:
		return b.compileBinary(e)
	case ast.ExprUnary:
		operand := e.Right
		if operand == nil {
			operand = e.Left
		}
		n, err := b.compileExpr(operand)
		if err != nil {
			return arithmetic.Node{}, err
		}
		return arithmetic.UnaryExpr(arithmetic.UnaryOpKind(e.Op), n), nil
	case ast.ExprCase:
		branches := make([]arithmetic.CaseBranch, len(e.CaseBranches))
		for i, cb := range e.CaseBranches {
			when, err := b.compileExpr(&cb.When)
			if err != nil {
				return arithmetic.Node{}, err
			}
			then, err := b.compileExpr(&cb.Then)
			if err != nil {
				return arithmetic.Node{}, err
			}
			branches[i] = arithmetic.CaseBranch{When: when, Then: then}
		}
		var elseNode *arithmetic.Node
		if e.CaseElse != nil {
			n, err := b.compileExpr(e.CaseElse)
			if err != nil {
				return arithmetic.Node{}, err
			}
			elseNode = &n
		}
		return arithmetic.Node{Kind: arithmetic.NodeCase, CaseBranches: branches, CaseElse: elseNode}, nil
	case ast.ExprList:
		items := make([]arithmetic.Node, len(e.ListItems))
		for i := range e.ListItems {
			n, err := b.compileExpr(&e.ListItems[i])
			if err != nil {
				return arithmetic.Node{}, err
			}
			items[i] = n
		}
		return arithmetic.List(items...), nil
	case ast.ExprMap:
		items := make(map[string]arithmetic.Node, len(e.MapItems))
		for k, v := range e.MapItems {
			vv := v
			n, err := b.compileExpr(&vv)
			if err != nil {
				return arithmetic.Node{}, err
			}
			items[k] = n
		}
		return arithmetic.Node{Kind: arithmetic.NodeMap, MapItems: items}, nil
	default:
		return arithmetic.Node{}, fmt.Errorf("planbuilder: unhandled expression kind %d", e.Kind)
	}
}

func literalValue(lit any) value.V {
	switch v := lit.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(v)
	case int64:
		return value.Int(v)
	case int:
		return value.Int(int64(v))
	case float64:
		return value.Float(v)
	case string:
		return value.StrSelf(v)
	default:
		return value.Null()
	}
}

// These are the query language's boolean/string operator tokens shared
// by the two compiled trees (arithmetic for value-typed uses, filtertree
// for a WHERE clause's top-level boolean shape).
const (
	tokAnd        = "and"
	tokOr         = "or"
	tokXor        = "xor"
	tokIsNull     = "is null"
	tokIsNotNull  = "is not null"
	tokIn         = "in"
	tokStartsWith = "starts with"
	tokEndsWith   = "ends with"
	tokContains   = "contains"
)

func (b *builder) compileBinary(e *ast.Expr) (arithmetic.Node, error) {
	switch e.Op {
	case tokAnd, tokOr, tokXor, tokIn, tokStartsWith, tokEndsWith, tokContains:
		// Boolean connectives in value position (e.g. inside a CASE
		// branch) evaluate through the function table, which implements
		// their three-valued semantics; the filter tree handles the same
		// tokens when they appear as a WHERE clause's top-level shape.
		l, err := b.compileExpr(e.Left)
		if err != nil {
			return arithmetic.Node{}, err
		}
		r, err := b.compileExpr(e.Right)
		if err != nil {
			return arithmetic.Node{}, err
		}
		return arithmetic.Func(e.Op, l, r), nil
	default:
		l, err := b.compileExpr(e.Left)
		if err != nil {
			return arithmetic.Node{}, err
		}
		r, err := b.compileExpr(e.Right)
		if err != nil {
			return arithmetic.Node{}, err
		}
		return arithmetic.BinExpr(arithmetic.BinOpKind(e.Op), l, r), nil
	}
}

// compileCondition lowers a WHERE/ON MATCH-style boolean expression
// into the filter tree, recursing through and/or/not at the
// AST level so the resulting tree keeps its connective shape instead of
// everything flattening into opaque function calls.
func (b *builder) compileCondition(e *ast.Expr) (*filtertree.Node, error) {
	if e == nil {
		return filtertree.Literal(value.TriTrue), nil
	}
	if e.Kind == ast.ExprBinary {
		switch e.Op {
		case tokAnd:
			l, err := b.compileCondition(e.Left)
			if err != nil {
				return nil, err
			}
			r, err := b.compileCondition(e.Right)
			if err != nil {
				return nil, err
			}
			return filtertree.And(l, r), nil
		case tokOr:
			l, err := b.compileCondition(e.Left)
			if err != nil {
				return nil, err
			}
			r, err := b.compileCondition(e.Right)
			if err != nil {
				return nil, err
			}
			return filtertree.Or(l, r), nil
		}
		if op, ok := compareOp(e.Op); ok {
			l, err := b.compileExpr(e.Left)
			if err != nil {
				return nil, err
			}
			r, err := b.compileExpr(e.Right)
			if err != nil {
				return nil, err
			}
			return filtertree.Predicate(op, l, r), nil
		}
	}
	if e.Kind == ast.ExprUnary {
		switch e.Op {
		case "not":
			operand := e.Right
			if operand == nil {
				operand = e.Left
			}
			c, err := b.compileCondition(operand)
			if err != nil {
				return nil, err
			}
			return filtertree.Not(c), nil
		case tokIsNull, tokIsNotNull:
			operand := e.Right
			if operand == nil {
				operand = e.Left
			}
			n, err := b.compileExpr(operand)
			if err != nil {
				return nil, err
			}
			if e.Op == tokIsNull {
				return filtertree.IsNull(n), nil
			}
			return filtertree.IsNotNull(n), nil
		}
	}
	// Fallback: a boolean-valued expression (function call, parameter,
	// variable) compared against true, matching the query language's
	// "any expression can appear in a WHERE clause" rule.
	n, err := b.compileExpr(e)
	if err != nil {
		return nil, err
	}
	return filtertree.Predicate(filtertree.OpEq, n, arithmetic.Const(value.Bool(true))), nil
}

func compareOp(tok string) (filtertree.CompareOp, bool) {
	switch tok {
	case "=":
		return filtertree.OpEq, true
	case "<>", "!=":
		return filtertree.OpNeq, true
	case "<":
		return filtertree.OpLt, true
	case "<=":
		return filtertree.OpLe, true
	case ">":
		return filtertree.OpGt, true
	case ">=":
		return filtertree.OpGe, true
	case tokIn:
		return filtertree.OpIn, true
	case tokStartsWith:
		return filtertree.OpStartsWith, true
	case tokEndsWith:
		return filtertree.OpEndsWith, true
	case tokContains:
		return filtertree.OpContains, true
	default:
		return 0, false
	}
}
