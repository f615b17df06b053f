package arithmetic

import (
	"errors"
	"testing"

	"github.com/graphkernel/corequery/internal/record"
	"github.com/graphkernel/corequery/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnv struct {
	params map[string]value.V
	nodeProps map[int64]map[int]value.V
	edgeProps map[int64]map[int]value.V
	funcs   map[string]func([]value.V) (value.V, error)
	errs    []error
}

func newFakeEnv() *fakeEnv {
	return &fakeEnv{
		params:    map[string]value.V{},
		nodeProps: map[int64]map[int]value.V{},
		edgeProps: map[int64]map[int]value.V{},
		funcs:     map[string]func([]value.V) (value.V, error){},
	}
}

func (e *fakeEnv) Param(name string) (value.V, bool) { v, ok := e.params[name]; return v, ok }
func (e *fakeEnv) NodeProperty(id int64, attr int) (value.V, bool) {
	m, ok := e.nodeProps[id]
	if !ok {
		return value.Null(), false
	}
	v, ok := m[attr]
	return v, ok
}
func (e *fakeEnv) EdgeProperty(id int64, attr int) (value.V, bool) {
	m, ok := e.edgeProps[id]
	if !ok {
		return value.Null(), false
	}
	v, ok := m[attr]
	return v, ok
}
func (e *fakeEnv) CallFunction(name string, args []value.V) (value.V, error) {
	f, ok := e.funcs[name]
	if !ok {
		return value.Null(), errors.New("unknown function " + name)
	}
	return f(args)
}
func (e *fakeEnv) OnError(err error) { e.errs = append(e.errs, err) }

func TestEvaluateConstAndArith(t *testing.T) {
	env := newFakeEnv()
	rec := record.New(1)

	n := BinExpr(BinAdd, Const(value.Int(2)), Const(value.Int(3)))
	got := Evaluate(n, rec, env)
	assert.Equal(t, int64(5), got.Int())
	assert.Empty(t, env.errs)
}

func TestEvaluateDivideByZeroYieldsNullAndRecordsError(t *testing.T) {
	env := newFakeEnv()
	rec := record.New(1)

	n := BinExpr(BinDiv, Const(value.Int(1)), Const(value.Int(0)))
	got := Evaluate(n, rec, env)
	assert.True(t, got.IsNull())
	require.Len(t, env.errs, 1)
}

func TestEvaluatePropertyAccess(t *testing.T) {
	env := newFakeEnv()
	env.nodeProps[42] = map[int]value.V{7: value.StrSelf("alice")}
	rec := record.New(1)
	rec.Set(0, value.Node(value.NodeRef{ID: 42}), record.SlotNode)

	n := Property(0, 7)
	got := Evaluate(n, rec, env)
	assert.Equal(t, "alice", got.Str())
}

func TestEvaluatePropertyAccessOnScalarRecordsError(t *testing.T) {
	env := newFakeEnv()
	rec := record.New(1)
	rec.Set(0, value.Int(5), record.SlotScalar)

	n := Property(0, 7)
	got := Evaluate(n, rec, env)
	assert.True(t, got.IsNull())
	require.Len(t, env.errs, 1)
}

func TestEvaluateComparisonAndCase(t *testing.T) {
	env := newFakeEnv()
	rec := record.New(1)

	cmp := BinExpr(BinLt, Const(value.Int(1)), Const(value.Int(2)))
	assert.True(t, Evaluate(cmp, rec, env).Bool())

	nullEq := BinExpr(BinEq, Const(value.Null()), Const(value.Int(1)))
	assert.True(t, Evaluate(nullEq, rec, env).IsNull())

	caseNode := Node{
		Kind: NodeCase,
		CaseBranches: []CaseBranch{
			{When: Const(value.Bool(false)), Then: Const(value.Int(1))},
			{When: Const(value.Bool(true)), Then: Const(value.Int(2))},
		},
	}
	got := Evaluate(caseNode, rec, env)
	assert.Equal(t, int64(2), got.Int())
}

func TestEvaluateCaseElse(t *testing.T) {
	env := newFakeEnv()
	rec := record.New(1)
	elseNode := Const(value.StrSelf("none"))
	caseNode := Node{
		Kind: NodeCase,
		CaseBranches: []CaseBranch{
			{When: Const(value.Bool(false)), Then: Const(value.Int(1))},
		},
		CaseElse: &elseNode,
	}
	got := Evaluate(caseNode, rec, env)
	assert.Equal(t, "none", got.Str())
}

func TestEvaluateFunctionCall(t *testing.T) {
	env := newFakeEnv()
	env.funcs["upper"] = func(args []value.V) (value.V, error) {
		return value.StrSelf("ALICE"), nil
	}
	rec := record.New(1)
	n := Func("upper", Const(value.StrSelf("alice")))
	got := Evaluate(n, rec, env)
	assert.Equal(t, "ALICE", got.Str())
}

func TestEvaluateUnaryNegAndNot(t *testing.T) {
	env := newFakeEnv()
	rec := record.New(1)

	neg := UnaryExpr(UnaryNeg, Const(value.Int(5)))
	assert.Equal(t, int64(-5), Evaluate(neg, rec, env).Int())

	not := UnaryExpr(UnaryNot, Const(value.Bool(true)))
	assert.False(t, Evaluate(not, rec, env).Bool())

	notNull := UnaryExpr(UnaryNot, Const(value.Null()))
	assert.True(t, Evaluate(notNull, rec, env).IsNull())
}

func TestIsConstant(t *testing.T) {
	assert.True(t, Const(value.Int(1)).IsConstant())
	assert.True(t, Param("x").IsConstant())
	assert.False(t, Variable(0).IsConstant())
	assert.False(t, Property(0, 1).IsConstant())

	sum := BinExpr(BinAdd, Const(value.Int(1)), Variable(0))
	assert.False(t, sum.IsConstant())

	constSum := BinExpr(BinAdd, Const(value.Int(1)), Const(value.Int(2)))
	assert.True(t, constSum.IsConstant())
}
