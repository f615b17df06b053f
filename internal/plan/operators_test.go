package plan

import (
	"testing"

	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/filtertree"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/record"
	"github.com/graphkernel/corequery/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource yields a fixed sequence of rows, writing each row's values
// into consecutive slots starting at baseSlot.
type stubSource struct {
	base
	rows     [][]value.V
	baseSlot int
	pos      int
}

func newStubSource(baseSlot int, rows [][]value.V) *stubSource {
	return &stubSource{base: base{cardinality: CardinalityMany}, baseSlot: baseSlot, rows: rows}
}

func (s *stubSource) Init(ctx *Ctx) { s.pos = 0 }
func (s *stubSource) Reset()        { s.pos = 0 }

func (s *stubSource) Consume(rec *record.Record) Status {
	if s.pos >= len(s.rows) {
		return StatusEOF
	}
	for i, v := range s.rows[s.pos] {
		rec.Set(s.baseSlot+i, v, record.SlotScalar)
	}
	s.pos++
	return StatusRecord
}

func newTestCtx() *Ctx {
	return NewCtx(graphstore.New(), nil, nil, nil, nil)
}

func drain(t *testing.T, op Operator, ctx *Ctx, width int) [][]value.V {
	t.Helper()
	op.Init(ctx)
	rec := record.New(width)
	var out [][]value.V
	for {
		st := op.Consume(rec)
		require.NotEqual(t, StatusAborted, st, "unexpected abort: %v", ctx.Err())
		if st == StatusEOF {
			return out
		}
		row := make([]value.V, width)
		for i := 0; i < width; i++ {
			row[i] = rec.Get(i)
		}
		out = append(out, row)
	}
}

func TestFilterKeepsOnlyTrueRows(t *testing.T) {
	src := newStubSource(0, [][]value.V{{value.Int(3)}, {value.Int(7)}, {value.Null()}})
	tree := filtertree.Predicate(filtertree.OpGt, arithmetic.Variable(0), arithmetic.Const(value.Int(5)))
	rows := drain(t, NewFilter(src, tree), newTestCtx(), 1)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(7), rows[0][0].Int())
}

func TestSortOrdersByCompositeKeyWithDirections(t *testing.T) {
	src := newStubSource(0, [][]value.V{
		{value.Int(2), value.StrSelf("b")},
		{value.Int(1), value.StrSelf("a")},
		{value.Int(2), value.StrSelf("a")},
	})
	op := NewSort(src, []SortKey{{Slot: 0}, {Slot: 1, Descending: true}})
	rows := drain(t, op, newTestCtx(), 2)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1), rows[0][0].Int())
	assert.Equal(t, "b", rows[1][1].Str())
	assert.Equal(t, "a", rows[2][1].Str())
}

func TestLimitAndSkipCounters(t *testing.T) {
	mk := func() Operator {
		return newStubSource(0, [][]value.V{{value.Int(1)}, {value.Int(2)}, {value.Int(3)}})
	}
	rows := drain(t, NewLimit(mk(), 2), newTestCtx(), 1)
	require.Len(t, rows, 2)

	rows = drain(t, NewSkip(mk(), 2), newTestCtx(), 1)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), rows[0][0].Int())
}

func TestDistinctDropsDuplicateTuples(t *testing.T) {
	src := newStubSource(0, [][]value.V{
		{value.Int(1)}, {value.Int(2)}, {value.Int(1)}, {value.Float(1.0)},
	})
	rows := drain(t, NewDistinct(src, []int{0}), newTestCtx(), 1)
	// 1 and 1.0 compare equal, so they collapse into one row.
	require.Len(t, rows, 2)
}

func TestAggregateGroupBySumAndCount(t *testing.T) {
	src := newStubSource(0, [][]value.V{
		{value.StrSelf("a"), value.Int(1)},
		{value.StrSelf("a"), value.Int(2)},
		{value.StrSelf("b"), value.Int(3)},
	})
	arg := arithmetic.Variable(1)
	op := NewAggregate(src,
		[]arithmetic.Node{arithmetic.Variable(0)}, []int{2},
		[]AggItem{
			{Arg: &arg, Func: AggSum, Slot: 3},
			{Func: AggCount, Slot: 4},
		})
	rows := drain(t, op, newTestCtx(), 5)
	require.Len(t, rows, 2)

	byKey := map[string][]value.V{}
	for _, r := range rows {
		byKey[r[2].Str()] = r
	}
	assert.Equal(t, int64(3), byKey["a"][3].Int())
	assert.Equal(t, int64(2), byKey["a"][4].Int())
	assert.Equal(t, int64(3), byKey["b"][3].Int())
	assert.Equal(t, int64(1), byKey["b"][4].Int())
}

func TestAggregateCountSkipsScalarNull(t *testing.T) {
	src := newStubSource(0, [][]value.V{
		{value.Int(1)}, {value.Null()}, {value.Int(2)},
	})
	arg := arithmetic.Variable(0)
	op := NewAggregate(src, nil, nil, []AggItem{{Arg: &arg, Func: AggCount, Slot: 1}})
	rows := drain(t, op, newTestCtx(), 2)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0][1].Int())
}

func TestAggregateDistinctSum(t *testing.T) {
	src := newStubSource(0, [][]value.V{
		{value.Int(5)}, {value.Int(5)}, {value.Int(2)},
	})
	arg := arithmetic.Variable(0)
	op := NewAggregate(src, nil, nil, []AggItem{{Arg: &arg, Func: AggSum, Distinct: true, Slot: 1}})
	rows := drain(t, op, newTestCtx(), 2)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(7), rows[0][1].Int())
}

func TestAggregateCollectPersistsValues(t *testing.T) {
	src := newStubSource(0, [][]value.V{
		{value.StrVolatile("x")}, {value.StrVolatile("y")},
	})
	arg := arithmetic.Variable(0)
	op := NewAggregate(src, nil, nil, []AggItem{{Arg: &arg, Func: AggCollect, Slot: 1}})
	rows := drain(t, op, newTestCtx(), 2)
	require.Len(t, rows, 1)
	arr := rows[0][1].Array()
	require.Len(t, arr, 2)
	assert.Equal(t, value.AllocSelf, arr[0].Alloc())
}

func TestUnwindArrayNullAndScalar(t *testing.T) {
	src := newStubSource(0, [][]value.V{
		{value.ArraySelf([]value.V{value.Int(1), value.Int(2)})},
		{value.Null()},
		{value.Int(9)},
	})
	op := NewUnwind(src, arithmetic.Variable(0), 1)
	rows := drain(t, op, newTestCtx(), 2)
	// array yields two rows, null yields none, scalar yields one.
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1), rows[0][1].Int())
	assert.Equal(t, int64(2), rows[1][1].Int())
	assert.Equal(t, int64(9), rows[2][1].Int())
}

func TestApplyDrivesRHSPerLHSRow(t *testing.T) {
	lhs := newStubSource(0, [][]value.V{{value.Int(1)}, {value.Int(2)}})
	rhs := newStubSource(1, [][]value.V{{value.StrSelf("x")}, {value.StrSelf("y")}})
	rows := drain(t, NewApply(lhs, rhs), newTestCtx(), 2)
	require.Len(t, rows, 4)
	assert.Equal(t, int64(1), rows[0][0].Int())
	assert.Equal(t, "x", rows[0][1].Str())
	assert.Equal(t, int64(2), rows[2][0].Int())
}

func TestSemiApplyAndAntiSemiApply(t *testing.T) {
	mkLHS := func() Operator {
		return newStubSource(0, [][]value.V{{value.Int(1)}, {value.Int(2)}})
	}
	nonEmpty := func() Operator { return newStubSource(1, [][]value.V{{value.Bool(true)}}) }
	empty := func() Operator { return newStubSource(1, nil) }

	rows := drain(t, NewSemiApply(mkLHS(), nonEmpty(), false), newTestCtx(), 2)
	assert.Len(t, rows, 2)

	rows = drain(t, NewSemiApply(mkLHS(), empty(), false), newTestCtx(), 2)
	assert.Empty(t, rows)

	rows = drain(t, NewAntiSemiApply(mkLHS(), empty()), newTestCtx(), 2)
	assert.Len(t, rows, 2)
}

func TestConcatYieldsAllChildrenInOrder(t *testing.T) {
	a := newStubSource(0, [][]value.V{{value.Int(1)}})
	b := newStubSource(0, [][]value.V{{value.Int(2)}})
	rows := drain(t, NewConcat([]Operator{a, b}), newTestCtx(), 1)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0][0].Int())
	assert.Equal(t, int64(2), rows[1][0].Int())
}

func TestExpandTraversesOneHop(t *testing.T) {
	ctx := newTestCtx()
	store := ctx.Store
	rel := store.Ctx.RelTypeID("R")
	a := store.CreateNode(nil)
	b := store.CreateNode(nil)
	eid := store.CreateEdge(a, b, rel)

	src := newStubSource(0, [][]value.V{{value.Node(value.NodeRef{ID: a})}})
	op := NewExpand(src, 0, 1, 2, []graphstore.SchemaID{rel}, graphstore.Outgoing)
	rows := drain(t, op, ctx, 3)
	require.Len(t, rows, 1)
	assert.Equal(t, eid, rows[0][1].EdgeRef().ID)
	assert.Equal(t, b, rows[0][2].NodeRef().ID)
}

func TestVarLengthExpandRespectsHopBoundsAndCycles(t *testing.T) {
	ctx := newTestCtx()
	store := ctx.Store
	rel := store.Ctx.RelTypeID("R")
	a := store.CreateNode(nil)
	b := store.CreateNode(nil)
	c := store.CreateNode(nil)
	store.CreateEdge(a, b, rel)
	store.CreateEdge(b, c, rel)
	store.CreateEdge(c, a, rel) // cycle back to a

	src := newStubSource(0, [][]value.V{{value.Node(value.NodeRef{ID: a})}})
	op := NewVarLengthExpand(src, 0, 1, 2, []graphstore.SchemaID{rel}, graphstore.Outgoing, 1, 3)
	rows := drain(t, op, ctx, 3)

	// a->b, a->b->c; the third hop would revisit a and is eliminated.
	require.Len(t, rows, 2)
	dsts := []int64{rows[0][1].NodeRef().ID, rows[1][1].NodeRef().ID}
	assert.ElementsMatch(t, []int64{b, c}, dsts)
}

func TestCreateBuffersThenCommits(t *testing.T) {
	ctx := newTestCtx()
	name := ctx.Store.Ctx.AttrID("name")
	label := ctx.Store.Ctx.LabelID("P")

	op := NewCreate(nil, []CreateNodeSpec{{
		Slot:   0,
		Labels: []graphstore.SchemaID{label},
		Props:  []PropSpec{{AttrID: name, Value: arithmetic.Const(value.StrSelf("x"))}},
	}}, nil)
	rows := drain(t, op, ctx, 1)
	require.Len(t, rows, 1)

	assert.EqualValues(t, 1, ctx.Stats.NodesCreated)
	assert.EqualValues(t, 1, ctx.Stats.PropertiesSet)
	assert.EqualValues(t, 1, ctx.Stats.LabelsAdded)
	assert.EqualValues(t, 1, ctx.Store.NodeCount())
	assert.Equal(t, 1, ctx.Undo.Len())

	id := rows[0][0].NodeRef().ID
	v, ok := ctx.Store.GetNode(id).Attrs.Get(name)
	require.True(t, ok)
	assert.Equal(t, "x", v.Str())
}

func TestDeleteCascadesAndLogsUndo(t *testing.T) {
	ctx := newTestCtx()
	store := ctx.Store
	rel := store.Ctx.RelTypeID("R")
	a := store.CreateNode(nil)
	b := store.CreateNode(nil)
	store.CreateEdge(a, b, rel)

	src := newStubSource(0, [][]value.V{{value.Node(value.NodeRef{ID: a})}})
	rows := drain(t, NewDelete(src, []int{0}, nil), ctx, 1)
	require.Len(t, rows, 1)

	assert.Nil(t, store.GetNode(a))
	assert.EqualValues(t, 1, ctx.Stats.NodesDeleted)
	assert.EqualValues(t, 1, ctx.Stats.RelationshipsDeleted)
	// one delete_edge entry plus one delete_node entry
	assert.Equal(t, 2, ctx.Undo.Len())
}
