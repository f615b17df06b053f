package plan

import (
	"testing"

	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeCreateDeduplicatesByFingerprint(t *testing.T) {
	ctx := newTestCtx()
	city := ctx.Store.Ctx.LabelID("City")
	name := ctx.Store.Ctx.AttrID("name")

	src := newStubSource(0, [][]value.V{
		{value.StrSelf("oslo")}, {value.StrSelf("oslo")}, {value.StrSelf("bergen")},
	})
	op := NewMergeCreate(src, []CreateNodeSpec{{
		Slot:   1,
		Labels: []graphstore.SchemaID{city},
		Props:  []PropSpec{{AttrID: name, Value: arithmetic.Variable(0)}},
	}}, nil, nil, nil)

	rows := drain(t, op, ctx, 2)
	require.Len(t, rows, 3)
	assert.EqualValues(t, 2, ctx.Stats.NodesCreated)
	assert.EqualValues(t, 1, ctx.Stats.LabelsAdded)
	assert.EqualValues(t, 2, ctx.Store.NodeCount())

	// The duplicate row rebinds the first oslo node rather than a copy.
	assert.Equal(t, rows[0][1].NodeRef().ID, rows[1][1].NodeRef().ID)
	assert.NotEqual(t, rows[0][1].NodeRef().ID, rows[2][1].NodeRef().ID)
}

func TestMergeCreateMatchesExistingNode(t *testing.T) {
	ctx := newTestCtx()
	city := ctx.Store.Ctx.LabelID("City")
	name := ctx.Store.Ctx.AttrID("name")
	existing := ctx.Store.CreateNode([]graphstore.SchemaID{city})
	ctx.Store.SetNodeAttr(existing, name, value.StrSelf("oslo"))

	src := newStubSource(0, [][]value.V{{value.StrSelf("oslo")}})
	op := NewMergeCreate(src, []CreateNodeSpec{{
		Slot:   1,
		Labels: []graphstore.SchemaID{city},
		Props:  []PropSpec{{AttrID: name, Value: arithmetic.Variable(0)}},
	}}, nil, nil, nil)

	rows := drain(t, op, ctx, 2)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 0, ctx.Stats.NodesCreated)
	assert.Equal(t, existing, rows[0][1].NodeRef().ID)
}

func TestMergeCreateDistinctEndpointsGetDistinctEdges(t *testing.T) {
	ctx := newTestCtx()
	store := ctx.Store
	rel := store.Ctx.RelTypeID("LIVES")
	city := store.Ctx.LabelID("City")
	a := store.CreateNode(nil)
	b := store.CreateNode(nil)

	src := newStubSource(0, [][]value.V{
		{value.Node(value.NodeRef{ID: a})},
		{value.Node(value.NodeRef{ID: b})},
	})
	op := NewMergeCreate(src,
		[]CreateNodeSpec{{Slot: 1, Labels: []graphstore.SchemaID{city}}},
		[]CreateEdgeSpec{{Slot: 2, SrcSlot: 0, DstSlot: 1, RelType: rel}},
		nil, nil)

	rows := drain(t, op, ctx, 3)
	require.Len(t, rows, 2)
	// Each distinct source endpoint merges its own fresh pattern.
	assert.EqualValues(t, 2, ctx.Stats.NodesCreated)
	assert.EqualValues(t, 2, ctx.Stats.RelationshipsCreated)
}

func TestPathBuildMaterializesNamedPath(t *testing.T) {
	ctx := newTestCtx()
	src := newStubSource(0, [][]value.V{{
		value.Node(value.NodeRef{ID: 1}),
		value.Edge(value.EdgeRef{ID: 10, Src: 1, Dst: 2, Relation: "R"}),
		value.Node(value.NodeRef{ID: 2}),
	}})
	op := NewPathBuild(src, 3, []int{0, 2}, []int{1})
	rows := drain(t, op, ctx, 4)
	require.Len(t, rows, 1)

	p := rows[0][3].Path()
	require.Len(t, p.Nodes, 2)
	require.Len(t, p.Edges, 1)
	assert.Equal(t, int64(1), p.Nodes[0].ID)
	assert.Equal(t, int64(10), p.Edges[0].ID)
	assert.Equal(t, int64(2), p.Nodes[1].ID)
}

func TestPathBuildFlattensVariableLengthEdgeArray(t *testing.T) {
	ctx := newTestCtx()
	edges := value.ArraySelf([]value.V{
		value.Edge(value.EdgeRef{ID: 10}),
		value.Edge(value.EdgeRef{ID: 11}),
	})
	src := newStubSource(0, [][]value.V{{
		value.Node(value.NodeRef{ID: 1}),
		edges,
		value.Node(value.NodeRef{ID: 3}),
	}})
	op := NewPathBuild(src, 3, []int{0, 2}, []int{1})
	rows := drain(t, op, ctx, 4)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0][3].Path().Edges, 2)
}
