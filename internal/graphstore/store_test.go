package graphstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNodeSetsLabelBits(t *testing.T) {
	s := New()
	p := s.Ctx.LabelID("Person")
	id := s.CreateNode([]SchemaID{p})

	nodes := s.NodesWithLabel(p)
	require.Len(t, nodes, 1)
	assert.Equal(t, id, nodes[0])
}

func TestCreateEdgeSingleCell(t *testing.T) {
	s := New()
	p := s.Ctx.LabelID("Person")
	a := s.CreateNode([]SchemaID{p})
	b := s.CreateNode([]SchemaID{p})
	r := s.Ctx.RelTypeID("KNOWS")

	eid := s.CreateEdge(a, b, r)
	edges := s.GetNodeEdges(a, Outgoing, r)
	require.Len(t, edges, 1)
	assert.Equal(t, eid, edges[0].ID)
}

func TestCreateEdgeMultiEdgeCell(t *testing.T) {
	s := New()
	p := s.Ctx.LabelID("Person")
	a := s.CreateNode([]SchemaID{p})
	b := s.CreateNode([]SchemaID{p})
	r := s.Ctx.RelTypeID("KNOWS")

	e1 := s.CreateEdge(a, b, r)
	e2 := s.CreateEdge(a, b, r)

	edges := s.GetNodeEdges(a, Outgoing, r)
	ids := []int64{edges[0].ID, edges[1].ID}
	assert.ElementsMatch(t, []int64{e1, e2}, ids)
}

func TestDeleteNodeCascadesToEdges(t *testing.T) {
	s := New()
	p := s.Ctx.LabelID("Person")
	a := s.CreateNode([]SchemaID{p})
	b := s.CreateNode([]SchemaID{p})
	r := s.Ctx.RelTypeID("KNOWS")
	eid := s.CreateEdge(a, b, r)

	s.DeleteNode(a)

	assert.Nil(t, s.GetNode(a))
	assert.Nil(t, s.GetEdge(eid))
	assert.Equal(t, int64(1), s.NodeCount())
}

func TestDeleteOneOfMultiEdgeKeepsOther(t *testing.T) {
	s := New()
	p := s.Ctx.LabelID("Person")
	a := s.CreateNode([]SchemaID{p})
	b := s.CreateNode([]SchemaID{p})
	r := s.Ctx.RelTypeID("KNOWS")
	e1 := s.CreateEdge(a, b, r)
	e2 := s.CreateEdge(a, b, r)

	s.DeleteEdge(e1)

	edges := s.GetNodeEdges(a, Outgoing, r)
	require.Len(t, edges, 1)
	assert.Equal(t, e2, edges[0].ID)
}

func TestEntityIDNeverReused(t *testing.T) {
	s := New()
	p := s.Ctx.LabelID("Person")
	a := s.CreateNode([]SchemaID{p})
	s.DeleteNode(a)
	b := s.CreateNode([]SchemaID{p})
	assert.NotEqual(t, a, b)
}
