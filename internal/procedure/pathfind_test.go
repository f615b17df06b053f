package procedure

import (
	"testing"

	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDiamond constructs the graph
// (a)-[:E{w:1}]->(b)-[:E{w:1}]->(c) plus a direct (a)-[:E{w:3}]->(c).
func buildDiamond(t *testing.T) (*graphstore.Store, int64, int64, int) {
	t.Helper()
	s := graphstore.New()
	rel := s.Ctx.RelTypeID("E")
	w := s.Ctx.AttrID("w")
	a := s.CreateNode(nil)
	b := s.CreateNode(nil)
	c := s.CreateNode(nil)

	e1 := s.CreateEdge(a, b, rel)
	s.SetEdgeAttr(e1, int(w), value.Int(1))
	e2 := s.CreateEdge(b, c, rel)
	s.SetEdgeAttr(e2, int(w), value.Int(1))
	e3 := s.CreateEdge(a, c, rel)
	s.SetEdgeAttr(e3, int(w), value.Int(3))

	return s, a, c, int(w)
}

func TestSearchOrdersByWeightCostLen(t *testing.T) {
	s, a, c, w := buildDiamond(t)
	cfg := DefaultConfig()
	cfg.SourceNode = a
	cfg.TargetNode = c
	cfg.HasTarget = true
	cfg.WeightAttr = w
	cfg.HasWeight = true
	cfg.PathCount = 2
	require.NoError(t, cfg.Validate())

	paths := search(s, cfg)
	require.Len(t, paths, 2)
	assert.Equal(t, 2.0, paths[0].Weight)
	assert.Len(t, paths[0].Nodes, 3) // a, b, c
	assert.Equal(t, 3.0, paths[1].Weight)
	assert.Len(t, paths[1].Nodes, 2) // a, c
}

func TestSearchPathCountOneReturnsBest(t *testing.T) {
	s, a, c, w := buildDiamond(t)
	cfg := DefaultConfig()
	cfg.SourceNode = a
	cfg.TargetNode = c
	cfg.HasTarget = true
	cfg.WeightAttr = w
	cfg.HasWeight = true
	cfg.PathCount = 1

	paths := search(s, cfg)
	require.Len(t, paths, 1)
	assert.Equal(t, 2.0, paths[0].Weight)
}

func TestSearchPathCountZeroReturnsAllMinimumWeight(t *testing.T) {
	s := graphstore.New()
	rel := s.Ctx.RelTypeID("E")
	w := s.Ctx.AttrID("w")
	a := s.CreateNode(nil)
	b := s.CreateNode(nil)
	c := s.CreateNode(nil)
	e1 := s.CreateEdge(a, b, rel)
	s.SetEdgeAttr(e1, int(w), value.Int(1))
	e2 := s.CreateEdge(a, c, rel)
	s.SetEdgeAttr(e2, int(w), value.Int(1))

	cfg := DefaultConfig()
	cfg.SourceNode = a
	cfg.WeightAttr = int(w)
	cfg.HasWeight = true
	cfg.PathCount = 0
	cfg.MaxLen = 1

	paths := search(s, cfg)
	require.Len(t, paths, 2)
	for _, p := range paths {
		assert.Equal(t, 1.0, p.Weight)
	}
}

func TestSearchRespectsMaxCost(t *testing.T) {
	s, a, c, w := buildDiamond(t)
	cfg := DefaultConfig()
	cfg.SourceNode = a
	cfg.TargetNode = c
	cfg.HasTarget = true
	cfg.WeightAttr = w
	cfg.HasWeight = true
	cfg.MaxCost = 0
	cfg.PathCount = 0

	paths := search(s, cfg)
	// no cost attribute configured means every edge contributes 0 cost,
	// so both paths still satisfy maxCost == 0.
	require.NotEmpty(t, paths)
}

func TestConfigValidateRejectsInvertedLen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinLen = 5
	cfg.MaxLen = 1
	assert.Error(t, cfg.Validate())
}

func TestRegistryCallShortestPath(t *testing.T) {
	s, a, c, w := buildDiamond(t)
	reg := NewRegistry(s, nil)

	m := value.NewAttrMap()
	m.Set("sourceNode", value.Node(value.NodeRef{ID: a}))
	m.Set("targetNode", value.Node(value.NodeRef{ID: c}))
	m.Set("relTypes", value.ArraySelf([]value.V{value.StrSelf("E")}))
	m.Set("weightProp", value.StrSelf(s.Ctx.AttrName(w)))

	rows, err := reg.Call("algo.shortestPath", []value.V{value.MapVal(m, value.AllocSelf)})
	require.NoError(t, err)
	defer rows.Close()

	row, ok := rows.Next()
	require.True(t, ok)
	require.Len(t, row, 3)
	assert.Equal(t, 2.0, row[1].Float())

	_, ok = rows.Next()
	assert.False(t, ok)
}

func TestRegistryCallUnknownProcedure(t *testing.T) {
	s := graphstore.New()
	reg := NewRegistry(s, nil)
	_, err := reg.Call("algo.doesNotExist", nil)
	assert.Error(t, err)
}
