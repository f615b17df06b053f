package querygraph

import (
	"testing"

	"github.com/graphkernel/corequery/internal/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMergesSharedAliases(t *testing.T) {
	g := New()
	g.Build(ast.Pattern{
		Nodes: []ast.NodePattern{{Variable: "a", Labels: []string{"P"}}, {Variable: "b"}},
		Rels:  []ast.RelPattern{{Variable: "r", Types: []string{"R"}, MinHops: -1, MaxHops: -1}},
	})
	g.Build(ast.Pattern{
		Nodes: []ast.NodePattern{{Variable: "a", Labels: []string{"Q"}}, {Variable: "c"}},
		Rels:  []ast.RelPattern{{Variable: "s", Types: []string{"S"}, MinHops: -1, MaxHops: -1}},
	})

	require.Len(t, g.Nodes, 3)
	a, ok := g.LookupNode("a")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"P", "Q"}, a.Labels)
	assert.Len(t, g.Edges, 2)
}

func TestBuildGeneratesAnonymousAliases(t *testing.T) {
	g := New()
	nodeAliases, edgeAliases := g.BuildNamed(ast.Pattern{
		Nodes: []ast.NodePattern{{}, {}},
		Rels:  []ast.RelPattern{{Types: []string{"R"}, MinHops: -1, MaxHops: -1}},
	})
	require.Len(t, nodeAliases, 2)
	require.Len(t, edgeAliases, 1)
	assert.NotEqual(t, nodeAliases[0], nodeAliases[1])
	for _, a := range nodeAliases {
		assert.Equal(t, byte('@'), a[0])
	}
}

func TestConnectedComponentsSplitsDisjointPatterns(t *testing.T) {
	g := New()
	g.Build(ast.Pattern{
		Nodes: []ast.NodePattern{{Variable: "a"}, {Variable: "b"}},
		Rels:  []ast.RelPattern{{Variable: "r", Types: []string{"R"}, MinHops: -1, MaxHops: -1}},
	})
	g.Build(ast.Pattern{Nodes: []ast.NodePattern{{Variable: "x"}}})

	comps := g.ConnectedComponents()
	require.Len(t, comps, 2)
}

func TestPathAliasSequence(t *testing.T) {
	g := New()
	g.Build(ast.Pattern{
		PathVariable: "p",
		Nodes:        []ast.NodePattern{{Variable: "a"}, {Variable: "b"}},
		Rels:         []ast.RelPattern{{Variable: "r", Types: []string{"R"}, MinHops: -1, MaxHops: -1}},
	})
	seq, ok := g.PathAliasSequence("p")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "r", "b"}, seq)
}

func TestMergeUnionsLabelConstraints(t *testing.T) {
	g := New()
	g.Build(ast.Pattern{Nodes: []ast.NodePattern{{Variable: "n", Labels: []string{"A"}}}})

	other := New()
	other.Build(ast.Pattern{Nodes: []ast.NodePattern{{Variable: "n", Labels: []string{"B"}}}})

	g.Merge(other)
	n, ok := g.LookupNode("n")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"A", "B"}, n.Labels)
}

func TestVariableLengthEdgeDetection(t *testing.T) {
	e := &QGEdge{MinHops: 1, MaxHops: 1}
	assert.False(t, e.IsVariableLength())
	e = &QGEdge{MinHops: 1, MaxHops: 3}
	assert.True(t, e.IsVariableLength())
}
