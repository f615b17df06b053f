package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphkernel/corequery/internal/ast"
)

func lit(v any) ast.Expr { return ast.Expr{Kind: ast.ExprLiteral, Literal: v} }

func variable(name string) ast.Expr { return ast.Expr{Kind: ast.ExprVariable, Variable: name} }

func propAccess(base, prop string) ast.Expr {
	b := variable(base)
	return ast.Expr{Kind: ast.ExprPropertyAccess, Base: &b, Property: prop}
}

// createQuery hand-builds the AST for
// CREATE (a:P {name:'x'})-[:R {w:2}]->(b:P {name:'y'}).
func createQuery() *ast.Query {
	return &ast.Query{Clauses: []ast.Clause{{
		Kind: ast.ClauseCreate,
		Create: &ast.Create{Patterns: []ast.Pattern{{
			Nodes: []ast.NodePattern{
				{Variable: "a", Labels: []string{"P"}, Properties: map[string]ast.Expr{"name": lit("x")}},
				{Variable: "b", Labels: []string{"P"}, Properties: map[string]ast.Expr{"name": lit("y")}},
			},
			Rels: []ast.RelPattern{
				{Variable: "r", Types: []string{"R"}, Direction: ast.DirOutgoing, MinHops: -1, Properties: map[string]ast.Expr{"w": lit(int64(2))}},
			},
		}}},
	}}}
}

// matchQuery builds MATCH (a:P)-[r:R]->(b:P) RETURN a.name, b.name, r.w.
func matchQuery() *ast.Query {
	return &ast.Query{Clauses: []ast.Clause{
		{
			Kind: ast.ClauseMatch,
			Match: &ast.Match{Patterns: []ast.Pattern{{
				Nodes: []ast.NodePattern{{Variable: "a", Labels: []string{"P"}}, {Variable: "b", Labels: []string{"P"}}},
				Rels:  []ast.RelPattern{{Variable: "r", Types: []string{"R"}, Direction: ast.DirOutgoing, MinHops: -1}},
			}}},
		},
		{
			Kind: ast.ClauseReturn,
			Return: &ast.Return{Items: []ast.ReturnItem{
				{Expr: propAccess("a", "name")},
				{Expr: propAccess("b", "name")},
				{Expr: propAccess("r", "w")},
			}},
		},
	}}
}

func TestSubmitCreateThenMatch(t *testing.T) {
	e := New()

	createResult, err := e.Submit(createQuery(), nil, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, createResult.Stats.NodesCreated)
	assert.EqualValues(t, 1, createResult.Stats.RelationshipsCreated)
	assert.EqualValues(t, 3, createResult.Stats.PropertiesSet)
	// Both nodes share :P; the label schema is new to this query and
	// counts exactly once.
	assert.EqualValues(t, 1, createResult.Stats.LabelsAdded)

	matchResult, err := e.Submit(matchQuery(), nil, 0)
	require.NoError(t, err)
	require.Len(t, matchResult.Rows, 1)
	row := matchResult.Rows[0]
	assert.Equal(t, "x", row[0].Str())
	assert.Equal(t, "y", row[1].Str())
	assert.Equal(t, int64(2), row[2].Int())
}

func TestSubmitRollsBackOnError(t *testing.T) {
	e := New()
	_, err := e.Submit(createQuery(), nil, 0)
	require.NoError(t, err)

	before := e.Store.NodeCount()

	// A RETURN of a property on a variable no clause binds forces
	// planbuilder.Build to fail, exercising the compile-error path
	// without touching the store at all.
	bad := &ast.Query{Clauses: []ast.Clause{{
		Kind: ast.ClauseReturn,
		Return: &ast.Return{Items: []ast.ReturnItem{
			{Expr: propAccess("nonexistent", "x")},
		}},
	}}}
	_, err = e.Submit(bad, nil, 0)
	assert.Error(t, err)
	assert.Equal(t, before, e.Store.NodeCount())
}

func TestSubmitHonoursTimeout(t *testing.T) {
	e := New()
	_, err := e.Submit(matchQuery(), nil, time.Nanosecond)
	// Either it completes before the nanosecond timeout fires (tiny
	// graph, no real work) or it reports a timeout; both are acceptable,
	// but it must never hang or panic.
	_ = err
}

// TestSubmitWithDurableUndoLogCommitsAndRollsBack exercises the Badger
// shadow path end to end: a successful query must leave nothing behind
// in the shadow (Commit discards it), and a failed one must still
// finish cleanly even though every mutation was also mirrored to
// Badger along the way.
func TestSubmitWithDurableUndoLogCommitsAndRollsBack(t *testing.T) {
	e := New(WithDurableUndoLog(""))
	require.NotNil(t, e.Shadow)
	defer e.Shadow.Close()

	_, err := e.Submit(createQuery(), nil, 0)
	require.NoError(t, err)

	recovered, err := e.Shadow.Recover()
	require.NoError(t, err)
	assert.Empty(t, recovered, "shadow should be discarded once the query commits")

	before := e.Store.NodeCount()
	bad := &ast.Query{Clauses: []ast.Clause{{
		Kind: ast.ClauseReturn,
		Return: &ast.Return{Items: []ast.ReturnItem{
			{Expr: propAccess("nonexistent", "x")},
		}},
	}}}
	_, err = e.Submit(bad, nil, 0)
	assert.Error(t, err)
	assert.Equal(t, before, e.Store.NodeCount())
}
