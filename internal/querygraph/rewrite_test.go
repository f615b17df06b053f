package querygraph

import (
	"testing"

	"github.com/graphkernel/corequery/internal/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchClause(variable string, labels ...string) ast.Clause {
	return ast.Clause{Kind: ast.ClauseMatch, Match: &ast.Match{Patterns: []ast.Pattern{{
		Nodes: []ast.NodePattern{{Variable: variable, Labels: labels}},
	}}}}
}

// eagerSubquery builds CALL { WITH n CREATE (n)-[:R]->(:X) RETURN 1 AS k }.
func eagerSubquery() *ast.Query {
	return &ast.Query{Clauses: []ast.Clause{
		{Kind: ast.ClauseWith, With: &ast.With{Return: ast.Return{Items: []ast.ReturnItem{
			{Expr: ast.Expr{Kind: ast.ExprVariable, Variable: "n"}},
		}}}},
		{Kind: ast.ClauseCreate, Create: &ast.Create{Patterns: []ast.Pattern{{
			Nodes: []ast.NodePattern{{Variable: "n"}, {Labels: []string{"X"}}},
			Rels:  []ast.RelPattern{{Types: []string{"R"}, MinHops: -1, MaxHops: -1}},
		}}}},
		{Kind: ast.ClauseReturn, Return: &ast.Return{Items: []ast.ReturnItem{
			{Expr: ast.Expr{Kind: ast.ExprLiteral, Literal: int64(1)}, Alias: "k"},
		}}},
	}}
}

func TestRewritePrependsRenameWith(t *testing.T) {
	q := &ast.Query{Clauses: []ast.Clause{
		matchClause("n"),
		{Kind: ast.ClauseCallSubquery, Subquery: eagerSubquery()},
		{Kind: ast.ClauseReturn, Return: &ast.Return{Items: []ast.ReturnItem{
			{Expr: ast.Expr{Kind: ast.ExprVariable, Variable: "k"}},
		}}},
	}}

	got := RewriteCorrelatedSubqueries(q)
	require.Len(t, got.Clauses, 4, "a WITH rename clause must be inserted before the call")

	rename := got.Clauses[1]
	require.Equal(t, ast.ClauseWith, rename.Kind)
	require.Len(t, rename.With.Items, 1)
	assert.Equal(t, "n", rename.With.Items[0].Expr.Variable)
	assert.Equal(t, "@n", rename.With.Items[0].Alias)

	sub := got.Clauses[2].Subquery
	require.NotNil(t, sub)
	// The subquery's own WITH now references the internal alias.
	assert.Equal(t, "@n", sub.Clauses[0].With.Items[0].Expr.Variable)
}

func TestRewriteRestoresOuterAliasInTrailingReturn(t *testing.T) {
	sub := &ast.Query{Clauses: []ast.Clause{
		{Kind: ast.ClauseCreate, Create: &ast.Create{Patterns: []ast.Pattern{{
			Nodes: []ast.NodePattern{{Labels: []string{"X"}}},
		}}}},
		{Kind: ast.ClauseReturn, Return: &ast.Return{Items: []ast.ReturnItem{
			{Expr: ast.Expr{Kind: ast.ExprVariable, Variable: "n"}},
		}}},
	}}
	q := &ast.Query{Clauses: []ast.Clause{
		matchClause("n"),
		{Kind: ast.ClauseCallSubquery, Subquery: sub},
	}}

	got := RewriteCorrelatedSubqueries(q)
	rewritten := got.Clauses[2].Subquery
	last := rewritten.Clauses[len(rewritten.Clauses)-1]
	require.Equal(t, ast.ClauseReturn, last.Kind)
	// RETURN @n AS n: internal name inside, original restored via alias.
	assert.Equal(t, "@n", last.Return.Items[0].Expr.Variable)
	assert.Equal(t, "n", last.Return.Items[0].Alias)
}

func TestRewriteSkipsPureReadSubquery(t *testing.T) {
	sub := &ast.Query{Clauses: []ast.Clause{
		matchClause("m", "X"),
		{Kind: ast.ClauseReturn, Return: &ast.Return{Items: []ast.ReturnItem{
			{Expr: ast.Expr{Kind: ast.ExprVariable, Variable: "m"}},
		}}},
	}}
	q := &ast.Query{Clauses: []ast.Clause{
		matchClause("n"),
		{Kind: ast.ClauseCallSubquery, Subquery: sub},
	}}

	got := RewriteCorrelatedSubqueries(q)
	assert.Len(t, got.Clauses, 2, "a read-only subquery needs no rename")
}

func TestRewriteTreatsAggregatingSubqueryAsEager(t *testing.T) {
	sub := &ast.Query{Clauses: []ast.Clause{
		matchClause("m", "X"),
		{Kind: ast.ClauseReturn, Return: &ast.Return{Items: []ast.ReturnItem{
			{Expr: ast.Expr{Kind: ast.ExprFunctionCall, Func: "count", Args: []ast.Expr{
				{Kind: ast.ExprVariable, Variable: "m"},
			}}, Alias: "c"},
		}}}},
	}
	q := &ast.Query{Clauses: []ast.Clause{
		matchClause("n"),
		{Kind: ast.ClauseCallSubquery, Subquery: sub},
	}}

	got := RewriteCorrelatedSubqueries(q)
	assert.Len(t, got.Clauses, 3, "an aggregating returning subquery is eager")
}

func TestRewriteHandlesUnionBranchesIndependently(t *testing.T) {
	branch := func() *ast.Query {
		return &ast.Query{Clauses: []ast.Clause{
			matchClause("n"),
			{Kind: ast.ClauseCallSubquery, Subquery: eagerSubquery()},
			{Kind: ast.ClauseReturn, Return: &ast.Return{Items: []ast.ReturnItem{
				{Expr: ast.Expr{Kind: ast.ExprVariable, Variable: "k"}},
			}}},
		}}
	}
	q := branch()
	q.UnionNext = branch()
	q.UnionAll = true

	got := RewriteCorrelatedSubqueries(q)
	assert.Len(t, got.Clauses, 4)
	require.NotNil(t, got.UnionNext)
	assert.Len(t, got.UnionNext.Clauses, 4)
}

func TestInsertWithStarBeforeNestedCalls(t *testing.T) {
	inner := eagerSubquery()
	outer := &ast.Query{Clauses: []ast.Clause{
		matchClause("n"),
		{Kind: ast.ClauseCallSubquery, Subquery: inner},
	}}
	insertWithStarBeforeNestedCalls(outer)
	require.Len(t, outer.Clauses, 3)
	star := outer.Clauses[1]
	require.Equal(t, ast.ClauseWith, star.Kind)
	assert.Empty(t, star.With.Items)
}

func TestValidateIdentifierRejectsReservedPrefix(t *testing.T) {
	assert.Error(t, ValidateIdentifier("@n"))
	assert.NoError(t, ValidateIdentifier("n"))
}
