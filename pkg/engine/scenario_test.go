package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphkernel/corequery/internal/ast"
	"github.com/graphkernel/corequery/internal/constraint"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/indexapi"
	"github.com/graphkernel/corequery/internal/indexapi/memindex"
	"github.com/graphkernel/corequery/internal/queryerr"
	"github.com/graphkernel/corequery/internal/value"
)

// TestUniqueConstraintViolationRollsBackWholeCreate: with an active
// unique constraint on P.id, CREATE (a:P {id:1}), (b:P {id:1}) must
// fail on the second node and leave the graph exactly as it was,
// with the constraint still active.
func TestUniqueConstraintViolationRollsBackWholeCreate(t *testing.T) {
	e := New()
	p := e.Store.Ctx.LabelID("P")
	idAttr := e.Store.Ctx.AttrID("id")

	c := constraint.New(constraint.Unique, constraint.NodeEntity, p, []int{idAttr})
	e.Constraints.Add(c)
	constraint.Enforce(c, e.Store)
	require.Equal(t, constraint.Active, c.GetStatus())

	lit := func(v any) ast.Expr { return ast.Expr{Kind: ast.ExprLiteral, Literal: v} }
	q := &ast.Query{Clauses: []ast.Clause{{
		Kind: ast.ClauseCreate,
		Create: &ast.Create{Patterns: []ast.Pattern{
			{Nodes: []ast.NodePattern{{Variable: "a", Labels: []string{"P"}, Properties: map[string]ast.Expr{"id": lit(int64(1))}}}},
			{Nodes: []ast.NodePattern{{Variable: "b", Labels: []string{"P"}, Properties: map[string]ast.Expr{"id": lit(int64(1))}}}},
		}},
	}}}

	before := e.Store.NodeCount()
	_, err := e.Submit(q, nil, 0)
	require.Error(t, err)
	var cv *queryerr.ConstraintViolationError
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, queryerr.ConstraintUnique, cv.Kind)
	assert.Equal(t, "P", cv.Label)

	assert.Equal(t, before, e.Store.NodeCount())
	assert.Equal(t, constraint.Active, c.GetStatus())
}

// TestEagerCorrelatedSubquery: MATCH (n) CALL { WITH n CREATE
// (n)-[:R]->(:X) RETURN 1 AS k } RETURN k against three P nodes must
// create three X nodes and three R edges, yielding k=1 per outer row.
func TestEagerCorrelatedSubquery(t *testing.T) {
	e := New()
	p := e.Store.Ctx.LabelID("P")
	for i := 0; i < 3; i++ {
		e.Store.CreateNode([]graphstore.SchemaID{p})
	}

	sub := &ast.Query{Clauses: []ast.Clause{
		{Kind: ast.ClauseWith, With: &ast.With{Return: ast.Return{Items: []ast.ReturnItem{
			{Expr: ast.Expr{Kind: ast.ExprVariable, Variable: "n"}},
		}}}},
		{Kind: ast.ClauseCreate, Create: &ast.Create{Patterns: []ast.Pattern{{
			Nodes: []ast.NodePattern{{Variable: "n"}, {Labels: []string{"X"}}},
			Rels:  []ast.RelPattern{{Types: []string{"R"}, Direction: ast.DirOutgoing, MinHops: -1, MaxHops: -1}},
		}}}},
		{Kind: ast.ClauseReturn, Return: &ast.Return{Items: []ast.ReturnItem{
			{Expr: ast.Expr{Kind: ast.ExprLiteral, Literal: int64(1)}, Alias: "k"},
		}}},
	}}
	q := &ast.Query{Clauses: []ast.Clause{
		{Kind: ast.ClauseMatch, Match: &ast.Match{Patterns: []ast.Pattern{{
			Nodes: []ast.NodePattern{{Variable: "n", Labels: []string{"P"}}},
		}}}},
		{Kind: ast.ClauseCallSubquery, Subquery: sub},
		{Kind: ast.ClauseReturn, Return: &ast.Return{Items: []ast.ReturnItem{
			{Expr: ast.Expr{Kind: ast.ExprVariable, Variable: "k"}},
		}}},
	}}
	res, err := e.Submit(q, nil, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Stats.NodesCreated)
	assert.EqualValues(t, 3, res.Stats.RelationshipsCreated)
	require.Len(t, res.Rows, 3)
	for _, row := range res.Rows {
		assert.Equal(t, int64(1), row[0].Int())
	}

	x := e.Store.Ctx.LabelID("X")
	assert.Len(t, e.Store.NodesWithLabel(x), 3)
}

// TestIndexScanAnswersEqualityMatch: with an exact index on P.age and
// nodes {age:30,name:a}, {age:31,name:b}, MATCH (n:P {age:30}) RETURN
// n.name must return exactly "a", served by the index.
func TestIndexScanAnswersEqualityMatch(t *testing.T) {
	idx := memindex.New()
	e := New(WithNamedIndex("P_age", idx))
	p := e.Store.Ctx.LabelID("P")
	age := e.Store.Ctx.AttrID("age")
	name := e.Store.Ctx.AttrID("name")
	require.NoError(t, e.Store.Schemas.AddIndex(&graphstore.IndexDescriptor{
		Name: "P_age", Label: p, Kind: graphstore.IndexExact, Attributes: []int{age},
	}))

	add := func(ageV int64, nameV string) {
		id := e.Store.CreateNode([]graphstore.SchemaID{p})
		e.Store.SetNodeAttr(id, age, value.Int(ageV))
		e.Store.SetNodeAttr(id, name, value.StrSelf(nameV))
		require.NoError(t, idx.AddDocument(indexapi.Document{EntityID: id, Fields: map[int]any{age: ageV}}))
	}
	add(30, "a")
	add(31, "b")

	lit := func(v any) ast.Expr { return ast.Expr{Kind: ast.ExprLiteral, Literal: v} }
	nameAccess := ast.Expr{Kind: ast.ExprPropertyAccess, Base: &ast.Expr{Kind: ast.ExprVariable, Variable: "n"}, Property: "name"}
	q := &ast.Query{Clauses: []ast.Clause{
		{Kind: ast.ClauseMatch, Match: &ast.Match{Patterns: []ast.Pattern{{
			Nodes: []ast.NodePattern{{Variable: "n", Labels: []string{"P"}, Properties: map[string]ast.Expr{"age": lit(int64(30))}}},
		}}}},
		{Kind: ast.ClauseReturn, Return: &ast.Return{Items: []ast.ReturnItem{{Expr: nameAccess}}}},
	}}

	res, err := e.Submit(q, nil, 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "a", res.Rows[0][0].Str())
}

// TestContradictoryRangeYieldsZeroRows: WHERE n.v > 5 AND n.v < 5 is
// unsatisfiable; the plan answers with zero rows without scanning.
func TestContradictoryRangeYieldsZeroRows(t *testing.T) {
	e := New()
	v := e.Store.Ctx.AttrID("v")
	id := e.Store.CreateNode(nil)
	e.Store.SetNodeAttr(id, v, value.Int(5))

	prop := ast.Expr{Kind: ast.ExprPropertyAccess, Base: &ast.Expr{Kind: ast.ExprVariable, Variable: "n"}, Property: "v"}
	five := ast.Expr{Kind: ast.ExprLiteral, Literal: int64(5)}
	gt := ast.Expr{Kind: ast.ExprBinary, Op: ">", Left: &prop, Right: &five}
	lt := ast.Expr{Kind: ast.ExprBinary, Op: "<", Left: &prop, Right: &five}
	cond := ast.Expr{Kind: ast.ExprBinary, Op: "and", Left: &gt, Right: &lt}
	q := &ast.Query{Clauses: []ast.Clause{
		{Kind: ast.ClauseMatch, Match: &ast.Match{
			Patterns: []ast.Pattern{{Nodes: []ast.NodePattern{{Variable: "n"}}}},
			Where:    &ast.Where{Condition: cond},
		}},
		{Kind: ast.ClauseReturn, Return: &ast.Return{Items: []ast.ReturnItem{
			{Expr: ast.Expr{Kind: ast.ExprVariable, Variable: "n"}},
		}}},
	}}

	res, err := e.Submit(q, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

// TestUnionAllConcatenatesBranches: RETURN 1 AS x UNION ALL RETURN 2 AS x.
func TestUnionAllConcatenatesBranches(t *testing.T) {
	e := New()
	branch := func(n int64) *ast.Query {
		return &ast.Query{Clauses: []ast.Clause{{
			Kind: ast.ClauseReturn,
			Return: &ast.Return{Items: []ast.ReturnItem{
				{Expr: ast.Expr{Kind: ast.ExprLiteral, Literal: n}, Alias: "x"},
			}},
		}}}
	}
	q := branch(1)
	q.UnionNext = branch(2)
	q.UnionAll = true

	res, err := e.Submit(q, nil, 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, int64(1), res.Rows[0][0].Int())
	assert.Equal(t, int64(2), res.Rows[1][0].Int())
}

// TestRuntimeErrorRollsBackSchemasAndAttributes: a query that fails at
// run time must also surrender any label/attribute names it interned
// during compilation, leaving the id namespaces bit-equal.
func TestRuntimeErrorRollsBackSchemasAndAttributes(t *testing.T) {
	e := New()
	labelsBefore := e.Store.Ctx.LabelCount()
	attrsBefore := e.Store.Ctx.AttrCount()

	one := ast.Expr{Kind: ast.ExprLiteral, Literal: int64(1)}
	zero := ast.Expr{Kind: ast.ExprLiteral, Literal: int64(0)}
	divByZero := ast.Expr{Kind: ast.ExprBinary, Op: "/", Left: &one, Right: &zero}
	q := &ast.Query{Clauses: []ast.Clause{{
		Kind: ast.ClauseCreate,
		Create: &ast.Create{Patterns: []ast.Pattern{{
			Nodes: []ast.NodePattern{{Variable: "z", Labels: []string{"Zed"}, Properties: map[string]ast.Expr{"v": divByZero}}},
		}}},
	}}}

	_, err := e.Submit(q, nil, 0)
	require.Error(t, err)
	assert.EqualValues(t, 0, e.Store.NodeCount())
	assert.Equal(t, labelsBefore, e.Store.Ctx.LabelCount())
	assert.Equal(t, attrsBefore, e.Store.Ctx.AttrCount())
}

// TestCorrelatedMergeCreatesOnce: MATCH (n:P) MERGE (c:City
// {name:'oslo'}) over two P nodes must create the city exactly once,
// deduplicating the second row by creation fingerprint.
func TestCorrelatedMergeCreatesOnce(t *testing.T) {
	e := New()
	p := e.Store.Ctx.LabelID("P")
	e.Store.CreateNode([]graphstore.SchemaID{p})
	e.Store.CreateNode([]graphstore.SchemaID{p})

	q := &ast.Query{Clauses: []ast.Clause{
		{Kind: ast.ClauseMatch, Match: &ast.Match{Patterns: []ast.Pattern{{
			Nodes: []ast.NodePattern{{Variable: "n", Labels: []string{"P"}}},
		}}}},
		{Kind: ast.ClauseMerge, Merge: &ast.Merge{Pattern: ast.Pattern{
			Nodes: []ast.NodePattern{{Variable: "c", Labels: []string{"City"}, Properties: map[string]ast.Expr{
				"name": {Kind: ast.ExprLiteral, Literal: "oslo"},
			}}},
		}}},
		{Kind: ast.ClauseReturn, Return: &ast.Return{Items: []ast.ReturnItem{
			{Expr: ast.Expr{Kind: ast.ExprVariable, Variable: "c"}},
		}}},
	}}

	res, err := e.Submit(q, nil, 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.EqualValues(t, 1, res.Stats.NodesCreated)

	city := e.Store.Ctx.LabelID("City")
	assert.Len(t, e.Store.NodesWithLabel(city), 1)
}

// TestAggregateOrderLimitThroughSubmit runs
// MATCH (n:P) RETURN n.city AS city, count(n) AS c ORDER BY city LIMIT 2
// against four nodes across three cities.
func TestAggregateOrderLimitThroughSubmit(t *testing.T) {
	e := New()
	p := e.Store.Ctx.LabelID("P")
	city := e.Store.Ctx.AttrID("city")
	for _, c := range []string{"oslo", "bergen", "oslo", "trondheim"} {
		id := e.Store.CreateNode([]graphstore.SchemaID{p})
		e.Store.SetNodeAttr(id, city, value.StrSelf(c))
	}

	cityAccess := ast.Expr{Kind: ast.ExprPropertyAccess, Base: &ast.Expr{Kind: ast.ExprVariable, Variable: "n"}, Property: "city"}
	countCall := ast.Expr{Kind: ast.ExprFunctionCall, Func: "count", Args: []ast.Expr{{Kind: ast.ExprVariable, Variable: "n"}}}
	limit := int64(2)
	q := &ast.Query{Clauses: []ast.Clause{
		{Kind: ast.ClauseMatch, Match: &ast.Match{Patterns: []ast.Pattern{{
			Nodes: []ast.NodePattern{{Variable: "n", Labels: []string{"P"}}},
		}}}},
		{Kind: ast.ClauseReturn, Return: &ast.Return{
			Items: []ast.ReturnItem{
				{Expr: cityAccess, Alias: "city"},
				{Expr: countCall, Alias: "c"},
			},
			OrderBy: []ast.OrderItem{{Expr: ast.Expr{Kind: ast.ExprVariable, Variable: "city"}}},
			Limit:   &limit,
		}},
	}}

	res, err := e.Submit(q, nil, 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "bergen", res.Rows[0][0].Str())
	assert.Equal(t, int64(1), res.Rows[0][1].Int())
	assert.Equal(t, "oslo", res.Rows[1][0].Str())
	assert.Equal(t, int64(2), res.Rows[1][1].Int())
}

// TestProcedureCallThroughSubmit drives CALL db.constraints() end to
// end through the full pipeline.
func TestProcedureCallThroughSubmit(t *testing.T) {
	e := New()
	p := e.Store.Ctx.LabelID("P")
	idAttr := e.Store.Ctx.AttrID("id")
	c := constraint.New(constraint.Mandatory, constraint.NodeEntity, p, []int{idAttr})
	e.Constraints.Add(c)
	constraint.Enforce(c, e.Store)

	q := &ast.Query{Clauses: []ast.Clause{
		{Kind: ast.ClauseCall, Call: &ast.Call{Procedure: "db.constraints"}},
		{Kind: ast.ClauseReturn, Return: &ast.Return{Items: []ast.ReturnItem{
			{Expr: ast.Expr{Kind: ast.ExprVariable, Variable: "type"}},
			{Expr: ast.Expr{Kind: ast.ExprVariable, Variable: "status"}},
		}}}},
	}
	res, err := e.Submit(q, nil, 0)
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "MANDATORY", res.Rows[0][0].Str())
	assert.Equal(t, "ACTIVE", res.Rows[0][1].Str())
}
