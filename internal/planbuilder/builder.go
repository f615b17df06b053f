// Package planbuilder compiles an already-parsed ast.Query into a
// rooted plan.Operator tree. It is the missing link between the AST contract
// internal/ast defines and the pull-based operators internal/plan
// implements: clauses compile in source order against a single
// variable-to-slot scope threaded through the whole statement, so
// aliases resolve once and bake into positional operator fields rather
// than being re-resolved by name at run time.
package planbuilder

import (
	"fmt"
	"strings"

	"github.com/graphkernel/corequery/internal/ast"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/plan"
	"github.com/graphkernel/corequery/internal/record"
)

// scope tracks the variable-name-to-slot binding in effect at one point
// in the clause sequence, plus the best-known label set for each bound
// node (used by SET/REMOVE to find the constraint-relevant label when
// more than one is declared, and by Expand compilation to filter a
// reached node by its declared labels).
type scope struct {
	slots    map[string]int
	labels   map[string][]string
	edges    map[string]bool
	relTypes map[string]string
	width    int
	anon     int
}

func newScope() *scope {
	return &scope{slots: map[string]int{}, labels: map[string][]string{}, edges: map[string]bool{}, relTypes: map[string]string{}}
}

func (s *scope) lookup(name string) (int, bool) {
	slot, ok := s.slots[name]
	return slot, ok
}

func (s *scope) isBound(name string) bool {
	_, ok := s.slots[name]
	return ok
}

// slot returns name's existing slot, allocating a fresh one if name is
// new to the scope (or synthesizes an internal name for name == "",
// the anonymous-pattern-element case).
func (s *scope) slot(name string) int {
	if name == "" {
		s.anon++
		name = fmt.Sprintf("@anon_%d", s.anon)
	}
	if slot, ok := s.slots[name]; ok {
		return slot
	}
	slot := s.width
	s.width++
	s.slots[name] = slot
	return slot
}

func (s *scope) bindLabels(name string, labels []string) {
	if name == "" || len(labels) == 0 {
		return
	}
	s.labels[name] = labels
}

// markEdge records that name is bound to an edge rather than a node, so
// SET/REMOVE/DELETE can tell which entity API (NodeRef vs EdgeRef) a
// target alias resolves through without re-walking the pattern that
// bound it.
func (s *scope) markEdge(name string) {
	if name == "" {
		return
	}
	s.edges[name] = true
}

func (s *scope) isEdge(name string) bool { return s.edges[name] }

func (s *scope) bindRelType(name string, types []string) {
	if name == "" || len(types) == 0 {
		return
	}
	s.relTypes[name] = types[0]
}

// builder holds everything clause compilation needs: the scope being
// threaded through, and the graph store whose GraphContext resolves
// label/relation-type/attribute names to schema ids.
type builder struct {
	store *graphstore.Store
	scope *scope
}

// Built is one compiled statement: its root operator, the final
// RETURN/WITH projection's column names in order, the record slots
// those columns live at, and the total record width every Record must
// be allocated with.
type Built struct {
	Root    plan.Operator
	Columns []string
	Slots   []int
	Width   int
}

// Build compiles q against store, resolving labels/relation
// types/attributes through store.Ctx as it goes.
func Build(q *ast.Query, store *graphstore.Store) (*Built, error) {
	if q.UnionNext == nil {
		return buildSingle(q, store)
	}
	head, err := buildSingle(q, store)
	if err != nil {
		return nil, err
	}
	tail, err := Build(q.UnionNext, store)
	if err != nil {
		return nil, err
	}
	if len(head.Columns) != len(tail.Columns) {
		return nil, fmt.Errorf("planbuilder: UNION branches return %d and %d columns", len(head.Columns), len(tail.Columns))
	}
	root := plan.Operator(plan.NewConcat([]plan.Operator{head.Root, tail.Root}))
	if !q.UnionAll {
		root = plan.NewDistinct(root, head.Slots)
	}
	return &Built{Root: root, Columns: head.Columns, Slots: head.Slots, Width: maxInt(head.Width, tail.Width)}, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// buildSingle compiles one non-UNION query (a linear clause sequence)
// into an operator tree.
func buildSingle(q *ast.Query, store *graphstore.Store) (*Built, error) {
	b := &builder{store: store, scope: newScope()}

	finalReturn := lastProjection(q.Clauses)
	var outSlots []int
	var outColumns []string
	if finalReturn != nil {
		outColumns = make([]string, len(finalReturn.Items))
		outSlots = make([]int, len(finalReturn.Items))
		for i, it := range finalReturn.Items {
			outSlots[i] = b.scope.slot(fmt.Sprintf("@out_%d", i))
			outColumns[i] = returnColumnName(it)
		}
	}

	lastIdx := lastProjectionIndex(q.Clauses)
	var cur plan.Operator
	for i := range q.Clauses {
		c := &q.Clauses[i]
		isFinal := finalReturn != nil && i == lastIdx
		var err error
		cur, err = b.compileClause(cur, c, isFinal, outSlots)
		if err != nil {
			return nil, err
		}
	}

	if cur == nil {
		cur = newNoopSource()
	}
	return &Built{Root: cur, Columns: outColumns, Slots: outSlots, Width: b.scope.width}, nil
}

// lastProjection finds the last RETURN (or trailing WITH acting as the
// statement's output) clause, used to reserve fixed output slots before
// any other compilation happens so every UNION branch lands its result
// columns at identical slot numbers.
func lastProjection(clauses []ast.Clause) *ast.Return {
	idx := lastProjectionIndex(clauses)
	if idx < 0 {
		return nil
	}
	c := clauses[idx]
	if c.Kind == ast.ClauseReturn {
		return c.Return
	}
	return &c.With.Return
}

func lastProjectionIndex(clauses []ast.Clause) int {
	for i := len(clauses) - 1; i >= 0; i-- {
		if clauses[i].Kind == ast.ClauseReturn {
			return i
		}
		if clauses[i].Kind == ast.ClauseWith && i == len(clauses)-1 {
			return i
		}
	}
	return -1
}

func returnColumnName(it ast.ReturnItem) string {
	if it.Alias != "" {
		return it.Alias
	}
	if it.Expr.Kind == ast.ExprVariable {
		return it.Expr.Variable
	}
	if it.Expr.Kind == ast.ExprPropertyAccess && it.Expr.Base != nil {
		return it.Expr.Base.Variable + "." + it.Expr.Property
	}
	return it.Expr.Func
}

func (b *builder) compileClause(cur plan.Operator, c *ast.Clause, isFinal bool, outSlots []int) (plan.Operator, error) {
	switch c.Kind {
	case ast.ClauseMatch, ast.ClauseOptionalMatch:
		return b.compileMatch(cur, c.Match)
	case ast.ClauseWhere:
		cond, err := b.compileCondition(&c.Where.Condition)
		if err != nil {
			return nil, err
		}
		if cur == nil {
			return nil, fmt.Errorf("planbuilder: WHERE with no preceding clause")
		}
		return plan.NewFilter(cur, cond), nil
	case ast.ClauseCreate:
		return b.compileCreate(cur, c.Create)
	case ast.ClauseMerge:
		return b.compileMerge(cur, c.Merge)
	case ast.ClauseSet:
		return b.compileSet(cur, c.Set)
	case ast.ClauseRemove:
		return b.compileRemove(cur, c.Remove)
	case ast.ClauseDelete:
		return b.compileDelete(cur, c.Delete)
	case ast.ClauseUnwind:
		return b.compileUnwind(cur, c.Unwind)
	case ast.ClauseCall:
		return b.compileCall(cur, c.Call)
	case ast.ClauseCallSubquery:
		return b.compileCallSubquery(cur, c.Subquery)
	case ast.ClauseWith:
		slots := outSlots
		if !isFinal {
			slots = nil
		}
		return b.compileProjection(cur, &c.With.Return, slots)
	case ast.ClauseReturn:
		return b.compileProjection(cur, c.Return, outSlots)
	default:
		return nil, fmt.Errorf("planbuilder: unhandled clause kind %d", c.Kind)
	}
}

// noopOp is the root operator for a query with no clauses before its
// first pull (e.g. `RETURN 1` with nothing to scan): it yields exactly
// one all-null row, the same single-row seed a bare-literal projection
// needs to run its Project stage at all.
func newNoopSource() plan.Operator { return &noopOp{} }

type noopOp struct{ done bool }

func (o *noopOp) Init(ctx *plan.Ctx)           { o.done = false }
func (o *noopOp) Reset()                       { o.done = false }
func (o *noopOp) Modifiers() []int             { return nil }
func (o *noopOp) Dependencies() []int          { return nil }
func (o *noopOp) EstimatedCardinality() plan.Cardinality { return plan.CardinalityOne }
func (o *noopOp) Consume(rec *record.Record) plan.Status {
	if o.done {
		return plan.StatusEOF
	}
	o.done = true
	return plan.StatusRecord
}

var _ plan.Operator = (*noopOp)(nil)

func resolveRelTypes(store *graphstore.Store, names []string) []graphstore.SchemaID {
	if len(names) == 0 {
		return nil
	}
	out := make([]graphstore.SchemaID, len(names))
	for i, n := range names {
		out[i] = store.Ctx.RelTypeID(n)
	}
	return out
}

func resolveLabels(store *graphstore.Store, names []string) []graphstore.SchemaID {
	out := make([]graphstore.SchemaID, len(names))
	for i, n := range names {
		out[i] = store.Ctx.LabelID(n)
	}
	return out
}

// aggKind reports whether name is one of the supported aggregate
// functions, matching
// case-insensitively as the query language's function names do.
func aggKind(name string) (plan.AggFuncKind, bool) {
	switch strings.ToLower(name) {
	case "count":
		return plan.AggCount, true
	case "sum":
		return plan.AggSum, true
	case "avg":
		return plan.AggAvg, true
	case "min":
		return plan.AggMin, true
	case "max":
		return plan.AggMax, true
	case "collect":
		return plan.AggCollect, true
	case "stdev":
		return plan.AggStDev, true
	case "stdevp":
		return plan.AggStDevP, true
	case "percentiledisc":
		return plan.AggPercentileDisc, true
	case "percentilecont":
		return plan.AggPercentileCont, true
	default:
		return 0, false
	}
}

// containsAggregate reports whether e calls an aggregate function
// anywhere in its tree.
func containsAggregate(e *ast.Expr) bool {
	if e == nil {
		return false
	}
	if e.Kind == ast.ExprFunctionCall {
		if _, ok := aggKind(e.Func); ok {
			return true
		}
	}
	for i := range e.Args {
		if containsAggregate(&e.Args[i]) {
			return true
		}
	}
	if containsAggregate(e.Left) || containsAggregate(e.Right) || containsAggregate(e.Base) {
		return true
	}
	for _, br := range e.CaseBranches {
		if containsAggregate(&br.When) || containsAggregate(&br.Then) {
			return true
		}
	}
	return containsAggregate(e.CaseElse)
}

func percentileArg(e *ast.Expr) float64 {
	if e == nil || len(e.Args) < 2 {
		return 0.5
	}
	lit := e.Args[1]
	if lit.Kind != ast.ExprLiteral {
		return 0.5
	}
	switch v := lit.Literal.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0.5
	}
}
