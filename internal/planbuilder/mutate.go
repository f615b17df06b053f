package planbuilder

import (
	"fmt"
	"sort"

	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/ast"
	"github.com/graphkernel/corequery/internal/constraint"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/plan"
	"github.com/graphkernel/corequery/internal/querygraph"
)

// compileCreate compiles one CREATE clause: every
// pattern's nodes are instantiated fresh unless the variable already
// names a bound alias (a node created by an earlier pattern and reused
// purely as this pattern's edge endpoint), and every relationship needs
// exactly one type, since a brand-new edge can't be created ambiguous
// about what it is.
func (b *builder) compileCreate(cur plan.Operator, c *ast.Create) (plan.Operator, error) {
	var nodeSpecs []plan.CreateNodeSpec
	var edgeSpecs []plan.CreateEdgeSpec

	for _, p := range c.Patterns {
		slots := make([]int, len(p.Nodes))
		for i, np := range p.Nodes {
			preBound := np.Variable != "" && b.scope.isBound(np.Variable)
			slot := b.scope.slot(np.Variable)
			slots[i] = slot
			if preBound {
				continue
			}
			b.scope.bindLabels(np.Variable, np.Labels)
			props, err := b.compilePropSpecs(np.Properties)
			if err != nil {
				return nil, err
			}
			nodeSpecs = append(nodeSpecs, plan.CreateNodeSpec{
				Slot:   slot,
				Labels: resolveLabels(b.store, np.Labels),
				Props:  props,
			})
		}

		for i, rp := range p.Rels {
			srcSlot, dstSlot := slots[i], slots[i+1]
			if rp.Direction == ast.DirIncoming {
				srcSlot, dstSlot = dstSlot, srcSlot
			}
			relType, err := singleRelType(rp.Types)
			if err != nil {
				return nil, err
			}
			edgeSlot := b.scope.slot(rp.Variable)
			b.scope.markEdge(rp.Variable)
			b.scope.bindRelType(rp.Variable, rp.Types)
			props, err := b.compilePropSpecs(rp.Properties)
			if err != nil {
				return nil, err
			}
			edgeSpecs = append(edgeSpecs, plan.CreateEdgeSpec{
				Slot:    edgeSlot,
				SrcSlot: srcSlot,
				DstSlot: dstSlot,
				RelType: b.store.Ctx.RelTypeID(relType),
				Props:   props,
			})
		}
	}

	return plan.NewCreate(cur, nodeSpecs, edgeSpecs), nil
}

// singleRelType requires exactly one relationship type, the query
// language's rule for a freshly created relationship (an ambiguous
// `()-[:A|B]->()` pattern is only ever legal for matching, never for
// creating).
func singleRelType(types []string) (string, error) {
	if len(types) != 1 {
		return "", fmt.Errorf("planbuilder: a created relationship needs exactly one type, got %d", len(types))
	}
	return types[0], nil
}

// compilePropSpecs lowers a pattern element's inline property map into
// the ordered []plan.PropSpec Create/Merge apply against the newly
// created entity. Keys are sorted so the same query compiles to the
// same plan shape on every run, map iteration order being otherwise
// undefined.
func (b *builder) compilePropSpecs(props map[string]ast.Expr) ([]plan.PropSpec, error) {
	if len(props) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]plan.PropSpec, 0, len(names))
	for _, name := range names {
		e := props[name]
		v, err := b.compileExpr(&e)
		if err != nil {
			return nil, err
		}
		out = append(out, plan.PropSpec{AttrID: b.store.Ctx.AttrID(name), Value: v})
	}
	return out, nil
}

// compileMerge compiles a MERGE clause. The
// probe reuses compileComponent, the exact machinery MATCH patterns
// compile through, so the same alias a later SET/RETURN references
// lands at the same slot whichever branch the Merge operator ends up
// taking at run time.
func (b *builder) compileMerge(cur plan.Operator, m *ast.Merge) (plan.Operator, error) {
	p := m.Pattern
	if len(p.Nodes) == 0 {
		return nil, fmt.Errorf("planbuilder: MERGE pattern has no nodes")
	}

	g := querygraph.New()
	nodeAliases, edgeAliases := g.BuildNamed(p)
	for alias, n := range g.Nodes {
		b.scope.bindLabels(alias, n.Labels)
	}

	nodeProps := map[string]map[string]ast.Expr{}
	for i, np := range p.Nodes {
		if len(np.Properties) > 0 {
			nodeProps[nodeAliases[i]] = np.Properties
		}
	}
	relProps := map[string]map[string]ast.Expr{}
	for i, rp := range p.Rels {
		if len(rp.Properties) > 0 {
			relProps[edgeAliases[i]] = rp.Properties
		}
	}

	comps := g.ConnectedComponents()
	if len(comps) != 1 {
		return nil, fmt.Errorf("planbuilder: MERGE pattern must be a single connected path")
	}

	// A MERGE preceded by binding clauses runs per input row and
	// compiles to MergeCreate (fingerprint-deduplicated creation); a
	// standalone MERGE probes the graph once and compiles to Merge.
	correlated := cur != nil
	preBound := map[string]bool{}
	for _, alias := range nodeAliases {
		preBound[alias] = b.scope.isBound(alias)
	}

	var probe plan.Operator
	if !correlated {
		var err error
		probe, err = b.compileComponent(nil, comps[0], nodeProps, relProps)
		if err != nil {
			return nil, err
		}
	}
	for _, e := range comps[0].Edges {
		b.scope.markEdge(e.Alias)
		b.scope.bindRelType(e.Alias, e.Types)
	}

	var nodeSpecs []plan.CreateNodeSpec
	for i, np := range p.Nodes {
		slot := b.scope.slot(nodeAliases[i])
		if correlated && preBound[nodeAliases[i]] {
			// An upstream-bound element is an endpoint, never re-created.
			continue
		}
		props, err := b.compilePropSpecs(np.Properties)
		if err != nil {
			return nil, err
		}
		nodeSpecs = append(nodeSpecs, plan.CreateNodeSpec{Slot: slot, Labels: resolveLabels(b.store, np.Labels), Props: props})
	}

	edgeSpecs := make([]plan.CreateEdgeSpec, len(p.Rels))
	for i, rp := range p.Rels {
		srcSlot, dstSlot := b.scope.slot(nodeAliases[i]), b.scope.slot(nodeAliases[i+1])
		if rp.Direction == ast.DirIncoming {
			srcSlot, dstSlot = dstSlot, srcSlot
		}
		relType, err := singleRelType(rp.Types)
		if err != nil {
			return nil, err
		}
		edgeSlot := b.scope.slot(edgeAliases[i])
		props, err := b.compilePropSpecs(rp.Properties)
		if err != nil {
			return nil, err
		}
		edgeSpecs[i] = plan.CreateEdgeSpec{Slot: edgeSlot, SrcSlot: srcSlot, DstSlot: dstSlot, RelType: b.store.Ctx.RelTypeID(relType), Props: props}
	}

	onCreate, err := b.compileUpdateItems(m.OnCreate)
	if err != nil {
		return nil, err
	}
	onMatch, err := b.compileUpdateItems(m.OnMatch)
	if err != nil {
		return nil, err
	}

	if correlated {
		return plan.NewMergeCreate(cur, nodeSpecs, edgeSpecs, onCreate, onMatch), nil
	}
	return plan.NewMerge(probe, b.scope.width, nodeSpecs, edgeSpecs, onCreate, onMatch), nil
}

// compileUpdateItems lowers SET-shaped items (a plain SET clause, or a
// MERGE's ON CREATE/ON MATCH) into plan.UpdateItem, resolving which
// entity API (node vs edge) and which constraint scope (label vs
// relationship type) Target's alias carries via the scope's edge/label
// bookkeeping.
func (b *builder) compileUpdateItems(items []ast.SetItem) ([]plan.UpdateItem, error) {
	out := make([]plan.UpdateItem, 0, len(items))
	for _, it := range items {
		if it.IsLabel {
			alias := it.Target.Variable
			slot, ok := b.scope.lookup(alias)
			if !ok {
				return nil, fmt.Errorf("planbuilder: SET references unbound alias %q", alias)
			}
			out = append(out, plan.UpdateItem{
				Kind:        plan.UpdateSetLabels,
				Slot:        slot,
				IsEdge:      b.scope.isEdge(alias),
				Labels:      resolveLabels(b.store, it.Labels),
				EntityKind:  entityKindOf(b.scope.isEdge(alias)),
				EntityLabel: b.primaryLabelOf(alias),
			})
			continue
		}

		if it.Target.Kind == ast.ExprVariable && it.Value.Kind == ast.ExprMap {
			// `n = {...}` / `n += {...}`: one UpdateItem per map key against
			// the same target slot, matching applyUpdateItem's per-attribute
			// property machinery rather than a whole-entity replace.
			alias := it.Target.Variable
			slot, ok := b.scope.lookup(alias)
			if !ok {
				return nil, fmt.Errorf("planbuilder: SET references unbound alias %q", alias)
			}
			isEdge := b.scope.isEdge(alias)
			names := make([]string, 0, len(it.Value.MapItems))
			for name := range it.Value.MapItems {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				e := it.Value.MapItems[name]
				val, err := b.compileExpr(&e)
				if err != nil {
					return nil, err
				}
				out = append(out, plan.UpdateItem{
					Kind:        plan.UpdateMergeMap,
					Slot:        slot,
					IsEdge:      isEdge,
					AttrID:      b.store.Ctx.AttrID(name),
					Value:       val,
					EntityKind:  entityKindOf(isEdge),
					EntityLabel: b.primaryLabelOf(alias),
				})
			}
			continue
		}

		if it.Target.Kind != ast.ExprPropertyAccess || it.Target.Base == nil || it.Target.Base.Kind != ast.ExprVariable {
			return nil, fmt.Errorf("planbuilder: unsupported SET target")
		}
		alias := it.Target.Base.Variable
		slot, ok := b.scope.lookup(alias)
		if !ok {
			return nil, fmt.Errorf("planbuilder: SET references unbound alias %q", alias)
		}
		val, err := b.compileExpr(&it.Value)
		if err != nil {
			return nil, err
		}
		isEdge := b.scope.isEdge(alias)
		out = append(out, plan.UpdateItem{
			Kind:        plan.UpdateSetProperty,
			Slot:        slot,
			IsEdge:      isEdge,
			AttrID:      b.store.Ctx.AttrID(it.Target.Property),
			Value:       val,
			EntityKind:  entityKindOf(isEdge),
			EntityLabel: b.primaryLabelOf(alias),
		})
	}
	return out, nil
}

func (b *builder) compileSet(cur plan.Operator, s *ast.Set) (plan.Operator, error) {
	if cur == nil {
		return nil, fmt.Errorf("planbuilder: SET with no preceding clause")
	}
	items, err := b.compileUpdateItems(s.Items)
	if err != nil {
		return nil, err
	}
	return plan.NewUpdate(cur, items), nil
}

func (b *builder) compileRemove(cur plan.Operator, r *ast.Remove) (plan.Operator, error) {
	if cur == nil {
		return nil, fmt.Errorf("planbuilder: REMOVE with no preceding clause")
	}
	out := make([]plan.UpdateItem, 0, len(r.Items))
	for _, it := range r.Items {
		if it.IsLabel {
			alias := it.Target.Variable
			slot, ok := b.scope.lookup(alias)
			if !ok {
				return nil, fmt.Errorf("planbuilder: REMOVE references unbound alias %q", alias)
			}
			out = append(out, plan.UpdateItem{
				Kind:   plan.UpdateRemoveLabels,
				Slot:   slot,
				IsEdge: b.scope.isEdge(alias),
				Labels: resolveLabels(b.store, it.Labels),
			})
			continue
		}
		if it.Target.Kind != ast.ExprPropertyAccess || it.Target.Base == nil || it.Target.Base.Kind != ast.ExprVariable {
			return nil, fmt.Errorf("planbuilder: unsupported REMOVE target")
		}
		alias := it.Target.Base.Variable
		slot, ok := b.scope.lookup(alias)
		if !ok {
			return nil, fmt.Errorf("planbuilder: REMOVE references unbound alias %q", alias)
		}
		out = append(out, plan.UpdateItem{
			Kind:   plan.UpdateRemoveProperty,
			Slot:   slot,
			IsEdge: b.scope.isEdge(alias),
			AttrID: b.store.Ctx.AttrID(it.Target.Property),
		})
	}
	return plan.NewUpdate(cur, out), nil
}

// compileDelete compiles a DELETE clause. Detach
// isn't threaded any further: plan.Delete always cascades to a deleted
// node's incident edges, so a non-DETACH delete of a node that still
// has edges behaves the same as a DETACH one rather than erroring,
// matching the operator's own documented always-cascade contract.
func (b *builder) compileDelete(cur plan.Operator, d *ast.Delete) (plan.Operator, error) {
	if cur == nil {
		return nil, fmt.Errorf("planbuilder: DELETE with no preceding clause")
	}
	var nodeSlots, edgeSlots []int
	for _, name := range d.Variables {
		slot, ok := b.scope.lookup(name)
		if !ok {
			return nil, fmt.Errorf("planbuilder: DELETE references unbound alias %q", name)
		}
		if b.scope.isEdge(name) {
			edgeSlots = append(edgeSlots, slot)
		} else {
			nodeSlots = append(nodeSlots, slot)
		}
	}
	return plan.NewDelete(cur, nodeSlots, edgeSlots), nil
}

func (b *builder) compileUnwind(cur plan.Operator, u *ast.Unwind) (plan.Operator, error) {
	if cur == nil {
		cur = newNoopSource()
	}
	expr, err := b.compileExpr(&u.Expr)
	if err != nil {
		return nil, err
	}
	slot := b.scope.slot(u.Variable)
	return plan.NewUnwind(cur, expr, slot), nil
}

// procedureYields is the fixed yield-column contract for every
// registered procedure. A YIELD
// clause requesting a subset still reserves one slot per declared
// column since plan.ProcedureCall requires exact positional
// correspondence with the row Call returns; unrequested columns just
// get an anonymous slot nothing downstream references.
var procedureYields = map[string][]string{
	"algo.shortestPath": {"path", "weight", "cost"},
	"algo.SPpaths":      {"path", "weight", "cost"},
	"algo.SSpaths":      {"path", "weight", "cost"},
	"db.constraints":    {"type", "label", "properties", "status"},
}

func (b *builder) compileCall(cur plan.Operator, c *ast.Call) (plan.Operator, error) {
	cols, ok := procedureYields[c.Procedure]
	if !ok {
		return nil, fmt.Errorf("planbuilder: unknown procedure %q", c.Procedure)
	}

	args := make([]arithmetic.Node, len(c.Args))
	for i := range c.Args {
		a, err := b.compileExpr(&c.Args[i])
		if err != nil {
			return nil, err
		}
		args[i] = a
	}

	requested := make(map[string]bool, len(c.Yield))
	for _, y := range c.Yield {
		requested[y] = true
	}
	slots := make([]int, len(cols))
	for i, col := range cols {
		if len(c.Yield) == 0 || requested[col] {
			slots[i] = b.scope.slot(col)
		} else {
			slots[i] = b.scope.slot("")
		}
	}

	return plan.NewProcedureCall(cur, c.Procedure, args, slots), nil
}

// compileCallSubquery compiles a `CALL {... }` clause. A
// subquery whose branches end in RETURN is eager-and-returning and
// compiles to Apply, running once per outer row and yielding every row
// it produces; one with no RETURN runs purely for its side effects and
// compiles to CallSubquery, which always yields exactly the outer row.
func (b *builder) compileCallSubquery(cur plan.Operator, q *ast.Query) (plan.Operator, error) {
	if cur == nil {
		cur = newNoopSource()
	}
	inner, endsReturn, err := b.compileSubqueryBody(q)
	if err != nil {
		return nil, err
	}
	if endsReturn {
		return plan.NewApply(cur, inner), nil
	}
	return plan.NewCallSubquery(cur, inner), nil
}

// subqueryOutName is the slot name a CALL{} subquery's own RETURN/WITH
// item is reserved under: its natural binding name when it has one, so
// the outer query can reference it by that name once the subquery
// returns, or an internal name for an unaliased computed expression.
func subqueryOutName(it ast.ReturnItem, i int) string {
	if n := projectionBindName(it); n != "" {
		return n
	}
	return fmt.Sprintf("@subout_%d", i)
}

// compileSubqueryBody compiles q's clause sequence against the builder's
// shared scope (not a fresh one), so slot numbers for any outer alias
// the subquery reads or the rewrite pass renamed line up with the
// physical Record slots Apply/CallSubquery share between LHS and RHS.
// It reports whether q (or, for a UNION'd subquery, its first branch)
// ends in its own RETURN.
func (b *builder) compileSubqueryBody(q *ast.Query) (plan.Operator, bool, error) {
	finalReturn := lastProjection(q.Clauses)
	var outSlots []int
	if finalReturn != nil {
		outSlots = make([]int, len(finalReturn.Items))
		for i, it := range finalReturn.Items {
			outSlots[i] = b.scope.slot(subqueryOutName(it, i))
		}
	}

	lastIdx := lastProjectionIndex(q.Clauses)
	var inner plan.Operator
	for i := range q.Clauses {
		c := &q.Clauses[i]
		isFinal := finalReturn != nil && i == lastIdx
		var err error
		inner, err = b.compileClause(inner, c, isFinal, outSlots)
		if err != nil {
			return nil, false, err
		}
	}
	if inner == nil {
		inner = newNoopSource()
	}
	endsReturn := lastIdx >= 0 && q.Clauses[lastIdx].Kind == ast.ClauseReturn

	if q.UnionNext != nil {
		tail, _, err := b.compileSubqueryBody(q.UnionNext)
		if err != nil {
			return nil, false, err
		}
		concat := plan.Operator(plan.NewConcat([]plan.Operator{inner, tail}))
		if !q.UnionAll && outSlots != nil {
			concat = plan.NewDistinct(concat, outSlots)
		}
		return concat, endsReturn, nil
	}

	return inner, endsReturn, nil
}

func entityKindOf(isEdge bool) constraint.EntityKind {
	if isEdge {
		return constraint.EdgeEntity
	}
	return constraint.NodeEntity
}

// primaryLabelOf returns the schema id a SET/REMOVE item's target alias
// is scoped to for constraint re-enforcement: the first label a node
// alias was bound with, or the relationship type an edge alias was
// bound with. An alias with no recorded label/type (an untyped node
// pattern, or an edge reached only via a multi-type pattern) resolves
// to an id no constraint will ever match.
func (b *builder) primaryLabelOf(alias string) graphstore.SchemaID {
	if b.scope.isEdge(alias) {
		if rt, ok := b.scope.relTypes[alias]; ok {
			return b.store.Ctx.RelTypeID(rt)
		}
		return graphstore.SchemaID(-1)
	}
	if labels, ok := b.scope.labels[alias]; ok && len(labels) > 0 {
		return b.store.Ctx.LabelID(labels[0])
	}
	return graphstore.SchemaID(-1)
}
