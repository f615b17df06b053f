package planbuilder

import (
	"sort"

	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/ast"
	"github.com/graphkernel/corequery/internal/filtertree"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/plan"
	"github.com/graphkernel/corequery/internal/querygraph"
)

// compileMatch compiles one MATCH clause's patterns. Every pattern in
// the clause is folded into one querygraph.QG first so aliases shared
// across comma-separated patterns merge into a single component; each
// resulting component then compiles independently, and components
// beyond the first cross-join onto the running chain via Apply, giving
// disconnected patterns Cartesian-product semantics.
func (b *builder) compileMatch(cur plan.Operator, m *ast.Match) (plan.Operator, error) {
	g := querygraph.New()
	nodeProps := map[string]map[string]ast.Expr{}
	relProps := map[string]map[string]ast.Expr{}
	for _, p := range m.Patterns {
		g.Build(p)
		for _, np := range p.Nodes {
			if np.Variable != "" && len(np.Properties) > 0 {
				nodeProps[np.Variable] = np.Properties
			}
		}
		for _, rp := range p.Rels {
			if rp.Variable != "" && len(rp.Properties) > 0 {
				relProps[rp.Variable] = rp.Properties
			}
		}
	}
	for alias, n := range g.Nodes {
		b.scope.bindLabels(alias, n.Labels)
	}

	comps := g.ConnectedComponents()
	sort.Slice(comps, func(i, j int) bool { return componentKey(comps[i]) < componentKey(comps[j]) })

	for _, comp := range comps {
		var err error
		cur, err = b.compileComponent(cur, comp, nodeProps, relProps)
		if err != nil {
			return nil, err
		}
	}

	for _, p := range m.Patterns {
		if p.PathVariable == "" {
			continue
		}
		cur = b.buildNamedPath(cur, g, p.PathVariable)
	}

	if m.Where != nil {
		cond, err := b.compileCondition(&m.Where.Condition)
		if err != nil {
			return nil, err
		}
		cur = plan.NewFilter(cur, cond)
	}
	return cur, nil
}

// buildNamedPath wraps cur with a PathBuild materializing pathVar from
// the alternating node/edge alias sequence its pattern recorded.
func (b *builder) buildNamedPath(cur plan.Operator, g *querygraph.QG, pathVar string) plan.Operator {
	seq, ok := g.PathAliasSequence(pathVar)
	if !ok {
		return cur
	}
	var nodeSlots, edgeSlots []int
	for i, alias := range seq {
		if i%2 == 0 {
			nodeSlots = append(nodeSlots, b.scope.slot(alias))
		} else {
			edgeSlots = append(edgeSlots, b.scope.slot(alias))
		}
	}
	return plan.NewPathBuild(cur, b.scope.slot(pathVar), nodeSlots, edgeSlots)
}

// componentKey gives ConnectedComponents' map-ordered output a
// deterministic sort key (the smallest alias in the component), so the
// same query compiles to the same plan shape every time.
func componentKey(comp *querygraph.QG) string {
	best := ""
	for alias := range comp.Nodes {
		if best == "" || alias < best {
			best = alias
		}
	}
	return best
}

// compileComponent compiles one connected component of a pattern's
// query graph into an operator chain, starting from an already-bound
// alias when one exists (continuing the chain in place, the same
// cross-pattern continuation `MATCH (a)-->(b) MATCH (a)-->(c)` relies
// on) or a fresh scan otherwise (cross-joined onto cur via Apply,
// giving a disconnected pattern Cartesian-product semantics). A cyclic
// edge — both endpoints already visited within this component's own
// traversal — is left unexpanded rather than re-checked as an
// additional equality filter; queries relying on such a cycle compile
// but under-constrain that edge.
func (b *builder) compileComponent(cur plan.Operator, comp *querygraph.QG, nodeProps, relProps map[string]map[string]ast.Expr) (plan.Operator, error) {
	aliases := make([]string, 0, len(comp.Nodes))
	for a := range comp.Nodes {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)

	start := aliases[0]
	for _, a := range aliases {
		if b.scope.isBound(a) {
			start = a
			break
		}
	}

	visited := map[string]bool{start: true}
	chain := cur
	if !b.scope.isBound(start) {
		scanOp, err := b.buildScan(start, comp.Nodes[start], nodeProps)
		if err != nil {
			return nil, err
		}
		if chain == nil {
			chain = scanOp
		} else {
			chain = plan.NewApply(chain, scanOp)
		}
	} else if chain == nil {
		return nil, errUnboundStart(start)
	}

	remaining := append([]*querygraph.QGEdge(nil), comp.Edges...)
	for len(remaining) > 0 {
		var next []*querygraph.QGEdge
		progressed := false
		for _, e := range remaining {
			srcVisited, dstVisited := visited[e.Src], visited[e.Dst]
			switch {
			case srcVisited && dstVisited:
				// cycle-closing edge, left unexpanded (see doc comment).
			case !srcVisited && !dstVisited:
				next = append(next, e)
			default:
				fromAlias, toAlias := e.Src, e.Dst
				reversed := false
				if dstVisited {
					fromAlias, toAlias = e.Dst, e.Src
					reversed = true
				}
				var err error
				chain, err = b.expandEdge(chain, e, fromAlias, toAlias, reversed, nodeProps, relProps)
				if err != nil {
					return nil, err
				}
				visited[toAlias] = true
				progressed = true
			}
		}
		if !progressed {
			break // remaining edges are all cycle-closing; stop.
		}
		remaining = next
	}

	return chain, nil
}

func (b *builder) expandEdge(chain plan.Operator, e *querygraph.QGEdge, fromAlias, toAlias string, reversed bool, nodeProps, relProps map[string]map[string]ast.Expr) (plan.Operator, error) {
	srcSlot := b.scope.slot(fromAlias)
	dstSlot := b.scope.slot(toAlias)
	edgeSlot := b.scope.slot(e.Alias)
	b.scope.markEdge(e.Alias)
	b.scope.bindRelType(e.Alias, e.Types)
	relTypes := resolveRelTypes(b.store, e.Types)
	dir := edgeDirection(e.Dir, reversed)

	if e.IsVariableLength() {
		maxHops := e.MaxHops
		if maxHops < 0 {
			maxHops = 32 // cap pattern depth so a malformed `*..` pattern can't run away
		}
		chain = plan.NewVarLengthExpand(chain, srcSlot, dstSlot, edgeSlot, relTypes, dir, e.MinHops, maxHops)
	} else {
		chain = plan.NewExpand(chain, srcSlot, edgeSlot, dstSlot, relTypes, dir)
	}

	if props, ok := relProps[e.Alias]; ok {
		cond, err := b.propsCondition(edgeSlot, props)
		if err != nil {
			return nil, err
		}
		chain = plan.NewFilter(chain, cond)
	}

	// Labels on a destination node reached mid-Expand can't narrow the
	// traversal itself (Expand yields any-label neighbor), so they're
	// enforced as a post-hoc filter here instead; a fresh-scan start
	// alias gets the cheaper NodeByLabelScan treatment in buildScan.
	if labels, ok := b.scope.labels[toAlias]; ok {
		for _, l := range labels {
			chain = plan.NewFilter(chain, filtertree.HasLabel(arithmetic.Variable(dstSlot), l))
		}
	}
	if props, ok := nodeProps[toAlias]; ok {
		cond, err := b.propsCondition(dstSlot, props)
		if err != nil {
			return nil, err
		}
		chain = plan.NewFilter(chain, cond)
	}
	return chain, nil
}

func (b *builder) buildScan(alias string, node *querygraph.QGNode, nodeProps map[string]map[string]ast.Expr) (plan.Operator, error) {
	slot := b.scope.slot(alias)
	var op plan.Operator
	if len(node.Labels) > 0 {
		op = plan.NewNodeByLabelScan(slot, b.store.Ctx.LabelID(node.Labels[0]))
		for _, extra := range node.Labels[1:] {
			op = plan.NewFilter(op, filtertree.HasLabel(arithmetic.Variable(slot), extra))
		}
	} else {
		op = plan.NewAllNodeScan(slot)
	}
	if props, ok := nodeProps[alias]; ok {
		cond, err := b.propsCondition(slot, props)
		if err != nil {
			return nil, err
		}
		op = plan.NewFilter(op, cond)
	}
	return op, nil
}

// propsCondition builds an AND of equality predicates from a pattern
// element's inline `{prop: expr,...}` map.
func (b *builder) propsCondition(slot int, props map[string]ast.Expr) (*filtertree.Node, error) {
	var conds []*filtertree.Node
	for name, e := range props {
		rhs, err := b.compileExpr(&e)
		if err != nil {
			return nil, err
		}
		lhs := arithmetic.Property(slot, b.store.Ctx.AttrID(name))
		conds = append(conds, filtertree.Predicate(filtertree.OpEq, lhs, rhs))
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return filtertree.And(conds...), nil
}

func edgeDirection(d querygraph.Direction, reversed bool) graphstore.Direction {
	if d == querygraph.Both {
		return graphstore.Both
	}
	if reversed {
		if d == querygraph.Outgoing {
			return graphstore.Incoming
		}
		return graphstore.Outgoing
	}
	if d == querygraph.Outgoing {
		return graphstore.Outgoing
	}
	return graphstore.Incoming
}

type unboundStartError struct{ alias string }

func (e *unboundStartError) Error() string {
	return "planbuilder: pattern continuation references unbound alias " + e.alias
}

func errUnboundStart(alias string) error { return &unboundStartError{alias: alias} }
