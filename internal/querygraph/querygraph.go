// Package querygraph implements QG, the pattern-time analogue of the
// graph store: an undirected multigraph of
// QGNode/QGEdge built from MATCH/CREATE/MERGE patterns, with alias
// resolution, connected-component extraction, and path extraction.
//
// QG is deliberately undirected at the graph-shape level even though
// each QGEdge carries a Direction: two patterns sharing an alias merge
// into one connected component regardless of which way their
// relationships point; grouping by shared entities happens before
// traversal direction is ever considered.
package querygraph

import (
	"fmt"

	"github.com/graphkernel/corequery/internal/ast"
)

// Direction mirrors ast.RelDirection at the query-graph level so this
// package does not need to import ast for every call site that only
// cares about traversal direction.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

func fromASTDirection(d ast.RelDirection) Direction {
	switch d {
	case ast.DirIncoming:
		return Incoming
	case ast.DirBoth:
		return Both
	default:
		return Outgoing
	}
}

// QGNode is one pattern-time node: an alias, optionally constrained by
// label(s) and a property map (carried on the AST pattern, not here —
// QG only tracks the pattern's *shape*).
type QGNode struct {
	Alias  string
	Labels []string
}

// QGEdge is one pattern-time relationship between two QGNode aliases.
// MinHops/MaxHops describe a variable-length pattern; both are 1 for a
// plain single-hop relationship.
type QGEdge struct {
	Alias    string
	Src, Dst string // node aliases
	Types    []string
	Dir      Direction
	MinHops  int
	MaxHops  int // -1 means unbounded
}

// IsVariableLength reports whether e spans more than one hop.
func (e *QGEdge) IsVariableLength() bool {
	return e.MinHops != 1 || e.MaxHops != 1
}

// QG is one pattern's query graph: nodes keyed by alias, edges in
// pattern order, plus the path variable (if any) each pattern was bound
// to, for path extraction.
type QG struct {
	Nodes map[string]*QGNode
	Edges []*QGEdge

	// pathAliases maps a path variable ("p" in `p = (a)-[r]->(b)`) to the
	// ordered alias sequence (node, edge, node, edge,...) that makes up
	// the path, exposed through PathAliasSequence.
	pathAliases map[string][]string

	anonCounter int
}

// New returns an empty query graph.
func New() *QG {
	return &QG{Nodes: make(map[string]*QGNode), pathAliases: make(map[string][]string)}
}

// freshAlias generates an internal alias for an anonymous pattern
// element, guaranteed not to collide with any user-level identifier
// since query-language identifiers may not start with "@".
func (g *QG) freshAlias(prefix string) string {
	g.anonCounter++
	return fmt.Sprintf("@anon_%s_%d", prefix, g.anonCounter)
}

// LookupNode resolves alias to its QGNode.
func (g *QG) LookupNode(alias string) (*QGNode, bool) {
	n, ok := g.Nodes[alias]
	return n, ok
}

func (g *QG) addOrMergeNode(np ast.NodePattern) *QGNode {
	alias := np.Variable
	if alias == "" {
		alias = g.freshAlias("node")
	}
	existing, ok := g.Nodes[alias]
	if !ok {
		n := &QGNode{Alias: alias, Labels: append([]string(nil), np.Labels...)}
		g.Nodes[alias] = n
		return n
	}
	// Same alias reused in a later pattern: union the label constraints,
	// since a later clause's `(n:Extra)` narrows what `n` already means.
	existing.Labels = unionStrings(existing.Labels, np.Labels)
	return existing
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	out := append([]string(nil), a...)
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			out = append(out, s)
			seen[s] = struct{}{}
		}
	}
	return out
}

// Build merges one AST pattern into g, resolving aliases and generating
// fresh internal aliases for anonymous nodes/relationships. Path patterns record their alias sequence for PathAliasSequence.
func (g *QG) Build(p ast.Pattern) {
	g.BuildNamed(p)
}

// BuildNamed is Build plus the node/edge alias sequence assigned to p's
// elements in pattern order (including generated "@anon_..." aliases for
// anonymous elements), used by CREATE/MERGE compilation to bind a plan
// slot to every pattern element positionally without re-deriving how an
// anonymous element's alias was generated.
func (g *QG) BuildNamed(p ast.Pattern) (nodeAliases, edgeAliases []string) {
	nodeAliases = make([]string, len(p.Nodes))
	for i, np := range p.Nodes {
		nodeAliases[i] = g.addOrMergeNode(np).Alias
	}

	edgeAliases = make([]string, len(p.Rels))
	for i, rp := range p.Rels {
		alias := rp.Variable
		if alias == "" {
			alias = g.freshAlias("rel")
		}
		edgeAliases[i] = alias
		// MinHops < 0 marks a plain single-hop relationship; for a
		// variable-length one, MaxHops < 0 means unbounded and is kept
		// as-is for the expansion operator to cap.
		minHops, maxHops := rp.MinHops, rp.MaxHops
		if minHops < 0 {
			minHops, maxHops = 1, 1
		}
		g.Edges = append(g.Edges, &QGEdge{
			Alias:   alias,
			Src:     nodeAliases[i],
			Dst:     nodeAliases[i+1],
			Types:   append([]string(nil), rp.Types...),
			Dir:     fromASTDirection(rp.Direction),
			MinHops: minHops,
			MaxHops: maxHops,
		})
	}

	if p.PathVariable != "" {
		seq := make([]string, 0, len(nodeAliases)+len(edgeAliases))
		for i, na := range nodeAliases {
			seq = append(seq, na)
			if i < len(edgeAliases) {
				seq = append(seq, edgeAliases[i])
			}
		}
		g.pathAliases[p.PathVariable] = seq
	}
	return nodeAliases, edgeAliases
}

// PathAliasSequence returns the node/edge alias sequence bound to a
// path variable, for an operator building a Path value post-execution.
func (g *QG) PathAliasSequence(pathVar string) ([]string, bool) {
	seq, ok := g.pathAliases[pathVar]
	return seq, ok
}

// ConnectedComponents partitions g's nodes and edges into maximal
// connected subgraphs, used by the plan builder to decide
// which scan/expand chains can run independently before a Cartesian
// product join is required.
func (g *QG) ConnectedComponents() []*QG {
	parent := make(map[string]string, len(g.Nodes))
	var find func(string) string
	find = func(a string) string {
		if parent[a] != a {
			parent[a] = find(parent[a])
		}
		return parent[a]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for alias := range g.Nodes {
		parent[alias] = alias
	}
	for _, e := range g.Edges {
		union(e.Src, e.Dst)
	}

	groups := make(map[string]*QG)
	for alias, n := range g.Nodes {
		root := find(alias)
		sub, ok := groups[root]
		if !ok {
			sub = New()
			groups[root] = sub
		}
		sub.Nodes[alias] = n
	}
	for _, e := range g.Edges {
		root := find(e.Src)
		groups[root].Edges = append(groups[root].Edges, e)
	}

	out := make([]*QG, 0, len(groups))
	for _, sub := range groups {
		out = append(out, sub)
	}
	return out
}

// Merge folds other's nodes and edges into g, unioning label
// constraints on shared aliases (used when a WITH boundary carries bindings into a new pattern).
func (g *QG) Merge(other *QG) {
	for alias, n := range other.Nodes {
		if existing, ok := g.Nodes[alias]; ok {
			existing.Labels = unionStrings(existing.Labels, n.Labels)
		} else {
			g.Nodes[alias] = &QGNode{Alias: alias, Labels: append([]string(nil), n.Labels...)}
		}
	}
	g.Edges = append(g.Edges, other.Edges...)
	for k, v := range other.pathAliases {
		g.pathAliases[k] = v
	}
}
