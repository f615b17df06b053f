package resultset

import (
	"strconv"

	"github.com/graphkernel/corequery/internal/attrset"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/value"
)

// RenderVerbose encodes s in the verbose wire format: each column
// value as [name, value]; nodes as
// [id, labels[], properties]; edges as [id, type, src, dst,
// properties]; properties as a [key, value] pair list (never a bare
// map, so property order is part of the wire contract rather than left
// to a JSON encoder's map iteration); doubles rendered by verboseFloat
// as 15-significant-digit %g strings (a whole-valued double prints
// without the ".0" that value.ToString adds).
func RenderVerbose(s *Set, store *graphstore.Store) [][]any {
	out := make([][]any, len(s.Rows))
	for i, row := range s.Rows {
		encoded := make([]any, len(row))
		for j, v := range row {
			encoded[j] = []any{s.Columns[j], verboseValue(v, store)}
		}
		out[i] = encoded
	}
	return out
}

func verboseValue(v value.V, store *graphstore.Store) any {
	switch v.Kind() {
	case value.KindNull:
		return nil
	case value.KindBool:
		return v.Bool()
	case value.KindInt:
		return v.Int()
	case value.KindFloat:
		return verboseFloat(v.Float())
	case value.KindString:
		return v.Str()
	case value.KindArray:
		arr := v.Array()
		out := make([]any, len(arr))
		for i, e := range arr {
			out[i] = verboseValue(e, store)
		}
		return out
	case value.KindMap:
		m := v.Map()
		out := make([]any, 0, m.Len())
		for _, k := range m.Keys() {
			val, _ := m.Get(k)
			out = append(out, []any{k, verboseValue(val, store)})
		}
		return out
	case value.KindNode:
		return verboseNode(v.NodeRef(), store)
	case value.KindEdge:
		return verboseEdge(v.EdgeRef(), store)
	case value.KindPath:
		p := v.Path()
		nodes := make([]any, len(p.Nodes))
		for i, n := range p.Nodes {
			nodes[i] = verboseNode(n, store)
		}
		edges := make([]any, len(p.Edges))
		for i, e := range p.Edges {
			edges[i] = verboseEdge(e, store)
		}
		return []any{nodes, edges}
	case value.KindPoint:
		pt := v.Point()
		return []any{pt.Lat, pt.Lon}
	default:
		return nil
	}
}

// verboseFloat renders with the 15-significant-digit %g rule rather
// than Go's default %v.
func verboseFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 15, 64)
}

func verboseNode(n value.NodeRef, store *graphstore.Store) any {
	props := verboseProperties(store.GetNode(n.ID), store)
	return []any{n.ID, n.Labels, props}
}

func verboseEdge(e value.EdgeRef, store *graphstore.Store) any {
	props := verboseEdgeProperties(store.GetEdge(e.ID), store)
	return []any{e.ID, e.Relation, e.Src, e.Dst, props}
}

func verboseProperties(n *graphstore.Node, store *graphstore.Store) []any {
	if n == nil {
		return []any{}
	}
	return propertiesOf(n.Attrs, store)
}

func verboseEdgeProperties(e *graphstore.Edge, store *graphstore.Store) []any {
	if e == nil {
		return []any{}
	}
	return propertiesOf(e.Attrs, store)
}

// propertiesOf walks attrs in an id-ascending order stable across
// verbose/compact (the store's attribute ids are assigned once and
// never reused), resolving each id to its name for the verbose format.
func propertiesOf(attrs *attrset.Set, store *graphstore.Store) []any {
	out := make([]any, 0)
	for id := 0; id < store.Ctx.AttrCount(); id++ {
		v, ok := attrs.Get(id)
		if !ok {
			continue
		}
		out = append(out, []any{store.Ctx.AttrName(id), verboseValue(v, store)})
	}
	return out
}
