package resultset

import (
	"strconv"

	"github.com/graphkernel/corequery/internal/attrset"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/value"
)

// TypeTag is the compact-protocol type discriminant.
type TypeTag int

const (
	TagNull    TypeTag = 1
	TagString  TypeTag = 2
	TagInteger TypeTag = 3
	TagBoolean TypeTag = 4
	TagDouble  TypeTag = 5
	TagArray   TypeTag = 6
	TagEdge    TypeTag = 7
	TagNode    TypeTag = 8
	TagPath    TypeTag = 9
	TagMap     TypeTag = 10
	TagPoint   TypeTag = 11
)

func tagFor(k value.Kind) TypeTag {
	switch k {
	case value.KindNull:
		return TagNull
	case value.KindString:
		return TagString
	case value.KindInt:
		return TagInteger
	case value.KindBool:
		return TagBoolean
	case value.KindFloat:
		return TagDouble
	case value.KindArray:
		return TagArray
	case value.KindEdge:
		return TagEdge
	case value.KindNode:
		return TagNode
	case value.KindPath:
		return TagPath
	case value.KindMap:
		return TagMap
	case value.KindPoint:
		return TagPoint
	default:
		return TagNull
	}
}

// RenderCompact encodes s as the compact protocol: each value as
// [type_tag, value]; nodes as [id, label_ids[], properties_by_id];
// edges as [id, rel_id, src_id, dst_id, properties_by_id]; doubles
// rendered with %.15g. Only the rows are encoded; no column headers
// are produced, since the per-value type rides along with each cell.
func RenderCompact(s *Set, store *graphstore.Store) [][]any {
	out := make([][]any, len(s.Rows))
	for i, row := range s.Rows {
		encoded := make([]any, len(row))
		for j, v := range row {
			encoded[j] = compactValue(v, store)
		}
		out[i] = encoded
	}
	return out
}

func compactValue(v value.V, store *graphstore.Store) []any {
	tag := tagFor(v.Kind())
	switch v.Kind() {
	case value.KindNull:
		return []any{tag, nil}
	case value.KindBool:
		return []any{tag, v.Bool()}
	case value.KindInt:
		return []any{tag, v.Int()}
	case value.KindFloat:
		return []any{tag, compactFloat(v.Float())}
	case value.KindString:
		return []any{tag, v.Str()}
	case value.KindArray:
		arr := v.Array()
		items := make([]any, len(arr))
		for i, e := range arr {
			items[i] = compactValue(e, store)
		}
		return []any{tag, items}
	case value.KindMap:
		m := v.Map()
		items := make([]any, 0, m.Len())
		for _, k := range m.Keys() {
			val, _ := m.Get(k)
			items = append(items, []any{k, compactValue(val, store)})
		}
		return []any{tag, items}
	case value.KindNode:
		return []any{tag, compactNode(v.NodeRef(), store)}
	case value.KindEdge:
		return []any{tag, compactEdge(v.EdgeRef(), store)}
	case value.KindPath:
		p := v.Path()
		nodes := make([]any, len(p.Nodes))
		for i, n := range p.Nodes {
			nodes[i] = compactNode(n, store)
		}
		edges := make([]any, len(p.Edges))
		for i, e := range p.Edges {
			edges[i] = compactEdge(e, store)
		}
		return []any{tag, []any{nodes, edges}}
	case value.KindPoint:
		pt := v.Point()
		return []any{tag, []any{pt.Lat, pt.Lon}}
	default:
		return []any{TagNull, nil}
	}
}

func compactFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', 15, 64)
}

func compactNode(n value.NodeRef, store *graphstore.Store) []any {
	ids := make([]int64, 0, len(n.Labels))
	for _, name := range n.Labels {
		if id, ok := store.Ctx.LookupLabelID(name); ok {
			ids = append(ids, int64(id))
		}
	}
	node := store.GetNode(n.ID)
	return []any{n.ID, ids, compactProperties(attrsOf(node), store)}
}

func compactEdge(e value.EdgeRef, store *graphstore.Store) []any {
	relID, _ := store.Ctx.LookupRelTypeID(e.Relation)
	edge := store.GetEdge(e.ID)
	var attrs *attrset.Set
	if edge != nil {
		attrs = edge.Attrs
	}
	return []any{e.ID, int64(relID), e.Src, e.Dst, compactProperties(attrs, store)}
}

func attrsOf(n *graphstore.Node) *attrset.Set {
	if n == nil {
		return nil
	}
	return n.Attrs
}

// compactProperties renders attribute ids directly (no name lookup),
// the compact protocol's "properties_by_id" shape.
func compactProperties(attrs *attrset.Set, store *graphstore.Store) []any {
	out := make([]any, 0)
	if attrs == nil {
		return out
	}
	for id := 0; id < store.Ctx.AttrCount(); id++ {
		v, ok := attrs.Get(id)
		if !ok {
			continue
		}
		out = append(out, []any{id, compactValue(v, store)})
	}
	return out
}
