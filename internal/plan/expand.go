package plan

import (
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/record"
	"github.com/graphkernel/corequery/internal/value"
)

// Expand traverses one hop along zero or more relation types from the
// node bound at SrcSlot, binding the traversed edge at EdgeSlot and the
// reached node at DstSlot.
type Expand struct {
	base
	Child   Operator
	SrcSlot int
	EdgeSlot int
	DstSlot int
	RelTypes []graphstore.SchemaID // empty means any relation
	Dir     graphstore.Direction

	ctx     *Ctx
	frontier []*graphstore.Edge
	pos      int
	haveSrc  bool
}

func NewExpand(child Operator, srcSlot, edgeSlot, dstSlot int, relTypes []graphstore.SchemaID, dir graphstore.Direction) *Expand {
	mods := append(append([]int{}, child.Modifiers()...), edgeSlot, dstSlot)
	return &Expand{
		base:     base{modifiers: mods, dependencies: append([]int{srcSlot}, child.Dependencies()...), cardinality: CardinalityMany},
		Child:    child,
		SrcSlot:  srcSlot,
		EdgeSlot: edgeSlot,
		DstSlot:  dstSlot,
		RelTypes: relTypes,
		Dir:      dir,
	}
}

func (o *Expand) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Child.Init(ctx)
}

func (o *Expand) Reset() {
	o.Child.Reset()
	o.frontier = nil
	o.pos = 0
	o.haveSrc = false
}

func (o *Expand) Consume(rec *record.Record) Status {
	for {
		if o.ctx.Cancelled() {
			return StatusAborted
		}
		if o.pos < len(o.frontier) {
			e := o.frontier[o.pos]
			o.pos++
			setEdgeSlot(rec, o.EdgeSlot, o.ctx.Store, e)
			dst := otherEnd(e, rec.Get(o.SrcSlot).NodeRef().ID)
			setNodeSlot(rec, o.DstSlot, o.ctx.Store, dst)
			return StatusRecord
		}

		st := o.Child.Consume(rec)
		if st != StatusRecord {
			return st
		}
		srcID := rec.Get(o.SrcSlot).NodeRef().ID
		o.frontier = collectEdges(o.ctx.Store, srcID, o.Dir, o.RelTypes)
		o.pos = 0
	}
}

func setEdgeSlot(rec *record.Record, slot int, store *graphstore.Store, e *graphstore.Edge) {
	rec.Set(slot, value.Edge(value.EdgeRef{ID: e.ID, Src: e.Src, Dst: e.Dst, Relation: store.Ctx.RelTypeName(e.Relation)}), record.SlotEdge)
}

func otherEnd(e *graphstore.Edge, from int64) int64 {
	if e.Src == from {
		return e.Dst
	}
	return e.Src
}

func collectEdges(store *graphstore.Store, srcID int64, dir graphstore.Direction, relTypes []graphstore.SchemaID) []*graphstore.Edge {
	if len(relTypes) == 0 {
		return store.GetNodeEdges(srcID, dir, -1)
	}
	var out []*graphstore.Edge
	for _, rel := range relTypes {
		out = append(out, store.GetNodeEdges(srcID, dir, rel)...)
	}
	return out
}

// VarLengthExpand performs [minHops, maxHops] expansion as a
// depth-first search per source node, with same-path cycle elimination.
type VarLengthExpand struct {
	base
	Child    Operator
	SrcSlot  int
	DstSlot  int
	PathEdgeSlot int // holds the traversed edge list as a KindArray of edges
	RelTypes []graphstore.SchemaID
	Dir      graphstore.Direction
	MinHops  int
	MaxHops  int

	ctx     *Ctx
	results []varLenResult
	pos     int
}

type varLenResult struct {
	dst   int64
	edges []*graphstore.Edge
}

func NewVarLengthExpand(child Operator, srcSlot, dstSlot, pathEdgeSlot int, relTypes []graphstore.SchemaID, dir graphstore.Direction, minHops, maxHops int) *VarLengthExpand {
	mods := append(append([]int{}, child.Modifiers()...), dstSlot, pathEdgeSlot)
	return &VarLengthExpand{
		base:    base{modifiers: mods, dependencies: append([]int{srcSlot}, child.Dependencies()...), cardinality: CardinalityMany},
		Child:   child, SrcSlot: srcSlot, DstSlot: dstSlot, PathEdgeSlot: pathEdgeSlot,
		RelTypes: relTypes, Dir: dir, MinHops: minHops, MaxHops: maxHops,
	}
}

func (o *VarLengthExpand) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Child.Init(ctx)
}

func (o *VarLengthExpand) Reset() {
	o.Child.Reset()
	o.results = nil
	o.pos = 0
}

func (o *VarLengthExpand) Consume(rec *record.Record) Status {
	for {
		if o.ctx.Cancelled() {
			return StatusAborted
		}
		if o.pos < len(o.results) {
			r := o.results[o.pos]
			o.pos++
			setNodeSlot(rec, o.DstSlot, o.ctx.Store, r.dst)
			rec.Set(o.PathEdgeSlot, edgesToArray(o.ctx.Store, r.edges), record.SlotScalar)
			return StatusRecord
		}

		st := o.Child.Consume(rec)
		if st != StatusRecord {
			return st
		}
		srcID := rec.Get(o.SrcSlot).NodeRef().ID
		o.results = nil
		o.dfs(srcID, map[int64]struct{}{srcID: {}}, nil)
		o.pos = 0
	}
}

func (o *VarLengthExpand) dfs(cur int64, onPath map[int64]struct{}, path []*graphstore.Edge) {
	depth := len(path)
	if depth >= o.MinHops && depth <= o.MaxHops {
		o.results = append(o.results, varLenResult{dst: cur, edges: append([]*graphstore.Edge(nil), path...)})
	}
	if depth >= o.MaxHops {
		return
	}
	for _, e := range collectEdges(o.ctx.Store, cur, o.Dir, o.RelTypes) {
		next := otherEnd(e, cur)
		if _, seen := onPath[next]; seen {
			continue
		}
		onPath[next] = struct{}{}
		o.dfs(next, onPath, append(path, e))
		delete(onPath, next)
	}
}

func edgesToArray(store *graphstore.Store, edges []*graphstore.Edge) value.V {
	vs := make([]value.V, len(edges))
	for i, e := range edges {
		vs[i] = value.Edge(value.EdgeRef{ID: e.ID, Src: e.Src, Dst: e.Dst, Relation: store.Ctx.RelTypeName(e.Relation)})
	}
	return value.ArraySelf(vs)
}
