package plan

import (
	"github.com/graphkernel/corequery/internal/record"
	"github.com/graphkernel/corequery/internal/value"
)

// PathBuild materializes a named path variable (`p = (a)-[r]->(b)`)
// from the node and edge slots its pattern bound, in pattern order. A
// variable-length edge slot holds an array of edges and is flattened
// into the path, so a cyclic traversal shows up as repeated node ids,
// never as a structural cycle.
type PathBuild struct {
	base
	Child     Operator
	Slot      int
	NodeSlots []int
	EdgeSlots []int

	ctx *Ctx
}

func NewPathBuild(child Operator, slot int, nodeSlots, edgeSlots []int) *PathBuild {
	mods := append(append([]int{}, child.Modifiers()...), slot)
	deps := append(append([]int{}, nodeSlots...), edgeSlots...)
	return &PathBuild{
		base:  base{modifiers: mods, dependencies: deps, cardinality: child.EstimatedCardinality()},
		Child: child, Slot: slot, NodeSlots: nodeSlots, EdgeSlots: edgeSlots,
	}
}

func (o *PathBuild) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Child.Init(ctx)
}

func (o *PathBuild) Reset() { o.Child.Reset() }

func (o *PathBuild) Consume(rec *record.Record) Status {
	st := o.Child.Consume(rec)
	if st != StatusRecord {
		return st
	}
	p := &value.Path{}
	for i, ns := range o.NodeSlots {
		nv := rec.Get(ns)
		if nv.Kind() == value.KindNode {
			p.Nodes = append(p.Nodes, nv.NodeRef())
		}
		if i < len(o.EdgeSlots) {
			appendPathEdges(p, rec.Get(o.EdgeSlots[i]))
		}
	}
	rec.Set(o.Slot, value.PathVal(p, value.AllocSelf), record.SlotScalar)
	return StatusRecord
}

func appendPathEdges(p *value.Path, ev value.V) {
	switch ev.Kind() {
	case value.KindEdge:
		p.Edges = append(p.Edges, ev.EdgeRef())
	case value.KindArray:
		for _, e := range ev.Array() {
			if e.Kind() == value.KindEdge {
				p.Edges = append(p.Edges, e.EdgeRef())
			}
		}
	}
}
