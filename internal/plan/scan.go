package plan

import (
	"github.com/graphkernel/corequery/internal/filtertree"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/indexapi"
	"github.com/graphkernel/corequery/internal/record"
	"github.com/graphkernel/corequery/internal/value"
)

// AllNodeScan is the leaf operator for `MATCH (n)...`: iterates every
// live node id.
type AllNodeScan struct {
	base
	Slot int

	ctx *Ctx
	ids []int64
	pos int
}

func NewAllNodeScan(slot int) *AllNodeScan {
	return &AllNodeScan{base: base{modifiers: []int{slot}, cardinality: CardinalityMany}, Slot: slot}
}

func (o *AllNodeScan) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Reset()
}

func (o *AllNodeScan) Reset() {
	o.ids = o.ctx.Store.AllNodeIDs()
	o.pos = 0
}

func (o *AllNodeScan) Consume(rec *record.Record) Status {
	if o.ctx.Cancelled() {
		return StatusAborted
	}
	if o.pos >= len(o.ids) {
		return StatusEOF
	}
	id := o.ids[o.pos]
	o.pos++
	setNodeSlot(rec, o.Slot, o.ctx.Store, id)
	return StatusRecord
}

func setNodeSlot(rec *record.Record, slot int, store *graphstore.Store, id int64) {
	n := store.GetNode(id)
	labels := make([]string, 0, len(n.Labels))
	for l := range n.Labels {
		labels = append(labels, store.Ctx.LabelName(l))
	}
	rec.Set(slot, value.Node(value.NodeRef{ID: id, Labels: labels}), record.SlotNode)
}

// NodeByLabelScan iterates the per-label boolean matrix:
// `MATCH (n:Label)...` with no usable index.
type NodeByLabelScan struct {
	base
	Slot  int
	Label graphstore.SchemaID

	ctx *Ctx
	ids []int64
	pos int
}

func NewNodeByLabelScan(slot int, label graphstore.SchemaID) *NodeByLabelScan {
	return &NodeByLabelScan{base: base{modifiers: []int{slot}, cardinality: CardinalityMany}, Slot: slot, Label: label}
}

func (o *NodeByLabelScan) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Reset()
}

func (o *NodeByLabelScan) Reset() {
	o.ids = o.ctx.Store.NodesWithLabel(o.Label)
	o.pos = 0
}

func (o *NodeByLabelScan) Consume(rec *record.Record) Status {
	if o.ctx.Cancelled() {
		return StatusAborted
	}
	if o.pos >= len(o.ids) {
		return StatusEOF
	}
	id := o.ids[o.pos]
	o.pos++
	setNodeSlot(rec, o.Slot, o.ctx.Store, id)
	return StatusRecord
}

// IndexScan replaces a NodeByLabelScan whose parent filter chain was
// pushed down into an index query: the residual filter
// (if any) still runs downstream, but the entities it sees are already
// narrowed by q.
type IndexScan struct {
	base
	Slot      int
	Label     graphstore.SchemaID
	Query     indexapi.QueryNode
	IndexName string

	ctx *Ctx
	it  indexapi.Iterator
}

func NewIndexScan(slot int, label graphstore.SchemaID, indexName string, q indexapi.QueryNode) *IndexScan {
	return &IndexScan{base: base{modifiers: []int{slot}, cardinality: CardinalityMany}, Slot: slot, Label: label, IndexName: indexName, Query: q}
}

func (o *IndexScan) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Reset()
}

func (o *IndexScan) Reset() {
	if o.it != nil {
		o.it.Close()
		o.it = nil
	}
	if o.Query.Kind == indexapi.QueryEmpty {
		return
	}
	idx, ok := o.ctx.Indexes.Index(o.IndexName)
	if !ok {
		return
	}
	it, err := idx.Query(o.Query)
	if err != nil {
		o.ctx.OnError(err)
		return
	}
	o.it = it
}

func (o *IndexScan) Consume(rec *record.Record) Status {
	if o.ctx.Cancelled() {
		return StatusAborted
	}
	if o.it == nil {
		return StatusEOF
	}
	id, ok := o.it.Next()
	if !ok {
		return StatusEOF
	}
	setNodeSlot(rec, o.Slot, o.ctx.Store, id)
	return StatusRecord
}

// EmptyResult is a leaf that yields nothing: the plan-time outcome of
// an invalid IndexRange.
type EmptyResult struct {
	base
}

func NewEmptyResult() *EmptyResult { return &EmptyResult{} }

func (o *EmptyResult) Init(ctx *Ctx)                      {}
func (o *EmptyResult) Reset()                             {}
func (o *EmptyResult) Consume(rec *record.Record) Status  { return StatusEOF }

// Filter wraps a single child with a filtertree predicate, keeping only
// rows where Apply returns TriTrue.
type Filter struct {
	base
	Child Operator
	Tree  *filtertree.Node

	ctx *Ctx
}

func NewFilter(child Operator, tree *filtertree.Node) *Filter {
	return &Filter{base: base{modifiers: child.Modifiers(), dependencies: child.Dependencies(), cardinality: child.EstimatedCardinality()}, Child: child, Tree: tree}
}

func (o *Filter) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Child.Init(ctx)
}

func (o *Filter) Reset() { o.Child.Reset() }

func (o *Filter) Consume(rec *record.Record) Status {
	for {
		st := o.Child.Consume(rec)
		if st != StatusRecord {
			return st
		}
		if o.ctx.Cancelled() {
			return StatusAborted
		}
		if filtertree.Apply(o.Tree, rec, o.ctx) == value.TriTrue {
			return StatusRecord
		}
	}
}
