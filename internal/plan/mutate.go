package plan

import (
	"fmt"

	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/attrset"
	"github.com/graphkernel/corequery/internal/constraint"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/queryerr"
	"github.com/graphkernel/corequery/internal/record"
	"github.com/graphkernel/corequery/internal/value"
)

// PropSpec is one compiled property assignment: attrID <- Value.
type PropSpec struct {
	AttrID int
	Value  arithmetic.Node
}

// CreateNodeSpec compiles one `(n:Label {props})` pattern element into
// the operator-level instructions Create needs: which slot to bind the
// new node at, its labels, and its literal/parameterized properties.
type CreateNodeSpec struct {
	Slot   int
	Labels []graphstore.SchemaID
	Props  []PropSpec
}

// CreateEdgeSpec compiles one `()-[r:REL {props}]->()` pattern element.
// SrcSlot/DstSlot reference node slots already bound earlier in the
// same Create (either freshly created or matched upstream).
type CreateEdgeSpec struct {
	Slot    int
	SrcSlot int
	DstSlot int
	RelType graphstore.SchemaID
	Props   []PropSpec
}

// Create instantiates Nodes then Edges for every row pulled from Child
// (or once, for a synthetic row, if Child is nil) in a batched
// commit phase: bulk node creation runs with the store's policy set to
// SyncNop, then ReconcileMatrixSizes runs once before the edges are
// created.
type Create struct {
	base
	Child Operator
	Nodes []CreateNodeSpec
	Edges []CreateEdgeSpec

	ctx      *Ctx
	buffered bool
	rows     []*record.Record
	pos      int
}

func NewCreate(child Operator, nodes []CreateNodeSpec, edges []CreateEdgeSpec) *Create {
	var mods []int
	for _, n := range nodes {
		mods = append(mods, n.Slot)
	}
	for _, e := range edges {
		mods = append(mods, e.Slot)
	}
	var deps []int
	if child != nil {
		deps = child.Dependencies()
	}
	return &Create{base: base{modifiers: mods, dependencies: deps, cardinality: CardinalityMany}, Child: child, Nodes: nodes, Edges: edges}
}

func (o *Create) Init(ctx *Ctx) {
	o.ctx = ctx
	if o.Child != nil {
		o.Child.Init(ctx)
	}
}

func (o *Create) Reset() {
	if o.Child != nil {
		o.Child.Reset()
	}
	o.buffered = false
	o.rows = nil
	o.pos = 0
}

func (o *Create) Consume(rec *record.Record) Status {
	if !o.buffered {
		if err := o.commitAll(rec); err != nil {
			o.ctx.OnError(err)
			return StatusAborted
		}
		o.buffered = true
	}
	if o.ctx.Cancelled() {
		return StatusAborted
	}
	if o.pos >= len(o.rows) {
		return StatusEOF
	}
	copyInto(rec, o.rows[o.pos])
	o.pos++
	return StatusRecord
}

// commitAll buffers every input row, creates all nodes under a batching
// sync policy, reconciles matrix sizes once, then creates all edges.
func (o *Create) commitAll(rec *record.Record) error {
	store := o.ctx.Store
	var inputs []*record.Record
	if o.Child == nil {
		inputs = []*record.Record{rec}
	} else {
		for {
			st := o.Child.Consume(rec)
			if st == StatusAborted {
				return o.ctx.Err()
			}
			if st == StatusEOF {
				break
			}
			inputs = append(inputs, rec.Clone())
		}
	}

	prevPolicy := store.Policy()
	store.SetSyncPolicy(graphstore.SyncNop)
	for _, in := range inputs {
		for _, spec := range o.Nodes {
			id := store.CreateNode(spec.Labels)
			o.ctx.Undo.CreateNode(id)
			o.ctx.CountNewLabels(spec.Labels)
			o.applyProps(in, spec.Props, func(attrID int, v value.V) { store.SetNodeAttr(id, attrID, v) })
			setNodeSlot(in, spec.Slot, store, id)
			o.ctx.Stats.NodesCreated++
			if err := checkNodeConstraints(o.ctx, store, spec.Labels, id); err != nil {
				store.SetSyncPolicy(prevPolicy)
				return err
			}
		}
	}
	store.ReconcileMatrixSizes()
	store.SetSyncPolicy(prevPolicy)

	for _, in := range inputs {
		for _, spec := range o.Edges {
			src := in.Get(spec.SrcSlot).NodeRef().ID
			dst := in.Get(spec.DstSlot).NodeRef().ID
			id := store.CreateEdge(src, dst, spec.RelType)
			o.ctx.Undo.CreateEdge(id)
			o.applyProps(in, spec.Props, func(attrID int, v value.V) { store.SetEdgeAttr(id, attrID, v) })
			setEdgeSlot(in, spec.Slot, store, store.GetEdge(id))
			if err := checkEdgeConstraints(o.ctx, store, spec.RelType, id); err != nil {
				return err
			}
		}
		o.ctx.Stats.RelationshipsCreated += int64(len(o.Edges))
	}
	o.rows = inputs
	return nil
}

// checkNodeConstraints re-validates a freshly created node against
// every ACTIVE constraint on each of its labels.
func checkNodeConstraints(ctx *Ctx, store *graphstore.Store, labels []graphstore.SchemaID, id int64) error {
	if ctx.Constraints == nil {
		return nil
	}
	n := store.GetNode(id)
	if n == nil {
		return nil
	}
	for _, l := range labels {
		if err := violationError(ctx, store, l, constraint.NodeEntity, id, n.Attrs); err != nil {
			return err
		}
	}
	return nil
}

func checkEdgeConstraints(ctx *Ctx, store *graphstore.Store, rel graphstore.SchemaID, id int64) error {
	if ctx.Constraints == nil {
		return nil
	}
	e := store.GetEdge(id)
	if e == nil {
		return nil
	}
	return violationError(ctx, store, rel, constraint.EdgeEntity, id, e.Attrs)
}

func violationError(ctx *Ctx, store *graphstore.Store, schemaID graphstore.SchemaID, kind constraint.EntityKind, entityID int64, attrs *attrset.Set) error {
	c, _, ok := constraint.CheckWrite(ctx.Constraints, store, schemaID, kind, entityID, attrs)
	if ok {
		return nil
	}
	return &queryerr.ConstraintViolationError{
		Kind:       constraintKindName(c.Type),
		Label:      schemaName(store, kind, schemaID),
		Properties: attrNames(store, c.AttrIDs),
		Message:    fmt.Sprintf("entity %d violates a %s constraint", entityID, constraintKindName(c.Type)),
	}
}

func constraintKindName(t constraint.Type) queryerr.ConstraintKind {
	if t == constraint.Unique {
		return queryerr.ConstraintUnique
	}
	return queryerr.ConstraintMandatory
}

func schemaName(store *graphstore.Store, kind constraint.EntityKind, id graphstore.SchemaID) string {
	if kind == constraint.EdgeEntity {
		return store.Ctx.RelTypeName(id)
	}
	return store.Ctx.LabelName(id)
}

func attrNames(store *graphstore.Store, attrIDs []int) []string {
	names := make([]string, len(attrIDs))
	for i, id := range attrIDs {
		names[i] = store.Ctx.AttrName(id)
	}
	return names
}

func (o *Create) applyProps(rec *record.Record, props []PropSpec, set func(attrID int, v value.V)) {
	for _, p := range props {
		v := value.Persist(arithmetic.Evaluate(p.Value, rec, o.ctx))
		if v.IsNull() {
			continue
		}
		set(p.AttrID, v)
		o.ctx.Stats.PropertiesSet++
	}
}

// UpdateItemKind tags one compiled SET/REMOVE action.
type UpdateItemKind uint8

const (
	UpdateSetProperty UpdateItemKind = iota
	UpdateSetLabels
	UpdateMergeMap // n += {...}
	UpdateRemoveProperty
	UpdateRemoveLabels
)

// UpdateItem is one compiled SET/REMOVE clause item, resolved against the entity bound at Slot.
type UpdateItem struct {
	Kind     UpdateItemKind
	Slot     int
	IsEdge   bool
	AttrID   int
	Value    arithmetic.Node
	Labels   []graphstore.SchemaID
	EntityKind constraint.EntityKind
	EntityLabel graphstore.SchemaID
}

// Update applies Items to each row pulled from Child, logging undo
// entries and re-triggering constraint enforcement when a mutated
// attribute participates in a constraint.
type Update struct {
	base
	Child Operator
	Items []UpdateItem

	ctx *Ctx
}

func NewUpdate(child Operator, items []UpdateItem) *Update {
	return &Update{base: base{modifiers: child.Modifiers(), dependencies: child.Dependencies(), cardinality: child.EstimatedCardinality()}, Child: child, Items: items}
}

func (o *Update) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Child.Init(ctx)
}

func (o *Update) Reset() { o.Child.Reset() }

func (o *Update) Consume(rec *record.Record) Status {
	st := o.Child.Consume(rec)
	if st != StatusRecord {
		return st
	}
	if o.ctx.Cancelled() {
		return StatusAborted
	}
	for _, it := range o.Items {
		applyUpdateItem(o.ctx, rec, it)
	}
	return StatusRecord
}

// applyUpdateItem executes one compiled SET/REMOVE action against rec.
// Factored out of Update.Consume so Merge's ON CREATE/ON MATCH clauses
// can drive the identical property/label machinery
// without Update itself as an intermediary.
func applyUpdateItem(ctx *Ctx, rec *record.Record, it UpdateItem) {
	store := ctx.Store
	var id int64
	if it.IsEdge {
		id = rec.Get(it.Slot).EdgeRef().ID
	} else {
		id = rec.Get(it.Slot).NodeRef().ID
	}
	switch it.Kind {
	case UpdateSetProperty, UpdateMergeMap:
		v := value.Persist(arithmetic.Evaluate(it.Value, rec, ctx))
		setAttrItem(ctx, id, it, v)
	case UpdateRemoveProperty:
		setAttrItem(ctx, id, it, value.Null())
	case UpdateSetLabels:
		store.SetLabels(id, it.Labels)
		ctx.Undo.SetLabels(id, it.Labels)
		ctx.Stats.LabelsAdded += int64(len(it.Labels))
		if n := store.GetNode(id); n != nil {
			for _, l := range it.Labels {
				if err := violationError(ctx, store, l, constraint.NodeEntity, id, n.Attrs); err != nil {
					ctx.OnError(err)
				}
			}
		}
	case UpdateRemoveLabels:
		store.RemoveLabels(id, it.Labels)
		ctx.Undo.RemoveLabels(id, it.Labels)
		ctx.Stats.LabelsRemoved += int64(len(it.Labels))
	}
}

func setAttrItem(ctx *Ctx, id int64, it UpdateItem, v value.V) {
	store := ctx.Store
	var orig value.V
	var ok bool
	if it.IsEdge {
		e := store.GetEdge(id)
		if e == nil {
			return
		}
		orig, ok = e.Attrs.Get(it.AttrID)
	} else {
		n := store.GetNode(id)
		if n == nil {
			return
		}
		orig, ok = n.Attrs.Get(it.AttrID)
	}
	if !ok {
		orig = value.Null()
	}
	var tag attrset.ChangeTag
	if it.IsEdge {
		tag = store.SetEdgeAttr(id, it.AttrID, v)
	} else {
		tag = store.SetNodeAttr(id, it.AttrID, v)
	}
	if tag == attrset.NoChange {
		return
	}
	ctx.Undo.UpdateEntity(id, it.IsEdge, it.AttrID, orig)
	ctx.Stats.PropertiesSet++
	reenforceItem(ctx, id, it)
}

// reenforceItem re-validates a mutated attribute against any constraint
// covering it, synchronously at write time; the batched async pass in
// internal/constraint/enforce.go only covers bulk backfill for a newly
// PENDING constraint.
func reenforceItem(ctx *Ctx, id int64, it UpdateItem) {
	if ctx.Constraints == nil {
		return
	}
	if it.Kind != UpdateSetProperty && it.Kind != UpdateMergeMap {
		return
	}
	if !ctx.Constraints.HasConstraintOnAttribute(it.EntityLabel, it.EntityKind, it.AttrID) {
		return
	}
	store := ctx.Store
	var attrs *attrset.Set
	if it.IsEdge {
		e := store.GetEdge(id)
		if e == nil {
			return
		}
		attrs = e.Attrs
	} else {
		n := store.GetNode(id)
		if n == nil {
			return
		}
		attrs = n.Attrs
	}
	if err := violationError(ctx, store, it.EntityLabel, it.EntityKind, id, attrs); err != nil {
		ctx.OnError(err)
	}
}

// Delete removes the entities bound at the given slots for every row
// pulled from Child. Node deletion always cascades to incident edges
// via Store.DeleteNode's own invariant; a non-detach delete of a
// still-connected node is not rejected here or by the plan builder, so
// it cascades the same way.
type Delete struct {
	base
	Child     Operator
	NodeSlots []int
	EdgeSlots []int

	ctx *Ctx
}

func NewDelete(child Operator, nodeSlots, edgeSlots []int) *Delete {
	return &Delete{base: base{modifiers: child.Modifiers(), dependencies: child.Dependencies(), cardinality: child.EstimatedCardinality()}, Child: child, NodeSlots: nodeSlots, EdgeSlots: edgeSlots}
}

func (o *Delete) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Child.Init(ctx)
}

func (o *Delete) Reset() { o.Child.Reset() }

func (o *Delete) Consume(rec *record.Record) Status {
	st := o.Child.Consume(rec)
	if st != StatusRecord {
		return st
	}
	if o.ctx.Cancelled() {
		return StatusAborted
	}
	store := o.ctx.Store
	for _, s := range o.EdgeSlots {
		e := rec.Get(s).EdgeRef()
		if edge := store.GetEdge(e.ID); edge != nil {
			o.ctx.Undo.DeleteEdge(edge.ID, edge.Attrs.Clone())
			store.DeleteEdge(edge.ID)
			o.ctx.Stats.RelationshipsDeleted++
		}
	}
	for _, s := range o.NodeSlots {
		n := rec.Get(s).NodeRef()
		if node := store.GetNode(n.ID); node != nil {
			incident := store.GetNodeEdges(node.ID, graphstore.Both, -1)
			for _, e := range incident {
				o.ctx.Undo.DeleteEdge(e.ID, e.Attrs.Clone())
				o.ctx.Stats.RelationshipsDeleted++
			}
			labels := make([]graphstore.SchemaID, 0, len(node.Labels))
			for l := range node.Labels {
				labels = append(labels, l)
			}
			o.ctx.Undo.DeleteNode(node.ID, labels, node.Attrs.Clone())
			store.DeleteNode(node.ID)
			o.ctx.Stats.NodesDeleted++
		}
	}
	return StatusRecord
}
