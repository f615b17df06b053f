package plan

import (
	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/record"
	"github.com/graphkernel/corequery/internal/value"
)

// Merge probes Probe once; if it yields at least one row, OnMatch runs
// against every matched row, otherwise Nodes/Edges are created exactly
// once (against a synthetic all-null row) and OnCreate runs against the
// result.
type Merge struct {
	base
	Probe    Operator
	Nodes    []CreateNodeSpec
	Edges    []CreateEdgeSpec
	OnCreate []UpdateItem
	OnMatch  []UpdateItem

	ctx     *Ctx
	Width   int
	rows    []*record.Record
	pos     int
	matched bool
}

// NewMerge builds a Merge operator. width is the record width the
// synthetic create-path row must carry (the plan's full slot count),
// since the synthetic row is never pulled from a child operator that
// already sized it.
func NewMerge(probe Operator, width int, nodes []CreateNodeSpec, edges []CreateEdgeSpec, onCreate, onMatch []UpdateItem) *Merge {
	var mods []int
	mods = append(mods, probe.Modifiers()...)
	for _, n := range nodes {
		mods = append(mods, n.Slot)
	}
	for _, e := range edges {
		mods = append(mods, e.Slot)
	}
	return &Merge{base: base{modifiers: mods, dependencies: probe.Dependencies(), cardinality: CardinalityMany}, Probe: probe, Width: width, Nodes: nodes, Edges: edges, OnCreate: onCreate, OnMatch: onMatch}
}

func (o *Merge) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Probe.Init(ctx)
}

func (o *Merge) Reset() {
	o.Probe.Reset()
	o.rows = nil
	o.pos = 0
	o.matched = false
}

func (o *Merge) Consume(rec *record.Record) Status {
	if o.rows == nil && o.pos == 0 {
		if err := o.resolve(rec); err != nil {
			o.ctx.OnError(err)
			return StatusAborted
		}
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

// MergeCreate is the per-row form of MERGE, used when the pattern is
// driven by upstream rows: for each input row it evaluates the
// pattern's labels and properties into a creation fingerprint and
// creates the pattern only for fingerprints not yet seen this query,
// rebinding the previously created entities on a repeat. A single-node
// pattern additionally probes the live graph first, so merging onto an
// already-existing node matches it instead of duplicating it.
type MergeCreate struct {
	base
	Child    Operator
	Nodes    []CreateNodeSpec
	Edges    []CreateEdgeSpec
	OnCreate []UpdateItem
	OnMatch  []UpdateItem

	ctx  *Ctx
	seen map[uint64][]value.V
}

func NewMergeCreate(child Operator, nodes []CreateNodeSpec, edges []CreateEdgeSpec, onCreate, onMatch []UpdateItem) *MergeCreate {
	mods := append([]int{}, child.Modifiers()...)
	for _, n := range nodes {
		mods = append(mods, n.Slot)
	}
	for _, e := range edges {
		mods = append(mods, e.Slot)
	}
	return &MergeCreate{
		base:  base{modifiers: mods, dependencies: child.Dependencies(), cardinality: CardinalityMany},
		Child: child, Nodes: nodes, Edges: edges, OnCreate: onCreate, OnMatch: onMatch,
	}
}

func (o *MergeCreate) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Child.Init(ctx)
	o.seen = make(map[uint64][]value.V)
}

func (o *MergeCreate) Reset() {
	o.Child.Reset()
	o.seen = make(map[uint64][]value.V)
}

func (o *MergeCreate) Consume(rec *record.Record) Status {
	st := o.Child.Consume(rec)
	if st != StatusRecord {
		return st
	}
	if o.ctx.Cancelled() {
		return StatusAborted
	}

	fp := o.fingerprint(rec)
	if bound, ok := o.seen[fp]; ok {
		o.rebind(rec, bound)
		for _, it := range o.OnMatch {
			applyUpdateItem(o.ctx, rec, it)
		}
		return StatusRecord
	}

	if id, ok := o.probeExisting(rec); ok {
		setNodeSlot(rec, o.Nodes[0].Slot, o.ctx.Store, id)
		o.seen[fp] = o.capture(rec)
		for _, it := range o.OnMatch {
			applyUpdateItem(o.ctx, rec, it)
		}
		return StatusRecord
	}

	o.create(rec)
	o.seen[fp] = o.capture(rec)
	for _, it := range o.OnCreate {
		applyUpdateItem(o.ctx, rec, it)
	}
	return StatusRecord
}

// fingerprint hashes the evaluated labels and properties of every
// pattern element, the creation identity MERGE deduplicates on. Edge
// endpoints bound upstream (not created by this pattern) contribute
// their current entity value, so merging the same relationship shape
// out of two different source nodes yields two distinct fingerprints.
func (o *MergeCreate) fingerprint(rec *record.Record) uint64 {
	own := make(map[int]struct{}, len(o.Nodes))
	for _, spec := range o.Nodes {
		own[spec.Slot] = struct{}{}
	}

	var h uint64 = 1099511628211
	mix := func(x uint64) { h = h*1099511628211 ^ x }
	for _, spec := range o.Nodes {
		for _, l := range spec.Labels {
			mix(uint64(l) + 1)
		}
		for _, p := range spec.Props {
			mix(uint64(p.AttrID))
			mix(value.Hash64(arithmetic.Evaluate(p.Value, rec, o.ctx)))
		}
	}
	for _, spec := range o.Edges {
		mix(uint64(spec.RelType) + 1)
		if _, ok := own[spec.SrcSlot]; !ok {
			mix(value.Hash64(rec.Get(spec.SrcSlot)))
		}
		if _, ok := own[spec.DstSlot]; !ok {
			mix(value.Hash64(rec.Get(spec.DstSlot)))
		}
		for _, p := range spec.Props {
			mix(uint64(p.AttrID))
			mix(value.Hash64(arithmetic.Evaluate(p.Value, rec, o.ctx)))
		}
	}
	return h
}

// probeExisting looks for a live node matching a single-node pattern's
// label and every evaluated property. Multi-element patterns skip the
// probe and rely on fingerprint dedup alone.
func (o *MergeCreate) probeExisting(rec *record.Record) (int64, bool) {
	if len(o.Nodes) != 1 || len(o.Edges) != 0 {
		return 0, false
	}
	spec := o.Nodes[0]
	if len(spec.Labels) == 0 {
		return 0, false
	}
	store := o.ctx.Store
	for _, id := range store.NodesWithLabel(spec.Labels[0]) {
		n := store.GetNode(id)
		if n == nil {
			continue
		}
		matched := true
		for _, p := range spec.Props {
			want := arithmetic.Evaluate(p.Value, rec, o.ctx)
			got, ok := n.Attrs.Get(p.AttrID)
			if !ok || !value.Equal(want, got) {
				matched = false
				break
			}
		}
		if matched {
			return id, true
		}
	}
	return 0, false
}

func (o *MergeCreate) create(rec *record.Record) {
	store := o.ctx.Store
	for _, spec := range o.Nodes {
		id := store.CreateNode(spec.Labels)
		o.ctx.Undo.CreateNode(id)
		o.ctx.CountNewLabels(spec.Labels)
		for _, p := range spec.Props {
			v := value.Persist(arithmetic.Evaluate(p.Value, rec, o.ctx))
			if v.IsNull() {
				continue
			}
			store.SetNodeAttr(id, p.AttrID, v)
			o.ctx.Stats.PropertiesSet++
		}
		setNodeSlot(rec, spec.Slot, store, id)
		o.ctx.Stats.NodesCreated++
	}
	store.ReconcileMatrixSizes()
	for _, spec := range o.Edges {
		src := rec.Get(spec.SrcSlot).NodeRef().ID
		dst := rec.Get(spec.DstSlot).NodeRef().ID
		id := store.CreateEdge(src, dst, spec.RelType)
		o.ctx.Undo.CreateEdge(id)
		for _, p := range spec.Props {
			v := value.Persist(arithmetic.Evaluate(p.Value, rec, o.ctx))
			if v.IsNull() {
				continue
			}
			store.SetEdgeAttr(id, p.AttrID, v)
			o.ctx.Stats.PropertiesSet++
		}
		setEdgeSlot(rec, spec.Slot, store, store.GetEdge(id))
		o.ctx.Stats.RelationshipsCreated++
	}
}

// capture snapshots the entity values bound at the pattern's slots so a
// later duplicate row can rebind them without re-creating.
func (o *MergeCreate) capture(rec *record.Record) []value.V {
	out := make([]value.V, 0, len(o.Nodes)+len(o.Edges))
	for _, spec := range o.Nodes {
		out = append(out, rec.Get(spec.Slot))
	}
	for _, spec := range o.Edges {
		out = append(out, rec.Get(spec.Slot))
	}
	return out
}

func (o *MergeCreate) rebind(rec *record.Record, bound []value.V) {
	i := 0
	for _, spec := range o.Nodes {
		rec.Set(spec.Slot, bound[i], record.SlotNode)
		i++
	}
	for _, spec := range o.Edges {
		rec.Set(spec.Slot, bound[i], record.SlotEdge)
		i++
	}
}

func (o *Merge) resolve(rec *record.Record) error {
	for {
		st := o.Probe.Consume(rec)
		if st == StatusAborted {
			return o.ctx.Err()
		}
		if st == StatusEOF {
			break
		}
		o.rows = append(o.rows, rec.Clone())
	}
	if len(o.rows) > 0 {
		o.matched = true
		for _, r := range o.rows {
			for _, it := range o.OnMatch {
				applyUpdateItem(o.ctx, r, it)
			}
		}
		return nil
	}

	synthetic := record.New(o.Width)
	store := o.ctx.Store
	for _, spec := range o.Nodes {
		id := store.CreateNode(spec.Labels)
		o.ctx.Undo.CreateNode(id)
		o.ctx.CountNewLabels(spec.Labels)
		for _, p := range spec.Props {
			v := value.Persist(arithmetic.Evaluate(p.Value, synthetic, o.ctx))
			if v.IsNull() {
				continue
			}
			store.SetNodeAttr(id, p.AttrID, v)
			o.ctx.Stats.PropertiesSet++
		}
		setNodeSlot(synthetic, spec.Slot, store, id)
		o.ctx.Stats.NodesCreated++
	}
	store.ReconcileMatrixSizes()
	for _, spec := range o.Edges {
		src := synthetic.Get(spec.SrcSlot).NodeRef().ID
		dst := synthetic.Get(spec.DstSlot).NodeRef().ID
		id := store.CreateEdge(src, dst, spec.RelType)
		o.ctx.Undo.CreateEdge(id)
		for _, p := range spec.Props {
			v := value.Persist(arithmetic.Evaluate(p.Value, synthetic, o.ctx))
			if v.IsNull() {
				continue
			}
			store.SetEdgeAttr(id, p.AttrID, v)
			o.ctx.Stats.PropertiesSet++
		}
		setEdgeSlot(synthetic, spec.Slot, store, store.GetEdge(id))
		o.ctx.Stats.RelationshipsCreated++
	}
	for _, it := range o.OnCreate {
		applyUpdateItem(o.ctx, synthetic, it)
	}
	o.rows = []*record.Record{synthetic}
	return nil
}
