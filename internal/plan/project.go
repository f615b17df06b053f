package plan

import (
	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/record"
	"github.com/graphkernel/corequery/internal/value"
)

// ProjectItem is one compiled RETURN/WITH projection: evaluate Expr and
// store the (persisted) result at Slot.
type ProjectItem struct {
	Expr arithmetic.Node
	Slot int
}

// Project evaluates its items against each row pulled from Child,
// writing results into the shared record.
type Project struct {
	base
	Child Operator
	Items []ProjectItem

	ctx     *Ctx
	emitted bool
}

func NewProject(child Operator, items []ProjectItem) *Project {
	slots := make([]int, len(items))
	for i, it := range items {
		slots[i] = it.Slot
	}
	var deps []int
	if child != nil {
		deps = child.Dependencies()
	}
	return &Project{base: base{modifiers: slots, dependencies: deps, cardinality: CardinalityMany}, Child: child, Items: items}
}

func (o *Project) Init(ctx *Ctx) {
	o.ctx = ctx
	o.emitted = false
	if o.Child != nil {
		o.Child.Init(ctx)
	}
}

func (o *Project) Reset() {
	if o.Child != nil {
		o.Child.Reset()
	}
	o.emitted = false
}

// Consume with no child behaves as a one-row source (a bare-literal
// projection like `RETURN 1`): exactly one output row, then EOF.
func (o *Project) Consume(rec *record.Record) Status {
	if o.Child != nil {
		st := o.Child.Consume(rec)
		if st != StatusRecord {
			return st
		}
	} else {
		if o.ctx.Cancelled() {
			return StatusAborted
		}
		if o.emitted {
			return StatusEOF
		}
		o.emitted = true
	}
	for _, it := range o.Items {
		v := value.Persist(arithmetic.Evaluate(it.Expr, rec, o.ctx))
		rec.Set(it.Slot, v, record.SlotScalar)
	}
	return StatusRecord
}

// Distinct filters rows through a set keyed by the hash of the given
// slots' values. A hash collision across distinct tuples is
// resolved by an exact equality re-check, since hash64 is deterministic
// but not collision-free.
type Distinct struct {
	base
	Child Operator
	Slots []int

	ctx  *Ctx
	seen map[uint64][][]value.V
}

func NewDistinct(child Operator, slots []int) *Distinct {
	return &Distinct{base: base{modifiers: child.Modifiers(), dependencies: child.Dependencies(), cardinality: child.EstimatedCardinality()}, Child: child, Slots: slots}
}

func (o *Distinct) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Child.Init(ctx)
	o.seen = make(map[uint64][][]value.V)
}

func (o *Distinct) Reset() {
	o.Child.Reset()
	o.seen = make(map[uint64][][]value.V)
}

func (o *Distinct) Consume(rec *record.Record) Status {
	for {
		st := o.Child.Consume(rec)
		if st != StatusRecord {
			return st
		}
		if o.ctx.Cancelled() {
			return StatusAborted
		}
		key := make([]value.V, len(o.Slots))
		var h uint64
		for i, s := range o.Slots {
			key[i] = rec.Get(s)
			h = h*1099511628211 ^ value.Hash64(key[i])
		}
		bucket := o.seen[h]
		if !containsTuple(bucket, key) {
			o.seen[h] = append(bucket, key)
			return StatusRecord
		}
	}
}

func containsTuple(bucket [][]value.V, key []value.V) bool {
	for _, existing := range bucket {
		if tupleEqual(existing, key) {
			return true
		}
	}
	return false
}

func tupleEqual(a, b []value.V) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !value.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
