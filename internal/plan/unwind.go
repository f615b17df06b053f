package plan

import (
	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/record"
	"github.com/graphkernel/corequery/internal/value"
)

// Unwind evaluates Expr (expected to yield an array) against each row
// pulled from Child and emits one output row per element, binding it at
// Slot. A non-array result unwinds as a single
// one-element sequence, and null unwinds to zero rows, matching the
// query language's documented UNWIND semantics.
type Unwind struct {
	base
	Child Operator
	Expr  arithmetic.Node
	Slot  int

	ctx     *Ctx
	items   []value.V
	pos     int
}

func NewUnwind(child Operator, expr arithmetic.Node, slot int) *Unwind {
	mods := append(append([]int{}, child.Modifiers()...), slot)
	return &Unwind{base: base{modifiers: mods, dependencies: child.Dependencies(), cardinality: CardinalityMany}, Child: child, Expr: expr, Slot: slot}
}

func (o *Unwind) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Child.Init(ctx)
}

func (o *Unwind) Reset() {
	o.Child.Reset()
	o.items = nil
	o.pos = 0
}

func (o *Unwind) Consume(rec *record.Record) Status {
	for {
		if o.ctx.Cancelled() {
			return StatusAborted
		}
		if o.pos < len(o.items) {
			rec.Set(o.Slot, value.Persist(o.items[o.pos]), record.SlotScalar)
			o.pos++
			return StatusRecord
		}

		st := o.Child.Consume(rec)
		if st != StatusRecord {
			return st
		}
		v := arithmetic.Evaluate(o.Expr, rec, o.ctx)
		switch v.Kind() {
		case value.KindNull:
			o.items = nil
		case value.KindArray:
			o.items = v.Array()
		default:
			o.items = []value.V{v}
		}
		o.pos = 0
	}
}
