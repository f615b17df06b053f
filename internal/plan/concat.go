package plan

import "github.com/graphkernel/corequery/internal/record"

// Concat pulls each child to exhaustion in order before moving to the
// next, the compiled form of UNION ALL. A plain UNION wraps a Concat in Distinct over
// every output slot; Concat itself never deduplicates.
type Concat struct {
	base
	Children []Operator

	ctx *Ctx
	cur int
}

func NewConcat(children []Operator) *Concat {
	var mods []int
	if len(children) > 0 {
		mods = children[0].Modifiers()
	}
	return &Concat{base: base{modifiers: mods, cardinality: CardinalityMany}, Children: children}
}

func (o *Concat) Init(ctx *Ctx) {
	o.ctx = ctx
	for _, c := range o.Children {
		c.Init(ctx)
	}
}

func (o *Concat) Reset() {
	o.cur = 0
	for _, c := range o.Children {
		c.Reset()
	}
}

func (o *Concat) Consume(rec *record.Record) Status {
	for o.cur < len(o.Children) {
		if o.ctx.Cancelled() {
			return StatusAborted
		}
		st := o.Children[o.cur].Consume(rec)
		if st == StatusRecord {
			return StatusRecord
		}
		if st == StatusAborted {
			return StatusAborted
		}
		o.cur++
	}
	return StatusEOF
}
