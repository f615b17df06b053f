package plan

import (
	"sort"

	"github.com/graphkernel/corequery/internal/record"
	"github.com/graphkernel/corequery/internal/value"
)

// SortKey is one ORDER BY component: the record slot to compare and its
// direction.
type SortKey struct {
	Slot       int
	Descending bool
}

// Sort materializes its child's entire input, then merge-sorts it by a
// composite key. Go's sort.SliceStable is used for
// the actual ordering rather than a hand-rolled merge sort: both are
// O(n log n) and stability is what the composite-key contract needs,
// not a particular algorithm.
type Sort struct {
	base
	Child Operator
	Keys  []SortKey

	ctx     *Ctx
	rows    []*record.Record
	pos     int
	drained bool
}

func NewSort(child Operator, keys []SortKey) *Sort {
	return &Sort{base: base{modifiers: child.Modifiers(), dependencies: child.Dependencies(), cardinality: child.EstimatedCardinality()}, Child: child, Keys: keys}
}

func (o *Sort) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Child.Init(ctx)
}

func (o *Sort) Reset() {
	o.Child.Reset()
	o.rows = nil
	o.pos = 0
	o.drained = false
}

func (o *Sort) Consume(rec *record.Record) Status {
	if !o.drained {
		for {
			st := o.Child.Consume(rec)
			if st == StatusAborted {
				return StatusAborted
			}
			if st == StatusEOF {
				break
			}
			o.rows = append(o.rows, rec.Clone())
		}
		sort.SliceStable(o.rows, func(i, j int) bool { return o.less(o.rows[i], o.rows[j]) })
		o.drained = true
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

func (o *Sort) less(a, b *record.Record) bool {
	for _, k := range o.Keys {
		ord, nc := value.Cmp(a.Get(k.Slot), b.Get(k.Slot))
		if nc == value.CmpDisjoint || ord == 0 {
			continue
		}
		if k.Descending {
			return ord > 0
		}
		return ord < 0
	}
	return false
}

func copyInto(dst, src *record.Record) {
	for i := 0; i < src.Width(); i++ {
		dst.Set(i, src.Get(i), src.Kind(i))
	}
}

// Limit caps the number of rows pulled through from Child at N.
type Limit struct {
	base
	Child Operator
	N     int64

	ctx   *Ctx
	count int64
}

func NewLimit(child Operator, n int64) *Limit {
	return &Limit{base: base{modifiers: child.Modifiers(), dependencies: child.Dependencies(), cardinality: child.EstimatedCardinality()}, Child: child, N: n}
}

func (o *Limit) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Child.Init(ctx)
}

func (o *Limit) Reset() {
	o.Child.Reset()
	o.count = 0
}

func (o *Limit) Consume(rec *record.Record) Status {
	if o.count >= o.N {
		return StatusEOF
	}
	st := o.Child.Consume(rec)
	if st == StatusRecord {
		o.count++
	}
	return st
}

// Skip discards the first N rows pulled from Child.
type Skip struct {
	base
	Child Operator
	N     int64

	ctx     *Ctx
	skipped int64
}

func NewSkip(child Operator, n int64) *Skip {
	return &Skip{base: base{modifiers: child.Modifiers(), dependencies: child.Dependencies(), cardinality: child.EstimatedCardinality()}, Child: child, N: n}
}

func (o *Skip) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Child.Init(ctx)
}

func (o *Skip) Reset() {
	o.Child.Reset()
	o.skipped = 0
}

func (o *Skip) Consume(rec *record.Record) Status {
	for o.skipped < o.N {
		st := o.Child.Consume(rec)
		if st != StatusRecord {
			return st
		}
		o.skipped++
	}
	return o.Child.Consume(rec)
}
