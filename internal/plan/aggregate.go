package plan

import (
	"math"
	"sort"

	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/record"
	"github.com/graphkernel/corequery/internal/value"
)

// AggFuncKind enumerates the supported aggregate functions.
type AggFuncKind uint8

const (
	AggCount AggFuncKind = iota
	AggSum
	AggAvg
	AggMin
	AggMax
	AggCollect
	AggStDev
	AggStDevP
	AggPercentileDisc
	AggPercentileCont
)

// AggItem is one compiled aggregation: an optional argument expression
// (nil for count(*)), the function, a distinct flag, and a percentile
// argument for the two percentile functions.
type AggItem struct {
	Arg        *arithmetic.Node
	Func       AggFuncKind
	Distinct   bool
	Percentile float64
	Slot       int
}

// Aggregate groups rows by GroupKeys and evaluates Items per group,
// materializing one output row per distinct group key. Non-aggregated GroupKeys are projected into GroupSlots
// on output.
type Aggregate struct {
	base
	Child      Operator
	GroupKeys  []arithmetic.Node
	GroupSlots []int
	Items      []AggItem

	ctx     *Ctx
	groups  map[uint64][]*aggGroup
	order   []*aggGroup
	pos     int
	drained bool
}

type aggGroup struct {
	keyVals []value.V
	accs    []*aggAccum
}

type aggAccum struct {
	kind     AggFuncKind
	count    int64
	sum      float64
	sumIsInt bool
	sumInt   int64
	min      value.V
	max      value.V
	haveMM   bool
	collect  []value.V
	samples  []float64
	seen     map[uint64][][]value.V
	pct      float64
}

func newAccum(it AggItem) *aggAccum {
	return &aggAccum{kind: it.Func, sumIsInt: true, pct: it.Percentile, seen: map[uint64][][]value.V{}}
}

func NewAggregate(child Operator, groupKeys []arithmetic.Node, groupSlots []int, items []AggItem) *Aggregate {
	slots := append([]int{}, groupSlots...)
	for _, it := range items {
		slots = append(slots, it.Slot)
	}
	return &Aggregate{base: base{modifiers: slots, cardinality: CardinalityMany}, Child: child, GroupKeys: groupKeys, GroupSlots: groupSlots, Items: items}
}

func (o *Aggregate) Init(ctx *Ctx) {
	o.ctx = ctx
	o.Child.Init(ctx)
}

func (o *Aggregate) Reset() {
	o.Child.Reset()
	o.groups = nil
	o.order = nil
	o.pos = 0
	o.drained = false
}

func (o *Aggregate) Consume(rec *record.Record) Status {
	if !o.drained {
		o.groups = make(map[uint64][]*aggGroup)
		for {
			st := o.Child.Consume(rec)
			if st == StatusAborted {
				return StatusAborted
			}
			if st == StatusEOF {
				break
			}
			o.accumulate(rec)
		}
		o.drained = true
	}
	if o.ctx.Cancelled() {
		return StatusAborted
	}
	if o.pos >= len(o.order) {
		return StatusEOF
	}
	g := o.order[o.pos]
	o.pos++
	for i, s := range o.GroupSlots {
		rec.Set(s, g.keyVals[i], record.SlotScalar)
	}
	for i, it := range o.Items {
		rec.Set(it.Slot, finalize(g.accs[i]), record.SlotScalar)
	}
	return StatusRecord
}

func (o *Aggregate) accumulate(rec *record.Record) {
	keyVals := make([]value.V, len(o.GroupKeys))
	var h uint64
	for i, k := range o.GroupKeys {
		keyVals[i] = value.Persist(arithmetic.Evaluate(k, rec, o.ctx))
		h = h*1099511628211 ^ value.Hash64(keyVals[i])
	}
	bucket := o.groups[h]
	var g *aggGroup
	for _, cand := range bucket {
		if tupleEqual(cand.keyVals, keyVals) {
			g = cand
			break
		}
	}
	if g == nil {
		g = &aggGroup{keyVals: keyVals, accs: make([]*aggAccum, len(o.Items))}
		for i, it := range o.Items {
			g.accs[i] = newAccum(it)
		}
		o.groups[h] = append(bucket, g)
		o.order = append(o.order, g)
	}
	for i, it := range o.Items {
		v := value.Null()
		if it.Arg != nil {
			v = arithmetic.Evaluate(*it.Arg, rec, o.ctx)
		}
		feed(g.accs[i], it, v)
	}
}

func feed(a *aggAccum, it AggItem, v value.V) {
	// A bare scalar null is a missing value and never aggregated; array
	// membership is a structural fact, so count([1, null]) counts the
	// array's elements, nulls included.
	if it.Arg != nil && v.IsNull() {
		return
	}
	if it.Distinct {
		h := value.Hash64(v)
		bucket := a.seen[h]
		if containsTuple(bucket, []value.V{v}) {
			return
		}
		a.seen[h] = append(bucket, []value.V{v})
	}
	if it.Func == AggCount {
		if it.Arg != nil && v.Kind() == value.KindArray {
			a.count += int64(len(v.Array()))
		} else {
			a.count++
		}
		return
	}
	a.count++
	switch it.Func {
	case AggSum, AggAvg, AggStDev, AggStDevP:
		f := numericOf(v)
		a.samples = append(a.samples, f)
		a.sum += f
		if v.Kind() != value.KindInt {
			a.sumIsInt = false
		} else {
			a.sumInt += v.Int()
		}
	case AggMin:
		if !a.haveMM {
			a.min, a.haveMM = value.Persist(v), true
		} else if ord, nc := value.Cmp(value.Persist(v), a.min); nc == value.CmpOK && ord < 0 {
			a.min = value.Persist(v)
		}
	case AggMax:
		if !a.haveMM {
			a.max, a.haveMM = value.Persist(v), true
		} else if ord, nc := value.Cmp(value.Persist(v), a.max); nc == value.CmpOK && ord > 0 {
			a.max = value.Persist(v)
		}
	case AggCollect:
		a.collect = append(a.collect, value.Persist(v))
	case AggPercentileDisc, AggPercentileCont:
		a.samples = append(a.samples, numericOf(v))
	}
}

func numericOf(v value.V) float64 {
	if v.Kind() == value.KindInt {
		return float64(v.Int())
	}
	if v.Kind() == value.KindFloat {
		return v.Float()
	}
	return 0
}

func finalize(a *aggAccum) value.V {
	switch a.kind {
	case AggCount:
		return value.Int(a.count)
	case AggSum:
		if a.sumIsInt {
			return value.Int(a.sumInt)
		}
		return value.Float(a.sum)
	case AggAvg:
		if a.count == 0 {
			return value.Null()
		}
		return value.Float(a.sum / float64(a.count))
	case AggMin:
		if !a.haveMM {
			return value.Null()
		}
		return a.min
	case AggMax:
		if !a.haveMM {
			return value.Null()
		}
		return a.max
	case AggCollect:
		return value.ArraySelf(a.collect)
	case AggStDev, AggStDevP:
		n := len(a.samples)
		if n == 0 {
			return value.Null()
		}
		if a.kind == AggStDev && n < 2 {
			return value.Float(0)
		}
		mean := a.sum / float64(n)
		var ss float64
		for _, x := range a.samples {
			d := x - mean
			ss += d * d
		}
		divisor := float64(n)
		if a.kind == AggStDev {
			divisor = float64(n - 1)
		}
		return value.Float(math.Sqrt(ss / divisor))
	case AggPercentileDisc:
		return value.Float(percentileDisc(a.samples, a.pct))
	case AggPercentileCont:
		return value.Float(percentileCont(a.samples, a.pct))
	default:
		return value.Null()
	}
}

func percentileDisc(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	s := append([]float64(nil), samples...)
	sort.Float64s(s)
	idx := int(math.Ceil(p*float64(len(s)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s) {
		idx = len(s) - 1
	}
	return s[idx]
}

func percentileCont(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	s := append([]float64(nil), samples...)
	sort.Float64s(s)
	if len(s) == 1 {
		return s[0]
	}
	pos := p * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return s[lo]
	}
	frac := pos - float64(lo)
	return s[lo] + (s[hi]-s[lo])*frac
}
