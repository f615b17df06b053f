package plan

import "github.com/graphkernel/corequery/internal/record"

// Apply runs RHS once per row pulled from LHS, re-initializing RHS
// against the (already-rewritten) correlated bindings LHS leaves in the
// shared record, and yields every row RHS produces.
type Apply struct {
	base
	LHS, RHS Operator

	ctx        *Ctx
	rhsOpen    bool
	lhsExhaust bool
}

func NewApply(lhs, rhs Operator) *Apply {
	mods := append(append([]int{}, lhs.Modifiers()...), rhs.Modifiers()...)
	return &Apply{base: base{modifiers: mods, dependencies: lhs.Dependencies(), cardinality: CardinalityMany}, LHS: lhs, RHS: rhs}
}

func (o *Apply) Init(ctx *Ctx) {
	o.ctx = ctx
	o.LHS.Init(ctx)
	o.RHS.Init(ctx)
}

func (o *Apply) Reset() {
	o.LHS.Reset()
	o.rhsOpen = false
	o.lhsExhaust = false
}

func (o *Apply) Consume(rec *record.Record) Status {
	for {
		if o.ctx.Cancelled() {
			return StatusAborted
		}
		if o.rhsOpen {
			st := o.RHS.Consume(rec)
			if st == StatusAborted {
				return StatusAborted
			}
			if st == StatusRecord {
				return StatusRecord
			}
			o.rhsOpen = false
		}
		if o.lhsExhaust {
			return StatusEOF
		}
		st := o.LHS.Consume(rec)
		if st == StatusAborted {
			return StatusAborted
		}
		if st == StatusEOF {
			o.lhsExhaust = true
			return StatusEOF
		}
		o.RHS.Reset()
		o.rhsOpen = true
	}
}

// SemiApply yields the LHS row unchanged if RHS produces at least one
// row for it, without exposing any of RHS's bindings — the compiled
// form of `WHERE EXISTS {... }`.
type SemiApply struct {
	base
	LHS, RHS Operator
	Negate   bool // true makes this AntiSemiApply

	ctx *Ctx
}

func NewSemiApply(lhs, rhs Operator, negate bool) *SemiApply {
	return &SemiApply{base: base{modifiers: lhs.Modifiers(), dependencies: lhs.Dependencies(), cardinality: lhs.EstimatedCardinality()}, LHS: lhs, RHS: rhs, Negate: negate}
}

func NewAntiSemiApply(lhs, rhs Operator) *SemiApply { return NewSemiApply(lhs, rhs, true) }

func (o *SemiApply) Init(ctx *Ctx) {
	o.ctx = ctx
	o.LHS.Init(ctx)
	o.RHS.Init(ctx)
}

func (o *SemiApply) Reset() { o.LHS.Reset() }

func (o *SemiApply) Consume(rec *record.Record) Status {
	for {
		st := o.LHS.Consume(rec)
		if st != StatusRecord {
			return st
		}
		if o.ctx.Cancelled() {
			return StatusAborted
		}
		saved := rec.Clone()
		o.RHS.Reset()
		matched := o.RHS.Consume(rec) == StatusRecord
		copyInto(rec, saved)
		if matched != o.Negate {
			return StatusRecord
		}
	}
}

// CallSubquery is the non-returning `CALL {... }` form: RHS runs to
// completion once per LHS row purely for its side effects (writes,
// stats), and only the LHS row is yielded.
type CallSubquery struct {
	base
	LHS, RHS Operator

	ctx *Ctx
}

func NewCallSubquery(lhs, rhs Operator) *CallSubquery {
	return &CallSubquery{base: base{modifiers: lhs.Modifiers(), dependencies: lhs.Dependencies(), cardinality: lhs.EstimatedCardinality()}, LHS: lhs, RHS: rhs}
}

func (o *CallSubquery) Init(ctx *Ctx) {
	o.ctx = ctx
	o.LHS.Init(ctx)
	o.RHS.Init(ctx)
}

func (o *CallSubquery) Reset() { o.LHS.Reset() }

func (o *CallSubquery) Consume(rec *record.Record) Status {
	st := o.LHS.Consume(rec)
	if st != StatusRecord {
		return st
	}
	if o.ctx.Cancelled() {
		return StatusAborted
	}
	saved := rec.Clone()
	o.RHS.Reset()
	for {
		rst := o.RHS.Consume(rec)
		if rst == StatusAborted {
			return StatusAborted
		}
		if rst == StatusEOF {
			break
		}
	}
	copyInto(rec, saved)
	return StatusRecord
}
