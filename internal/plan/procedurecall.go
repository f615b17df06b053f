package plan

import (
	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/record"
	"github.com/graphkernel/corequery/internal/value"
)

// ProcedureCall invokes a registered procedure once per row pulled from
// Child, evaluating Args against that row and binding each yielded
// column at the matching Slots entry. A standalone `CALL proc(...)` with no preceding
// clause compiles with Child == nil and runs the procedure exactly once.
type ProcedureCall struct {
	base
	Child Operator
	Name  string
	Args  []arithmetic.Node
	Slots []int

	ctx     *Ctx
	rows    ProcedureRows
	ranOnce bool
}

func NewProcedureCall(child Operator, name string, args []arithmetic.Node, slots []int) *ProcedureCall {
	var deps []int
	if child != nil {
		deps = child.Dependencies()
	}
	return &ProcedureCall{base: base{modifiers: slots, dependencies: deps, cardinality: CardinalityMany}, Child: child, Name: name, Args: args, Slots: slots}
}

func (o *ProcedureCall) Init(ctx *Ctx) {
	o.ctx = ctx
	if o.Child != nil {
		o.Child.Init(ctx)
	}
}

func (o *ProcedureCall) Reset() {
	if o.Child != nil {
		o.Child.Reset()
	}
	o.closeRows()
	o.ranOnce = false
}

func (o *ProcedureCall) closeRows() {
	if o.rows != nil {
		o.rows.Close()
		o.rows = nil
	}
}

func (o *ProcedureCall) Consume(rec *record.Record) Status {
	for {
		if o.ctx.Cancelled() {
			return StatusAborted
		}
		if o.rows != nil {
			row, ok := o.rows.Next()
			if ok {
				for i, s := range o.Slots {
					rec.Set(s, value.Persist(row[i]), record.SlotScalar)
				}
				return StatusRecord
			}
			o.closeRows()
		}

		if o.Child != nil {
			st := o.Child.Consume(rec)
			if st != StatusRecord {
				return st
			}
		} else {
			if o.ranOnce {
				return StatusEOF
			}
			o.ranOnce = true
		}

		args := make([]value.V, len(o.Args))
		for i, a := range o.Args {
			args[i] = arithmetic.Evaluate(a, rec, o.ctx)
		}
		rows, err := o.ctx.Procedures.Call(o.Name, args)
		if err != nil {
			o.ctx.OnError(err)
			return StatusAborted
		}
		o.rows = rows
	}
}
