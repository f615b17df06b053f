// Package plan implements the execution plan: a tree of pull-based operators compiled from a query graph and
// a filter tree, executed by repeatedly calling Consume on the root.
//
// # ELI12
//
// Picture a bucket brigade: the root operator asks its child for a
// bucket of water (a Record), the child asks its own child, all the way
// down to a leaf that actually draws from the well (the graph store or a
// literal). Each operator in between either passes the bucket through
// unchanged, refills part of it, or empties it out and waits for the
// next one — but there's only ever one bucket in flight at a time,
// which is why a Record is mutated in place rather than copied at every
// step. An operator that needs to keep more than one bucket around (Sort
// materializing all rows, Aggregate's running totals) clones it first.
package plan

import (
	"github.com/graphkernel/corequery/internal/record"
)

// Status is what Consume reports about the pull that just happened.
type Status uint8

const (
	// StatusRecord means rec now holds a valid result row.
	StatusRecord Status = iota
	// StatusEOF means this operator (and everything beneath it) is
	// exhausted; rec is not valid.
	StatusEOF
	// StatusAborted means the query's context was cancelled or timed out
	// mid-pull; the driver must stop pulling,
	// roll back the undo log, and surface the error.
	StatusAborted
)

// Cardinality is a coarse planning hint, not a runtime guarantee; the
// builder uses it to decide operator placement (e.g. which side of a
// Cartesian product drives the outer loop).
type Cardinality int

const (
	CardinalityUnknown Cardinality = iota
	CardinalityOne
	CardinalityMany
)

// Operator is one pull-based execution-plan node. Implementations mutate
// the shared Record passed to Consume rather than allocate a fresh one;
// aliases were resolved to slot indices at compile time.
type Operator interface {
	// Init prepares the operator for a fresh execution against ctx,
	// recursively initializing children.
	Init(ctx *Ctx)
	// Consume pulls the next result row into rec, returning its status.
	Consume(rec *record.Record) Status
	// Reset rewinds the operator (and its children) to start over,
	// needed by Apply/CallSubquery to re-drive a right-hand subplan once
	// per left-hand row; a variable-length Expand also drops its pending
	// results.
	Reset()
	// Modifiers returns the record slots this operator writes.
	Modifiers() []int
	// Dependencies returns the record slots this operator reads without
	// itself producing.
	Dependencies() []int
	// EstimatedCardinality is this operator's planning-time cardinality
	// hint.
	EstimatedCardinality() Cardinality
}

// base is embedded by every concrete operator to provide the
// Modifiers/Dependencies bookkeeping without repeating it in each type.
type base struct {
	modifiers    []int
	dependencies []int
	cardinality  Cardinality
}

func (b *base) Modifiers() []int               { return b.modifiers }
func (b *base) Dependencies() []int             { return b.dependencies }
func (b *base) EstimatedCardinality() Cardinality { return b.cardinality }
