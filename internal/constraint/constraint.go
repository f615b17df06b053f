// Package constraint implements mandatory and unique property
// constraints: a constraint is created
// PENDING, an asynchronous enforcement pass walks every entity carrying
// its label in batches (releasing the graph lock between batches so
// writers aren't starved), and the constraint lands ACTIVE or FAILED.
package constraint

import (
	"sync"
	"sync/atomic"

	"github.com/graphkernel/corequery/internal/attrset"
	"github.com/graphkernel/corequery/internal/graphstore"
)

// Type is the kind of rule a Constraint enforces.
type Type uint8

const (
	Mandatory Type = iota
	Unique
)

// Status is a constraint's lifecycle state.
type Status uint8

const (
	Pending Status = iota
	Active
	Failed
)

// EntityKind selects whether a constraint governs nodes or edges.
type EntityKind uint8

const (
	NodeEntity EntityKind = iota
	EdgeEntity
)

// Constraint is one mandatory/unique rule scoped to a label (or
// relationship type) and a sorted set of attribute ids.
//
// PendingChanges counts in-flight CREATE/DROP operations against this
// exact constraint object (never shared across constraints): creating
// it takes it to 1, a concurrent drop request bumps it to 2 (the
// maximum — the same constraint can't be dropped twice), and each
// completing operation decrements it. It is a sync/atomic.Int32 rather
// than mutex-guarded state because readers only ever need the current count, never a
// read-modify-write under a wider lock.
type Constraint struct {
	Type       Type
	EntityKind EntityKind
	Label      graphstore.SchemaID
	AttrIDs    []int // sorted ascending

	mu     sync.Mutex
	status Status

	pendingChanges atomic.Int32
}

// New returns a PENDING constraint over the given (sorted) attribute
// ids. attrIDs must already be sorted; New does not sort them.
func New(t Type, kind EntityKind, label graphstore.SchemaID, attrIDs []int) *Constraint {
	c := &Constraint{Type: t, EntityKind: kind, Label: label, AttrIDs: attrIDs, status: Pending}
	c.pendingChanges.Store(1)
	return c
}

func (c *Constraint) GetStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// setStatus transitions PENDING -> ACTIVE or PENDING -> FAILED. Any
// other transition is a caller bug and is silently ignored.
func (c *Constraint) setStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != Pending || (s != Active && s != Failed) {
		return
	}
	c.status = s
}

// IncPendingChanges records a second in-flight operation (a drop
// requested while creation is still pending).
func (c *Constraint) IncPendingChanges() { c.pendingChanges.Add(1) }

// DecPendingChanges records one in-flight operation completing.
func (c *Constraint) DecPendingChanges() { c.pendingChanges.Add(-1) }

func (c *Constraint) PendingChanges() int32 { return c.pendingChanges.Load() }

// ContainsAttribute reports whether attrID participates in c.
func (c *Constraint) ContainsAttribute(attrID int) bool {
	for _, id := range c.AttrIDs {
		if id == attrID {
			return true
		}
	}
	return false
}

// Satisfies reports whether attrs holds c's rule: Mandatory requires
// every attribute present; Unique only checks presence here (global
// uniqueness is enforced by the caller's index lookup —
// the constraint object itself only knows which attributes matter).
func (c *Constraint) Satisfies(attrs *attrset.Set) bool {
	for _, id := range c.AttrIDs {
		if _, ok := attrs.Get(id); !ok {
			return false
		}
	}
	return true
}
