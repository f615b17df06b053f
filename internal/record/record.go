// Package record implements Record, the positional slot vector threaded
// through the execution plan's pull-based operators.
//
// Aliases are resolved to slot indices once, at compile time, by the
// plan builder; operators at run time only ever index by int, never by
// name, which is why Record carries no name table of its own.
package record

import "github.com/graphkernel/corequery/internal/value"

// SlotKind tags what a Record slot holds: one of
// node | edge | scalar | header. A header slot holds no
// value; it exists only so column metadata (name, declared kind) can be
// attached to a position without wasting a scalar slot.
type SlotKind uint8

const (
	SlotScalar SlotKind = iota
	SlotNode
	SlotEdge
	SlotHeader
)

// Record is a fixed-width, positional vector of values. It is reused
// across consume() calls by convention (operators overwrite their own
// slots rather than allocating a fresh Record per row) to keep the
// per-row allocation cost low in hot expand/filter loops.
type Record struct {
	slots []value.V
	kinds []SlotKind
}

// New allocates a record with width slots, all initialized to null.
func New(width int) *Record {
	r := &Record{slots: make([]value.V, width), kinds: make([]SlotKind, width)}
	for i := range r.slots {
		r.slots[i] = value.Null()
	}
	return r
}

// Width returns the number of slots.
func (r *Record) Width() int { return len(r.slots) }

// Get returns the value at slot i.
func (r *Record) Get(i int) value.V { return r.slots[i] }

// Set stores v at slot i with the given kind tag.
func (r *Record) Set(i int, v value.V, kind SlotKind) {
	r.slots[i] = v
	r.kinds[i] = kind
}

// Kind returns the slot kind at i.
func (r *Record) Kind(i int) SlotKind { return r.kinds[i] }

// Clone produces an independent copy whose volatile values have been
// persisted, safe to retain past the producing operator's next pull.
func (r *Record) Clone() *Record {
	out := &Record{
		slots: make([]value.V, len(r.slots)),
		kinds: append([]SlotKind(nil), r.kinds...),
	}
	for i, v := range r.slots {
		out.slots[i] = value.Persist(v)
	}
	return out
}

// Reset clears every slot back to null, reusing the backing arrays.
func (r *Record) Reset() {
	for i := range r.slots {
		r.slots[i] = value.Null()
		r.kinds[i] = SlotScalar
	}
}
