package constraint

import (
	"github.com/graphkernel/corequery/internal/attrset"
	"github.com/graphkernel/corequery/internal/graphstore"
)

// CheckWrite synchronously validates a just-written node/edge against
// every ACTIVE constraint registered for its label, immediately rather
// than waiting for the next batched Enforce pass. excludeID is the
// entity's own id, so a unique scan doesn't flag it against itself.
//
// Returns the first violated constraint and the duplicate/offending
// entity id, or ok=false if attrs satisfies every ACTIVE constraint.
func CheckWrite(m *Manager, store *graphstore.Store, label graphstore.SchemaID, kind EntityKind, excludeID int64, attrs *attrset.Set) (violated *Constraint, conflictID int64, ok bool) {
	if m == nil {
		return nil, 0, true
	}
	for _, c := range m.ForLabel(label, kind) {
		if c.GetStatus() != Active {
			continue
		}
		switch c.Type {
		case Mandatory:
			if !c.Satisfies(attrs) {
				return c, 0, false
			}
		case Unique:
			if !c.Satisfies(attrs) {
				// Unique constraints only police entities that carry
				// every constrained attribute; a missing attribute is a
				// mandatory concern, not a uniqueness one.
				continue
			}
			if dup, found := findDuplicate(store, label, kind, c.AttrIDs, excludeID, attrs); found {
				return c, dup, false
			}
		}
	}
	return nil, 0, true
}

// findDuplicate scans every other live entity carrying label for one
// whose c.AttrIDs tuple matches attrs. A full-label scan stands in for
// an index probe on the synchronous path; it is only ever run against
// the handful of rows one write touches, not a whole-label batch
// (that's enforce.go's job).
func findDuplicate(store *graphstore.Store, label graphstore.SchemaID, kind EntityKind, attrIDs []int, excludeID int64, attrs *attrset.Set) (int64, bool) {
	key := compositeKey(attrIDs, attrs)
	if kind == EdgeEntity {
		for _, id := range store.AllNodeIDs() {
			for _, e := range store.GetNodeEdges(id, graphstore.Outgoing, label) {
				if e.ID == excludeID {
					continue
				}
				if compositeKey(attrIDs, e.Attrs) == key {
					return e.ID, true
				}
			}
		}
		return 0, false
	}
	for _, id := range store.NodesWithLabel(label) {
		if id == excludeID {
			continue
		}
		n := store.GetNode(id)
		if n == nil {
			continue
		}
		if compositeKey(attrIDs, n.Attrs) == key {
			return id, true
		}
	}
	return 0, false
}
