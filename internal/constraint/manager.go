package constraint

import (
	"sync"

	"github.com/graphkernel/corequery/internal/graphstore"
)

// Manager owns every constraint registered on a graph, keyed by label
// and entity kind the way graphstore.SchemaManager keys indexes by
// label (internal/graphstore/schema.go).
type Manager struct {
	mu          sync.RWMutex
	constraints []*Constraint
}

func NewManager() *Manager { return &Manager{} }

// Add registers c and returns it.
func (m *Manager) Add(c *Constraint) *Constraint {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.constraints = append(m.constraints, c)
	return c
}

// Drop removes c from the manager. It is the caller's responsibility to
// have already reconciled c's PendingChanges counter.
func (m *Manager) Drop(c *Constraint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.constraints {
		if existing == c {
			m.constraints = append(m.constraints[:i], m.constraints[i+1:]...)
			return
		}
	}
}

// ForLabel returns every constraint scoped to label/kind.
func (m *Manager) ForLabel(label graphstore.SchemaID, kind EntityKind) []*Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Constraint
	for _, c := range m.constraints {
		if c.Label == label && c.EntityKind == kind {
			out = append(out, c)
		}
	}
	return out
}

// All returns every registered constraint, for db.constraints().
func (m *Manager) All() []*Constraint {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Constraint, len(m.constraints))
	copy(out, m.constraints)
	return out
}

// HasConstraintOnAttribute reports whether any constraint on label/kind
// enforces attrID, used by the Update operator to decide whether a
// mutation needs to re-trigger enforcement.
func (m *Manager) HasConstraintOnAttribute(label graphstore.SchemaID, kind EntityKind, attrID int) bool {
	for _, c := range m.ForLabel(label, kind) {
		if c.ContainsAttribute(attrID) {
			return true
		}
	}
	return false
}
