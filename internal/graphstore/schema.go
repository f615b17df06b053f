package graphstore

import (
	"fmt"
	"sync"
)

// IndexKind distinguishes the two index flavors:
// exact-match (numeric/string range + equality) and full-text.
type IndexKind uint8

const (
	IndexExact IndexKind = iota
	IndexFulltext
)

// IndexDescriptor names an index over a label's attribute list. The
// actual backing structure lives behind internal/indexapi.Index; the
// descriptor is what the schema layer and the filter-tree push-down
// reason about.
type IndexDescriptor struct {
	Name  string
	Label SchemaID
	Kind  IndexKind
	// Attributes holds the indexed attribute ids. Attribute ids are
	// plain ints (see GraphContext.AttrID), a different namespace than
	// the SchemaID used for labels/relationship types.
	Attributes []int
}

// SchemaManager owns the named label/relationship schemas and the index
// descriptors registered against them, keyed by SchemaID rather than
// by raw label strings, since names are resolved to ids once at the
// GraphContext.
type SchemaManager struct {
	mu sync.RWMutex

	indexes map[string]*IndexDescriptor
	byLabel map[SchemaID][]*IndexDescriptor
}

// NewSchemaManager returns an empty schema manager.
func NewSchemaManager() *SchemaManager {
	return &SchemaManager{
		indexes: make(map[string]*IndexDescriptor),
		byLabel: make(map[SchemaID][]*IndexDescriptor),
	}
}

// AddIndex registers a new index descriptor. Returns an error if the
// name is already taken.
func (sm *SchemaManager) AddIndex(d *IndexDescriptor) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if _, exists := sm.indexes[d.Name]; exists {
		return fmt.Errorf("index %q already exists", d.Name)
	}
	sm.indexes[d.Name] = d
	sm.byLabel[d.Label] = append(sm.byLabel[d.Label], d)
	return nil
}

// IndexesForLabel returns every index descriptor registered against
// label, used by the filter-tree push-down to find a candidate index.
func (sm *SchemaManager) IndexesForLabel(label SchemaID) []*IndexDescriptor {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return append([]*IndexDescriptor(nil), sm.byLabel[label]...)
}

// Index looks up a descriptor by name.
func (sm *SchemaManager) Index(name string) (*IndexDescriptor, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	d, ok := sm.indexes[name]
	return d, ok
}

// DropIndex removes a descriptor by name.
func (sm *SchemaManager) DropIndex(name string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	d, ok := sm.indexes[name]
	if !ok {
		return
	}
	delete(sm.indexes, name)
	list := sm.byLabel[d.Label]
	for i, e := range list {
		if e == d {
			sm.byLabel[d.Label] = append(list[:i], list[i+1:]...)
			break
		}
	}
}
