package graphstore

import "sync"

// SchemaID is a dense integer handle for a label, relationship-type, or
// attribute name, assigned in allocation order by a GraphContext. Ids
// are only ever appended — never reused — so the undo log's
// add_schema/add_attribute rollback can simply pop the tail.
type SchemaID int

// GraphContext owns the label, relationship-type, and attribute
// name<->id mappings for one graph. Names are interned once; entities
// reference ids, and attribute-name strings held by the context are
// exposed to the value system as AllocConst views.
type GraphContext struct {
	mu sync.RWMutex

	labelNames    []string
	labelIDs      map[string]SchemaID
	relNames      []string
	relIDs        map[string]SchemaID
	attrNames     []string
	attrIDs       map[string]int
}

// NewGraphContext returns an empty context.
func NewGraphContext() *GraphContext {
	return &GraphContext{
		labelIDs: make(map[string]SchemaID),
		relIDs:   make(map[string]SchemaID),
		attrIDs:  make(map[string]int),
	}
}

func internOrAdd(mu *sync.RWMutex, names *[]string, ids map[string]SchemaID, name string) SchemaID {
	mu.Lock()
	defer mu.Unlock()
	if id, ok := ids[name]; ok {
		return id
	}
	id := SchemaID(len(*names))
	*names = append(*names, name)
	ids[name] = id
	return id
}

// LabelID interns label, assigning a fresh id if this is the first
// time it's been seen.
func (c *GraphContext) LabelID(label string) SchemaID {
	return internOrAdd(&c.mu, &c.labelNames, c.labelIDs, label)
}

// LookupLabelID returns the id for label without creating one.
func (c *GraphContext) LookupLabelID(label string) (SchemaID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.labelIDs[label]
	return id, ok
}

// LabelName returns the name registered for id.
func (c *GraphContext) LabelName(id SchemaID) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(c.labelNames) {
		return ""
	}
	return c.labelNames[id]
}

// RelTypeID interns a relationship-type name.
func (c *GraphContext) RelTypeID(rel string) SchemaID {
	return internOrAdd(&c.mu, &c.relNames, c.relIDs, rel)
}

func (c *GraphContext) LookupRelTypeID(rel string) (SchemaID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.relIDs[rel]
	return id, ok
}

func (c *GraphContext) RelTypeName(id SchemaID) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(c.relNames) {
		return ""
	}
	return c.relNames[id]
}

// AttrID interns an attribute name. Attribute ids are plain ints rather
// than SchemaID: every consumer (attrset.Set, arithmetic.Property,
// Store.SetNodeAttr/SetEdgeAttr) already indexes attributes by int, so
// this keeps the id type at the boundary where it's actually used
// instead of forcing a cast at every call site.
func (c *GraphContext) AttrID(attr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.attrIDs[attr]; ok {
		return id
	}
	id := len(c.attrNames)
	c.attrNames = append(c.attrNames, attr)
	c.attrIDs[attr] = id
	return id
}

func (c *GraphContext) LookupAttrID(attr string) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.attrIDs[attr]
	return id, ok
}

func (c *GraphContext) AttrName(id int) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if id < 0 || id >= len(c.attrNames) {
		return ""
	}
	return c.attrNames[id]
}

// LabelCount/RelTypeCount/AttrCount report the current namespace sizes,
// used by undo-log rollback of add_schema/add_attribute to pop the tail
// id.
func (c *GraphContext) LabelCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.labelNames)
}

func (c *GraphContext) RelTypeCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.relNames)
}

func (c *GraphContext) AttrCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.attrNames)
}

// PopLabel removes the highest-id label, the rollback half of an
// add_schema undo entry. Callers must guarantee no node still carries
// this label's bit.
func (c *GraphContext) PopLabel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.labelNames) == 0 {
		return
	}
	name := c.labelNames[len(c.labelNames)-1]
	c.labelNames = c.labelNames[:len(c.labelNames)-1]
	delete(c.labelIDs, name)
}

// PopRelType removes the highest-id relationship type, the rollback
// half of an add_schema undo entry for a relation schema.
func (c *GraphContext) PopRelType() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.relNames) == 0 {
		return
	}
	name := c.relNames[len(c.relNames)-1]
	c.relNames = c.relNames[:len(c.relNames)-1]
	delete(c.relIDs, name)
}

// PopAttr removes the highest-id attribute name, the rollback half of
// an add_attribute undo entry.
func (c *GraphContext) PopAttr() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.attrNames) == 0 {
		return
	}
	name := c.attrNames[len(c.attrNames)-1]
	c.attrNames = c.attrNames[:len(c.attrNames)-1]
	delete(c.attrIDs, name)
}
