// Package undolog implements the per-query rollback log: every
// mutating operator appends one entry per structural or attribute
// change it makes, and a failed query rolls every entry back in
// reverse order.
//
// Rollback groups contiguous runs of the same operation type and
// replays each run with one bulk handler call: walk from the tail,
// find how far back the same OpType extends, roll back that whole
// run, then continue from where the run started.
package undolog

import (
	"encoding/json"

	"github.com/graphkernel/corequery/internal/attrset"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/graphstore/walshadow"
	"github.com/graphkernel/corequery/internal/value"
)

// OpType tags one undo-log entry.
type OpType uint8

const (
	OpUpdateEntity OpType = iota
	OpCreateNode
	OpCreateEdge
	OpDeleteNode
	OpDeleteEdge
	OpSetLabels
	OpRemoveLabels
	OpAddSchema
	OpAddAttribute
)

// SchemaKind distinguishes which namespace an OpAddSchema entry
// belongs to, since GraphContext keeps labels and relation types in
// separate id spaces.
type SchemaKind uint8

const (
	SchemaLabel SchemaKind = iota
	SchemaRelType
)

// Entry is one undo-log record. Only the fields relevant to Type are
// populated; the rest are zero.
type Entry struct {
	Type OpType

	EntityID int64 // Create/Delete/Update
	IsEdge   bool

	// DeleteNode/DeleteEdge: the deleted entity's snapshot, needed to
	// resurrect it at the same id.
	Labels []graphstore.SchemaID
	Attrs  *attrset.Set

	// UpdateEntity
	AttrID    int
	OrigValue value.V

	// SetLabels/RemoveLabels
	LabelDelta []graphstore.SchemaID

	// AddSchema
	SchemaKind SchemaKind

	// AddAttribute has no extra fields: rollback always pops the tail.
}

// String names an OpType for diagnostics and for the walshadow durable
// log, where entries are tagged by name rather than by the in-memory
// enum value.
func (t OpType) String() string {
	switch t {
	case OpUpdateEntity:
		return "update_entity"
	case OpCreateNode:
		return "create_node"
	case OpCreateEdge:
		return "create_edge"
	case OpDeleteNode:
		return "delete_node"
	case OpDeleteEdge:
		return "delete_edge"
	case OpSetLabels:
		return "set_labels"
	case OpRemoveLabels:
		return "remove_labels"
	case OpAddSchema:
		return "add_schema"
	case OpAddAttribute:
		return "add_attribute"
	default:
		return "unknown"
	}
}

// Log is an append-only sequence of Entry, owned by one query.
type Log struct {
	entries []Entry

	// shadow, when attached, durably mirrors a coarse summary of each
	// entry to Badger so a restarted process can tell which queries left entities in a
	// possibly half-reverted state. The shadow carries scalar fields
	// only (EntityID, IsEdge, the op kind) rather than the full Entry:
	// OrigValue/Attrs hold unexported-field types (value.V,
	// attrset.Set) that aren't meant to cross a serialization
	// boundary, so the shadow is a recovery marker, not a full replay
	// log.
	shadow  *walshadow.Shadow
	queryID string
	seq     uint64
}

// New returns an empty log.
func New() *Log { return &Log{} }

// Attach wires a durable shadow to this log, keyed by queryID. Once
// attached, every append is mirrored to shadow before it returns;
// Rollback discards the shadowed entries for queryID once the
// in-memory rollback finishes successfully.
func (l *Log) Attach(shadow *walshadow.Shadow, queryID string) {
	l.shadow = shadow
	l.queryID = queryID
}

// Len reports how many entries have been recorded.
func (l *Log) Len() int { return len(l.entries) }

// shadowMarker is the JSON-able recovery marker mirrored to walshadow
// for one undo-log entry.
type shadowMarker struct {
	EntityID int64
	IsEdge   bool
}

func (l *Log) append(e Entry) {
	l.entries = append(l.entries, e)
	if l.shadow == nil {
		return
	}
	l.seq++
	payload, err := json.Marshal(shadowMarker{EntityID: e.EntityID, IsEdge: e.IsEdge})
	if err != nil {
		return
	}
	_ = l.shadow.Append(walshadow.Entry{
		QueryID: l.queryID,
		Seq:     l.seq,
		Kind:    e.Type.String(),
		Payload: payload,
	})
}

// CreateNode records a node creation for later rollback (delete it).
func (l *Log) CreateNode(id int64) {
	l.append(Entry{Type: OpCreateNode, EntityID: id})
}

// CreateEdge records an edge creation for later rollback (delete it).
func (l *Log) CreateEdge(id int64) {
	l.append(Entry{Type: OpCreateEdge, EntityID: id})
}

// DeleteNode records a node deletion, snapshotting enough state
// (labels, attribute set) to resurrect it.
func (l *Log) DeleteNode(id int64, labels []graphstore.SchemaID, attrs *attrset.Set) {
	l.append(Entry{Type: OpDeleteNode, EntityID: id, Labels: labels, Attrs: attrs})
}

// DeleteEdge records an edge deletion, snapshotting its attribute set
// (endpoints and relation never change, so the store already knows them).
func (l *Log) DeleteEdge(id int64, attrs *attrset.Set) {
	l.append(Entry{Type: OpDeleteEdge, EntityID: id, Attrs: attrs})
}

// UpdateEntity records a single attribute mutation's original value.
func (l *Log) UpdateEntity(id int64, isEdge bool, attrID int, origValue value.V) {
	l.append(Entry{Type: OpUpdateEntity, EntityID: id, IsEdge: isEdge, AttrID: attrID, OrigValue: origValue})
}

// SetLabels records labels added to a node.
func (l *Log) SetLabels(id int64, added []graphstore.SchemaID) {
	l.append(Entry{Type: OpSetLabels, EntityID: id, LabelDelta: added})
}

// RemoveLabels records labels removed from a node.
func (l *Log) RemoveLabels(id int64, removed []graphstore.SchemaID) {
	l.append(Entry{Type: OpRemoveLabels, EntityID: id, LabelDelta: removed})
}

// AddSchema records a new label or relationship-type registration.
func (l *Log) AddSchema(kind SchemaKind) {
	l.append(Entry{Type: OpAddSchema, SchemaKind: kind})
}

// AddAttribute records a new attribute-name registration.
func (l *Log) AddAttribute() {
	l.append(Entry{Type: OpAddAttribute})
}

// Rollback undoes every entry against store, in reverse order, grouping
// contiguous same-type runs into one bulk call per run. The log is left empty afterward.
func Rollback(l *Log, store *graphstore.Store) {
	entries := l.entries
	end := len(entries) - 1
	for end >= 0 {
		curType := entries[end].Type
		start := end
		for start > 0 && entries[start-1].Type == curType {
			start--
		}
		rollbackRun(store, entries[start:end+1])
		end = start - 1
	}
	l.entries = nil
	l.discardShadow()
}

// Commit discards any durably shadowed entries once the query that
// owns l finishes without needing a rollback.
func (l *Log) Commit() {
	l.discardShadow()
}

func (l *Log) discardShadow() {
	if l.shadow == nil {
		return
	}
	_ = l.shadow.Discard(l.queryID)
}

// rollbackRun replays one contiguous same-type run in reverse (tail to
// head within the run), since later entries in program order must be
// undone before earlier ones even within a bulk group.
func rollbackRun(store *graphstore.Store, run []Entry) {
	for i := len(run) - 1; i >= 0; i-- {
		rollbackOne(store, run[i])
	}
}

func rollbackOne(store *graphstore.Store, e Entry) {
	switch e.Type {
	case OpCreateNode:
		store.DeleteNode(e.EntityID)
	case OpCreateEdge:
		store.DeleteEdge(e.EntityID)
	case OpDeleteNode:
		store.RestoreNode(e.EntityID, e.Labels, e.Attrs)
	case OpDeleteEdge:
		store.RestoreEdge(e.EntityID, e.Attrs)
	case OpUpdateEntity:
		if e.IsEdge {
			store.SetEdgeAttr(e.EntityID, e.AttrID, e.OrigValue)
		} else {
			store.SetNodeAttr(e.EntityID, e.AttrID, e.OrigValue)
		}
	case OpSetLabels:
		store.RemoveLabels(e.EntityID, e.LabelDelta)
	case OpRemoveLabels:
		store.SetLabels(e.EntityID, e.LabelDelta)
	case OpAddSchema:
		if e.SchemaKind == SchemaLabel {
			store.Ctx.PopLabel()
		} else {
			store.Ctx.PopRelType()
		}
	case OpAddAttribute:
		store.Ctx.PopAttr()
	}
}
