// Package graphstore implements the in-memory graph data model:
// dense node/edge blocks, per-label boolean matrices,
// per-relation adjacency matrices, and the sync-policy batching
// discipline that lets bulk writers defer matrix resizing.
//
// # ELI12
//
// Picture a graph as a seating chart (nodes) plus a stack of
// transparent overlays, one per relationship type (edges) and one per
// label (who's a "VIP", who's "Staff"). Looking up "everyone labeled
// VIP" is just reading one overlay; looking up "who did Alice send a
// message to" is reading the MESSAGED overlay's Alice row. Matrices are
// those overlays, kept sparse because most overlay cells are blank.
package graphstore

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/graphkernel/corequery/internal/attrset"
	"github.com/graphkernel/corequery/internal/graphstore/cache"
	"github.com/graphkernel/corequery/internal/graphstore/sparsematrix"
	"github.com/graphkernel/corequery/internal/matrixapi"
	"github.com/graphkernel/corequery/internal/value"
)

// SyncPolicy names the batching discipline a writer is under. The store
// records the current policy (Policy) but no store method consults it:
// relation matrices grow on demand when a cell is set, and
// ReconcileMatrixSizes brings them up to the node count.
type SyncPolicy uint8

const (
	// SyncFlushResize is the default policy, for interactive (non-bulk)
	// writes.
	SyncFlushResize SyncPolicy = iota
	// SyncResize marks a bulk writer that pre-sizes matrices once.
	SyncResize
	// SyncNop marks a bulk writer that defers resizing to a single
	// ReconcileMatrixSizes call before switching back.
	SyncNop
)

// multiEdgeFlag tags a relation-matrix cell value as a pointer into
// Store.multiEdges rather than a literal (edgeID+1); the MSB distinguishes
// the two states.
const multiEdgeFlag = uint64(1) << 63

// Direction selects which side of an edge to traverse from.
type Direction uint8

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// Node is the graph store's resident node record.
type Node struct {
	ID      int64
	Labels  map[SchemaID]struct{}
	Attrs   *attrset.Set
	Deleted bool
}

// Edge is the graph store's resident edge record.
type Edge struct {
	ID       int64
	Src, Dst int64
	Relation SchemaID
	Attrs    *attrset.Set
	Deleted  bool
}

// Store is the in-memory graph: node/edge blocks plus the label and
// relation matrices that index them.
type Store struct {
	// mu guards the store's structures for the duration of one method
	// call; qmu is the query-level readers-writer lock layered above it
	// (see Lock/RLock). The two never nest the other way around.
	mu  sync.RWMutex
	qmu sync.RWMutex

	Ctx     *GraphContext
	Schemas *SchemaManager

	nodes []*Node // dense by id; entries for deleted nodes are kept as tombstones until reclaimed
	edges []*Edge

	labelBitmaps map[SchemaID]*roaring.Bitmap
	relMatrices  map[SchemaID]matrixapi.Matrix

	multiEdges  map[uint64][]int64
	nextMultiID uint64

	policy SyncPolicy

	liveNodes int64
	liveEdges int64

	// labelNodesCache memoizes NodesWithLabel's bitmap-to-slice
	// materialization: converting a
	// roaring bitmap's set bits into a plain []int64 is the one
	// genuinely re-derivable-but-costly step label_matrix access
	// involves, unlike the bitmap/matrix lookups themselves (already
	// O(1) map reads). Any label-bitmap mutation invalidates the
	// entry for that label.
	labelNodesCache *cache.MatrixCache
}

// New returns an empty store bound to a fresh GraphContext.
func New() *Store {
	matCache, _ := cache.New(1024)
	return &Store{
		Ctx:             NewGraphContext(),
		Schemas:         NewSchemaManager(),
		labelBitmaps:    make(map[SchemaID]*roaring.Bitmap),
		relMatrices:     make(map[SchemaID]matrixapi.Matrix),
		multiEdges:      make(map[uint64][]int64),
		policy:          SyncFlushResize,
		labelNodesCache: matCache,
	}
}

// SetSyncPolicy switches the batching discipline; bulk-create operators
// set SyncResize/SyncNop while buffering and restore SyncFlushResize at
// the end of their commit phase.
func (s *Store) SetSyncPolicy(p SyncPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = p
}

func (s *Store) Policy() SyncPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// CreateNode appends a new node with the given labels and returns its
// id. It does not resize any relation matrix, whatever the sync policy;
// matrices grow when an edge cell is set, and ReconcileMatrixSizes
// brings them up to the node count.
func (s *Store) CreateNode(labels []SchemaID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := int64(len(s.nodes))
	n := &Node{ID: id, Labels: make(map[SchemaID]struct{}, len(labels)), Attrs: attrset.New()}
	for _, l := range labels {
		n.Labels[l] = struct{}{}
		s.labelBitmapLocked(l).Add(uint32(id))
		s.invalidateLabelCache(l)
	}
	s.nodes = append(s.nodes, n)
	s.liveNodes++
	return id
}

// CreateEdge appends a new edge and records it in the relation matrix
// for rel, using the single-id/multi-edge-list cell encoding.
func (s *Store) CreateEdge(src, dst int64, rel SchemaID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := int64(len(s.edges))
	e := &Edge{ID: id, Src: src, Dst: dst, Relation: rel, Attrs: attrset.New()}
	s.edges = append(s.edges, e)
	s.liveEdges++

	m := s.relMatrixLocked(rel)
	cur, ok := m.Extract(uint64(src), uint64(dst))
	switch {
	case !ok:
		m.SetElement(uint64(src), uint64(dst), uint64(id)+1)
	case cur&multiEdgeFlag != 0:
		key := cur &^ multiEdgeFlag
		s.multiEdges[key] = append(s.multiEdges[key], id)
	default:
		existing := int64(cur) - 1
		key := s.nextMultiID
		s.nextMultiID++
		s.multiEdges[key] = []int64{existing, id}
		m.SetElement(uint64(src), uint64(dst), multiEdgeFlag|key)
	}
	return id
}

// DeleteNode cascades to every incident edge before marking the node
// deleted, preserving the invariant that edge endpoints reference live
// nodes.
func (s *Store) DeleteNode(id int64) {
	incident := s.GetNodeEdges(id, Both, -1)
	for _, e := range incident {
		s.DeleteEdge(e.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || int(id) >= len(s.nodes) || s.nodes[id].Deleted {
		return
	}
	n := s.nodes[id]
	for l := range n.Labels {
		s.labelBitmapLocked(l).Remove(uint32(id))
		s.invalidateLabelCache(l)
	}
	n.Deleted = true
	s.liveNodes--
}

// DeleteEdge clears (or shrinks) the edge's cell in its relation
// matrix.
func (s *Store) DeleteEdge(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || int(id) >= len(s.edges) || s.edges[id].Deleted {
		return
	}
	e := s.edges[id]
	e.Deleted = true
	s.liveEdges--

	m := s.relMatrixLocked(e.Relation)
	cur, ok := m.Extract(uint64(e.Src), uint64(e.Dst))
	if !ok {
		return
	}
	if cur&multiEdgeFlag == 0 {
		m.RemoveElement(uint64(e.Src), uint64(e.Dst))
		return
	}
	key := cur &^ multiEdgeFlag
	list := s.multiEdges[key]
	for i, eid := range list {
		if eid == id {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	switch len(list) {
	case 0:
		delete(s.multiEdges, key)
		m.RemoveElement(uint64(e.Src), uint64(e.Dst))
	case 1:
		delete(s.multiEdges, key)
		m.SetElement(uint64(e.Src), uint64(e.Dst), uint64(list[0])+1)
	default:
		s.multiEdges[key] = list
	}
}

// GetNode returns the node record for id, or nil if deleted/out of range.
func (s *Store) GetNode(id int64) *Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || int(id) >= len(s.nodes) || s.nodes[id].Deleted {
		return nil
	}
	return s.nodes[id]
}

func (s *Store) GetEdge(id int64) *Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 0 || int(id) >= len(s.edges) || s.edges[id].Deleted {
		return nil
	}
	return s.edges[id]
}

// NodeCount/EdgeCount report live (non-deleted) entity counts.
func (s *Store) NodeCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liveNodes
}

func (s *Store) EdgeCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liveEdges
}

// SetLabels/RemoveLabels add or strip label bits on an existing node,
// used by the Update operator.
func (s *Store) SetLabels(id int64, labels []SchemaID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nodes[id]
	for _, l := range labels {
		if _, ok := n.Labels[l]; !ok {
			n.Labels[l] = struct{}{}
			s.labelBitmapLocked(l).Add(uint32(id))
			s.invalidateLabelCache(l)
		}
	}
}

func (s *Store) RemoveLabels(id int64, labels []SchemaID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nodes[id]
	for _, l := range labels {
		if _, ok := n.Labels[l]; ok {
			delete(n.Labels, l)
			s.labelBitmapLocked(l).Remove(uint32(id))
			s.invalidateLabelCache(l)
		}
	}
}

func (s *Store) labelBitmapLocked(l SchemaID) *roaring.Bitmap {
	bm, ok := s.labelBitmaps[l]
	if !ok {
		bm = roaring.New()
		s.labelBitmaps[l] = bm
	}
	return bm
}

func (s *Store) relMatrixLocked(r SchemaID) matrixapi.Matrix {
	m, ok := s.relMatrices[r]
	if !ok {
		m = sparsematrix.New(uint64(len(s.nodes)), uint64(len(s.nodes)))
		s.relMatrices[r] = m
	}
	return m
}

// LabelMatrix lazily materializes and returns the bitmap for label l.
func (s *Store) LabelMatrix(l SchemaID) *roaring.Bitmap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.labelBitmapLocked(l)
}

// RelationMatrix lazily materializes and returns the adjacency matrix
// for relation r.
func (s *Store) RelationMatrix(r SchemaID) matrixapi.Matrix {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relMatrixLocked(r)
}

// NodesWithLabel returns live node ids carrying label l, in ascending
// id order (the roaring bitmap's natural iteration order).
func (s *Store) NodesWithLabel(l SchemaID) []int64 {
	if s.labelNodesCache != nil {
		if cached, ok := s.labelNodesCache.Get(uint64(l)); ok {
			return cached.([]int64)
		}
	}

	s.mu.RLock()
	bm, ok := s.labelBitmaps[l]
	if !ok {
		s.mu.RUnlock()
		return nil
	}
	it := bm.Iterator()
	out := make([]int64, 0, bm.GetCardinality())
	for it.HasNext() {
		out = append(out, int64(it.Next()))
	}
	s.mu.RUnlock()

	if s.labelNodesCache != nil {
		s.labelNodesCache.Set(uint64(l), out)
	}
	return out
}

// invalidateLabelCache drops the memoized node-id slice for l, called
// whenever a node's label bitmap changes.
func (s *Store) invalidateLabelCache(l SchemaID) {
	if s.labelNodesCache != nil {
		s.labelNodesCache.Invalidate(uint64(l))
	}
}

// RLock/RUnlock take the query-level read lock: one query holds it for
// the bulk of its work, and long-running batch scanners (constraint
// enforcement, index backfill) re-acquire it per batch rather than
// holding it for an entire label scan. It is distinct from mu, the
// per-call structure lock, so operators may keep calling locked store
// methods while their query holds the query-level lock.
func (s *Store) RLock()   { s.qmu.RLock() }
func (s *Store) RUnlock() { s.qmu.RUnlock() }

// Lock/Unlock take the query-level exclusive lock, serializing writers
// against each other and against readers while structure-level mu
// continues to guard individual method calls underneath.
func (s *Store) Lock()   { s.qmu.Lock() }
func (s *Store) Unlock() { s.qmu.Unlock() }

// NodesWithLabelFrom returns up to limit live node ids carrying label l
// at or after the id from, in ascending order, plus the id to resume
// from on the next call and whether the scan is exhausted. Callers are
// expected to hold RLock only for the duration of one batch.
func (s *Store) NodesWithLabelFrom(l SchemaID, from int64, limit int) (ids []int64, next int64, done bool) {
	bm, ok := s.labelBitmaps[l]
	if !ok {
		return nil, 0, true
	}
	it := bm.Iterator()
	if from > 0 {
		it.AdvanceIfNeeded(uint32(from))
	}
	out := make([]int64, 0, limit)
	for it.HasNext() && len(out) < limit {
		out = append(out, int64(it.Next()))
	}
	if !it.HasNext() {
		return out, 0, true
	}
	return out, out[len(out)-1] + 1, false
}

// AllNodeIDs returns every live node id in ascending order.
func (s *Store) AllNodeIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int64, 0, s.liveNodes)
	for _, n := range s.nodes {
		if !n.Deleted {
			out = append(out, n.ID)
		}
	}
	return out
}

// GetNodeEdges reads one or both of A_R[n,*], A_R[*,n] and returns the
// materialized Edge list; relFilter < 0 means "any relation". Multi-edge
// cells expand to their member list.
func (s *Store) GetNodeEdges(n int64, dir Direction, relFilter SchemaID) []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Edge
	for rel, m := range s.relMatrices {
		if relFilter >= 0 && rel != relFilter {
			continue
		}
		if dir == Outgoing || dir == Both {
			out = append(out, s.scanRowLocked(m, n)...)
		}
		if dir == Incoming || dir == Both {
			out = append(out, s.scanColLocked(m, n)...)
		}
	}
	return out
}

func (s *Store) scanRowLocked(m matrixapi.Matrix, row int64) []*Edge {
	var out []*Edge
	it := m.ExtractTuples()
	it.ResumeFrom(uint64(row), 0)
	for {
		cell, ok := it.Next()
		if !ok || cell.Row != uint64(row) {
			break
		}
		out = append(out, s.resolveCellLocked(cell.Value)...)
	}
	it.Close()
	return out
}

func (s *Store) scanColLocked(m matrixapi.Matrix, col int64) []*Edge {
	var out []*Edge
	it := m.ExtractTuples()
	for {
		cell, ok := it.Next()
		if !ok {
			break
		}
		if cell.Col != uint64(col) {
			continue
		}
		out = append(out, s.resolveCellLocked(cell.Value)...)
	}
	it.Close()
	return out
}

func (s *Store) resolveCellLocked(value uint64) []*Edge {
	if value&multiEdgeFlag != 0 {
		key := value &^ multiEdgeFlag
		ids := s.multiEdges[key]
		out := make([]*Edge, 0, len(ids))
		for _, id := range ids {
			out = append(out, s.edges[id])
		}
		return out
	}
	return []*Edge{s.edges[int64(value)-1]}
}

// RestoreNode revives a tombstoned node at its original id, used only by
// undo-log rollback of a delete: ids are never reused, so
// rollback must resurrect the same id rather than create a fresh one.
func (s *Store) RestoreNode(id int64, labels []SchemaID, attrs *attrset.Set) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || int(id) >= len(s.nodes) {
		return
	}
	n := s.nodes[id]
	n.Deleted = false
	n.Attrs = attrs
	n.Labels = make(map[SchemaID]struct{}, len(labels))
	for _, l := range labels {
		n.Labels[l] = struct{}{}
		s.labelBitmapLocked(l).Add(uint32(id))
		s.invalidateLabelCache(l)
	}
	s.liveNodes++
}

// RestoreEdge revives a tombstoned edge at its original id and
// re-inserts it into its relation matrix cell, composing with any
// surviving multi-edge list the way CreateEdge does.
func (s *Store) RestoreEdge(id int64, attrs *attrset.Set) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || int(id) >= len(s.edges) {
		return
	}
	e := s.edges[id]
	e.Deleted = false
	e.Attrs = attrs
	s.liveEdges++

	m := s.relMatrixLocked(e.Relation)
	cur, ok := m.Extract(uint64(e.Src), uint64(e.Dst))
	switch {
	case !ok:
		m.SetElement(uint64(e.Src), uint64(e.Dst), uint64(id)+1)
	case cur&multiEdgeFlag != 0:
		key := cur &^ multiEdgeFlag
		s.multiEdges[key] = append(s.multiEdges[key], id)
	default:
		existing := int64(cur) - 1
		key := s.nextMultiID
		s.nextMultiID++
		s.multiEdges[key] = []int64{existing, id}
		m.SetElement(uint64(e.Src), uint64(e.Dst), multiEdgeFlag|key)
	}
}

// SetNodeAttr/SetEdgeAttr mutate one attribute under the store's lock,
// used by both the Update operator and undo-log rollback of an update
// or attribute-addition operation.
func (s *Store) SetNodeAttr(id int64, attrID int, v value.V) attrset.ChangeTag {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || int(id) >= len(s.nodes) {
		return attrset.NoChange
	}
	return s.nodes[id].Attrs.Set(attrID, v)
}

func (s *Store) SetEdgeAttr(id int64, attrID int, v value.V) attrset.ChangeTag {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || int(id) >= len(s.edges) {
		return attrset.NoChange
	}
	return s.edges[id].Attrs.Set(attrID, v)
}

// ReconcileMatrixSizes resizes every relation matrix to cover the current
// node count; label bitmaps need no resize. Called by bulk writers after switching
// back from SyncNop to SyncFlushResize.
func (s *Store) ReconcileMatrixSizes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := uint64(len(s.nodes))
	for _, m := range s.relMatrices {
		m.Resize(n, n)
	}
}
