package constraint

import (
	"github.com/graphkernel/corequery/internal/attrset"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/value"
)

// batchSize is sized to amortize the lock-acquire cost across a
// large label without holding the read lock for an entire scan.
const batchSize = 10000

// Enforce walks every entity c governs (nodes carrying c.Label, or
// edges of relation type c.Label) in batches, releasing
// store's read lock between batches, and moves c from PENDING to
// ACTIVE or FAILED once the scan completes or a violation is found.
// The pending-changes count taken at creation is released when the
// pass finishes, which is what lets a concurrent drop tell whether the
// constraint is still settling.
func Enforce(c *Constraint, store *graphstore.Store) {
	defer c.DecPendingChanges()
	if c.EntityKind == EdgeEntity {
		enforceEdges(c, store)
		return
	}
	enforceNodes(c, store)
}

// ScheduleEnforce runs Enforce on its own goroutine, the asynchronous
// path a writer uses after registering a constraint so registration
// returns immediately while the backfill scan proceeds in batches.
func ScheduleEnforce(c *Constraint, store *graphstore.Store) {
	go Enforce(c, store)
}

func enforceNodes(c *Constraint, store *graphstore.Store) {
	var from int64
	seen := uniqueTracker{}
	holds := true

	for holds {
		store.RLock()
		ids, next, done := store.NodesWithLabelFrom(c.Label, from, batchSize)
		var batch []*graphstore.Node
		for _, id := range ids {
			if n := store.GetNode(id); n != nil {
				batch = append(batch, n)
			}
		}
		store.RUnlock()

		for _, n := range batch {
			if !entitySatisfies(c, n.Attrs, &seen) {
				holds = false
				break
			}
		}
		if done || !holds {
			break
		}
		from = next
	}

	c.setStatus(statusFor(holds))
}

// enforceEdges has no label-indexed relation scan available without a
// dedicated per-relation node list, so it walks every node's outgoing
// edges of the constrained relation type instead; still batched, still
// releasing the lock between batches.
func enforceEdges(c *Constraint, store *graphstore.Store) {
	seen := uniqueTracker{}
	holds := true

	ids := store.AllNodeIDs()
	for i := 0; i < len(ids) && holds; i += batchSize {
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}

		store.RLock()
		var batch []*graphstore.Edge
		for _, id := range ids[i:end] {
			batch = append(batch, store.GetNodeEdges(id, graphstore.Outgoing, c.Label)...)
		}
		store.RUnlock()

		for _, e := range batch {
			if !entitySatisfies(c, e.Attrs, &seen) {
				holds = false
				break
			}
		}
	}

	c.setStatus(statusFor(holds))
}

func statusFor(holds bool) Status {
	if holds {
		return Active
	}
	return Failed
}

func entitySatisfies(c *Constraint, attrs *attrset.Set, seen *uniqueTracker) bool {
	if c.Type == Mandatory {
		return c.Satisfies(attrs)
	}
	// Unique: every attribute must be present AND the composite key must
	// not have been seen before in this enforcement pass.
	if !c.Satisfies(attrs) {
		return false
	}
	key := compositeKey(c.AttrIDs, attrs)
	return seen.addIfAbsent(key)
}

// uniqueTracker deduplicates composite attribute keys seen so far
// during one enforcement pass. It is scoped to a single Enforce call,
// never retained — CheckWrite is what catches duplicates introduced by
// later writes.
type uniqueTracker struct {
	keys map[string]struct{}
}

func (t *uniqueTracker) addIfAbsent(key string) bool {
	if t.keys == nil {
		t.keys = make(map[string]struct{})
	}
	if _, ok := t.keys[key]; ok {
		return false
	}
	t.keys[key] = struct{}{}
	return true
}

func compositeKey(attrIDs []int, attrs *attrset.Set) string {
	var buf []byte
	for _, id := range attrIDs {
		v, _ := attrs.Get(id)
		buf = append(buf, []byte(value.ToString(v))...)
		buf = append(buf, 0)
	}
	return string(buf)
}
