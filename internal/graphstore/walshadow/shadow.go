// Package walshadow is an opt-in durable shadow for the undo log.
// The graph itself is never persisted here, but a query that crashes mid-rollback can still
// leave the in-memory graph half-reverted; shadowing the undo log (not
// the graph) to Badger lets a restarted process replay outstanding
// rollbacks without resurrecting full RDB/AOF-style persistence.
//
// The key/value layout is conventional Badger: sequential keys, JSON
// value encoding, one prefix per in-flight query. An entry lives only
// until its query commits or finishes its own rollback.
package walshadow

import (
	"encoding/json"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Entry is the durable form of one undo-log operation: enough to replay
// rollback after a crash, independent of the in-memory undolog package's
// richer (and process-local) representation.
type Entry struct {
	QueryID string
	Seq     uint64
	Kind    string
	Payload []byte
}

// Shadow persists undo entries for in-flight queries and lets a
// restarted process find and replay any left over from a crash.
type Shadow struct {
	db *badger.DB
}

// Open opens (or creates) a Badger store at dir. Passing "" opens an
// in-memory instance, useful for tests that want durability semantics
// without touching disk.
func Open(dir string) (*Shadow, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("walshadow: open: %w", err)
	}
	return &Shadow{db: db}, nil
}

func entryKey(queryID string, seq uint64) []byte {
	return []byte(fmt.Sprintf("undo/%s/%020d", queryID, seq))
}

func queryPrefix(queryID string) []byte {
	return []byte(fmt.Sprintf("undo/%s/", queryID))
}

// Append durably records one undo entry for queryID.
func (s *Shadow) Append(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(e.QueryID, e.Seq), data)
	})
}

// Discard removes every shadowed entry for queryID, called once the
// query commits (the undo log is no longer needed) or finishes its own
// in-memory rollback successfully.
func (s *Shadow) Discard(queryID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := queryPrefix(queryID)
		var keys [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Recover returns every shadowed entry still on disk, grouped by query
// id, in append order — entries a prior process never discarded
// because it crashed before commit or rollback completed.
func (s *Shadow) Recover() (map[string][]Entry, error) {
	out := make(map[string][]Entry)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("undo/")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return err
			}
			out[e.QueryID] = append(out[e.QueryID], e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the underlying Badger handle.
func (s *Shadow) Close() error { return s.db.Close() }
