// Package engine is the query submission entry point: it wires
// together the graph store, the constraint manager, the
// function/procedure registries, and the plan builder, and drives one
// query from a parsed ast.Query to a buffered resultset.Set under the
// engine's locking and rollback discipline.
//
// It is a thin façade a host process opens once and then submits work
// through, owning the locking and lifecycle the lower packages assume
// but don't manage themselves.
package engine

import (
	"context"
	"log"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/graphkernel/corequery/internal/ast"
	"github.com/graphkernel/corequery/internal/constraint"
	"github.com/graphkernel/corequery/internal/funcs"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/graphstore/walshadow"
	"github.com/graphkernel/corequery/internal/indexapi"
	"github.com/graphkernel/corequery/internal/plan"
	"github.com/graphkernel/corequery/internal/planbuilder"
	"github.com/graphkernel/corequery/internal/procedure"
	"github.com/graphkernel/corequery/internal/queryerr"
	"github.com/graphkernel/corequery/internal/querygraph"
	"github.com/graphkernel/corequery/internal/record"
	"github.com/graphkernel/corequery/internal/resultset"
	"github.com/graphkernel/corequery/internal/undolog"
	"github.com/graphkernel/corequery/internal/value"
)

// Engine owns one graph store plus the long-lived collaborators every
// query shares: the constraint manager, the scalar function table, and
// the procedure registry.
type Engine struct {
	Store       *graphstore.Store
	Constraints *constraint.Manager
	Functions   plan.FunctionRegistry
	Procedures  plan.ProcedureRegistry
	Indexes     plan.IndexProvider

	// Shadow, when set by WithDurableUndoLog, mirrors a recovery
	// marker for every undo-log entry to Badger so a process that
	// crashes mid-rollback leaves a trail of which queries were still
	// in flight. Nil by default: the in-memory undo log is
	// sufficient for the common case of a query that fails cleanly.
	Shadow    *walshadow.Shadow
	queryNum  atomic.Uint64
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithIndexes installs idx as the engine's sole index, registered under
// the name "default". Engines built without any index provider simply
// never produce an IndexScan plan.
func WithIndexes(idx indexapi.Index) Option {
	return WithNamedIndex("default", idx)
}

// WithNamedIndex registers idx under name, matching the name carried by
// the graphstore.IndexDescriptor the plan rewrite resolves scans
// through. May be given multiple times.
func WithNamedIndex(name string, idx indexapi.Index) Option {
	return func(e *Engine) {
		mp, ok := e.Indexes.(mapIndexProvider)
		if !ok {
			mp = mapIndexProvider{}
			e.Indexes = mp
		}
		mp[name] = idx
	}
}

type mapIndexProvider map[string]indexapi.Index

func (p mapIndexProvider) Index(name string) (indexapi.Index, bool) {
	idx, ok := p[name]
	return idx, ok
}

// WithDurableUndoLog opens (or creates) a Badger-backed shadow of the
// undo log at dir. Passing "" opens an in-memory Badger instance, useful for
// tests that want the shadow's code path exercised without touching
// disk. If the shadow fails to open, the Engine falls back to the
// in-memory-only undo log and logs why.
func WithDurableUndoLog(dir string) Option {
	return func(e *Engine) {
		sh, err := walshadow.Open(dir)
		if err != nil {
			log.Printf("engine: durable undo log disabled: %v", err)
			return
		}
		e.Shadow = sh
	}
}

// New returns an Engine over a fresh, empty graph store, wired with the
// default scalar-function table and the db.constraints()/algo.* built-in
// procedures.
func New(opts ...Option) *Engine {
	store := graphstore.New()
	constraints := constraint.NewManager()
	e := &Engine{
		Store:       store,
		Constraints: constraints,
		Functions:   funcs.Default(),
		Procedures:  procedure.NewRegistry(store, constraints),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// AddConstraint registers a new PENDING constraint and schedules its
// asynchronous enforcement backfill; the returned constraint settles to
// ACTIVE or FAILED once the batched scan completes. Callers needing a
// settled constraint synchronously (tests, bootstrap) can run
// constraint.Enforce themselves instead.
func (e *Engine) AddConstraint(t constraint.Type, kind constraint.EntityKind, label graphstore.SchemaID, attrIDs []int) *constraint.Constraint {
	c := constraint.New(t, kind, label, attrIDs)
	e.Constraints.Add(c)
	constraint.ScheduleEnforce(c, e.Store)
	return c
}

// isMutating reports whether q contains any clause that can mutate the
// graph, deciding whether Submit needs the store's exclusive lock or
// can run under the shared read lock the whole time. Writers serialize
// against each other; readers run in parallel.
func isMutating(q *ast.Query) bool {
	for q != nil {
		for i := range q.Clauses {
			switch q.Clauses[i].Kind {
			case ast.ClauseCreate, ast.ClauseMerge, ast.ClauseSet, ast.ClauseRemove, ast.ClauseDelete:
				return true
			case ast.ClauseCallSubquery:
				if isMutating(q.Clauses[i].Subquery) {
					return true
				}
			}
		}
		q = q.UnionNext
	}
	return false
}

// Submit compiles q and runs it to completion against params, honoring
// timeout. On success it returns a fully buffered resultset.Set; on any
// error (compile failure, runtime error, constraint violation,
// cancellation) the graph is left bit-equal to its pre-call state and
// the error is returned instead.
func (e *Engine) Submit(q *ast.Query, params map[string]value.V, timeout time.Duration) (*resultset.Set, error) {
	q = querygraph.RewriteCorrelatedSubqueries(q)
	mutating := isMutating(q)
	if mutating {
		e.Store.Lock()
		defer e.Store.Unlock()
	} else {
		e.Store.RLock()
		defer e.Store.RUnlock()
	}

	// Compiling a query can intern new label/relation-type/attribute
	// names; a failed query must leave those namespaces untouched too,
	// and ids are append-only, so a snapshot of the counts is enough to
	// pop back to.
	ns := e.snapshotNamespaces()

	built, err := planbuilder.Build(q, e.Store)
	if err != nil {
		e.popNamespaces(ns)
		return nil, err
	}

	ctx := plan.NewCtx(e.Store, e.Constraints, e.Functions, e.Indexes, params)
	ctx.Procedures = e.Procedures
	// Compilation interned label names before the context existed, so
	// rebase the labels_added watermark onto the pre-compile snapshot.
	ctx.SetLabelBaseline(ns.labels)
	built.Root = plan.UtilizeIndexes(built.Root, e.Store, ctx)
	if e.Shadow != nil {
		queryID := strconv.FormatUint(e.queryNum.Add(1), 10)
		ctx.Undo.Attach(e.Shadow, queryID)
	}

	var cancelCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		cancelCtx, cancel = context.WithTimeout(context.Background(), timeout)
		defer cancel()
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-cancelCtx.Done():
				ctx.Cancel()
			case <-stop:
			}
		}()
	}

	built.Root.Init(ctx)
	out := resultset.New(built.Columns)

	rec := record.New(built.Width)
	for {
		status := built.Root.Consume(rec)
		if status == plan.StatusAborted {
			return e.rollback(ctx, cancelCtx, ns, nil)
		}
		if status == plan.StatusEOF {
			break
		}
		row := make([]value.V, len(built.Slots))
		for i, slot := range built.Slots {
			row[i] = value.Persist(rec.Get(slot))
		}
		out.AddRow(row)
	}

	if ctx.Err() != nil {
		return e.rollback(ctx, cancelCtx, ns, ctx.Err())
	}

	ctx.Undo.Commit()
	out.Stats = ctx.Stats
	out.Stats.Rows = int64(len(out.Rows))
	return out, nil
}

// nsSnapshot records the label/relation-type/attribute namespace sizes
// taken before compilation, so rollback can pop any names the failed
// query interned (ids are append-only, never reused).
type nsSnapshot struct {
	labels, rels, attrs int
}

func (e *Engine) snapshotNamespaces() nsSnapshot {
	return nsSnapshot{
		labels: e.Store.Ctx.LabelCount(),
		rels:   e.Store.Ctx.RelTypeCount(),
		attrs:  e.Store.Ctx.AttrCount(),
	}
}

func (e *Engine) popNamespaces(ns nsSnapshot) {
	for e.Store.Ctx.LabelCount() > ns.labels {
		e.Store.Ctx.PopLabel()
	}
	for e.Store.Ctx.RelTypeCount() > ns.rels {
		e.Store.Ctx.PopRelType()
	}
	for e.Store.Ctx.AttrCount() > ns.attrs {
		e.Store.Ctx.PopAttr()
	}
}

// rollback discards every mutation the aborted query already applied
// and reports the most specific error available: a cancellation/timeout
// sentinel takes priority over a generic ctx error only when the
// deadline actually fired, so a constraint violation caught just before
// the timeout still reports as a constraint violation.
func (e *Engine) rollback(ctx *plan.Ctx, cancelCtx context.Context, ns nsSnapshot, fallback error) (*resultset.Set, error) {
	undolog.Rollback(ctx.Undo, e.Store)
	e.popNamespaces(ns)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cancelCtx != nil && cancelCtx.Err() != nil {
		return nil, queryerr.ErrTimeout
	}
	if fallback != nil {
		return nil, fallback
	}
	return nil, queryerr.ErrCancelled
}
