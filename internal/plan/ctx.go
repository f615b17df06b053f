package plan

import (
	"errors"
	"sync/atomic"

	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/constraint"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/indexapi"
	"github.com/graphkernel/corequery/internal/undolog"
	"github.com/graphkernel/corequery/internal/value"
)

// Stats accumulates the execution statistics exposed on the
// result set: {nodes_created, relationships_created, properties_set,
// labels_added, rows}.
type Stats struct {
	NodesCreated         int64
	NodesDeleted         int64
	RelationshipsCreated int64
	RelationshipsDeleted int64
	PropertiesSet        int64
	LabelsAdded          int64
	LabelsRemoved        int64
	Rows                 int64
}

// FunctionRegistry resolves a scalar function call by name, the
// arithmetic-evaluator side of the NodeFunc node. Kept as a
// narrow interface (rather than importing a concrete function package
// here) so plan stays free of a dependency on whatever package owns the
// built-in scalar function table.
type FunctionRegistry interface {
	Call(name string, args []value.V) (value.V, error)
}

// IndexProvider resolves the indexapi.Index backing one named index
// descriptor, used by IndexScan.
type IndexProvider interface {
	Index(name string) (indexapi.Index, bool)
}

// ProcedureRows iterates the output rows of one procedure invocation,
// each row already laid out in the procedure's declared yield-column
// order.
type ProcedureRows interface {
	Next() ([]value.V, bool)
	Close()
}

// ProcedureRegistry resolves and invokes a named procedure, kept narrow
// for the same reason as FunctionRegistry: ProcedureCall shouldn't need
// to import whatever package owns the procedure table.
type ProcedureRegistry interface {
	Call(name string, args []value.V) (ProcedureRows, error)
}

// Ctx is the per-query runtime environment threaded through every
// operator's Consume call.
type Ctx struct {
	Store      *graphstore.Store
	Undo       *undolog.Log
	Constraints *constraint.Manager
	Functions  FunctionRegistry
	Indexes    IndexProvider
	Procedures ProcedureRegistry

	Params map[string]value.V
	Stats  Stats

	// labelBaseline is the label-id namespace size from before this
	// query's compilation: a label id at or past it was interned by this
	// query and counts toward Stats.LabelsAdded the first time a created
	// entity carries it. countedLabels keeps each such label counted
	// once per query, however many nodes receive it.
	labelBaseline graphstore.SchemaID
	countedLabels map[graphstore.SchemaID]struct{}

	cancelled atomic.Bool
	err       error
}

// NewCtx returns a fresh per-query runtime context bound to store. The
// label baseline defaults to the store's current label count; a caller
// that interned labels between its own snapshot and this call (the
// engine compiles before building the context) overrides it with
// SetLabelBaseline.
func NewCtx(store *graphstore.Store, constraints *constraint.Manager, fns FunctionRegistry, idx IndexProvider, params map[string]value.V) *Ctx {
	if params == nil {
		params = map[string]value.V{}
	}
	return &Ctx{
		Store: store, Undo: undolog.New(), Constraints: constraints,
		Functions: fns, Indexes: idx, Params: params,
		labelBaseline: graphstore.SchemaID(store.Ctx.LabelCount()),
		countedLabels: map[graphstore.SchemaID]struct{}{},
	}
}

// SetLabelBaseline overrides the label-id watermark separating
// pre-existing labels from ones this query interned.
func (c *Ctx) SetLabelBaseline(count int) {
	c.labelBaseline = graphstore.SchemaID(count)
}

// CountNewLabels records labels_added for every label in labels that
// this query itself introduced, once per label per query. Called by the
// create-path operators as they stamp labels onto fresh nodes.
func (c *Ctx) CountNewLabels(labels []graphstore.SchemaID) {
	for _, l := range labels {
		if l < c.labelBaseline {
			continue
		}
		if _, ok := c.countedLabels[l]; ok {
			continue
		}
		c.countedLabels[l] = struct{}{}
		c.Stats.LabelsAdded++
	}
}

// Cancel requests cooperative abort; checked by operators at pull
// boundaries.
func (c *Ctx) Cancel() { c.cancelled.Store(true) }

// Cancelled reports whether Cancel was called or an unrecoverable error
// was already recorded.
func (c *Ctx) Cancelled() bool { return c.cancelled.Load() || c.err != nil }

// Err returns the first error recorded via OnError, or nil.
func (c *Ctx) Err() error { return c.err }

// OnError implements arithmetic.Env: the first error wins and is
// surfaced to the driver once the enclosing consume chain unwinds —
// the first filter boundary converts the error into a terminated
// consume.
func (c *Ctx) OnError(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *Ctx) Param(name string) (value.V, bool) {
	v, ok := c.Params[name]
	return v, ok
}

func (c *Ctx) NodeProperty(nodeID int64, attr int) (value.V, bool) {
	n := c.Store.GetNode(nodeID)
	if n == nil {
		return value.Null(), false
	}
	return n.Attrs.Get(attr)
}

func (c *Ctx) EdgeProperty(edgeID int64, attr int) (value.V, bool) {
	e := c.Store.GetEdge(edgeID)
	if e == nil {
		return value.Null(), false
	}
	return e.Attrs.Get(attr)
}

func (c *Ctx) CallFunction(name string, args []value.V) (value.V, error) {
	if c.Functions == nil {
		return value.Null(), errors.New("plan: no function registry configured")
	}
	return c.Functions.Call(name, args)
}

var _ arithmetic.Env = (*Ctx)(nil)
