package procedure

import (
	"fmt"

	"github.com/graphkernel/corequery/internal/constraint"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/plan"
	"github.com/graphkernel/corequery/internal/value"
)

// Row is one yielded row of column values, in the procedure's declared
// yield order, matching plan.ProcedureRows' expected shape.
type Row []value.V

// sliceRows adapts a pre-computed []Row to plan.ProcedureRows.
type sliceRows struct {
	rows []Row
	pos  int
}

func (r *sliceRows) Next() ([]value.V, bool) {
	if r.pos >= len(r.rows) {
		return nil, false
	}
	row := r.rows[r.pos]
	r.pos++
	return row, true
}

func (r *sliceRows) Close() {}

func newRows(rows []Row) plan.ProcedureRows { return &sliceRows{rows: rows} }

var _ plan.ProcedureRows = (*sliceRows)(nil)

// Registry implements plan.ProcedureRegistry against one graph store:
// `algo.shortestPath`, `algo.SPpaths`, `algo.SSpaths` and
// `db.constraints()`.
type Registry struct {
	Store       *graphstore.Store
	Constraints *constraint.Manager
}

func NewRegistry(store *graphstore.Store, constraints *constraint.Manager) *Registry {
	return &Registry{Store: store, Constraints: constraints}
}

// Call dispatches a procedure invocation by name. Every path-finding
// procedure expects exactly one argument: a KindMap config literal
// matching Config's field names.
func (r *Registry) Call(name string, args []value.V) (plan.ProcedureRows, error) {
	switch name {
	case "algo.shortestPath":
		cfg, err := r.configFrom(args, true)
		if err != nil {
			return nil, err
		}
		cfg.PathCount = 1
		return newRows(pathRows(search(r.Store, cfg))), nil
	case "algo.SPpaths":
		cfg, err := r.configFrom(args, true)
		if err != nil {
			return nil, err
		}
		return newRows(pathRows(search(r.Store, cfg))), nil
	case "algo.SSpaths":
		cfg, err := r.configFrom(args, false)
		if err != nil {
			return nil, err
		}
		return newRows(pathRows(search(r.Store, cfg))), nil
	case "db.constraints":
		return newRows(constraintsRows(r.Store, r.Constraints)), nil
	default:
		return nil, fmt.Errorf("procedure: unknown procedure %q", name)
	}
}

func (r *Registry) configFrom(args []value.V, requireTarget bool) (Config, error) {
	cfg := DefaultConfig()
	if len(args) == 0 || args[0].Kind() != value.KindMap {
		return cfg, fmt.Errorf("procedure: expected a config map argument")
	}
	m := args[0].Map()

	src, ok := m.Get("sourceNode")
	if !ok || src.Kind() != value.KindNode {
		return cfg, fmt.Errorf("procedure: sourceNode is required")
	}
	cfg.SourceNode = src.NodeRef().ID

	if tgt, ok := m.Get("targetNode"); ok && tgt.Kind() == value.KindNode {
		cfg.TargetNode = tgt.NodeRef().ID
		cfg.HasTarget = true
	} else if requireTarget {
		return cfg, fmt.Errorf("procedure: targetNode is required")
	}

	if rt, ok := m.Get("relTypes"); ok && rt.Kind() == value.KindArray {
		for _, e := range rt.Array() {
			if e.Kind() != value.KindString {
				continue
			}
			if id, ok := r.Store.Ctx.LookupRelTypeID(e.Str()); ok {
				cfg.RelTypes = append(cfg.RelTypes, id)
			} else {
				// An unregistered relation type can never match; fold it
				// into an always-empty filter rather than erroring, so a
				// typo'd relType behaves like "no such relation" instead
				// of aborting the whole procedure.
				cfg.RelTypes = append(cfg.RelTypes, graphstore.SchemaID(-1))
			}
		}
	}

	if d, ok := m.Get("relDirection"); ok && d.Kind() == value.KindString {
		switch d.Str() {
		case "incoming":
			cfg.RelDirection = graphstore.Incoming
		case "both":
			cfg.RelDirection = graphstore.Both
		default:
			cfg.RelDirection = graphstore.Outgoing
		}
	}

	if v, ok := m.Get("maxLen"); ok && v.IsNumeric() {
		cfg.MaxLen = int64(numericFloat(v))
	}
	if v, ok := m.Get("minLen"); ok && v.IsNumeric() {
		cfg.MinLen = int64(numericFloat(v))
	}
	if v, ok := m.Get("weightProp"); ok && v.Kind() == value.KindString {
		if id, ok := r.Store.Ctx.LookupAttrID(v.Str()); ok {
			cfg.WeightAttr = int(id)
			cfg.HasWeight = true
		}
	}
	if v, ok := m.Get("costProp"); ok && v.Kind() == value.KindString {
		if id, ok := r.Store.Ctx.LookupAttrID(v.Str()); ok {
			cfg.CostAttr = int(id)
			cfg.HasCost = true
		}
	}
	if v, ok := m.Get("maxCost"); ok && v.IsNumeric() {
		cfg.MaxCost = numericFloat(v)
	}
	if v, ok := m.Get("pathCount"); ok && v.IsNumeric() {
		cfg.PathCount = int(numericFloat(v))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// pathRows renders each WeightedPath as a {path, weight, cost} row.
func pathRows(paths []WeightedPath) []Row {
	rows := make([]Row, len(paths))
	for i, p := range paths {
		rows[i] = Row{pathValue(p), value.Float(p.Weight), value.Float(p.Cost)}
	}
	return rows
}

func pathValue(p WeightedPath) value.V {
	vp := &value.Path{}
	for _, n := range p.Nodes {
		vp.Nodes = append(vp.Nodes, value.NodeRef{ID: n})
	}
	for _, e := range p.Edges {
		vp.Edges = append(vp.Edges, value.EdgeRef{ID: e})
	}
	return value.PathVal(vp, value.AllocSelf)
}

var _ plan.ProcedureRegistry = (*Registry)(nil)
