package procedure

import (
	"github.com/graphkernel/corequery/internal/constraint"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/value"
)

// constraintsRows implements `db.constraints()`, yielding one row per
// registered constraint: {type, label, properties, status}.
func constraintsRows(store *graphstore.Store, mgr *constraint.Manager) []Row {
	if mgr == nil {
		return nil
	}
	var rows []Row
	for _, c := range mgr.All() {
		rows = append(rows, Row{
			typeLabel(c.Type),
			value.StrSelf(entityName(store, c)),
			attrNamesValue(store, c.AttrIDs),
			statusLabel(c.GetStatus()),
		})
	}
	return rows
}

func typeLabel(t constraint.Type) value.V {
	if t == constraint.Unique {
		return value.StrSelf("UNIQUE")
	}
	return value.StrSelf("MANDATORY")
}

func statusLabel(s constraint.Status) value.V {
	switch s {
	case constraint.Active:
		return value.StrSelf("ACTIVE")
	case constraint.Failed:
		return value.StrSelf("FAILED")
	default:
		return value.StrSelf("PENDING")
	}
}

func entityName(store *graphstore.Store, c *constraint.Constraint) string {
	if c.EntityKind == constraint.EdgeEntity {
		return store.Ctx.RelTypeName(c.Label)
	}
	return store.Ctx.LabelName(c.Label)
}

func attrNamesValue(store *graphstore.Store, attrIDs []int) value.V {
	elems := make([]value.V, len(attrIDs))
	for i, id := range attrIDs {
		elems[i] = value.StrSelf(store.Ctx.AttrName(id))
	}
	return value.ArraySelf(elems)
}
