package planbuilder

import (
	"fmt"

	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/ast"
	"github.com/graphkernel/corequery/internal/plan"
)

// compileProjection compiles one RETURN or WITH clause. outSlots
// is non-nil exactly when this is the statement's final output
// projection, in which case its items must land at those pre-reserved
// slots so every UNION branch produces identically-numbered output
// columns; otherwise each item gets a fresh slot and its alias is
// rebound in scope for clauses that follow.
func (b *builder) compileProjection(cur plan.Operator, ret *ast.Return, outSlots []int) (plan.Operator, error) {
	if cur == nil {
		cur = newNoopSource()
	}

	// `WITH *` (rewrite.go's withStar sentinel: no items, no ordering/
	// limiting) carries every binding already in scope forward unchanged
	// rather than projecting an empty row shape.
	if len(ret.Items) == 0 && outSlots == nil && len(ret.OrderBy) == 0 && ret.Skip == nil && ret.Limit == nil && !ret.Distinct {
		return cur, nil
	}

	hasAgg := false
	for _, it := range ret.Items {
		if containsAggregate(&it.Expr) {
			hasAgg = true
			break
		}
	}

	var orderSlots []int
	if !hasAgg && len(ret.OrderBy) > 0 {
		var preItems []plan.ProjectItem
		orderSlots = make([]int, len(ret.OrderBy))
		for i, ord := range ret.OrderBy {
			if ord.Expr.Kind == ast.ExprVariable {
				if slot, ok := b.scope.lookup(ord.Expr.Variable); ok {
					orderSlots[i] = slot
					continue
				}
			}
			expr, err := b.compileExpr(&ord.Expr)
			if err != nil {
				return nil, err
			}
			slot := b.scope.slot(fmt.Sprintf("@order_%d", i))
			preItems = append(preItems, plan.ProjectItem{Expr: expr, Slot: slot})
			orderSlots[i] = slot
		}
		if len(preItems) > 0 {
			cur = plan.NewProject(cur, preItems)
		}
	}

	finalSlots := outSlots
	if finalSlots == nil {
		finalSlots = make([]int, len(ret.Items))
		for i, it := range ret.Items {
			finalSlots[i] = b.scope.slot(projectionBindName(it))
		}
	}

	var result plan.Operator
	if hasAgg {
		op, err := b.compileAggregateProjection(cur, ret, finalSlots)
		if err != nil {
			return nil, err
		}
		result = op
	} else {
		items := make([]plan.ProjectItem, len(ret.Items))
		for i, it := range ret.Items {
			expr, err := b.compileExpr(&it.Expr)
			if err != nil {
				return nil, err
			}
			items[i] = plan.ProjectItem{Expr: expr, Slot: finalSlots[i]}
		}
		result = plan.NewProject(cur, items)
	}

	for i, it := range ret.Items {
		if name := projectionBindName(it); name != "" {
			b.scope.slots[name] = finalSlots[i]
		}
	}

	if hasAgg && len(ret.OrderBy) > 0 {
		orderSlots = make([]int, len(ret.OrderBy))
		for i, ord := range ret.OrderBy {
			if ord.Expr.Kind != ast.ExprVariable {
				return nil, fmt.Errorf("planbuilder: ORDER BY after aggregation must reference a returned alias")
			}
			slot, ok := b.scope.lookup(ord.Expr.Variable)
			if !ok {
				return nil, fmt.Errorf("planbuilder: ORDER BY references unknown alias %q", ord.Expr.Variable)
			}
			orderSlots[i] = slot
		}
	}

	if len(ret.OrderBy) > 0 {
		keys := make([]plan.SortKey, len(ret.OrderBy))
		for i, ord := range ret.OrderBy {
			keys[i] = plan.SortKey{Slot: orderSlots[i], Descending: ord.Descending}
		}
		result = plan.NewSort(result, keys)
	}

	if ret.Distinct {
		result = plan.NewDistinct(result, finalSlots)
	}
	if ret.Skip != nil {
		result = plan.NewSkip(result, *ret.Skip)
	}
	if ret.Limit != nil {
		result = plan.NewLimit(result, *ret.Limit)
	}
	return result, nil
}

func (b *builder) compileAggregateProjection(cur plan.Operator, ret *ast.Return, finalSlots []int) (plan.Operator, error) {
	var groupKeys []arithmetic.Node
	var groupSlots []int
	var aggItems []plan.AggItem

	for i, it := range ret.Items {
		if containsAggregate(&it.Expr) {
			if it.Expr.Kind != ast.ExprFunctionCall {
				return nil, fmt.Errorf("planbuilder: aggregate expression in item %d must be a bare function call", i)
			}
			kind, _ := aggKind(it.Expr.Func)
			var arg *arithmetic.Node
			if !(kind == plan.AggCount && len(it.Expr.Args) == 0) {
				if len(it.Expr.Args) == 0 {
					return nil, fmt.Errorf("planbuilder: %s requires an argument", it.Expr.Func)
				}
				a, err := b.compileExpr(&it.Expr.Args[0])
				if err != nil {
					return nil, err
				}
				arg = &a
			}
			aggItems = append(aggItems, plan.AggItem{
				Arg:        arg,
				Func:       kind,
				Distinct:   it.Expr.Distinct,
				Percentile: percentileArg(&it.Expr),
				Slot:       finalSlots[i],
			})
			continue
		}
		key, err := b.compileExpr(&it.Expr)
		if err != nil {
			return nil, err
		}
		groupKeys = append(groupKeys, key)
		groupSlots = append(groupSlots, finalSlots[i])
	}
	return plan.NewAggregate(cur, groupKeys, groupSlots, aggItems), nil
}

// projectionBindName is the variable name a RETURN/WITH item becomes
// visible as to later clauses: its alias if given, else the bare
// variable it passes through, else "" (an unaliased computed
// expression isn't nameable by later clauses).
func projectionBindName(it ast.ReturnItem) string {
	if it.Alias != "" {
		return it.Alias
	}
	if it.Expr.Kind == ast.ExprVariable {
		return it.Expr.Variable
	}
	return ""
}
