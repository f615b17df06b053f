package querygraph

import (
	"fmt"

	"github.com/graphkernel/corequery/internal/ast"
)

// RewriteCorrelatedSubqueries implements the projection-renaming
// rewrite: an eager (write- or aggregation-containing), returning
// `CALL {... }` subquery races its own materialization against the
// outer query's use of the same bindings unless the outer aliases it
// closes over are renamed for the duration of the subquery.
//
// For each qualifying subquery the rewrite:
//  1. collects the outer aliases in scope at the call site,
//  2. prepends `WITH n AS @n,...` renaming every one of them,
//  3. renames every reference to those aliases in the subquery's
//     intermediate clauses to the internal `@`-prefixed form,
//  4. rewrites the subquery's final RETURN to `RETURN @n AS n,...`,
//     undoing the rename on the way out,
//  5. recurses into UNION branches independently,
//  6. inserts `WITH *` before any nested call-subquery so bindings keep
//     flowing explicitly rather than implicitly through scope.
func RewriteCorrelatedSubqueries(q *ast.Query) *ast.Query {
	if q == nil {
		return nil
	}
	inScope := map[string]struct{}{}
	rewriteQuery(q, inScope)
	return q
}

func rewriteQuery(q *ast.Query, inScope map[string]struct{}) {
	scope := cloneScope(inScope)
	out := make([]ast.Clause, 0, len(q.Clauses))
	for _, c := range q.Clauses {
		if c.Kind == ast.ClauseCallSubquery && isEagerReturning(c.Subquery) {
			out = append(out, rewriteEagerSubquery(c, scope)...)
		} else {
			out = append(out, c)
		}
		bindClauseOutputs(c, scope)
	}
	q.Clauses = out

	if q.UnionNext != nil {
		rewriteQuery(q.UnionNext, inScope)
	}
}

func cloneScope(s map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// bindClauseOutputs approximates "what aliases are now in scope" well
// enough to drive the rewrite: MATCH/CREATE/MERGE/WITH/UNWIND/CALL all
// introduce new bindings that a later subquery in the same scope could
// close over.
func bindClauseOutputs(c ast.Clause, scope map[string]struct{}) {
	switch c.Kind {
	case ast.ClauseMatch, ast.ClauseOptionalMatch:
		for _, p := range c.Match.Patterns {
			bindPatternAliases(p, scope)
		}
	case ast.ClauseCreate:
		for _, p := range c.Create.Patterns {
			bindPatternAliases(p, scope)
		}
	case ast.ClauseMerge:
		bindPatternAliases(c.Merge.Pattern, scope)
	case ast.ClauseWith:
		for _, item := range c.With.Items {
			if item.Alias != "" {
				scope[item.Alias] = struct{}{}
			}
		}
	case ast.ClauseUnwind:
		if c.Unwind.Variable != "" {
			scope[c.Unwind.Variable] = struct{}{}
		}
	case ast.ClauseCall:
		for _, y := range c.Call.Yield {
			scope[y] = struct{}{}
		}
	}
}

func bindPatternAliases(p ast.Pattern, scope map[string]struct{}) {
	for _, n := range p.Nodes {
		if n.Variable != "" {
			scope[n.Variable] = struct{}{}
		}
	}
	for _, r := range p.Rels {
		if r.Variable != "" {
			scope[r.Variable] = struct{}{}
		}
	}
	if p.PathVariable != "" {
		scope[p.PathVariable] = struct{}{}
	}
}

// isEagerReturning reports whether sub is a CALL subquery whose body
// performs a write or an aggregation and ends in RETURN, the condition
// under which the rename is required at all: a pure read
// subquery has nothing to eagerly materialize before the outer pull
// resumes, so it can reference outer bindings directly.
func isEagerReturning(sub *ast.Query) bool {
	if sub == nil {
		return false
	}
	hasReturn := false
	eager := false
	for _, c := range sub.Clauses {
		switch c.Kind {
		case ast.ClauseCreate, ast.ClauseMerge, ast.ClauseDelete, ast.ClauseSet, ast.ClauseRemove:
			eager = true
		case ast.ClauseReturn:
			hasReturn = true
			if containsAggregation(c.Return) {
				eager = true
			}
		}
	}
	return eager && hasReturn
}

func containsAggregation(r *ast.Return) bool {
	for _, item := range r.Items {
		if exprContainsAggregation(item.Expr) {
			return true
		}
	}
	return false
}

// aggregateFunctions names the function tokens the arithmetic/Aggregate
// layer treats as group aggregators.
var aggregateFunctions = map[string]struct{}{
	"count": {}, "sum": {}, "avg": {}, "min": {}, "max": {},
	"collect": {}, "stdev": {}, "stdevp": {},
	"percentilecont": {}, "percentiledisc": {},
}

func exprContainsAggregation(e ast.Expr) bool {
	if e.Kind == ast.ExprFunctionCall {
		if _, ok := aggregateFunctions[lower(e.Func)]; ok {
			return true
		}
	}
	for _, a := range e.Args {
		if exprContainsAggregation(a) {
			return true
		}
	}
	if e.Left != nil && exprContainsAggregation(*e.Left) {
		return true
	}
	if e.Right != nil && exprContainsAggregation(*e.Right) {
		return true
	}
	return false
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// rewriteEagerSubquery builds the WITH-rename / body / RETURN-restore
// clause sequence replacing one eager returning call-subquery clause.
func rewriteEagerSubquery(c ast.Clause, outerScope map[string]struct{}) []ast.Clause {
	outer := sortedKeys(outerScope)
	if len(outer) == 0 {
		// Nothing correlated to rename; still recurse for nested
		// call-subqueries and UNION branches.
		insertWithStarBeforeNestedCalls(c.Subquery)
		rewriteQuery(c.Subquery, map[string]struct{}{})
		return []ast.Clause{c}
	}

	renameIn := renameWithClause(outer, toInternal)
	renamed := renameIdentifiersInQuery(c.Subquery, outer, toInternal)
	insertWithStarBeforeNestedCalls(renamed)
	rewriteQuery(renamed, toInternalScope(outerScope))
	appendRenameReturn(renamed, outer)

	newClause := c
	newClause.Subquery = renamed

	return []ast.Clause{
		{Kind: ast.ClauseWith, With: renameIn},
		newClause,
	}
}

func toInternalScope(scope map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(scope))
	for k := range scope {
		out[toInternal(k)] = struct{}{}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	// Deterministic order keeps generated WITH/RETURN clauses stable
	// across runs; the rewrite's correctness does not depend on order.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func toInternal(alias string) string { return "@" + alias }

// renameWithClause builds `WITH n AS @n, m AS @m,...`.
func renameWithClause(aliases []string, rename func(string) string) *ast.With {
	items := make([]ast.ReturnItem, len(aliases))
	for i, a := range aliases {
		items[i] = ast.ReturnItem{
			Expr:  ast.Expr{Kind: ast.ExprVariable, Variable: a},
			Alias: rename(a),
		}
	}
	return &ast.With{Return: ast.Return{Items: items}}
}

// appendRenameReturn rewrites sub's final RETURN to restore the
// original outer alias names (`RETURN @n AS n,...`) for every outer
// alias it still projects under its internal name, leaving the
// subquery's own new bindings untouched.
func appendRenameReturn(sub *ast.Query, outer []string) {
	if len(sub.Clauses) == 0 {
		return
	}
	last := &sub.Clauses[len(sub.Clauses)-1]
	if last.Kind != ast.ClauseReturn {
		return
	}
	internalSet := make(map[string]string, len(outer))
	for _, a := range outer {
		internalSet[toInternal(a)] = a
	}
	for i, item := range last.Return.Items {
		if item.Expr.Kind == ast.ExprVariable {
			if orig, ok := internalSet[item.Expr.Variable]; ok && item.Alias == "" {
				last.Return.Items[i].Alias = orig
			}
		}
	}
}

// renameIdentifiersInQuery walks sub and rewrites every ExprVariable
// and ExprPropertyAccess base whose name is in outer to its internal
// (@-prefixed) form, including through nested UNION branches. Pattern
// aliases (MATCH/CREATE node/rel variables) are intentionally left
// alone: the rename only needs to cover *references*, since a pattern
// re-declaring one of these aliases would shadow the outer binding
// instead of reading it.
func renameIdentifiersInQuery(q *ast.Query, outer []string, rename func(string) string) *ast.Query {
	set := make(map[string]struct{}, len(outer))
	for _, a := range outer {
		set[a] = struct{}{}
	}
	for i := range q.Clauses {
		renameInClause(&q.Clauses[i], set, rename)
	}
	if q.UnionNext != nil {
		renameIdentifiersInQuery(q.UnionNext, outer, rename)
	}
	return q
}

func renameInClause(c *ast.Clause, set map[string]struct{}, rename func(string) string) {
	switch c.Kind {
	case ast.ClauseWhere:
		renameExprInPlace(&c.Where.Condition, set, rename)
	case ast.ClauseWith:
		renameReturnItems(c.With.Items, set, rename)
		renameOrderBy(c.With.OrderBy, set, rename)
	case ast.ClauseReturn:
		renameReturnItems(c.Return.Items, set, rename)
		renameOrderBy(c.Return.OrderBy, set, rename)
	case ast.ClauseSet:
		for i := range c.Set.Items {
			renameExprInPlace(&c.Set.Items[i].Target, set, rename)
			renameExprInPlace(&c.Set.Items[i].Value, set, rename)
		}
	case ast.ClauseUnwind:
		renameExprInPlace(&c.Unwind.Expr, set, rename)
	}
}

func renameReturnItems(items []ast.ReturnItem, set map[string]struct{}, rename func(string) string) {
	for i := range items {
		renameExprInPlace(&items[i].Expr, set, rename)
	}
}

func renameOrderBy(items []ast.OrderItem, set map[string]struct{}, rename func(string) string) {
	for i := range items {
		renameExprInPlace(&items[i].Expr, set, rename)
	}
}

func renameExprInPlace(e *ast.Expr, set map[string]struct{}, rename func(string) string) {
	switch e.Kind {
	case ast.ExprVariable:
		if _, ok := set[e.Variable]; ok {
			e.Variable = rename(e.Variable)
		}
	case ast.ExprPropertyAccess:
		if e.Base != nil {
			renameExprInPlace(e.Base, set, rename)
		}
	case ast.ExprFunctionCall:
		for i := range e.Args {
			renameExprInPlace(&e.Args[i], set, rename)
		}
	case ast.ExprBinary:
		if e.Left != nil {
			renameExprInPlace(e.Left, set, rename)
		}
		if e.Right != nil {
			renameExprInPlace(e.Right, set, rename)
		}
	case ast.ExprUnary:
		if e.Left != nil {
			renameExprInPlace(e.Left, set, rename)
		}
	case ast.ExprCase:
		for i := range e.CaseBranches {
			renameExprInPlace(&e.CaseBranches[i].When, set, rename)
			renameExprInPlace(&e.CaseBranches[i].Then, set, rename)
		}
		if e.CaseElse != nil {
			renameExprInPlace(e.CaseElse, set, rename)
		}
	case ast.ExprList:
		for i := range e.ListItems {
			renameExprInPlace(&e.ListItems[i], set, rename)
		}
	case ast.ExprMap:
		for k, v := range e.MapItems {
			renameExprInPlace(&v, set, rename)
			e.MapItems[k] = v
		}
	}
}

// insertWithStarBeforeNestedCalls inserts a `WITH *` clause immediately
// before every nested ClauseCallSubquery in q, so that bindings flow explicitly into the nested call rather than through
// ambient scope.
func insertWithStarBeforeNestedCalls(q *ast.Query) {
	if q == nil {
		return
	}
	out := make([]ast.Clause, 0, len(q.Clauses)+2)
	for _, c := range q.Clauses {
		if c.Kind == ast.ClauseCallSubquery {
			out = append(out, ast.Clause{Kind: ast.ClauseWith, With: withStar()})
		}
		out = append(out, c)
	}
	q.Clauses = out
	if q.UnionNext != nil {
		insertWithStarBeforeNestedCalls(q.UnionNext)
	}
}

// withStar builds a sentinel `WITH *` With value: an empty item list is
// the plan builder's signal to project every currently-bound alias
// forward unchanged, since the AST contract has no dedicated
// "star" expression kind.
func withStar() *ast.With {
	return &ast.With{Return: ast.Return{Items: nil}}
}

// ValidateIdentifier rejects user-supplied identifiers starting with
// "@", the reserved prefix this rewrite uses internally.
func ValidateIdentifier(name string) error {
	if len(name) > 0 && name[0] == '@' {
		return fmt.Errorf("identifier %q: leading '@' is reserved for internal use", name)
	}
	return nil
}
