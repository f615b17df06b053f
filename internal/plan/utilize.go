package plan

import (
	"math"

	"github.com/graphkernel/corequery/internal/arithmetic"
	"github.com/graphkernel/corequery/internal/filtertree"
	"github.com/graphkernel/corequery/internal/graphstore"
	"github.com/graphkernel/corequery/internal/indexapi"
	"github.com/graphkernel/corequery/internal/value"
)

// UtilizeIndexes is the plan rewrite that runs once before execution:
// every NodeByLabelScan whose parent Filter chain composes into an
// index-answerable query is replaced by an IndexScan driven by that
// query, and the consumed filters are dropped. A filter chain over a
// NodeByLabelScan or an AllNodeScan whose composed range is
// self-contradictory (x > 5 AND x < 5) rewrites to an empty scan
// without needing an index at all.
//
// The rewrite is conservative: if any consumed predicate cannot be
// translated faithfully into an index query node, the original
// scan-plus-filter chain is kept unchanged.
func UtilizeIndexes(root Operator, store *graphstore.Store, env arithmetic.Env) Operator {
	switch op := root.(type) {
	case *Filter:
		// Constant subtrees fold first: a filter decided at plan time
		// either disappears entirely or ends the branch.
		op.Tree = filtertree.FoldConstants(op.Tree, env)
		if op.Tree.Kind == filtertree.KindLiteral {
			if op.Tree.Lit == value.TriTrue {
				return UtilizeIndexes(op.Child, store, env)
			}
			// false and unknown both reject every row.
			return NewEmptyResult()
		}
		if replaced := tryRewriteFilterChain(op, store, env); replaced != nil {
			return replaced
		}
		op.Child = UtilizeIndexes(op.Child, store, env)
		return op
	case *PathBuild:
		op.Child = UtilizeIndexes(op.Child, store, env)
		return op
	case *MergeCreate:
		op.Child = UtilizeIndexes(op.Child, store, env)
		return op
	case *Expand:
		op.Child = UtilizeIndexes(op.Child, store, env)
		return op
	case *VarLengthExpand:
		op.Child = UtilizeIndexes(op.Child, store, env)
		return op
	case *Project:
		if op.Child != nil {
			op.Child = UtilizeIndexes(op.Child, store, env)
		}
		return op
	case *Distinct:
		op.Child = UtilizeIndexes(op.Child, store, env)
		return op
	case *Aggregate:
		op.Child = UtilizeIndexes(op.Child, store, env)
		return op
	case *Sort:
		op.Child = UtilizeIndexes(op.Child, store, env)
		return op
	case *Limit:
		op.Child = UtilizeIndexes(op.Child, store, env)
		return op
	case *Skip:
		op.Child = UtilizeIndexes(op.Child, store, env)
		return op
	case *Unwind:
		op.Child = UtilizeIndexes(op.Child, store, env)
		return op
	case *Create:
		if op.Child != nil {
			op.Child = UtilizeIndexes(op.Child, store, env)
		}
		return op
	case *Update:
		op.Child = UtilizeIndexes(op.Child, store, env)
		return op
	case *Delete:
		op.Child = UtilizeIndexes(op.Child, store, env)
		return op
	case *Merge:
		op.Probe = UtilizeIndexes(op.Probe, store, env)
		return op
	case *Apply:
		op.LHS = UtilizeIndexes(op.LHS, store, env)
		op.RHS = UtilizeIndexes(op.RHS, store, env)
		return op
	case *SemiApply:
		op.LHS = UtilizeIndexes(op.LHS, store, env)
		op.RHS = UtilizeIndexes(op.RHS, store, env)
		return op
	case *CallSubquery:
		op.LHS = UtilizeIndexes(op.LHS, store, env)
		op.RHS = UtilizeIndexes(op.RHS, store, env)
		return op
	case *Concat:
		for i, c := range op.Children {
			op.Children[i] = UtilizeIndexes(c, store, env)
		}
		return op
	case *ProcedureCall:
		if op.Child != nil {
			op.Child = UtilizeIndexes(op.Child, store, env)
		}
		return op
	default:
		return root
	}
}

// tryRewriteFilterChain inspects the maximal Filter chain rooted at f.
// If the chain bottoms out at a scan and its filter trees compose into
// something an index (or a contradiction check) can answer, it returns
// the replacement subtree; otherwise nil.
func tryRewriteFilterChain(f *Filter, store *graphstore.Store, env arithmetic.Env) Operator {
	var trees []*filtertree.Node
	cur := Operator(f)
	for {
		ft, ok := cur.(*Filter)
		if !ok {
			break
		}
		trees = append(trees, ft.Tree)
		cur = ft.Child
	}

	var slot int
	label := graphstore.SchemaID(-1)
	switch scan := cur.(type) {
	case *NodeByLabelScan:
		slot = scan.Slot
		label = scan.Label
	case *AllNodeScan:
		slot = scan.Slot
	default:
		return nil
	}

	// Work on clones: Normalize/PushDownIndex rewrite trees in place, and
	// an abandoned rewrite must leave the original chain untouched.
	combined := cloneAndCombine(trees)
	attrs := collectPropertyAttrs(combined, slot)
	if len(attrs) == 0 {
		return nil
	}

	// Contradiction check first: a self-contradictory range needs no
	// index to answer with zero rows.
	for _, attr := range attrs {
		rng, _ := filtertree.PushDownIndex(cloneAndCombine(trees), slot, attr, env)
		if rng.Invalid {
			if label >= 0 {
				return NewIndexScan(slot, label, "", indexapi.Empty())
			}
			return NewEmptyResult()
		}
	}

	if label < 0 {
		return nil
	}
	desc := exactIndexFor(store, label)
	if desc == nil {
		return nil
	}

	residual := combined
	var queries []indexapi.QueryNode
	for _, attr := range desc.Attributes {
		var rng filtertree.IndexRange
		rng, residual = filtertree.PushDownIndex(residual, slot, attr, env)
		q, ok := rangeQuery(attr, rng)
		if !ok {
			// A consumed-but-untranslatable range would drop predicates
			// silently; keep the original chain instead.
			if rangeNonEmpty(rng) {
				return nil
			}
			continue
		}
		queries = append(queries, q)
	}
	if len(queries) == 0 {
		return nil
	}

	var q indexapi.QueryNode
	if len(queries) == 1 {
		q = queries[0]
	} else {
		q = indexapi.Intersect(queries...)
	}
	out := Operator(NewIndexScan(slot, label, desc.Name, q))
	if residual != nil {
		out = NewFilter(out, residual)
	}
	return out
}

func cloneAndCombine(trees []*filtertree.Node) *filtertree.Node {
	clones := make([]*filtertree.Node, len(trees))
	for i, t := range trees {
		clones[i] = t.Clone()
	}
	if len(clones) == 1 {
		return clones[0]
	}
	return filtertree.And(clones...)
}

// collectPropertyAttrs gathers the attribute ids referenced by
// property-vs-constant predicates on slot anywhere in the tree, the
// candidate set range composition is worth attempting for.
func collectPropertyAttrs(n *filtertree.Node, slot int) []int {
	seen := map[int]struct{}{}
	var walk func(*filtertree.Node)
	walk = func(n *filtertree.Node) {
		if n == nil {
			return
		}
		if n.Kind == filtertree.KindPredicate {
			if n.LHS.Kind == arithmetic.NodeProperty && n.LHS.Slot == slot {
				seen[n.LHS.Attr] = struct{}{}
			}
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	out := make([]int, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	return out
}

func exactIndexFor(store *graphstore.Store, label graphstore.SchemaID) *graphstore.IndexDescriptor {
	for _, d := range store.Schemas.IndexesForLabel(label) {
		if d.Kind == graphstore.IndexExact {
			return d
		}
	}
	return nil
}

func rangeNonEmpty(rng filtertree.IndexRange) bool {
	return rng.HasEq || rng.HasMin || rng.HasMax || rng.NotNullOnly
}

// rangeQuery translates one composed IndexRange into an index query
// node, reporting ok=false when the range holds something the index
// backend can't answer faithfully (a non-scalar equality, mixed-kind
// bounds, a bare IS NOT NULL).
func rangeQuery(attr int, rng filtertree.IndexRange) (indexapi.QueryNode, bool) {
	if !rangeNonEmpty(rng) {
		return indexapi.QueryNode{}, false
	}
	if rng.NotNullOnly {
		return indexapi.QueryNode{}, false
	}

	var eqQuery indexapi.QueryNode
	haveEq := false
	if rng.HasEq {
		switch {
		case rng.Eq.Kind() == value.KindString:
			eqQuery = indexapi.Tag(attr, rng.Eq.Str())
		case rng.Eq.IsNumeric():
			f := numericOf(rng.Eq)
			eqQuery = indexapi.NumericRange(attr, f, f, true, true)
		default:
			return indexapi.QueryNode{}, false
		}
		haveEq = true
	}

	var rangeNode indexapi.QueryNode
	haveRange := false
	if rng.HasMin || rng.HasMax {
		minStr := rng.HasMin && rng.Min.Kind() == value.KindString
		maxStr := rng.HasMax && rng.Max.Kind() == value.KindString
		switch {
		case minStr || maxStr:
			if (rng.HasMin && !minStr) || (rng.HasMax && !maxStr) {
				return indexapi.QueryNode{}, false
			}
			var lo, hi string
			if rng.HasMin {
				lo = rng.Min.Str()
			}
			hi = "￿"
			if rng.HasMax {
				hi = rng.Max.Str()
			}
			rangeNode = indexapi.LexRange(attr, lo, hi, !rng.MinOpen, !rng.MaxOpen)
		default:
			lo, hi := math.Inf(-1), math.Inf(1)
			if rng.HasMin {
				if !rng.Min.IsNumeric() {
					return indexapi.QueryNode{}, false
				}
				lo = numericOf(rng.Min)
			}
			if rng.HasMax {
				if !rng.Max.IsNumeric() {
					return indexapi.QueryNode{}, false
				}
				hi = numericOf(rng.Max)
			}
			rangeNode = indexapi.NumericRange(attr, lo, hi, !rng.MinOpen, !rng.MaxOpen)
		}
		haveRange = true
	}

	switch {
	case haveEq && haveRange:
		return indexapi.Intersect(eqQuery, rangeNode), true
	case haveEq:
		return eqQuery, true
	default:
		return rangeNode, true
	}
}
