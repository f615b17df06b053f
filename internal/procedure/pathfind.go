package procedure

import (
	"container/heap"
	"sort"

	"github.com/graphkernel/corequery/internal/graphstore"
)

// WeightedPath is one path-finding result: parallel node/edge id
// sequences plus the accumulated weight and cost. Results order by
// (weight, cost, len).
type WeightedPath struct {
	Nodes  []int64
	Edges  []int64
	Weight float64
	Cost   float64
}

func (p WeightedPath) len() int { return len(p.Edges) }

// less reports whether p sorts before o under (weight, cost, len)
// lexicographic order.
func (p WeightedPath) less(o WeightedPath) bool {
	if p.Weight != o.Weight {
		return p.Weight < o.Weight
	}
	if p.Cost != o.Cost {
		return p.Cost < o.Cost
	}
	return p.len() < o.len()
}

// pathHeap is a bounded max-heap (worst candidate at the root) used to
// keep the k smallest paths under (weight, cost, len) while pruning
// the DFS as soon as it fills.
type pathHeap struct {
	items []WeightedPath
	cap   int
}

func newPathHeap(capacity int) *pathHeap {
	return &pathHeap{cap: capacity}
}

func (h *pathHeap) Len() int { return len(h.items) }
func (h *pathHeap) Less(i, j int) bool {
	// Max-heap: the item that sorts WORSE (greater) under `less` bubbles
	// to the top, since that is the candidate we want to evict first.
	return h.items[j].less(h.items[i])
}
func (h *pathHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *pathHeap) Push(x any)    { h.items = append(h.items, x.(WeightedPath)) }
func (h *pathHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// offer inserts p if the heap isn't full yet, or if p beats the current
// worst (root) item, evicting the root. Returns the current worst
// weight for DFS pruning, or false if the heap isn't full (no useful
// cap yet).
func (h *pathHeap) offer(p WeightedPath) (worstWeight float64, full bool) {
	if h.Len() < h.cap {
		heap.Push(h, p)
	} else if p.less(h.items[0]) {
		heap.Pop(h)
		heap.Push(h, p)
	}
	if h.Len() < h.cap {
		return 0, false
	}
	return h.items[0].Weight, true
}

// sorted drains the heap into ascending (weight, cost, len) order.
func (h *pathHeap) sorted() []WeightedPath {
	out := append([]WeightedPath(nil), h.items...)
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

// Edges abstracts the graph-store lookups path-finding needs, kept
// narrow so this package doesn't need the full *graphstore.Store
// surface in its signatures.
type Edges interface {
	GetNodeEdges(n int64, dir graphstore.Direction, relFilter graphstore.SchemaID) []*graphstore.Edge
	GetNode(id int64) *graphstore.Node
	GetEdge(id int64) *graphstore.Edge
}

// weightCost reads an edge's configured weight/cost attributes,
// defaulting to 1.0/0.0 respectively when the attribute is absent or
// non-numeric — a missing weight counts as one hop, while a missing
// cost adds nothing to path accumulation.
func weightCost(store Edges, e *graphstore.Edge, cfg Config) (w, c float64) {
	w = 1.0
	if cfg.HasWeight {
		if v, ok := e.Attrs.Get(cfg.WeightAttr); ok && v.IsNumeric() {
			w = numericFloat(v)
		}
	}
	if cfg.HasCost {
		if v, ok := e.Attrs.Get(cfg.CostAttr); ok && v.IsNumeric() {
			c = numericFloat(v)
		}
	}
	return w, c
}

// search runs the bounded DFS with backtracking: recursive depth-first expansion, cycle elimination against the current
// path (not the whole graph), weight/cost accumulation with early
// abandonment, and result collection gated by pathCount.
//
//   - pathCount == 0: emit every minimum-weight path.
//   - pathCount == 1: emit the single best path.
//   - pathCount == k > 1: emit the k smallest via a bounded max-heap.
func search(store Edges, cfg Config) []WeightedPath {
	visited := map[int64]bool{cfg.SourceNode: true}
	path := []int64{cfg.SourceNode}
	var edges []int64
	var weight, cost float64

	var best *WeightedPath // pathCount == 1
	var allMin []WeightedPath
	minWeight := mathInfPos
	var bh *pathHeap
	if cfg.PathCount > 1 {
		bh = newPathHeap(cfg.PathCount)
	}
	maxWeightCap := mathInfPos

	record := func() {
		cand := WeightedPath{
			Nodes:  append([]int64(nil), path...),
			Edges:  append([]int64(nil), edges...),
			Weight: weight,
			Cost:   cost,
		}
		switch {
		case cfg.PathCount == 1:
			if best == nil || cand.less(*best) {
				c := cand
				best = &c
				maxWeightCap = best.Weight
			}
		case cfg.PathCount == 0:
			if cand.Weight < minWeight {
				minWeight = cand.Weight
				allMin = []WeightedPath{cand}
			} else if cand.Weight == minWeight {
				allMin = append(allMin, cand)
			}
		default:
			if w, full := bh.offer(cand); full {
				maxWeightCap = w
			}
		}
	}

	var dfs func(node int64, depth int64)
	dfs = func(node int64, depth int64) {
		isTarget := cfg.HasTarget && node == cfg.TargetNode
		if depth >= cfg.MinLen && (!cfg.HasTarget || isTarget) {
			record()
		}
		if cfg.HasTarget && isTarget {
			return
		}
		if depth >= cfg.MaxLen {
			return
		}
		for _, e := range store.GetNodeEdges(node, cfg.RelDirection, -1) {
			if !relAllowed(e.Relation, cfg.RelTypes) {
				continue
			}
			other := otherEnd(e, node)
			if visited[other] {
				continue
			}
			w, c := weightCost(store, e, cfg)
			newWeight, newCost := weight+w, cost+c
			if newWeight > maxWeightCap {
				continue
			}
			if newCost > cfg.MaxCost {
				continue
			}
			visited[other] = true
			path = append(path, other)
			edges = append(edges, e.ID)
			weight, cost = newWeight, newCost

			dfs(other, depth+1)

			weight, cost = weight-w, cost-c
			path = path[:len(path)-1]
			edges = edges[:len(edges)-1]
			visited[other] = false
		}
	}
	dfs(cfg.SourceNode, 0)

	switch {
	case cfg.PathCount == 1:
		if best == nil {
			return nil
		}
		return []WeightedPath{*best}
	case cfg.PathCount == 0:
		sort.Slice(allMin, func(i, j int) bool { return allMin[i].less(allMin[j]) })
		return allMin
	default:
		return bh.sorted()
	}
}

func otherEnd(e *graphstore.Edge, from int64) int64 {
	if e.Src == from {
		return e.Dst
	}
	return e.Src
}

func relAllowed(rel graphstore.SchemaID, allowed []graphstore.SchemaID) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, r := range allowed {
		if r == rel {
			return true
		}
	}
	return false
}
