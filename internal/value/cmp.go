package value

// NullCmp tags the special-case outcomes of Cmp that aren't a plain
// ordering: either operand was null, or the two values are of
// incomparable kinds.
type NullCmp uint8

const (
	// CmpOK means ord is a real ordering (-1, 0, or 1).
	CmpOK NullCmp = iota
	// CmpNull means at least one operand was null; null
	// is total-ordered less than any non-null, but callers implementing
	// three-valued predicate logic should treat this as "unknown"
	// rather than a real order for = / </ >.
	CmpNull
	// CmpDisjoint means the two kinds are not mutually comparable by an
	// order-based operator (only = / != are legal across disjoint
	// kinds).
	CmpDisjoint
)

// orderClass groups kinds into the buckets the total order compares
// across: numerics compare by value, everything else compares only
// within its own kind. Kinds order as null < bool < numeric < string < array < path < map <
// node < edge < point.
func orderClass(k Kind) int {
	switch k {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindInt, KindFloat:
		return 2
	case KindString:
		return 3
	case KindArray:
		return 4
	case KindPath:
		return 5
	case KindMap:
		return 6
	case KindNode:
		return 7
	case KindEdge:
		return 8
	case KindPoint:
		return 9
	default:
		return 10
	}
}

// Cmp compares a and b and returns (ord, nc). When nc == CmpOK, ord is
// one of -1, 0, 1. When nc != CmpOK, ord is meaningless.
//
// Numerics compare by numeric value regardless of representation: an
// int64 and a float64 holding the same mathematical value compare
// equal; equality is decided after a float cast with no epsilon
// tolerance, so 1.0000000001 != 1.
func Cmp(a, b V) (int, NullCmp) {
	if a.kind == KindNull || b.kind == KindNull {
		if a.kind == KindNull && b.kind == KindNull {
			return 0, CmpNull
		}
		if a.kind == KindNull {
			return -1, CmpNull
		}
		return 1, CmpNull
	}

	if a.IsNumeric() && b.IsNumeric() {
		return cmpNumeric(a, b), CmpOK
	}

	if orderClass(a.kind) != orderClass(b.kind) {
		return 0, CmpDisjoint
	}

	switch a.kind {
	case KindBool:
		return cmpBool(a.b, b.b), CmpOK
	case KindString:
		return cmpOrdered(a.s, b.s), CmpOK
	case KindArray:
		return cmpArray(a.arr, b.arr), CmpOK
	case KindPath:
		return cmpPath(a.path, b.path), CmpOK
	case KindMap:
		return cmpMap(a.m, b.m), CmpOK
	case KindNode:
		return cmpOrderedInt(a.node.ID, b.node.ID), CmpOK
	case KindEdge:
		return cmpOrderedInt(a.edge.ID, b.edge.ID), CmpOK
	case KindPoint:
		if d := cmpFloat(a.pt.Lat, b.pt.Lat); d != 0 {
			return d, CmpOK
		}
		return cmpFloat(a.pt.Lon, b.pt.Lon), CmpOK
	default:
		return 0, CmpDisjoint
	}
}

// Equal reports value equality, the only comparison allowed to
// cross disjoint kinds (returning false rather than erroring).
func Equal(a, b V) bool {
	ord, nc := Cmp(a, b)
	switch nc {
	case CmpOK:
		return ord == 0
	case CmpNull:
		return a.kind == KindNull && b.kind == KindNull
	default: // CmpDisjoint
		return false
	}
}

func cmpNumeric(a, b V) int {
	if a.kind == KindInt && b.kind == KindInt {
		return cmpOrderedInt(a.i, b.i)
	}
	af, bf := numericFloat(a), numericFloat(b)
	return cmpFloat(af, bf)
}

func numericFloat(v V) float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

func cmpBool(a, b bool) int {
	if a == b {
		return 0
	}
	if !a {
		return -1
	}
	return 1
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpOrderedInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpOrdered(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// cmpArray compares element-wise with length as a tiebreak: equal
// elements up to the shorter length, then the shorter array sorts
// first.
func cmpArray(a, b []V) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ord, nc := Cmp(a[i], b[i])
		if nc == CmpDisjoint {
			return cmpOrderedInt(int64(orderClass(a[i].kind)), int64(orderClass(b[i].kind)))
		}
		if ord != 0 {
			return ord
		}
	}
	return cmpOrderedInt(int64(len(a)), int64(len(b)))
}

func cmpPath(a, b *Path) int {
	if d := cmpOrderedInt(int64(len(a.Nodes)), int64(len(b.Nodes))); d != 0 {
		return d
	}
	for i := range a.Nodes {
		if d := cmpOrderedInt(a.Nodes[i].ID, b.Nodes[i].ID); d != 0 {
			return d
		}
	}
	return cmpOrderedInt(int64(len(a.Edges)), int64(len(b.Edges)))
}

// cmpMap compares by key count, then key-by-key in the first map's
// insertion order (maps have no canonical order of their own).
func cmpMap(a, b *AttrMap) int {
	if d := cmpOrderedInt(int64(a.Len()), int64(b.Len())); d != 0 {
		return d
	}
	for i, k := range a.keys {
		bv, ok := b.Get(k)
		if !ok {
			return 1
		}
		ord, nc := Cmp(a.values[i], bv)
		if nc == CmpDisjoint {
			return cmpOrderedInt(int64(orderClass(a.values[i].kind)), int64(orderClass(bv.kind)))
		}
		if ord != 0 {
			return ord
		}
	}
	return 0
}
