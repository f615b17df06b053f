// Package value implements V, the tagged polymorphic value that flows
// through every layer of the query engine: scalars, strings, containers,
// and graph entities all share this one representation.
//
// # Design Principles
//
//   - One variant type, total ordering, deterministic hashing
//   - Explicit allocation mode so callers know when a copy is required
//     before a value crosses a Record boundary
//   - Three-valued logic and null-propagating arithmetic, matching the
//     query language's SQL-like null semantics
//
// # ELI12
//
// A V is like a labeled jar that can hold exactly one kind of thing at a
// time — a number, a word, a list, even a whole graph node — but the jar
// always has the same shape so every shelf in the warehouse (every part
// of the query engine) knows how to pick it up, regardless of what's
// inside.
package value

import "fmt"

// Kind tags the payload carried by a V.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindMap
	KindNode
	KindEdge
	KindPath
	KindPoint
	KindPtr
)

// String renders a Kind for diagnostics and error messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindInt:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindNode:
		return "node"
	case KindEdge:
		return "edge"
	case KindPath:
		return "path"
	case KindPoint:
		return "point"
	case KindPtr:
		return "ptr"
	default:
		return "unknown"
	}
}

// AllocMode records who owns the heap data (if any) behind a V.
//
// The mode is a field distinct from Kind: the same Kind (String, Array)
// can be None, Self, Volatile, or Const at different points in its life,
// depending on where the backing bytes live.
type AllocMode uint8

const (
	// AllocNone means the value carries no heap allocation (bool, int,
	// float, null — and node/edge handles, which are ids, not owners).
	AllocNone AllocMode = iota
	// AllocSelf means the value owns its heap payload and must free it
	// (or let the garbage collector do so) when no longer needed.
	AllocSelf
	// AllocVolatile means the value's payload is borrowed from storage
	// whose lifetime is bounded by the current record or operation; it
	// must be Persist'd before being retained past that scope.
	AllocVolatile
	// AllocConst means the payload is guaranteed live for the query's
	// entire lifetime (e.g. attribute-name strings interned on the
	// graph context) and never needs copying.
	AllocConst
)

// Point is a geographic coordinate, one of the value kinds.
type Point struct {
	Lat, Lon float64
}

// V is the tagged polymorphic value.
//
// Only one payload field is meaningful for a given Kind:
//
//	KindBool    -> b
//	KindInt     -> i
//	KindFloat   -> f
//	KindString  -> s
//	KindArray   -> arr
//	KindMap     -> m
//	KindNode    -> node
//	KindEdge    -> edge
//	KindPath    -> path
//	KindPoint   -> pt
//	KindPtr     -> ptr
//
// V is deliberately a value type (not a pointer) so that copying a V is
// cheap and assignment never aliases the tag/mode pair; heap payloads
// (arr, m, s for long strings) are shared through Go's native reference
// semantics for slices/maps/strings, which is why AllocMode exists to
// track who is responsible for that sharing.
type V struct {
	kind  Kind
	alloc AllocMode

	b    bool
	i    int64
	f    float64
	s    string
	arr  []V
	m    *AttrMap
	node NodeRef
	edge EdgeRef
	path *Path
	pt   Point
	ptr  any
}

// AttrMap is the ordered map payload backing KindMap values. It is
// distinct from attrset.Set (the per-entity attribute container): a
// map literal in a query has no entity to belong to and no attr-id
// keys, only strings.
type AttrMap struct {
	keys   []string
	values []V
}

// NewAttrMap builds an empty ordered map.
func NewAttrMap() *AttrMap { return &AttrMap{} }

// Set inserts or replaces key with v, preserving first-insertion order.
func (m *AttrMap) Set(key string, v V) {
	for i, k := range m.keys {
		if k == key {
			m.values[i] = v
			return
		}
	}
	m.keys = append(m.keys, key)
	m.values = append(m.values, v)
}

// Get returns the value for key and whether it was present.
func (m *AttrMap) Get(key string) (V, bool) {
	for i, k := range m.keys {
		if k == key {
			return m.values[i], true
		}
	}
	return Null(), false
}

// Len returns the number of entries.
func (m *AttrMap) Len() int { return len(m.keys) }

// Keys returns the insertion-ordered key list. Callers must not mutate it.
func (m *AttrMap) Keys() []string { return m.keys }

// Clone deep-copies the map and every value it holds.
func (m *AttrMap) Clone() *AttrMap {
	if m == nil {
		return nil
	}
	out := &AttrMap{
		keys:   append([]string(nil), m.keys...),
		values: make([]V, len(m.values)),
	}
	for i, v := range m.values {
		out.values[i] = Clone(v)
	}
	return out
}

// NodeRef is the value-system view of a graph node: just its id plus
// enough to render it without reaching back into the store for a plain
// Kind()/Cmp() comparison. The graph store is the source of truth;
// NodeRef is a lightweight handle copied into records.
type NodeRef struct {
	ID     int64
	Labels []string
}

// EdgeRef is the value-system view of a graph edge.
type EdgeRef struct {
	ID       int64
	Src, Dst int64
	Relation string
}

// Path holds parallel node/edge id sequences. Back-references are by id,
// never by pointer, so a path can express a cycle in the underlying
// graph data (a repeated node id) without a structural cycle in memory.
type Path struct {
	Nodes []NodeRef
	Edges []EdgeRef
}

// Clone deep-copies a path.
func (p *Path) Clone() *Path {
	if p == nil {
		return nil
	}
	out := &Path{
		Nodes: append([]NodeRef(nil), p.Nodes...),
		Edges: append([]EdgeRef(nil), p.Edges...),
	}
	return out
}

// Constructors. Scalars carry AllocNone since they own no heap data.

func Null() V                 { return V{kind: KindNull} }
func Bool(b bool) V           { return V{kind: KindBool, b: b} }
func Int(i int64) V           { return V{kind: KindInt, i: i} }
func Float(f float64) V       { return V{kind: KindFloat, f: f} }
func PointVal(p Point) V      { return V{kind: KindPoint, pt: p} }
func Ptr(p any) V             { return V{kind: KindPtr, ptr: p} }

// Str builds a KindString value with the given allocation mode. Use
// StrSelf/StrVolatile/StrConst for the common cases.
func Str(s string, mode AllocMode) V { return V{kind: KindString, s: s, alloc: mode} }
func StrSelf(s string) V             { return Str(s, AllocSelf) }
func StrVolatile(s string) V         { return Str(s, AllocVolatile) }
func StrConst(s string) V            { return Str(s, AllocConst) }

// Array builds a KindArray value from already-owned elements.
func Array(elems []V, mode AllocMode) V { return V{kind: KindArray, arr: elems, alloc: mode} }
func ArraySelf(elems []V) V             { return Array(elems, AllocSelf) }

// MapVal wraps an *AttrMap as a KindMap value.
func MapVal(m *AttrMap, mode AllocMode) V { return V{kind: KindMap, m: m, alloc: mode} }

// Node wraps a NodeRef as a KindNode value. Node handles carry AllocNone:
// they are small, copyable ids, not owners of the entity's attribute set.
func Node(n NodeRef) V { return V{kind: KindNode, node: n} }

// Edge wraps an EdgeRef as a KindEdge value.
func Edge(e EdgeRef) V { return V{kind: KindEdge, edge: e} }

// PathVal wraps a *Path as a KindPath value.
func PathVal(p *Path, mode AllocMode) V { return V{kind: KindPath, path: p, alloc: mode} }

// Accessors. Each panics if called against the wrong Kind; callers are
// expected to have already branched on Kind() (mirroring how operators
// resolve record slots to known types at compile time).

func (v V) Kind() Kind           { return v.kind }
func (v V) Alloc() AllocMode     { return v.alloc }
func (v V) IsNull() bool         { return v.kind == KindNull }

func (v V) Bool() bool {
	if v.kind != KindBool {
		panic(fmt.Sprintf("value: Bool() on %s", v.kind))
	}
	return v.b
}

func (v V) Int() int64 {
	if v.kind != KindInt {
		panic(fmt.Sprintf("value: Int() on %s", v.kind))
	}
	return v.i
}

func (v V) Float() float64 {
	if v.kind != KindFloat {
		panic(fmt.Sprintf("value: Float() on %s", v.kind))
	}
	return v.f
}

func (v V) Str() string {
	if v.kind != KindString {
		panic(fmt.Sprintf("value: Str() on %s", v.kind))
	}
	return v.s
}

func (v V) Array() []V {
	if v.kind != KindArray {
		panic(fmt.Sprintf("value: Array() on %s", v.kind))
	}
	return v.arr
}

func (v V) Map() *AttrMap {
	if v.kind != KindMap {
		panic(fmt.Sprintf("value: Map() on %s", v.kind))
	}
	return v.m
}

func (v V) NodeRef() NodeRef {
	if v.kind != KindNode {
		panic(fmt.Sprintf("value: NodeRef() on %s", v.kind))
	}
	return v.node
}

func (v V) EdgeRef() EdgeRef {
	if v.kind != KindEdge {
		panic(fmt.Sprintf("value: EdgeRef() on %s", v.kind))
	}
	return v.edge
}

func (v V) Path() *Path {
	if v.kind != KindPath {
		panic(fmt.Sprintf("value: Path() on %s", v.kind))
	}
	return v.path
}

func (v V) Point() Point {
	if v.kind != KindPoint {
		panic(fmt.Sprintf("value: Point() on %s", v.kind))
	}
	return v.pt
}

func (v V) PtrVal() any {
	if v.kind != KindPtr {
		panic(fmt.Sprintf("value: PtrVal() on %s", v.kind))
	}
	return v.ptr
}

// IsNumeric reports whether v is an int or float, the two kinds that
// participate in numeric comparison and arithmetic promotion.
func (v V) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// Clone deep-copies v's heap payload (if any) and returns a value whose
// allocation mode is AllocSelf. Scalars and node/edge handles are
// returned unchanged since they own nothing.
func Clone(v V) V {
	switch v.kind {
	case KindString:
		return StrSelf(v.s)
	case KindArray:
		out := make([]V, len(v.arr))
		for i, e := range v.arr {
			out[i] = Clone(e)
		}
		return ArraySelf(out)
	case KindMap:
		return MapVal(v.m.Clone(), AllocSelf)
	case KindPath:
		return PathVal(v.path.Clone(), AllocSelf)
	default:
		return v
	}
}

// Share produces a Volatile view of v: same payload, borrowed lifetime.
// Used when handing a value to a short-lived consumer (a filter
// predicate, a single expression evaluation) that will not retain it.
func Share(v V) V {
	switch v.kind {
	case KindString, KindArray, KindMap, KindPath:
		out := v
		out.alloc = AllocVolatile
		return out
	default:
		return v
	}
}

// Persist upgrades a Volatile view to an owned (Self) copy. It is a
// no-op for values that are already Self or Const, or that own nothing.
// Required before a value is stored somewhere that outlives the Record
// it came from (an aggregation accumulator, a result-set row buffer).
func Persist(v V) V {
	if v.alloc != AllocVolatile {
		return v
	}
	return Clone(v)
}
