package value

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// kindMixin seeds the hash with a value distinct per Kind bucket, so
// that bool(true) and int(1) — which can share bit patterns — still
// hash differently. Numerics share a bucket because 1.0 and int64(1)
// must hash identically.
func kindMixin(k Kind) uint64 {
	if k == KindInt || k == KindFloat {
		k = KindInt // numerics share one mixin so equal values agree
	}
	// A large odd multiplier per kind, computed once; arbitrary but
	// stable across process runs (no randomization — hash64 must be
	// deterministic for group-by keys).
	return 0x9E3779B97F4A7C15 * uint64(k+1)
}

// Hash64 computes a deterministic hash of v, mixing the kind tag before
// the payload so that distinct kinds with identical payload bits never
// collide by construction, while numerically-equal int/float values
// always agree.
func Hash64(v V) uint64 {
	h := kindMixin(v.kind)
	switch v.kind {
	case KindNull:
		return h
	case KindBool:
		if v.b {
			return h ^ 1
		}
		return h ^ 2
	case KindInt:
		return h ^ hashUint64(uint64(v.i))
	case KindFloat:
		// Integral floats hash as their integer value so i64(1) and
		// f64(1.0) agree.
		if f := v.f; f == math.Trunc(f) && !math.IsInf(f, 0) {
			return h ^ hashUint64(uint64(int64(f)))
		}
		return h ^ hashUint64(math.Float64bits(v.f))
	case KindString:
		return h ^ xxhash.Sum64String(v.s)
	case KindArray:
		for _, e := range v.arr {
			h = h*1099511628211 ^ Hash64(e)
		}
		return h
	case KindMap:
		// Order-independent: XOR every key/value hash together.
		var acc uint64
		for i, k := range v.m.keys {
			acc ^= xxhash.Sum64String(k) * 31
			acc ^= Hash64(v.m.values[i])
		}
		return h ^ acc
	case KindNode:
		return h ^ hashUint64(uint64(v.node.ID))
	case KindEdge:
		return h ^ hashUint64(uint64(v.edge.ID))
	case KindPath:
		for _, n := range v.path.Nodes {
			h = h*1099511628211 ^ hashUint64(uint64(n.ID))
		}
		return h
	case KindPoint:
		h ^= hashUint64(math.Float64bits(v.pt.Lat))
		h ^= hashUint64(math.Float64bits(v.pt.Lon)) * 31
		return h
	default:
		return h
	}
}

func hashUint64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}
