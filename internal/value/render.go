package value

import (
	"strconv"
	"strings"
)

// ToString renders v the way string concatenation and the verbose wire
// format do: a canonical, human-readable form rather than a JSON
// encoding. Doubles use 15 significant digits so that '0.1' round-trips
// readably instead of printing as '0.1000000000000000...' or
// '0.09999999999999998'.
func ToString(v V) string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return formatFloat(v.f)
	case KindString:
		return v.s
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = quoteIfString(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		parts := make([]string, 0, v.m.Len())
		for i, k := range v.m.keys {
			parts = append(parts, k+": "+quoteIfString(v.m.values[i]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindNode:
		return nodeString(v.node)
	case KindEdge:
		return edgeString(v.edge)
	case KindPath:
		return pathString(v.path)
	case KindPoint:
		return "point({latitude: " + formatFloat(v.pt.Lat) + ", longitude: " + formatFloat(v.pt.Lon) + "})"
	default:
		return ""
	}
}

func quoteIfString(v V) string {
	if v.kind == KindString {
		return "\"" + v.s + "\""
	}
	return ToString(v)
}

// formatFloat renders 15 significant digits, trimmed of
// insignificant trailing zeros but never dropping the decimal point for
// a whole-valued float (so 2.0 renders as "2.0", not "2").
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', 15, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func nodeString(n NodeRef) string {
	var b strings.Builder
	b.WriteString("(")
	for _, l := range n.Labels {
		b.WriteString(":")
		b.WriteString(l)
	}
	b.WriteString(")")
	return b.String()
}

func edgeString(e EdgeRef) string {
	return "[:" + e.Relation + "]"
}

func pathString(p *Path) string {
	var b strings.Builder
	for i, n := range p.Nodes {
		b.WriteString(nodeString(n))
		if i < len(p.Edges) {
			b.WriteString("-")
			b.WriteString(edgeString(p.Edges[i]))
			b.WriteString("->")
		}
	}
	return b.String()
}
