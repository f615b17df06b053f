// Package funcs implements the built-in scalar function table the
// arithmetic evaluator dispatches NodeFunc calls through. A function
// call resolves by lower-cased name through one large switch rather
// than a registry of individual handler types; the table covers the
// string/numeric/list scalars and node/edge accessors the engine
// needs, not a full query-language stdlib (temporal, spatial, and
// extension procedures live elsewhere).
package funcs

import (
	"fmt"
	"math"
	"strings"

	"github.com/graphkernel/corequery/internal/value"
)

// ErrWrongArity reports a function invoked with the wrong argument
// count.
type ErrWrongArity struct {
	Func string
	Want int
	Got  int
}

func (e *ErrWrongArity) Error() string {
	return fmt.Sprintf("funcs: %s expects %d argument(s), got %d", e.Func, e.Want, e.Got)
}

// Table is the default plan.FunctionRegistry: a name-indexed switch
// holding no per-query state, so one Table is shared across every
// concurrent query.
type Table struct{}

// Default returns the built-in function table.
func Default() *Table { return &Table{} }

// Call dispatches name against args, matching case-insensitively the
// way the query language's function names do.
func (Table) Call(name string, args []value.V) (value.V, error) {
	switch strings.ToLower(name) {
	case "tostring":
		return fn1(args, name, func(v value.V) value.V { return value.StrSelf(value.ToString(v)) })
	case "toupper":
		return strFn(args, name, strings.ToUpper)
	case "tolower":
		return strFn(args, name, strings.ToLower)
	case "trim":
		return strFn(args, name, strings.TrimSpace)
	case "ltrim":
		return strFn(args, name, func(s string) string { return strings.TrimLeft(s, " \t\n\r") })
	case "rtrim":
		return strFn(args, name, func(s string) string { return strings.TrimRight(s, " \t\n\r") })
	case "reverse":
		return fn1(args, name, reverseValue)
	case "size":
		return fn1(args, name, sizeOf)
	case "left":
		return substringLeftRight(args, name, true)
	case "right":
		return substringLeftRight(args, name, false)
	case "substring":
		return substring(args, name)
	case "split":
		return split(args, name)
	case "replace":
		return replaceFn(args, name)
	case "tointeger":
		return fn1(args, name, toInteger)
	case "tofloat":
		return fn1(args, name, toFloat)
	case "abs":
		return fn1(args, name, absValue)
	case "ceil":
		return floatFn(args, name, math.Ceil)
	case "floor":
		return floatFn(args, name, math.Floor)
	case "round":
		return floatFn(args, name, math.Round)
	case "sqrt":
		return floatFn(args, name, math.Sqrt)
	case "sign":
		return floatFn(args, name, signOf)
	case "id":
		return fn1(args, name, idOf)
	case "labels":
		return fn1(args, name, labelsOf)
	case "type":
		return fn1(args, name, typeOf)
	case "keys":
		return fn1(args, name, keysOf)
	case "startnode":
		return fn1(args, name, startNodeOf)
	case "endnode":
		return fn1(args, name, endNodeOf)
	case "coalesce":
		return coalesce(args), nil
	case "and":
		return boolConnective(args, name, value.And)
	case "or":
		return boolConnective(args, name, value.Or)
	case "xor":
		return boolConnective(args, name, value.Xor)
	case "in":
		return inList(args, name)
	case "starts with":
		return strPairFn(args, name, strings.HasPrefix)
	case "ends with":
		return strPairFn(args, name, strings.HasSuffix)
	case "contains":
		return strPairFn(args, name, strings.Contains)
	case "range":
		return rangeFn(args, name)
	case "head":
		return fn1(args, name, headOf)
	case "last":
		return fn1(args, name, lastOf)
	case "tail":
		return fn1(args, name, tailOf)
	default:
		return value.Null(), fmt.Errorf("funcs: unknown function %q", name)
	}
}

func fn1(args []value.V, name string, f func(value.V) value.V) (value.V, error) {
	if len(args) != 1 {
		return value.Null(), &ErrWrongArity{Func: name, Want: 1, Got: len(args)}
	}
	if args[0].IsNull() {
		return value.Null(), nil
	}
	return f(args[0]), nil
}

func strFn(args []value.V, name string, f func(string) string) (value.V, error) {
	return fn1(args, name, func(v value.V) value.V {
		if v.Kind() != value.KindString {
			return value.Null()
		}
		return value.StrSelf(f(v.Str()))
	})
}

func floatFn(args []value.V, name string, f func(float64) float64) (value.V, error) {
	return fn1(args, name, func(v value.V) value.V {
		if !v.IsNumeric() {
			return value.Null()
		}
		return value.Float(f(asFloat(v)))
	})
}

func asFloat(v value.V) float64 {
	if v.Kind() == value.KindInt {
		return float64(v.Int())
	}
	return v.Float()
}

func signOf(f float64) float64 {
	switch {
	case f > 0:
		return 1
	case f < 0:
		return -1
	default:
		return 0
	}
}

func reverseValue(v value.V) value.V {
	switch v.Kind() {
	case value.KindString:
		r := []rune(v.Str())
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return value.StrSelf(string(r))
	case value.KindArray:
		src := v.Array()
		out := make([]value.V, len(src))
		for i, e := range src {
			out[len(src)-1-i] = value.Persist(e)
		}
		return value.ArraySelf(out)
	default:
		return value.Null()
	}
}

func sizeOf(v value.V) value.V {
	switch v.Kind() {
	case value.KindString:
		return value.Int(int64(len([]rune(v.Str()))))
	case value.KindArray:
		return value.Int(int64(len(v.Array())))
	case value.KindMap:
		return value.Int(int64(v.Map().Len()))
	default:
		return value.Null()
	}
}

func substringLeftRight(args []value.V, name string, left bool) (value.V, error) {
	if len(args) != 2 {
		return value.Null(), &ErrWrongArity{Func: name, Want: 2, Got: len(args)}
	}
	if args[0].IsNull() || args[0].Kind() != value.KindString || !args[1].IsNumeric() {
		return value.Null(), nil
	}
	r := []rune(args[0].Str())
	n := int(asFloat(args[1]))
	if n < 0 {
		n = 0
	}
	if n > len(r) {
		n = len(r)
	}
	if left {
		return value.StrSelf(string(r[:n])), nil
	}
	return value.StrSelf(string(r[len(r)-n:])), nil
}

func substring(args []value.V, name string) (value.V, error) {
	if len(args) < 2 || len(args) > 3 {
		return value.Null(), &ErrWrongArity{Func: name, Want: 2, Got: len(args)}
	}
	if args[0].IsNull() || args[0].Kind() != value.KindString || !args[1].IsNumeric() {
		return value.Null(), nil
	}
	r := []rune(args[0].Str())
	start := int(asFloat(args[1]))
	if start < 0 {
		start = 0
	}
	if start > len(r) {
		start = len(r)
	}
	end := len(r)
	if len(args) == 3 && args[2].IsNumeric() {
		length := int(asFloat(args[2]))
		if start+length < end {
			end = start + length
		}
	}
	return value.StrSelf(string(r[start:end])), nil
}

func split(args []value.V, name string) (value.V, error) {
	if len(args) != 2 {
		return value.Null(), &ErrWrongArity{Func: name, Want: 2, Got: len(args)}
	}
	if args[0].IsNull() || args[0].Kind() != value.KindString || args[1].Kind() != value.KindString {
		return value.Null(), nil
	}
	parts := strings.Split(args[0].Str(), args[1].Str())
	out := make([]value.V, len(parts))
	for i, p := range parts {
		out[i] = value.StrSelf(p)
	}
	return value.ArraySelf(out), nil
}

func replaceFn(args []value.V, name string) (value.V, error) {
	if len(args) != 3 {
		return value.Null(), &ErrWrongArity{Func: name, Want: 3, Got: len(args)}
	}
	for _, a := range args {
		if a.IsNull() || a.Kind() != value.KindString {
			return value.Null(), nil
		}
	}
	return value.StrSelf(strings.ReplaceAll(args[0].Str(), args[1].Str(), args[2].Str())), nil
}

func toInteger(v value.V) value.V {
	switch v.Kind() {
	case value.KindInt:
		return v
	case value.KindFloat:
		return value.Int(int64(v.Float()))
	case value.KindString:
		var i int64
		if _, err := fmt.Sscanf(strings.TrimSpace(v.Str()), "%d", &i); err != nil {
			return value.Null()
		}
		return value.Int(i)
	case value.KindBool:
		if v.Bool() {
			return value.Int(1)
		}
		return value.Int(0)
	default:
		return value.Null()
	}
}

func toFloat(v value.V) value.V {
	switch v.Kind() {
	case value.KindFloat:
		return v
	case value.KindInt:
		return value.Float(float64(v.Int()))
	case value.KindString:
		var f float64
		if _, err := fmt.Sscanf(strings.TrimSpace(v.Str()), "%g", &f); err != nil {
			return value.Null()
		}
		return value.Float(f)
	default:
		return value.Null()
	}
}

func absValue(v value.V) value.V {
	switch v.Kind() {
	case value.KindInt:
		i := v.Int()
		if i < 0 {
			i = -i
		}
		return value.Int(i)
	case value.KindFloat:
		return value.Float(math.Abs(v.Float()))
	default:
		return value.Null()
	}
}

func idOf(v value.V) value.V {
	switch v.Kind() {
	case value.KindNode:
		return value.Int(v.NodeRef().ID)
	case value.KindEdge:
		return value.Int(v.EdgeRef().ID)
	default:
		return value.Null()
	}
}

func labelsOf(v value.V) value.V {
	if v.Kind() != value.KindNode {
		return value.Null()
	}
	labels := v.NodeRef().Labels
	out := make([]value.V, len(labels))
	for i, l := range labels {
		out[i] = value.StrSelf(l)
	}
	return value.ArraySelf(out)
}

func typeOf(v value.V) value.V {
	if v.Kind() != value.KindEdge {
		return value.Null()
	}
	return value.StrSelf(v.EdgeRef().Relation)
}

func keysOf(v value.V) value.V {
	if v.Kind() != value.KindMap {
		return value.Null()
	}
	keys := v.Map().Keys()
	out := make([]value.V, len(keys))
	for i, k := range keys {
		out[i] = value.StrSelf(k)
	}
	return value.ArraySelf(out)
}

func startNodeOf(v value.V) value.V {
	if v.Kind() != value.KindEdge {
		return value.Null()
	}
	return value.Node(value.NodeRef{ID: v.EdgeRef().Src})
}

func endNodeOf(v value.V) value.V {
	if v.Kind() != value.KindEdge {
		return value.Null()
	}
	return value.Node(value.NodeRef{ID: v.EdgeRef().Dst})
}

// boolConnective evaluates a three-valued boolean connective in value
// position (a CASE branch, a projected expression); the filter tree
// handles the same tokens when they shape a WHERE clause directly.
func boolConnective(args []value.V, name string, op func(a, b value.Tri) value.Tri) (value.V, error) {
	if len(args) != 2 {
		return value.Null(), &ErrWrongArity{Func: name, Want: 2, Got: len(args)}
	}
	return op(value.TriFromV(args[0]), value.TriFromV(args[1])).V(), nil
}

// inList implements `x IN list` in value position: null if either side
// is null, unknown (null) if no match but the list held a null.
func inList(args []value.V, name string) (value.V, error) {
	if len(args) != 2 {
		return value.Null(), &ErrWrongArity{Func: name, Want: 2, Got: len(args)}
	}
	l, list := args[0], args[1]
	if l.IsNull() || list.IsNull() || list.Kind() != value.KindArray {
		return value.Null(), nil
	}
	sawNull := false
	for _, item := range list.Array() {
		if item.IsNull() {
			sawNull = true
			continue
		}
		if value.Equal(l, item) {
			return value.Bool(true), nil
		}
	}
	if sawNull {
		return value.Null(), nil
	}
	return value.Bool(false), nil
}

// strPairFn implements the string-match operators in value position.
func strPairFn(args []value.V, name string, match func(s, sub string) bool) (value.V, error) {
	if len(args) != 2 {
		return value.Null(), &ErrWrongArity{Func: name, Want: 2, Got: len(args)}
	}
	if args[0].IsNull() || args[1].IsNull() {
		return value.Null(), nil
	}
	if args[0].Kind() != value.KindString || args[1].Kind() != value.KindString {
		return value.Null(), nil
	}
	return value.Bool(match(args[0].Str(), args[1].Str())), nil
}

// coalesce returns the first non-null argument, or null if every
// argument is null (or there are none).
func coalesce(args []value.V) value.V {
	for _, a := range args {
		if !a.IsNull() {
			return a
		}
	}
	return value.Null()
}

func rangeFn(args []value.V, name string) (value.V, error) {
	if len(args) < 2 || len(args) > 3 {
		return value.Null(), &ErrWrongArity{Func: name, Want: 2, Got: len(args)}
	}
	for _, a := range args {
		if !a.IsNumeric() {
			return value.Null(), nil
		}
	}
	start, end := int64(asFloat(args[0])), int64(asFloat(args[1]))
	step := int64(1)
	if len(args) == 3 {
		step = int64(asFloat(args[2]))
	}
	if step == 0 {
		return value.Null(), fmt.Errorf("funcs: range step must not be 0")
	}
	var out []value.V
	if step > 0 {
		for i := start; i <= end; i += step {
			out = append(out, value.Int(i))
		}
	} else {
		for i := start; i >= end; i += step {
			out = append(out, value.Int(i))
		}
	}
	return value.ArraySelf(out), nil
}

func headOf(v value.V) value.V {
	if v.Kind() != value.KindArray || len(v.Array()) == 0 {
		return value.Null()
	}
	return value.Persist(v.Array()[0])
}

func lastOf(v value.V) value.V {
	if v.Kind() != value.KindArray || len(v.Array()) == 0 {
		return value.Null()
	}
	arr := v.Array()
	return value.Persist(arr[len(arr)-1])
}

func tailOf(v value.V) value.V {
	if v.Kind() != value.KindArray || len(v.Array()) <= 1 {
		return value.ArraySelf(nil)
	}
	src := v.Array()[1:]
	out := make([]value.V, len(src))
	for i, e := range src {
		out[i] = value.Persist(e)
	}
	return value.ArraySelf(out)
}
