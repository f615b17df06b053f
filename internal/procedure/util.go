package procedure

import (
	"math"

	"github.com/graphkernel/corequery/internal/value"
)

var mathInfPos = math.Inf(1)

// numericFloat reads v's numeric payload as a float64 regardless of
// whether it's KindInt or KindFloat, matching the value system's own
// int/float promotion rule.
func numericFloat(v value.V) float64 {
	if v.Kind() == value.KindInt {
		return float64(v.Int())
	}
	return v.Float()
}
