package calculate

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// IsDefined reports whether v holds a computed value
func IsDefined(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// undefinedSeries returns n NaN entries
func undefinedSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// Precision returns the number of decimal places indicator values keep:
// the places of the reference price plus two.
func Precision(ref decimal.Decimal) int32 {
	s := ref.String()
	places := 0
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		places = len(s) - idx - 1
	}
	return int32(places + 2)
}

// Round rounds half away from zero to the given number of places.
// Undefined values pass through unchanged.
func Round(v float64, places int32) float64 {
	if !IsDefined(v) {
		return math.NaN()
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
