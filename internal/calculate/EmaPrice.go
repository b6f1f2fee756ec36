package calculate

import "math"

// emaSeries is the unrounded exponential mean. Leading undefined inputs stay
// undefined and the first defined input seeds the average.
func emaSeries(values []float64, period int) []float64 {
	out := undefinedSeries(len(values))
	if period <= 0 {
		return out
	}

	// Multiplier for weighting the EMA
	multiplier := 2.0 / float64(period+1)

	ema := math.NaN()
	for i, v := range values {
		if !IsDefined(v) {
			continue
		}
		if !IsDefined(ema) {
			ema = v
		} else {
			ema = v*multiplier + ema*(1-multiplier)
		}
		out[i] = ema
	}
	return out
}

// EMA returns the exponential mean with k = 2/(period+1), seeded with the
// first value and rounded to places.
func EMA(values []float64, period int, places int32) []float64 {
	out := emaSeries(values, period)
	for i := range out {
		out[i] = Round(out[i], places)
	}
	return out
}
