package calculate

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// SlopeAngle turns the relative change prev -> curr into degrees. The change
// is scaled by the bar interval as a fraction of a day so angles compare
// across intervals. A zero denominator maps to +/-90.
func SlopeAngle(prev, curr float64, interval time.Duration) float64 {
	if !IsDefined(prev) || !IsDefined(curr) {
		return math.NaN()
	}

	fraction := float64(interval) / float64(day)
	if prev == 0 || fraction == 0 {
		if curr >= prev {
			return 90
		}
		return -90
	}

	change := (curr - prev) / prev
	return Round(math.Atan(change/fraction)*180/math.Pi, 2)
}

// Ratio returns a/b, undefined when b is zero
func Ratio(a, b float64) float64 {
	if !IsDefined(a) || !IsDefined(b) || b == 0 {
		return math.NaN()
	}
	return a / b
}

// ConvergenceAngle measures how fast the fast/slow ratio moves between two bars
func ConvergenceAngle(fastPrev, slowPrev, fastCurr, slowCurr float64, interval time.Duration) float64 {
	prev := Ratio(fastPrev, slowPrev)
	curr := Ratio(fastCurr, slowCurr)
	return SlopeAngle(prev, curr, interval)
}

// PriceDeviation is the distance of price from a reference in percent
func PriceDeviation(price, reference float64) float64 {
	r := Ratio(price-reference, reference)
	if !IsDefined(r) {
		return r
	}
	return Round(r*100, 2)
}
