package calculate

import (
	"math"
	"time"

	"github.com/Alias1177/SignalScanner/internal/model"
)

// PreviousDayAmplitude returns (max high - min low) / min low * 100 over the
// bars opened on yesterday's calendar date in loc. It is undefined when no bar
// falls on that date or the lowest low is zero.
func PreviousDayAmplitude(bars model.BarSequence, now time.Time, loc *time.Location) float64 {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := now.In(loc).AddDate(0, 0, -1).Date()

	highs, lows := bars.Highs(), bars.Lows()
	high := math.Inf(-1)
	low := math.Inf(1)
	found := false
	for i, b := range bars {
		by, bm, bd := b.OpenTime.In(loc).Date()
		if by != y || bm != m || bd != d {
			continue
		}
		found = true
		high = math.Max(high, highs[i])
		low = math.Min(low, lows[i])
	}

	if !found || low == 0 {
		return math.NaN()
	}
	return Round((high-low)/low*100, 2)
}
