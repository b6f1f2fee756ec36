package calculate

import "math"

// Bollinger calculates Bollinger Bands over a rolling window. The half width
// is width times the sample standard deviation of the window.
func Bollinger(closes []float64, period int, width float64, places int32) (upper, middle, lower []float64) {
	upper = undefinedSeries(len(closes))
	middle = undefinedSeries(len(closes))
	lower = undefinedSeries(len(closes))
	if period <= 0 || len(closes) < period {
		return upper, middle, lower
	}

	for i := period - 1; i < len(closes); i++ {
		window := closes[i-period+1 : i+1]
		mean := calculateAverage(window)

		sd := 0.0
		if period > 1 {
			var variance float64
			for _, c := range window {
				variance += math.Pow(c-mean, 2)
			}
			sd = math.Sqrt(variance / float64(period-1))
		}

		middle[i] = Round(mean, places)
		upper[i] = Round(mean+sd*width, places)
		lower[i] = Round(mean-sd*width, places)
	}

	return upper, middle, lower
}
