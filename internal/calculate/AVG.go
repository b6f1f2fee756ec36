package calculate

// calculateAverage calculates simple average
func calculateAverage(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, value := range values {
		sum += value
	}

	return sum / float64(len(values))
}

// SMA returns the rolling mean over window. Indices before window-1 are
// undefined; a series shorter than window is entirely undefined.
func SMA(values []float64, window int, places int32) []float64 {
	out := undefinedSeries(len(values))
	if window <= 0 || len(values) < window {
		return out
	}

	for i := window - 1; i < len(values); i++ {
		out[i] = Round(calculateAverage(values[i-window+1:i+1]), places)
	}
	return out
}
