package calculate

// MACD derives DIF = EMA(short) - EMA(long), DEA = EMA(DIF, signal) and the
// histogram 2*(DIF-DEA). Closes shorter than the long window give undefined
// series.
func MACD(closes []float64, shortPeriod, longPeriod, signalPeriod int, places int32) (dif, dea, hist []float64) {
	// Cannot calculate MACD with insufficient data
	if len(closes) == 0 || len(closes) < longPeriod {
		return undefinedSeries(len(closes)), undefinedSeries(len(closes)), undefinedSeries(len(closes))
	}

	fast := emaSeries(closes, shortPeriod)
	slow := emaSeries(closes, longPeriod)

	dif = make([]float64, len(closes))
	for i := range closes {
		dif[i] = Round(fast[i]-slow[i], places)
	}

	dea = EMA(dif, signalPeriod, places)

	hist = make([]float64, len(closes))
	for i := range closes {
		hist[i] = Round(2*(dif[i]-dea[i]), places)
	}

	return dif, dea, hist
}
