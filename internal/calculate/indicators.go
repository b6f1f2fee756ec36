package calculate

import (
	"github.com/Alias1177/SignalScanner/internal/model"
)

// Fixed parameters of the indicator set
const (
	FastMAPeriod  = 21
	MidMAPeriod   = 34
	SlowMAPeriod  = 233
	FastVolPeriod = 8
	SlowVolPeriod = 21

	MACDShortPeriod  = 21
	MACDLongPeriod   = 34
	MACDSignalPeriod = 8

	BollingerPeriod = 21
	BollingerWidth  = 2.0
)

// CalculateAllIndicators computes every series of the indicator set. Values
// are rounded to the precision of the latest close.
func CalculateAllIndicators(bars model.BarSequence) model.IndicatorSet {
	if len(bars) == 0 {
		return nil
	}

	places := Precision(bars.Last().Close)
	closes := bars.Closes()
	quoteVolumes := bars.QuoteVolumes()

	dif, dea, hist := MACD(closes, MACDShortPeriod, MACDLongPeriod, MACDSignalPeriod, places)
	upper, middle, lower := Bollinger(closes, BollingerPeriod, BollingerWidth, places)

	return model.IndicatorSet{
		model.MA21:  SMA(closes, FastMAPeriod, places),
		model.MA34:  SMA(closes, MidMAPeriod, places),
		model.MA233: SMA(closes, SlowMAPeriod, places),
		model.VOL8:  SMA(quoteVolumes, FastVolPeriod, places),
		model.VOL21: SMA(quoteVolumes, SlowVolPeriod, places),
		model.DIF:   dif,
		model.DEA:   dea,
		model.MACD:  hist,
		model.UP:    upper,
		model.MB:    middle,
		model.DN:    lower,
	}
}
