package analyze

import (
	"fmt"

	"github.com/Alias1177/SignalScanner/internal/calculate"
	"github.com/Alias1177/SignalScanner/internal/model"
)

// Rule thresholds
const (
	volumeSpikeFactor  = 3.0
	wickBodyFactor     = 2.0
	trendLookback      = 5
	macdTurnRatioLimit = 0.005
	amplitudeLimit     = 0.03
	bollingerLowFactor = 0.86
	bollingerUpFactor  = 1.14
)

// Rule is one pattern check against the latest bar. Rules flagged with
// NeedsVolumeSpike only run when the gate rule fired on the same bar.
type Rule struct {
	Type             model.SignalType
	Gate             bool
	NeedsVolumeSpike bool
	Check            func(s *Snapshot) (Hit, bool)
}

// Rules is the ordered rule set. The gate rule must come first.
var Rules = []Rule{
	{Type: model.SignalVolumeSpike, Gate: true, Check: volumeSpike},
	{Type: model.SignalShortLong, NeedsVolumeSpike: true, Check: wickRule(model.SignalShortLong, up)},
	{Type: model.SignalShortShort, NeedsVolumeSpike: true, Check: wickRule(model.SignalShortShort, down)},
	{Type: model.SignalLongShort, Check: crossRule(model.SignalLongShort, down)},
	{Type: model.SignalLongLong, Check: crossRule(model.SignalLongLong, up)},
	{Type: model.SignalMACDStrengthening, Check: macdTurnRule(model.SignalMACDStrengthening, up)},
	{Type: model.SignalMACDWeakening, Check: macdTurnRule(model.SignalMACDWeakening, down)},
	{Type: model.SignalAmplitude, Check: amplitude},
	{Type: model.SignalBollingerReversalUp, Check: bollingerRule(model.SignalBollingerReversalUp, up)},
	{Type: model.SignalBollingerReversalDown, Check: bollingerRule(model.SignalBollingerReversalDown, down)},
}

type direction int

const (
	up   direction = 1
	down direction = -1
)

// beyond reports whether a lies strictly past b in direction d
func (d direction) beyond(a, b float64) bool {
	if d == up {
		return a > b
	}
	return a < b
}

// advances reports whether next is level with or past prev in direction d
func (d direction) advances(prev, next float64) bool {
	return !d.beyond(prev, next)
}

func (d direction) String() string {
	if d == up {
		return "up"
	}
	return "down"
}

func defined(values ...float64) bool {
	for _, v := range values {
		if !calculate.IsDefined(v) {
			return false
		}
	}
	return true
}

// volumeSpike fires when the bar's quote volume exceeds three times VOL21
func volumeSpike(s *Snapshot) (Hit, bool) {
	vol21 := s.Value(model.VOL21)
	if !defined(s.QuoteVolume, vol21) || !(s.QuoteVolume > volumeSpikeFactor*vol21) {
		return Hit{}, false
	}
	return Hit{
		Type:    model.SignalVolumeSpike,
		Message: fmt.Sprintf("Quote volume %.2f exceeds %.0fx VOL21 (%.2f)", s.QuoteVolume, volumeSpikeFactor, vol21),
	}, true
}

// wickRule: a long wick against the move on a trending MA21 with MACD aligned
func wickRule(t model.SignalType, d direction) func(s *Snapshot) (Hit, bool) {
	return func(s *Snapshot) (Hit, bool) {
		ma21 := s.Value(model.MA21)
		hist := s.Value(model.MACD)
		dif := s.Value(model.DIF)
		dea := s.Value(model.DEA)
		if !defined(ma21, hist, dif, dea) {
			return Hit{}, false
		}

		wick := s.LowerWick()
		if d == down {
			wick = s.UpperWick()
		}

		if !(wick > wickBodyFactor*s.Body()) ||
			!d.beyond(s.Close, ma21) ||
			!d.beyond(hist, 0) ||
			!d.beyond(dif, dea) || !d.beyond(dea, 0) ||
			!s.Trending(model.MA21, d) {
			return Hit{}, false
		}

		return Hit{
			Type: t,
			Message: fmt.Sprintf("Wick %.8g over %.0fx body, close %.8g vs MA21 %.8g, MA21 trending %s",
				wick, wickBodyFactor, s.Close, ma21, d),
		}, true
	}
}

// crossRule: MA34 crosses MA233 on this bar with DIF and DEA on the same side of zero
func crossRule(t model.SignalType, d direction) func(s *Snapshot) (Hit, bool) {
	return func(s *Snapshot) (Hit, bool) {
		fastPrev, fast := s.Prev(model.MA34), s.Value(model.MA34)
		slowPrev, slow := s.Prev(model.MA233), s.Value(model.MA233)
		dif := s.Value(model.DIF)
		dea := s.Value(model.DEA)
		if !defined(fastPrev, fast, slowPrev, slow, dif, dea) {
			return Hit{}, false
		}

		if d.beyond(fastPrev, slowPrev) || !d.beyond(fast, slow) ||
			!d.beyond(dif, dea) || !d.beyond(dea, 0) {
			return Hit{}, false
		}

		slope := calculate.SlopeAngle(slowPrev, slow, s.Interval)
		convergence := calculate.ConvergenceAngle(fastPrev, slowPrev, fast, slow, s.Interval)

		return Hit{
			Type: t,
			Message: fmt.Sprintf("MA34 crossed %s through MA233 (%.8g / %.8g), MA233 angle %.2f°, convergence angle %.2f°",
				d, fast, slow, slope, convergence),
			Metrics: map[string]float64{
				model.MetricMA233Angle:       slope,
				model.MetricConvergenceAngle: convergence,
			},
		}, true
	}
}

// macdTurnRule: histogram flips sign while DIF stays close to zero relative to price
func macdTurnRule(t model.SignalType, d direction) func(s *Snapshot) (Hit, bool) {
	return func(s *Snapshot) (Hit, bool) {
		histPrev, hist := s.Prev(model.MACD), s.Value(model.MACD)
		dif := s.Value(model.DIF)
		ma21 := s.Value(model.MA21)
		if !defined(histPrev, hist, dif, ma21) || s.Close == 0 || len(s.Closes) < 3 {
			return Hit{}, false
		}

		ratio := dif / s.Close
		limit := float64(d) * macdTurnRatioLimit
		closePrev2, closePrev := s.Closes[s.Index-2], s.Closes[s.Index-1]

		if !d.beyond(0, histPrev) || !d.beyond(hist, 0) ||
			!d.beyond(ratio, 0) || !d.beyond(limit, ratio) ||
			!d.beyond(s.Close, ma21) ||
			!d.beyond(s.Close, s.Open) ||
			!d.advances(closePrev2, closePrev) {
			return Hit{}, false
		}

		return Hit{
			Type:    t,
			Message: fmt.Sprintf("MACD histogram turned %s (%.8g -> %.8g), DIF/close %.5f", d, histPrev, hist, ratio),
		}, true
	}
}

// amplitude fires when the bar's range exceeds 3% of its low
func amplitude(s *Snapshot) (Hit, bool) {
	if s.Low <= 0 {
		return Hit{}, false
	}
	amp := (s.High - s.Low) / s.Low
	if !(amp > amplitudeLimit) {
		return Hit{}, false
	}
	return Hit{
		Type:    model.SignalAmplitude,
		Message: fmt.Sprintf("Bar amplitude %.2f%% above %.0f%%", amp*100, amplitudeLimit*100),
	}, true
}

// bollingerRule: an unusually wide band on the far side with a candle
// turning back against a trending MA21
func bollingerRule(t model.SignalType, d direction) func(s *Snapshot) (Hit, bool) {
	return func(s *Snapshot) (Hit, bool) {
		middle := s.Value(model.MB)
		band := s.Value(model.DN)
		factor := bollingerLowFactor
		if d == down {
			band = s.Value(model.UP)
			factor = bollingerUpFactor
		}
		if !defined(middle, band) {
			return Hit{}, false
		}

		var stretched bool
		if d == up {
			stretched = band < factor*middle
		} else {
			stretched = band > factor*middle
		}

		opposite := down
		if d == down {
			opposite = up
		}

		if !stretched || !d.beyond(s.Close, s.Open) || !s.Trending(model.MA21, opposite) {
			return Hit{}, false
		}

		return Hit{
			Type:    t,
			Message: fmt.Sprintf("Bollinger band %.8g past %.0f%% of middle %.8g, reversal candle %s", band, factor*100, middle, d),
		}, true
	}
}
