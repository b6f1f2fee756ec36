package analyze

import (
	"time"

	"github.com/Alias1177/SignalScanner/internal/model"
)

// MinBars is the shortest sequence worth evaluating: MA233 needs one bar of
// history before the latest to detect a cross.
const MinBars = 234

// Hit is one fired rule
type Hit struct {
	Type    model.SignalType
	Message string
	Metrics map[string]float64
}

// Snapshot is the view of the latest bar shared by all rules
type Snapshot struct {
	Bars       model.BarSequence
	Indicators model.IndicatorSet
	Interval   time.Duration
	Index      int
	Closes     []float64

	Open        float64
	High        float64
	Low         float64
	Close       float64
	QuoteVolume float64
}

// NewSnapshot prepares the latest bar of bars for rule evaluation
func NewSnapshot(bars model.BarSequence, ind model.IndicatorSet, interval time.Duration) *Snapshot {
	last := bars.Last()
	return &Snapshot{
		Bars:        bars,
		Indicators:  ind,
		Interval:    interval,
		Index:       len(bars) - 1,
		Closes:      bars.Closes(),
		Open:        last.Open.InexactFloat64(),
		High:        last.High.InexactFloat64(),
		Low:         last.Low.InexactFloat64(),
		Close:       last.Close.InexactFloat64(),
		QuoteVolume: last.QuoteVolume.InexactFloat64(),
	}
}

// Value returns indicator name at the latest bar
func (s *Snapshot) Value(name string) float64 {
	return s.Indicators.At(name, s.Index)
}

// Prev returns indicator name one bar before the latest
func (s *Snapshot) Prev(name string) float64 {
	return s.Indicators.At(name, s.Index-1)
}

// Body is the absolute candle body
func (s *Snapshot) Body() float64 {
	if s.Close > s.Open {
		return s.Close - s.Open
	}
	return s.Open - s.Close
}

// LowerWick is the distance from the body bottom to the low
func (s *Snapshot) LowerWick() float64 {
	bottom := s.Open
	if s.Close < bottom {
		bottom = s.Close
	}
	return bottom - s.Low
}

// UpperWick is the distance from the body top to the high
func (s *Snapshot) UpperWick() float64 {
	top := s.Open
	if s.Close > top {
		top = s.Close
	}
	return s.High - top
}

// Trending reports whether the last trendLookback values of name never move
// against d. Undefined values fail the check.
func (s *Snapshot) Trending(name string, d direction) bool {
	start := s.Index - trendLookback + 1
	if start < 0 {
		return false
	}
	for i := start; i <= s.Index; i++ {
		if !defined(s.Indicators.At(name, i)) {
			return false
		}
		if i > start && !d.advances(s.Indicators.At(name, i-1), s.Indicators.At(name, i)) {
			return false
		}
	}
	return true
}

// Evaluate runs the rule set against the latest bar. Rules whose inputs are
// undefined are skipped; sequences shorter than MinBars yield nothing.
func Evaluate(bars model.BarSequence, ind model.IndicatorSet, interval time.Duration) []Hit {
	return EvaluateRules(Rules, bars, ind, interval)
}

// EvaluateRules is Evaluate over an explicit rule list
func EvaluateRules(rules []Rule, bars model.BarSequence, ind model.IndicatorSet, interval time.Duration) []Hit {
	if len(bars) < MinBars || ind == nil {
		return nil
	}

	s := NewSnapshot(bars, ind, interval)

	var hits []Hit
	volumeSpike := false
	for _, rule := range rules {
		if rule.NeedsVolumeSpike && !volumeSpike {
			continue
		}
		hit, ok := rule.Check(s)
		if rule.Gate {
			volumeSpike = ok
		}
		if ok {
			hits = append(hits, hit)
		}
	}

	return hits
}
