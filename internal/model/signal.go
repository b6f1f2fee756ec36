package model

import (
	"math"
	"time"

	"github.com/google/uuid"
)

var nan = math.NaN()

// SignalType tags a record with the rule that produced it
type SignalType string

const (
	SignalVolumeSpike           SignalType = "volume-spike"
	SignalShortLong             SignalType = "short-long"
	SignalShortShort            SignalType = "short-short"
	SignalLongShort             SignalType = "long-short"
	SignalLongLong              SignalType = "long-long"
	SignalMACDStrengthening     SignalType = "macd-strengthening"
	SignalMACDWeakening         SignalType = "macd-weakening"
	SignalAmplitude             SignalType = "amplitude"
	SignalBollingerReversalUp   SignalType = "bollinger-reversal-up"
	SignalBollingerReversalDown SignalType = "bollinger-reversal-down"
	SignalFollowThroughWeak     SignalType = "follow-through-weak"
	SignalFollowThroughStrong   SignalType = "follow-through-strong"
)

// Metric keys used in SignalRecord.Metrics besides the indicator names
const (
	MetricPrice            = "price"
	MetricLivePrice        = "live_price"
	MetricQuoteVolume      = "quote_volume"
	MetricMA233Angle       = "ma233_angle"
	MetricConvergenceAngle = "convergence_angle"
	MetricPriceDeviation   = "price_deviation_pct"
	MetricPrevDayAmplitude = "prev_day_amplitude_pct"
	MetricHistogramRatio   = "histogram_ratio"
	MetricTrendRatio       = "trend_ratio"
)

// SignalRecord is one emitted alert. Records are append-only.
type SignalRecord struct {
	ID        uuid.UUID          `json:"id"`
	Pair      string             `json:"pair"`
	Interval  string             `json:"interval"`
	OpenTime  time.Time          `json:"open_time"`
	Types     []SignalType       `json:"types"`
	Messages  []string           `json:"messages,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	OriginID  *uuid.UUID         `json:"origin_id,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Has reports whether the record carries the tag t
func (r SignalRecord) Has(t SignalType) bool {
	for _, tt := range r.Types {
		if tt == t {
			return true
		}
	}
	return false
}

// Price returns the trigger price stored with the record
func (r SignalRecord) Price() float64 {
	if v, ok := r.Metrics[MetricPrice]; ok {
		return v
	}
	return nan
}
