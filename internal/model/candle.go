package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar represents a single kline as returned by the exchange
type Bar struct {
	OpenTime    time.Time       `json:"open_time"`
	Open        decimal.Decimal `json:"open"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Close       decimal.Decimal `json:"close"`
	Volume      decimal.Decimal `json:"volume"`
	CloseTime   time.Time       `json:"close_time"`
	QuoteVolume decimal.Decimal `json:"quote_volume"`
	TradeCount  int64           `json:"trade_count"`
}

// BarSequence is an ordered run of bars for one pair, oldest first
type BarSequence []Bar

// Last returns the most recent bar. The sequence must not be empty.
func (s BarSequence) Last() Bar {
	return s[len(s)-1]
}

// Closes extracts close prices
func (s BarSequence) Closes() []float64 {
	return s.floats(func(b Bar) decimal.Decimal { return b.Close })
}

// Highs extracts high prices
func (s BarSequence) Highs() []float64 {
	return s.floats(func(b Bar) decimal.Decimal { return b.High })
}

// Lows extracts low prices
func (s BarSequence) Lows() []float64 {
	return s.floats(func(b Bar) decimal.Decimal { return b.Low })
}

// QuoteVolumes extracts quote-asset volumes
func (s BarSequence) QuoteVolumes() []float64 {
	return s.floats(func(b Bar) decimal.Decimal { return b.QuoteVolume })
}

func (s BarSequence) floats(field func(Bar) decimal.Decimal) []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = field(b).InexactFloat64()
	}
	return out
}
