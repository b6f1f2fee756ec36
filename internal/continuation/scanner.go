// Package continuation looks back at emitted MA34/MA233 crosses and reports,
// once per cross, when the trend resumes after a MACD retrace.
package continuation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalScanner/internal/calculate"
	"github.com/Alias1177/SignalScanner/internal/model"
)

// BarSource fetches the bar history for a pair
type BarSource interface {
	FetchBars(ctx context.Context, pair, interval string, limit int) (model.BarSequence, error)
}

// rule describes how one cross type continues
type rule struct {
	origin model.SignalType
	emits  model.SignalType
	// sign of the histogram after the retrace: +1 positive, -1 negative
	sign       float64
	histLimit  float64
	trendLimit float64
}

var rules = map[model.SignalType]rule{
	model.SignalLongShort: {
		origin:     model.SignalLongShort,
		emits:      model.SignalFollowThroughWeak,
		sign:       1,
		histLimit:  0.001,
		trendLimit: 0.96,
	},
	model.SignalLongLong: {
		origin:     model.SignalLongLong,
		emits:      model.SignalFollowThroughStrong,
		sign:       -1,
		histLimit:  -0.001,
		trendLimit: 1.04,
	},
}

// beyond reports whether a lies strictly past b in the rule's direction
func (r rule) beyond(a, b float64) bool {
	if r.sign > 0 {
		return a > b
	}
	return a < b
}

// Scanner runs the continuation pass over a Signal Log snapshot
type Scanner struct {
	bars     BarSource
	interval string
	limit    int
	compute  func(model.BarSequence) model.IndicatorSet
	logger   zerolog.Logger
}

// NewScanner creates a scanner fetching limit bars of interval per pair
func NewScanner(bars BarSource, interval string, limit int) *Scanner {
	return &Scanner{
		bars:     bars,
		interval: interval,
		limit:    limit,
		compute:  calculate.CalculateAllIndicators,
		logger:   log.With().Str("component", "continuation").Logger(),
	}
}

// Scan returns the continuation records due on the latest bar. The records
// slice is treated as a read-only snapshot; emitting the results is the
// caller's job.
func (s *Scanner) Scan(ctx context.Context, records []model.SignalRecord, now time.Time) ([]model.SignalRecord, error) {
	candidates := Candidates(records)
	if len(candidates) == 0 {
		return nil, nil
	}

	type key struct{ pair, interval string }
	groups := make(map[key][]int)
	var order []key
	for _, idx := range candidates {
		rec := records[idx]
		interval := rec.Interval
		if interval == "" {
			interval = s.interval
		}
		k := key{rec.Pair, interval}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], idx)
	}

	var out []model.SignalRecord
	for _, k := range order {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		logger := s.logger.With().Str("pair", k.pair).Str("interval", k.interval).Logger()

		bars, err := s.bars.FetchBars(ctx, k.pair, k.interval, s.limit)
		if err != nil || len(bars) < 2 {
			logger.Warn().Err(err).Int("bars", len(bars)).Msg("Skipping continuation check, no bars")
			continue
		}
		ind := s.compute(bars)

		for _, idx := range groups[k] {
			origin := records[idx]
			rec, ok := s.follow(logger, bars, ind, origin, k.interval, now)
			if ok {
				logger.Info().Str("type", string(rec.Types[0])).Str("origin", origin.ID.String()).Msg("Continuation signal")
				out = append(out, rec)
			}
		}
	}

	return out, nil
}

// follow walks the histogram from the originating bar and decides whether the
// latest bar completes the continuation
func (s *Scanner) follow(logger zerolog.Logger, bars model.BarSequence, ind model.IndicatorSet, origin model.SignalRecord, interval string, now time.Time) (model.SignalRecord, bool) {
	var r rule
	found := false
	for _, t := range origin.Types {
		if rr, ok := rules[t]; ok {
			r, found = rr, true
			break
		}
	}
	if !found {
		return model.SignalRecord{}, false
	}

	last := len(bars) - 1
	originIdx := sort.Search(len(bars), func(i int) bool {
		return !bars[i].OpenTime.Before(origin.OpenTime)
	})
	if originIdx > last {
		return model.SignalRecord{}, false
	}

	hist := ind[model.MACD]
	ma233 := ind[model.MA233]
	if len(hist) != len(bars) || len(ma233) != len(bars) {
		return model.SignalRecord{}, false
	}

	// the retrace ends on the first bar past zero whose last non-zero
	// predecessor sat on the other side; bars rounded to exactly zero keep
	// the previous sign
	start := -1
	lastSign := signOf(hist[originIdx])
	for j := originIdx + 1; j <= last; j++ {
		v := hist[j]
		if !calculate.IsDefined(v) {
			lastSign = 0
			continue
		}
		if r.beyond(v, 0) && lastSign == -r.sign {
			start = j
			break
		}
		if v != 0 {
			lastSign = signOf(v)
		}
	}
	if start < 0 {
		return model.SignalRecord{}, false
	}

	for k := start; k <= last; k++ {
		if !calculate.IsDefined(hist[k]) || r.beyond(0, hist[k]) {
			logger.Debug().Int("index", k).Str("origin", origin.ID.String()).Msg("Histogram turned back, continuation dropped")
			return model.SignalRecord{}, false
		}

		closePrice := bars[k].Close.InexactFloat64()
		histRatio := calculate.Ratio(hist[k], closePrice)
		trendRatio := calculate.Ratio(closePrice, ma233[k])
		if !calculate.IsDefined(histRatio) || !calculate.IsDefined(trendRatio) {
			continue
		}
		if !r.beyond(histRatio, r.histLimit) || !r.beyond(trendRatio, r.trendLimit) {
			continue
		}

		if k < last {
			logger.Debug().Int("index", k).Float64("histogram_ratio", histRatio).Float64("trend_ratio", trendRatio).
				Msg("Continuation threshold met before latest bar")
			continue
		}

		originID := origin.ID
		return model.SignalRecord{
			ID:       uuid.New(),
			Pair:     origin.Pair,
			Interval: interval,
			OpenTime: bars[k].OpenTime,
			Types:    []model.SignalType{r.emits},
			Messages: []string{fmt.Sprintf("%s from %s on %s: histogram/close %.5f, close/MA233 %.4f",
				r.emits, r.origin, origin.OpenTime.UTC().Format(time.RFC3339), histRatio, trendRatio)},
			Metrics: map[string]float64{
				model.MetricPrice:          closePrice,
				model.MACD:                 hist[k],
				model.MA233:                ma233[k],
				model.MetricHistogramRatio: histRatio,
				model.MetricTrendRatio:     trendRatio,
			},
			OriginID:  &originID,
			CreatedAt: now.UTC(),
		}, true
	}

	return model.SignalRecord{}, false
}

// signOf returns -1, 0 or +1; undefined values give 0
func signOf(v float64) float64 {
	switch {
	case !calculate.IsDefined(v) || v == 0:
		return 0
	case v > 0:
		return 1
	}
	return -1
}
