// Package pipeline runs one scan cycle: the continuation pass over the
// signal log, then fetch, compute, evaluate and emit for every pair.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Alias1177/SignalScanner/internal/analyze"
	"github.com/Alias1177/SignalScanner/internal/calculate"
	"github.com/Alias1177/SignalScanner/internal/continuation"
	"github.com/Alias1177/SignalScanner/internal/metrics"
	"github.com/Alias1177/SignalScanner/internal/model"
	"github.com/Alias1177/SignalScanner/internal/notification"
)

// ErrCycleRunning is returned when a cycle is requested while one is running
var ErrCycleRunning = errors.New("scan cycle already running")

// PairSource lists the pairs to scan when none are configured
type PairSource interface {
	TradingPairs(ctx context.Context) ([]string, error)
}

// SignalLog is the read side of the persisted signal log
type SignalLog interface {
	ReadSince(ctx context.Context, since time.Time) ([]model.SignalRecord, error)
}

// Emitter receives every signal record produced by a cycle
type Emitter interface {
	Emit(ctx context.Context, rec model.SignalRecord) error
}

// PriceSource quotes the live price of a pair
type PriceSource interface {
	CurrentPrice(ctx context.Context, pair string) (decimal.Decimal, error)
}

// Cleaner trims the signal log to its newest rows
type Cleaner interface {
	Cleanup(ctx context.Context, maxRows int) (int64, error)
}

// Deps are the collaborators of a Runner. Pairs, Prices, Log, Cleaner,
// Alerts and Metrics are optional.
type Deps struct {
	Bars     continuation.BarSource
	Pairs    PairSource
	Prices   PriceSource
	Log      SignalLog
	Emitters []Emitter
	Cleaner  Cleaner
	Alerts   notification.Notifier
	Metrics  *metrics.Metrics
}

// Options tune a Runner
type Options struct {
	Interval   string
	Limit      int
	Pairs      []string
	PairDelay  time.Duration
	Window     time.Duration
	Location   *time.Location
	MaxLogRows int
}

// Cycle is the context and tally of one run
type Cycle struct {
	ID            uuid.UUID     `json:"id"`
	Started       time.Time     `json:"started"`
	Duration      time.Duration `json:"duration"`
	Pairs         int           `json:"pairs"`
	Processed     int           `json:"processed"`
	Skipped       int           `json:"skipped"`
	Signals       int           `json:"signals"`
	Continuations int           `json:"continuations"`
	EmitErrors    int           `json:"emit_errors"`
}

// Runner executes scan cycles. Only one cycle runs at a time.
type Runner struct {
	deps     Deps
	opts     Options
	interval time.Duration
	scanner  *continuation.Scanner

	mu     sync.Mutex
	now    func() time.Time
	logger zerolog.Logger
}

// NewRunner validates opts and wires the continuation scanner to deps.Bars
func NewRunner(deps Deps, opts Options) (*Runner, error) {
	if deps.Bars == nil {
		return nil, errors.New("pipeline: bar source is required")
	}
	if len(opts.Pairs) == 0 && deps.Pairs == nil {
		return nil, errors.New("pipeline: no pairs configured and no pair source")
	}

	interval, err := model.IntervalDuration(opts.Interval)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if opts.Limit <= 0 {
		opts.Limit = 500
	}
	if opts.Window <= 0 {
		opts.Window = 12 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics()
	}

	return &Runner{
		deps:     deps,
		opts:     opts,
		interval: interval,
		scanner:  continuation.NewScanner(deps.Bars, opts.Interval, opts.Limit),
		now:      time.Now,
		logger:   log.With().Str("component", "pipeline").Logger(),
	}, nil
}

// RunCycle runs one full cycle. It returns ErrCycleRunning if another cycle
// holds the runner.
func (r *Runner) RunCycle(ctx context.Context) (*Cycle, error) {
	if !r.mu.TryLock() {
		return nil, ErrCycleRunning
	}
	defer r.mu.Unlock()

	cycle := &Cycle{ID: uuid.New(), Started: r.now()}
	logger := r.logger.With().Str("cycle", cycle.ID.String()).Logger()
	logger.Info().Msg("Cycle started")

	err := r.run(ctx, cycle, logger)

	cycle.Duration = r.now().Sub(cycle.Started)
	m := r.deps.Metrics
	m.CycleDuration.Observe(cycle.Duration.Seconds())
	m.LastCycle.SetToCurrentTime()

	if err != nil && (errors.Is(err, context.Canceled) || ctx.Err() != nil) {
		m.CyclesTotal.WithLabelValues("cancelled").Inc()
		logger.Info().Err(err).Int("processed", cycle.Processed).Msg("Cycle cancelled")
		return cycle, err
	}
	if err != nil {
		m.CyclesTotal.WithLabelValues("error").Inc()
		logger.Error().Err(err).Msg("Cycle failed")
		r.alert(ctx, notification.Alert{
			Level:   notification.AlertCritical,
			Title:   "Scan cycle failed",
			Message: err.Error(),
		})
		return cycle, err
	}

	m.CyclesTotal.WithLabelValues("ok").Inc()
	logger.Info().
		Int("pairs", cycle.Pairs).
		Int("processed", cycle.Processed).
		Int("skipped", cycle.Skipped).
		Int("signals", cycle.Signals).
		Int("continuations", cycle.Continuations).
		Dur("duration", cycle.Duration).
		Msg("Cycle finished")
	return cycle, nil
}

func (r *Runner) run(ctx context.Context, cycle *Cycle, logger zerolog.Logger) error {
	pairs, err := r.pairs(ctx)
	if err != nil {
		return fmt.Errorf("listing pairs: %w", err)
	}
	cycle.Pairs = len(pairs)

	r.continuations(ctx, cycle, logger)

	for i, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && r.opts.PairDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.opts.PairDelay):
			}
		}

		if r.processPair(ctx, cycle, pair) {
			cycle.Processed++
			r.deps.Metrics.PairsTotal.WithLabelValues("processed").Inc()
		} else {
			cycle.Skipped++
			r.deps.Metrics.PairsTotal.WithLabelValues("skipped").Inc()
		}
	}

	if r.opts.MaxLogRows > 0 && r.deps.Cleaner != nil {
		deleted, err := r.deps.Cleaner.Cleanup(ctx, r.opts.MaxLogRows)
		if err != nil {
			logger.Warn().Err(err).Msg("Signal log cleanup failed")
		} else if deleted > 0 {
			logger.Info().Int64("deleted", deleted).Msg("Signal log trimmed")
		}
	}

	return nil
}

func (r *Runner) pairs(ctx context.Context) ([]string, error) {
	if len(r.opts.Pairs) > 0 {
		return r.opts.Pairs, nil
	}
	return r.deps.Pairs.TradingPairs(ctx)
}

// continuations runs the follow-through pass over a snapshot of the log.
// A log that cannot be read, or a panic inside the pass, skips the pass but
// not the cycle.
func (r *Runner) continuations(ctx context.Context, cycle *Cycle, logger zerolog.Logger) {
	if r.deps.Log == nil {
		return
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error().Interface("panic", p).Msg("Continuation scan panicked")
		}
	}()

	now := r.now()
	records, err := r.deps.Log.ReadSince(ctx, now.Add(-r.opts.Window))
	if err != nil {
		logger.Error().Err(err).Msg("Reading signal log failed, continuation scan skipped")
		return
	}

	found, err := r.scanner.Scan(ctx, records, now)
	if err != nil {
		logger.Warn().Err(err).Msg("Continuation scan interrupted")
	}
	for _, rec := range found {
		r.emit(ctx, cycle, rec)
		cycle.Continuations++
	}
}

// processPair runs fetch, compute, evaluate and emit for one pair. It reports
// false when the pair was skipped; a panic inside is contained here.
func (r *Runner) processPair(ctx context.Context, cycle *Cycle, pair string) (ok bool) {
	logger := r.logger.With().Str("pair", pair).Logger()

	defer func() {
		if p := recover(); p != nil {
			logger.Error().Interface("panic", p).Msg("Pair processing panicked")
			ok = false
		}
	}()

	bars, err := r.deps.Bars.FetchBars(ctx, pair, r.opts.Interval, r.opts.Limit)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to fetch bars, skipping pair")
		return false
	}
	if len(bars) < analyze.MinBars {
		logger.Debug().Int("bars", len(bars)).Msg("Not enough history, skipping pair")
		return false
	}

	ind := calculate.CalculateAllIndicators(bars)
	hits := analyze.Evaluate(bars, ind, r.interval)
	if len(hits) == 0 {
		return true
	}

	rec := analyze.BuildRecord(pair, r.opts.Interval, bars, ind, hits, r.now(), r.opts.Location)
	logger.Info().Interface("types", rec.Types).Float64("price", rec.Price()).Msg("Signal")
	r.emit(ctx, cycle, rec)
	return true
}

// emit hands rec to every emitter; one failing does not stop the rest
func (r *Runner) emit(ctx context.Context, cycle *Cycle, rec model.SignalRecord) {
	r.quote(ctx, &rec)

	cycle.Signals++
	for _, t := range rec.Types {
		r.deps.Metrics.SignalsTotal.WithLabelValues(string(t)).Inc()
	}

	for _, e := range r.deps.Emitters {
		if err := e.Emit(ctx, rec); err != nil {
			cycle.EmitErrors++
			r.deps.Metrics.EmitErrors.Inc()
			r.logger.Error().Err(err).Str("pair", rec.Pair).Str("id", rec.ID.String()).Msg("Emit failed")
		}
	}
}

// quote stores the live price next to the bar close. A failed lookup only
// leaves the metric out.
func (r *Runner) quote(ctx context.Context, rec *model.SignalRecord) {
	if r.deps.Prices == nil {
		return
	}
	price, err := r.deps.Prices.CurrentPrice(ctx, rec.Pair)
	if err != nil {
		r.logger.Warn().Err(err).Str("pair", rec.Pair).Msg("Live price lookup failed")
		return
	}
	if rec.Metrics == nil {
		rec.Metrics = make(map[string]float64)
	}
	rec.Metrics[model.MetricLivePrice] = price.InexactFloat64()
}

func (r *Runner) alert(ctx context.Context, a notification.Alert) {
	if r.deps.Alerts == nil {
		return
	}
	// the cycle context may already be done
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.deps.Alerts.Send(sendCtx, a); err != nil {
		r.logger.Error().Err(err).Msg("Failed to send error alert")
	}
}
