package continuation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alias1177/SignalScanner/internal/calculate"
	"github.com/Alias1177/SignalScanner/internal/model"
)

var start = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

type fakeBars struct {
	bars  model.BarSequence
	err   error
	calls int
}

func (f *fakeBars) FetchBars(ctx context.Context, pair, interval string, limit int) (model.BarSequence, error) {
	f.calls++
	return f.bars, f.err
}

func flatBars(n int) model.BarSequence {
	bars := make(model.BarSequence, n)
	for i := range bars {
		bars[i] = model.Bar{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     decimal.NewFromInt(100),
			High:     decimal.NewFromInt(100),
			Low:      decimal.NewFromInt(100),
			Close:    decimal.NewFromInt(100),
		}
	}
	return bars
}

// histogram builds a MACD series: before until `flip` the value is pre, after
// it post, and the last entry is lastValue
func histogram(n, flip int, pre, post, lastValue float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i < flip {
			out[i] = pre
		} else {
			out[i] = post
		}
	}
	out[n-1] = lastValue
	return out
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func newTestScanner(src BarSource, hist, ma233 []float64) *Scanner {
	s := NewScanner(src, "1h", 500)
	s.compute = func(model.BarSequence) model.IndicatorSet {
		return model.IndicatorSet{model.MACD: hist, model.MA233: ma233}
	}
	return s
}

func crossRecord(pair string, t model.SignalType, barIndex int) model.SignalRecord {
	return model.SignalRecord{
		ID:       uuid.New(),
		Pair:     pair,
		Interval: "1h",
		OpenTime: start.Add(time.Duration(barIndex) * time.Hour),
		Types:    []model.SignalType{t},
	}
}

func TestScanEmitsOnceForLongShort(t *testing.T) {
	const n = 40
	src := &fakeBars{bars: flatBars(n)}
	s := newTestScanner(src, histogram(n, 13, -1, 0.05, 0.2), constant(n, 100))

	origin := crossRecord("ETHUSDT", model.SignalLongShort, 10)
	log := []model.SignalRecord{origin}
	now := start.Add(n * time.Hour)

	got, err := s.Scan(context.Background(), log, now)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Scan() returned %d records, want 1", len(got))
	}

	rec := got[0]
	if len(rec.Types) != 1 || rec.Types[0] != model.SignalFollowThroughWeak {
		t.Errorf("Scan() types = %v, want [%s]", rec.Types, model.SignalFollowThroughWeak)
	}
	if !rec.OpenTime.Equal(src.bars.Last().OpenTime) {
		t.Errorf("Scan() open time = %v, want latest bar %v", rec.OpenTime, src.bars.Last().OpenTime)
	}
	if rec.OriginID == nil || *rec.OriginID != origin.ID {
		t.Errorf("Scan() origin = %v, want %v", rec.OriginID, origin.ID)
	}
	if math.Abs(rec.Metrics[model.MetricHistogramRatio]-0.002) > 1e-12 {
		t.Errorf("histogram ratio = %v, want 0.002", rec.Metrics[model.MetricHistogramRatio])
	}

	// the emitted record is now part of the log, so the origin is excluded
	log = append(log, rec)
	again, err := s.Scan(context.Background(), log, now)
	if err != nil {
		t.Fatalf("second Scan() error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second Scan() returned %d records, want 0", len(again))
	}
	if src.calls != 1 {
		t.Errorf("bars fetched %d times, want 1", src.calls)
	}
}

func TestScanLongLongMirror(t *testing.T) {
	const n = 40
	src := &fakeBars{bars: flatBars(n)}
	s := newTestScanner(src, histogram(n, 20, 1, -0.05, -0.2), constant(n, 100))

	got, err := s.Scan(context.Background(), []model.SignalRecord{crossRecord("BTCUSDT", model.SignalLongLong, 5)}, start)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(got) != 1 || got[0].Types[0] != model.SignalFollowThroughStrong {
		t.Fatalf("Scan() = %v, want one %s", got, model.SignalFollowThroughStrong)
	}
}

func TestScanNoSignal(t *testing.T) {
	const n = 40

	turnedBack := histogram(n, 13, -1, 0.05, 0.2)
	turnedBack[30] = -0.1

	earlyOnly := histogram(n, 13, -1, 0.05, 0.05)
	earlyOnly[20] = 0.5

	transitionBeforeOrigin := histogram(n, 5, -1, 0.05, 0.2)

	trendTooWeak := constant(n, 110)

	tests := []struct {
		name  string
		hist  []float64
		ma233 []float64
	}{
		{"histogram turned back negative", turnedBack, constant(n, 100)},
		{"threshold only before latest bar", earlyOnly, constant(n, 100)},
		{"transition before origin", transitionBeforeOrigin, constant(n, 100)},
		{"close too far under MA233", histogram(n, 13, -1, 0.05, 0.2), trendTooWeak},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScanner(&fakeBars{bars: flatBars(n)}, tt.hist, tt.ma233)
			got, err := s.Scan(context.Background(), []model.SignalRecord{crossRecord("ETHUSDT", model.SignalLongShort, 10)}, start)
			if err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if len(got) != 0 {
				t.Errorf("Scan() = %v, want none", got)
			}
		})
	}
}

func TestScanTransitionThroughZero(t *testing.T) {
	const n = 40

	oneZero := histogram(n, 14, -1, 0.05, 0.2)
	oneZero[13] = 0

	twoZeros := histogram(n, 15, -1, 0.05, 0.2)
	twoZeros[13], twoZeros[14] = 0, 0

	touchFromAbove := histogram(n, 0, 0.05, 0.05, 0.2)
	touchFromAbove[20] = 0

	strongMirror := histogram(n, 14, 1, -0.05, -0.2)
	strongMirror[13] = 0

	tests := []struct {
		name   string
		origin model.SignalType
		hist   []float64
		want   int
	}{
		{"negative, zero, positive", model.SignalLongShort, oneZero, 1},
		{"negative, two zeros, positive", model.SignalLongShort, twoZeros, 1},
		{"positive touching zero is no retrace", model.SignalLongShort, touchFromAbove, 0},
		{"positive, zero, negative for long-long", model.SignalLongLong, strongMirror, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScanner(&fakeBars{bars: flatBars(n)}, tt.hist, constant(n, 100))
			got, err := s.Scan(context.Background(), []model.SignalRecord{crossRecord("ETHUSDT", tt.origin, 10)}, start)
			if err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Scan() returned %d records, want %d", len(got), tt.want)
			}
		})
	}
}

// trendBars rises for 280 bars, falls with growing speed for 120 and then
// recovers for 80, with closes of exactly two places
func trendBars() model.BarSequence {
	var closes []float64
	for i := 0; i < 280; i++ {
		closes = append(closes, 100+0.5*float64(i))
	}
	peak := closes[len(closes)-1]
	for k := 1; k <= 120; k++ {
		closes = append(closes, peak-0.01*float64(k*k))
	}
	trough := closes[len(closes)-1]
	for k := 1; k <= 80; k++ {
		closes = append(closes, trough+0.02*float64(k*k))
	}

	bars := make(model.BarSequence, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c).Round(1).Add(decimal.RequireFromString("0.01"))
		bars[i] = model.Bar{
			OpenTime: start.Add(time.Duration(i) * time.Hour),
			Open:     price,
			High:     price,
			Low:      price,
			Close:    price,
		}
	}
	return bars
}

func TestScanWithComputedIndicators(t *testing.T) {
	bars := trendBars()
	full := calculate.CalculateAllIndicators(bars)

	crossAt := -1
	for i := 233; i < len(bars); i++ {
		if full.At(model.MA34, i-1) >= full.At(model.MA233, i-1) && full.At(model.MA34, i) < full.At(model.MA233, i) &&
			full.At(model.DIF, i) < full.At(model.DEA, i) && full.At(model.DEA, i) < 0 {
			crossAt = i
			break
		}
	}
	if crossAt < 0 {
		t.Fatal("no death cross found in the computed series")
	}
	origin := crossRecord("BTCUSDT", model.SignalLongShort, crossAt)

	emittedAt := -1
	var rec model.SignalRecord
	for n := crossAt + 2; n <= len(bars); n++ {
		s := NewScanner(&fakeBars{bars: bars[:n]}, "1h", 500)
		got, err := s.Scan(context.Background(), []model.SignalRecord{origin}, start.Add(time.Duration(n)*time.Hour))
		if err != nil {
			t.Fatalf("Scan() on %d bars error = %v", n, err)
		}
		if len(got) > 0 {
			emittedAt, rec = n-1, got[0]
			break
		}
	}

	if emittedAt < 0 {
		t.Fatal("Scan() never emitted a continuation during the recovery")
	}
	if emittedAt < 400 {
		t.Fatalf("continuation emitted at bar %d, still inside the falling leg", emittedAt)
	}
	if rec.Types[0] != model.SignalFollowThroughWeak {
		t.Errorf("Scan() types = %v, want [%s]", rec.Types, model.SignalFollowThroughWeak)
	}
	if !rec.OpenTime.Equal(bars[emittedAt].OpenTime) {
		t.Errorf("Scan() open time = %v, want %v", rec.OpenTime, bars[emittedAt].OpenTime)
	}

	prefix := calculate.CalculateAllIndicators(bars[:emittedAt+1])
	if got, want := rec.Metrics[model.MACD], prefix.At(model.MACD, emittedAt); got != want || !(got > 0) {
		t.Errorf("histogram = %v, want %v and positive", got, want)
	}
	if got := rec.Metrics[model.MetricHistogramRatio]; !(got > 0.001) {
		t.Errorf("histogram ratio = %v, want above 0.001", got)
	}
	if got := rec.Metrics[model.MetricTrendRatio]; !(got > 0.96) {
		t.Errorf("trend ratio = %v, want above 0.96", got)
	}
}

func TestScanSkipsPairWithoutBars(t *testing.T) {
	src := &fakeBars{err: errors.New("boom")}
	s := newTestScanner(src, nil, nil)

	got, err := s.Scan(context.Background(), []model.SignalRecord{crossRecord("ETHUSDT", model.SignalLongShort, 1)}, start)
	if err != nil {
		t.Fatalf("Scan() error = %v, want nil", err)
	}
	if len(got) != 0 {
		t.Errorf("Scan() = %v, want none", got)
	}
}

func TestExcluded(t *testing.T) {
	old := crossRecord("ETHUSDT", model.SignalLongShort, 1)
	newer := crossRecord("ETHUSDT", model.SignalLongLong, 5)
	otherPair := crossRecord("BTCUSDT", model.SignalLongShort, 2)
	sameTime := crossRecord("BTCUSDT", model.SignalAmplitude, 2)
	weak := crossRecord("SOLUSDT", model.SignalLongShort, 1)
	strongOnly := crossRecord("SOLUSDT", model.SignalFollowThroughStrong, 3)

	records := []model.SignalRecord{old, otherPair, sameTime, weak, newer, strongOnly}
	excluded := Excluded(records)

	tests := []struct {
		name string
		idx  int
		want bool
	}{
		{"superseded by newer cross", 0, true},
		{"other pair untouched", 1, false},
		{"newest cross open", 4, false},
		{"continuation of the other type does not exclude", 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if excluded[tt.idx] != tt.want {
				t.Errorf("Excluded()[%d] = %v, want %v", tt.idx, excluded[tt.idx], tt.want)
			}
		})
	}

	candidates := Candidates(records)
	want := []int{1, 3, 4}
	if len(candidates) != len(want) {
		t.Fatalf("Candidates() = %v, want %v", candidates, want)
	}
	for i := range want {
		if candidates[i] != want[i] {
			t.Errorf("Candidates()[%d] = %d, want %d", i, candidates[i], want[i])
		}
	}
}

func TestExcludedIgnoresSameBar(t *testing.T) {
	a := crossRecord("ETHUSDT", model.SignalLongShort, 3)
	b := crossRecord("ETHUSDT", model.SignalLongLong, 3)
	excluded := Excluded([]model.SignalRecord{a, b})
	if excluded[0] || excluded[1] {
		t.Errorf("records on the same bar excluded each other: %v", excluded)
	}
}
