package analyze

import (
	"time"

	"github.com/google/uuid"

	"github.com/Alias1177/SignalScanner/internal/calculate"
	"github.com/Alias1177/SignalScanner/internal/model"
)

// snapshotIndicators are copied into every record
var snapshotIndicators = []string{
	model.MA21, model.MA34, model.MA233,
	model.VOL8, model.VOL21,
	model.DIF, model.DEA, model.MACD,
	model.UP, model.MB, model.DN,
}

// BuildRecord folds the hits of one bar into a single signal record.
// Undefined metrics are left out.
func BuildRecord(pair, interval string, bars model.BarSequence, ind model.IndicatorSet, hits []Hit, now time.Time, loc *time.Location) model.SignalRecord {
	last := bars.Last()
	index := len(bars) - 1
	price := last.Close.InexactFloat64()

	metrics := map[string]float64{
		model.MetricPrice:       price,
		model.MetricQuoteVolume: last.QuoteVolume.InexactFloat64(),
	}
	for _, name := range snapshotIndicators {
		setMetric(metrics, name, ind.At(name, index))
	}
	setMetric(metrics, model.MetricPriceDeviation, calculate.PriceDeviation(price, ind.At(model.MA233, index)))
	setMetric(metrics, model.MetricPrevDayAmplitude, calculate.PreviousDayAmplitude(bars, now, loc))

	rec := model.SignalRecord{
		ID:        uuid.New(),
		Pair:      pair,
		Interval:  interval,
		OpenTime:  last.OpenTime,
		Metrics:   metrics,
		CreatedAt: now.UTC(),
	}
	for _, h := range hits {
		rec.Types = append(rec.Types, h.Type)
		rec.Messages = append(rec.Messages, h.Message)
		for k, v := range h.Metrics {
			setMetric(metrics, k, v)
		}
	}

	return rec
}

func setMetric(metrics map[string]float64, key string, v float64) {
	if calculate.IsDefined(v) {
		metrics[key] = v
	}
}
