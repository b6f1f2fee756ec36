package notification

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Alias1177/SignalScanner/internal/model"
)

// SignalEmitter forwards signal records to a notifier
type SignalEmitter struct {
	notifier Notifier
	loc      *time.Location
}

// NewSignalEmitter creates an emitter; times are rendered in loc
func NewSignalEmitter(n Notifier, loc *time.Location) *SignalEmitter {
	if loc == nil {
		loc = time.UTC
	}
	return &SignalEmitter{notifier: n, loc: loc}
}

// Emit sends rec as one alert
func (e *SignalEmitter) Emit(ctx context.Context, rec model.SignalRecord) error {
	return e.notifier.Send(ctx, SignalAlert(rec, e.loc))
}

// SignalAlert formats a record. Continuations are warnings, the rest info.
func SignalAlert(rec model.SignalRecord, loc *time.Location) Alert {
	tags := make([]string, len(rec.Types))
	level := AlertInfo
	for i, t := range rec.Types {
		tags[i] = string(t)
		if t == model.SignalFollowThroughWeak || t == model.SignalFollowThroughStrong {
			level = AlertWarning
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Bar: %s\n", rec.OpenTime.In(loc).Format("2006-01-02 15:04 MST"))
	if price := rec.Price(); !math.IsNaN(price) {
		fmt.Fprintf(&b, "Price: %s\n", formatFloat(price))
	}
	if live, ok := rec.Metrics[model.MetricLivePrice]; ok {
		fmt.Fprintf(&b, "Live price: %s\n", formatFloat(live))
	}
	for _, m := range rec.Messages {
		fmt.Fprintf(&b, "• %s\n", m)
	}

	keys := make([]string, 0, len(rec.Metrics))
	for k := range rec.Metrics {
		if k != model.MetricPrice && k != model.MetricLivePrice {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, formatFloat(rec.Metrics[k]))
	}

	return Alert{
		Level:   level,
		Title:   fmt.Sprintf("%s %s: %s", rec.Pair, rec.Interval, strings.Join(tags, ", ")),
		Message: strings.TrimRight(b.String(), "\n"),
	}
}

func formatFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.8f", v), "0"), ".")
}
