// Package notification delivers alerts to external channels (Telegram) and
// turns signal records into alerts.
package notification

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier writes alerts to the log; used when no bot token is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: log.With().Str("component", "log_notifier").Logger()}
}

func (l *LogNotifier) Send(_ context.Context, alert Alert) error {
	l.logger.Info().Str("level", string(alert.Level)).Str("title", alert.Title).Msg(alert.Message)
	return nil
}
