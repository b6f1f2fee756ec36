package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalScanner/internal/config"
	"github.com/Alias1177/SignalScanner/internal/database"
	"github.com/Alias1177/SignalScanner/internal/model"
	"github.com/Alias1177/SignalScanner/internal/notification"
)

func main() {
	hours := flag.Int("hours", 24, "summarise signals from the last N hours")
	dryRun := flag.Bool("dry-run", false, "print the digest instead of sending it")
	flag.Parse()

	// console output before config.Load so its warnings are readable
	log.Logger = consoleLogger(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.New(database.ConnectionParams{
		Driver:   cfg.DBDriver,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
		Path:     cfg.SQLitePath,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	window := time.Duration(*hours) * time.Hour
	records, err := db.ReadSince(ctx, time.Now().Add(-window))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read signal log")
	}
	log.Info().Int("signals", len(records)).Int("hours", *hours).Msg("Loaded signal log")

	alert := Digest(records, window, cfg.Location)
	if *dryRun {
		fmt.Println(alert.Title)
		fmt.Println(alert.Message)
		return
	}

	// Initialize Telegram bot
	if cfg.TelegramBotToken == "" {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN not set in environment")
	}
	tg, err := notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}

	if err := tg.Send(ctx, alert); err != nil {
		log.Fatal().Err(err).Msg("Failed to send digest")
	}
	log.Info().Msg("Digest sent")
}

func consoleLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}).With().Timestamp().Logger()
}

// Digest counts signal tags per type and lists the pairs behind each
func Digest(records []model.SignalRecord, window time.Duration, loc *time.Location) notification.Alert {
	byType := make(map[model.SignalType][]string)
	for _, rec := range records {
		for _, t := range rec.Types {
			byType[t] = append(byType[t], rec.Pair)
		}
	}

	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, string(t))
	}
	sort.Strings(types)

	var b strings.Builder
	fmt.Fprintf(&b, "%d signals until %s\n", len(records), time.Now().In(loc).Format("2006-01-02 15:04 MST"))
	for _, t := range types {
		pairs := uniq(byType[model.SignalType(t)])
		fmt.Fprintf(&b, "\n%s (%d): %s", t, len(byType[model.SignalType(t)]), strings.Join(pairs, ", "))
	}

	return notification.Alert{
		Level:   notification.AlertInfo,
		Title:   fmt.Sprintf("Signal digest, last %s", window),
		Message: b.String(),
	}
}

func uniq(pairs []string) []string {
	seen := make(map[string]bool, len(pairs))
	out := pairs[:0:0]
	for _, p := range pairs {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}
