package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalScanner/internal/api/binance"
	"github.com/Alias1177/SignalScanner/internal/config"
	"github.com/Alias1177/SignalScanner/internal/database"
	"github.com/Alias1177/SignalScanner/internal/metrics"
	"github.com/Alias1177/SignalScanner/internal/notification"
	"github.com/Alias1177/SignalScanner/internal/pipeline"
	"github.com/Alias1177/SignalScanner/internal/server"
)

func main() {
	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	setupSignalHandling(cancel)

	// 1. Load configuration, logging to the console from the start
	setupLogging(os.Getenv("LOG_LEVEL"))
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// 2. Configure logging with the level from .env
	setupLogging(cfg.LogLevel)
	log.Info().Msg("Starting signal scanner")

	// 3. Print configuration
	printConfig(cfg)

	// 4. Setup exchange client
	client, err := binance.NewClient(binance.ClientOptions{
		BaseURL:        cfg.BinanceBaseURL,
		ProxyURL:       cfg.ProxyURL,
		RequestTimeout: time.Duration(cfg.RequestTimeout) * time.Second,
		RequestsPerSec: cfg.RequestsPerSec,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create exchange client")
	}

	// 5. Open signal log
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

	// 6. Setup notifier
	notifier := setupNotifier(cfg)

	// 7. Wire the pipeline
	m := metrics.NewMetrics()
	runner, err := pipeline.NewRunner(pipeline.Deps{
		Bars:     client,
		Pairs:    client,
		Prices:   client,
		Log:      db,
		Emitters: []pipeline.Emitter{db, notification.NewSignalEmitter(notifier, cfg.Location)},
		Cleaner:  db,
		Alerts:   notifier,
		Metrics:  m,
	}, pipeline.Options{
		Interval:   cfg.Interval,
		Limit:      cfg.CandleCount,
		Pairs:      cfg.Pairs,
		PairDelay:  cfg.PairDelay,
		Window:     cfg.ContinuationWindow,
		Location:   cfg.Location,
		MaxLogRows: cfg.SignalLogMaxRows,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pipeline")
	}

	// 8. Start control server
	srv := server.New(server.Deps{
		Runner:   runner,
		Log:      db,
		Notifier: notifier,
		Metrics:  m.Handler(),
	}, cfg.LogLevel == "debug")
	go func() {
		if err := srv.Start(cfg.HTTPAddr); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
			cancel()
		}
	}()

	// 9. Run the scheduler until shutdown
	runScheduler(ctx, runner, cfg.CycleEvery)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	log.Info().Msg("Signal scanner stopped")
}

// setupSignalHandling configures signal handling for graceful shutdown
func setupSignalHandling(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutdown signal received, exiting...")
		cancel()
	}()
}

// setupLogging configures the logger
func setupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	// Set log level from config
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}

// setupNotifier returns the Telegram notifier, or the log notifier when no
// bot is configured or the bot cannot be reached
func setupNotifier(cfg *config.Config) notification.Notifier {
	if cfg.TelegramBotToken == "" {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, alerts go to the log")
		return notification.NewLogNotifier()
	}
	tg, err := notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		log.Error().Err(err).Msg("Telegram unavailable, alerts go to the log")
		return notification.NewLogNotifier()
	}
	return tg
}

// printConfig outputs the current configuration
func printConfig(cfg *config.Config) {
	log.Info().
		Str("BaseURL", cfg.BinanceBaseURL).
		Str("Interval", cfg.Interval).
		Int("CandleCount", cfg.CandleCount).
		Strs("Pairs", cfg.Pairs).
		Dur("PairDelay", cfg.PairDelay).
		Dur("CycleEvery", cfg.CycleEvery).
		Dur("ContinuationWindow", cfg.ContinuationWindow).
		Str("Timezone", cfg.Location.String()).
		Str("DBDriver", cfg.DBDriver).
		Int("SignalLogMaxRows", cfg.SignalLogMaxRows).
		Bool("Telegram", cfg.TelegramBotToken != "").
		Str("HTTPAddr", cfg.HTTPAddr).
		Msg("Configuration loaded")
}

// runScheduler runs a cycle immediately and then every period
func runScheduler(ctx context.Context, runner *pipeline.Runner, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		if _, err := runner.RunCycle(ctx); err != nil {
			switch {
			case errors.Is(err, pipeline.ErrCycleRunning):
				log.Warn().Msg("Previous cycle still running, tick skipped")
			case ctx.Err() != nil:
			default:
				log.Error().Err(err).Msg("Scheduled cycle failed")
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
