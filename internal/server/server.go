package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalScanner/internal/model"
	"github.com/Alias1177/SignalScanner/internal/notification"
	"github.com/Alias1177/SignalScanner/internal/pipeline"
)

// CycleRunner runs one scan cycle on demand
type CycleRunner interface {
	RunCycle(ctx context.Context) (*pipeline.Cycle, error)
}

// SignalLog lists recent signals
type SignalLog interface {
	ReadSince(ctx context.Context, since time.Time) ([]model.SignalRecord, error)
}

// Deps are the handlers' collaborators. Log and Metrics may be nil.
type Deps struct {
	Runner   CycleRunner
	Log      SignalLog
	Notifier notification.Notifier
	Metrics  http.Handler
}

// Server is the HTTP control surface of the scanner
type Server struct {
	deps   Deps
	engine *gin.Engine
	http   *http.Server
	logger zerolog.Logger
}

// New builds the router. debug keeps gin in debug mode.
func New(deps Deps, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		deps:   deps,
		engine: gin.New(),
		logger: log.With().Str("component", "server").Logger(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/", s.home)
	s.engine.POST("/run", s.run)
	s.engine.GET("/test-telegram", s.testTelegram)
	s.engine.GET("/signals", s.signals)
	if s.deps.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.deps.Metrics))
	}
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on addr until Shutdown is called
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info().Str("addr", addr).Msg("Starting server")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("Request")
	}
}

func (s *Server) home(c *gin.Context) {
	c.String(http.StatusOK, "Signal scanner is running")
}

func (s *Server) run(c *gin.Context) {
	cycle, err := s.deps.Runner.RunCycle(c.Request.Context())
	switch {
	case errors.Is(err, pipeline.ErrCycleRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "cycle": cycle})
	default:
		c.JSON(http.StatusOK, cycle)
	}
}

func (s *Server) testTelegram(c *gin.Context) {
	err := s.deps.Notifier.Send(c.Request.Context(), notification.Alert{
		Level:   notification.AlertInfo,
		Title:   "Test message",
		Message: "Signal scanner notification test",
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Test message failed")
		c.String(http.StatusInternalServerError, "Error: %v", err)
		return
	}
	c.String(http.StatusOK, "Telegram message sent")
}

func (s *Server) signals(c *gin.Context) {
	if s.deps.Log == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal log not configured"})
		return
	}

	hours := 24
	if raw := c.Query("hours"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}
		hours = v
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	records, err := s.deps.Log.ReadSince(c.Request.Context(), since)
	if err != nil {
		s.logger.Error().Err(err).Msg("Reading signal log failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []model.SignalRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(records), "signals": records})
}
