package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"RSISentinel/internal/model"
	"RSISentinel/internal/recorder"
)

const (
	defaultHours = 24
	maxHours     = 24 * 90
)

// StateSource exposes the scanner counters.
type StateSource interface {
	GetState() model.ScanState
}

// Server is the read-only HTTP API.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	recorder   recorder.Recorder
	state      StateSource
	logger     zerolog.Logger
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, rec recorder.Recorder, state StateSource, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{
		router:   router,
		recorder: rec,
		state:    state,
		logger:   logger.With().Str("component", "api").Logger(),
	}
	router.Use(gin.Recovery())
	router.Use(s.requestLogger())
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	api := s.router.Group("/api")
	api.GET("/signals", s.handleSignals)
	api.GET("/stats", s.handleStats)
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSignals(c *gin.Context) {
	hours := defaultHours
	if v := c.Query("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxHours {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("hours must be between 1 and %d", maxHours)})
			return
		}
		hours = n
	}

	signals, err := s.recorder.RecentSignals(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		s.logger.Error().Err(err).Msg("load recent signals")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load signals"})
		return
	}
	if signals == nil {
		signals = []recorder.StoredSignal{}
	}
	c.JSON(http.StatusOK, gin.H{
		"hours":   hours,
		"count":   len(signals),
		"signals": signals,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.recorder.Statistics(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("load statistics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load statistics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"store": stats,
		"scans": s.state.GetState(),
	})
}
