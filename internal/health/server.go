// Package health exposes a lightweight HTTP health endpoint for container probes.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"discord_assistant_bot/internal/logging"
)

const (
	dbPingTimeout      = 2 * time.Second
	statsTimeout       = 5 * time.Second
	readHeaderTimeout  = 2 * time.Second
	healthListenPrefix = ":"
)

// DatabaseChecker defines the subset of the storage manager required for health.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// StatsProvider supplies row counts for the diagnostics endpoint.
type StatsProvider interface {
	CountAccounts(ctx context.Context) (int64, error)
	CountOutstandingFines(ctx context.Context) (int64, error)
	CountOpenTickets(ctx context.Context) (int64, error)
}

// Server hosts the health and diagnostics endpoints and owns the underlying
// HTTP server.
type Server struct {
	server    *http.Server
	logger    *logrus.Entry
	dbChecker DatabaseChecker
	stats     StatsProvider
}

type response struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

type statsResponse struct {
	Accounts         int64 `json:"accounts"`
	OutstandingFines int64 `json:"outstanding_fines"`
	OpenTickets      int64 `json:"open_tickets"`
}

// NewServer constructs a health server that exposes GET /healthz and
// GET /statsz on the provided port. The stats provider is optional.
func NewServer(port int, dbChecker DatabaseChecker, stats StatsProvider, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		logger:    logger,
		dbChecker: dbChecker,
		stats:     stats,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/statsz", srv.handleStats)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf("%s%d", healthListenPrefix, port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe starts the health server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "health_listen",
		"addr":  s.server.Addr,
	}).Info("starting health server")

	if err := s.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			s.logger.WithField("event", "health_stopped").Info("health server stopped")
			return nil
		}

		return fmt.Errorf("health server listen: %w", err)
	}

	s.logger.WithField("event", "health_stopped").Info("health server stopped")
	return nil
}

// Shutdown gracefully stops the health server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := response{Status: "ok"}
	dbStatus := "ok"

	ctx := r.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if s.dbChecker == nil {
		dbStatus = "error"
		s.logger.WithField("event", "health_db_missing").Warn("database checker is not configured for health endpoint")
	} else {
		pingCtx, cancel := context.WithTimeout(ctx, dbPingTimeout)
		err := s.dbChecker.Ping(pingCtx)
		cancel()

		if err != nil {
			dbStatus = "error"
			s.logger.WithFields(logging.Fields{
				"event": "health_db_error",
			}).WithError(err).Warn("database ping failed during health check")
		}
	}

	if dbStatus != "ok" {
		resp.Status = "degraded"
		resp.Database = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.WithField("event", "health_write_error").WithError(err).Error("failed to encode health response")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		http.Error(w, "stats are not configured", http.StatusNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), statsTimeout)
	defer cancel()

	accounts, err := s.stats.CountAccounts(ctx)
	if err != nil {
		s.statsError(w, err)
		return
	}

	fines, err := s.stats.CountOutstandingFines(ctx)
	if err != nil {
		s.statsError(w, err)
		return
	}

	tickets, err := s.stats.CountOpenTickets(ctx)
	if err != nil {
		s.statsError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statsResponse{
		Accounts:         accounts,
		OutstandingFines: fines,
		OpenTickets:      tickets,
	}); err != nil {
		s.logger.WithField("event", "stats_write_error").WithError(err).Error("failed to encode stats response")
	}
}

func (s *Server) statsError(w http.ResponseWriter, err error) {
	s.logger.WithField("event", "stats_error").WithError(err).Warn("stats query failed")
	http.Error(w, "stats unavailable", http.StatusServiceUnavailable)
}
