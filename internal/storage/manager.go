// Package storage encapsulates the database connection lifecycle and the SQL
// stores built on top of it.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"discord_assistant_bot/internal/config"
	"discord_assistant_bot/internal/domain"
	"discord_assistant_bot/internal/logging"
)

const (
	connectAttempts   = 3
	connectRetryDelay = 5 * time.Second
)

// openDB is overridable for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("postgres", dsn)
}

// sleep is overridable for tests.
var sleep = time.Sleep

// Manager owns the single database handle for the process. Every store routes
// queries through it; reconnect attempts are coalesced so racing callers share
// one attempt while queries on a healthy handle proceed concurrently on the
// pool.
type Manager struct {
	dsn    string
	logger *logrus.Entry

	mu        sync.RWMutex
	db        *sql.DB
	reconnect singleflight.Group
}

// NewManager constructs a Manager from resolved configuration. No connection
// is attempted until Initialize is called.
func NewManager(cfg config.Config, logger *logrus.Entry) *Manager {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Manager{
		dsn:    cfg.DSN(),
		logger: logger,
	}
}

// Initialize closes any prior handle and attempts up to three connect-and-verify
// cycles, sleeping five seconds between failures. Each cycle is verified with a
// round-trip query; on success the schema is ensured before the handle is
// published. After exhausting the budget the manager holds no live handle.
func (m *Manager) Initialize(ctx context.Context) error {
	if m == nil {
		return errors.New("storage manager is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if m.dsn == "" {
		return errors.New("database connection values are missing")
	}

	m.mu.Lock()
	if m.db != nil {
		_ = m.db.Close()
		m.db = nil
	}
	m.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		db, err := m.connectOnce(ctx)
		if err == nil {
			m.mu.Lock()
			m.db = db
			m.mu.Unlock()

			m.logger.WithFields(logging.Fields{
				"event":   "db_connect",
				"attempt": attempt,
			}).Info("connected to database")

			return nil
		}

		lastErr = err
		m.logger.WithFields(logging.Fields{
			"event":   "db_connect_failed",
			"attempt": attempt,
		}).WithError(err).Warn("database connection attempt failed")

		if attempt < connectAttempts {
			sleep(connectRetryDelay)
		}
	}

	return fmt.Errorf("%w: %d attempts exhausted: %v", domain.ErrNotConnected, connectAttempts, lastErr)
}

func (m *Manager) connectOnce(ctx context.Context) (*sql.DB, error) {
	db, err := openDB(m.dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := probe(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verify database: %w", err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return db, nil
}

// Ensure is the liveness check every store operation calls before use. A
// healthy handle passes a round-trip probe; otherwise a reconnect is attempted,
// with concurrent callers sharing a single attempt.
func (m *Manager) Ensure(ctx context.Context) error {
	if m == nil {
		return errors.New("storage manager is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	m.mu.RLock()
	db := m.db
	m.mu.RUnlock()

	if db != nil {
		if err := probe(ctx, db); err == nil {
			return nil
		}

		m.logger.WithField("event", "db_probe_failed").Warn("database probe failed, reconnecting")
	}

	_, err, _ := m.reconnect.Do("reconnect", func() (interface{}, error) {
		return nil, m.Initialize(ctx)
	})

	return err
}

// Conn ensures the connection is live and returns the shared handle. Callers
// must not retain the handle across operations; fetch it fresh each time.
func (m *Manager) Conn(ctx context.Context) (*sql.DB, error) {
	if err := m.Ensure(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	db := m.db
	m.mu.RUnlock()

	if db == nil {
		return nil, domain.ErrNotConnected
	}

	return db, nil
}

// Ping probes the current handle without triggering a reconnect; the health
// endpoint uses it to report degradation rather than mask it.
func (m *Manager) Ping(ctx context.Context) error {
	if m == nil {
		return errors.New("storage manager is not initialized")
	}

	m.mu.RLock()
	db := m.db
	m.mu.RUnlock()

	if db == nil {
		return domain.ErrNotConnected
	}

	return probe(ctx, db)
}

// Close releases the database handle.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}

	err := m.db.Close()
	m.db = nil
	return err
}

// probe runs the trivial round-trip query used to verify a handle.
func probe(ctx context.Context, db *sql.DB) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("probe query: %w", err)
	}

	return nil
}
