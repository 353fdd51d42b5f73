package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"discord_assistant_bot/internal/logging"
)

// connSource is the narrow view of Manager the stores depend on; tests supply
// a fake returning an sqlmock-backed handle.
type connSource interface {
	Conn(ctx context.Context) (*sql.DB, error)
}

// LedgerStore reads and mutates per-user balances. Balances are only ever
// changed through the atomic delta statement here; callers never read, modify,
// and write a balance themselves.
type LedgerStore struct {
	conns         connSource
	startingGrant int64
	logger        *logrus.Entry
}

// NewLedgerStore constructs a LedgerStore. startingGrant seeds every account
// created by its first balance change.
func NewLedgerStore(conns connSource, startingGrant int64, logger *logrus.Entry) *LedgerStore {
	if logger == nil {
		logger = logging.Logger()
	}

	return &LedgerStore{
		conns:         conns,
		startingGrant: startingGrant,
		logger:        logger,
	}
}

// Balance returns the user's balance, zero when no account row exists.
func (s *LedgerStore) Balance(ctx context.Context, userID string) (int64, error) {
	if s == nil || s.conns == nil {
		return 0, errors.New("ledger store is not initialized")
	}
	if userID == "" {
		return 0, errors.New("user id is required")
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return 0, err
	}

	var balance int64
	err = db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}

	return balance, nil
}

// ChangeBalance applies a signed delta as a single atomic statement. A missing
// account row is inserted seeded with the starting grant plus the delta. No
// lower bound is enforced; callers pre-check sufficient funds where that
// matters.
func (s *LedgerStore) ChangeBalance(ctx context.Context, userID string, delta int64) error {
	if s == nil || s.conns == nil {
		return errors.New("ledger store is not initialized")
	}
	if userID == "" {
		return errors.New("user id is required")
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return err
	}

	if err := s.applyDelta(ctx, db, userID, delta); err != nil {
		return err
	}

	s.logger.WithFields(logging.Fields{
		"event":   "balance_changed",
		"user_id": userID,
		"delta":   delta,
	}).Debug("applied balance delta")

	return nil
}

// ApplyDeltaTx applies the same atomic delta inside a caller-owned
// transaction, for composite operations that must change several rows
// all-or-nothing.
func (s *LedgerStore) ApplyDeltaTx(ctx context.Context, tx *sql.Tx, userID string, delta int64) error {
	if s == nil {
		return errors.New("ledger store is not initialized")
	}
	if tx == nil {
		return errors.New("transaction is required")
	}
	if userID == "" {
		return errors.New("user id is required")
	}

	return s.applyDelta(ctx, tx, userID, delta)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *LedgerStore) applyDelta(ctx context.Context, ex execer, userID string, delta int64) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO accounts (user_id, balance) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET balance = accounts.balance + $3`,
		userID, s.startingGrant+delta, delta,
	)
	if err != nil {
		return fmt.Errorf("apply balance delta: %w", err)
	}

	return nil
}
