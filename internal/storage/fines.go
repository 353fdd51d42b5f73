package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"discord_assistant_bot/internal/domain"
	"discord_assistant_bot/internal/logging"
)

// FineStore persists outstanding fines. A fine exists exactly while it is
// unpaid; settlement deletes the row.
type FineStore struct {
	conns  connSource
	logger *logrus.Entry
}

// NewFineStore constructs a FineStore.
func NewFineStore(conns connSource, logger *logrus.Entry) *FineStore {
	if logger == nil {
		logger = logging.Logger()
	}

	return &FineStore{
		conns:  conns,
		logger: logger,
	}
}

// Add records a fine against a user. Amount must be positive; the issuer is
// kept for audit and display.
func (s *FineStore) Add(ctx context.Context, userID string, amount int64, issuerID string) error {
	if s == nil || s.conns == nil {
		return errors.New("fine store is not initialized")
	}
	if userID == "" || issuerID == "" {
		return errors.New("user id and issuer id are required")
	}
	if amount <= 0 {
		return errors.New("fine amount must be positive")
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO fines (user_id, amount, issuer_id) VALUES ($1, $2, $3)`,
		userID, amount, issuerID,
	); err != nil {
		return fmt.Errorf("insert fine: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"event":     "fine_issued",
		"user_id":   userID,
		"issuer_id": issuerID,
		"amount":    amount,
	}).Info("fine recorded")

	return nil
}

// List returns the user's outstanding fines in insertion order.
func (s *FineStore) List(ctx context.Context, userID string) ([]domain.Fine, error) {
	if s == nil || s.conns == nil {
		return nil, errors.New("fine store is not initialized")
	}
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, amount, issuer_id FROM fines WHERE user_id = $1 ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query fines: %w", err)
	}
	defer rows.Close()

	var fines []domain.Fine
	for rows.Next() {
		var fine domain.Fine
		if err := rows.Scan(&fine.ID, &fine.UserID, &fine.Amount, &fine.IssuerID); err != nil {
			return nil, fmt.Errorf("scan fine: %w", err)
		}
		fines = append(fines, fine)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fines: %w", err)
	}

	return fines, nil
}

// Remove deletes a fine by id. Removing an absent fine is a no-op.
func (s *FineStore) Remove(ctx context.Context, fineID int64) error {
	if s == nil || s.conns == nil {
		return errors.New("fine store is not initialized")
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM fines WHERE id = $1`, fineID); err != nil {
		return fmt.Errorf("delete fine: %w", err)
	}

	return nil
}

// RemoveOwnedTx conditionally deletes a fine inside a caller-owned
// transaction, reporting whether a row was actually removed. Settlement uses
// this so the delete fails closed when the fine vanished between display and
// payment.
func (s *FineStore) RemoveOwnedTx(ctx context.Context, tx *sql.Tx, fineID int64, userID string) (bool, error) {
	if s == nil {
		return false, errors.New("fine store is not initialized")
	}
	if tx == nil {
		return false, errors.New("transaction is required")
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM fines WHERE id = $1 AND user_id = $2`,
		fineID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("delete fine: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("confirm fine deletion: %w", err)
	}

	return affected > 0, nil
}
