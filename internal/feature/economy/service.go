// Package economy coordinates fine settlement and transfers, the operations
// where balance and fine rows must change together.
package economy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"discord_assistant_bot/internal/domain"
	"discord_assistant_bot/internal/logging"
)

type connSource interface {
	Conn(ctx context.Context) (*sql.DB, error)
}

type ledgerStore interface {
	Balance(ctx context.Context, userID string) (int64, error)
	ChangeBalance(ctx context.Context, userID string, delta int64) error
	ApplyDeltaTx(ctx context.Context, tx *sql.Tx, userID string, delta int64) error
}

type fineStore interface {
	Add(ctx context.Context, userID string, amount int64, issuerID string) error
	List(ctx context.Context, userID string) ([]domain.Fine, error)
	RemoveOwnedTx(ctx context.Context, tx *sql.Tx, fineID int64, userID string) (bool, error)
}

// Service exposes the economy operations consumed by the command layer.
type Service struct {
	conns  connSource
	ledger ledgerStore
	fines  fineStore
	logger *logrus.Entry
}

// NewService constructs the economy service.
func NewService(conns connSource, ledger ledgerStore, fines fineStore, logger *logrus.Entry) *Service {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Service{
		conns:  conns,
		ledger: ledger,
		fines:  fines,
		logger: logger,
	}
}

// Balance returns the user's current balance.
func (s *Service) Balance(ctx context.Context, userID string) (int64, error) {
	return s.ledger.Balance(ctx, userID)
}

// Credit applies a positive or negative delta outside any composite flow.
func (s *Service) Credit(ctx context.Context, userID string, delta int64) error {
	return s.ledger.ChangeBalance(ctx, userID, delta)
}

// IssueFine records a fine against a user.
func (s *Service) IssueFine(ctx context.Context, userID string, amount int64, issuerID string) error {
	if amount <= 0 {
		return errors.New("fine amount must be positive")
	}

	return s.fines.Add(ctx, userID, amount, issuerID)
}

// ListFines returns the user's outstanding fines in insertion order.
func (s *Service) ListFines(ctx context.Context, userID string) ([]domain.Fine, error) {
	return s.fines.List(ctx, userID)
}

// PayFine settles the fine at the given position in the user's current fine
// list. The list is re-fetched so a stale display cannot pay the wrong fine,
// and the balance is re-checked before any money moves.
//
// Contract: the conditional delete runs before the debit, and both run inside
// one transaction. If the process dies mid-settlement the fine is either
// still outstanding with the balance untouched, or cleared with the balance
// debited; a crash can never take the money while leaving the debt.
func (s *Service) PayFine(ctx context.Context, userID string, index int) (int64, error) {
	if s == nil || s.conns == nil {
		return 0, errors.New("economy service is not initialized")
	}

	fines, err := s.fines.List(ctx, userID)
	if err != nil {
		return 0, err
	}

	if index < 0 || index >= len(fines) {
		return 0, domain.ErrStaleReference
	}
	fine := fines[index]

	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return 0, err
	}

	if balance < fine.Amount {
		return 0, &domain.InsufficientFundsError{Balance: balance, Amount: fine.Amount}
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin settlement: %w", err)
	}
	defer tx.Rollback()

	removed, err := s.fines.RemoveOwnedTx(ctx, tx, fine.ID, userID)
	if err != nil {
		return 0, err
	}
	if !removed {
		return 0, domain.ErrStaleReference
	}

	if err := s.ledger.ApplyDeltaTx(ctx, tx, userID, -fine.Amount); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit settlement: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"event":   "fine_paid",
		"user_id": userID,
		"fine_id": fine.ID,
		"amount":  fine.Amount,
	}).Info("fine settled")

	newBalance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		// The settlement committed; report the computed balance rather than
		// failing the whole operation on a follow-up read.
		return balance - fine.Amount, nil
	}

	return newBalance, nil
}

// Transfer moves amount from one user to another as two deltas in one
// transaction, failing with InsufficientFunds when the sender cannot cover it.
func (s *Service) Transfer(ctx context.Context, fromID, toID string, amount int64) error {
	if s == nil || s.conns == nil {
		return errors.New("economy service is not initialized")
	}
	if amount <= 0 {
		return errors.New("transfer amount must be positive")
	}
	if fromID == toID {
		return errors.New("cannot transfer to yourself")
	}

	balance, err := s.ledger.Balance(ctx, fromID)
	if err != nil {
		return err
	}

	if balance < amount {
		return &domain.InsufficientFundsError{Balance: balance, Amount: amount}
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer tx.Rollback()

	if err := s.ledger.ApplyDeltaTx(ctx, tx, fromID, -amount); err != nil {
		return err
	}

	if err := s.ledger.ApplyDeltaTx(ctx, tx, toID, amount); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transfer: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"event":   "transfer",
		"from_id": fromID,
		"to_id":   toID,
		"amount":  amount,
	}).Info("transfer applied")

	return nil
}
