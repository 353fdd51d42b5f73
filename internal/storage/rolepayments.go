package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"discord_assistant_bot/internal/domain"
	"discord_assistant_bot/internal/logging"
)

// RolePaymentStore keeps the recurring-payment configuration and the
// last-run bookkeeping per role.
type RolePaymentStore struct {
	conns  connSource
	logger *logrus.Entry
}

// NewRolePaymentStore constructs a RolePaymentStore.
func NewRolePaymentStore(conns connSource, logger *logrus.Entry) *RolePaymentStore {
	if logger == nil {
		logger = logging.Logger()
	}

	return &RolePaymentStore{
		conns:  conns,
		logger: logger,
	}
}

// Configure upserts the recurring amount for a role. A newly configured role
// gets a zero last_payment so the next scheduler pass pays it immediately;
// reconfiguring an existing role changes the amount without resetting the
// period.
func (s *RolePaymentStore) Configure(ctx context.Context, roleID string, amount int64) error {
	if s == nil || s.conns == nil {
		return errors.New("role payment store is not initialized")
	}
	if roleID == "" {
		return errors.New("role id is required")
	}
	if amount <= 0 {
		return errors.New("payment amount must be positive")
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO role_payments (role_id, amount, last_payment) VALUES ($1, $2, $3)
		 ON CONFLICT (role_id) DO UPDATE SET amount = EXCLUDED.amount`,
		roleID, amount, time.Time{},
	); err != nil {
		return fmt.Errorf("configure role payment: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"event":   "role_payment_configured",
		"role_id": roleID,
		"amount":  amount,
	}).Info("role payment configured")

	return nil
}

// List returns every configured role payment.
func (s *RolePaymentStore) List(ctx context.Context) ([]domain.RolePayment, error) {
	if s == nil || s.conns == nil {
		return nil, errors.New("role payment store is not initialized")
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT role_id, amount, last_payment FROM role_payments ORDER BY role_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query role payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.RolePayment
	for rows.Next() {
		var payment domain.RolePayment
		if err := rows.Scan(&payment.RoleID, &payment.Amount, &payment.LastPayment); err != nil {
			return nil, fmt.Errorf("scan role payment: %w", err)
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role payments: %w", err)
	}

	return payments, nil
}

// MarkPaid advances last_payment for a role. The scheduler calls this only
// after a fully successful disbursement pass for the role.
func (s *RolePaymentStore) MarkPaid(ctx context.Context, roleID string, paidAt time.Time) error {
	if s == nil || s.conns == nil {
		return errors.New("role payment store is not initialized")
	}
	if roleID == "" {
		return errors.New("role id is required")
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`UPDATE role_payments SET last_payment = $2 WHERE role_id = $1`,
		roleID, paidAt,
	); err != nil {
		return fmt.Errorf("mark role payment: %w", err)
	}

	return nil
}

// Remove deletes the recurring payment for a role.
func (s *RolePaymentStore) Remove(ctx context.Context, roleID string) error {
	if s == nil || s.conns == nil {
		return errors.New("role payment store is not initialized")
	}
	if roleID == "" {
		return errors.New("role id is required")
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM role_payments WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("remove role payment: %w", err)
	}

	return nil
}
