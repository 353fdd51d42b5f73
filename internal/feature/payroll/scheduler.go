// Package payroll runs the background loop applying recurring role-based
// payments.
package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"discord_assistant_bot/internal/domain"
	"discord_assistant_bot/internal/logging"
)

const (
	// DefaultPollInterval is how often the scheduler wakes to look for due
	// payments; it bounds worst-case staleness, independent of the period.
	DefaultPollInterval = time.Hour

	// DefaultPaymentPeriod is the wall-clock interval between disbursements
	// for a role.
	DefaultPaymentPeriod = 24 * time.Hour
)

type paymentStore interface {
	List(ctx context.Context) ([]domain.RolePayment, error)
	MarkPaid(ctx context.Context, roleID string, paidAt time.Time) error
}

type ledgerStore interface {
	ChangeBalance(ctx context.Context, userID string, delta int64) error
}

// MemberLister enumerates the current holders of a role via the platform.
type MemberLister interface {
	ListRoleMembers(ctx context.Context, roleID string) ([]string, error)
}

// Scheduler applies due role payments on a fixed poll interval. A pass that
// fails partway through a role does not advance that role's last_payment, so
// the whole role is retried on the next poll; per-member credits are
// therefore at-least-once within a period, an accepted trade-off over
// per-member idempotency keys. Nothing raised inside a pass escapes the loop.
type Scheduler struct {
	payments paymentStore
	ledger   ledgerStore
	members  MemberLister
	logger   *logrus.Entry

	pollInterval time.Duration
	period       time.Duration
	now          func() time.Time
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithPollInterval overrides the poll interval.
func WithPollInterval(interval time.Duration) Option {
	return func(s *Scheduler) {
		if interval > 0 {
			s.pollInterval = interval
		}
	}
}

// WithPaymentPeriod overrides the payment period.
func WithPaymentPeriod(period time.Duration) Option {
	return func(s *Scheduler) {
		if period > 0 {
			s.period = period
		}
	}
}

// WithClock overrides the time source; used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// NewScheduler constructs a Scheduler.
func NewScheduler(payments paymentStore, ledger ledgerStore, members MemberLister, logger *logrus.Entry, opts ...Option) *Scheduler {
	if logger == nil {
		logger = logging.Logger()
	}

	s := &Scheduler{
		payments:     payments,
		ledger:       ledger,
		members:      members,
		logger:       logger,
		pollInterval: DefaultPollInterval,
		period:       DefaultPaymentPeriod,
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run executes passes until the context is canceled. The first pass runs
// immediately so a restart does not delay overdue payments by a full poll
// interval.
func (s *Scheduler) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.logger.WithFields(logging.Fields{
		"event":         "payroll_start",
		"poll_interval": s.pollInterval.String(),
		"period":        s.period.String(),
	}).Info("payment scheduler started")

	s.passAndLog(ctx)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.WithField("event", "payroll_stop").Info("payment scheduler stopped")
			return
		case <-ticker.C:
			s.passAndLog(ctx)
		}
	}
}

func (s *Scheduler) passAndLog(ctx context.Context) {
	if err := s.RunPass(ctx); err != nil {
		s.logger.WithField("event", "payroll_pass_failed").WithError(err).Error("payment pass failed")
	}
}

// RunPass applies every due role payment once. Each role is handled
// independently: a failure crediting one role's members is logged and the
// role's bookkeeping left untouched, without blocking the remaining roles.
func (s *Scheduler) RunPass(ctx context.Context) error {
	if s == nil || s.payments == nil || s.ledger == nil || s.members == nil {
		return errors.New("payment scheduler is not initialized")
	}

	payments, err := s.payments.List(ctx)
	if err != nil {
		return fmt.Errorf("list role payments: %w", err)
	}

	now := s.now()
	var failed int
	for _, payment := range payments {
		if now.Sub(payment.LastPayment) < s.period {
			continue
		}

		if err := s.payRole(ctx, payment, now); err != nil {
			failed++
			s.logger.WithFields(logging.Fields{
				"event":   "role_payment_failed",
				"role_id": payment.RoleID,
			}).WithError(err).Error("role payment pass failed, will retry next poll")
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d role payment(s) failed", failed)
	}

	return nil
}

// payRole credits every current member of the role, then advances
// last_payment. Any failure before the advance leaves the role due.
func (s *Scheduler) payRole(ctx context.Context, payment domain.RolePayment, now time.Time) error {
	members, err := s.members.ListRoleMembers(ctx, payment.RoleID)
	if err != nil {
		return fmt.Errorf("list role members: %w", err)
	}

	for _, userID := range members {
		if err := s.ledger.ChangeBalance(ctx, userID, payment.Amount); err != nil {
			return fmt.Errorf("credit member %s: %w", userID, err)
		}
	}

	if err := s.payments.MarkPaid(ctx, payment.RoleID, now); err != nil {
		return fmt.Errorf("advance last payment: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"event":   "role_payment_applied",
		"role_id": payment.RoleID,
		"members": len(members),
		"amount":  payment.Amount,
	}).Info("role payment disbursed")

	return nil
}
