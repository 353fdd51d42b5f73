package storage

import (
	"context"
	"errors"
	"fmt"

	"discord_assistant_bot/internal/domain"
)

// StatsProvider exposes row counts for basic operator diagnostics without
// leaking SQL internals to callers.
type StatsProvider struct {
	conns connSource
}

// NewStatsProvider constructs a StatsProvider.
func NewStatsProvider(conns connSource) *StatsProvider {
	return &StatsProvider{conns: conns}
}

// CountAccounts returns the number of account rows.
func (p *StatsProvider) CountAccounts(ctx context.Context) (int64, error) {
	return p.count(ctx, `SELECT COUNT(*) FROM accounts`)
}

// CountOutstandingFines returns the number of unpaid fines.
func (p *StatsProvider) CountOutstandingFines(ctx context.Context) (int64, error) {
	return p.count(ctx, `SELECT COUNT(*) FROM fines`)
}

// CountOpenTickets returns the number of open support tickets.
func (p *StatsProvider) CountOpenTickets(ctx context.Context) (int64, error) {
	return p.count(ctx, `SELECT COUNT(*) FROM support_tickets WHERE status = $1`, domain.TicketStatusOpen)
}

func (p *StatsProvider) count(ctx context.Context, query string, args ...interface{}) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil || p.conns == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	db, err := p.conns.Conn(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}

	return count, nil
}
