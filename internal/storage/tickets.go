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

// SupportTicketStore records support ticket channels. The partial unique
// index on (guild_id, user_id) WHERE status='open' is the database-level
// backstop for the one-open-ticket invariant; the flow re-checks at creation
// time as well.
type SupportTicketStore struct {
	conns  connSource
	logger *logrus.Entry
}

// NewSupportTicketStore constructs a SupportTicketStore.
func NewSupportTicketStore(conns connSource, logger *logrus.Entry) *SupportTicketStore {
	if logger == nil {
		logger = logging.Logger()
	}

	return &SupportTicketStore{
		conns:  conns,
		logger: logger,
	}
}

// FindOpen returns the open ticket for (guild, user) when one exists.
func (s *SupportTicketStore) FindOpen(ctx context.Context, guildID, userID string) (domain.SupportTicket, bool, error) {
	if s == nil || s.conns == nil {
		return domain.SupportTicket{}, false, errors.New("support ticket store is not initialized")
	}
	if guildID == "" || userID == "" {
		return domain.SupportTicket{}, false, errors.New("guild id and user id are required")
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return domain.SupportTicket{}, false, err
	}

	var ticket domain.SupportTicket
	err = db.QueryRowContext(ctx,
		`SELECT id, guild_id, channel_id, user_id, category, status
		 FROM support_tickets WHERE guild_id = $1 AND user_id = $2 AND status = $3`,
		guildID, userID, domain.TicketStatusOpen,
	).Scan(&ticket.ID, &ticket.GuildID, &ticket.ChannelID, &ticket.UserID, &ticket.Category, &ticket.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SupportTicket{}, false, nil
	}
	if err != nil {
		return domain.SupportTicket{}, false, fmt.Errorf("query open ticket: %w", err)
	}

	return ticket, true, nil
}

// Create records a new open ticket and returns its id. The unique index
// rejects a second open ticket for the same (guild, user).
func (s *SupportTicketStore) Create(ctx context.Context, ticket domain.SupportTicket) (int64, error) {
	if s == nil || s.conns == nil {
		return 0, errors.New("support ticket store is not initialized")
	}
	if ticket.GuildID == "" || ticket.UserID == "" || ticket.ChannelID == "" {
		return 0, errors.New("guild id, user id, and channel id are required")
	}
	if ticket.Category == "" {
		return 0, errors.New("category is required")
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return 0, err
	}

	var id int64
	err = db.QueryRowContext(ctx,
		`INSERT INTO support_tickets (guild_id, channel_id, user_id, category, status)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		ticket.GuildID, ticket.ChannelID, ticket.UserID, ticket.Category, domain.TicketStatusOpen,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert support ticket: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"event":      "support_ticket_recorded",
		"guild_id":   ticket.GuildID,
		"user_id":    ticket.UserID,
		"channel_id": ticket.ChannelID,
		"category":   ticket.Category,
	}).Info("support ticket recorded")

	return id, nil
}

// Close marks the ticket for a channel closed, reporting whether an open row
// was found.
func (s *SupportTicketStore) Close(ctx context.Context, channelID string) (bool, error) {
	if s == nil || s.conns == nil {
		return false, errors.New("support ticket store is not initialized")
	}
	if channelID == "" {
		return false, errors.New("channel id is required")
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return false, err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE support_tickets SET status = $2 WHERE channel_id = $1 AND status = $3`,
		channelID, domain.TicketStatusClosed, domain.TicketStatusOpen,
	)
	if err != nil {
		return false, fmt.Errorf("close support ticket: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("confirm ticket close: %w", err)
	}

	return affected > 0, nil
}
