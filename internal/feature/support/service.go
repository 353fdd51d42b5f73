// Package support implements the support-ticket-channel workflow: panel
// category selection, per-user uniqueness, and closure.
package support

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"discord_assistant_bot/internal/domain"
	"discord_assistant_bot/internal/logging"
)

// Category is a guild channel category as reported live by the platform.
type Category struct {
	ID   string
	Name string
}

// CategoryLister reports the guild's current channel categories. Categories
// are never cached; every creation validates against a live listing.
type CategoryLister interface {
	ListCategories(ctx context.Context, guildID string) ([]Category, error)
}

// ChannelCreator creates the private ticket channel with permission
// overwrites restricting it to the requesting user and staff.
type ChannelCreator interface {
	CreateTicketChannel(ctx context.Context, guildID, categoryID, userID string) (string, error)
}

// Notifier delivers a direct message to a user. Failures are logged, never
// fatal to the flow.
type Notifier interface {
	SendDirectMessage(ctx context.Context, userID, content string) error
}

type ticketStore interface {
	FindOpen(ctx context.Context, guildID, userID string) (domain.SupportTicket, bool, error)
	Create(ctx context.Context, ticket domain.SupportTicket) (int64, error)
	Close(ctx context.Context, channelID string) (bool, error)
}

// Service orchestrates ticket channel creation against the store and the
// platform collaborators.
type Service struct {
	tickets  ticketStore
	lister   CategoryLister
	creator  ChannelCreator
	notifier Notifier
	logger   *logrus.Entry
}

// NewService constructs the support service. The notifier is optional.
func NewService(tickets ticketStore, lister CategoryLister, creator ChannelCreator, notifier Notifier, logger *logrus.Entry) *Service {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Service{
		tickets:  tickets,
		lister:   lister,
		creator:  creator,
		notifier: notifier,
		logger:   logger,
	}
}

// Create opens a support ticket channel for the user. The open-ticket check
// runs here, at creation time, so two rapid panel selections by the same user
// cannot both succeed. The channel is created on the platform first and
// recorded after; a record failure leaves the external channel orphaned and
// is surfaced for operator follow-up rather than retried.
func (s *Service) Create(ctx context.Context, guildID, userID, categoryID string) (domain.SupportTicket, error) {
	if s == nil || s.tickets == nil || s.lister == nil || s.creator == nil {
		return domain.SupportTicket{}, errors.New("support service is not initialized")
	}

	existing, found, err := s.tickets.FindOpen(ctx, guildID, userID)
	if err != nil {
		return domain.SupportTicket{}, err
	}
	if found {
		return existing, &domain.AlreadyOpenError{ChannelID: existing.ChannelID}
	}

	categories, err := s.lister.ListCategories(ctx, guildID)
	if err != nil {
		return domain.SupportTicket{}, fmt.Errorf("list categories: %w", err)
	}

	var category Category
	for _, candidate := range categories {
		if candidate.ID == categoryID {
			category = candidate
			break
		}
	}
	if category.ID == "" {
		return domain.SupportTicket{}, domain.ErrInvalidCategory
	}

	channelID, err := s.creator.CreateTicketChannel(ctx, guildID, categoryID, userID)
	if err != nil {
		return domain.SupportTicket{}, fmt.Errorf("create ticket channel: %w", err)
	}

	ticket := domain.SupportTicket{
		GuildID:   guildID,
		ChannelID: channelID,
		UserID:    userID,
		Category:  category.Name,
		Status:    domain.TicketStatusOpen,
	}

	id, err := s.tickets.Create(ctx, ticket)
	if err != nil {
		orphan := &domain.OrphanedChannelError{ChannelID: channelID, Cause: err}
		s.logger.WithFields(logging.Fields{
			"event":      "support_ticket_orphaned",
			"guild_id":   guildID,
			"user_id":    userID,
			"channel_id": channelID,
		}).WithError(err).Error("ticket channel created but not recorded")

		return domain.SupportTicket{}, orphan
	}
	ticket.ID = id

	if s.notifier != nil {
		if err := s.notifier.SendDirectMessage(ctx, userID, "Your support ticket is open: <#"+channelID+">"); err != nil {
			s.logger.WithFields(logging.Fields{
				"event":   "support_dm_failed",
				"user_id": userID,
			}).WithError(err).Warn("could not notify user of new ticket")
		}
	}

	return ticket, nil
}

// Close marks the ticket for a channel closed, reporting whether an open
// ticket existed.
func (s *Service) Close(ctx context.Context, channelID string) (bool, error) {
	if s == nil || s.tickets == nil {
		return false, errors.New("support service is not initialized")
	}

	closed, err := s.tickets.Close(ctx, channelID)
	if err != nil {
		return false, err
	}

	if closed {
		s.logger.WithFields(logging.Fields{
			"event":      "support_ticket_closed",
			"channel_id": channelID,
		}).Info("support ticket closed")
	}

	return closed, nil
}
