// Package autoresponder matches incoming messages against configured
// per-guild keyword triggers.
package autoresponder

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"discord_assistant_bot/internal/domain"
	"discord_assistant_bot/internal/logging"
)

type responseStore interface {
	Set(ctx context.Context, guildID, trigger, response string) error
	Remove(ctx context.Context, guildID, trigger string) (bool, error)
	List(ctx context.Context, guildID string) ([]domain.AutoResponse, error)
	Lookup(ctx context.Context, guildID, content string) (string, bool, error)
}

// Responder wraps the auto-response store for the message and command
// handlers.
type Responder struct {
	store  responseStore
	logger *logrus.Entry
}

// NewResponder constructs a Responder.
func NewResponder(store responseStore, logger *logrus.Entry) *Responder {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Responder{
		store:  store,
		logger: logger,
	}
}

// Reply returns the configured response when the full message content matches
// a trigger for the guild.
func (r *Responder) Reply(ctx context.Context, guildID, content string) (string, bool, error) {
	if r == nil || r.store == nil {
		return "", false, errors.New("responder is not initialized")
	}

	return r.store.Lookup(ctx, guildID, content)
}

// Set adds or replaces a trigger.
func (r *Responder) Set(ctx context.Context, guildID, trigger, response string) error {
	if r == nil || r.store == nil {
		return errors.New("responder is not initialized")
	}

	return r.store.Set(ctx, guildID, trigger, response)
}

// Remove deletes a trigger, reporting whether it existed.
func (r *Responder) Remove(ctx context.Context, guildID, trigger string) (bool, error) {
	if r == nil || r.store == nil {
		return false, errors.New("responder is not initialized")
	}

	return r.store.Remove(ctx, guildID, trigger)
}

// List returns the guild's configured responses.
func (r *Responder) List(ctx context.Context, guildID string) ([]domain.AutoResponse, error) {
	if r == nil || r.store == nil {
		return nil, errors.New("responder is not initialized")
	}

	return r.store.List(ctx, guildID)
}
