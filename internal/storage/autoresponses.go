package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"discord_assistant_bot/internal/domain"
	"discord_assistant_bot/internal/logging"
)

// AutoResponseStore persists per-guild keyword auto-responses. Triggers are
// normalized to lowercase so lookups match regardless of message casing.
type AutoResponseStore struct {
	conns  connSource
	logger *logrus.Entry
}

// NewAutoResponseStore constructs an AutoResponseStore.
func NewAutoResponseStore(conns connSource, logger *logrus.Entry) *AutoResponseStore {
	if logger == nil {
		logger = logging.Logger()
	}

	return &AutoResponseStore{
		conns:  conns,
		logger: logger,
	}
}

// Set adds or replaces the response for a trigger within a guild.
func (s *AutoResponseStore) Set(ctx context.Context, guildID, trigger, response string) error {
	if s == nil || s.conns == nil {
		return errors.New("auto response store is not initialized")
	}
	if guildID == "" {
		return errors.New("guild id is required")
	}

	trigger = normalizeTrigger(trigger)
	if trigger == "" {
		return errors.New("trigger is required")
	}
	if strings.TrimSpace(response) == "" {
		return errors.New("response is required")
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO auto_responses (guild_id, trigger, response) VALUES ($1, $2, $3)
		 ON CONFLICT (guild_id, trigger) DO UPDATE SET response = EXCLUDED.response, updated_at = now()`,
		guildID, trigger, response,
	); err != nil {
		return fmt.Errorf("upsert auto response: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"event":    "auto_response_set",
		"guild_id": guildID,
		"trigger":  trigger,
	}).Info("auto response stored")

	return nil
}

// Remove deletes a trigger from a guild, reporting whether it existed.
func (s *AutoResponseStore) Remove(ctx context.Context, guildID, trigger string) (bool, error) {
	if s == nil || s.conns == nil {
		return false, errors.New("auto response store is not initialized")
	}
	if guildID == "" {
		return false, errors.New("guild id is required")
	}

	trigger = normalizeTrigger(trigger)
	if trigger == "" {
		return false, errors.New("trigger is required")
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return false, err
	}

	result, err := db.ExecContext(ctx,
		`DELETE FROM auto_responses WHERE guild_id = $1 AND trigger = $2`,
		guildID, trigger,
	)
	if err != nil {
		return false, fmt.Errorf("delete auto response: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("confirm auto response deletion: %w", err)
	}

	return affected > 0, nil
}

// List returns every auto response configured for a guild.
func (s *AutoResponseStore) List(ctx context.Context, guildID string) ([]domain.AutoResponse, error) {
	if s == nil || s.conns == nil {
		return nil, errors.New("auto response store is not initialized")
	}
	if guildID == "" {
		return nil, errors.New("guild id is required")
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT guild_id, trigger, response, created_at, updated_at
		 FROM auto_responses WHERE guild_id = $1 ORDER BY trigger`,
		guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("query auto responses: %w", err)
	}
	defer rows.Close()

	var responses []domain.AutoResponse
	for rows.Next() {
		var resp domain.AutoResponse
		if err := rows.Scan(&resp.GuildID, &resp.Trigger, &resp.Response, &resp.CreatedAt, &resp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan auto response: %w", err)
		}
		responses = append(responses, resp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate auto responses: %w", err)
	}

	return responses, nil
}

// Lookup returns the response whose trigger equals the lowercased message
// content, if any.
func (s *AutoResponseStore) Lookup(ctx context.Context, guildID, content string) (string, bool, error) {
	if s == nil || s.conns == nil {
		return "", false, errors.New("auto response store is not initialized")
	}
	if guildID == "" {
		return "", false, errors.New("guild id is required")
	}

	trigger := normalizeTrigger(content)
	if trigger == "" {
		return "", false, nil
	}

	db, err := s.conns.Conn(ctx)
	if err != nil {
		return "", false, err
	}

	var response string
	err = db.QueryRowContext(ctx,
		`SELECT response FROM auto_responses WHERE guild_id = $1 AND trigger = $2`,
		guildID, trigger,
	).Scan(&response)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query auto response: %w", err)
	}

	return response, true, nil
}

func normalizeTrigger(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
