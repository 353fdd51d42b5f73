package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements are idempotent create-if-absent statements applied inside
// one transaction whenever a connection is (re)established. The schema is the
// authoritative external contract; altering a table here is a breaking change
// for anything else reading the database.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		user_id TEXT PRIMARY KEY,
		balance BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS fines (
		id BIGSERIAL PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount BIGINT NOT NULL,
		issuer_id TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fines_user ON fines(user_id)`,
	`CREATE TABLE IF NOT EXISTS role_payments (
		role_id TEXT PRIMARY KEY,
		amount BIGINT NOT NULL,
		last_payment TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS support_tickets (
		id BIGSERIAL PRIMARY KEY,
		guild_id TEXT NOT NULL,
		channel_id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'open'
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_support_open
		ON support_tickets(guild_id, user_id) WHERE status = 'open'`,
	`CREATE TABLE IF NOT EXISTS auto_responses (
		guild_id TEXT NOT NULL,
		trigger TEXT NOT NULL,
		response TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (guild_id, trigger)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_guild_trigger ON auto_responses(guild_id, trigger)`,
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}

	return nil
}
