// Package domain defines shared domain types and the user-facing error taxonomy.
package domain

import "time"

// Support ticket channel statuses.
const (
	TicketStatusOpen   = "open"
	TicketStatusClosed = "closed"
)

// Account holds the authoritative balance for a single Discord user. Rows are
// created lazily on the first balance change.
type Account struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

// Fine is an outstanding debt issued against a user. Presence in the store
// means the fine is unpaid; paying a fine deletes the row.
type Fine struct {
	ID       int64  `json:"id"`
	UserID   string `json:"user_id"`
	Amount   int64  `json:"amount"`
	IssuerID string `json:"issuer_id"`
}

// RolePayment configures a recurring credit for every holder of a role.
// LastPayment advances only after a fully successful disbursement pass.
type RolePayment struct {
	RoleID      string    `json:"role_id"`
	Amount      int64     `json:"amount"`
	LastPayment time.Time `json:"last_payment"`
}

// SupportTicket records a private support channel opened through the panel.
// At most one open ticket exists per (guild, user).
type SupportTicket struct {
	ID        int64  `json:"id"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	Category  string `json:"category"`
	Status    string `json:"status"`
}

// AutoResponse maps a lowercased trigger phrase to a canned reply within a
// guild.
type AutoResponse struct {
	GuildID   string    `json:"guild_id"`
	Trigger   string    `json:"trigger"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
