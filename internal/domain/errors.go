package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected, user-facing failures. Command handlers match
// on these and render localized messages; raw driver errors never reach the
// user as the primary message.
var (
	// ErrStaleReference means a previously displayed fine no longer exists,
	// typically because it was paid or removed between display and action.
	ErrStaleReference = errors.New("referenced fine no longer exists")

	// ErrInvalidCategory means the selected ticket category is not among the
	// guild's current channel categories.
	ErrInvalidCategory = errors.New("selected category does not exist")

	// ErrNotConnected means the database handle could not be established
	// within the retry budget.
	ErrNotConnected = errors.New("database is not connected")
)

// InsufficientFundsError reports a debit attempt exceeding the current
// balance, including the shortfall for display.
type InsufficientFundsError struct {
	Balance int64
	Amount  int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: balance %d, required %d (short %d)", e.Balance, e.Amount, e.Shortfall())
}

// Shortfall returns how much is missing to cover the amount.
func (e *InsufficientFundsError) Shortfall() int64 {
	return e.Amount - e.Balance
}

// AlreadyOpenError reports that the user already has an open support ticket
// in the guild, carrying the existing channel so handlers can link to it.
type AlreadyOpenError struct {
	ChannelID string
}

func (e *AlreadyOpenError) Error() string {
	return fmt.Sprintf("support ticket already open in channel %s", e.ChannelID)
}

// OrphanedChannelError reports that a channel was created on the platform but
// the local record could not be written. The channel is not rolled back; the
// error is logged for operator follow-up.
type OrphanedChannelError struct {
	ChannelID string
	Cause     error
}

func (e *OrphanedChannelError) Error() string {
	return fmt.Sprintf("support channel %s created but not recorded: %v", e.ChannelID, e.Cause)
}

func (e *OrphanedChannelError) Unwrap() error {
	return e.Cause
}
