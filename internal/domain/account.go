// Package domain provides defenitions of all entities.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountDisabled indicates that the account is soft-disabled.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountAlreadyExists indicates that the account with the given player id already exists.
	ErrAccountAlreadyExists = errors.New("account already exists")
	// ErrInsufficientBalance indicates that the account does not have sufficient balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Account statuses. Accounts are never deleted, only disabled.
const (
	AccountStatusActive   = "active"
	AccountStatusDisabled = "disabled"
)

// Account holds the current balance of a single player.
//
// Balance is mutated exclusively through the ledger; no other component
// writes it. It is carried as a decimal string to keep binary floating
// point out of money arithmetic.
type Account struct {
	PlayerID  string    `json:"player_id"`
	Balance   string    `json:"balance"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
