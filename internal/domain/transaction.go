package domain

import (
	"errors"
	"time"
)

var (
	// ErrTransactionNotFound indicates that the transaction is not found.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInvalidAmount indicates an amount that does not parse as a decimal or is zero.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidKind indicates a transaction kind the ledger does not accept for the operation.
	ErrInvalidKind = errors.New("invalid transaction kind")
	// ErrAmountSignMismatch indicates an amount whose sign contradicts the transaction kind.
	ErrAmountSignMismatch = errors.New("amount sign does not match transaction kind")
	// ErrInvalidTransactionState indicates a state transition the transaction status machine forbids.
	ErrInvalidTransactionState = errors.New("invalid transaction state")
	// ErrSelfApproval indicates that the creator of an adjustment tried to approve it.
	ErrSelfApproval = errors.New("adjustment cannot be approved by its creator")
	// ErrNotReversible indicates a reversal target whose kind cannot be reversed.
	ErrNotReversible = errors.New("transaction kind is not reversible")
)

// Transaction kinds. The amount sign is fixed per kind: bet and
// withdrawal are debits (negative), win and deposit are credits
// (positive), adjustment and rollback carry either sign.
const (
	KindBet        = "bet"
	KindWin        = "win"
	KindRollback   = "rollback"
	KindDeposit    = "deposit"
	KindWithdrawal = "withdrawal"
	KindAdjustment = "adjustment"
)

// Transaction statuses.
//
// pending -> completed, pending -> failed, completed -> reversed.
// Rows are otherwise immutable once written.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusReversed  = "reversed"
)

// SystemActor is recorded as the creator of transactions that originate
// from provider callbacks and webhooks rather than a named admin.
const SystemActor = "system"

// Transaction is one balance-affecting event. ExternalRef is the
// caller-supplied idempotency key; at most one completed transaction
// exists per (ExternalRef, Kind).
type Transaction struct {
	ID            int64     `json:"id"`
	PlayerID      string    `json:"player_id"`
	Kind          string    `json:"kind"`
	Status        string    `json:"status"`
	Amount        string    `json:"amount"` // signed: positive credit, negative debit
	Currency      string    `json:"currency"`
	ExternalRef   string    `json:"external_ref"`
	BalanceBefore string    `json:"balance_before"`
	BalanceAfter  string    `json:"balance_after"`
	RoundID       string    `json:"round_id,omitempty"`
	PaymentURL    string    `json:"payment_url,omitempty"`
	CreatedBy     string    `json:"created_by"`
	ApprovedBy    string    `json:"approved_by,omitempty"`
	Remarks       string    `json:"remarks,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ApprovedAt    time.Time `json:"approved_at,omitempty"`
}

// CreateTransactionParams is the input data for a new transaction row.
type CreateTransactionParams struct {
	PlayerID    string `json:"player_id"`
	Kind        string `json:"kind"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	ExternalRef string `json:"external_ref"`
	RoundID     string `json:"round_id"`
	CreatedBy   string `json:"created_by"`
	Remarks     string `json:"remarks"`
}

// ApplyResult is the outcome of applying an external event. Duplicate
// reports an idempotent replay: Transaction then holds the original row
// and no balance was touched.
type ApplyResult struct {
	Transaction Transaction `json:"transaction"`
	Duplicate   bool        `json:"duplicate"`
}

// ListTransactionsParams filters the transaction listing for the
// finance screens.
type ListTransactionsParams struct {
	PlayerID string `json:"player_id"`
	Kind     string `json:"kind"`
	Status   string `json:"status"`
	Limit    int32  `json:"limit"`
	Offset   int32  `json:"offset"`
}

// DebitKind reports whether the kind moves money out of the account.
func DebitKind(kind string) bool {
	return kind == KindBet || kind == KindWithdrawal
}

// CreditKind reports whether the kind moves money into the account.
func CreditKind(kind string) bool {
	return kind == KindWin || kind == KindDeposit
}

// ReversibleKind reports whether a completed transaction of this kind
// may be the target of a rollback.
func ReversibleKind(kind string) bool {
	return DebitKind(kind) || CreditKind(kind)
}
