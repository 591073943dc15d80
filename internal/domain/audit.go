package domain

import "time"

// Audit actions emitted by the ledger.
const (
	AuditActionApply              = "ledger.apply"
	AuditActionReverse            = "ledger.reverse"
	AuditActionAdjustmentCreated  = "ledger.adjustment.created"
	AuditActionAdjustmentApproved = "ledger.adjustment.approved"
	AuditActionAdjustmentRejected = "ledger.adjustment.rejected"
	AuditActionDepositSettled     = "ledger.deposit.settled"
	AuditActionOrderFailed        = "ledger.order.failed"
)

// AuditEvent is one append-only compliance record. Payload is masked
// before it leaves the sink; HashPrev/HashCurr chain consecutive rows
// so that rewriting history is detectable.
type AuditEvent struct {
	ID            int64             `json:"id"`
	TransactionID int64             `json:"transaction_id,omitempty"`
	Action        string            `json:"action"`
	Actor         string            `json:"actor"`
	PlayerID      string            `json:"player_id"`
	Amount        string            `json:"amount,omitempty"`
	BalanceBefore string            `json:"balance_before,omitempty"`
	BalanceAfter  string            `json:"balance_after,omitempty"`
	Payload       map[string]string `json:"payload,omitempty"`
	HashPrev      string            `json:"hash_prev"`
	HashCurr      string            `json:"hash_curr"`
	RecordedAt    time.Time         `json:"recorded_at"`
}
