// Package ledgerservice manages the business logic of the ledger: it
// validates balance-affecting events, delegates the atomic mutation to
// the repository and reports every decision to the audit sink.
package ledgerservice

import (
	"context"
	"fmt"
	"time"

	"github.com/goldspin/casino-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repo provides data access layer interface needed by ledger service layer.
//
//go:generate mockgen -source service.go -destination service_mock.go -package ledgerservice
type Repo interface {
	ApplyEvent(ctx context.Context, arg domain.CreateTransactionParams) (domain.ApplyResult, error)
	Reverse(ctx context.Context, externalRef, actor string) (domain.ApplyResult, error)
	CreatePending(ctx context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error)
	ApproveAdjustment(ctx context.Context, id int64, approvedBy string) (domain.Transaction, error)
	RejectAdjustment(ctx context.Context, id int64, rejectedBy, reason string) (domain.Transaction, error)
	SettleDeposit(ctx context.Context, externalRef string) (domain.ApplyResult, error)
	FailPending(ctx context.Context, externalRef, kind, reason string) (domain.Transaction, error)
	SetPaymentURL(ctx context.Context, id int64, paymentURL string) (domain.Transaction, error)
	Get(ctx context.Context, id int64) (domain.Transaction, error)
	FindByExternalRef(ctx context.Context, externalRef, kind string) (domain.Transaction, error)
	ListPending(ctx context.Context) ([]domain.Transaction, error)
	ListByAccount(ctx context.Context, playerID string, limit, offset int32) ([]domain.Transaction, error)
	List(ctx context.Context, arg domain.ListTransactionsParams) ([]domain.Transaction, error)
}

// AccountGetter provides the account lookups the ledger needs.
type AccountGetter interface {
	Get(ctx context.Context, playerID string) (domain.Account, error)
}

// Sink consumes ledger decisions for the audit trail. Implementations
// must never block or fail the calling mutation.
type Sink interface {
	Record(event domain.AuditEvent)
}

// Service facilitates ledger service layer logic.
type Service struct {
	repo     Repo
	accounts AccountGetter
	audit    Sink
}

// New returns ledger service struct to manage ledger bussines logic.
func New(lr Repo, ag AccountGetter, sink Sink) *Service {
	return &Service{
		repo:     lr,
		accounts: ag,
		audit:    sink,
	}
}

// ApplyEventParams is the normalized input of an external balance event.
type ApplyEventParams struct {
	ExternalRef string
	Kind        string
	PlayerID    string
	Amount      string
	Currency    string
	RoundID     string
	Remarks     string
}

func validateEventAmount(kind, amount string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return d, domain.ErrInvalidAmount
	}

	if d.IsZero() {
		return d, domain.ErrInvalidAmount
	}

	if domain.DebitKind(kind) && d.IsPositive() {
		return d, domain.ErrAmountSignMismatch
	}

	if domain.CreditKind(kind) && d.IsNegative() {
		return d, domain.ErrAmountSignMismatch
	}

	return d, nil
}

// ApplyEvent applies one external event with at-most-one balance effect
// per (external reference, kind). Replays return the originally
// committed transaction unchanged and emit no second audit entry.
func (s *Service) ApplyEvent(ctx context.Context, arg ApplyEventParams) (domain.ApplyResult, error) {
	l := zerolog.Ctx(ctx)

	if !domain.DebitKind(arg.Kind) && !domain.CreditKind(arg.Kind) {
		return domain.ApplyResult{}, domain.ErrInvalidKind
	}

	if _, err := validateEventAmount(arg.Kind, arg.Amount); err != nil {
		l.Info().Err(err).Str("external_ref", arg.ExternalRef).Send()
		return domain.ApplyResult{}, err
	}

	result, err := s.repo.ApplyEvent(ctx, domain.CreateTransactionParams{
		PlayerID:    arg.PlayerID,
		Kind:        arg.Kind,
		Amount:      arg.Amount,
		Currency:    arg.Currency,
		ExternalRef: arg.ExternalRef,
		RoundID:     arg.RoundID,
		CreatedBy:   domain.SystemActor,
		Remarks:     arg.Remarks,
	})
	if err != nil {
		return result, err
	}

	if !result.Duplicate {
		s.emit(domain.AuditActionApply, domain.SystemActor, result.Transaction, nil)
	}

	return result, nil
}

// Reverse writes the compensating transaction for the completed event
// with the given external reference. Replays are no-ops returning the
// prior rollback.
func (s *Service) Reverse(ctx context.Context, externalRef, actor string) (domain.ApplyResult, error) {
	if actor == "" {
		actor = domain.SystemActor
	}

	result, err := s.repo.Reverse(ctx, externalRef, actor)
	if err != nil {
		return result, err
	}

	if !result.Duplicate {
		s.emit(domain.AuditActionReverse, actor, result.Transaction, nil)
	}

	return result, nil
}

// GetBalance returns the account with the current balance.
func (s *Service) GetBalance(ctx context.Context, playerID string) (domain.Account, error) {
	return s.accounts.Get(ctx, playerID)
}

// CreateAdjustmentParams is the input of a manual balance adjustment.
type CreateAdjustmentParams struct {
	PlayerID  string
	Amount    string
	Kind      string // adjustment or withdrawal
	Currency  string
	Remarks   string
	CreatedBy string
}

// CreateAdjustment writes a pending manual adjustment. The balance is
// untouched until a different admin approves it; the non-negativity
// pre-check here is advisory, final enforcement happens atomically at
// approval time.
func (s *Service) CreateAdjustment(ctx context.Context, arg CreateAdjustmentParams) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	if arg.Kind == "" {
		arg.Kind = domain.KindAdjustment
	}

	if arg.Kind != domain.KindAdjustment && arg.Kind != domain.KindWithdrawal {
		return domain.Transaction{}, domain.ErrInvalidKind
	}

	amount, err := validateEventAmount(arg.Kind, arg.Amount)
	if err != nil {
		l.Info().Err(err).Send()
		return domain.Transaction{}, err
	}

	account, err := s.accounts.Get(ctx, arg.PlayerID)
	if err != nil {
		return domain.Transaction{}, err
	}

	if account.Status != domain.AccountStatusActive {
		return domain.Transaction{}, domain.ErrAccountDisabled
	}

	balance, err := decimal.NewFromString(account.Balance)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.Transaction{}, err
	}

	if balance.Add(amount).IsNegative() {
		return domain.Transaction{}, domain.ErrInsufficientBalance
	}

	currency := arg.Currency
	if currency == "" {
		currency = account.Currency
	}

	created, err := s.repo.CreatePending(ctx, domain.CreateTransactionParams{
		PlayerID:    arg.PlayerID,
		Kind:        arg.Kind,
		Amount:      arg.Amount,
		Currency:    currency,
		ExternalRef: adjustmentRef(arg.Kind),
		CreatedBy:   arg.CreatedBy,
		Remarks:     arg.Remarks,
	})
	if err != nil {
		return created, err
	}

	s.emit(domain.AuditActionAdjustmentCreated, arg.CreatedBy, created, nil)

	return created, nil
}

func adjustmentRef(kind string) string {
	prefix := "ADJ"
	if kind == domain.KindWithdrawal {
		prefix = "WD"
	}

	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().Unix(), uuid.NewString()[:8])
}

// ApproveAdjustment applies a pending adjustment under dual control:
// the approver must differ from the creator. On insufficient funds the
// adjustment stays pending and the error is surfaced.
func (s *Service) ApproveAdjustment(ctx context.Context, id int64, approvedBy string) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	pending, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Transaction{}, err
	}

	if pending.CreatedBy == approvedBy {
		l.Warn().Int64("transaction_id", id).Str("approver", approvedBy).Msg("self approval rejected")
		return domain.Transaction{}, domain.ErrSelfApproval
	}

	approved, err := s.repo.ApproveAdjustment(ctx, id, approvedBy)
	if err != nil {
		return approved, err
	}

	s.emit(domain.AuditActionAdjustmentApproved, approvedBy, approved, nil)

	return approved, nil
}

// RejectAdjustment transitions a pending adjustment to failed. Terminal.
func (s *Service) RejectAdjustment(ctx context.Context, id int64, rejectedBy, reason string) (domain.Transaction, error) {
	rejected, err := s.repo.RejectAdjustment(ctx, id, rejectedBy, reason)
	if err != nil {
		return rejected, err
	}

	s.emit(domain.AuditActionAdjustmentRejected, rejectedBy, rejected, nil)

	return rejected, nil
}

// SettleDeposit credits a confirmed deposit order. Idempotent per order.
func (s *Service) SettleDeposit(ctx context.Context, externalRef string) (domain.ApplyResult, error) {
	result, err := s.repo.SettleDeposit(ctx, externalRef)
	if err != nil {
		return result, err
	}

	if !result.Duplicate {
		s.emit(domain.AuditActionDepositSettled, domain.SystemActor, result.Transaction, nil)
	}

	return result, nil
}

// FailOrder marks a pending wallet order as failed.
func (s *Service) FailOrder(ctx context.Context, externalRef, kind, reason string) (domain.Transaction, error) {
	failed, err := s.repo.FailPending(ctx, externalRef, kind, reason)
	if err != nil {
		return failed, err
	}

	s.emit(domain.AuditActionOrderFailed, domain.SystemActor, failed, map[string]string{"reason": reason})

	return failed, nil
}

// CreateOrder writes a pending wallet order row for the wallet service.
func (s *Service) CreateOrder(ctx context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error) {
	return s.repo.CreatePending(ctx, arg)
}

// SetPaymentURL stores the provider checkout location on an order.
func (s *Service) SetPaymentURL(ctx context.Context, id int64, paymentURL string) (domain.Transaction, error) {
	return s.repo.SetPaymentURL(ctx, id, paymentURL)
}

// Get returns one transaction.
func (s *Service) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	return s.repo.Get(ctx, id)
}

// FindByExternalRef returns the transaction for the given external
// reference and kind.
func (s *Service) FindByExternalRef(ctx context.Context, externalRef, kind string) (domain.Transaction, error) {
	return s.repo.FindByExternalRef(ctx, externalRef, kind)
}

// ListPending returns the approval queue.
func (s *Service) ListPending(ctx context.Context) ([]domain.Transaction, error) {
	return s.repo.ListPending(ctx)
}

// ListByAccount returns the transactions of one account.
func (s *Service) ListByAccount(ctx context.Context, playerID string, pageSize, pageID int32) ([]domain.Transaction, error) {
	limit := pageSize
	offset := (pageID - 1) * pageSize

	return s.repo.ListByAccount(ctx, playerID, limit, offset)
}

// List returns transactions filtered for the finance screens.
func (s *Service) List(ctx context.Context, arg domain.ListTransactionsParams) ([]domain.Transaction, error) {
	return s.repo.List(ctx, arg)
}

func (s *Service) emit(action, actor string, t domain.Transaction, payload map[string]string) {
	s.audit.Record(domain.AuditEvent{
		TransactionID: t.ID,
		Action:        action,
		Actor:         actor,
		PlayerID:      t.PlayerID,
		Amount:        t.Amount,
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		Payload:       payload,
		RecordedAt:    time.Now().UTC(),
	})
}
