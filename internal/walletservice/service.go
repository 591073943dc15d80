// Package walletservice manages player deposit and withdrawal orders.
//
// A deposit is a pending order handed to the payment provider and
// credited only when the provider webhook confirms it. A withdrawal is
// a pending debit that enters the manual approval queue; the payout is
// initiated after a second admin approves it.
package walletservice

import (
	"context"
	"fmt"
	"time"

	"github.com/goldspin/casino-ledger/internal/domain"
	"github.com/goldspin/casino-ledger/internal/ledgerservice"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Ledger provides the ledger operations needed by the wallet.
//
//go:generate mockgen -source service.go -destination service_mock.go -package walletservice
type Ledger interface {
	CreateOrder(ctx context.Context, arg domain.CreateTransactionParams) (domain.Transaction, error)
	SetPaymentURL(ctx context.Context, id int64, paymentURL string) (domain.Transaction, error)
	FailOrder(ctx context.Context, externalRef, kind, reason string) (domain.Transaction, error)
	CreateAdjustment(ctx context.Context, arg ledgerservice.CreateAdjustmentParams) (domain.Transaction, error)
}

// AccountGetter provides the account lookups the wallet needs.
type AccountGetter interface {
	Get(ctx context.Context, playerID string) (domain.Account, error)
}

// PaymentOrderParams is the order hand-off to the payment provider.
type PaymentOrderParams struct {
	OrderID   string
	PlayerID  string
	Amount    string
	Currency  string
	NotifyURL string
}

// PaymentOrder is the provider's answer to an order hand-off.
type PaymentOrder struct {
	PaymentURL string
}

// PaymentProvider initiates payment orders with the external processor.
type PaymentProvider interface {
	CreateOrder(ctx context.Context, arg PaymentOrderParams) (PaymentOrder, error)
}

// Service facilitates wallet service layer logic.
type Service struct {
	ledger    Ledger
	accounts  AccountGetter
	provider  PaymentProvider
	notifyURL string
}

// New returns wallet service struct to manage deposit and withdrawal orders.
func New(l Ledger, ag AccountGetter, p PaymentProvider, notifyURL string) *Service {
	return &Service{
		ledger:    l,
		accounts:  ag,
		provider:  p,
		notifyURL: notifyURL,
	}
}

// CreateOrderParams is the player-facing input of a wallet order. The
// amount is unsigned; the order kind fixes the sign on the ledger row.
type CreateOrderParams struct {
	PlayerID string
	Amount   string
	Currency string
	Remarks  string
}

func orderRef(prefix string) string {
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().Unix(), uuid.NewString()[:8])
}

func parseOrderAmount(amount string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil || !d.IsPositive() {
		return d, domain.ErrInvalidAmount
	}

	return d, nil
}

// CreateDeposit opens a pending deposit order and hands it to the
// payment provider. The balance is untouched until the provider webhook
// confirms the payment; a failed hand-off closes the order as failed.
func (s *Service) CreateDeposit(ctx context.Context, arg CreateOrderParams) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	amount, err := parseOrderAmount(arg.Amount)
	if err != nil {
		return domain.Transaction{}, err
	}

	account, err := s.accounts.Get(ctx, arg.PlayerID)
	if err != nil {
		return domain.Transaction{}, err
	}

	if account.Status != domain.AccountStatusActive {
		return domain.Transaction{}, domain.ErrAccountDisabled
	}

	currency := arg.Currency
	if currency == "" {
		currency = account.Currency
	}

	order, err := s.ledger.CreateOrder(ctx, domain.CreateTransactionParams{
		PlayerID:    arg.PlayerID,
		Kind:        domain.KindDeposit,
		Amount:      amount.String(),
		Currency:    currency,
		ExternalRef: orderRef("DEP"),
		CreatedBy:   domain.SystemActor,
		Remarks:     arg.Remarks,
	})
	if err != nil {
		return order, err
	}

	payment, err := s.provider.CreateOrder(ctx, PaymentOrderParams{
		OrderID:   order.ExternalRef,
		PlayerID:  arg.PlayerID,
		Amount:    amount.String(),
		Currency:  currency,
		NotifyURL: s.notifyURL,
	})
	if err != nil {
		l.Error().Err(err).Str("order_id", order.ExternalRef).Msg("payment provider hand-off failed")

		if _, failErr := s.ledger.FailOrder(ctx, order.ExternalRef, domain.KindDeposit, "provider hand-off failed"); failErr != nil {
			l.Error().Err(failErr).Str("order_id", order.ExternalRef).Send()
		}

		return domain.Transaction{}, err
	}

	return s.ledger.SetPaymentURL(ctx, order.ID, payment.PaymentURL)
}

// CreateWithdrawal places a withdrawal request into the manual approval
// queue as a pending debit. Funds leave the balance only when a second
// admin approves the request.
func (s *Service) CreateWithdrawal(ctx context.Context, arg CreateOrderParams) (domain.Transaction, error) {
	amount, err := parseOrderAmount(arg.Amount)
	if err != nil {
		return domain.Transaction{}, err
	}

	return s.ledger.CreateAdjustment(ctx, ledgerservice.CreateAdjustmentParams{
		PlayerID:  arg.PlayerID,
		Amount:    amount.Neg().String(),
		Kind:      domain.KindWithdrawal,
		Currency:  arg.Currency,
		Remarks:   arg.Remarks,
		CreatedBy: domain.SystemActor,
	})
}
