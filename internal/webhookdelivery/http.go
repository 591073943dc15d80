// Package webhookdelivery receives asynchronous payment provider
// notifications and settles the matching wallet orders. Every
// notification is authenticated with an HMAC signature and settled at
// most once; redeliveries acknowledge without a second balance effect.
package webhookdelivery

import (
	"context"
	"net/http"
	"strings"

	"github.com/goldspin/casino-ledger/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Service provides the ledger operations needed by the webhook adapter.
//
//go:generate mockgen -source http.go -destination http_mock.go -package webhookdelivery
type Service interface {
	SettleDeposit(ctx context.Context, externalRef string) (domain.ApplyResult, error)
	FailOrder(ctx context.Context, externalRef, kind, reason string) (domain.Transaction, error)
	Reverse(ctx context.Context, externalRef, actor string) (domain.ApplyResult, error)
}

// Order reference prefixes assigned at order creation.
const (
	DepositRefPrefix    = "DEP-"
	WithdrawalRefPrefix = "WD-"
)

// Provider notification statuses.
const (
	statusPaid      = "paid"
	statusConfirmed = "confirmed"
	statusSuccess   = "success"
	statusExpired   = "expired"
	statusFailed    = "failed"
	statusCancelled = "cancelled"
)

// Handler facilitates the payment webhook endpoint.
type Handler struct {
	service Service
	secret  string
}

// NewHandler returns the webhook handler verifying with the given
// pre-shared secret.
func NewHandler(s Service, secret string) *Handler {
	return &Handler{service: s, secret: secret}
}

// Webhook authentication headers.
const (
	TimestampHeader = "timestamp"
	SignatureHeader = "sign"
)

type webhookRequest struct {
	OrderID  string `json:"order_id" binding:"required"`
	Status   string `json:"status" binding:"required"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (r webhookRequest) signedFields() map[string]string {
	return map[string]string{
		"order_id": r.OrderID,
		"status":   r.Status,
		"amount":   r.Amount,
		"currency": r.Currency,
	}
}

// Notify handles one provider notification. The merchant order id
// prefix selects the settlement path; unknown statuses are acknowledged
// without effect so the provider stops redelivering them.
func (h *Handler) Notify(ctx *gin.Context) {
	l := zerolog.Ctx(ctx)

	var req webhookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.String(http.StatusBadRequest, "bad request")
		return
	}

	timestamp := ctx.GetHeader(TimestampHeader)
	signature := ctx.GetHeader(SignatureHeader)

	if !VerifySignature(req.signedFields(), timestamp, h.secret, signature) {
		l.Warn().Str("order_id", req.OrderID).Msg("webhook signature rejected")
		ctx.String(http.StatusUnauthorized, "invalid signature")

		return
	}

	status := strings.ToLower(req.Status)

	var err error

	switch {
	case strings.HasPrefix(req.OrderID, DepositRefPrefix):
		err = h.settleDeposit(ctx, req.OrderID, status)
	case strings.HasPrefix(req.OrderID, WithdrawalRefPrefix):
		err = h.settleWithdrawal(ctx, req.OrderID, status)
	default:
		ctx.String(http.StatusNotFound, "unknown order")
		return
	}

	switch err {
	case nil:
		ctx.String(http.StatusOK, "success")
	case domain.ErrTransactionNotFound:
		ctx.String(http.StatusNotFound, "unknown order")
	default:
		// Non-2xx makes the provider redeliver later.
		ctx.String(http.StatusInternalServerError, "processing failed")
	}
}

func (h *Handler) settleDeposit(ctx *gin.Context, orderID, status string) error {
	switch status {
	case statusPaid, statusConfirmed, statusSuccess:
		_, err := h.service.SettleDeposit(ctx, orderID)
		return err
	case statusExpired, statusFailed, statusCancelled:
		_, err := h.service.FailOrder(ctx, orderID, domain.KindDeposit, status)
		if err == domain.ErrInvalidTransactionState {
			// Already settled or failed; acknowledge the redelivery.
			return nil
		}

		return err
	default:
		return nil
	}
}

// settleWithdrawal reconciles a payout notification. The balance was
// already debited when the withdrawal was approved, so success is an
// acknowledgement only; a failed payout refunds via reversal.
func (h *Handler) settleWithdrawal(ctx *gin.Context, orderID, status string) error {
	switch status {
	case statusPaid, statusConfirmed, statusSuccess:
		return nil
	case statusExpired, statusFailed, statusCancelled:
		_, err := h.service.Reverse(ctx, orderID, domain.SystemActor)
		if err == domain.ErrNotReversible {
			// Reversal already recorded for this order.
			return nil
		}

		return err
	default:
		return nil
	}
}
