// Package callbackdelivery adapts game provider wallet callbacks to the
// ledger. A Vendor translates the provider's wire protocol to
// normalized commands and back; the ledger dispatch is shared, so
// supporting a new provider means implementing the Vendor pair only.
package callbackdelivery

import (
	"context"
	"net/http"

	"github.com/goldspin/casino-ledger/internal/domain"
	"github.com/goldspin/casino-ledger/internal/ledgerservice"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Normalized wallet commands.
const (
	CmdBet      = "bet"
	CmdWin      = "win"
	CmdRollback = "rollback"
	CmdBalance  = "balance"
)

// Command is one normalized wallet command decoded from a provider
// request. Amount is unsigned; the command name fixes the direction.
type Command struct {
	Name          string
	PlayerToken   string
	TransactionID string
	RoundID       string
	GameID        string
	Currency      string
	Amount        string
}

// Vendor translates between a provider's wire protocol and normalized
// commands. Encode methods return the provider's response body; every
// response is sent with HTTP 200, errors included.
type Vendor interface {
	DecodeRequest(ctx *gin.Context) (Command, error)
	EncodeTransaction(t domain.Transaction) any
	EncodeBalance(balance string) any
	EncodeError(err error) any
}

// Service provides the ledger operations needed by the callback adapter.
//
//go:generate mockgen -source http.go -destination http_mock.go -package callbackdelivery
type Service interface {
	ApplyEvent(ctx context.Context, arg ledgerservice.ApplyEventParams) (domain.ApplyResult, error)
	Reverse(ctx context.Context, externalRef, actor string) (domain.ApplyResult, error)
	GetBalance(ctx context.Context, playerID string) (domain.Account, error)
}

// Handler facilitates the game provider callback endpoint.
type Handler struct {
	service  Service
	vendor   Vendor
	decoders []TokenDecoder
}

// NewHandler returns the callback handler with the default decoder
// chain: signed JWT first, opaque base64 reference second.
func NewHandler(s Service, vendor Vendor, callbackSecret string) *Handler {
	return &Handler{
		service: s,
		vendor:  vendor,
		decoders: []TokenDecoder{
			NewJWTDecoder(callbackSecret),
			Base64Decoder{},
		},
	}
}

// Callback is the single provider wallet endpoint. Money movements are
// keyed by the provider transaction id, so redelivered callbacks settle
// exactly once and replays answer with the original balance.
func (h *Handler) Callback(ctx *gin.Context) {
	l := zerolog.Ctx(ctx)

	cmd, err := h.vendor.DecodeRequest(ctx)
	if err != nil {
		ctx.JSON(http.StatusOK, h.vendor.EncodeError(err))
		return
	}

	playerID, err := DecodePlayerToken(h.decoders, cmd.PlayerToken)
	if err != nil {
		l.Info().Str("cmd", cmd.Name).Msg("callback token rejected")
		ctx.JSON(http.StatusOK, h.vendor.EncodeError(ErrAuthenticationFailed))

		return
	}

	switch cmd.Name {
	case CmdBalance:
		h.getBalance(ctx, playerID)
	case CmdBet:
		h.applyEvent(ctx, playerID, domain.KindBet, cmd)
	case CmdWin:
		h.applyEvent(ctx, playerID, domain.KindWin, cmd)
	case CmdRollback:
		h.rollback(ctx, cmd)
	default:
		ctx.JSON(http.StatusOK, h.vendor.EncodeError(domain.ErrInvalidKind))
	}
}

func (h *Handler) getBalance(ctx *gin.Context, playerID string) {
	account, err := h.service.GetBalance(ctx, playerID)
	if err != nil {
		ctx.JSON(http.StatusOK, h.vendor.EncodeError(err))
		return
	}

	ctx.JSON(http.StatusOK, h.vendor.EncodeBalance(account.Balance))
}

func (h *Handler) applyEvent(ctx *gin.Context, playerID, kind string, cmd Command) {
	if cmd.TransactionID == "" || cmd.Amount == "" {
		ctx.JSON(http.StatusOK, h.vendor.EncodeError(domain.ErrInvalidAmount))
		return
	}

	amount := cmd.Amount
	if kind == domain.KindBet {
		amount = negate(amount)
	}

	result, err := h.service.ApplyEvent(ctx, ledgerservice.ApplyEventParams{
		ExternalRef: cmd.TransactionID,
		Kind:        kind,
		PlayerID:    playerID,
		Amount:      amount,
		Currency:    cmd.Currency,
		RoundID:     cmd.RoundID,
		Remarks:     "game " + cmd.GameID,
	})
	if err != nil {
		ctx.JSON(http.StatusOK, h.vendor.EncodeError(err))
		return
	}

	ctx.JSON(http.StatusOK, h.vendor.EncodeTransaction(result.Transaction))
}

func (h *Handler) rollback(ctx *gin.Context, cmd Command) {
	if cmd.TransactionID == "" {
		ctx.JSON(http.StatusOK, h.vendor.EncodeError(domain.ErrTransactionNotFound))
		return
	}

	result, err := h.service.Reverse(ctx, cmd.TransactionID, domain.SystemActor)
	if err != nil {
		ctx.JSON(http.StatusOK, h.vendor.EncodeError(err))
		return
	}

	ctx.JSON(http.StatusOK, h.vendor.EncodeTransaction(result.Transaction))
}
