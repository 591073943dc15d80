package callbackdelivery

import (
	"encoding/json"
	"errors"

	"github.com/goldspin/casino-ledger/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Provider protocol error codes.
const (
	codeOK                  = 0
	codePlayerNotFound      = 2
	codeInsufficientBalance = 3
	codeInvalidCommand      = 4
	codeInvalidRollback     = 5
	codeInvalidToken        = 401
)

// errMalformedRequest marks a request body the vendor could not parse.
var errMalformedRequest = errors.New("malformed request")

// EnvelopeVendor speaks the default provider protocol: a single JSON
// envelope with cmd dispatch and a result/err_code response pair.
type EnvelopeVendor struct{}

type envelopeRequest struct {
	Cmd           string      `json:"cmd"`
	PlayerToken   string      `json:"player_token"`
	TransactionID string      `json:"transactionId"`
	RoundID       string      `json:"roundId"`
	GameID        string      `json:"gameId"`
	CurrencyID    string      `json:"currencyId"`
	BetAmount     json.Number `json:"betAmount"`
	WinAmount     json.Number `json:"winAmount"`
}

type envelopeResponse struct {
	Result        bool        `json:"result"`
	ErrCode       int         `json:"err_code"`
	ErrDesc       string      `json:"err_desc,omitempty"`
	Balance       json.Number `json:"balance,omitempty"`
	BeforeBalance json.Number `json:"before_balance,omitempty"`
	TransactionID string      `json:"transactionId,omitempty"`
}

// DecodeRequest implements Vendor.
func (v EnvelopeVendor) DecodeRequest(ctx *gin.Context) (Command, error) {
	var req envelopeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		return Command{}, errMalformedRequest
	}

	cmd := Command{
		PlayerToken:   req.PlayerToken,
		TransactionID: req.TransactionID,
		RoundID:       req.RoundID,
		GameID:        req.GameID,
		Currency:      req.CurrencyID,
	}

	switch req.Cmd {
	case "withdraw":
		cmd.Name = CmdBet
		cmd.Amount = string(req.BetAmount)
	case "deposit":
		cmd.Name = CmdWin
		cmd.Amount = string(req.WinAmount)
	case "rollback":
		cmd.Name = CmdRollback
	case "getBalance", "getPlayerInfo":
		cmd.Name = CmdBalance
	default:
		cmd.Name = req.Cmd
	}

	return cmd, nil
}

// EncodeTransaction implements Vendor.
func (v EnvelopeVendor) EncodeTransaction(t domain.Transaction) any {
	return envelopeResponse{
		Result:        true,
		ErrCode:       codeOK,
		Balance:       json.Number(t.BalanceAfter),
		BeforeBalance: json.Number(t.BalanceBefore),
		TransactionID: t.ExternalRef,
	}
}

// EncodeBalance implements Vendor.
func (v EnvelopeVendor) EncodeBalance(balance string) any {
	return envelopeResponse{
		Result:  true,
		ErrCode: codeOK,
		Balance: json.Number(balance),
	}
}

// EncodeError implements Vendor.
func (v EnvelopeVendor) EncodeError(err error) any {
	code, desc := codeInvalidCommand, "processing failed"

	switch err {
	case ErrAuthenticationFailed:
		code, desc = codeInvalidToken, "invalid player token"
	case domain.ErrAccountNotFound, domain.ErrAccountDisabled:
		code, desc = codePlayerNotFound, "player not found or disabled"
	case domain.ErrInsufficientBalance:
		code, desc = codeInsufficientBalance, "insufficient balance"
	case domain.ErrTransactionNotFound, domain.ErrNotReversible, domain.ErrInvalidTransactionState:
		code, desc = codeInvalidRollback, "no reversible transaction"
	case domain.ErrInvalidAmount, domain.ErrAmountSignMismatch, domain.ErrInvalidKind, errMalformedRequest:
		code, desc = codeInvalidCommand, "invalid command"
	}

	return envelopeResponse{Result: false, ErrCode: code, ErrDesc: desc}
}

// negate flips the sign of a provider stake: providers send stakes as
// positive numbers, the ledger stores debits negative.
func negate(amount string) string {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return amount
	}

	return d.Neg().String()
}
