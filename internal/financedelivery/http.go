// Package financedelivery manages the admin-facing finance API: manual
// adjustments under dual control, the approval queue, withdrawal
// requests and the finance screens.
package financedelivery

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/goldspin/casino-ledger/internal/domain"
	"github.com/goldspin/casino-ledger/internal/ledgerservice"
	"github.com/goldspin/casino-ledger/internal/middleware"
	"github.com/goldspin/casino-ledger/internal/walletservice"
	"github.com/goldspin/casino-ledger/pkg/errorspkg"
	"github.com/goldspin/casino-ledger/pkg/tokenpkg"
	"github.com/goldspin/casino-ledger/pkg/web"
)

// Service provides the ledger operations needed by the finance API.
//
//go:generate mockgen -source http.go -destination http_mock.go -package financedelivery
type Service interface {
	CreateAdjustment(ctx context.Context, arg ledgerservice.CreateAdjustmentParams) (domain.Transaction, error)
	ApproveAdjustment(ctx context.Context, id int64, approvedBy string) (domain.Transaction, error)
	RejectAdjustment(ctx context.Context, id int64, rejectedBy, reason string) (domain.Transaction, error)
	ListPending(ctx context.Context) ([]domain.Transaction, error)
	List(ctx context.Context, arg domain.ListTransactionsParams) ([]domain.Transaction, error)
}

// Wallet provides the wallet order operations needed by the finance API.
type Wallet interface {
	CreateDeposit(ctx context.Context, arg walletservice.CreateOrderParams) (domain.Transaction, error)
	CreateWithdrawal(ctx context.Context, arg walletservice.CreateOrderParams) (domain.Transaction, error)
}

// AccountLister provides the balance listing for the finance screens.
type AccountLister interface {
	List(ctx context.Context, pageSize, pageID int32) ([]domain.Account, error)
}

// Handler facilitates finance delivery layer logic.
type Handler struct {
	service  Service
	wallet   Wallet
	accounts AccountLister
}

// NewHandler returns finance handler.
func NewHandler(s Service, w Wallet, al AccountLister) Handler {
	return Handler{service: s, wallet: w, accounts: al}
}

type data struct {
	Transaction domain.Transaction `json:"transaction"`
}
type response struct {
	Data data `json:"data,omitempty"`
}

// admin returns the username of the authenticated admin from the
// verified token payload set by the auth middleware.
func admin(gctx *gin.Context) string {
	payload, ok := gctx.MustGet(middleware.AuthorizationPayloadKey).(*tokenpkg.Payload)
	if !ok {
		return ""
	}

	return payload.Username
}

func bindingError(gctx *gin.Context, l *zerolog.Logger, err error) {
	var (
		ve     validator.ValidationErrors
		errMsg string
	)

	if errors.As(err, &ve) {
		field := ve[0]
		errMsg = field.Field() + web.GetErrorMsg(field)
	}

	l.Info().Err(err).Send()
	gctx.JSON(http.StatusBadRequest, web.Response{Error: errMsg})
}

type adjustRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"omitempty,currency"`
	Remarks  string `json:"remarks" binding:"required"`
}

// Adjust handles http request to create a pending manual adjustment.
// The balance stays untouched until a different admin approves it.
func (h *Handler) Adjust(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	var req adjustRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		bindingError(gctx, l, err)
		return
	}

	created, err := h.service.CreateAdjustment(ctx, ledgerservice.CreateAdjustmentParams{
		PlayerID:  req.PlayerID,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Remarks:   req.Remarks,
		CreatedBy: admin(gctx),
	})
	if err != nil {
		switch err {
		case domain.ErrAccountNotFound:
			gctx.JSON(http.StatusNotFound, web.Error(err))
		case domain.ErrAccountDisabled, domain.ErrInvalidAmount, domain.ErrAmountSignMismatch:
			gctx.JSON(http.StatusBadRequest, web.Error(err))
		case domain.ErrInsufficientBalance:
			gctx.JSON(http.StatusUnprocessableEntity, web.Error(err))
		default:
			gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		}

		return
	}

	gctx.JSON(http.StatusOK, response{Data: data{created}})
}

type approvalURI struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

// Approve handles http request to approve a pending adjustment. The
// approver must differ from the creator.
func (h *Handler) Approve(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	var uri approvalURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Error(err))

		return
	}

	approved, err := h.service.ApproveAdjustment(ctx, uri.ID, admin(gctx))
	if err != nil {
		switch err {
		case domain.ErrSelfApproval:
			gctx.JSON(http.StatusForbidden, web.Error(err))
		case domain.ErrTransactionNotFound:
			gctx.JSON(http.StatusNotFound, web.Error(err))
		case domain.ErrInvalidTransactionState, domain.ErrInvalidKind:
			gctx.JSON(http.StatusConflict, web.Error(err))
		case domain.ErrInsufficientBalance:
			gctx.JSON(http.StatusUnprocessableEntity, web.Error(err))
		default:
			gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		}

		return
	}

	gctx.JSON(http.StatusOK, response{Data: data{approved}})
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Reject handles http request to reject a pending adjustment. Terminal.
func (h *Handler) Reject(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	var uri approvalURI
	if err := gctx.ShouldBindUri(&uri); err != nil {
		l.Info().Err(err).Send()
		gctx.JSON(http.StatusBadRequest, web.Error(err))

		return
	}

	var req rejectRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		bindingError(gctx, l, err)
		return
	}

	rejected, err := h.service.RejectAdjustment(ctx, uri.ID, admin(gctx), req.Reason)
	if err != nil {
		switch err {
		case domain.ErrTransactionNotFound:
			gctx.JSON(http.StatusNotFound, web.Error(err))
		case domain.ErrInvalidTransactionState:
			gctx.JSON(http.StatusConflict, web.Error(err))
		default:
			gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		}

		return
	}

	gctx.JSON(http.StatusOK, response{Data: data{rejected}})
}

type dataTransactions struct {
	Transactions []domain.Transaction `json:"transactions"`
}
type responseTransactions struct {
	Data dataTransactions `json:"data,omitempty"`
}

// ListPending handles http request to list the approval queue.
func (h *Handler) ListPending(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	pending, err := h.service.ListPending(ctx)
	if err != nil {
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		return
	}

	gctx.JSON(http.StatusOK, responseTransactions{Data: dataTransactions{pending}})
}

type depositRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"omitempty,currency"`
	Remarks  string `json:"remarks"`
}

// RequestDeposit handles http request to open a deposit order. The
// response carries the provider checkout url; the balance is credited
// by the provider webhook only.
func (h *Handler) RequestDeposit(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	var req depositRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		bindingError(gctx, l, err)
		return
	}

	order, err := h.wallet.CreateDeposit(ctx, walletservice.CreateOrderParams{
		PlayerID: req.PlayerID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Remarks:  req.Remarks,
	})
	if err != nil {
		switch err {
		case domain.ErrAccountNotFound:
			gctx.JSON(http.StatusNotFound, web.Error(err))
		case domain.ErrAccountDisabled, domain.ErrInvalidAmount:
			gctx.JSON(http.StatusBadRequest, web.Error(err))
		case errorspkg.ErrUpstreamTimeout:
			gctx.JSON(http.StatusBadGateway, web.Error(err))
		default:
			gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		}

		return
	}

	gctx.JSON(http.StatusOK, response{Data: data{order}})
}

type withdrawalRequest struct {
	PlayerID string `json:"player_id" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"omitempty,currency"`
	Remarks  string `json:"remarks"`
}

// RequestWithdrawal handles http request to place a withdrawal into the
// approval queue.
func (h *Handler) RequestWithdrawal(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	var req withdrawalRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		bindingError(gctx, l, err)
		return
	}

	created, err := h.wallet.CreateWithdrawal(ctx, walletservice.CreateOrderParams{
		PlayerID: req.PlayerID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Remarks:  req.Remarks,
	})
	if err != nil {
		switch err {
		case domain.ErrAccountNotFound:
			gctx.JSON(http.StatusNotFound, web.Error(err))
		case domain.ErrAccountDisabled, domain.ErrInvalidAmount:
			gctx.JSON(http.StatusBadRequest, web.Error(err))
		case domain.ErrInsufficientBalance:
			gctx.JSON(http.StatusUnprocessableEntity, web.Error(err))
		default:
			gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		}

		return
	}

	gctx.JSON(http.StatusOK, response{Data: data{created}})
}

type listRequest struct {
	PlayerID string `form:"player_id"`
	Kind     string `form:"kind" binding:"omitempty,oneof=bet win rollback deposit withdrawal adjustment"`
	Status   string `form:"status" binding:"omitempty,oneof=pending completed failed reversed"`
	PageID   int32  `form:"page_id" binding:"required,min=1"`
	PageSize int32  `form:"page_size" binding:"required,min=1,max=100"`
}

// ListTransactions handles http request to list transactions for the
// finance screens.
func (h *Handler) ListTransactions(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		bindingError(gctx, l, err)
		return
	}

	transactions, err := h.service.List(ctx, domain.ListTransactionsParams{
		PlayerID: req.PlayerID,
		Kind:     req.Kind,
		Status:   req.Status,
		Limit:    req.PageSize,
		Offset:   (req.PageID - 1) * req.PageSize,
	})
	if err != nil {
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		return
	}

	gctx.JSON(http.StatusOK, responseTransactions{Data: dataTransactions{transactions}})
}

type balancesRequest struct {
	PageID   int32 `form:"page_id" binding:"required,min=1"`
	PageSize int32 `form:"page_size" binding:"required,min=1,max=100"`
}

type dataAccounts struct {
	Accounts []domain.Account `json:"accounts"`
}
type responseAccounts struct {
	Data dataAccounts `json:"data,omitempty"`
}

// ListBalances handles http request to list account balances.
func (h *Handler) ListBalances(gctx *gin.Context) {
	ctx := gctx.Request.Context()
	l := zerolog.Ctx(gctx)

	var req balancesRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		bindingError(gctx, l, err)
		return
	}

	accounts, err := h.accounts.List(ctx, req.PageSize, req.PageID)
	if err != nil {
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
		return
	}

	gctx.JSON(http.StatusOK, responseAccounts{Data: dataAccounts{accounts}})
}
