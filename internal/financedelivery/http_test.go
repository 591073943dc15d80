package financedelivery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/goldspin/casino-ledger/internal/domain"
	"github.com/goldspin/casino-ledger/internal/ledgerservice"
	"github.com/goldspin/casino-ledger/internal/middleware"
	"github.com/goldspin/casino-ledger/internal/walletservice"
	"github.com/goldspin/casino-ledger/pkg/currencypkg"
	"github.com/goldspin/casino-ledger/pkg/randompkg"
	"github.com/goldspin/casino-ledger/pkg/tokenpkg"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testServer struct {
	engine     *gin.Engine
	service    *MockService
	wallet     *MockWallet
	accounts   *MockAccountLister
	tokenMaker tokenpkg.Maker
}

func newTestServer(t *testing.T, ctrl *gomock.Controller) *testServer {
	t.Helper()

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("currency", currencypkg.ValidCurrency)
	}

	tokenMaker, err := tokenpkg.NewPasetoMaker(randompkg.String(32))
	require.NoError(t, err)

	service := NewMockService(ctrl)
	wallet := NewMockWallet(ctrl)
	accounts := NewMockAccountLister(ctrl)

	handler := NewHandler(service, wallet, accounts)

	engine := gin.New()

	authRoutes := engine.Group("/").Use(middleware.AuthMiddleware(tokenMaker))
	authRoutes.POST("/finance/adjust", handler.Adjust)
	authRoutes.GET("/finance/approvals/pending", handler.ListPending)
	authRoutes.POST("/finance/approvals/:id/approve", handler.Approve)
	authRoutes.POST("/finance/approvals/:id/reject", handler.Reject)
	authRoutes.POST("/finance/deposits/request", handler.RequestDeposit)
	authRoutes.POST("/finance/withdrawals/request", handler.RequestWithdrawal)
	authRoutes.GET("/finance/transactions", handler.ListTransactions)
	authRoutes.GET("/finance/balances", handler.ListBalances)

	return &testServer{
		engine:     engine,
		service:    service,
		wallet:     wallet,
		accounts:   accounts,
		tokenMaker: tokenMaker,
	}
}

func (ts *testServer) send(t *testing.T, admin, method, url string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)

	if admin != "" {
		middleware.AddAuthorization(t, req, ts.tokenMaker, middleware.AuthorizationTypeBearer, admin, time.Minute)
	}

	recorder := httptest.NewRecorder()
	ts.engine.ServeHTTP(recorder, req)

	return recorder
}

func TestAdjust(t *testing.T) {
	playerID := randompkg.PlayerID()
	admin := randompkg.AdminID()

	body := map[string]any{
		"player_id": playerID,
		"amount":    "-40",
		"remarks":   "promo clawback",
	}

	t.Run("OK", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ts := newTestServer(t, ctrl)

		ts.service.EXPECT().
			CreateAdjustment(gomock.Any(), gomock.Any()).
			Times(1).
			DoAndReturn(func(_ any, arg ledgerservice.CreateAdjustmentParams) (domain.Transaction, error) {
				require.Equal(t, playerID, arg.PlayerID)
				require.Equal(t, "-40", arg.Amount)
				require.Equal(t, admin, arg.CreatedBy)

				return domain.Transaction{ID: 7, Status: domain.StatusPending, CreatedBy: admin}, nil
			})

		recorder := ts.send(t, admin, http.MethodPost, "/finance/adjust", body)
		require.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("NoAuthorization", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ts := newTestServer(t, ctrl)
		ts.service.EXPECT().CreateAdjustment(gomock.Any(), gomock.Any()).Times(0)

		recorder := ts.send(t, "", http.MethodPost, "/finance/adjust", body)
		require.Equal(t, http.StatusUnauthorized, recorder.Code)
	})

	t.Run("MissingRemarks", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ts := newTestServer(t, ctrl)
		ts.service.EXPECT().CreateAdjustment(gomock.Any(), gomock.Any()).Times(0)

		recorder := ts.send(t, admin, http.MethodPost, "/finance/adjust", map[string]any{
			"player_id": playerID,
			"amount":    "-40",
		})
		require.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ts := newTestServer(t, ctrl)
		ts.service.EXPECT().
			CreateAdjustment(gomock.Any(), gomock.Any()).
			Times(1).
			Return(domain.Transaction{}, domain.ErrInsufficientBalance)

		recorder := ts.send(t, admin, http.MethodPost, "/finance/adjust", body)
		require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	})

	t.Run("UnknownPlayer", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ts := newTestServer(t, ctrl)
		ts.service.EXPECT().
			CreateAdjustment(gomock.Any(), gomock.Any()).
			Times(1).
			Return(domain.Transaction{}, domain.ErrAccountNotFound)

		recorder := ts.send(t, admin, http.MethodPost, "/finance/adjust", body)
		require.Equal(t, http.StatusNotFound, recorder.Code)
	})
}

func TestApprove(t *testing.T) {
	admin := randompkg.AdminID()

	t.Run("OK", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ts := newTestServer(t, ctrl)
		ts.service.EXPECT().
			ApproveAdjustment(gomock.Any(), gomock.Eq(int64(7)), gomock.Eq(admin)).
			Times(1).
			Return(domain.Transaction{ID: 7, Status: domain.StatusCompleted, ApprovedBy: admin}, nil)

		recorder := ts.send(t, admin, http.MethodPost, "/finance/approvals/7/approve", nil)
		require.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("SelfApprovalForbidden", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ts := newTestServer(t, ctrl)
		ts.service.EXPECT().
			ApproveAdjustment(gomock.Any(), gomock.Eq(int64(7)), gomock.Eq(admin)).
			Times(1).
			Return(domain.Transaction{}, domain.ErrSelfApproval)

		recorder := ts.send(t, admin, http.MethodPost, "/finance/approvals/7/approve", nil)
		require.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("AlreadySettled", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ts := newTestServer(t, ctrl)
		ts.service.EXPECT().
			ApproveAdjustment(gomock.Any(), gomock.Eq(int64(7)), gomock.Eq(admin)).
			Times(1).
			Return(domain.Transaction{}, domain.ErrInvalidTransactionState)

		recorder := ts.send(t, admin, http.MethodPost, "/finance/approvals/7/approve", nil)
		require.Equal(t, http.StatusConflict, recorder.Code)
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ts := newTestServer(t, ctrl)
		ts.service.EXPECT().
			ApproveAdjustment(gomock.Any(), gomock.Eq(int64(7)), gomock.Eq(admin)).
			Times(1).
			Return(domain.Transaction{}, domain.ErrInsufficientBalance)

		recorder := ts.send(t, admin, http.MethodPost, "/finance/approvals/7/approve", nil)
		require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ts := newTestServer(t, ctrl)
		ts.service.EXPECT().
			ApproveAdjustment(gomock.Any(), gomock.Eq(int64(404)), gomock.Eq(admin)).
			Times(1).
			Return(domain.Transaction{}, domain.ErrTransactionNotFound)

		recorder := ts.send(t, admin, http.MethodPost, "/finance/approvals/404/approve", nil)
		require.Equal(t, http.StatusNotFound, recorder.Code)
	})
}

func TestReject(t *testing.T) {
	admin := randompkg.AdminID()

	t.Run("OK", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ts := newTestServer(t, ctrl)
		ts.service.EXPECT().
			RejectAdjustment(gomock.Any(), gomock.Eq(int64(7)), gomock.Eq(admin), gomock.Eq("wrong player")).
			Times(1).
			Return(domain.Transaction{ID: 7, Status: domain.StatusFailed}, nil)

		recorder := ts.send(t, admin, http.MethodPost, "/finance/approvals/7/reject", map[string]any{
			"reason": "wrong player",
		})
		require.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("MissingReason", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ts := newTestServer(t, ctrl)
		ts.service.EXPECT().RejectAdjustment(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		recorder := ts.send(t, admin, http.MethodPost, "/finance/approvals/7/reject", map[string]any{})
		require.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestListPending(t *testing.T) {
	admin := randompkg.AdminID()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ts := newTestServer(t, ctrl)
	ts.service.EXPECT().
		ListPending(gomock.Any()).
		Times(1).
		Return([]domain.Transaction{{ID: 1, Status: domain.StatusPending}}, nil)

	recorder := ts.send(t, admin, http.MethodGet, "/finance/approvals/pending", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestRequestDeposit(t *testing.T) {
	playerID := randompkg.PlayerID()
	admin := randompkg.AdminID()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ts := newTestServer(t, ctrl)
	ts.wallet.EXPECT().
		CreateDeposit(gomock.Any(), gomock.Any()).
		Times(1).
		DoAndReturn(func(_ any, arg walletservice.CreateOrderParams) (domain.Transaction, error) {
			require.Equal(t, playerID, arg.PlayerID)
			require.Equal(t, "100", arg.Amount)

			return domain.Transaction{ID: 11, Status: domain.StatusPending, PaymentURL: "https://pay.test/c/1"}, nil
		})

	recorder := ts.send(t, admin, http.MethodPost, "/finance/deposits/request", map[string]any{
		"player_id": playerID,
		"amount":    "100",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestRequestWithdrawal(t *testing.T) {
	playerID := randompkg.PlayerID()
	admin := randompkg.AdminID()

	t.Run("OK", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ts := newTestServer(t, ctrl)
		ts.wallet.EXPECT().
			CreateWithdrawal(gomock.Any(), gomock.Any()).
			Times(1).
			Return(domain.Transaction{ID: 13, Kind: domain.KindWithdrawal, Status: domain.StatusPending}, nil)

		recorder := ts.send(t, admin, http.MethodPost, "/finance/withdrawals/request", map[string]any{
			"player_id": playerID,
			"amount":    "75",
		})
		require.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ts := newTestServer(t, ctrl)
		ts.wallet.EXPECT().
			CreateWithdrawal(gomock.Any(), gomock.Any()).
			Times(1).
			Return(domain.Transaction{}, domain.ErrInsufficientBalance)

		recorder := ts.send(t, admin, http.MethodPost, "/finance/withdrawals/request", map[string]any{
			"player_id": playerID,
			"amount":    "75000",
		})
		require.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	})
}

func TestListTransactions(t *testing.T) {
	admin := randompkg.AdminID()

	t.Run("OK", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ts := newTestServer(t, ctrl)
		ts.service.EXPECT().
			List(gomock.Any(), gomock.Eq(domain.ListTransactionsParams{
				Kind:   domain.KindBet,
				Status: domain.StatusCompleted,
				Limit:  20,
				Offset: 20,
			})).
			Times(1).
			Return([]domain.Transaction{}, nil)

		url := fmt.Sprintf("/finance/transactions?kind=%s&status=%s&page_id=2&page_size=20", domain.KindBet, domain.StatusCompleted)
		recorder := ts.send(t, admin, http.MethodGet, url, nil)
		require.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("UnknownKindRejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ts := newTestServer(t, ctrl)
		ts.service.EXPECT().List(gomock.Any(), gomock.Any()).Times(0)

		recorder := ts.send(t, admin, http.MethodGet, "/finance/transactions?kind=jackpot&page_id=1&page_size=20", nil)
		require.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestListBalances(t *testing.T) {
	admin := randompkg.AdminID()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ts := newTestServer(t, ctrl)
	ts.accounts.EXPECT().
		List(gomock.Any(), gomock.Eq(int32(50)), gomock.Eq(int32(1))).
		Times(1).
		Return([]domain.Account{{PlayerID: randompkg.PlayerID(), Balance: "10"}}, nil)

	recorder := ts.send(t, admin, http.MethodGet, "/finance/balances?page_id=1&page_size=50", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
}
