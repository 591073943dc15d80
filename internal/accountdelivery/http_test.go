package accountdelivery

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
	"github.com/goldspin/casino-ledger/internal/middleware"
	"github.com/goldspin/casino-ledger/pkg/currencypkg"
	"github.com/goldspin/casino-ledger/pkg/errorspkg"
	"github.com/goldspin/casino-ledger/pkg/randompkg"
	"github.com/goldspin/casino-ledger/pkg/tokenpkg"
	"github.com/goldspin/casino-ledger/pkg/web"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newTestServer(t *testing.T, service Service, tokenMaker tokenpkg.Maker) *gin.Engine {
	t.Helper()

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("currency", currencypkg.ValidCurrency)
	}

	handler := NewHandler(service)

	server := gin.New()

	authRoutes := server.Group("/").Use(middleware.AuthMiddleware(tokenMaker))
	authRoutes.POST("/accounts", handler.Create)
	authRoutes.GET("/accounts/:id", handler.Get)
	authRoutes.GET("/accounts", handler.List)
	authRoutes.POST("/accounts/:id/disable", handler.Disable)

	return server
}

func TestCreateAPI(t *testing.T) {
	playerID := randompkg.PlayerID()
	admin := randompkg.AdminID()

	account := domain.Account{
		PlayerID: playerID,
		Balance:  "0",
		Currency: currencypkg.USD,
		Status:   domain.AccountStatusActive,
	}

	tokenMaker, err := tokenpkg.NewPasetoMaker(randompkg.String(32))
	require.NoError(t, err)

	type requestBody struct {
		PlayerID string `json:"player_id"`
		Currency string `json:"currency"`
	}

	testCases := []struct {
		name           string
		requestBody    requestBody
		setupAuth      func(t *testing.T, r *http.Request)
		buildStubs     func(service *MockService)
		wantStatusCode int
	}{
		{
			name:        "OK",
			requestBody: requestBody{PlayerID: playerID, Currency: currencypkg.USD},
			setupAuth: func(t *testing.T, r *http.Request) {
				middleware.AddAuthorization(t, r, tokenMaker, middleware.AuthorizationTypeBearer, admin, time.Minute)
			},
			buildStubs: func(service *MockService) {
				service.EXPECT().
					Create(gomock.Any(), gomock.Eq(playerID), gomock.Eq(currencypkg.USD)).
					Times(1).
					Return(account, nil)
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:        "NoAuthorization",
			requestBody: requestBody{PlayerID: playerID, Currency: currencypkg.USD},
			setupAuth:   func(t *testing.T, r *http.Request) {},
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:        "UnsupportedCurrency",
			requestBody: requestBody{PlayerID: playerID, Currency: "RUB"},
			setupAuth: func(t *testing.T, r *http.Request) {
				middleware.AddAuthorization(t, r, tokenMaker, middleware.AuthorizationTypeBearer, admin, time.Minute)
			},
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:        "MissingPlayerID",
			requestBody: requestBody{Currency: currencypkg.USD},
			setupAuth: func(t *testing.T, r *http.Request) {
				middleware.AddAuthorization(t, r, tokenMaker, middleware.AuthorizationTypeBearer, admin, time.Minute)
			},
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:        "AlreadyExists",
			requestBody: requestBody{PlayerID: playerID, Currency: currencypkg.USD},
			setupAuth: func(t *testing.T, r *http.Request) {
				middleware.AddAuthorization(t, r, tokenMaker, middleware.AuthorizationTypeBearer, admin, time.Minute)
			},
			buildStubs: func(service *MockService) {
				service.EXPECT().
					Create(gomock.Any(), gomock.Eq(playerID), gomock.Eq(currencypkg.USD)).
					Times(1).
					Return(domain.Account{}, domain.ErrAccountAlreadyExists)
			},
			wantStatusCode: http.StatusConflict,
		},
		{
			name:        "InternalServerError",
			requestBody: requestBody{PlayerID: playerID, Currency: currencypkg.USD},
			setupAuth: func(t *testing.T, r *http.Request) {
				middleware.AddAuthorization(t, r, tokenMaker, middleware.AuthorizationTypeBearer, admin, time.Minute)
			},
			buildStubs: func(service *MockService) {
				service.EXPECT().
					Create(gomock.Any(), gomock.Eq(playerID), gomock.Eq(currencypkg.USD)).
					Times(1).
					Return(domain.Account{}, errorspkg.ErrInternal)
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			service := NewMockService(ctrl)
			tc.buildStubs(service)

			server := newTestServer(t, service, tokenMaker)

			body, err := json.Marshal(tc.requestBody)
			require.NoError(t, err)

			req, err := http.NewRequest(http.MethodPost, "/accounts", bytes.NewReader(body))
			require.NoError(t, err)

			tc.setupAuth(t, req)

			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, req)

			require.Equal(t, tc.wantStatusCode, recorder.Code)
		})
	}
}

func TestGetAPI(t *testing.T) {
	playerID := randompkg.PlayerID()
	admin := randompkg.AdminID()

	tokenMaker, err := tokenpkg.NewPasetoMaker(randompkg.String(32))
	require.NoError(t, err)

	testCases := []struct {
		name           string
		buildStubs     func(service *MockService)
		wantStatusCode int
	}{
		{
			name: "OK",
			buildStubs: func(service *MockService) {
				service.EXPECT().
					Get(gomock.Any(), gomock.Eq(playerID)).
					Times(1).
					Return(domain.Account{PlayerID: playerID, Balance: "100"}, nil)
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "NotFound",
			buildStubs: func(service *MockService) {
				service.EXPECT().
					Get(gomock.Any(), gomock.Eq(playerID)).
					Times(1).
					Return(domain.Account{}, domain.ErrAccountNotFound)
			},
			wantStatusCode: http.StatusNotFound,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			service := NewMockService(ctrl)
			tc.buildStubs(service)

			server := newTestServer(t, service, tokenMaker)

			url := fmt.Sprintf("/accounts/%s", playerID)
			req, err := http.NewRequest(http.MethodGet, url, nil)
			require.NoError(t, err)

			middleware.AddAuthorization(t, req, tokenMaker, middleware.AuthorizationTypeBearer, admin, time.Minute)

			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, req)

			require.Equal(t, tc.wantStatusCode, recorder.Code)

			if tc.wantStatusCode == http.StatusOK {
				var res web.Response
				require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &res))
				require.Empty(t, res.Error)
			}
		})
	}
}

func TestDisableAPI(t *testing.T) {
	playerID := randompkg.PlayerID()
	admin := randompkg.AdminID()

	tokenMaker, err := tokenpkg.NewPasetoMaker(randompkg.String(32))
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	service := NewMockService(ctrl)
	service.EXPECT().
		Disable(gomock.Any(), gomock.Eq(playerID)).
		Times(1).
		Return(domain.Account{PlayerID: playerID, Status: domain.AccountStatusDisabled}, nil)

	server := newTestServer(t, service, tokenMaker)

	url := fmt.Sprintf("/accounts/%s/disable", playerID)
	req, err := http.NewRequest(http.MethodPost, url, nil)
	require.NoError(t, err)

	middleware.AddAuthorization(t, req, tokenMaker, middleware.AuthorizationTypeBearer, admin, time.Minute)

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestListAPI(t *testing.T) {
	admin := randompkg.AdminID()

	tokenMaker, err := tokenpkg.NewPasetoMaker(randompkg.String(32))
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := []domain.Account{
		{PlayerID: randompkg.PlayerID(), Balance: "200"},
		{PlayerID: randompkg.PlayerID(), Balance: "100"},
	}

	service := NewMockService(ctrl)
	service.EXPECT().
		List(gomock.Any(), gomock.Eq(int32(10)), gomock.Eq(int32(1))).
		Times(1).
		Return(accounts, nil)

	server := newTestServer(t, service, tokenMaker)

	req, err := http.NewRequest(http.MethodGet, "/accounts?page_id=1&page_size=10", nil)
	require.NoError(t, err)

	middleware.AddAuthorization(t, req, tokenMaker, middleware.AuthorizationTypeBearer, admin, time.Minute)

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
}
