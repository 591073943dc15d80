// Package httpserver manages server creation and api routing.
package httpserver

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/goldspin/casino-ledger/internal/accountdelivery"
	"github.com/goldspin/casino-ledger/internal/accountrepo"
	"github.com/goldspin/casino-ledger/internal/accountservice"
	"github.com/goldspin/casino-ledger/internal/auditrepo"
	"github.com/goldspin/casino-ledger/internal/auditservice"
	"github.com/goldspin/casino-ledger/internal/callbackdelivery"
	"github.com/goldspin/casino-ledger/internal/financedelivery"
	"github.com/goldspin/casino-ledger/internal/ledgerrepo"
	"github.com/goldspin/casino-ledger/internal/ledgerservice"
	"github.com/goldspin/casino-ledger/internal/middleware"
	"github.com/goldspin/casino-ledger/internal/walletservice"
	"github.com/goldspin/casino-ledger/internal/webhookdelivery"
	"github.com/goldspin/casino-ledger/pkg/configpkg"
	"github.com/goldspin/casino-ledger/pkg/currencypkg"
	"github.com/goldspin/casino-ledger/pkg/tokenpkg"
)

// Server holds db connection, handlers router and configuration.
type Server struct {
	DB     *sql.DB
	Engine *gin.Engine
	Config configpkg.Config
	Audit  *auditservice.Service
}

// ServeHTTP implements the http.Handler interface for the Server type.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Engine.ServeHTTP(w, r)
}

// Close stops the audit sink after draining queued events.
func (s *Server) Close() {
	s.Audit.Close()
}

// New creates Server type with instantiated domains and routes.
func New(conn *sql.DB, logger zerolog.Logger, config configpkg.Config) (*Server, error) {
	accountRepo := accountrepo.NewRepoPGS(conn)
	ledgerRepo := ledgerrepo.NewRepoPGS(conn)
	auditRepo := auditrepo.NewRepoPGS(conn)

	tokenMaker, err := tokenpkg.NewPasetoMaker(config.TokenSymmetricKey)
	if err != nil {
		return nil, errors.New("cannot create token maker")
	}

	auditSink := auditservice.New(auditRepo, logger, config.AuditBufferSize)
	accountService := accountservice.New(accountRepo)
	ledgerService := ledgerservice.New(ledgerRepo, accountService, auditSink)

	paymentProvider := walletservice.NewHTTPProvider(config.PaymentProviderURL, config.PaymentWebhookSecret)
	walletService := walletservice.New(ledgerService, accountService, paymentProvider, config.PaymentNotifyURL)

	accountHandler := accountdelivery.NewHandler(accountService)
	financeHandler := financedelivery.NewHandler(ledgerService, walletService, accountService)
	callbackHandler := callbackdelivery.NewHandler(ledgerService, callbackdelivery.EnvelopeVendor{}, config.GameCallbackSecret)
	webhookHandler := webhookdelivery.NewHandler(ledgerService, config.PaymentWebhookSecret)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(middleware.RequestLogger(logger))
	engine.Use(gin.Recovery())

	// Provider-facing endpoints authenticate with their own schemes.
	engine.POST("/callbacks/game", callbackHandler.Callback)
	engine.POST("/webhooks/payment", webhookHandler.Notify)

	authRoutes := engine.Group("/").Use(middleware.AuthMiddleware(tokenMaker))

	authRoutes.POST("/accounts", accountHandler.Create)
	authRoutes.GET("/accounts/:id", accountHandler.Get)
	authRoutes.GET("/accounts", accountHandler.List)
	authRoutes.POST("/accounts/:id/disable", accountHandler.Disable)

	authRoutes.POST("/finance/adjust", financeHandler.Adjust)
	authRoutes.GET("/finance/approvals/pending", financeHandler.ListPending)
	authRoutes.POST("/finance/approvals/:id/approve", financeHandler.Approve)
	authRoutes.POST("/finance/approvals/:id/reject", financeHandler.Reject)
	authRoutes.POST("/finance/deposits/request", financeHandler.RequestDeposit)
	authRoutes.POST("/finance/withdrawals/request", financeHandler.RequestWithdrawal)
	authRoutes.GET("/finance/transactions", financeHandler.ListTransactions)
	authRoutes.GET("/finance/balances", financeHandler.ListBalances)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		err := v.RegisterValidation("currency", currencypkg.ValidCurrency)
		if err != nil {
			return nil, errors.New("cannot register currency validator")
		}
	}

	server := &Server{
		DB:     conn,
		Engine: engine,
		Config: config,
		Audit:  auditSink,
	}

	return server, nil
}
