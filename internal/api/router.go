package api

import (
	"github.com/ayo6706/axis-ledger/internal/api/handler"
	"github.com/ayo6706/axis-ledger/internal/api/middleware"
	"github.com/ayo6706/axis-ledger/internal/api/spec"
	"github.com/ayo6706/axis-ledger/internal/config"
	"github.com/ayo6706/axis-ledger/internal/idempotency"
	"github.com/ayo6706/axis-ledger/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the HTTP surface is built from.
// DB and Redis may be nil; readiness then skips them.
type Dependencies struct {
	Ledger      *service.LedgerService
	Accounts    *service.AccountService
	Idempotency *idempotency.Store
	DB          handler.Pinger
	Redis       redis.Cmdable
}

type Router struct {
	cfg    *config.Config
	logger *zap.Logger
	deps   Dependencies
}

func NewRouter(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Router {
	return &Router{cfg: cfg, logger: logger, deps: deps}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)

	accountHandler := handler.NewAccountHandler(api.deps.Ledger, api.deps.Accounts)
	transactionHandler := handler.NewTransactionHandler(api.deps.Ledger, api.deps.Accounts)
	healthHandler := handler.NewHealthHandler(api.deps.DB, api.deps.Redis)
	idempotent := middleware.IdempotencyMiddleware(api.deps.Idempotency, api.logger)

	// Public Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))
		r.Get("/health/live", healthHandler.Live)
		r.Get("/health/ready", healthHandler.Ready)
		r.Handle("/metrics", promhttp.Handler())
		r.Get("/openapi.yaml", spec.OpenAPIHandler())
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))
	})

	// Protected Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		r.Post("/v1/accounts", accountHandler.CreateAccount)
		r.Route("/v1/accounts/{accountId}", func(r chi.Router) {
			r.Use(middleware.RequireAccountOwner("accountId"))
			r.Get("/", accountHandler.GetAccount)
			r.Get("/balance", accountHandler.GetBalance)
			r.Get("/transactions", accountHandler.ListTransactions)
			r.With(idempotent).Post("/deposit", transactionHandler.Deposit)
			r.With(idempotent).Post("/withdraw", transactionHandler.Withdraw)
		})

		// Transactions
		r.Get("/v1/transactions/{transactionId}", transactionHandler.GetTransaction)
	})

	return r
}
