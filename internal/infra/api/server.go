package api

import (
	"context"
	"net/http"
	"time"

	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/ports/adapter"
	"coupon-marketplace/internal/infra/logging"
	"coupon-marketplace/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// CheckLimiter throttles pass code lookups. The Redis RateLimiter satisfies it.
type CheckLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Options struct {
	CheckLimit     int
	CheckWindow    time.Duration
	RequestTimeout time.Duration
}

// Server exposes the use cases over HTTP. Identity comes from the bearer
// token; handlers never trust an actor id sent in the body.
type Server struct {
	catalog    usecase.CatalogUseCase
	issuance   usecase.IssuanceUseCase
	redemption usecase.RedemptionUseCase
	ledger     usecase.LedgerUseCase

	tokens   *TokenManager
	identity adapter.Identity
	limiter  CheckLimiter
	validate *validator.Validate
	opts     Options
	log      *zerolog.Logger
	now      func() time.Time
}

func NewServer(
	catalog usecase.CatalogUseCase,
	issuance usecase.IssuanceUseCase,
	redemption usecase.RedemptionUseCase,
	ledger usecase.LedgerUseCase,
	tokens *TokenManager,
	limiter CheckLimiter,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	apiLog := logger.With().Str("component", "api").Logger()
	return &Server{
		catalog:    catalog,
		issuance:   issuance,
		redemption: redemption,
		ledger:     ledger,
		tokens:     tokens,
		identity:   ContextIdentity{},
		limiter:    limiter,
		validate:   validator.New(),
		opts:       opts,
		log:        &apiLog,
		now:        time.Now,
	}
}

// Routes builds the chi router with every public endpoint mounted.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID(), RequestLog(s.log), Recover(s.log), Timeout(s.opts.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(s.tokens))

		r.Get("/accounts/me", s.handleMyAccount)
		r.Get("/accounts/me/transactions", s.handleMyTransactions)
		r.Get("/templates/{id}", s.handleGetTemplate)

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(s.identity, model.AccountRoleMerchant))
			r.Post("/templates", s.handleCreateTemplate)
			r.Get("/merchants/me/templates", s.handleMyTemplates)
			r.Post("/templates/{id}/deactivate", s.handleDeactivate)
			r.Post("/redemptions/check", s.handleCheck)
			r.Post("/redemptions/{couponID}", s.handleRedeem)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(s.identity, model.AccountRolePlayer))
			r.Post("/templates/{id}/issue", s.handleIssue)
			r.Post("/templates/{id}/purchase", s.handlePurchase)
			r.Get("/players/me/coupons", s.handleMyCoupons)
		})
	})
	return r
}
