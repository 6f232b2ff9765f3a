// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"coupon-marketplace/internal/config"
	"coupon-marketplace/internal/domain/ports/repository"
	"coupon-marketplace/internal/infra/api"
	pg "coupon-marketplace/internal/infra/db/postgres"
	"coupon-marketplace/internal/infra/logging"
	"coupon-marketplace/internal/infra/metrics"
	red "coupon-marketplace/internal/infra/redis"
	"coupon-marketplace/internal/infra/sched"
	"coupon-marketplace/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, verbose redemption logging)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Repositories ----
	accountRepo := pg.NewPostgresAccountRepo(pool)
	ledgerRepo := pg.NewPostgresLedgerRepo(pool)
	couponRepo := pg.NewPostgresIssuedCouponRepo(pool)
	var templateRepo repository.CouponTemplateRepository = pg.NewPostgresCouponTemplateRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Redis (optional: template cache + check limiter) ----
	var limiter api.CheckLimiter
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		templateRepo = pg.NewTemplateRepoCacheDecorator(templateRepo, redisClient, cfg.Redis.TTL, logger)
		limiter = red.NewRateLimiter(redisClient)
		logger.Info().Str("addr", cfg.Redis.URL).Msg("redis enabled")
	} else {
		logger.Warn().Msg("redis.url not set; template cache and check throttling disabled")
	}

	// ---- Use cases ----
	ledgerUC := usecase.NewLedgerUseCase(accountRepo, ledgerRepo, tm, logger)
	catalogUC := usecase.NewCatalogUseCase(templateRepo, accountRepo, ledgerRepo, tm, logger)
	issuanceUC := usecase.NewIssuanceUseCase(catalogUC, templateRepo, couponRepo, accountRepo, ledgerRepo, tm, cfg.Passcode.MaxAttempts, logger)
	redemptionUC := usecase.NewRedemptionUseCase(couponRepo, accountRepo, ledgerRepo, tm, cfg.Runtime.Dev, logger)

	// ---- HTTP ----
	tokens := api.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	apiServer := api.NewServer(catalogUC, issuanceUC, redemptionUC, ledgerUC, tokens, limiter, api.Options{
		CheckLimit:     cfg.Redemption.CheckLimit,
		CheckWindow:    cfg.Redemption.CheckWindow,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      apiServer.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Pool stats ----
	reporter := sched.NewPoolStatsReporter(cfg.Database.StatsInterval, sched.PgxPoolStats(pool), logger)
	go func() { _ = reporter.Run(ctx) }()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
