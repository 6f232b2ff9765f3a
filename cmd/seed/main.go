package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"coupon-marketplace/internal/config"
	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/ports/adapter"
	"coupon-marketplace/internal/infra/api"
	pg "coupon-marketplace/internal/infra/db/postgres"
	"coupon-marketplace/internal/infra/logging"
	"coupon-marketplace/internal/usecase"

	"github.com/google/uuid"
)

// seed opens a demo merchant and player, tops both up, and prints bearer
// tokens for trying the API by hand.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	merchantPoints := flag.Int64("merchant-points", 100_000, "points recharged to the demo merchant")
	playerPoints := flag.Int64("player-points", 5_000, "points recharged to the demo player")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed tokens")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	ledgerUC := usecase.NewLedgerUseCase(pg.NewPostgresAccountRepo(pool), pg.NewPostgresLedgerRepo(pool), pg.NewTxManager(pool), logger)
	tokens := api.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	seed := []struct {
		Principal adapter.Principal
		Points    int64
	}{
		{adapter.Principal{ID: uuid.NewString(), Email: "merchant@demo.local", Role: model.AccountRoleMerchant}, *merchantPoints},
		{adapter.Principal{ID: uuid.NewString(), Email: "player@demo.local", Role: model.AccountRolePlayer}, *playerPoints},
	}

	for _, s := range seed {
		acc, err := ledgerUC.OpenAccount(ctx, s.Principal.ID, s.Principal.Role)
		if err != nil {
			logger.Fatal().Err(err).Str("role", string(s.Principal.Role)).Msg("open account")
		}
		if s.Points > 0 {
			if _, err := ledgerUC.Recharge(ctx, acc.ID, s.Points, "seed"); err != nil {
				logger.Fatal().Err(err).Str("account_id", acc.ID).Msg("recharge")
			}
		}
		balance, err := ledgerUC.GetBalance(ctx, acc.ID)
		if err != nil {
			logger.Fatal().Err(err).Str("account_id", acc.ID).Msg("balance")
		}
		tok, err := tokens.Mint(s.Principal, *tokenTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("mint token")
		}
		fmt.Printf("%s owner=%s account=%s balance=%d\n  token: %s\n", s.Principal.Role, s.Principal.ID, acc.ID, balance, tok)
	}
}
