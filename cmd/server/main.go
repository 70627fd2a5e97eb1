// Package main is the entry point for the folio portfolio accounting
// service. It tracks equity holdings per user: an append-only trade
// ledger, weighted-average-cost positions, a stock catalog with a quote
// price cache, and derived performance and allocation views.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/folio/internal/clients/alphavantage"
	"github.com/aristath/folio/internal/config"
	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/modules/accounts"
	accounthandlers "github.com/aristath/folio/internal/modules/accounts/handlers"
	"github.com/aristath/folio/internal/modules/catalog"
	cataloghandlers "github.com/aristath/folio/internal/modules/catalog/handlers"
	"github.com/aristath/folio/internal/modules/ledger"
	ledgerhandlers "github.com/aristath/folio/internal/modules/ledger/handlers"
	"github.com/aristath/folio/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/folio/internal/modules/portfolio/handlers"
	"github.com/aristath/folio/internal/scheduler"
	"github.com/aristath/folio/internal/server"
	"github.com/aristath/folio/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting folio")

	// Single database: trades, positions, accounts and the catalog live
	// together so aggregation queries can join across them.
	db, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "folio.db"),
		Profile: database.ProfileLedger,
		Name:    "folio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	// Repositories and services
	accountRepo := accounts.NewRepository(db.Conn(), log)
	accountSvc := accounts.NewService(accountRepo, log)
	authorizer := accounts.NewAuthorizer(accountSvc)

	quotes := alphavantage.NewClient(cfg.AlphaVantageAPIKey, log)

	stockRepo := catalog.NewRepository(db.Conn(), log)
	priceCache := catalog.NewCache()
	catalogSvc := catalog.NewService(stockRepo, priceCache, quotes,
		cfg.RefreshBatchSize, cfg.RefreshCooldown, log)

	positionRepo := ledger.NewPositionRepository(db.Conn(), log)
	transactionRepo := ledger.NewTransactionRepository(db.Conn(), log)
	ledgerSvc := ledger.NewService(db, accountRepo, stockRepo, positionRepo, transactionRepo, log)

	portfolioSvc := portfolio.NewService(accountRepo, stockRepo, positionRepo, transactionRepo, log)

	// Background jobs, cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refreshJob := scheduler.NewRefreshPricesJob(ctx, catalogSvc, log)
	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.RefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register refresh job")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:               log,
		DB:                db,
		Cfg:               cfg,
		AccountHandlers:   accounthandlers.NewHandler(accountSvc, authorizer, log),
		CatalogHandlers:   cataloghandlers.NewHandler(catalogSvc, authorizer, log),
		LedgerHandlers:    ledgerhandlers.NewHandler(ledgerSvc, authorizer, log),
		PortfolioHandlers: portfoliohandlers.NewHandler(portfolioSvc, authorizer, log),
		RefreshJob:        refreshJob,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	if err := db.WALCheckpoint("TRUNCATE"); err != nil {
		log.Warn().Err(err).Msg("Final WAL checkpoint failed")
	}

	log.Info().Msg("Shutdown complete")
}
