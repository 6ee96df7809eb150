package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/printertechn/filaops-sub000/internal/config"
	"github.com/printertechn/filaops-sub000/internal/infra"
	"github.com/printertechn/filaops-sub000/internal/repository"
	"github.com/printertechn/filaops-sub000/internal/router"
	"github.com/printertechn/filaops-sub000/internal/service"
	"github.com/printertechn/filaops-sub000/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Structured logger — dev: pretty, prod: JSON
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// All SMTP traffic runs through one circuit breaker so a dead relay
	// fast-fails instead of stalling the pool.
	mailCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())

	// Router wires the full dependency graph and hands back the worker
	// handlers so the pool shares service instances with the HTTP layer.
	r, workerHandlers := router.New(cfg, db, rdb, mailCB)
	worker.StartWorkerPool(ctx, rdb, workerHandlers, cfg.WorkerPoolSize)

	// Reorder-point scanner — enqueues low-stock alert emails
	itemRepo := repository.NewItemRepository(db)
	journalSvc := service.NewJournalService(repository.NewJournalRepository(db), db)
	ledgerSvc := service.NewLedgerService(repository.NewLedgerRepository(db), itemRepo, journalSvc)
	worker.StartStockAlertCron(ctx, worker.StockAlertCronConfig{
		ItemRepo:   itemRepo,
		Ledger:     ledgerSvc,
		Dispatcher: worker.NewDispatcher(rdb),
		RDB:        rdb,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("planning core listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
