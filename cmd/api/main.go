package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"bookpay/internal/config"
	httpx "bookpay/internal/http"
	"bookpay/internal/ingest"
	"bookpay/internal/provider"
	"bookpay/internal/provider/paystack"
	"bookpay/internal/provider/stripe"
	"bookpay/internal/recon"
	"bookpay/internal/security"
	"bookpay/internal/services/event"
	"bookpay/internal/services/fraud"
	"bookpay/internal/services/payment"
	"bookpay/internal/services/refund"
	"bookpay/internal/store/memory"
	"bookpay/internal/store/postgres"
	redisstore "bookpay/internal/store/redis"
	"bookpay/internal/store/repositories"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init DB
	pool := postgres.MustOpen(ctx, cfg.DB.DSN)
	defer pool.Close()

	transactions := postgres.NewTransactionRepository(pool)
	ledger := postgres.NewLedgerRepository(pool)
	events := postgres.NewWebhookEventRepository(pool)
	bookings := postgres.NewBookingStore(pool)
	tenants := postgres.NewTenantRepository(pool)
	uow := postgres.NewUnitOfWork(pool)

	// Rate-limit counters live in Redis when configured so ceilings hold
	// across instances; the in-process store covers single-node setups.
	var counters repositories.AtomicCounterStore
	if cfg.Redis.Addr != "" {
		rdb := redisstore.MustOpen(ctx, cfg.Redis.Addr)
		defer rdb.Close()
		counters = redisstore.NewCounterStore(rdb)
	} else {
		log.Warn().Msg("REDIS_ADDR not set, using in-process rate limit counters")
		counters = memory.NewCounterStore()
	}

	// Provider registry
	registry := provider.NewRegistry()
	if cfg.Stripe.Secret != "" {
		registry.Register(stripe.New(stripe.Config{
			Secret:          []byte(cfg.Stripe.Secret),
			APIKey:          cfg.Stripe.APIKey,
			BaseURL:         cfg.Stripe.BaseURL,
			Tolerance:       cfg.Stripe.Tolerance,
			RateLimitPerMin: cfg.Stripe.RateLimitPerMin,
		}))
	}
	if cfg.Paystack.Secret != "" {
		registry.Register(paystack.New(paystack.Config{
			Secret:          []byte(cfg.Paystack.Secret),
			APIKey:          cfg.Paystack.APIKey,
			BaseURL:         cfg.Paystack.BaseURL,
			Tolerance:       cfg.Paystack.Tolerance,
			RateLimitPerMin: cfg.Paystack.RateLimitPerMin,
		}))
	}

	// Services
	scorer := fraud.NewWeightedScorer(cfg.Fraud.HighValueMinor, nil)
	payments := payment.NewService(transactions, bookings, uow, scorer, cfg.Fraud.HighValueMinor)
	refunds := refund.NewProcessor(transactions, registry, uow)
	processor := event.NewProcessor(payments, refunds)

	// Ingestion pipeline
	pipeline := ingest.NewPipeline(
		registry,
		security.NewVerifier(),
		security.NewReplayGuard(),
		security.NewDeduplicator(events),
		security.NewRateLimiter(counters),
		events,
	)
	for _, name := range registry.List() {
		pipeline.RegisterHandler(name, processor.ProcessEvent)
	}

	// Background workers
	reconEngine := recon.NewEngine(transactions, registry)
	go recon.NewWorkerWithSchedule(reconEngine, registry, cfg.Recon.Interval, cfg.Recon.Lookback).Run(ctx)
	go ingest.NewRetentionWorker(events, cfg.WebhookRetention).Run(ctx)

	// Router
	r := httpx.NewRouter(httpx.RouterDependencies{
		Pipeline:    pipeline,
		Payments:    payments,
		Refunds:     refunds,
		ReconEngine: reconEngine,
		Ledger:      ledger,
		Tenants:     tenants,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Msgf("bookpay API listening on :%s", cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	cancel()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	log.Info().Msg("server stopped")
}
