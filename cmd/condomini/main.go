package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"condomini/internal/amqp"
	"condomini/internal/auth"
	"condomini/internal/backend"
	"condomini/internal/cache"
	"condomini/internal/cli"
	apphttp "condomini/internal/http"
	"condomini/internal/log"
	"condomini/internal/metrics"
	"condomini/internal/scheduler"
	"condomini/internal/services"
)

const cacheSweepInterval = time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := be.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	m := metrics.New()

	tables := services.NewTableService(be.Units, services.TableOptions{
		Source:    be.Source,
		CacheSize: cfg.AllocationCacheSize,
		CacheTTL:  cfg.AllocationCacheTTL,
		Metrics:   m,
		Logger:    logger,
	})
	// A failed first load is served as 409/503 until a reload succeeds.
	if _, err := tables.Reload(ctx); err != nil {
		logger.Warn("Initial unit table load failed", log.FieldError, err)
	}

	var publisher services.VisitPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, visits are recorded directly", log.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP publisher ready", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	visits := services.NewVisitService(publisher, be.Visits, be.Visits, m, logger)

	authManager := auth.NewManager(auth.Options{
		PasswordHash: cfg.PasswordHash,
		Secret:       cfg.SessionSecret,
		TTL:          cfg.SessionTTL,
		Bypass:       cfg.AuthBypass,
		SecureCookie: cfg.CookieSecure,
	})
	if authManager.Bypassed() {
		logger.Warn("Authentication bypassed, every request is accepted")
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:    ":" + cfg.Port,
		Tables:  tables,
		Visits:  visits,
		Auth:    authManager,
		Metrics: m,
		Logger:  logger,
		VATRate: cfg.VATRate,
		Pinger:  be.Pinger,

		TrustedProxies: cfg.TrustedProxies,
	})

	caches := cache.NewManager(logger)
	caches.Register(tables.Cache())

	sched := scheduler.New(logger)
	if cfg.TableReloadSchedule != "" {
		reload := scheduler.JobFunc{
			JobName: "table-reload",
			Fn: func(ctx context.Context) error {
				_, err := tables.Reload(ctx)
				return err
			},
		}
		if err := sched.AddJob(cfg.TableReloadSchedule, reload); err != nil {
			logger.Error("Invalid table reload schedule", log.FieldError, err)
			os.Exit(1)
		}
	}

	logger.Info("Starting condomini",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldTableSource, be.Source,
		"reload_schedule", cfg.TableReloadSchedule)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return caches.Run(gctx, cacheSweepInterval) })
	if sched.Len() > 0 {
		g.Go(func() error { return sched.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
