package main

import (
	"context"
	"errors"
	"os"

	"condomini/internal/amqp"
	"condomini/internal/cli"
	"condomini/internal/config"
	"condomini/internal/log"
	"condomini/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))

	logger.Info("Starting visit-worker", log.FieldOperation, log.OpStartup)

	// The worker only needs the broker and the database, so the access
	// gate settings of the server are not validated here.
	cfg := config.Load()
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the visit worker")
		os.Exit(1)
	}
	if cfg.SQLiteDBPath == "" {
		logger.Error("SQLITE_DB_PATH is required for the visit worker")
		os.Exit(1)
	}

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	w := worker.NewVisitWorker(amqpClient, sqliteRepo, logger)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Visit worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	if n, err := sqliteRepo.CountVisits(context.Background()); err == nil {
		logger.Info("Visit worker stopped gracefully", "visits", n)
	}
}
