// Package cli provides common CLI initialization utilities shared by
// cmd/condomini, cmd/visit-worker and cmd/ripartizione.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"condomini/internal/config"
	"condomini/internal/log"
	"condomini/internal/sheets"
	"condomini/internal/sheets/csvfile"
	"condomini/internal/storage"
)

// SetupLogger builds the process logger at level and makes it the slog default.
func SetupLogger(level string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the SQLite repository at dbPath or exits the process.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	sqliteRepo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return sqliteRepo
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	}()
	return ctx, stop
}

// ImportUnitTable copies the CSV unit table at path into dst and returns the
// number of imported units. A table that fails validation is not written.
func ImportUnitTable(ctx context.Context, path string, dst sheets.UnitTableWriter) (int, error) {
	units, err := csvfile.NewReader(path).ReadUnits(ctx)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	if err := dst.ReplaceUnits(ctx, units); err != nil {
		return 0, fmt.Errorf("import units: %w", err)
	}
	return len(units), nil
}
