// Package backend builds the unit table source and visit log from config.
package backend

import (
	"context"
	"errors"
	"fmt"

	"condomini/internal/log"
	"condomini/internal/sheets/csvfile"
	gsheet "condomini/internal/sheets/google"
	"condomini/internal/sheets/memory"
	"condomini/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend opens the configured unit table source. Visits go to SQLite
// whenever a database path is configured and to memory otherwise.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var repo *storage.SQLiteRepository
	if config.SQLiteDBPath != "" {
		var err error
		repo, err = storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
	}

	result, err := f.createUnitSource(ctx, config, repo)
	if err != nil {
		if repo != nil {
			err = errors.Join(err, repo.Close())
		}
		return nil, err
	}

	if repo != nil {
		result.Visits = repo
		result.Pinger = repo.Ping
		result.Cleanup = repo.Close
	} else {
		result.Visits = memory.New(nil)
		f.logger.Warn("No SQLite path configured, visits are kept in memory")
	}

	f.logger.InfoContext(ctx, "Initialized backend",
		"type", config.Type.String(),
		log.FieldTableSource, result.Source,
		"visits_persistent", repo != nil)
	return result, nil
}

func (f *DefaultFactory) createUnitSource(ctx context.Context, config Config, repo *storage.SQLiteRepository) (*BackendResult, error) {
	switch config.Type {
	case CSVBackend:
		reader := csvfile.NewReader(config.UnitTablePath)
		return &BackendResult{Units: reader, Source: "csv:" + reader.Path()}, nil

	case SQLiteBackend:
		if repo == nil {
			return nil, errors.New("SQLite database path is required for sqlite backend")
		}
		return &BackendResult{Units: repo, Source: repo.Source()}, nil

	case SheetsBackend:
		cli, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   config.GoogleSpreadsheetID,
			UnitsRange:      config.GoogleUnitsRange,
			CredentialsJSON: config.GoogleServiceAccountJSON,
			CredentialsFile: config.GoogleServiceAccountFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		return &BackendResult{Units: cli, Source: cli.Source()}, nil

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
