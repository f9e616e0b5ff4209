package backend

import (
	"context"

	"condomini/internal/sheets"
)

// VisitStore records, counts and lists visits.
type VisitStore interface {
	sheets.VisitRecorder
	sheets.VisitCounter
	sheets.VisitLister
}

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// BackendResult holds the unit table source and the visit log selected by config.
type BackendResult struct {
	Units  sheets.UnitTableReader
	Source string
	Visits VisitStore
	// Pinger reports database health when the backend has one.
	Pinger  func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Close runs Cleanup when set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// CSV
	UnitTablePath string

	// SQLite units and the visit log; empty keeps visits in memory
	SQLiteDBPath string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleUnitsRange         string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType names the unit table source.
type BackendType string

const (
	CSVBackend    BackendType = "csv"
	SheetsBackend BackendType = "sheets"
	SQLiteBackend BackendType = "sqlite"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case CSVBackend, SheetsBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}
