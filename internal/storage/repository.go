package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"condomini/internal/core"
	ports "condomini/internal/sheets"

	_ "modernc.org/sqlite"
)

var (
	_ ports.UnitTableReader = (*SQLiteRepository)(nil)
	_ ports.UnitTableWriter = (*SQLiteRepository)(nil)
	_ ports.VisitRecorder   = (*SQLiteRepository)(nil)
	_ ports.VisitCounter    = (*SQLiteRepository)(nil)
	_ ports.VisitLister     = (*SQLiteRepository)(nil)
)

// visitTimeLayout sorts lexically in chronological order.
const visitTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteRepository stores the unit table and the visit log.
type SQLiteRepository struct {
	db   *sql.DB
	path string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps SQLite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, path: dbPath}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Source names the database file, for logs and snapshots.
func (r *SQLiteRepository) Source() string {
	return "sqlite:" + r.path
}

// ReadUnits implements sheets.UnitTableReader. Rows come back in import order.
func (r *SQLiteRepository) ReadUnits(ctx context.Context) ([]core.Unit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT identity, street_number, share, is_penthouse, is_included FROM units ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query units: %w", err)
	}
	defer rows.Close()

	var units []core.Unit
	for rows.Next() {
		var (
			identity, street    string
			share               float64
			penthouse, included bool
		)
		if err := rows.Scan(&identity, &street, &share, &penthouse, &included); err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		u, err := core.NewUnit(identity, street, share, penthouse, included)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return units, nil
}

// ReplaceUnits implements sheets.UnitTableWriter. The old table is dropped and
// the new one inserted in a single transaction.
func (r *SQLiteRepository) ReplaceUnits(ctx context.Context, units []core.Unit) error {
	for _, u := range units {
		if err := u.Validate(); err != nil {
			return err
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM units`); err != nil {
		return fmt.Errorf("clear units: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO units (position, identity, street_number, share, is_penthouse, is_included)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, u := range units {
		if _, err := stmt.ExecContext(ctx, i, u.Identity, u.StreetNumber, u.Share, u.IsPenthouse, u.IsIncluded); err != nil {
			return fmt.Errorf("insert unit %q: %w", u.Identity, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit units: %w", err)
	}

	slog.InfoContext(ctx, "Unit table imported into SQLite", "units", len(units), "path", r.path)
	return nil
}

// RecordVisit implements sheets.VisitRecorder. Redelivered visits with a known
// id are ignored.
func (r *SQLiteRepository) RecordVisit(ctx context.Context, v core.Visit) error {
	if err := v.Validate(); err != nil {
		return err
	}
	params := v.QueryParams
	if params == nil {
		params = map[string]string{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode query params: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO visits (id, session_id, user_agent, referrer, origin, language, query_params, visited_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.SessionID, v.UserAgent, v.Referrer, v.Origin, v.Language, string(encoded),
		v.Timestamp.UTC().Format(visitTimeLayout))
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

// CountVisits implements sheets.VisitCounter.
func (r *SQLiteRepository) CountVisits(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count visits: %w", err)
	}
	return n, nil
}

// RecentVisits implements sheets.VisitLister. A limit below one returns
// every visit.
func (r *SQLiteRepository) RecentVisits(ctx context.Context, limit int) ([]core.Visit, error) {
	if limit < 1 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, user_agent, referrer, origin, language, query_params, visited_at
		 FROM visits ORDER BY visited_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	var visits []core.Visit
	for rows.Next() {
		var (
			v         core.Visit
			params    string
			visitedAt string
		)
		if err := rows.Scan(&v.ID, &v.SessionID, &v.UserAgent, &v.Referrer, &v.Origin, &v.Language, &params, &visitedAt); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &v.QueryParams); err != nil {
			return nil, fmt.Errorf("decode query params of %s: %w", v.ID, err)
		}
		if v.Timestamp, err = time.Parse(visitTimeLayout, visitedAt); err != nil {
			return nil, fmt.Errorf("parse timestamp of %s: %w", v.ID, err)
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

// Ping checks that the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
