// Package csvfile reads the millesimal table from a CSV export of the
// building's spreadsheet.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"condomini/internal/core"
	ports "condomini/internal/sheets"
)

var _ ports.UnitTableReader = (*Reader)(nil)

// Reader loads units from a comma-separated file. The file is read again on
// every call, so a table reload picks up edits.
type Reader struct {
	path string
}

func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Path returns the file the reader loads from.
func (r *Reader) Path() string {
	return r.path
}

func (r *Reader) ReadUnits(ctx context.Context) ([]core.Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("open unit table: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode parses a CSV stream into units.
func Decode(in io.Reader) ([]core.Unit, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read unit table csv: %w", err)
	}
	return ports.ParseUnitTable(rows)
}

// Encode writes units as CSV with the canonical header.
func Encode(out io.Writer, units []core.Unit) error {
	w := csv.NewWriter(out)
	if err := w.WriteAll(ports.UnitRows(units)); err != nil {
		return fmt.Errorf("write unit table csv: %w", err)
	}
	return nil
}

// WriteFile replaces path with the encoded table, creating parent directories.
func WriteFile(path string, units []core.Unit) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create unit table: %w", err)
	}
	if err := Encode(f, units); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
