package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"condomini/internal/core"
	"condomini/internal/log"
	"condomini/internal/storage"
)

const table = `nominativo e interno,civico,millesimi,attico,incluso
9;Attico,83,600,si,si
1;A,83,200,no,si
2;B,83,200,no,si
`

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tabella.csv")
	if err := os.WriteFile(path, []byte(table), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
	return path
}

func quiet() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func TestRun_JSON(t *testing.T) {
	input := writeInput(t)
	var out bytes.Buffer

	err := run(context.Background(), []string{"-input", input, "-roof", "300", "-general", "1000", "-vat-included", "-json"}, &out, quiet())
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	var r struct {
		Total      string `json:"total"`
		Households []struct {
			Household   string `json:"household"`
			TotalAmount string `json:"total_amount"`
		} `json:"households"`
	}
	if err := json.Unmarshal(out.Bytes(), &r); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if r.Total != "1300" {
		t.Errorf("total = %s, want 1300", r.Total)
	}
	if len(r.Households) != 3 || r.Households[1].Household != "Attico" || r.Households[1].TotalAmount != "700" {
		t.Errorf("unexpected households: %+v", r.Households)
	}
}

func TestRun_TableAddsVAT(t *testing.T) {
	input := writeInput(t)
	var out bytes.Buffer

	err := run(context.Background(), []string{"-input", input, "-roof", "0", "-general", "100", "-vat", "0.1"}, &out, quiet())
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "Attico") || !strings.Contains(text, "110.00") {
		t.Errorf("unexpected table:\n%s", text)
	}
}

func TestRun_Errors(t *testing.T) {
	input := writeInput(t)

	err := run(context.Background(), []string{"-input", input, "-roof", "abc", "-general", "1"}, io.Discard, quiet())
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Errorf("bad roof: error = %v, want ErrInvalidAmount", err)
	}

	err = run(context.Background(), []string{"-input", filepath.Join(t.TempDir(), "missing.csv"), "-roof", "1", "-general", "1"}, io.Discard, quiet())
	if err == nil {
		t.Error("expected error for missing input")
	}

	err = run(context.Background(), []string{"-roof", "1", "-general", "1", "-vat", "2"}, io.Discard, quiet())
	if err == nil {
		t.Error("expected error for VAT rate above 1")
	}
}

func TestRun_ImportSQLite(t *testing.T) {
	input := writeInput(t)
	dbPath := filepath.Join(t.TempDir(), "condomini.db")

	err := run(context.Background(), []string{"-input", input, "-roof", "1", "-general", "1", "-import-sqlite", dbPath}, io.Discard, quiet())
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	defer repo.Close()
	units, err := repo.ReadUnits(context.Background())
	if err != nil || len(units) != 3 {
		t.Fatalf("ReadUnits() = %d units, %v", len(units), err)
	}
}
