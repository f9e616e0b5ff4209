package csvfile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"condomini/internal/core"
)

const sample = `nominativo e interno,civico,millesimi,attico,incluso
9;Attico,83,600,si,si
1;A,83,200,no,si
2;B,85,"200,0",no,si
`

func TestReader_ReadUnits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabella.csv")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := NewReader(path)
	units, err := r.ReadUnits(context.Background())
	if err != nil {
		t.Fatalf("ReadUnits() error = %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("got %d units, want 3", len(units))
	}
	if units[2].Share != 200 || units[2].Household != "B" {
		t.Errorf("unexpected third unit: %+v", units[2])
	}

	// edits are visible on the next read
	edited := sample + "3;C,85,0,no,no\n"
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	units, err = r.ReadUnits(context.Background())
	if err != nil {
		t.Fatalf("ReadUnits() after edit error = %v", err)
	}
	if len(units) != 4 {
		t.Fatalf("got %d units after edit, want 4", len(units))
	}
}

func TestReader_MalformedRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabella.csv")
	content := sample + "Solo nome,83,10,no,si\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, err := NewReader(path).ReadUnits(context.Background())
	var mue *core.MalformedUnitError
	if !errors.As(err, &mue) {
		t.Fatalf("expected MalformedUnitError, got %v", err)
	}
	if mue.Line != 5 {
		t.Errorf("Line = %d, want 5", mue.Line)
	}
}

func TestReader_MissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "missing.csv")).ReadUnits(context.Background())
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestReader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewReader("unused.csv").ReadUnits(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	units, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, units); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	again, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode(Encode()) error = %v", err)
	}
	if len(again) != len(units) {
		t.Fatalf("got %d units, want %d", len(again), len(units))
	}
	for i := range units {
		if again[i] != units[i] {
			t.Errorf("unit %d: got %+v, want %+v", i, again[i], units[i])
		}
	}
}

func TestWriteFile(t *testing.T) {
	units, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	if err := WriteFile(path, units); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	got, err := NewReader(path).ReadUnits(context.Background())
	if err != nil {
		t.Fatalf("ReadUnits() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d units, want 3", len(got))
	}
}
