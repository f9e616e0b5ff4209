package sheets

import (
	"errors"
	"strings"
	"testing"

	"condomini/internal/core"
)

func TestParseUnitTable(t *testing.T) {
	rows := [][]string{
		{"Nominativo e interno", "Civico", "Millesimi", "Attico", "Incluso"},
		{"9;Rossi", "83", "600", "sì", "si"},
		{"1;Bianchi", "83", "200,5", "no", "1"},
		{"", "", "", "", ""},
		{"2;Verdi", "85", "199.5", "false", "x"},
		{"3;Neri", "85", "0", "0", "no"},
	}

	units, err := ParseUnitTable(rows)
	if err != nil {
		t.Fatalf("ParseUnitTable() error = %v", err)
	}
	if len(units) != 4 {
		t.Fatalf("got %d units, want 4", len(units))
	}

	first := units[0]
	if first.Interior != "9" || first.Household != "Rossi" || !first.IsPenthouse || !first.IsIncluded {
		t.Errorf("unexpected first unit: %+v", first)
	}
	if first.StreetNumber != "83" {
		t.Errorf("StreetNumber = %q, want 83", first.StreetNumber)
	}
	if units[1].Share != 200.5 {
		t.Errorf("comma decimal share = %v, want 200.5", units[1].Share)
	}
	if units[3].IsIncluded {
		t.Error("Neri should be excluded")
	}
}

func TestParseUnitTable_EnglishHeadersWithoutStreetNumber(t *testing.T) {
	rows := [][]string{
		{"share", "identity", "included", "penthouse"},
		{"1000", "1;Solo", "yes", "true"},
	}
	units, err := ParseUnitTable(rows)
	if err != nil {
		t.Fatalf("ParseUnitTable() error = %v", err)
	}
	if len(units) != 1 || units[0].Share != 1000 || units[0].StreetNumber != "" {
		t.Fatalf("unexpected units: %+v", units)
	}
}

func TestParseUnitTable_Errors(t *testing.T) {
	header := []string{"nominativo e interno", "civico", "millesimi", "attico", "incluso"}

	tests := []struct {
		name     string
		rows     [][]string
		wantLine int
		wantText string
	}{
		{
			name:     "no rows",
			rows:     nil,
			wantLine: 1,
			wantText: "missing header row",
		},
		{
			name:     "missing columns",
			rows:     [][]string{{"nominativo e interno", "millesimi"}},
			wantLine: 1,
			wantText: "missing columns: penthouse, included",
		},
		{
			name:     "identity without separator",
			rows:     [][]string{header, {"1;A", "83", "500", "no", "si"}, {"Bianchi", "83", "500", "no", "si"}},
			wantLine: 3,
			wantText: "exactly two parts",
		},
		{
			name:     "identity with three parts",
			rows:     [][]string{header, {"1;A;B", "83", "500", "no", "si"}},
			wantLine: 2,
			wantText: "exactly two parts",
		},
		{
			name:     "negative share",
			rows:     [][]string{header, {"1;A", "83", "-5", "no", "si"}},
			wantLine: 2,
			wantText: "negative share",
		},
		{
			name:     "share not a number",
			rows:     [][]string{header, {"1;A", "83", "tanti", "no", "si"}},
			wantLine: 2,
			wantText: "invalid share",
		},
		{
			name:     "bad penthouse flag",
			rows:     [][]string{header, {"1;A", "83", "10", "forse", "si"}},
			wantLine: 2,
			wantText: "penthouse flag",
		},
		{
			name:     "empty included flag",
			rows:     [][]string{header, {"1;A", "83", "10", "no", ""}},
			wantLine: 2,
			wantText: "included flag",
		},
		{
			name:     "duplicate identity",
			rows:     [][]string{header, {"1;A", "83", "10", "no", "si"}, {"1;A", "83", "10", "no", "si"}},
			wantLine: 3,
			wantText: "duplicate identity, first seen at line 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, err := ParseUnitTable(tt.rows)
			if err == nil {
				t.Fatalf("expected error, got units %+v", units)
			}
			if units != nil {
				t.Errorf("partial table returned: %+v", units)
			}
			if !errors.Is(err, core.ErrMalformedUnit) {
				t.Fatalf("error %v is not ErrMalformedUnit", err)
			}
			var mue *core.MalformedUnitError
			if !errors.As(err, &mue) {
				t.Fatalf("error %T is not *MalformedUnitError", err)
			}
			if mue.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", mue.Line, tt.wantLine)
			}
			if !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantText)
			}
		})
	}
}

func TestUnitRowsRoundTrip(t *testing.T) {
	u1, _ := core.NewUnit("9;Rossi", "83", 600, true, true)
	u2, _ := core.NewUnit("1;Bianchi", "", 400.25, false, false)

	units, err := ParseUnitTable(UnitRows([]core.Unit{u1, u2}))
	if err != nil {
		t.Fatalf("ParseUnitTable(UnitRows()) error = %v", err)
	}
	if len(units) != 2 || units[0] != u1 || units[1] != u2 {
		t.Fatalf("round trip mismatch: %+v", units)
	}
}

func TestParseBool(t *testing.T) {
	for _, in := range []string{"true", "TRUE", "1", "si", "Sì", "yes", "x", " X "} {
		if v, err := ParseBool(in); err != nil || !v {
			t.Errorf("ParseBool(%q) = %v, %v; want true", in, v, err)
		}
	}
	for _, in := range []string{"false", "0", "no", "No"} {
		if v, err := ParseBool(in); err != nil || v {
			t.Errorf("ParseBool(%q) = %v, %v; want false", in, v, err)
		}
	}
	if _, err := ParseBool("maybe"); err == nil {
		t.Error("ParseBool(maybe) should fail")
	}
}
