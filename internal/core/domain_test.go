package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestParseIdentity(t *testing.T) {
	cases := []struct {
		in        string
		interior  string
		household string
		ok        bool
	}{
		{"3;Rossi", "3", "Rossi", true},
		{" 12 ; Bianchi Maria ", "12", "Bianchi Maria", true},
		{"Rossi", "", "", false},
		{"1;Rossi;extra", "", "", false},
		{";Rossi", "", "", false},
		{"3;", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range cases {
		interior, household, err := ParseIdentity(tc.in)
		if tc.ok {
			if err != nil || interior != tc.interior || household != tc.household {
				t.Fatalf("%q: got (%q, %q, %v)", tc.in, interior, household, err)
			}
			continue
		}
		if !errors.Is(err, ErrMalformedUnit) {
			t.Fatalf("%q: expected malformed unit error, got %v", tc.in, err)
		}
	}
}

func TestNewUnit(t *testing.T) {
	u, err := NewUnit("7;Verdi", "83", 120.5, true, true)
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if u.Interior != "7" || u.Household != "Verdi" || u.StreetNumber != "83" || !u.IsPenthouse || !u.IsIncluded {
		t.Fatalf("unexpected unit: %+v", u)
	}

	if _, err := NewUnit("7;Verdi", "83", -1, false, true); !errors.Is(err, ErrMalformedUnit) {
		t.Fatalf("negative share: expected malformed unit error, got %v", err)
	}
	if _, err := NewUnit("7;Verdi", "83", math.NaN(), false, true); !errors.Is(err, ErrMalformedUnit) {
		t.Fatalf("NaN share: expected malformed unit error, got %v", err)
	}
}

func TestErrorsMatchSentinels(t *testing.T) {
	var err error = &DegenerateApportionmentError{Denominator: PenthouseShare}
	if !errors.Is(err, ErrDegenerateApportionment) {
		t.Fatalf("expected degenerate sentinel match")
	}
	var dae *DegenerateApportionmentError
	if !errors.As(err, &dae) || dae.Denominator != PenthouseShare {
		t.Fatalf("expected errors.As to expose the denominator")
	}
	if !errors.Is(&InvalidExpenseError{Category: "roof", Amount: -1}, ErrInvalidExpense) {
		t.Fatalf("expected invalid expense sentinel match")
	}
	if errors.Is(&InvalidExpenseError{}, ErrMalformedUnit) {
		t.Fatalf("unexpected cross-sentinel match")
	}
	msg := (&MalformedUnitError{Line: 4, Identity: "x", Reason: "bad"}).Error()
	if msg != `malformed unit at line 4 ("x"): bad` {
		t.Fatalf("unexpected message: %s", msg)
	}
}

func TestVisitValidate(t *testing.T) {
	if err := (Visit{ID: "a", Timestamp: time.Now()}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Visit{Timestamp: time.Now()}).Validate(); err != ErrEmptyVisitID {
		t.Fatalf("expected ErrEmptyVisitID, got %v", err)
	}
	if err := (Visit{ID: "a"}).Validate(); err != ErrZeroTimestamp {
		t.Fatalf("expected ErrZeroTimestamp, got %v", err)
	}
}
