package core

import (
	"errors"
	"fmt"
)

var (
	ErrDegenerateApportionment = errors.New("degenerate apportionment")
	ErrInvalidExpense          = errors.New("invalid expense")
	ErrMalformedUnit           = errors.New("malformed unit")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrEmptyVisitID            = errors.New("empty visit id")
	ErrZeroTimestamp           = errors.New("zero timestamp")
)

// Denominator names a divisor of the apportionment formulas.
type Denominator string

const (
	PenthouseShare    Denominator = "penthouse_share"
	NonPenthouseShare Denominator = "non_penthouse_share"
	GeneralShare      Denominator = "general_share"
)

// DegenerateApportionmentError reports a vanished denominator.
type DegenerateApportionmentError struct {
	Denominator Denominator
	Value       float64
}

func (e *DegenerateApportionmentError) Error() string {
	return fmt.Sprintf("degenerate apportionment: %s denominator is %g", e.Denominator, e.Value)
}

func (e *DegenerateApportionmentError) Is(target error) bool {
	return target == ErrDegenerateApportionment
}

// InvalidExpenseError reports a negative or non-finite expense total.
type InvalidExpenseError struct {
	Category string
	Amount   float64
}

func (e *InvalidExpenseError) Error() string {
	return fmt.Sprintf("invalid %s expense %g: must be a finite non-negative amount", e.Category, e.Amount)
}

func (e *InvalidExpenseError) Is(target error) bool {
	return target == ErrInvalidExpense
}

// MalformedUnitError reports a unit record that cannot take part in an allocation.
// Line is the 1-based source line when the loader knows it, 0 otherwise.
type MalformedUnitError struct {
	Line     int
	Identity string
	Reason   string
}

func (e *MalformedUnitError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed unit at line %d (%q): %s", e.Line, e.Identity, e.Reason)
	}
	return fmt.Sprintf("malformed unit %q: %s", e.Identity, e.Reason)
}

func (e *MalformedUnitError) Is(target error) bool {
	return target == ErrMalformedUnit
}
