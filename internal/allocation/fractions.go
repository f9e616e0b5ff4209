// Package allocation implements the millesimal expense allocation engine.
//
// ComputeFractions derives each included unit's share of the roof and general
// expense categories from the unit table; Allocate turns those fractions and
// two expense totals into per-household amounts. Both are pure functions and
// safe for concurrent use.
package allocation

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"condomini/internal/core"
)

// denominatorEpsilon guards divisions against accumulated floating error.
const denominatorEpsilon = 1e-9

const (
	penthouseRoofPortion    = 1.0 / 3.0
	nonPenthouseRoofPortion = 2.0 / 3.0
)

// Totals are the share sums the fraction formulas divide by.
type Totals struct {
	General      float64 // included units
	Penthouse    float64 // included penthouse units
	NonPenthouse float64 // BuildingShares - Penthouse
}

// ComputeFractions returns one FractionRecord per included unit, in input order.
//
// The penthouse units carry one third of the roof expense in proportion to
// their shares; the others carry two thirds in proportion to their shares over
// the rest of the building. The general expense is split over all included
// units. A malformed unit or a vanishing denominator fails the whole table.
func ComputeFractions(units []core.Unit) ([]core.FractionRecord, error) {
	for _, u := range units {
		if err := u.Validate(); err != nil {
			return nil, err
		}
	}

	included := make([]core.Unit, 0, len(units))
	for _, u := range units {
		if u.IsIncluded {
			included = append(included, u)
		}
	}

	totals, err := ComputeTotals(included)
	if err != nil {
		return nil, err
	}

	records := make([]core.FractionRecord, 0, len(included))
	for _, u := range included {
		var roof float64
		if u.IsPenthouse {
			roof, err = checkedDivide(penthouseRoofPortion*u.Share, totals.Penthouse, core.PenthouseShare)
		} else {
			roof, err = checkedDivide(nonPenthouseRoofPortion*u.Share, totals.NonPenthouse, core.NonPenthouseShare)
		}
		if err != nil {
			return nil, err
		}
		general, err := checkedDivide(u.Share, totals.General, core.GeneralShare)
		if err != nil {
			return nil, err
		}
		records = append(records, core.FractionRecord{
			Unit:            u,
			RoofFraction:    roof,
			GeneralFraction: general,
		})
	}
	return records, nil
}

// ComputeTotals sums the shares of the given (already filtered) units and
// verifies that every denominator is usable.
func ComputeTotals(included []core.Unit) (Totals, error) {
	general := make([]float64, 0, len(included))
	penthouse := make([]float64, 0, len(included))
	for _, u := range included {
		general = append(general, u.Share)
		if u.IsPenthouse {
			penthouse = append(penthouse, u.Share)
		}
	}

	t := Totals{
		General:   floats.Sum(general),
		Penthouse: floats.Sum(penthouse),
	}
	t.NonPenthouse = core.BuildingShares - t.Penthouse

	for _, d := range []struct {
		name  core.Denominator
		value float64
	}{
		{core.GeneralShare, t.General},
		{core.PenthouseShare, t.Penthouse},
		{core.NonPenthouseShare, t.NonPenthouse},
	} {
		if vanishes(d.value) {
			return Totals{}, &core.DegenerateApportionmentError{Denominator: d.name, Value: d.value}
		}
	}
	return t, nil
}

// ShareSum returns the total share of all units, included or not.
func ShareSum(units []core.Unit) float64 {
	shares := make([]float64, len(units))
	for i, u := range units {
		shares[i] = u.Share
	}
	return floats.Sum(shares)
}

func checkedDivide(num, den float64, which core.Denominator) (float64, error) {
	if vanishes(den) {
		return 0, &core.DegenerateApportionmentError{Denominator: which, Value: den}
	}
	return num / den, nil
}

// vanishes reports whether v cannot divide a share: NaN, zero within
// epsilon, or negative, as when penthouse shares exceed the building total.
func vanishes(v float64) bool {
	return math.IsNaN(v) || v < denominatorEpsilon
}
