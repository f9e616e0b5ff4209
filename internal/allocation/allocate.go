package allocation

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"condomini/internal/core"
)

// MoneyPlaces is the number of decimal places kept in household amounts.
const MoneyPlaces = 2

// AllocateUnits multiplies each unit's fractions by the expense totals.
// Amounts are left unrounded.
func AllocateUnits(fractions []core.FractionRecord, roofExpense, generalExpense float64) ([]core.AllocationRow, error) {
	if err := ValidateExpenses(roofExpense, generalExpense); err != nil {
		return nil, err
	}

	rows := make([]core.AllocationRow, len(fractions))
	for i, f := range fractions {
		roof := f.RoofFraction * roofExpense
		general := f.GeneralFraction * generalExpense
		rows[i] = core.AllocationRow{
			Unit:          f.Unit,
			RoofAmount:    roof,
			GeneralAmount: general,
			TotalAmount:   roof + general,
		}
	}
	return rows, nil
}

// Allocate computes the per-household breakdown of the two expense totals.
//
// Households are matched by exact name and returned in ascending name order.
// Monetary fields are rounded to two decimals, half away from zero, only after
// aggregation; the total is the rounded sum of the unrounded parts.
func Allocate(fractions []core.FractionRecord, roofExpense, generalExpense float64) ([]core.HouseholdSummary, error) {
	rows, err := AllocateUnits(fractions, roofExpense, generalExpense)
	if err != nil {
		return nil, err
	}

	type acc struct {
		interiors []string
		share     float64
		roof      float64
		general   float64
		total     float64
	}
	groups := make(map[string]*acc)
	for _, r := range rows {
		g, ok := groups[r.Unit.Household]
		if !ok {
			g = &acc{}
			groups[r.Unit.Household] = g
		}
		g.interiors = append(g.interiors, r.Unit.Interior)
		g.share += r.Unit.Share
		g.roof += r.RoofAmount
		g.general += r.GeneralAmount
		g.total += r.TotalAmount
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]core.HouseholdSummary, 0, len(names))
	for _, name := range names {
		g := groups[name]
		interiors := append([]string(nil), g.interiors...)
		sort.Strings(interiors)
		out = append(out, core.HouseholdSummary{
			Household:     name,
			Interiors:     interiors,
			Share:         g.share,
			RoofAmount:    roundMoney(g.roof),
			GeneralAmount: roundMoney(g.general),
			TotalAmount:   roundMoney(g.total),
		})
	}
	return out, nil
}

// GrandTotal sums the total amounts of the summaries.
func GrandTotal(summaries []core.HouseholdSummary) decimal.Decimal {
	total := decimal.Zero
	for _, s := range summaries {
		total = total.Add(s.TotalAmount)
	}
	return total
}

func roundMoney(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(MoneyPlaces)
}

// ValidateExpenses rejects negative, NaN and infinite totals with an
// *core.InvalidExpenseError naming the category.
func ValidateExpenses(roofExpense, generalExpense float64) error {
	if err := validateExpense("roof", roofExpense); err != nil {
		return err
	}
	return validateExpense("general", generalExpense)
}

func validateExpense(category string, amount float64) error {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return &core.InvalidExpenseError{Category: category, Amount: amount}
	}
	return nil
}
