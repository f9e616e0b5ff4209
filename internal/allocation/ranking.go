package allocation

import (
	"sort"

	"github.com/shopspring/decimal"

	"condomini/internal/core"
)

// RankedHousehold is one bar of the ranked chart, or one tile of the treemap.
type RankedHousehold struct {
	Rank        int             `json:"rank"`
	Household   string          `json:"household"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Percentage  decimal.Decimal `json:"percentage"` // of the grand total, 2 places
}

// RankByTotal orders households by total amount, largest first, ties by name.
// Percentages are zero when the grand total is zero.
func RankByTotal(summaries []core.HouseholdSummary) []RankedHousehold {
	sorted := append([]core.HouseholdSummary(nil), summaries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].TotalAmount.Cmp(sorted[j].TotalAmount); c != 0 {
			return c > 0
		}
		return sorted[i].Household < sorted[j].Household
	})

	grand := GrandTotal(sorted)
	hundred := decimal.NewFromInt(100)
	out := make([]RankedHousehold, len(sorted))
	for i, s := range sorted {
		pct := decimal.Zero
		if !grand.IsZero() {
			pct = s.TotalAmount.Mul(hundred).Div(grand).Round(MoneyPlaces)
		}
		out[i] = RankedHousehold{
			Rank:        i + 1,
			Household:   s.Household,
			TotalAmount: s.TotalAmount,
			Percentage:  pct,
		}
	}
	return out
}
