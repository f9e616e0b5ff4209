package core

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BuildingShares is the total of all millesimal shares in the building.
const BuildingShares = 1000.0

// IdentitySeparator splits the composite unit identity into interior and household.
const IdentitySeparator = ";"

type (
	// Unit is one row of the millesimal table.
	Unit struct {
		Identity     string // "<interior>;<household>"
		Interior     string
		Household    string
		StreetNumber string
		Share        float64 // thousandths
		IsPenthouse  bool
		IsIncluded   bool
	}

	// FractionRecord is the derived share of each expense category for one included unit.
	FractionRecord struct {
		Unit            Unit
		RoofFraction    float64
		GeneralFraction float64
	}

	// AllocationRow is the monetary split for one included unit. Amounts are not rounded.
	AllocationRow struct {
		Unit          Unit
		RoofAmount    float64
		GeneralAmount float64
		TotalAmount   float64
	}

	// HouseholdSummary aggregates the allocation rows of one household.
	HouseholdSummary struct {
		Household     string          `json:"household"`
		Interiors     []string        `json:"interiors"`
		Share         float64         `json:"share"`
		RoofAmount    decimal.Decimal `json:"roof_amount"`
		GeneralAmount decimal.Decimal `json:"general_amount"`
		TotalAmount   decimal.Decimal `json:"total_amount"`
	}

	// Visit is a single interaction with the allocation page.
	Visit struct {
		ID          string
		SessionID   string
		UserAgent   string
		Referrer    string
		Origin      string
		Language    string
		QueryParams map[string]string
		Timestamp   time.Time
	}
)

// ParseIdentity splits a composite identity into its interior and household parts.
// Exactly two non-empty parts are required.
func ParseIdentity(identity string) (interior, household string, err error) {
	parts := strings.Split(identity, IdentitySeparator)
	if len(parts) != 2 {
		return "", "", &MalformedUnitError{
			Identity: identity,
			Reason:   "identity must have exactly two parts separated by " + IdentitySeparator,
		}
	}
	interior = strings.TrimSpace(parts[0])
	household = strings.TrimSpace(parts[1])
	if interior == "" || household == "" {
		return "", "", &MalformedUnitError{Identity: identity, Reason: "identity has an empty part"}
	}
	return interior, household, nil
}

// NewUnit builds a unit from its composite identity.
func NewUnit(identity, streetNumber string, share float64, penthouse, included bool) (Unit, error) {
	interior, household, err := ParseIdentity(identity)
	if err != nil {
		return Unit{}, err
	}
	u := Unit{
		Identity:     strings.TrimSpace(identity),
		Interior:     interior,
		Household:    household,
		StreetNumber: strings.TrimSpace(streetNumber),
		Share:        share,
		IsPenthouse:  penthouse,
		IsIncluded:   included,
	}
	if err := u.Validate(); err != nil {
		return Unit{}, err
	}
	return u, nil
}

func (u Unit) Validate() error {
	if strings.TrimSpace(u.Household) == "" {
		return &MalformedUnitError{Identity: u.Identity, Reason: "empty household"}
	}
	if strings.TrimSpace(u.Interior) == "" {
		return &MalformedUnitError{Identity: u.Identity, Reason: "empty interior"}
	}
	if u.Share < 0 || math.IsNaN(u.Share) || math.IsInf(u.Share, 0) {
		return &MalformedUnitError{Identity: u.Identity, Reason: "share must be a finite non-negative number"}
	}
	return nil
}

// Validate checks the fields that the visit log needs.
func (v Visit) Validate() error {
	if strings.TrimSpace(v.ID) == "" {
		return ErrEmptyVisitID
	}
	if v.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}
