package sheets

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"condomini/internal/core"
)

// Column roles of the unit table. Each role accepts the Italian header used by
// the building's spreadsheet and an English alias.
const (
	ColumnIdentity     = "identity"
	ColumnShare        = "share"
	ColumnPenthouse    = "penthouse"
	ColumnIncluded     = "included"
	ColumnStreetNumber = "street_number"
)

var headerAliases = map[string]string{
	"nominativo e interno": ColumnIdentity,
	"identity":             ColumnIdentity,
	"millesimi":            ColumnShare,
	"share":                ColumnShare,
	"attico":               ColumnPenthouse,
	"penthouse":            ColumnPenthouse,
	"incluso":              ColumnIncluded,
	"included":             ColumnIncluded,
	"civico":               ColumnStreetNumber,
	"street_number":        ColumnStreetNumber,
}

var requiredColumns = []string{ColumnIdentity, ColumnShare, ColumnPenthouse, ColumnIncluded}

// Header is the canonical header row, in the building's own column names.
var Header = []string{"nominativo e interno", "civico", "millesimi", "attico", "incluso"}

// ParseUnitTable converts a header row followed by data rows into units.
// Line numbers in errors are 1-based with the header on line 1. Blank rows
// are skipped; any other bad row refuses the whole table.
func ParseUnitTable(rows [][]string) ([]core.Unit, error) {
	if len(rows) == 0 {
		return nil, &core.MalformedUnitError{Line: 1, Reason: "missing header row"}
	}

	cols, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	units := make([]core.Unit, 0, len(rows)-1)
	seen := make(map[string]int, len(rows)-1)
	for i, row := range rows[1:] {
		line := i + 2
		if isBlank(row) {
			continue
		}
		u, err := parseRow(row, cols)
		if err != nil {
			return nil, atLine(err, line)
		}
		if prev, dup := seen[u.Identity]; dup {
			return nil, &core.MalformedUnitError{
				Line:     line,
				Identity: u.Identity,
				Reason:   fmt.Sprintf("duplicate identity, first seen at line %d", prev),
			}
		}
		seen[u.Identity] = line
		units = append(units, u)
	}
	return units, nil
}

// UnitRows renders units back into table rows, header first.
func UnitRows(units []core.Unit) [][]string {
	rows := make([][]string, 0, len(units)+1)
	rows = append(rows, append([]string(nil), Header...))
	for _, u := range units {
		rows = append(rows, []string{
			u.Identity,
			u.StreetNumber,
			strconv.FormatFloat(u.Share, 'f', -1, 64),
			formatBool(u.IsPenthouse),
			formatBool(u.IsIncluded),
		})
	}
	return rows
}

func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if role, ok := headerAliases[key]; ok {
			if _, dup := cols[role]; !dup {
				cols[role] = i
			}
		}
	}
	var missing []string
	for _, role := range requiredColumns {
		if _, ok := cols[role]; !ok {
			missing = append(missing, role)
		}
	}
	if len(missing) > 0 {
		return nil, &core.MalformedUnitError{
			Line:   1,
			Reason: "missing columns: " + strings.Join(missing, ", "),
		}
	}
	return cols, nil
}

func parseRow(row []string, cols map[string]int) (core.Unit, error) {
	identity := cell(row, cols, ColumnIdentity)

	share, err := ParseShare(cell(row, cols, ColumnShare))
	if err != nil {
		return core.Unit{}, &core.MalformedUnitError{Identity: identity, Reason: err.Error()}
	}
	penthouse, err := ParseBool(cell(row, cols, ColumnPenthouse))
	if err != nil {
		return core.Unit{}, &core.MalformedUnitError{Identity: identity, Reason: "penthouse flag: " + err.Error()}
	}
	included, err := ParseBool(cell(row, cols, ColumnIncluded))
	if err != nil {
		return core.Unit{}, &core.MalformedUnitError{Identity: identity, Reason: "included flag: " + err.Error()}
	}

	return core.NewUnit(identity, cell(row, cols, ColumnStreetNumber), share, penthouse, included)
}

// ParseShare reads a millesimal share written with either decimal separator.
func ParseShare(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty share")
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid share %q", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative share %q", s)
	}
	return v, nil
}

// ParseBool accepts the spellings found in hand-edited spreadsheets.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "si", "sì", "yes", "x", "vero":
		return true, nil
	case "false", "0", "no", "falso":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func cell(row []string, cols map[string]int, role string) string {
	i, ok := cols[role]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func atLine(err error, line int) error {
	var mue *core.MalformedUnitError
	if errors.As(err, &mue) {
		withLine := *mue
		withLine.Line = line
		return &withLine
	}
	return fmt.Errorf("line %d: %w", line, err)
}
