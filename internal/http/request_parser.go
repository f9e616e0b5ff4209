// This file parses allocation inputs and login bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"condomini/internal/core"
)

// maxBodyBytes bounds login bodies.
const maxBodyBytes = 4 << 10

// AllocationRequest holds the parsed expense totals of an allocation request.
type AllocationRequest struct {
	RoofCents    int64
	GeneralCents int64
	VATIncluded  bool
	VATRate      float64
}

// Roof returns the roof total the engine allocates, VAT included.
func (a AllocationRequest) Roof() float64 {
	return core.GrossAmount(core.CentsToEuros(a.RoofCents), a.VATRate, a.VATIncluded)
}

// General returns the general total the engine allocates, VAT included.
func (a AllocationRequest) General() float64 {
	return core.GrossAmount(core.CentsToEuros(a.GeneralCents), a.VATRate, a.VATIncluded)
}

// ParseAllocationRequest reads roof, general and vat_included from query.
// Amounts accept comma or dot decimals; vat_included defaults to false, so
// VAT at vatRate is added to both totals.
func ParseAllocationRequest(query url.Values, vatRate float64) (AllocationRequest, error) {
	req := AllocationRequest{VATRate: vatRate}

	var err error
	if req.RoofCents, err = parseAmount(query, "roof"); err != nil {
		return AllocationRequest{}, err
	}
	if req.GeneralCents, err = parseAmount(query, "general"); err != nil {
		return AllocationRequest{}, err
	}
	if v := strings.TrimSpace(query.Get("vat_included")); v != "" {
		included, ok := parseFlag(v)
		if !ok {
			return AllocationRequest{}, fmt.Errorf("vat_included %q: %w", v, errBadFlag)
		}
		req.VATIncluded = included
	}
	return req, nil
}

var (
	errBadFlag  = errors.New("not a boolean")
	errBadLimit = errors.New("not a positive integer")
)

const (
	defaultVisitLimit = 20
	maxVisitLimit     = 100
)

// ParseVisitLimit reads limit from query, defaulting to 20 and capping at 100.
func ParseVisitLimit(query url.Values) (int, error) {
	raw := strings.TrimSpace(query.Get("limit"))
	if raw == "" {
		return defaultVisitLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit %q: %w", raw, errBadLimit)
	}
	return min(n, maxVisitLimit), nil
}

func parseAmount(query url.Values, name string) (int64, error) {
	raw := sanitizeInput(query.Get(name))
	cents, err := core.ParseDecimalToCents(raw)
	if err != nil {
		return 0, fmt.Errorf("%s amount %q: %w", name, raw, err)
	}
	return cents, nil
}

func parseFlag(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes", "si", "sì":
		return true, true
	case "0", "false", "off", "no":
		return false, true
	default:
		return false, false
	}
}

// parseLoginPassword reads the password from a JSON or form-encoded body.
func parseLoginPassword(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "", errors.New("empty body")
	}

	if trimmed[0] == '{' {
		var payload struct {
			Password string `json:"password"`
		}
		if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
			return "", fmt.Errorf("decode body: %w", err)
		}
		return payload.Password, nil
	}

	form, err := url.ParseQuery(trimmed)
	if err != nil {
		return "", fmt.Errorf("decode form: %w", err)
	}
	return form.Get("password"), nil
}
