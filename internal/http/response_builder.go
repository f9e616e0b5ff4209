// Package http serves the allocation API.
//
// This file implements a small builder for JSON responses and the mapping
// from domain errors to status codes and error kinds.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"condomini/internal/auth"
	"condomini/internal/core"
	"condomini/internal/log"
	"condomini/internal/services"
)

// Error kinds reported in error bodies.
const (
	KindInvalidExpense          = "invalid_expense"
	KindInvalidAmount           = "invalid_amount"
	KindDegenerateApportionment = "degenerate_apportionment"
	KindMalformedUnit           = "malformed_unit"
	KindTableNotLoaded          = "table_not_loaded"
	KindUnauthorized            = "unauthorized"
	KindRateLimited             = "rate_limited"
	KindBadRequest              = "bad_request"
	KindInternal                = "internal"
)

// JSONResponseBuilder provides a fluent API for JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	cookies    []*http.Cookie
	body       any
}

// NewJSONResponse creates a builder with a 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Cookie(c *http.Cookie) *JSONResponseBuilder {
	b.cookies = append(b.cookies, c)
	return b
}

// Body sets the value encoded as the response body. A nil body sends no content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	for _, c := range b.cookies {
		http.SetCookie(w, c)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"response encoding failed","kind":"internal"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string         `json:"error"`
	Kind    string         `json:"kind"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse creates an error response with the given kind.
func ErrorResponse(statusCode int, kind, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(ErrorBody{Error: message, Kind: kind})
}

// ErrorFor maps err to its status code and error body.
func ErrorFor(err error) *JSONResponseBuilder {
	var (
		invalidExpense *core.InvalidExpenseError
		degenerate     *core.DegenerateApportionmentError
		malformed      *core.MalformedUnitError
	)

	switch {
	case errors.As(err, &invalidExpense):
		details := map[string]any{"category": invalidExpense.Category}
		if !math.IsNaN(invalidExpense.Amount) && !math.IsInf(invalidExpense.Amount, 0) {
			details["amount"] = invalidExpense.Amount
		}
		return NewJSONResponse().Status(http.StatusUnprocessableEntity).Body(ErrorBody{
			Error: invalidExpense.Error(), Kind: KindInvalidExpense, Details: details,
		})

	case errors.Is(err, core.ErrInvalidAmount):
		return ErrorResponse(http.StatusUnprocessableEntity, KindInvalidAmount, err.Error())

	case errors.Is(err, errBadFlag), errors.Is(err, errBadLimit):
		return ErrorResponse(http.StatusBadRequest, KindBadRequest, err.Error())

	case errors.As(err, &degenerate):
		return NewJSONResponse().Status(http.StatusConflict).Body(ErrorBody{
			Error: degenerate.Error(), Kind: KindDegenerateApportionment,
			Details: map[string]any{"denominator": string(degenerate.Denominator)},
		})

	case errors.As(err, &malformed):
		details := map[string]any{"identity": malformed.Identity, "reason": malformed.Reason}
		if malformed.Line > 0 {
			details["line"] = malformed.Line
		}
		return NewJSONResponse().Status(http.StatusConflict).Body(ErrorBody{
			Error: malformed.Error(), Kind: KindMalformedUnit, Details: details,
		})

	case errors.Is(err, services.ErrNoSnapshot):
		return ErrorResponse(http.StatusServiceUnavailable, KindTableNotLoaded, err.Error()).
			Header("Retry-After", "5")

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrNoSession):
		return ErrorResponse(http.StatusUnauthorized, KindUnauthorized, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(http.StatusGatewayTimeout, KindInternal, "upstream timeout")

	default:
		return ErrorResponse(http.StatusInternalServerError, KindInternal, "internal error")
	}
}

// writeError logs server-side failures and writes the mapped response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorFor(err)
	if resp.statusCode >= http.StatusInternalServerError && resp.statusCode != http.StatusServiceUnavailable {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
	}
	resp.Write(w)
}
