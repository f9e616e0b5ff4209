package http

import (
	"net/http"
	"strings"

	"condomini/internal/auth"
	"condomini/internal/core"
)

const maxVisitField = 512

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func truncate(s string) string {
	s = sanitizeInput(s)
	if len(s) > maxVisitField {
		return s[:maxVisitField]
	}
	return s
}

// visitFromRequest captures who asked for an allocation. Id and timestamp
// are assigned by the visit service.
func visitFromRequest(r *http.Request) core.Visit {
	v := core.Visit{
		UserAgent: truncate(r.UserAgent()),
		Referrer:  truncate(r.Referer()),
		Origin:    truncate(r.Header.Get("Origin")),
		Language:  primaryLanguage(r.Header.Get("Accept-Language")),
	}
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		v.SessionID = claims.SessionID
	}
	if q := r.URL.Query(); len(q) > 0 {
		v.QueryParams = make(map[string]string, len(q))
		for k := range q {
			v.QueryParams[truncate(k)] = truncate(q.Get(k))
		}
	}
	return v
}

// primaryLanguage returns the first tag of an Accept-Language header.
func primaryLanguage(h string) string {
	first, _, _ := strings.Cut(h, ",")
	tag, _, _ := strings.Cut(first, ";")
	return truncate(tag)
}
