package http

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"condomini/internal/allocation"
	"condomini/internal/core"
	"condomini/internal/log"
	"condomini/internal/middleware/trace"
	"condomini/internal/services"
)

const readyTimeout = 3 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady is ready once a usable unit table is loaded and the database answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{}

	if snap, err := s.tables.Snapshot(); err != nil {
		checks["unit_table"] = "failed: " + err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["unit_table"] = "ok (" + snap.Version + ")"
	}

	if s.pinger != nil {
		if err := s.pinger(ctx); err != nil {
			checks["database"] = "failed: " + err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	label := "ready"
	if status != http.StatusOK {
		label = "not_ready"
	}
	NewJSONResponse().Status(status).Body(map[string]any{
		"status": label,
		"checks": checks,
	}).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	password, err := parseLoginPassword(r)
	if err != nil {
		ErrorResponse(http.StatusBadRequest, KindBadRequest, "password is required").Write(w)
		return
	}

	cookie, claims, err := s.auth.Login(password)
	if err != nil {
		s.authLog.WarnContext(r.Context(), "Login failed",
			log.FieldOperation, log.OpLogin,
			log.FieldRequestID, trace.GetRequestID(r.Context()),
			log.FieldClientIP, s.detector.ClientIP(r),
			log.FieldError, err)
		writeError(w, r, err)
		return
	}

	s.authLog.InfoContext(r.Context(), "Login succeeded",
		log.FieldOperation, log.OpLogin,
		log.FieldRequestID, trace.GetRequestID(r.Context()),
		log.FieldSessionID, claims.SessionID)
	NewJSONResponse().Cookie(cookie).Body(map[string]any{
		"session_id": claims.SessionID,
		"expires_at": claims.ExpiresAt.Time.UTC(),
	}).Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Status(http.StatusNoContent).Cookie(s.auth.LogoutCookie()).Write(w)
}

type unitView struct {
	Identity        string   `json:"identity"`
	Interior        string   `json:"interior"`
	Household       string   `json:"household"`
	StreetNumber    string   `json:"street_number,omitempty"`
	Share           float64  `json:"share"`
	IsPenthouse     bool     `json:"is_penthouse"`
	IsIncluded      bool     `json:"is_included"`
	RoofFraction    *float64 `json:"roof_fraction,omitempty"`
	GeneralFraction *float64 `json:"general_fraction,omitempty"`
}

// handleUnits lists the loaded table with the fractions of included units.
func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	snap, err := s.tables.Snapshot()
	if err != nil {
		writeError(w, r, err)
		return
	}

	fractions := make(map[string]core.FractionRecord, len(snap.Fractions))
	for _, f := range snap.Fractions {
		fractions[f.Unit.Identity] = f
	}

	units := make([]unitView, 0, len(snap.Units))
	for _, u := range snap.Units {
		v := unitView{
			Identity:     u.Identity,
			Interior:     u.Interior,
			Household:    u.Household,
			StreetNumber: u.StreetNumber,
			Share:        u.Share,
			IsPenthouse:  u.IsPenthouse,
			IsIncluded:   u.IsIncluded,
		}
		if f, ok := fractions[u.Identity]; ok {
			roof, general := f.RoofFraction, f.GeneralFraction
			v.RoofFraction, v.GeneralFraction = &roof, &general
		}
		units = append(units, v)
	}

	NewJSONResponse().Body(map[string]any{
		"table_version":  snap.Version,
		"source":         snap.Source,
		"loaded_at":      snap.LoadedAt.UTC(),
		"share_sum":      snap.ShareSum,
		"included_units": snap.IncludedUnits(),
		"units":          units,
	}).Write(w)
}

type allocationView struct {
	*services.Allocation
	RoofNet     decimal.Decimal `json:"roof_net"`
	GeneralNet  decimal.Decimal `json:"general_net"`
	VATIncluded bool            `json:"vat_included"`
	VATRate     float64         `json:"vat_rate"`
}

func (s *Server) allocate(w http.ResponseWriter, r *http.Request) (*services.Allocation, AllocationRequest, bool) {
	req, err := ParseAllocationRequest(r.URL.Query(), s.vatRate)
	if err != nil {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Allocation request rejected",
			log.FieldOperation, log.OpParse,
			log.FieldQuery, r.URL.RawQuery,
			log.FieldError, err)
		writeError(w, r, err)
		return nil, req, false
	}

	result, err := s.tables.Allocate(r.Context(), req.Roof(), req.General())
	if err != nil {
		writeError(w, r, err)
		return nil, req, false
	}

	s.recordVisit(r)
	return result, req, true
}

// recordVisit logs the visit without failing the request.
func (s *Server) recordVisit(r *http.Request) {
	if s.visits == nil {
		return
	}
	if _, err := s.visits.RecordVisit(r.Context(), visitFromRequest(r)); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Visit not recorded",
			log.FieldOperation, log.OpRecord,
			log.FieldError, err)
	}
}

func (s *Server) handleAllocation(w http.ResponseWriter, r *http.Request) {
	result, req, ok := s.allocate(w, r)
	if !ok {
		return
	}
	NewJSONResponse().Body(allocationView{
		Allocation:  result,
		RoofNet:     decimal.New(req.RoofCents, -2),
		GeneralNet:  decimal.New(req.GeneralCents, -2),
		VATIncluded: req.VATIncluded,
		VATRate:     req.VATRate,
	}).Write(w)
}

func (s *Server) handleAllocationChart(w http.ResponseWriter, r *http.Request) {
	result, _, ok := s.allocate(w, r)
	if !ok {
		return
	}
	NewJSONResponse().Body(map[string]any{
		"table_version": result.Version,
		"total":         result.Total,
		"rows":          allocation.RankByTotal(result.Households),
	}).Write(w)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.tables.Reload(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(map[string]any{
		"table_version":  snap.Version,
		"source":         snap.Source,
		"units":          len(snap.Units),
		"included_units": snap.IncludedUnits(),
		"share_sum":      snap.ShareSum,
	}).Write(w)
}

func (s *Server) handleVisitCount(w http.ResponseWriter, r *http.Request) {
	if s.visits == nil {
		NewJSONResponse().Body(map[string]int64{"count": 0}).Write(w)
		return
	}
	n, err := s.visits.CountVisits(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(map[string]int64{"count": n}).Write(w)
}

type visitView struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"session_id,omitempty"`
	UserAgent   string            `json:"user_agent,omitempty"`
	Referrer    string            `json:"referrer,omitempty"`
	Origin      string            `json:"origin,omitempty"`
	Language    string            `json:"language,omitempty"`
	QueryParams map[string]string `json:"query_params,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// handleRecentVisits lists the newest visits, limit defaulting to 20.
func (s *Server) handleRecentVisits(w http.ResponseWriter, r *http.Request) {
	limit, err := ParseVisitLimit(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := []visitView{}
	if s.visits != nil {
		visits, err := s.visits.RecentVisits(r.Context(), limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		for _, v := range visits {
			views = append(views, visitView{
				ID:          v.ID,
				SessionID:   v.SessionID,
				UserAgent:   v.UserAgent,
				Referrer:    v.Referrer,
				Origin:      v.Origin,
				Language:    v.Language,
				QueryParams: v.QueryParams,
				Timestamp:   v.Timestamp,
			})
		}
	}
	NewJSONResponse().Body(map[string]any{"visits": views}).Write(w)
}
