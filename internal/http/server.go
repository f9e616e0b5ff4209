package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"condomini/internal/auth"
	"condomini/internal/core"
	"condomini/internal/log"
	"condomini/internal/metrics"
	"condomini/internal/middleware/ratelimit"
	"condomini/internal/middleware/security"
	"condomini/internal/middleware/trace"
	"condomini/internal/services"
)

const shutdownTimeout = 15 * time.Second

// TableService is the part of the table service the handlers use.
type TableService interface {
	Snapshot() (*services.Snapshot, error)
	Reload(ctx context.Context) (*services.Snapshot, error)
	Allocate(ctx context.Context, roofExpense, generalExpense float64) (*services.Allocation, error)
}

// VisitService records, counts and lists allocation page visits.
type VisitService interface {
	RecordVisit(ctx context.Context, v core.Visit) (core.Visit, error)
	CountVisits(ctx context.Context) (int64, error)
	RecentVisits(ctx context.Context, limit int) ([]core.Visit, error)
}

// Options wires a Server.
type Options struct {
	Addr    string
	Tables  TableService
	Visits  VisitService
	Auth    *auth.Manager
	Metrics *metrics.Metrics
	Logger  *log.Logger
	VATRate float64
	// Pinger checks the database for /readyz; nil skips the check.
	Pinger func(ctx context.Context) error
	// LoginRequestsPerMinute limits login attempts per client.
	LoginRequestsPerMinute int
	// TrustedProxies are CIDRs whose forwarding headers are honoured.
	TrustedProxies []string
}

// Server is the HTTP front of the allocation service.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	tables   TableService
	visits   VisitService
	auth     *auth.Manager
	metrics  *metrics.Metrics
	logger   *log.Logger
	authLog  *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	vatRate  float64
	pinger   func(ctx context.Context) error
	started  time.Time
}

// NewServer configures middleware and routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	authManager := opts.Auth
	if authManager == nil {
		authManager = auth.NewManager(auth.Options{})
	}

	s := &Server{
		router:   chi.NewRouter(),
		tables:   opts.Tables,
		visits:   opts.Visits,
		auth:     authManager,
		metrics:  opts.Metrics,
		logger:   logger.WithComponent(log.ComponentHTTP),
		authLog:  logger.WithComponent(log.ComponentAuth),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.LoginRequestsPerMinute}),
		detector: security.NewDetector(),
		vatRate:  opts.VATRate,
		pinger:   opts.Pinger,
		started:  time.Now(),
	}

	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware() {
	tracer := trace.NewMiddleware(s.logger, s.detector.ClientIP, s.metrics.ObserveHTTP)
	s.router.Use(log.Middleware(s.logger))
	s.router.Use(tracer.Handler)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.detector.Middleware)
	s.router.Use(security.Headers(security.DefaultHeadersConfig()))
}

func (s *Server) setupRoutes() {
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, KindBadRequest, "not found").Write(w)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, KindBadRequest, "method not allowed").Write(w)
	})

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.With(s.limiter.Middleware(s.detector.ClientIP, s.onRateLimited)).
		Post("/login", s.handleLogin)
	s.router.Post("/logout", s.handleLogout)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.auth.Middleware(s.onUnauthorized))

		r.Get("/units", s.handleUnits)
		r.Get("/allocation", s.handleAllocation)
		r.Get("/allocation/chart", s.handleAllocationChart)
		r.Post("/table/reload", s.handleReload)
		r.Get("/visits", s.handleRecentVisits)
		r.Get("/visits/count", s.handleVisitCount)
	})
}

func (s *Server) onUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, err)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Login rate limit exceeded",
		log.FieldClientIP, s.detector.ClientIP(r))
	ErrorResponse(http.StatusTooManyRequests, KindRateLimited, "too many login attempts").Write(w)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", s.server.Addr)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.limiter.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
	s.limiter.Stop()
	return s.server.Shutdown(ctx)
}
