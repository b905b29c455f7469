package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"caja/internal/log"
	"caja/internal/middleware/ratelimit"
	"caja/internal/middleware/security"
	"caja/internal/middleware/trace"
	"caja/internal/records"
	"caja/internal/services"
)

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BrokerHealth reports whether the event broker connection is open.
type BrokerHealth interface {
	Healthy() bool
}

// Options wires the server to the services of the process.
type Options struct {
	Addr       string
	Dashboards *services.DashboardService
	// Cash is nil when the backend does not accept writes.
	Cash  *services.CashService
	Store Pinger
	// Snapshots is nil unless the backend persists month snapshots.
	Snapshots records.SnapshotStore
	// Broker is nil when movements are not published.
	Broker         BrokerHealth
	Logger         *log.Logger
	WriteRateLimit int
	Location       *time.Location
}

type Server struct {
	http.Server
	dashboards *services.DashboardService
	cash       *services.CashService
	store      Pinger
	snapshots  records.SnapshotStore
	broker     BrokerHealth
	loc        *time.Location
	now        func() time.Time

	logger     *log.Logger
	structured *log.StructuredLogger
	trace      *trace.Middleware
	limiter    *ratelimit.Limiter
	headers    *security.HeadersMiddleware

	started           time.Time
	movementsRecorded atomic.Int64
	shutdownOnce      sync.Once
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	s := &Server{
		Server:     http.Server{Addr: opts.Addr},
		dashboards: opts.Dashboards,
		cash:       opts.Cash,
		store:      opts.Store,
		snapshots:  opts.Snapshots,
		broker:     opts.Broker,
		loc:        loc,
		now:        time.Now,
		logger:     logger,
		structured: log.NewStructuredLogger(logger),
		trace:      trace.NewMiddleware(trace.ClientIP),
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.WriteRateLimit}),
		headers:    security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		started:    time.Now(),
	}
	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.trace.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(log.Middleware(s.logger, trace.GetRequestID))
	r.Use(s.headers.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/accounts", s.handleAccounts)
		r.Get("/snapshots", s.handleSnapshots)
		r.With(s.limiter.Middleware(trace.ClientIP, s.onRateLimited)).
			Post("/movements", s.handleCreateMovement)
	})
	return r
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, trace.ClientIP(r), log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// Shutdown stops background work, then drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(s.limiter.Stop)
	return s.Server.Shutdown(ctx)
}
