package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"harvestdash/internal/cache"
	"harvestdash/internal/dashboard"
	"harvestdash/internal/log"
	"harvestdash/internal/middleware/ratelimit"
	"harvestdash/internal/middleware/security"
	"harvestdash/internal/refresh"
	"harvestdash/internal/storage"
)

const (
	detailCacheSize = 64
	detailCacheTTL  = 5 * time.Minute
)

// DashboardProvider is the read side of the refresh driver.
type DashboardProvider interface {
	Current() *refresh.View
	Status() refresh.Status
	Refresh() bool
	IsRunning() bool
}

// SnapshotInfo reports what the snapshot store holds for a source.
type SnapshotInfo interface {
	LatestInfo(ctx context.Context, source string) (storage.Info, error)
}

// Options configures the API server. Zero values get defaults.
type Options struct {
	Logger *log.Logger
	// PreviewRows caps the preview rows of each sheet descriptor.
	PreviewRows int
	// RefreshRateLimit is the number of manual refreshes a client may
	// request per minute.
	RefreshRateLimit int
	// CacheManager, when set, evicts expired sheet detail entries.
	CacheManager *cache.Manager
	// TrustedProxies are extra CIDRs whose forwarding headers are believed.
	TrustedProxies []string
	// Snapshots, when set, adds the persisted snapshot to /api/status.
	Snapshots SnapshotInfo
	Now       func() time.Time
}

type appMetrics struct {
	startedAt       time.Time
	cacheHits       atomic.Int64
	cacheMisses     atomic.Int64
	refreshRequests atomic.Int64
}

// Server serves the current dashboard over HTTP.
type Server struct {
	http.Server
	provider    DashboardProvider
	logger      *log.Logger
	previewRows int
	now         func() time.Time

	limiter   *ratelimit.Limiter
	detector  *security.Detector
	snapshots SnapshotInfo

	// Ranked sheet details keyed by snapshot identity and sheet name.
	detailCache *cache.LRUCache[dashboard.Detail]

	appMetrics   appMetrics
	shutdownOnce sync.Once
}

// NewServer wires the router. The rate limiter's cleanup goroutine runs
// until Shutdown.
func NewServer(addr string, provider DashboardProvider, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = dashboard.DefaultPreviewRows
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		provider:    provider,
		logger:      opts.Logger.WithComponent(log.ComponentHTTP),
		previewRows: opts.PreviewRows,
		now:         opts.Now,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RefreshRateLimit,
			Now:               opts.Now,
		}),
		detector:    security.NewDetector(),
		snapshots:   opts.Snapshots,
		detailCache: cache.NewLRUCache[dashboard.Detail](detailCacheSize, detailCacheTTL).WithClock(opts.Now),
	}
	s.appMetrics.startedAt = opts.Now()
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.NewFields().WithError(err).ToSlice()...)
		}
	}
	if opts.CacheManager != nil {
		opts.CacheManager.Register(s.detailCache)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(log.Middleware(s.logger))
	r.Use(log.AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.write(w, r, NotFoundError("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.write(w, r, ErrorResponse(http.StatusMethodNotAllowed, "method not allowed"))
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/dashboard/cards", s.handleCards)
		r.Get("/sheets", s.handleSheets)
		r.Get("/sheets/{name}", s.handleSheet)
		r.Get("/status", s.handleStatus)
		r.With(s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)).
			Post("/refresh", s.handleRefresh)
	})
	return r
}

// Shutdown stops the rate limiter and gracefully shuts down the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// write sends a built response and logs encoding failures. Error bodies
// get the request ID.
func (s *Server) write(w http.ResponseWriter, r *http.Request, b *JSONResponseBuilder) {
	if eb, ok := b.body.(ErrorBody); ok && eb.RequestID == "" {
		eb.RequestID = middleware.GetReqID(r.Context())
		b.body = eb
	}
	if err := b.Write(w); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to write response",
			log.NewFields().WithError(err).WithComponent(log.ComponentHTTP).ToSlice()...)
	}
}
