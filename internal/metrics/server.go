package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/weatherstation/internal/connectivity"
	"github.com/nerrad567/weatherstation/internal/infrastructure/config"
	"github.com/nerrad567/weatherstation/internal/infrastructure/logging"
	"github.com/nerrad567/weatherstation/internal/journal"
	"github.com/nerrad567/weatherstation/internal/link"
)

const (
	defaultPath             = "/metrics"
	readHeaderTimeout       = 5 * time.Second
	gracefulShutdownTimeout = 5 * time.Second
	journalCountTimeout     = 2 * time.Second
	healthCheckTimeout      = 3 * time.Second
	bytesPerMB              = 1024 * 1024
)

// ErrAlreadyStarted is returned by Start on a running server.
var ErrAlreadyStarted = errors.New("metrics: server already started")

// StatusSource reports the connectivity state.
type StatusSource interface {
	Status() connectivity.Status
}

// JournalCounter reports publication totals.
type JournalCounter interface {
	Count(ctx context.Context) (journal.Counts, error)
}

// PoolStats reports database pool statistics.
type PoolStats interface {
	Stats() sql.DBStats
}

// LinkStatus reports the network link watcher state.
type LinkStatus interface {
	Status() link.Status
}

// RejoinCounter reports how many rejoin commands have run.
type RejoinCounter interface {
	Runs() uint64
}

// HealthChecker is satisfied by the database, MQTT and InfluxDB clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Check is one named component probed by /health.
type Check struct {
	Name    string
	Checker HealthChecker
}

// Deps holds the server's collaborators. Registry and Logger are required;
// the rest are optional and omitted from /status when nil. Health checks
// run in order on every /health request.
type Deps struct {
	Config       config.MetricsConfig
	Registry     *Registry
	Logger       *logging.Logger
	Version      string
	Connectivity StatusSource
	Journal      JournalCounter
	Database     PoolStats
	Link         LinkStatus
	Rejoins      RejoinCounter
	Health       []Check
}

// StatusDocument is the /status response.
type StatusDocument struct {
	Timestamp     string               `json:"timestamp"`
	Version       string               `json:"version"`
	UptimeSeconds int64                `json:"uptime_seconds"`
	Runtime       RuntimeStatus        `json:"runtime"`
	Connectivity  *connectivity.Status `json:"connectivity,omitempty"`
	Journal       *journal.Counts      `json:"journal,omitempty"`
	Database      *DatabaseStatus      `json:"database,omitempty"`
	Link          *link.Status         `json:"link,omitempty"`
	RejoinRuns    *uint64              `json:"rejoin_runs,omitempty"`
}

// HealthFailure is the /health body when a component check fails.
type HealthFailure struct {
	Status    string `json:"status"`
	Component string `json:"component"`
	Error     string `json:"error"`
}

// RuntimeStatus contains Go runtime statistics.
type RuntimeStatus struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// DatabaseStatus contains connection pool statistics.
type DatabaseStatus struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// Server serves /metrics (or the configured path), /health and /status.
type Server struct {
	deps      Deps
	path      string
	startTime time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer validates deps. The server does not listen until Start.
func NewServer(deps Deps) (*Server, error) {
	if deps.Registry == nil {
		return nil, fmt.Errorf("metrics registry is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	for i, c := range deps.Health {
		if c.Name == "" || c.Checker == nil {
			return nil, fmt.Errorf("health check %d needs a name and a checker", i)
		}
	}
	path := deps.Config.Path
	if path == "" {
		path = defaultPath
	}
	return &Server{deps: deps, path: path, startTime: time.Now()}, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoveryMiddleware)

	r.Handle(s.path, promhttp.HandlerFor(s.deps.Registry.Prometheus(), promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	return r
}

// recoveryMiddleware turns a handler panic into a 500 so one bad scrape
// cannot take the station down.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.deps.Logger.Error("panic recovered in metrics handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
				)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return ErrAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.deps.Config.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.deps.Config.Listen, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.server = srv
	s.listener = ln

	s.deps.Logger.Info("metrics server listening", "address", ln.Addr().String(), "path", s.path)

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.deps.Logger.Error("metrics server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close shuts the server down, waiting briefly for in-flight scrapes.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down metrics server: %w", err)
	}
	return nil
}

// handleHealth answers OK, or 503 naming the first component whose check
// fails.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	for _, c := range s.deps.Health {
		if err := c.Checker.HealthCheck(ctx); err != nil {
			s.deps.Logger.Warn("health check failed", "component", c.Name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, HealthFailure{
				Status:    "unhealthy",
				Component: c.Name,
				Error:     err.Error(),
			})
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	doc := StatusDocument{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.deps.Version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeStatus{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / bytesPerMB,
			NumGC:         memStats.NumGC,
		},
	}

	if s.deps.Connectivity != nil {
		st := s.deps.Connectivity.Status()
		doc.Connectivity = &st
	}

	if s.deps.Journal != nil {
		ctx, cancel := context.WithTimeout(r.Context(), journalCountTimeout)
		counts, err := s.deps.Journal.Count(ctx)
		cancel()
		if err != nil {
			s.deps.Logger.Warn("journal count failed", "error", err)
		} else {
			doc.Journal = &counts
		}
	}

	if s.deps.Database != nil {
		st := s.deps.Database.Stats()
		doc.Database = &DatabaseStatus{
			OpenConnections: st.OpenConnections,
			InUse:           st.InUse,
			Idle:            st.Idle,
			WaitCount:       st.WaitCount,
		}
	}

	if s.deps.Link != nil {
		st := s.deps.Link.Status()
		doc.Link = &st
	}

	if s.deps.Rejoins != nil {
		runs := s.deps.Rejoins.Runs()
		doc.RejoinRuns = &runs
	}

	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	json.NewEncoder(w).Encode(v)
}
