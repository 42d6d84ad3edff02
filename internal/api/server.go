// Package api serves dependency resolution over HTTP.
//
// Routes:
//
//	GET    /healthz
//	GET    /version
//	POST   /v1/resolve
//	GET    /v1/resolutions
//	GET    /v1/resolutions/{id}
//	DELETE /v1/resolutions/{id}
//	GET    /v1/cache/stats
//	DELETE /v1/cache
//	DELETE /v1/cache/{name}
//	GET    /metrics            (when metrics are configured)
//
// Every resolution, successful or not, is recorded in the configured store
// under a generated ID.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/wheelwright/internal/metrics"
	"github.com/matzehuels/wheelwright/pkg/fetch"
	"github.com/matzehuels/wheelwright/pkg/metadata"
	"github.com/matzehuels/wheelwright/pkg/resolve"
	"github.com/matzehuels/wheelwright/pkg/store"
)

// Defaults.
const (
	DefaultAddr           = "127.0.0.1:8080"
	DefaultResolveTimeout = 2 * time.Minute
	DefaultCleanup        = 10 * time.Minute
	maxRequestBody        = 1 << 20
)

// Config configures a [Server].
type Config struct {
	Addr           string           // Listen address (default: 127.0.0.1:8080)
	Index          fetch.Index      // Package index (required)
	Cache          *metadata.Cache  // Metadata cache shared by every request (default: in-memory)
	Fetch          fetch.Options    // Fetcher settings; Refresh is set per request
	Store          store.Store      // Resolution history (default: in-memory)
	RecordTTL      time.Duration    // Lifetime of stored records (default: store.DefaultTTL)
	Metrics        *metrics.Metrics // Serves /metrics when set
	Resolve        resolve.Options  // Resolver defaults; requests override python and prereleases
	ResolveTimeout time.Duration    // Per-request resolution deadline (default: 2m)
	Logger         *log.Logger
}

// WithDefaults returns a copy of Config with zero values replaced by defaults.
func (c Config) WithDefaults() Config {
	cfg := c
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Cache == nil {
		cfg.Cache = metadata.NewCache(metadata.Options{})
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore()
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = DefaultResolveTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return cfg
}

// Server is the HTTP API.
type Server struct {
	cfg     Config
	fetcher *fetch.Fetcher
	router  chi.Router
}

// New validates cfg and builds the router.
func New(cfg Config) (*Server, error) {
	cfg = cfg.WithDefaults()
	if cfg.Index == nil {
		return nil, errors.New("api: index is required")
	}
	fopts := cfg.Fetch
	fopts.Refresh = false
	if fopts.Logger == nil {
		fopts.Logger = cfg.Logger
	}
	f, err := fetch.New(cfg.Index, cfg.Cache, fopts)
	if err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, fetcher: f}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/version", s.handleVersion)
	if s.cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.cfg.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/resolve", s.handleResolve)
		r.Get("/resolutions", s.handleListResolutions)
		r.Get("/resolutions/{id}", s.handleGetResolution)
		r.Delete("/resolutions/{id}", s.handleDeleteResolution)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Delete("/cache", s.handleCacheClear)
		r.Delete("/cache/{name}", s.handleCacheInvalidate)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.cfg.Logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// Run serves on cfg.Addr until ctx is done, then shuts down gracefully.
// Expired store records are cleaned up periodically while serving.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is like Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.cfg.Logger.Info("listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.cfg.Logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		t := time.NewTicker(DefaultCleanup)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				if err := s.cfg.Store.Cleanup(gctx); err != nil {
					s.cfg.Logger.Warn("store cleanup failed", "err", err)
				}
			}
		}
	})
	return g.Wait()
}
