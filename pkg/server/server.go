package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/morp/pkg/cache"
	"github.com/platinummonkey/morp/pkg/changes"
	"github.com/platinummonkey/morp/pkg/httputil"
	"github.com/platinummonkey/morp/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

// maxRequestBytes bounds impact request bodies
const maxRequestBytes = 1 << 20

// Options configures a Server
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// PackagesPath and ManifestFile locate the manifests to watch
	PackagesPath string
	ManifestFile string
	Watch        bool
	Debounce     time.Duration

	// ReloadSchedule is a cron spec; empty disables scheduled reloads
	ReloadSchedule string

	Classifier changes.Classifier
	Version    string
}

// Server serves graph and impact queries over the current snapshot
type Server struct {
	opts     Options
	reloader *Reloader
	cache    cache.Cache
	gatherer prometheus.Gatherer
	metrics  *observability.Metrics
	health   *observability.HealthChecker
	log      *logrus.Logger
	router   *mux.Router

	addr atomic.Value
}

// New creates a server. A nil cache disables caching and a nil gatherer
// disables the /metrics endpoint.
func New(opts Options, reloader *Reloader, c cache.Cache, gatherer prometheus.Gatherer, metrics *observability.Metrics, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	if c == nil {
		c = cache.NopCache{}
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		opts:     opts,
		reloader: reloader,
		cache:    c,
		gatherer: gatherer,
		metrics:  metrics,
		health:   observability.NewHealthChecker(opts.Version),
		log:      log,
	}

	s.health.Register("snapshot", true, func(context.Context) error {
		if reloader.Current() == nil {
			return ErrNoSnapshot
		}
		return nil
	})
	s.health.Register("cache", false, c.Ping)

	reloader.OnSwap(s.purgeStale)

	s.router = s.routes()
	return s
}

// Handler returns the fully wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(s.log),
		httputil.LoggingMiddleware(s.log),
		httputil.MaxBytesMiddleware(maxRequestBytes),
	)
	return otelhttp.NewHandler(chain(s.router), "morp")
}

// Run loads the first snapshot, then serves HTTP and keeps the snapshot
// fresh until ctx is cancelled. A failing first load is fatal.
func (s *Server) Run(ctx context.Context) error {
	if err := s.reloader.Reload(ctx, TriggerStartup); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}

	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}
	s.addr.Store(ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Infof("Listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if s.opts.Watch && s.opts.PackagesPath != "" {
		g.Go(func() error {
			return s.reloader.Watch(gctx, s.opts.PackagesPath, s.opts.ManifestFile, s.opts.Debounce)
		})
	}

	if s.opts.ReloadSchedule != "" {
		g.Go(func() error {
			return s.reloader.Schedule(gctx, s.opts.ReloadSchedule)
		})
	}

	return g.Wait()
}

// Addr returns the bound listen address once Run is serving
func (s *Server) Addr() string {
	addr, _ := s.addr.Load().(string)
	return addr
}

// purgeStale drops cached analyses of a graph that is no longer live
func (s *Server) purgeStale(ctx context.Context, old, next *Snapshot) {
	if old == nil || old.Repo.Fingerprint() == next.Repo.Fingerprint() {
		return
	}
	if err := s.cache.Purge(ctx); err != nil {
		s.log.WithError(err).Warn("Failed to purge impact cache")
	}
}

// routeTemplate labels metrics by route rather than by raw path
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
