// Package api is the HTTP front door: search results for the site, cinema
// management and operational endpoints for admins.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/drewfead/vo-watcher/internal"
	"github.com/drewfead/vo-watcher/internal/cache"
	"github.com/drewfead/vo-watcher/internal/ingest"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const healthMessage = "vo-watcher is running."

// Store is what the API reads and writes directly.
type Store interface {
	internal.Store
	Ping(ctx context.Context) error
}

// Bootstrapper creates missing tables and seeds reference data.
type Bootstrapper interface {
	Bootstrap(ctx context.Context) (tables []string, seeded int, err error)
}

type Option func(*Server)

// WithAdminSecret sets the HS256 key admin tokens must be signed with. Without
// one every admin route answers 401.
func WithAdminSecret(secret string) Option {
	return func(s *Server) {
		s.adminSecret = secret
	}
}

// WithAllowedOrigins sets the CORS allow-list.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = append(s.origins, origins...)
	}
}

// WithRateLimit limits each client IP to perSecond requests with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		s.rateLimit = rate.Limit(perSecond)
		s.burst = burst
	}
}

// WithIngestOptions are applied to every coordinator started by POST /run.
func WithIngestOptions(opts ...ingest.Option) Option {
	return func(s *Server) {
		s.ingestOpts = append(s.ingestOpts, opts...)
	}
}

// WithRawDataDir is where POST /run saves captures and looks up replays.
func WithRawDataDir(dir string) Option {
	return func(s *Server) {
		s.rawDataDir = dir
	}
}

func WithBootstrapper(b Bootstrapper) Option {
	return func(s *Server) {
		s.bootstrapper = b
	}
}

type Server struct {
	echo         *echo.Echo
	store        Store
	search       *cache.Search
	bootstrapper Bootstrapper
	ingestOpts   []ingest.Option
	rawDataDir   string
	adminSecret  string
	origins      []string
	rateLimit    rate.Limit
	burst        int
}

func New(store Store, search *cache.Search, opts ...Option) *Server {
	s := &Server{
		store:      store,
		search:     search,
		rawDataDir: ".",
		rateLimit:  2,
		burst:      20,
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover())
	e.Use(requestLogger())
	if len(s.origins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		}))
	}
	if s.rateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{Rate: s.rateLimit, Burst: s.burst, ExpiresIn: 3 * time.Minute},
		)))
	}
	s.echo = e
	s.routes()
	return s
}

func (s *Server) routes() {
	admin := AdminAuth(s.adminSecret)

	s.echo.GET("/", s.health)
	s.echo.GET("/search", s.searchAll)
	s.echo.GET("/movies", s.movies)
	s.echo.GET("/showings", s.showings)

	s.echo.GET("/cinema", s.listCinemas)
	s.echo.POST("/cinema/add", s.addCinema, admin)
	s.echo.DELETE("/cinema/:id", s.deleteCinema, admin)

	s.echo.POST("/run", s.run, admin)

	s.echo.GET("/db", s.pingDB)
	s.echo.POST("/db/build", s.buildDB, admin)
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Serve listens on addr until ctx is done, then drains in-flight requests.
func (s *Server) Serve(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("api: listening", "addr", addr)
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	slog.Info("api: shutting down")
	return s.echo.Shutdown(shutdownCtx)
}
