package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytlearn/internal/tasks"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the path patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router registers handlers behind a shared middleware stack.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Opts configures [New].
type Opts struct {
	Engine         *tasks.Engine
	Logger         *log.Logger
	IdentityHeader string // header carrying the authenticated principal, defaults to [DefaultIdentityHeader]
}

// Server exposes the learning-progress operations over HTTP.
type Server struct {
	router *BasicRouter
	logger *log.Logger
}

// New builds the router with its middleware stack and routes.
func New(opts Opts) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	router := NewBasicRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		RequestLogger(opts.Logger),
		Instrument,
		middleware.Recoverer,
		Identity(opts.IdentityHeader),
	)

	api := &API{engine: opts.Engine, logger: opts.Logger}
	router.HandleFunc(http.MethodPost, "/api/video/complete", api.CompleteVideo)
	router.HandleFunc(http.MethodPost, "/api/video/position", api.SavePosition)
	router.HandleFunc(http.MethodPost, "/api/setup/playlist", api.LinkPlaylist)
	router.HandleFunc(http.MethodGet, "/api/dashboard", api.Dashboard)
	router.HandleFunc(http.MethodGet, "/api/ledger", api.Ledger)
	router.HandleFunc(http.MethodGet, "/health", api.Health)
	router.Handle(http.MethodGet, "/metrics", promhttp.Handler())

	return &Server{router: router, logger: opts.Logger}
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
