// package server contains the router, middleware & handlers of the demo media server
package server

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlx/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, authentication, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers that own several routes.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
// Implementations register handlers, apply middleware, and configure the HTTP server.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Server is the demo media server: an in-memory [Backend], its event [Hub] and a [Simulator]
// producing progress, behind a [BasicRouter].
type Server struct {
	Backend   *Backend
	Hub       *Hub
	Simulator *Simulator

	addr   string
	router *BasicRouter
	logger *log.Logger
}

// New builds a demo server listening on c.Addr() and seeds c.Seed entries.
func New(c shared.DemoConfig, apiKey string, logger *log.Logger) *Server {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	hub := NewHub(logger)
	backend := NewBackend(hub)
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x646c78))
	backend.Seed(c.Seed, rng)

	router := NewBasicRouter()
	router.Use(Logging(logger), RequireAPIKey(apiKey))
	NewAPI(backend, hub, logger).Register(router)

	return &Server{
		Backend:   backend,
		Hub:       hub,
		Simulator: NewSimulator(backend, time.Second, rng, logger),
		addr:      c.Addr(),
		router:    router,
		logger:    logger,
	}
}

// Handler returns the routed handler, for use with [httptest.NewServer].
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe runs the server until ctx is cancelled, then shuts it down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.Hub.Run(ctx)
	go s.Simulator.Run(ctx)

	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errs := make(chan error, 1)
	go func() {
		s.logger.Info("demo server listening", "addr", s.addr)
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

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	s.logger.Info("shutting down demo server")
	return srv.Shutdown(shutdownCtx)
}
