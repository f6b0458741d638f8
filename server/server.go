// Package server exposes the dispatch orchestrator over HTTP. Handlers
// translate wire requests into dispatcher/store calls and map the error
// taxonomy onto status codes: input rejections become 400, session and
// execution faults become 500, degraded history reads stay 200.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"datar"
	"datar/logging"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Options configures the HTTP server.
type Options struct {
	// AllowedOrigins lists origins granted CORS access. "*" allows any.
	AllowedOrigins []string
	// ReadTimeout / WriteTimeout bound the HTTP exchange. WriteTimeout must
	// exceed the dispatch execute timeout or long runs are cut off mid-write.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Logger receives request-level diagnostics.
	Logger logging.Logger
}

// Server wires the dispatch service to an HTTP listener.
type Server struct {
	svc    *datar.Service
	logger logging.Logger

	allowedOrigins []string
	httpServer     *http.Server
}

// New constructs a Server for svc listening on addr.
func New(svc *datar.Service, addr string, optFns ...func(o *Options)) *Server {
	opts := Options{
		AllowedOrigins: []string{"*"},
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   150 * time.Second,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		svc:            svc,
		logger:         opts.Logger,
		allowedOrigins: opts.AllowedOrigins,
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	return s
}

// Router builds the route table. Exposed for tests and embedding.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.corsMiddleware)

	r.HandleFunc("/", s.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/agents", s.handleListAgents).Methods(http.MethodGet)
	api.HandleFunc("/chat", s.handleChat).Methods(http.MethodPost)
	api.HandleFunc("/chat/{agent_id}", s.handleAgentChat).Methods(http.MethodPost)
	api.HandleFunc("/select-agent", s.handleSelectAgent).Methods(http.MethodPost)
	api.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleSessionHistory).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)

	// Preflight for every route; mux matches OPTIONS explicitly.
	r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return r
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr, "version", Version)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware grants configured origins cross-origin access.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := s.resolveOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) resolveOrigin(origin string) string {
	for _, o := range s.allowedOrigins {
		if o == "*" {
			return "*"
		}
		if o == origin {
			return origin
		}
	}
	return ""
}
