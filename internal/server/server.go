package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/smsbridge/smsbridge/internal/config"
	"github.com/smsbridge/smsbridge/internal/eventlog"
	"github.com/smsbridge/smsbridge/internal/httputil"
	"github.com/smsbridge/smsbridge/internal/sms"
)

// eventReader is the read side of the diagnostics event log.
type eventReader interface {
	Recent(ctx context.Context, limit int) ([]eventlog.Event, error)
}

// Server is the bridge HTTP API in front of one SMS provider.
type Server struct {
	cfg              *config.Config
	router           *chi.Mux
	http             *http.Server
	logger           *slog.Logger
	provider         sms.Provider
	providerName     string
	allowedCountries []string
	events           eventReader // nil when the event log is disabled
	startTime        time.Time
}

// New creates a new Server with middleware and routes configured.
// events may be nil when the event log is disabled.
func New(cfg *config.Config, logger *slog.Logger, provider sms.Provider, events *eventlog.Store) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:              cfg,
		router:           r,
		logger:           logger,
		provider:         provider,
		providerName:     cfg.SMS.Provider,
		allowedCountries: cfg.SMS.AllowedCountries,
		startTime:        time.Now(),
	}
	if events != nil {
		s.events = events
	}

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/sms", func(r chi.Router) {
			r.With(middleware.AllowContentType("application/json")).Post("/send", s.handleSMSSend)
			r.Get("/{id}/status", s.handleSMSStatus)
			r.Get("/received", s.handleSMSReceived)
			r.Delete("/received/{id}", s.handleSMSDeleteReceived)
			r.Get("/statuses/recent", s.handleSMSRecentStatuses)
		})
		r.Get("/diagnostics", s.handleDiagnostics)
	})

	return s
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:    s.cfg.Address(),
		Handler: s.router,
	}

	s.logger.Info("server starting", "address", s.cfg.Address(), "provider", s.providerName)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartWithReady begins listening. It closes the ready channel once the
// listener is bound, then blocks serving requests.
func (s *Server) StartWithReady(ready chan<- struct{}) error {
	s.http = &http.Server{
		Addr:    s.cfg.Address(),
		Handler: s.router,
	}

	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.logger.Info("server starting", "address", ln.Addr().String(), "provider", s.providerName)
	close(ready)

	if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	timeout := time.Duration(s.cfg.Server.ShutdownTimeout) * time.Second
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("shutting down server", "timeout", timeout)
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"provider":       s.providerName,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}
