package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"3tcapital/ms_einvoice_batch/internal/infrastructure/config"
	ctxutil "3tcapital/ms_einvoice_batch/internal/infrastructure/context"
	"3tcapital/ms_einvoice_batch/internal/infrastructure/http/middleware"
)

// Server hosts the burst ingestion API and its supporting endpoints.
type Server struct {
	log        *slog.Logger
	cfg        config.AppConfig
	httpServer *http.Server
	auth       *middleware.JWTAuthenticator
}

// Options wires the handlers served by the HTTP layer. Handlers left
// nil respond 503 so a partially configured instance still boots.
type Options struct {
	Config        config.AppConfig
	Logger        *slog.Logger
	HealthHandler http.Handler
	BurstHandler  http.Handler
	AuditHandler  http.Handler
}

// New assembles the router, middleware chain and http.Server.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.HealthHandler == nil {
		return nil, errors.New("health handler is required")
	}

	auth, err := middleware.NewJWTAuthenticator(opts.Config.Auth, opts.Logger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(correlationID)
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(auth.Middleware)

	r.Method(http.MethodGet, "/health", opts.HealthHandler)

	// Burst ingestion processes thousands of documents synchronously,
	// so the route runs under the extended write timeout.
	burst := orUnavailable(opts.BurstHandler)
	r.With(middleware.ExtendedTimeout(opts.Config.HTTP)).
		Method(http.MethodPost, "/v1/bursts", burst)

	r.Method(http.MethodGet, "/v1/bursts/{burstId}/audit", orUnavailable(opts.AuditHandler))

	srv := &http.Server{
		Addr:         opts.Config.HTTP.Address(),
		Handler:      r,
		ReadTimeout:  opts.Config.HTTP.ReadTimeout,
		WriteTimeout: opts.Config.HTTP.WriteTimeoutMassive,
		IdleTimeout:  opts.Config.HTTP.IdleTimeout,
	}

	return &Server{
		log:        opts.Logger,
		cfg:        opts.Config,
		httpServer: srv,
		auth:       auth,
	}, nil
}

// Run starts the server and blocks until the context is cancelled or
// the listener fails. Cancellation triggers a graceful shutdown bounded
// by the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server started", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("HTTP server shutdown failed", "error", err)
			return err
		}
		s.log.Info("HTTP server stopped")
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases background resources held by the middleware chain.
func (s *Server) Close() {
	if s.auth != nil {
		s.auth.Close()
	}
}

// correlationID propagates the inbound correlation header into the
// request context, minting a fresh one from the chi request id when the
// caller sent none.
func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = chimw.GetReqID(r.Context())
		}
		if id != "" {
			r = r.WithContext(ctxutil.WithCorrelationID(r.Context(), id))
			w.Header().Set("X-Correlation-ID", id)
		}
		next.ServeHTTP(w, r)
	})
}

func orUnavailable(h http.Handler) http.Handler {
	if h != nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "handler not configured", http.StatusServiceUnavailable)
	})
}
