package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"3tcapital/ms_einvoice_batch/internal/infrastructure/config"
	"3tcapital/ms_einvoice_batch/internal/testutil"
)

func testConfig() config.AppConfig {
	return config.AppConfig{
		HTTP: config.HTTPSettings{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: time.Second,
		},
		Auth: config.AuthSettings{
			Enabled: false,
		},
	}
}

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	})
}

func TestNew_NilLogger(t *testing.T) {
	_, err := New(Options{
		Config:        testConfig(),
		Logger:        nil,
		HealthHandler: okHandler("ok"),
	})

	if err == nil {
		t.Fatal("expected error for nil logger")
	}
	if err.Error() != "logger is required" {
		t.Errorf("expected error 'logger is required', got %q", err.Error())
	}
}

func TestNew_NilHealthHandler(t *testing.T) {
	_, err := New(Options{
		Config: testConfig(),
		Logger: testutil.NewTestLogger(),
	})

	if err == nil {
		t.Fatal("expected error for nil health handler")
	}
	if err.Error() != "health handler is required" {
		t.Errorf("expected error 'health handler is required', got %q", err.Error())
	}
}

func TestNew_ValidOptions(t *testing.T) {
	server, err := New(Options{
		Config:        testConfig(),
		Logger:        testutil.NewTestLogger(),
		HealthHandler: okHandler("ok"),
		BurstHandler:  okHandler("accepted"),
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if server.httpServer == nil {
		t.Fatal("expected httpServer to be initialized")
	}
	if server.httpServer.Addr != ":8080" {
		t.Errorf("expected address ':8080', got %q", server.httpServer.Addr)
	}
}

func TestServer_HealthEndpoint(t *testing.T) {
	server, err := New(Options{
		Config:        testConfig(),
		Logger:        testutil.NewTestLogger(),
		HealthHandler: okHandler("healthy"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "healthy" {
		t.Errorf("expected body 'healthy', got %q", w.Body.String())
	}
}

func TestServer_BurstRoute(t *testing.T) {
	server, err := New(Options{
		Config:        testConfig(),
		Logger:        testutil.NewTestLogger(),
		HealthHandler: okHandler("ok"),
		BurstHandler:  okHandler("accepted"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/bursts", nil)
	w := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if w.Body.String() != "accepted" {
		t.Errorf("expected body 'accepted', got %q", w.Body.String())
	}
}

func TestServer_BurstRouteUnconfigured(t *testing.T) {
	server, err := New(Options{
		Config:        testConfig(),
		Logger:        testutil.NewTestLogger(),
		HealthHandler: okHandler("ok"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/bursts", nil)
	w := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

func TestServer_AuditRouteUnconfigured(t *testing.T) {
	server, err := New(Options{
		Config:        testConfig(),
		Logger:        testutil.NewTestLogger(),
		HealthHandler: okHandler("ok"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/bursts/abc/audit", nil)
	w := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

func TestServer_CorrelationHeaderEchoed(t *testing.T) {
	server, err := New(Options{
		Config:        testConfig(),
		Logger:        testutil.NewTestLogger(),
		HealthHandler: okHandler("ok"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Correlation-ID", "corr-42")
	w := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(w, req)

	if got := w.Header().Get("X-Correlation-ID"); got != "corr-42" {
		t.Errorf("expected correlation header 'corr-42', got %q", got)
	}
}

func TestServer_Run_ContextCancel(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.Port = 0

	server, err := New(Options{
		Config:        cfg,
		Logger:        testutil.NewTestLogger(),
		HealthHandler: okHandler("ok"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := server.Run(ctx); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestServer_Close(t *testing.T) {
	server, err := New(Options{
		Config:        testConfig(),
		Logger:        testutil.NewTestLogger(),
		HealthHandler: okHandler("ok"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should not panic
	server.Close()
}
