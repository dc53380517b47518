package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// =============================================================================
// Request Logging Middleware Tests
// =============================================================================

func TestRequestLoggingMiddleware_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	mw := NewRequestLoggingMiddleware(slog.New(slog.NewTextHandler(&buf, nil)))

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest("POST", "/api/challans", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	out := buf.String()
	for _, want := range []string{"method=POST", "path=/api/challans", "status=201", "duration_ms=", "ip=192.168.1.1", "request_id="} {
		if !strings.Contains(out, want) {
			t.Errorf("log should contain %q, got: %s", want, out)
		}
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected request id response header")
	}
}

func TestRequestLoggingMiddleware_PropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	mw := NewRequestLoggingMiddleware(slog.New(slog.NewTextHandler(&buf, nil)))

	var seen string
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/api/dashboard", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "req-123" {
		t.Errorf("expected request id req-123 in context, got %q", seen)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("expected echoed request id, got %q", got)
	}
}

func TestRequestLoggingMiddleware_LogsAuthenticatedUser(t *testing.T) {
	var buf bytes.Buffer
	mw := NewRequestLoggingMiddleware(slog.New(slog.NewTextHandler(&buf, nil)))
	userID := uuid.New()

	// The inner handler plays the part of RequireUser.
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = WithUserID(r.Context(), userID)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/dashboard", nil))

	if !strings.Contains(buf.String(), "user_id="+userID.String()) {
		t.Errorf("log should contain user id, got: %s", buf.String())
	}
}

func TestRequestLoggingMiddleware_ServerErrorsAtWarn(t *testing.T) {
	var buf bytes.Buffer
	mw := NewRequestLoggingMiddleware(slog.New(slog.NewTextHandler(&buf, nil)))

	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/challans", nil))

	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("expected WARN level, got: %s", buf.String())
	}
}

func TestRequestLoggingMiddleware_SkipsNoisyPaths(t *testing.T) {
	for _, path := range []string{"/health", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			var buf bytes.Buffer
			mw := NewRequestLoggingMiddleware(slog.New(slog.NewTextHandler(&buf, nil)))

			called := false
			handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))

			if !called {
				t.Error("handler should still be called")
			}
			if buf.Len() != 0 {
				t.Errorf("expected no log output, got: %s", buf.String())
			}
		})
	}
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		rawQuery string
		want     string
	}{
		{name: "no query", path: "/api/challans", want: "/api/challans"},
		{name: "safe params", path: "/api/challans", rawQuery: "status=pending&page=2", want: "/api/challans?status=pending&page=2"},
		{name: "token redacted", path: "/api/x", rawQuery: "token=abc&page=1", want: "/api/x?token=[REDACTED]&page=1"},
		{name: "case insensitive", path: "/api/x", rawQuery: "PIN=1234", want: "/api/x?PIN=[REDACTED]"},
		{name: "malformed dropped", path: "/api/x", rawQuery: "flag", want: "/api/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizePath(tt.path, tt.rawQuery); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
