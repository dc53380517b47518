package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret-key"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Context Helper Tests
// =============================================================================

func TestGetUserID_EmptyContext(t *testing.T) {
	if id := GetUserID(context.Background()); id != uuid.Nil {
		t.Errorf("expected uuid.Nil, got %s", id)
	}
}

func TestWithUserID_RoundTrip(t *testing.T) {
	id := uuid.New()
	if got := GetUserID(WithUserID(context.Background(), id)); got != id {
		t.Errorf("expected %s, got %s", id, got)
	}
}

// =============================================================================
// RequireUser Tests
// =============================================================================

func TestRequireUser_AcceptsValidToken(t *testing.T) {
	mw := NewAuthMiddleware(testSecret, testLogger())
	userID := uuid.New()

	token, err := SignToken(testSecret, userID, time.Hour)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}

	var gotID uuid.UUID
	handler := mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/dashboard", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if gotID != userID {
		t.Errorf("expected user %s in context, got %s", userID, gotID)
	}
}

func TestRequireUser_Rejects(t *testing.T) {
	userID := uuid.New()

	sign := func(method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}
	valid := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz"},
		{name: "empty bearer", header: "Bearer "},
		{name: "garbage", header: "Bearer not-a-jwt"},
		{
			name:   "wrong secret",
			header: "Bearer " + sign(jwt.SigningMethodHS256, []byte("other"), valid),
		},
		{
			name: "expired",
			header: "Bearer " + sign(jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
				Subject:   userID.String(),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			}),
		},
		{
			name: "no expiry",
			header: "Bearer " + sign(jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
				Subject: userID.String(),
			}),
		},
		{
			name: "subject not a uuid",
			header: "Bearer " + sign(jwt.SigningMethodHS256, []byte(testSecret), jwt.RegisteredClaims{
				Subject:   "officer-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}),
		},
		{
			name:   "wrong algorithm",
			header: "Bearer " + sign(jwt.SigningMethodHS512, []byte(testSecret), valid),
		},
	}

	mw := NewAuthMiddleware(testSecret, testLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest("GET", "/api/challans", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if called {
				t.Error("handler should not be called")
			}
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", rec.Code)
			}
			if rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}

			var body map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["code"] != "unauthorized" || body["success"] != false {
				t.Errorf("unexpected body: %v", body)
			}
		})
	}
}

// =============================================================================
// Stack Tests
// =============================================================================

func TestStack_AppliesInOrder(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Stack(mark("first"), mark("second"), mark("third"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	want := []string{"first", "second", "third", "handler"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}
