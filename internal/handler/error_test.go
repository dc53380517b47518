package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DukeRupert/challan/internal/domain"
	"github.com/DukeRupert/challan/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{domain.EINVALID, http.StatusBadRequest},
		{domain.EUNAUTHORIZED, http.StatusUnauthorized},
		{domain.EFORBIDDEN, http.StatusForbidden},
		{domain.ENOTFOUND, http.StatusNotFound},
		{domain.ECONFLICT, http.StatusConflict},
		{domain.ETRANSITION, http.StatusConflict},
		{domain.EUNSUPPORTED, http.StatusUnprocessableEntity},
		{domain.ERATELIMIT, http.StatusTooManyRequests},
		{domain.EGATEWAY, http.StatusBadGateway},
		{domain.EINTERNAL, http.StatusInternalServerError},
		{"something_else", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := ErrorCodeToHTTPStatus(tt.code); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestWriteResult_UsesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/challans/x/payments", nil)

	writeResult(rec, req, discardLogger(), service.Result{
		Code:  domain.ETRANSITION,
		Error: "cannot move challan from paid to paid",
	})

	if rec.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var env Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success {
		t.Error("expected success=false")
	}
	if env.Code != domain.ETRANSITION || env.Error != "cannot move challan from paid to paid" {
		t.Errorf("unexpected envelope: %+v", env)
	}
	if env.Data != nil {
		t.Errorf("error envelope should carry no data, got %v", env.Data)
	}
}
