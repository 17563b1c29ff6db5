package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/notifyhub/order-alerts/internal/api/middleware"
)

func TestCorrelationID(t *testing.T) {
	var seen string
	h := middleware.CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetCorrelationID(r.Context())
	}))

	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"echoes caller id", map[string]string{"X-Correlation-ID": "abc"}, "abc"},
		{"falls back to request id", map[string]string{"X-Request-ID": "req-1"}, "req-1"},
		{"generates when absent", nil, ""},
		{"replaces oversized", map[string]string{"X-Correlation-ID": strings.Repeat("x", 200)}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			got := rr.Header().Get(middleware.HeaderCorrelationID)
			if got != seen {
				t.Fatalf("header %q differs from context %q", got, seen)
			}
			if tc.want != "" && got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
			if tc.want == "" && len(got) != 36 {
				t.Fatalf("expected a generated uuid, got %q", got)
			}
		})
	}
}

func TestRequestLogger_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := middleware.RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/health", "/api/v1/status", "/boom"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	want := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Errorf("entry %d (%s): expected %s, got %s", i, e.ContextMap()["path"], want[i], e.Level)
		}
	}
	if entries[1].ContextMap()["bytes"] != int64(2) {
		t.Errorf("expected 2 bytes logged, got %v", entries[1].ContextMap()["bytes"])
	}
}
