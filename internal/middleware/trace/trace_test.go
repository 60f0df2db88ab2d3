package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "github.com/cityteam/stats-sub000/internal/log"
)

func newLogger(buf *bytes.Buffer) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Level = slog.LevelDebug
	cfg.Format = applog.FormatJSON
	cfg.Output = buf
	return applog.New(cfg)
}

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(newLogger(&buf), func(*http.Request) string { return "203.0.113.9" })

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		applog.FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/facilities", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id %q should start with req_", seen)
	}
	if got := rec.Header().Get(HeaderRequestID); got != seen {
		t.Errorf("response header %q, want %q", got, seen)
	}
	out := buf.String()
	for _, want := range []string{`"msg":"HTTP request started"`, `"msg":"HTTP request completed"`, `"status_code":418`, `"client_ip":"203.0.113.9"`, `"msg":"inside handler","component":"http","request_id":"` + seen} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s\n%s", want, out)
		}
	}
	if m.GetMetrics().TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", m.GetMetrics().TotalRequests)
	}
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(newLogger(&buf), nil)
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(HeaderRequestID); got != "abc-123" {
		t.Errorf("request id = %q, want abc-123", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, strings.Repeat("x", maxRequestIDLength+1))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(HeaderRequestID); !strings.HasPrefix(got, "req_") {
		t.Errorf("oversized request id should be replaced, got %q", got)
	}
}

func TestGenerateRequestIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		id := GenerateRequestID()
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestAverageResponseTime(t *testing.T) {
	if (Metrics{}).AverageResponseTime() != 0 {
		t.Error("no requests means zero average")
	}
	m := Metrics{TotalRequests: 2, TotalResponseTimeUs: 3000}
	if got := m.AverageResponseTime().Microseconds(); got != 1500 {
		t.Errorf("average = %dus, want 1500", got)
	}
}
