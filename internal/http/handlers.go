package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cityteam/stats-sub000/internal/core"
	applog "github.com/cityteam/stats-sub000/internal/log"
	"github.com/cityteam/stats-sub000/web"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the storage backend.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.deps.Storage == nil {
		checks["storage"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if err := s.deps.Storage.Ping(ctx); err != nil {
		checks["storage"] = fmt.Sprintf("failed: %v", err)
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["storage"] = "ok"
	}

	if s.deps.ReportCache != nil {
		checks["report_cache"] = map[string]any{"entries": s.deps.ReportCache.Size(), "status": "ok"}
	}
	checks["rate_limiter"] = map[string]any{"active_clients": s.limiter.ActiveClients(), "status": "ok"}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides request and security counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	traceMetrics := s.trace.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_request_duration_avg_ms", "gauge", "Average request duration in milliseconds", traceMetrics.AverageResponseTime().Milliseconds())
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("blocked_requests_total", "counter", "Total suspicious requests blocked", securityMetrics.BlockedRequests)
	if s.deps.ReportCache != nil {
		metric("report_cache_entries", "gauge", "Current report cache entries", s.deps.ReportCache.Size())
	}
	metric("uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.started).Seconds()))
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(web.OpenAPI)
}

type passwordGrant struct {
	GrantType string `json:"grant_type,omitempty"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// handleToken implements the OAuth password grant. It accepts a JSON body
// or a form-encoded one.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req passwordGrant
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, r, badRequest("invalid form body: %v", err))
			return
		}
		req = passwordGrant{
			GrantType: r.PostForm.Get("grant_type"),
			Username:  strings.TrimSpace(r.PostForm.Get("username")),
			Password:  r.PostForm.Get("password"),
		}
	} else if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.GrantType != "" && req.GrantType != "password" {
		writeError(w, r, badRequest("unsupported grant_type %q", req.GrantType))
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, r, fmt.Errorf("%w: username and password are required", core.ErrUnauthorized))
		return
	}

	token, err := s.deps.Users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentAuth).WarnContext(r.Context(), "Login failed",
			applog.FieldUsername, req.Username, applog.FieldOperation, applog.OpLogin,
			applog.FieldClientIP, s.detector.ExtractClientIP(r))
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}
