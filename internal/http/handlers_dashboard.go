package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"expensetracker/internal/core"
)

type dashboardPage struct {
	layout
	Summary core.DashboardSummary
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())

	summary, err := s.expenses.Dashboard(r.Context(), user)
	if err != nil {
		s.serverError(w, r, "Failed to build dashboard", err)
		return
	}
	s.render(w, r, pageDashboard, http.StatusOK, dashboardPage{
		layout:  layout{Title: "Dashboard", User: &user},
		Summary: summary,
	})
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the database and parsed page templates and reports
// middleware counters.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{
		"rate_limiter": map[string]any{
			"active_clients": s.limiter.ActiveClients(),
		},
		"security": map[string]any{
			"suspicious_requests": s.detector.SuspiciousCount(),
		},
		"requests_total": s.tracer.TotalRequests(),
	}

	if s.db == nil {
		checks["database"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else if err := s.db.Ping(ctx); err != nil {
		s.requestLogger(r).WarnContext(r.Context(), "Readiness check failed", "error", err)
		checks["database"] = "failed"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if missing := missingPages(s.pages); len(missing) > 0 {
		checks["templates"] = map[string]any{"missing": missing}
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
