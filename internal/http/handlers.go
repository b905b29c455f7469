package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"caja/internal/core"
	"caja/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).String(),
	}).Write(w)
}

// handleReady reports 503 until the record store answers. A closed broker
// connection is reported but does not fail readiness; publishing is best effort.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	switch {
	case s.store == nil:
		checks["store"] = "not_configured"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	default:
		if err := s.store.Ping(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			checks["store"] = "failed"
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}

	switch {
	case s.broker == nil:
		checks["broker"] = "not_configured"
	case s.broker.Healthy():
		checks["broker"] = "ok"
	default:
		checks["broker"] = "down"
	}

	checks["snapshots"] = s.snapshots != nil
	checks["cache"] = map[string]any{"dashboard_entries": s.dashboards.CachedMonths()}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides application metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.trace.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_response_time_avg_microseconds", "gauge", "Mean response time", traceMetrics.AverageResponseTime)
	metric("movements_recorded_total", "counter", "Movements recorded through the API", s.movementsRecorded.Load())
	metric("dashboard_cache_entries", "gauge", "Months currently cached", s.dashboards.CachedMonths())
	metric("rate_limit_rejected_total", "counter", "Requests rejected by the rate limiter", rateLimitMetrics.Rejected)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.started).Seconds()))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	params, err := ParseMonthParams(r.URL.Query(), s.now().In(s.loc))
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}

	d, err := s.dashboards.Load(r.Context(), params.Month, params.Year)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(newDashboardResponse(d)).Write(w)
}

func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.dashboards.Aggregator().ListAccounts(r.Context())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(newAccountsResponse(accounts)).Write(w)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		ErrorResponse(http.StatusNotImplemented, "snapshots require the sqlite backend").Write(w)
		return
	}
	limit, err := ParseLimit(r.URL.Query())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	snaps, err := s.snapshots.ListMonthSnapshots(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"snapshots": newSnapshotResponses(snaps)}).Write(w)
}

func (s *Server) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	if s.cash == nil {
		s.writeError(w, r, log.OpRecord, core.ErrReadOnly)
		return
	}

	tx, err := NewRequestBodyParser(w, r).Movement(s.loc)
	if err != nil {
		s.writeError(w, r, log.OpValidate, err)
		return
	}

	recorded, err := s.cash.RecordMovement(r.Context(), tx)
	if err != nil {
		s.writeError(w, r, log.OpRecord, err)
		return
	}
	s.movementsRecorded.Add(1)
	s.structured.LogMovementRecorded(r.Context(), log.NewFields().
		WithRequestID(requestID(r)).
		WithMovement(recorded).
		WithMonth(core.YearMonthOf(recorded.OccurredAt.In(s.loc))))

	NewJSONResponse().Status(http.StatusCreated).Body(newMovementResponse(recorded)).Write(w)
}
