package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/metercore/metercore/app"
	"github.com/metercore/metercore/config"
)

// ReportingHandler serves the billing and analytics queries.
type ReportingHandler struct {
	reporting *app.ReportingService
	logger    zerolog.Logger

	// adminTokenHash gates the reporting routes. Empty disables the gate.
	adminTokenHash string
	metricsPath    string
	metricsEnabled bool
}

// ReportingDeps contains dependencies for the reporting handler.
type ReportingDeps struct {
	Reporting *app.ReportingService
	Logger    zerolog.Logger
	Auth      config.AuthConfig
	Metrics   config.MetricsConfig
}

// NewReportingHandler creates the reporting HTTP handler.
func NewReportingHandler(deps ReportingDeps) *ReportingHandler {
	return &ReportingHandler{
		reporting:      deps.Reporting,
		logger:         deps.Logger,
		adminTokenHash: deps.Auth.AdminTokenHash,
		metricsPath:    deps.Metrics.Path,
		metricsEnabled: deps.Metrics.Enabled,
	}
}

// Routes builds the router for the reporting surface.
func (h *ReportingHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if h.metricsEnabled {
		r.Handle(h.metricsPath, promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(h.requireAdminToken)

		r.Get("/customers/{customerID}/summary", h.customerSummary)
		r.Get("/customers/{customerID}/analytics", h.customerAnalytics)
		r.Get("/customers/{customerID}/events", h.customerEvents)
		r.Get("/customers/{customerID}/statement", h.customerStatement)
		r.Get("/organizations/{org}/summary", h.organizationSummary)
	})

	return r
}

// requireAdminToken compares X-Admin-Token against the configured bcrypt
// hash. Reporting is an operator surface, not a customer one.
func (h *ReportingHandler) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.adminTokenHash == "" {
			next.ServeHTTP(w, r)
			return
		}
		token := r.Header.Get("X-Admin-Token")
		if token == "" || bcrypt.CompareHashAndPassword([]byte(h.adminTokenHash), []byte(token)) != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Valid admin token required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *ReportingHandler) customerSummary(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}

	summary, err := h.reporting.CustomerSummary(r.Context(), customerID, start, end)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *ReportingHandler) customerAnalytics(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}

	analytics, err := h.reporting.CustomerAnalytics(r.Context(), customerID, start, end)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

func (h *ReportingHandler) customerEvents(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 100)
	if limit > 1000 {
		limit = 1000
	}
	offset := queryInt(r, "offset", 0)

	events, err := h.reporting.CustomerEvents(r.Context(), customerID, start, end, limit, offset)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *ReportingHandler) customerStatement(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")

	month := time.Now().UTC()
	if m := r.URL.Query().Get("month"); m != "" {
		parsed, err := time.Parse("2006-01", m)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_month", "month must be YYYY-MM")
			return
		}
		month = parsed
	}

	statement, err := h.reporting.CustomerStatement(r.Context(), customerID, month)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statement)
}

func (h *ReportingHandler) organizationSummary(w http.ResponseWriter, r *http.Request) {
	org := chi.URLParam(r, "org")
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}

	summary, err := h.reporting.OrganizationSummary(r.Context(), org, start, end)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *ReportingHandler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("reporting query failed")
	writeError(w, http.StatusInternalServerError, "query_failed", "Reporting query failed")
}

// parseRange reads the start/end query parameters (RFC 3339 or YYYY-MM-DD).
// Defaults to the last 30 days when absent.
func parseRange(w http.ResponseWriter, r *http.Request) (start, end time.Time, ok bool) {
	end = time.Now().UTC()
	start = end.AddDate(0, 0, -30)

	var err error
	if v := r.URL.Query().Get("start"); v != "" {
		if start, err = parseTime(v); err != nil {
			writeError(w, http.StatusBadRequest, "bad_start", "start must be RFC 3339 or YYYY-MM-DD")
			return start, end, false
		}
	}
	if v := r.URL.Query().Get("end"); v != "" {
		if end, err = parseTime(v); err != nil {
			writeError(w, http.StatusBadRequest, "bad_end", "end must be RFC 3339 or YYYY-MM-DD")
			return start, end, false
		}
	}
	if !start.Before(end) {
		writeError(w, http.StatusBadRequest, "bad_range", "start must be before end")
		return start, end, false
	}
	return start, end, true
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
