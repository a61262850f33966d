package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	domain "github.com/bryanwahyu/drishti/internal/domain/audit"
	"github.com/bryanwahyu/drishti/internal/logging"
	"github.com/bryanwahyu/drishti/internal/middleware"
)

// Auditor runs one audit session to completion.
type Auditor interface {
	Audit(ctx context.Context, videoURL string) (*domain.State, error)
}

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	APIKeys        map[string]string
	RateLimiter    *middleware.RateLimiter
	AllowedHosts   []string
	HealthChecks   map[string]middleware.HealthChecker
}

type Router struct {
	auditor      Auditor
	allowedHosts []string
}

func NewRouter(auditor Auditor, opts Options) http.Handler {
	r := &Router{auditor: auditor, allowedHosts: opts.AllowedHosts}
	mux := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	mux.Use(middleware.RequestID)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	if opts.RateLimiter != nil {
		mux.Use(opts.RateLimiter.Middleware)
	}

	mux.Get("/health", middleware.HealthHandler(opts.HealthChecks))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Post("/audit", r.wrap(r.handleAudit))

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, domain.ErrValidation):
				status = http.StatusBadRequest
			case errors.Is(err, context.DeadlineExceeded), errors.Is(err, domain.ErrTimeout):
				status = http.StatusGatewayTimeout
			}
			if status >= 500 {
				logging.WithContext(req.Context()).Error("request failed", "path", req.URL.Path, "error", err)
			}
			writeJSON(w, status, map[string]string{"detail": err.Error()})
		}
	}
}

type auditRequest struct {
	VideoURL string `json:"video_url"`
}

type auditResponse struct {
	SessionID         string                   `json:"session_id"`
	VideoID           string                   `json:"video_id"`
	Status            domain.ReportStatus      `json:"status"`
	FinalReport       string                   `json:"final_report"`
	ComplianceResults []domain.ComplianceIssue `json:"compliance_results"`
	Errors            []string                 `json:"errors"`
}

// POST /audit
// Body: {"video_url": "<public video url>"}
// Blocks until the workflow reaches DONE.
func (r *Router) handleAudit(w http.ResponseWriter, req *http.Request) error {
	var body auditRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<20))
	if err := dec.Decode(&body); err != nil {
		return domain.NewError(domain.ErrValidation, "decode request", err)
	}
	videoURL := middleware.SanitizeString(body.VideoURL)
	if videoURL == "" {
		return domain.Errorf(domain.ErrValidation, "decode request", "video_url is required")
	}
	if err := middleware.ValidateVideoURL(videoURL, r.allowedHosts); err != nil {
		return domain.NewError(domain.ErrValidation, "validate video_url", err)
	}

	middleware.IncrementAudits()
	middleware.IncrementAuditsRunning()
	st, err := r.auditor.Audit(req.Context(), videoURL)
	middleware.DecrementAuditsRunning()

	var status string
	if st != nil {
		status = string(st.FinalReportStatus)
	}
	middleware.RecordAuditOutcome(status, err)
	if err != nil {
		return err
	}

	return writeJSON(w, http.StatusOK, auditResponse{
		SessionID:         st.SessionID,
		VideoID:           st.VideoID,
		Status:            st.FinalReportStatus,
		FinalReport:       st.FinalReport,
		ComplianceResults: st.ComplianceResults,
		Errors:            st.Errors,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}
