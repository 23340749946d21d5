package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/patent-pod-intake/internal/config"
	"github.com/kirillkom/patent-pod-intake/internal/core/ports"
	"github.com/kirillkom/patent-pod-intake/internal/observability/metrics"
)

type Router struct {
	cfg        config.Config
	intake     ports.IntakeService
	classifier ports.ClassificationOrchestrator
	review     ports.ReviewService
	apps       ports.ApplicationReader
	metrics    *metrics.HTTPServerMetrics
	logger     *slog.Logger
}

type RouterOption func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func NewRouter(
	cfg config.Config,
	intake ports.IntakeService,
	classifier ports.ClassificationOrchestrator,
	review ports.ReviewService,
	apps ports.ApplicationReader,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		cfg:        cfg,
		intake:     intake,
		classifier: classifier,
		review:     review,
		apps:       apps,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.json", rt.openAPI)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/applications/upload", rt.uploadApplication)
	mux.HandleFunc("GET /v1/applications", rt.listApplications)
	mux.HandleFunc("GET /v1/applications/{id}", rt.getApplication)
	mux.HandleFunc("POST /v1/applications/{id}/classify", rt.classifyApplication)
	mux.HandleFunc("POST /v1/applications/{id}/save", rt.saveApplication)
	mux.HandleFunc("POST /v1/applications/{id}/archive", rt.archiveApplication)

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = apiKeyMiddleware(handler, rt.cfg.APIKey)
	handler = observeMiddleware(handler, rt.logger, rt.metrics)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: errorCode(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
