package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
)

func TestRouteTemplate(t *testing.T) {
	cases := map[string]string{
		"/v1/applications/upload":       "/v1/applications/upload",
		"/v1/applications/abc-123":      "/v1/applications/{id}",
		"/v1/applications/abc/classify": "/v1/applications/{id}/classify",
		"/v1/applications/abc/save":     "/v1/applications/{id}/save",
		"/v1/applications":              "/v1/applications",
		"/healthz":                      "/healthz",
	}
	for in, want := range cases {
		if got := RouteTemplate(in); got != want {
			t.Fatalf("RouteTemplate(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPipelineCountersShareRegistry(t *testing.T) {
	server := NewHTTPServerMetrics("api")
	pipeline := NewPipelineMetrics(server.Registry(), "api")

	pipeline.RecordUpload("ok")
	pipeline.RecordUpload("ok")
	pipeline.RecordClassification("timeout")
	pipeline.RecordExtraction("pdf", "empty")
	pipeline.ObserveBreakerState("llm.classify", gobreaker.StateClosed, gobreaker.StateOpen)

	if got := testutil.ToFloat64(pipeline.uploadsTotal.WithLabelValues("api", "ok")); got != 2 {
		t.Fatalf("expected 2 uploads, got %v", got)
	}
	if got := testutil.ToFloat64(pipeline.breakerState.WithLabelValues("api", "llm.classify")); got != float64(gobreaker.StateOpen) {
		t.Fatalf("unexpected breaker gauge %v", got)
	}

	res := httptest.NewRecorder()
	server.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := res.Body.String()
	for _, want := range []string{"pod_intake_pipeline_uploads_total", "pod_intake_pipeline_extracted_documents_total"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in exposition", want)
		}
	}
}

func TestObserveRequestUsesRouteTemplate(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	release := m.InFlight()
	if got := testutil.ToFloat64(m.inFlight); got != 1 {
		t.Fatalf("expected one in-flight request, got %v", got)
	}
	release()

	m.ObserveRequest(http.MethodPost, "/v1/applications/app-1/classify", http.StatusOK, 2*time.Second)
	m.ObserveRequest(http.MethodPost, "/v1/applications/app-2/classify", http.StatusOK, time.Second)

	got := testutil.ToFloat64(m.requests.WithLabelValues("api", http.MethodPost, "/v1/applications/{id}/classify", "200"))
	if got != 2 {
		t.Fatalf("expected both requests under one route, got %v", got)
	}
	if testutil.ToFloat64(m.inFlight) != 0 {
		t.Fatalf("expected in-flight gauge to return to zero")
	}
}
