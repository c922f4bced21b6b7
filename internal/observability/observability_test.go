package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	oteltrace "go.opentelemetry.io/otel/trace"
)

func TestHealthCheckHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheckHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Status != "healthy" || status.Service != "interview-coach" {
		t.Errorf("Unexpected status: %+v", status)
	}
}

func TestReadinessHandler(t *testing.T) {
	healthy := func(ctx context.Context) (bool, error) { return true, nil }
	failing := func(ctx context.Context) (bool, error) { return false, errors.New("connection refused") }

	tests := []struct {
		name     string
		checkers []Checker
		wantCode int
		wantDeps int
	}{
		{"all healthy", []Checker{{"ai_service", healthy}, {"deepgram", healthy}}, http.StatusOK, 2},
		{"one failing", []Checker{{"ai_service", failing}, {"deepgram", healthy}}, http.StatusServiceUnavailable, 2},
		{"nil check skipped", []Checker{{"ai_service", healthy}, {"cartesia", nil}}, http.StatusOK, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ReadinessHandler(tt.checkers...)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, rec.Code)
			}
			var status HealthStatus
			if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(status.Dependencies) != tt.wantDeps {
				t.Errorf("Expected %d dependencies, got %d", tt.wantDeps, len(status.Dependencies))
			}
		})
	}
}

func TestReadinessHandler_ReportsMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	ReadinessHandler(Checker{"ai_service", func(ctx context.Context) (bool, error) {
		return false, errors.New("connection refused")
	}})(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	var status HealthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dep := status.Dependencies["ai_service"]
	if dep.Status != "unhealthy" || dep.Message != "connection refused" {
		t.Errorf("Unexpected dependency status: %+v", dep)
	}
	if status.Status != "not_ready" {
		t.Errorf("Expected not_ready, got %s", status.Status)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"warn":    zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"info":    zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if a == "" || a == b {
		t.Errorf("Expected unique ids, got %q and %q", a, b)
	}
}

func TestSessionMetricsCounters(t *testing.T) {
	m := NewSessionMetrics("test")

	before := testutil.ToFloat64(postureWarnings.WithLabelValues("slouch_detected"))
	m.RecordPostureWarning("slouch_detected")
	if got := testutil.ToFloat64(postureWarnings.WithLabelValues("slouch_detected")); got != before+1 {
		t.Errorf("Expected posture counter to grow by 1, got %f -> %f", before, got)
	}

	beforeScoring := testutil.ToFloat64(scoringRequests.WithLabelValues("error"))
	m.RecordScoringStart()
	m.RecordScoringEnd(false)
	if got := testutil.ToFloat64(scoringRequests.WithLabelValues("error")); got != beforeScoring+1 {
		t.Errorf("Expected failed scoring counter to grow by 1, got %f -> %f", beforeScoring, got)
	}

	beforeUnanswered := testutil.ToFloat64(unansweredQuestions)
	m.RecordAnswer(50, false)
	m.RecordAnswer(40, true)
	if got := testutil.ToFloat64(unansweredQuestions); got != beforeUnanswered+1 {
		t.Errorf("Expected unanswered counter to grow by 1, got %f -> %f", beforeUnanswered, got)
	}
}

func TestStartSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartSpan(context.Background(), "interview.analyze", oteltrace.WithSpanKind(oteltrace.SpanKindClient))
	EndSpan(span, errors.New("unavailable"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "interview.analyze" {
		t.Errorf("Expected span name interview.analyze, got %s", spans[0].Name)
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("Expected error status, got %v", spans[0].Status.Code)
	}
}
