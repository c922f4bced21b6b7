package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lexiqai/interview-coach/internal/model"
	"github.com/lexiqai/interview-coach/internal/resilience"
)

func fastRetry() *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestParseFeedback(t *testing.T) {
	text := "Sure!\n```json\n{\"overallScore\": 81, \"technicalSkills\": {\"score\": 77, \"feedback\": \"Solid\", \"weakAreas\": [\"Caching\"]}}\n```"
	metrics := model.SessionMetrics{TotalPauses: 4, PostureWarningCount: 2}

	got, err := ParseFeedback(text, metrics)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.OverallScore != 81 {
		t.Errorf("Expected overall score 81, got %d", got.OverallScore)
	}
	if got.TechnicalSkills.Feedback != "Solid" || got.TechnicalSkills.WeakAreas[0] != "Caching" {
		t.Errorf("Unexpected technical skills: %+v", got.TechnicalSkills)
	}
	if got.Communication.Score != 50 {
		t.Errorf("Expected default communication score, got %d", got.Communication.Score)
	}
	if got.TotalPauses != 4 || got.PostureWarnings != 2 {
		t.Errorf("Expected metrics echoed, got %+v", got)
	}
}

func TestParseFeedback_Errors(t *testing.T) {
	if _, err := ParseFeedback("nothing useful", model.SessionMetrics{}); !errors.Is(err, ErrNoFeedback) {
		t.Errorf("Expected ErrNoFeedback, got %v", err)
	}
	if _, err := ParseFeedback("{broken", model.SessionMetrics{}); err == nil {
		t.Error("Expected error for unterminated object")
	}
	if _, err := ParseFeedback("{\"overallScore\": \"high\"}", model.SessionMetrics{}); err == nil {
		t.Error("Expected decode error")
	}
}

func TestProtected_RetriesTransientErrors(t *testing.T) {
	calls := 0
	next := GatewayFunc(func(ctx context.Context, a []model.AnswerRecord, p model.Profile, m model.SessionMetrics) (model.FeedbackResult, error) {
		calls++
		if calls < 2 {
			return model.FeedbackResult{}, status.Error(codes.Unavailable, "down")
		}
		return model.FeedbackResult{OverallScore: 90}, nil
	})

	p := Protect(next, resilience.NewCircuitBreaker("scoring", 5, time.Second), fastRetry(), time.Second, zerolog.Nop())
	got, err := p.Analyze(context.Background(), nil, model.Profile{}, model.SessionMetrics{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.OverallScore != 90 {
		t.Errorf("Expected overall score 90, got %d", got.OverallScore)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}

func TestProtected_DoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	next := GatewayFunc(func(ctx context.Context, a []model.AnswerRecord, p model.Profile, m model.SessionMetrics) (model.FeedbackResult, error) {
		calls++
		return model.FeedbackResult{}, status.Error(codes.InvalidArgument, "bad request")
	})

	p := Protect(next, resilience.NewCircuitBreaker("scoring", 5, time.Second), fastRetry(), 0, zerolog.Nop())
	if _, err := p.Analyze(context.Background(), nil, model.Profile{}, model.SessionMetrics{}); err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestProtected_OpenCircuitFailsFast(t *testing.T) {
	calls := 0
	next := GatewayFunc(func(ctx context.Context, a []model.AnswerRecord, p model.Profile, m model.SessionMetrics) (model.FeedbackResult, error) {
		calls++
		return model.FeedbackResult{}, errors.New("connection refused")
	})

	breaker := resilience.NewCircuitBreaker("scoring", 1, time.Minute)
	p := Protect(next, breaker, fastRetry(), 0, zerolog.Nop())

	_, err := p.Analyze(context.Background(), nil, model.Profile{}, model.SessionMetrics{})
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen after the breaker tripped, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call before the breaker opened, got %d", calls)
	}
}
