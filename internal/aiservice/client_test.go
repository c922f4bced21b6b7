package aiservice

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lexiqai/interview-coach/internal/model"
	"github.com/lexiqai/interview-coach/internal/resilience"
)

type fakeAI struct {
	generate func(req *structpb.Struct) (*structpb.Struct, error)
	analyze  func(req *structpb.Struct) (*structpb.Struct, error)
	calls    atomic.Int32
}

type methodHandler = func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error)

func (f *fakeAI) handler(fn func(*fakeAI) func(*structpb.Struct) (*structpb.Struct, error)) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		f.calls.Add(1)
		return fn(f)(req)
	}
}

func newTestClient(t *testing.T, ai *fakeAI) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	srv.RegisterService(&grpc.ServiceDesc{
		ServiceName: Service,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "GenerateQuestions", Handler: ai.handler(func(f *fakeAI) func(*structpb.Struct) (*structpb.Struct, error) { return f.generate })},
			{MethodName: "Analyze", Handler: ai.handler(func(f *fakeAI) func(*structpb.Struct) (*structpb.Struct, error) { return f.analyze })},
		},
	}, ai)

	hs := health.NewServer()
	hs.SetServingStatus(Service, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := New("passthrough:///bufnet", Options{
		QuestionCount: 3,
		Retry: &resilience.RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2,
		},
		Breaker: resilience.NewCircuitBreaker("ai_service_test", 10, time.Minute),
		DialOptions: []grpc.DialOption{
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
		},
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func TestGenerate_StructuredQuestions(t *testing.T) {
	var gotProfile, gotCount any
	ai := &fakeAI{}
	ai.generate = func(req *structpb.Struct) (*structpb.Struct, error) {
		gotProfile = req.GetFields()["profileId"].GetStringValue()
		gotCount = req.GetFields()["count"].GetNumberValue()
		return mustStruct(t, map[string]any{
			"questions": []any{
				map[string]any{"question": "What is a goroutine?", "difficulty": "easy"},
				map[string]any{"question": "  ", "difficulty": "hard"},
				map[string]any{"question": "Explain channels.", "difficulty": "extreme"},
			},
		}), nil
	}
	client := newTestClient(t, ai)

	qs, err := client.Generate(context.Background(), model.Profile{ID: "backend", Name: "Backend Developer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotProfile != "backend" || gotCount != float64(3) {
		t.Errorf("Unexpected request: profile=%v count=%v", gotProfile, gotCount)
	}
	if len(qs) != 2 {
		t.Fatalf("Expected 2 questions, got %d", len(qs))
	}
	if qs[1].Difficulty != model.DifficultyMedium {
		t.Errorf("Expected unknown difficulty to default to medium, got %s", qs[1].Difficulty)
	}
}

func TestGenerate_TextResponse(t *testing.T) {
	ai := &fakeAI{}
	ai.generate = func(req *structpb.Struct) (*structpb.Struct, error) {
		return mustStruct(t, map[string]any{
			"text": "Here you go:\n```json\n[{\"question\": \"What is a slice?\", \"difficulty\": \"easy\"}]\n```",
		}), nil
	}
	client := newTestClient(t, ai)

	qs, err := client.Generate(context.Background(), model.Profile{ID: "backend"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 1 || qs[0].Text != "What is a slice?" {
		t.Errorf("Unexpected questions: %+v", qs)
	}
}

func TestGenerate_RetriesUnavailable(t *testing.T) {
	ai := &fakeAI{}
	ai.generate = func(req *structpb.Struct) (*structpb.Struct, error) {
		if ai.calls.Load() < 2 {
			return nil, status.Error(codes.Unavailable, "warming up")
		}
		return mustStruct(t, map[string]any{
			"questions": []any{map[string]any{"question": "Q", "difficulty": "easy"}},
		}), nil
	}
	client := newTestClient(t, ai)

	qs, err := client.Generate(context.Background(), model.Profile{ID: "backend"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 1 {
		t.Errorf("Expected 1 question, got %d", len(qs))
	}
	if got := ai.calls.Load(); got != 2 {
		t.Errorf("Expected 2 calls, got %d", got)
	}
}

func TestGenerate_EmptyResponse(t *testing.T) {
	ai := &fakeAI{}
	ai.generate = func(req *structpb.Struct) (*structpb.Struct, error) {
		return &structpb.Struct{}, nil
	}
	client := newTestClient(t, ai)

	if _, err := client.Generate(context.Background(), model.Profile{ID: "backend"}); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Expected ErrEmptyResponse, got %v", err)
	}
}

func TestAnalyze_StructuredFeedback(t *testing.T) {
	var answerCount int
	ai := &fakeAI{}
	ai.analyze = func(req *structpb.Struct) (*structpb.Struct, error) {
		answerCount = len(req.GetFields()["answers"].GetListValue().GetValues())
		return mustStruct(t, map[string]any{
			"feedback": map[string]any{
				"overallScore": 150,
				"technicalSkills": map[string]any{
					"score":     70,
					"feedback":  "Solid basics",
					"weakAreas": []any{"Concurrency"},
				},
				"strengths": []any{"Clear answers"},
			},
		}), nil
	}
	client := newTestClient(t, ai)

	answers := []model.AnswerRecord{{QuestionIndex: 0, Question: "Q", AnswerText: "A"}}
	metrics := model.SessionMetrics{PostureWarningCount: 2}
	fb, err := client.Analyze(context.Background(), answers, model.Profile{ID: "backend"}, metrics)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answerCount != 1 {
		t.Errorf("Expected 1 answer sent, got %d", answerCount)
	}
	if fb.OverallScore != 100 {
		t.Errorf("Expected overall score clamped to 100, got %d", fb.OverallScore)
	}
	if fb.TechnicalSkills.Score != 70 {
		t.Errorf("Expected technical score 70, got %d", fb.TechnicalSkills.Score)
	}
	if fb.PostureWarnings != 2 {
		t.Errorf("Expected 2 posture warnings, got %d", fb.PostureWarnings)
	}
}

func TestAnalyze_ErrorIsNotRetried(t *testing.T) {
	ai := &fakeAI{}
	ai.analyze = func(req *structpb.Struct) (*structpb.Struct, error) {
		return nil, status.Error(codes.Unavailable, "down")
	}
	client := newTestClient(t, ai)

	if _, err := client.Analyze(context.Background(), nil, model.Profile{}, model.SessionMetrics{}); err == nil {
		t.Fatal("Expected error")
	}
	if got := ai.calls.Load(); got != 1 {
		t.Errorf("Expected a single call, got %d", got)
	}
}

func TestHealthCheck(t *testing.T) {
	client := newTestClient(t, &fakeAI{})

	ok, err := client.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("Expected service to be serving")
	}
}

func TestClosedClient(t *testing.T) {
	client := newTestClient(t, &fakeAI{})
	_ = client.Close()

	if ok, err := client.HealthCheck(context.Background()); ok || err == nil {
		t.Errorf("Expected closed client to be unhealthy, got ok=%v err=%v", ok, err)
	}
}
