// Package aiservice is the gRPC client of the AI service that generates
// interview questions and scores finished sessions.
package aiservice

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lexiqai/interview-coach/internal/config"
	"github.com/lexiqai/interview-coach/internal/model"
	"github.com/lexiqai/interview-coach/internal/observability"
	"github.com/lexiqai/interview-coach/internal/questions"
	"github.com/lexiqai/interview-coach/internal/resilience"
	"github.com/lexiqai/interview-coach/internal/scoring"
)

// Service is the fully qualified gRPC service name.
const Service = "interview.v1.InterviewAI"

const (
	methodGenerateQuestions = "/" + Service + "/GenerateQuestions"
	methodAnalyze           = "/" + Service + "/Analyze"
)

// ErrEmptyResponse is returned when a response carries neither structured
// data nor text.
var ErrEmptyResponse = errors.New("empty response from AI service")

// Options configures a Client.
type Options struct {
	TLSEnabled    bool
	QuestionCount int
	Retry         *resilience.RetryConfig
	Breaker       *resilience.CircuitBreaker
	DialOptions   []grpc.DialOption
	Logger        zerolog.Logger
}

// Client talks to the AI service. Requests and responses are
// google.protobuf.Struct messages shaped like the JSON the service's
// language model produces.
type Client struct {
	target string
	opts   Options

	mu   sync.RWMutex
	conn *grpc.ClientConn
}

// New creates a client for target. The connection is established lazily on
// the first call.
func New(target string, opts Options) (*Client, error) {
	if opts.Retry == nil {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewCircuitBreaker("ai_service", 5, 30*time.Second)
	}
	opts.Breaker.OnStateChange(func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
		opts.Logger.Warn().Str("breaker", name).Str("state", state.String()).Msg("Circuit breaker state changed")
	})

	dialOpts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	if opts.TLSEnabled {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	dialOpts = append(dialOpts, opts.DialOptions...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI service client for %s: %w", target, err)
	}

	opts.Logger.Info().Str("target", target).Bool("tls", opts.TLSEnabled).Msg("AI service client created")
	return &Client{target: target, opts: opts, conn: conn}, nil
}

// NewFromConfig creates a client from service configuration.
func NewFromConfig(cfg *config.Config, logger zerolog.Logger) (*Client, error) {
	return New(cfg.AIServiceURL, Options{
		TLSEnabled:    cfg.AIServiceTLSEnabled,
		QuestionCount: cfg.QuestionCount,
		Retry:         cfg.Retry(),
		Breaker:       resilience.NewCircuitBreaker("ai_service", cfg.CircuitBreakerMaxFailures, cfg.BreakerResetTimeout()),
		Logger:        logger,
	})
}

type generateRequest struct {
	ProfileID   string   `json:"profileId"`
	ProfileName string   `json:"profileName"`
	Topics      []string `json:"topics,omitempty"`
	Count       int      `json:"count"`
}

type analyzeRequest struct {
	Profile model.Profile        `json:"profile"`
	Answers []model.AnswerRecord `json:"answers"`
	Metrics model.SessionMetrics `json:"metrics"`
}

// Generate asks the service for questions. The call is protected by the
// client's circuit breaker and retried on transient failures.
func (c *Client) Generate(ctx context.Context, profile model.Profile) ([]model.Question, error) {
	req, err := toStruct(generateRequest{
		ProfileID:   profile.ID,
		ProfileName: profile.Name,
		Topics:      profile.Topics,
		Count:       c.opts.QuestionCount,
	})
	if err != nil {
		return nil, err
	}

	var resp *structpb.Struct
	err = resilience.Retry(ctx, func(ctx context.Context) error {
		return c.opts.Breaker.Call(func() error {
			var callErr error
			resp, callErr = c.invoke(ctx, methodGenerateQuestions, req)
			return callErr
		})
	}, c.opts.Retry, isRetryable)
	if err != nil {
		c.recordFailure("generate", err)
		return nil, fmt.Errorf("failed to call GenerateQuestions: %w", err)
	}

	return decodeQuestions(resp)
}

// Analyze scores a session. It performs a single call; callers wrap it with
// scoring.Protect for retries and breaking.
func (c *Client) Analyze(ctx context.Context, answers []model.AnswerRecord, profile model.Profile, metrics model.SessionMetrics) (model.FeedbackResult, error) {
	req, err := toStruct(analyzeRequest{Profile: profile, Answers: answers, Metrics: metrics})
	if err != nil {
		return model.FeedbackResult{}, err
	}

	resp, err := c.invoke(ctx, methodAnalyze, req)
	if err != nil {
		c.recordFailure("analyze", err)
		return model.FeedbackResult{}, fmt.Errorf("failed to call Analyze: %w", err)
	}

	return decodeFeedback(resp, metrics)
}

// HealthCheck checks the service through the standard gRPC health protocol
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return false, fmt.Errorf("AI service client is closed")
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: Service})
	if err != nil {
		return false, fmt.Errorf("health check failed: %w", err)
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) invoke(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return nil, fmt.Errorf("AI service client is closed")
	}

	resp := &structpb.Struct{}
	if err := conn.Invoke(ctx, method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) recordFailure(op string, err error) {
	observability.RecordError(op, "ai_service")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		observability.IncrementCircuitBreakerFailures(c.opts.Breaker.Name())
	}
	c.opts.Logger.Warn().Err(err).Str("op", op).Str("target", c.target).Msg("AI service call failed")
}

func isRetryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	return resilience.IsRetryableNetworkError(err)
}

// toStruct converts a JSON-tagged value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to convert request: %w", err)
	}
	return s, nil
}

// decodeQuestions accepts either a "questions" list or free-form "text".
func decodeQuestions(resp *structpb.Struct) ([]model.Question, error) {
	fields := resp.GetFields()
	if list := fields["questions"].GetListValue(); list != nil {
		data, err := protojson.Marshal(list)
		if err != nil {
			return nil, fmt.Errorf("failed to encode questions: %w", err)
		}
		return questions.ParseQuestions(string(data))
	}
	if text := fields["text"].GetStringValue(); text != "" {
		return questions.ParseQuestions(text)
	}
	return nil, ErrEmptyResponse
}

// decodeFeedback accepts either a "feedback" object or free-form "text".
func decodeFeedback(resp *structpb.Struct, metrics model.SessionMetrics) (model.FeedbackResult, error) {
	fields := resp.GetFields()
	if fb := fields["feedback"].GetStructValue(); fb != nil {
		data, err := protojson.Marshal(fb)
		if err != nil {
			return model.FeedbackResult{}, fmt.Errorf("failed to encode feedback: %w", err)
		}
		return scoring.DecodeFeedback(data, metrics)
	}
	if text := fields["text"].GetStringValue(); text != "" {
		return scoring.ParseFeedback(text, metrics)
	}
	return model.FeedbackResult{}, ErrEmptyResponse
}
