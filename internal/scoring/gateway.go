// Package scoring turns a finished session into structured feedback.
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lexiqai/interview-coach/internal/llmjson"
	"github.com/lexiqai/interview-coach/internal/model"
)

// ErrNoFeedback is returned when model output holds no feedback object.
var ErrNoFeedback = errors.New("no feedback found")

// Gateway scores a session.
type Gateway interface {
	Analyze(ctx context.Context, answers []model.AnswerRecord, profile model.Profile, metrics model.SessionMetrics) (model.FeedbackResult, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, answers []model.AnswerRecord, profile model.Profile, metrics model.SessionMetrics) (model.FeedbackResult, error)

func (f GatewayFunc) Analyze(ctx context.Context, answers []model.AnswerRecord, profile model.Profile, metrics model.SessionMetrics) (model.FeedbackResult, error) {
	return f(ctx, answers, profile, metrics)
}

// DecodeFeedback decodes a JSON feedback object and applies defaults.
func DecodeFeedback(data []byte, metrics model.SessionMetrics) (model.FeedbackResult, error) {
	var raw model.RawFeedback
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.FeedbackResult{}, fmt.Errorf("failed to decode feedback: %w", err)
	}
	return raw.Normalize(metrics), nil
}

// ParseFeedback extracts a feedback object from free-form model output.
func ParseFeedback(text string, metrics model.SessionMetrics) (model.FeedbackResult, error) {
	raw, ok := llmjson.Object(text)
	if !ok {
		return model.FeedbackResult{}, ErrNoFeedback
	}
	return DecodeFeedback([]byte(raw), metrics)
}
