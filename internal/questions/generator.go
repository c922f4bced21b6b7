package questions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-coach/internal/llmjson"
	"github.com/lexiqai/interview-coach/internal/model"
)

// Source tells where a question set came from.
type Source string

const (
	SourceGenerated Source = "generated"
	SourceFallback  Source = "fallback"
)

// ErrNoQuestions is returned when model output holds no usable question.
var ErrNoQuestions = errors.New("no questions found")

// Generator produces the ordered question set for a profile.
type Generator interface {
	Generate(ctx context.Context, profile model.Profile) ([]model.Question, error)
}

// FallbackGenerator wraps a generator so callers always receive a non-empty
// question set. Any failure or empty result falls back to the bank.
type FallbackGenerator struct {
	next      Generator
	bank      *Bank
	count     int
	logger    zerolog.Logger
	onOutcome func(Source)
}

// WithFallback wraps next. A nil next always uses the bank. count caps the
// number of generated questions; zero means no cap.
func WithFallback(next Generator, bank *Bank, count int, logger zerolog.Logger) *FallbackGenerator {
	if bank == nil {
		bank = DefaultBank()
	}
	return &FallbackGenerator{next: next, bank: bank, count: count, logger: logger}
}

// OnOutcome registers a hook told which source served each request.
func (g *FallbackGenerator) OnOutcome(fn func(Source)) {
	g.onOutcome = fn
}

// Generate never returns an error.
func (g *FallbackGenerator) Generate(ctx context.Context, profile model.Profile) ([]model.Question, error) {
	if g.next != nil {
		qs, err := g.next.Generate(ctx, profile)
		qs = clean(qs)
		switch {
		case err != nil:
			g.logger.Warn().Err(err).Str("profile", profile.ID).Msg("Question generation failed, using fallback bank")
		case len(qs) == 0:
			g.logger.Warn().Str("profile", profile.ID).Msg("Question generation returned nothing, using fallback bank")
		default:
			if g.count > 0 && len(qs) > g.count {
				qs = qs[:g.count]
			}
			g.report(SourceGenerated)
			return qs, nil
		}
	}

	g.report(SourceFallback)
	return g.bank.Fallback(profile.ID), nil
}

func (g *FallbackGenerator) report(s Source) {
	if g.onOutcome != nil {
		g.onOutcome(s)
	}
}

func clean(qs []model.Question) []model.Question {
	out := qs[:0:0]
	for _, q := range qs {
		q.Text = strings.TrimSpace(q.Text)
		if q.Text == "" {
			continue
		}
		q.Difficulty = model.ParseDifficulty(string(q.Difficulty))
		out = append(out, q)
	}
	return out
}

// ParseQuestions extracts the first JSON array of questions from free-form
// model output, tolerating code fences and surrounding prose.
func ParseQuestions(text string) ([]model.Question, error) {
	raw, ok := llmjson.Array(text)
	if !ok {
		return nil, ErrNoQuestions
	}

	var qs []model.Question
	if err := json.Unmarshal([]byte(raw), &qs); err != nil {
		return nil, fmt.Errorf("failed to decode questions: %w", err)
	}

	qs = clean(qs)
	if len(qs) == 0 {
		return nil, ErrNoQuestions
	}
	return qs, nil
}
