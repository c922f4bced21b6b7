package scoring

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-coach/internal/model"
	"github.com/lexiqai/interview-coach/internal/resilience"
)

// Protected wraps a gateway with a circuit breaker, retries and a per-call
// timeout.
type Protected struct {
	next    Gateway
	breaker *resilience.CircuitBreaker
	retry   *resilience.RetryConfig
	timeout time.Duration
	logger  zerolog.Logger
}

// Protect wraps next. A zero timeout leaves the caller's deadline in place.
func Protect(next Gateway, breaker *resilience.CircuitBreaker, retry *resilience.RetryConfig, timeout time.Duration, logger zerolog.Logger) *Protected {
	return &Protected{
		next:    next,
		breaker: breaker,
		retry:   retry,
		timeout: timeout,
		logger:  logger,
	}
}

func (p *Protected) Analyze(ctx context.Context, answers []model.AnswerRecord, profile model.Profile, metrics model.SessionMetrics) (model.FeedbackResult, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	var result model.FeedbackResult
	attempt := 0
	err := resilience.Retry(ctx, func(ctx context.Context) error {
		attempt++
		return p.breaker.Call(func() error {
			res, err := p.next.Analyze(ctx, answers, profile, metrics)
			if err != nil {
				p.logger.Warn().Err(err).Int("attempt", attempt).Msg("Scoring attempt failed")
				return err
			}
			result = res
			return nil
		})
	}, p.retry, isRetryable)
	if err != nil {
		return model.FeedbackResult{}, err
	}
	return result, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return false
	}
	return resilience.IsRetryableNetworkError(err)
}
