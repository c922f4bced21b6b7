package transcript

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/interview-coach/internal/capture"
	"github.com/lexiqai/interview-coach/internal/resilience"
)

// ErrRestartBudgetExceeded is recorded when the recognizer kept stopping by
// itself after every restart.
var ErrRestartBudgetExceeded = errors.New("recognizer exceeded restart budget")

// Recognizer is a speech engine that can stop without being asked to.
type Recognizer interface {
	capture.Engine
	OnEnd(func(error))
}

// Supervisor keeps a recognizer running while recording. When the engine
// ends by itself it is restarted according to the restart budget; the
// accumulated transcript is left untouched. Permanent failures and an
// exhausted budget are recorded on the accumulator and stop further restarts.
type Supervisor struct {
	rec    Recognizer
	acc    *Accumulator
	budget *resilience.RestartBudget
	logger zerolog.Logger

	mu        sync.Mutex
	running   bool
	ctx       context.Context
	timer     *time.Timer
	onRestart func(err error)
}

// NewSupervisor wires rec to acc under the given restart budget.
func NewSupervisor(rec Recognizer, acc *Accumulator, budget *resilience.RestartBudget, logger zerolog.Logger) *Supervisor {
	s := &Supervisor{
		rec:    rec,
		acc:    acc,
		budget: budget,
		logger: logger.With().Str("engine", rec.Name()).Logger(),
	}
	rec.OnEnd(s.handleEnd)
	return s
}

// OnRestart registers a hook called before every automatic restart.
func (s *Supervisor) OnRestart(fn func(err error)) {
	s.mu.Lock()
	s.onRestart = fn
	s.mu.Unlock()
}

func (s *Supervisor) Name() string {
	return s.rec.Name()
}

// Start starts the recognizer unless a failure has already been recorded.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := s.acc.Err(); err != nil {
		return fmt.Errorf("recognizer unavailable: %w", err)
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.rec.Start(ctx); err != nil {
		if capture.IsPermanent(err) {
			s.acc.Fail(err)
		}
		return err
	}

	s.mu.Lock()
	s.running = true
	s.ctx = ctx
	s.mu.Unlock()
	s.budget.Started()
	return nil
}

// Stop stops the recognizer and cancels any pending restart.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	s.running = false
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	return s.rec.Stop()
}

// Reset refills the restart budget and clears the accumulator, including a
// recorded failure.
func (s *Supervisor) Reset() {
	s.budget.Reset()
	s.acc.Clear()
}

func (s *Supervisor) handleEnd(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	if capture.IsPermanent(err) {
		s.running = false
		s.acc.Fail(err)
		s.logger.Warn().Err(err).Msg("Recognizer failed permanently")
		return
	}

	delay, ok := s.budget.Next()
	if !ok {
		s.running = false
		if err == nil {
			err = ErrRestartBudgetExceeded
		} else {
			err = fmt.Errorf("%w: %v", ErrRestartBudgetExceeded, err)
		}
		s.acc.Fail(err)
		s.logger.Warn().Err(err).Msg("Giving up on recognizer")
		return
	}

	if s.onRestart != nil {
		s.onRestart(err)
	}
	s.logger.Info().Err(err).Dur("delay", delay).Msg("Recognizer ended, restarting")
	s.timer = time.AfterFunc(delay, s.restart)
}

func (s *Supervisor) restart() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.timer = nil
	s.mu.Unlock()

	if ctx != nil && ctx.Err() != nil {
		return
	}

	if err := s.rec.Start(ctx); err != nil {
		s.handleEnd(err)
		return
	}

	s.mu.Lock()
	stopped := !s.running
	s.mu.Unlock()
	if stopped {
		_ = s.rec.Stop()
		return
	}
	s.budget.Started()
}
