package resilience

import (
	"sync"
	"time"
)

// RestartBudget decides whether a self-terminated engine may be restarted
// and how long to wait first. The budget is spent by consecutive failures
// and refilled once the engine has run for StableAfter.
type RestartBudget struct {
	MaxRestarts int
	Delay       time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	StableAfter time.Duration

	mu        sync.Mutex
	attempts  int
	startedAt time.Time
	now       func() time.Time
}

// NewRestartBudget creates a budget allowing maxRestarts consecutive
// restarts, the first one after delay.
func NewRestartBudget(maxRestarts int, delay time.Duration) *RestartBudget {
	return &RestartBudget{
		MaxRestarts: maxRestarts,
		Delay:       delay,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
		StableAfter: 10 * time.Second,
		now:         time.Now,
	}
}

// Started marks the moment the engine came up.
func (b *RestartBudget) Started() {
	b.mu.Lock()
	b.startedAt = b.now()
	b.mu.Unlock()
}

// Next reports whether another restart is allowed and the delay before it.
func (b *RestartBudget) Next() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.startedAt.IsZero() && b.StableAfter > 0 && b.now().Sub(b.startedAt) >= b.StableAfter {
		b.attempts = 0
	}
	b.startedAt = time.Time{}

	if b.attempts >= b.MaxRestarts {
		return 0, false
	}
	delay := CalculateBackoff(b.attempts, b.Delay, b.MaxDelay, b.Multiplier)
	b.attempts++
	return delay, true
}

// Attempts returns the number of restarts spent from the budget.
func (b *RestartBudget) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Reset refills the budget.
func (b *RestartBudget) Reset() {
	b.mu.Lock()
	b.attempts = 0
	b.startedAt = time.Time{}
	b.mu.Unlock()
}
