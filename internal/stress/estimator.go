// Package stress derives a smoothed 0-100 vocal stress reading from audio
// spectrum frames.
package stress

import (
	"math"
	"sync"

	"github.com/lexiqai/interview-coach/internal/audio"
)

// Config holds the calibration of the estimator.
type Config struct {
	// Smoothing is the weight kept from the previous reading.
	Smoothing float64
	// FullScale is the mean bin magnitude that maps to a raw reading of 100.
	FullScale float64
	// Floor keeps silence from producing a dead reading.
	Floor float64
	// Neutral is reported until any audio has been observed.
	Neutral float64
}

// DefaultConfig returns the calibration used for 8-bit byte spectra.
func DefaultConfig() Config {
	return Config{
		Smoothing: 0.9,
		FullScale: 128,
		Floor:     5,
		Neutral:   50,
	}
}

// Estimator keeps the latest smoothed stress value. Frames are offered as
// they arrive and folded in on every Tick, so the reading advances at the
// tick cadence rather than the frame rate.
type Estimator struct {
	cfg Config

	mu       sync.Mutex
	value    float64
	pending  []float64
	observed bool
	history  []float64
}

// New creates an estimator at its neutral reading.
func New(cfg Config) *Estimator {
	return &Estimator{cfg: cfg, value: cfg.Neutral}
}

// OnAudioFrame records the latest spectrum frame. Empty frames are ignored.
func (e *Estimator) OnAudioFrame(frame []float64) {
	if len(frame) == 0 {
		return
	}

	e.mu.Lock()
	e.pending = append(e.pending[:0], frame...)
	e.mu.Unlock()
}

// Tick folds the most recent frame into the reading. Without a new frame
// since the last tick the reading is left untouched.
func (e *Estimator) Tick() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.pending) == 0 {
		return e.value
	}

	raw := e.raw(e.pending)
	e.pending = e.pending[:0]

	next := e.value*e.cfg.Smoothing + raw*(1-e.cfg.Smoothing)
	e.value = e.clamp(next)
	e.observed = true
	e.history = append(e.history, e.value)
	return e.value
}

// Current returns the latest smoothed reading.
func (e *Estimator) Current() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// Observed reports whether any frame has been folded in since the last reset.
func (e *Estimator) Observed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.observed
}

// Average returns the mean of every reading taken since the last reset, or
// the current reading when none was taken.
func (e *Estimator) Average() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.history) == 0 {
		return e.value
	}
	var sum float64
	for _, v := range e.history {
		sum += v
	}
	return sum / float64(len(e.history))
}

// Reset returns the estimator to its neutral reading.
func (e *Estimator) Reset() {
	e.mu.Lock()
	e.value = e.cfg.Neutral
	e.pending = e.pending[:0]
	e.observed = false
	e.history = nil
	e.mu.Unlock()
}

func (e *Estimator) raw(frame []float64) float64 {
	if e.cfg.FullScale <= 0 {
		return e.cfg.Floor
	}
	return e.clamp(audio.MeanMagnitude(frame) / e.cfg.FullScale * 100)
}

func (e *Estimator) clamp(v float64) float64 {
	return math.Max(e.cfg.Floor, math.Min(100, v))
}
