// Package transcript accumulates speech recognition results into answer
// text and counts utterance boundaries as pauses.
package transcript

import (
	"strings"
	"sync"
)

// Event is one recognizer callback: the segments it finalized, in order,
// and the current interim hypothesis.
type Event struct {
	Final   []string `json:"final" yaml:"final"`
	Interim string   `json:"interim" yaml:"interim"`
}

// State is a point-in-time copy of the accumulator.
type State struct {
	FinalizedText string `json:"finalizedText"`
	LiveText      string `json:"liveText"`
	PauseCount    int    `json:"pauseCount"`
}

// Text joins the finalized and live text.
func (s State) Text() string {
	return strings.TrimSpace(strings.TrimSpace(s.FinalizedText) + " " + strings.TrimSpace(s.LiveText))
}

// Accumulator keeps the running transcript for one recording segment. Every
// event carrying at least one finalized segment counts as one pause.
type Accumulator struct {
	mu        sync.Mutex
	finalized strings.Builder
	live      string
	pauses    int
	err       error
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// OnRecognitionEvent folds one recognizer callback into the transcript.
func (a *Accumulator) OnRecognitionEvent(final []string, interim string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	finalized := false
	for _, seg := range final {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		if a.finalized.Len() > 0 {
			a.finalized.WriteByte(' ')
		}
		a.finalized.WriteString(seg)
		finalized = true
	}
	if finalized {
		a.pauses++
	}
	a.live = strings.TrimSpace(interim)
}

// OnEvent is OnRecognitionEvent for a decoded Event.
func (a *Accumulator) OnEvent(ev Event) {
	a.OnRecognitionEvent(ev.Final, ev.Interim)
}

// Snapshot returns the current transcript state.
func (a *Accumulator) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	return State{
		FinalizedText: a.finalized.String(),
		LiveText:      a.live,
		PauseCount:    a.pauses,
	}
}

// Reset clears the transcript and pause count. A recorded failure is kept.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	a.finalized.Reset()
	a.live = ""
	a.pauses = 0
	a.mu.Unlock()
}

// Fail records an unrecoverable recognizer failure. The first failure sticks
// until Clear.
func (a *Accumulator) Fail(err error) {
	if err == nil {
		return
	}
	a.mu.Lock()
	if a.err == nil {
		a.err = err
	}
	a.mu.Unlock()
}

// Err returns the sticky failure, if any.
func (a *Accumulator) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Clear resets the transcript and forgets any failure.
func (a *Accumulator) Clear() {
	a.Reset()
	a.mu.Lock()
	a.err = nil
	a.mu.Unlock()
}
