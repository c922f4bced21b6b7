// Package signals owns the live signal buffers of an interview session and
// provides the consistent snapshot read at answer submission.
package signals

import (
	"sync"
	"time"

	"github.com/lexiqai/interview-coach/internal/posture"
	"github.com/lexiqai/interview-coach/internal/stress"
	"github.com/lexiqai/interview-coach/internal/transcript"
)

// Snapshot is a consistent point-in-time read of all three signals.
type Snapshot struct {
	Transcript      transcript.State  `json:"transcript"`
	PauseCount      int               `json:"pauseCount"`
	StressLevel     float64           `json:"stressLevel"`
	StressObserved  bool              `json:"stressObserved"`
	PostureWarnings []posture.Warning `json:"postureWarnings"`
	Segment         int               `json:"segment"`
	TakenAt         time.Time         `json:"takenAt"`
}

// Aggregator serializes producer writes and snapshot reads behind one lock.
// Transcript and segment counters are scoped to a segment; posture warnings
// accumulate for the whole session. Posture is gated separately from the
// segment because it is watched between recordings too.
type Aggregator struct {
	classifier *posture.Classifier
	stress     *stress.Estimator
	transcript *transcript.Accumulator

	mu        sync.Mutex
	open      bool
	watching  bool
	segment   int
	warnings  []posture.Warning
	onWarning func(posture.Warning)
}

// New creates an aggregator over the given signal components.
func New(c *posture.Classifier, s *stress.Estimator, t *transcript.Accumulator) *Aggregator {
	return &Aggregator{classifier: c, stress: s, transcript: t}
}

// Transcript exposes the accumulator so a recognizer supervisor can record
// failures on it.
func (a *Aggregator) Transcript() *transcript.Accumulator {
	return a.transcript
}

// OnWarning registers a hook called for every recorded posture warning.
func (a *Aggregator) OnWarning(fn func(posture.Warning)) {
	a.mu.Lock()
	a.onWarning = fn
	a.mu.Unlock()
}

// StartSegment begins the segment of a new question: the transcript is
// reset while posture warnings and the stress reading carry over. Producer
// writes stay closed until Open.
func (a *Aggregator) StartSegment() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.transcript.Reset()
	a.segment++
}

// Open accepts producer writes into the current segment.
func (a *Aggregator) Open() {
	a.mu.Lock()
	a.open = true
	a.mu.Unlock()
}

// EndSegment stops accepting producer writes. Writes arriving afterwards
// are dropped.
func (a *Aggregator) EndSegment() {
	a.mu.Lock()
	a.open = false
	a.mu.Unlock()
}

// WatchPosture starts accepting pose samples. It is independent of Open and
// EndSegment.
func (a *Aggregator) WatchPosture() {
	a.mu.Lock()
	a.watching = true
	a.mu.Unlock()
}

// StopPosture drops pose samples until the next WatchPosture.
func (a *Aggregator) StopPosture() {
	a.mu.Lock()
	a.watching = false
	a.mu.Unlock()
}

// RecordPose classifies a pose sample and appends any warnings. Samples are
// dropped unless posture is being watched.
func (a *Aggregator) RecordPose(s posture.Sample) []posture.Warning {
	a.mu.Lock()
	if !a.watching {
		a.mu.Unlock()
		return nil
	}
	warnings := a.classifier.Classify(s)
	a.warnings = append(a.warnings, warnings...)
	hook := a.onWarning
	a.mu.Unlock()

	if hook != nil {
		for _, w := range warnings {
			hook(w)
		}
	}
	return warnings
}

// RecordAudioFrame offers a spectrum frame to the stress estimator.
func (a *Aggregator) RecordAudioFrame(frame []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.open {
		a.stress.OnAudioFrame(frame)
	}
}

// SampleStress advances the stress reading by one tick.
func (a *Aggregator) SampleStress() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.open {
		return a.stress.Current()
	}
	return a.stress.Tick()
}

// RecordRecognition folds a recognizer event into the transcript.
func (a *Aggregator) RecordRecognition(ev transcript.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.open {
		a.transcript.OnEvent(ev)
	}
}

// Snapshot reads all signals under the aggregator lock.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	ts := a.transcript.Snapshot()
	warnings := make([]posture.Warning, len(a.warnings))
	copy(warnings, a.warnings)

	return Snapshot{
		Transcript:      ts,
		PauseCount:      ts.PauseCount,
		StressLevel:     a.stress.Current(),
		StressObserved:  a.stress.Observed(),
		PostureWarnings: warnings,
		Segment:         a.segment,
		TakenAt:         time.Now(),
	}
}

// WarningCount returns the number of posture warnings recorded this session.
func (a *Aggregator) WarningCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.warnings)
}

// AverageStress returns the mean stress reading of the session.
func (a *Aggregator) AverageStress() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stress.Average()
}

// Reset discards every signal, including the session-wide posture warnings.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.open = false
	a.watching = false
	a.segment = 0
	a.warnings = nil
	a.classifier.Reset()
	a.stress.Reset()
	a.transcript.Clear()
}
