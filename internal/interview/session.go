// Package interview drives an interview session through question
// generation, recording segments, answer submission and scoring.
package interview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lexiqai/interview-coach/internal/capture"
	"github.com/lexiqai/interview-coach/internal/model"
	"github.com/lexiqai/interview-coach/internal/observability"
	"github.com/lexiqai/interview-coach/internal/questions"
	"github.com/lexiqai/interview-coach/internal/scoring"
	"github.com/lexiqai/interview-coach/internal/signals"
)

// State of an interview session
type State string

const (
	StateIdle                   State = "idle"
	StateLoading                State = "loading"
	StateAwaitingRecordingStart State = "awaiting_recording_start"
	StateRecording              State = "recording"
	StateAnalyzing              State = "analyzing"
	StateResults                State = "results"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed in
	// the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrBusy is returned while a recording start is in flight.
	ErrBusy = errors.New("session busy")
	// ErrSessionReset is returned by an operation whose session was
	// restarted while it was suspended.
	ErrSessionReset = errors.New("session was reset")
)

// Speaker reads questions aloud. Both calls must return immediately.
type Speaker interface {
	Speak(text string)
	Stop()
}

type resetter interface {
	Reset()
}

// Result is the terminal outcome of a session.
type Result struct {
	Profile  model.Profile        `json:"profile"`
	Answers  []model.AnswerRecord `json:"answers"`
	Metrics  model.SessionMetrics `json:"metrics"`
	Feedback model.FeedbackResult `json:"feedback"`
}

// Options configures a session.
type Options struct {
	Generator  questions.Generator
	Gateway    scoring.Gateway
	Aggregator *signals.Aggregator
	// Engines are started on every recording start and stopped on every
	// stop. A failing engine never blocks the others.
	Engines []capture.Engine
	// SessionEngines run from interview start until analysis or restart,
	// whether or not a recording is in progress.
	SessionEngines []capture.Engine
	// Speaker is optional.
	Speaker Speaker
	// StressInterval is the cadence of stress sampling while recording.
	StressInterval time.Duration
	// OnEvent may be called concurrently and with the session lock held; it
	// must not block or call back into the session.
	OnEvent func(Event)
	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Session is one candidate's interview. All exported methods are safe for
// concurrent use.
type Session struct {
	id        string
	generator questions.Generator
	gateway   scoring.Gateway
	agg       *signals.Aggregator
	engines   []capture.Engine
	watchers  []capture.Engine
	speaker   Speaker
	interval  time.Duration
	onEvent   func(Event)
	logger    zerolog.Logger
	metrics   *observability.Metrics
	now       func() time.Time
	lifecycle *lifecycle

	mu          sync.Mutex
	state       State
	epoch       uint64
	busy        bool
	profile     model.Profile
	questions   []model.Question
	current     int
	answers     []model.AnswerRecord
	result      *Result
	stopCapture context.CancelFunc
	stopWatch   context.CancelFunc
}

// New creates an idle session.
func New(id string, opts Options) *Session {
	if opts.StressInterval <= 0 {
		opts.StressInterval = 500 * time.Millisecond
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewSessionMetrics(id)
	}
	if opts.Generator == nil {
		opts.Generator = questions.WithFallback(nil, nil, 0, opts.Logger)
	}
	return &Session{
		id:        id,
		generator: opts.Generator,
		gateway:   opts.Gateway,
		agg:       opts.Aggregator,
		engines:   opts.Engines,
		watchers:  opts.SessionEngines,
		speaker:   opts.Speaker,
		interval:  opts.StressInterval,
		onEvent:   opts.OnEvent,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       time.Now,
		lifecycle: newLifecycle(),
		state:     StateIdle,
	}
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result returns the terminal result, or nil before Results.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Answers returns a copy of the answers submitted so far.
func (s *Session) Answers() []model.AnswerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.AnswerRecord, len(s.answers))
	copy(out, s.answers)
	return out
}

// StartInterview starts the session engines, generates the questions for
// profile and presents the first one. The generator is expected to fall back
// by itself; an empty set is still replaced with the built-in bank.
func (s *Session) StartInterview(ctx context.Context, profile model.Profile) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrInvalidTransition
	}
	s.setState(StateLoading)
	epoch := s.epoch
	watchCtx, cancel := context.WithCancel(context.Background())
	s.stopWatch = cancel
	t := s.lifecycle.ticket()
	s.mu.Unlock()

	s.lifecycle.run(t, func() { s.startEngines(watchCtx, s.watchers) })

	ctx, span := observability.StartSpan(ctx, "interview.generate_questions")
	s.metrics.RecordGenerationStart()
	qs, err := s.generator.Generate(ctx, profile)
	observability.EndSpan(span, err)
	if err != nil || len(qs) == 0 {
		s.logger.Warn().Err(err).Str("profile", profile.ID).Msg("No questions generated, using built-in bank")
		qs = questions.DefaultBank().Fallback(profile.ID)
		observability.RecordQuestionSource(string(questions.SourceFallback))
	}
	s.metrics.RecordGenerationEnd()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		return ErrSessionReset
	}

	s.profile = profile
	s.questions = qs
	s.current = 0
	s.answers = nil
	s.agg.StartSegment()
	s.agg.WatchPosture()

	s.logger.Info().Str("profile", profile.ID).Int("questions", len(qs)).Msg("Interview started")
	s.setState(StateAwaitingRecordingStart)
	s.presentQuestion()
	return nil
}

// StartRecording opens the current segment and starts every capture engine
// concurrently. Engines that fail to start are reported and skipped.
func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.state == StateRecording:
		s.mu.Unlock()
		return nil
	case s.state != StateAwaitingRecordingStart:
		s.mu.Unlock()
		return ErrInvalidTransition
	case s.busy:
		s.mu.Unlock()
		return ErrBusy
	}
	s.busy = true
	epoch := s.epoch
	if s.speaker != nil {
		s.speaker.Stop()
	}
	captureCtx, cancel := context.WithCancel(context.Background())
	s.stopCapture = cancel
	s.agg.Open()
	t := s.lifecycle.ticket()
	s.mu.Unlock()

	_, span := observability.StartSpan(ctx, "interview.start_recording")
	var failed int
	s.lifecycle.run(t, func() { failed = s.startEngines(captureCtx, s.engines) })
	span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	// A stop or restart issued meanwhile runs its engine stop after the start
	// above, so only the state is left to settle here.
	s.busy = false
	if s.epoch != epoch {
		cancel()
		return ErrSessionReset
	}
	if captureCtx.Err() != nil {
		return nil
	}

	go s.sampleStress(captureCtx)

	s.logger.Info().Int("question", s.current).Int("failed_engines", failed).Msg("Recording started")
	s.setState(StateRecording)
	return nil
}

// StopRecording stops every capture engine. It is safe to call at any time.
func (s *Session) StopRecording() {
	s.mu.Lock()
	halt := s.stopCaptureLocked()
	if s.state == StateRecording {
		s.setState(StateAwaitingRecordingStart)
	}
	s.mu.Unlock()

	halt()
}

// SubmitAnswer records the answer to the current question. typed is the
// independently edited answer field and takes precedence over the
// transcript. Submitting the last answer runs scoring and returns once the
// session reached Results.
func (s *Session) SubmitAnswer(ctx context.Context, typed string) (model.AnswerRecord, error) {
	s.mu.Lock()
	if s.state != StateAwaitingRecordingStart && s.state != StateRecording {
		s.mu.Unlock()
		return model.AnswerRecord{}, ErrInvalidTransition
	}
	if s.busy {
		s.mu.Unlock()
		return model.AnswerRecord{}, ErrBusy
	}
	if s.current >= len(s.questions) || len(s.answers) != s.current {
		s.logger.Error().Int("current", s.current).Int("answers", len(s.answers)).
			Int("questions", len(s.questions)).Msg("Submission without an active question")
		s.mu.Unlock()
		return model.AnswerRecord{}, ErrInvalidTransition
	}

	halt := s.stopCaptureLocked()
	rec := s.buildAnswer(s.agg.Snapshot(), typed)
	s.answers = append(s.answers, rec)
	s.metrics.RecordAnswer(rec.StressLevel, rec.AnswerText != model.NoAnswerSentinel)
	s.logger.Info().Int("question", rec.QuestionIndex).Int("pauses", rec.PausesDuring).Msg("Answer submitted")

	if len(s.answers) == len(s.questions) {
		job, haltAll := s.beginAnalysisLocked()
		s.mu.Unlock()
		halt()
		haltAll()
		_, err := s.completeAnalysis(ctx, job)
		return rec, err
	}

	s.current++
	s.agg.StartSegment()
	s.setState(StateAwaitingRecordingStart)
	s.presentQuestion()
	s.mu.Unlock()

	halt()
	return rec, nil
}

// EndInterview ends the session early. Answers submitted so far are scored;
// the current question is not submitted.
func (s *Session) EndInterview(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.state != StateAwaitingRecordingStart && s.state != StateRecording {
		s.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.logger.Info().Int("answers", len(s.answers)).Msg("Interview ended early")
	job, halt := s.beginAnalysisLocked()
	s.mu.Unlock()

	halt()
	return s.completeAnalysis(ctx, job)
}

// Restart discards all session state, including posture warnings, and
// returns to Idle. Suspended operations complete with ErrSessionReset.
func (s *Session) Restart() {
	s.mu.Lock()
	halt := s.stopAllLocked()
	s.epoch++
	if s.speaker != nil {
		s.speaker.Stop()
	}
	for _, e := range append(s.engines[:len(s.engines):len(s.engines)], s.watchers...) {
		if r, ok := e.(resetter); ok {
			r.Reset()
		}
	}
	s.agg.Reset()

	s.busy = false
	s.profile = model.Profile{}
	s.questions = nil
	s.current = 0
	s.answers = nil
	s.result = nil
	s.setState(StateIdle)
	s.mu.Unlock()

	halt()
}

// Close stops capture and speech output. The session must not be used
// afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	halt := s.stopAllLocked()
	s.epoch++
	if s.speaker != nil {
		s.speaker.Stop()
	}
	s.mu.Unlock()

	halt()
}

func (s *Session) buildAnswer(snap signals.Snapshot, typed string) model.AnswerRecord {
	text := strings.TrimSpace(typed)
	if text == "" {
		text = snap.Transcript.Text()
	}
	if text == "" {
		text = model.NoAnswerSentinel
	}

	return model.AnswerRecord{
		QuestionIndex: s.current,
		Question:      s.questions[s.current].Text,
		AnswerText:    text,
		PausesDuring:  snap.PauseCount,
		StressLevel:   snap.StressLevel,
		SubmittedAt:   s.now(),
	}
}

type analysisJob struct {
	epoch   uint64
	profile model.Profile
	answers []model.AnswerRecord
	metrics model.SessionMetrics
}

// beginAnalysisLocked enters Analyzing and folds the session metrics. It must
// be called with mu held; the returned func stops every engine and must be
// called after mu is released.
func (s *Session) beginAnalysisLocked() (analysisJob, func()) {
	halt := s.stopAllLocked()
	if s.speaker != nil {
		s.speaker.Stop()
	}

	answers := make([]model.AnswerRecord, len(s.answers))
	copy(answers, s.answers)

	s.setState(StateAnalyzing)
	return analysisJob{
		epoch:   s.epoch,
		profile: s.profile,
		answers: answers,
		metrics: model.FoldMetrics(answers, s.agg.WarningCount(), s.agg.AverageStress()),
	}, halt
}

// completeAnalysis calls the scoring gateway and always reaches Results
// unless the session was restarted meanwhile.
func (s *Session) completeAnalysis(ctx context.Context, job analysisJob) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, "interview.analyze")
	s.metrics.RecordScoringStart()

	var (
		feedback model.FeedbackResult
		err      = errors.New("no scoring gateway configured")
	)
	if s.gateway != nil {
		feedback, err = s.gateway.Analyze(ctx, job.answers, job.profile, job.metrics)
	}
	s.metrics.RecordScoringEnd(err == nil)
	observability.EndSpan(span, err)

	if err != nil {
		s.logger.Warn().Err(err).Msg("Scoring failed, using degraded feedback")
		feedback = model.DegradedFeedback(job.metrics)
	}

	result := &Result{
		Profile:  job.profile,
		Answers:  job.answers,
		Metrics:  job.metrics,
		Feedback: feedback,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != job.epoch {
		return nil, ErrSessionReset
	}
	s.result = result
	s.setState(StateResults)
	s.emit(Event{Type: EventResults, State: StateResults, Result: result})
	return result, nil
}

// startEngines starts engines concurrently and returns how many failed.
func (s *Session) startEngines(ctx context.Context, engines []capture.Engine) int {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed int
	)
	for _, e := range engines {
		e := e
		g.Go(func() error {
			if err := e.Start(ctx); err != nil {
				s.logger.Warn().Err(err).Str("engine", e.Name()).Msg("Capture engine failed to start")
				s.metrics.RecordCaptureFailure(e.Name())
				s.emit(Event{Type: EventCaptureFailed, Engine: e.Name(), Error: err.Error()})

				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

func (s *Session) stopEngines(engines []capture.Engine) {
	for _, e := range engines {
		if err := e.Stop(); err != nil {
			s.logger.Debug().Err(err).Str("engine", e.Name()).Msg("Capture engine stop failed")
		}
	}
}

// haltLocked queues a stop of engines behind any start or stop already
// issued. It must be called with mu held and the returned func called after
// mu is released.
func (s *Session) haltLocked(engines ...[]capture.Engine) func() {
	t := s.lifecycle.ticket()
	return func() {
		s.lifecycle.run(t, func() {
			for _, set := range engines {
				s.stopEngines(set)
			}
		})
	}
}

// stopCaptureLocked closes the segment and returns the engine stop. It must
// be called with mu held.
func (s *Session) stopCaptureLocked() func() {
	if s.stopCapture != nil {
		s.stopCapture()
		s.stopCapture = nil
	}
	s.agg.EndSegment()
	return s.haltLocked(s.engines)
}

// stopAllLocked also stops the session engines and posture watching. It
// must be called with mu held.
func (s *Session) stopAllLocked() func() {
	if s.stopCapture != nil {
		s.stopCapture()
		s.stopCapture = nil
	}
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
	s.agg.EndSegment()
	s.agg.StopPosture()
	return s.haltLocked(s.engines, s.watchers)
}

func (s *Session) sampleStress(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.agg.SampleStress()
		}
	}
}

// presentQuestion must be called with mu held.
func (s *Session) presentQuestion() {
	q := s.questions[s.current]
	s.emit(Event{
		Type:          EventQuestion,
		State:         s.state,
		QuestionIndex: s.current,
		Total:         len(s.questions),
		Question:      &q,
	})
	if s.speaker != nil {
		s.speaker.Speak(q.Text)
	}
}

// setState must be called with mu held.
func (s *Session) setState(next State) {
	s.state = next
	s.metrics.RecordTransition(string(next))
	s.emit(Event{Type: EventState, State: next, QuestionIndex: s.current, Total: len(s.questions)})
}

func (s *Session) emit(ev Event) {
	if s.onEvent != nil {
		s.onEvent(ev)
	}
}
