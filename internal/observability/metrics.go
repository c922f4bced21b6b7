package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "interview_coach_active_sessions",
		Help: "Number of connected interview sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_coach_sessions_total",
		Help: "Total number of interview sessions",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_coach_session_duration_seconds",
		Help:    "Duration of interview sessions in seconds",
		Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
	})

	stateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_coach_state_transitions_total",
		Help: "Interview state machine transitions by target state",
	}, []string{"state"})

	answersSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_coach_answers_submitted_total",
		Help: "Total number of submitted answers",
	})

	unansweredQuestions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_coach_unanswered_questions_total",
		Help: "Answers submitted without any text",
	})

	stressAtSubmission = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_coach_stress_level",
		Help:    "Stress reading at answer submission",
		Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	// Signal metrics
	postureWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_coach_posture_warnings_total",
		Help: "Posture warnings by kind",
	}, []string{"kind"})

	captureFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_coach_capture_start_failures_total",
		Help: "Capture engines that failed to start",
	}, []string{"engine"})

	recognizerRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "interview_coach_recognizer_restarts_total",
		Help: "Automatic speech recognizer restarts",
	})

	// Collaborator metrics
	questionGeneration = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_coach_question_generation_total",
		Help: "Question sets served by source",
	}, []string{"source"})

	generationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_coach_question_generation_latency_seconds",
		Help:    "Question generation latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	scoringRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_coach_scoring_requests_total",
		Help: "Scoring requests by status",
	}, []string{"status"})

	scoringLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "interview_coach_scoring_latency_seconds",
		Help:    "Scoring latency in seconds",
		Buckets: []float64{0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
	})

	speechRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_coach_speech_requests_total",
		Help: "Speech recognition and synthesis requests by service and status",
	}, []string{"service", "status"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_coach_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "interview_coach_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_coach_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "interview_coach_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"
)

// Metrics tracks metrics for a single interview session
type Metrics struct {
	sessionID       string
	startTime       time.Time
	generationStart time.Time
	scoringStart    time.Time
	mu              sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records a connected session
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records a disconnected session
func (m *Metrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordTransition records entering a state
func (m *Metrics) RecordTransition(state string) {
	stateTransitions.WithLabelValues(state).Inc()
}

// RecordGenerationStart records the start of question generation
func (m *Metrics) RecordGenerationStart() {
	m.mu.Lock()
	m.generationStart = time.Now()
	m.mu.Unlock()
}

// RecordGenerationEnd records the end of question generation
func (m *Metrics) RecordGenerationEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.generationStart.IsZero() {
		generationLatency.Observe(time.Since(m.generationStart).Seconds())
	}
}

// RecordAnswer records a submitted answer
func (m *Metrics) RecordAnswer(stress float64, answered bool) {
	answersSubmitted.Inc()
	stressAtSubmission.Observe(stress)
	if !answered {
		unansweredQuestions.Inc()
	}
}

// RecordPostureWarning records a posture warning
func (m *Metrics) RecordPostureWarning(kind string) {
	postureWarnings.WithLabelValues(kind).Inc()
}

// RecordCaptureFailure records a capture engine that failed to start
func (m *Metrics) RecordCaptureFailure(engine string) {
	captureFailures.WithLabelValues(engine).Inc()
}

// RecordRecognizerRestart records an automatic recognizer restart
func (m *Metrics) RecordRecognizerRestart() {
	recognizerRestarts.Inc()
}

// RecordScoringStart records the start of scoring
func (m *Metrics) RecordScoringStart() {
	m.mu.Lock()
	m.scoringStart = time.Now()
	m.mu.Unlock()
}

// RecordScoringEnd records the end of scoring
func (m *Metrics) RecordScoringEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.scoringStart.IsZero() {
		scoringLatency.Observe(time.Since(m.scoringStart).Seconds())
	}
	scoringRequests.WithLabelValues(statusLabel(success)).Inc()
}

// RecordQuestionSource records which source served a question set
func RecordQuestionSource(source string) {
	questionGeneration.WithLabelValues(source).Inc()
}

// RecordSpeech records a speech recognition or synthesis request
func RecordSpeech(service string, success bool) {
	speechRequests.WithLabelValues(service, statusLabel(success)).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes processed
func RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
