package interview

import (
	"github.com/lexiqai/interview-coach/internal/model"
	"github.com/lexiqai/interview-coach/internal/signals"
)

// EventType identifies a session notification.
type EventType string

const (
	EventState         EventType = "state"
	EventQuestion      EventType = "question"
	EventResults       EventType = "results"
	EventCaptureFailed EventType = "capture_failed"
)

// Event notifies observers of session progress.
type Event struct {
	Type          EventType       `json:"type"`
	State         State           `json:"state,omitempty"`
	QuestionIndex int             `json:"questionIndex"`
	Total         int             `json:"total,omitempty"`
	Question      *model.Question `json:"question,omitempty"`
	Result        *Result         `json:"result,omitempty"`
	Engine        string          `json:"engine,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// View is a read model of the session for live display.
type View struct {
	State           State            `json:"state"`
	QuestionIndex   int              `json:"questionIndex"`
	Total           int              `json:"total"`
	Question        *model.Question  `json:"question,omitempty"`
	Answered        int              `json:"answered"`
	Signals         signals.Snapshot `json:"signals"`
	RecognizerError string           `json:"recognizerError,omitempty"`
}

// View returns the current read model.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		State:         s.state,
		QuestionIndex: s.current,
		Total:         len(s.questions),
		Answered:      len(s.answers),
		Signals:       s.agg.Snapshot(),
	}
	if s.current < len(s.questions) {
		q := s.questions[s.current]
		v.Question = &q
	}
	if err := s.agg.Transcript().Err(); err != nil {
		v.RecognizerError = err.Error()
	}
	return v
}
