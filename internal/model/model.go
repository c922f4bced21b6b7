// Package model holds the data shared between the interview state machine
// and its collaborators.
package model

import (
	"strings"
	"time"
)

// NoAnswerSentinel is recorded when a question is submitted without any
// typed or transcribed text.
const NoAnswerSentinel = "[No answer provided]"

// Difficulty of a generated question
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty maps free-form difficulty labels onto the known set.
// Unknown labels are treated as medium.
func ParseDifficulty(s string) Difficulty {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case DifficultyEasy:
		return DifficultyEasy
	case DifficultyHard:
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// Question is immutable once generated.
type Question struct {
	Text       string     `json:"question" yaml:"question"`
	Difficulty Difficulty `json:"difficulty" yaml:"difficulty"`
}

// Profile describes the job the candidate is interviewing for.
type Profile struct {
	ID     string   `json:"id" yaml:"id"`
	Name   string   `json:"name" yaml:"name"`
	Topics []string `json:"topics" yaml:"topics"`
}

// AnswerRecord is created once per question at submission time.
type AnswerRecord struct {
	QuestionIndex int       `json:"questionIndex"`
	Question      string    `json:"question"`
	AnswerText    string    `json:"answer"`
	PausesDuring  int       `json:"pausesDuring"`
	StressLevel   float64   `json:"stressLevel"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// SessionMetrics is computed exactly once, when the interview ends.
type SessionMetrics struct {
	TotalPauses         int     `json:"totalPauses"`
	PostureWarningCount int     `json:"postureWarnings"`
	AverageStressLevel  float64 `json:"avgStressLevel"`
}

// FoldMetrics sums the pauses of every answer and pairs them with the
// session-wide posture warning count and stress level.
func FoldMetrics(answers []AnswerRecord, postureWarnings int, stressLevel float64) SessionMetrics {
	m := SessionMetrics{
		PostureWarningCount: postureWarnings,
		AverageStressLevel:  stressLevel,
	}
	for _, a := range answers {
		m.TotalPauses += a.PausesDuring
	}
	return m
}
