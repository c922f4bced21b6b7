package model

import (
	"encoding/json"
	"testing"
)

func TestFoldMetrics(t *testing.T) {
	answers := []AnswerRecord{
		{QuestionIndex: 0, PausesDuring: 1},
		{QuestionIndex: 1, PausesDuring: 0},
		{QuestionIndex: 2, PausesDuring: 3},
	}

	m := FoldMetrics(answers, 2, 42.5)
	if m.TotalPauses != 4 {
		t.Errorf("Expected 4 total pauses, got %d", m.TotalPauses)
	}
	if m.PostureWarningCount != 2 {
		t.Errorf("Expected 2 posture warnings, got %d", m.PostureWarningCount)
	}
	if m.AverageStressLevel != 42.5 {
		t.Errorf("Expected stress 42.5, got %f", m.AverageStressLevel)
	}
}

func TestParseDifficulty(t *testing.T) {
	tests := map[string]Difficulty{
		"easy":    DifficultyEasy,
		" HARD ":  DifficultyHard,
		"medium":  DifficultyMedium,
		"unknown": DifficultyMedium,
		"":        DifficultyMedium,
	}
	for in, want := range tests {
		if got := ParseDifficulty(in); got != want {
			t.Errorf("ParseDifficulty(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNormalize_AppliesDefaults(t *testing.T) {
	var raw RawFeedback
	if err := json.Unmarshal([]byte(`{"overallScore": 72, "communication": {"score": 80}}`), &raw); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := raw.Normalize(SessionMetrics{TotalPauses: 3, PostureWarningCount: 1})
	if got.OverallScore != 72 {
		t.Errorf("Expected overall score 72, got %d", got.OverallScore)
	}
	if got.Communication.Score != 80 {
		t.Errorf("Expected communication score 80, got %d", got.Communication.Score)
	}
	if got.Communication.Feedback != unavailableFeedback {
		t.Errorf("Expected default feedback, got %q", got.Communication.Feedback)
	}
	if got.TechnicalSkills.Score != 50 || got.Confidence.Score != 50 {
		t.Errorf("Expected default category scores of 50, got %d and %d",
			got.TechnicalSkills.Score, got.Confidence.Score)
	}
	if got.PostureScore != 100 || got.StressScore != 100 {
		t.Errorf("Expected default posture/stress scores of 100, got %d/%d", got.PostureScore, got.StressScore)
	}
	if got.Improvements == nil || got.Strengths == nil {
		t.Error("Expected non-nil improvement and strength lists")
	}
	if got.TotalPauses != 3 || got.PostureWarnings != 1 {
		t.Errorf("Expected metrics echoed into result, got pauses=%d warnings=%d", got.TotalPauses, got.PostureWarnings)
	}
	if got.Degraded {
		t.Error("Expected normalized result not to be degraded")
	}
}

func TestNormalize_ClampsScores(t *testing.T) {
	over, under := 140, -5
	raw := RawFeedback{OverallScore: &over, PostureScore: &under}

	got := raw.Normalize(SessionMetrics{})
	if got.OverallScore != 100 {
		t.Errorf("Expected overall score clamped to 100, got %d", got.OverallScore)
	}
	if got.PostureScore != 0 {
		t.Errorf("Expected posture score clamped to 0, got %d", got.PostureScore)
	}
}

func TestDegradedFeedback(t *testing.T) {
	got := DegradedFeedback(SessionMetrics{TotalPauses: 2, PostureWarningCount: 3, AverageStressLevel: 50})

	if !got.Degraded {
		t.Error("Expected degraded flag to be set")
	}
	if got.OverallScore != 50 {
		t.Errorf("Expected overall score 50, got %d", got.OverallScore)
	}
	if got.PostureScore != 70 {
		t.Errorf("Expected posture score 70, got %d", got.PostureScore)
	}
	if got.StressScore != 50 {
		t.Errorf("Expected stress score 50, got %d", got.StressScore)
	}
	if len(got.TechnicalSkills.WeakAreas) != 1 || got.TechnicalSkills.WeakAreas[0] != "API Connection" {
		t.Errorf("Unexpected weak areas: %v", got.TechnicalSkills.WeakAreas)
	}
	if got.TotalPauses != 2 || got.PostureWarnings != 3 {
		t.Errorf("Expected metrics echoed, got pauses=%d warnings=%d", got.TotalPauses, got.PostureWarnings)
	}
}
