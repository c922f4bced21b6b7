package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/lexiqai/interview-coach/internal/interview"
	"github.com/lexiqai/interview-coach/internal/posture"
	"github.com/lexiqai/interview-coach/internal/stress"
)

func defaultOptions() options {
	return options{posture: posture.DefaultConfig(), stress: stress.DefaultConfig(), logLevel: "error"}
}

func TestReplay(t *testing.T) {
	script, err := LoadScript("testdata/session.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := replay(context.Background(), script, defaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Answers) != 2 {
		t.Fatalf("Expected 2 answers, got %d", len(result.Answers))
	}
	if got := result.Answers[0].AnswerText; got != "a function that remembers its scope" {
		t.Errorf("Unexpected first answer: %q", got)
	}
	if got := result.Answers[1].AnswerText; got != "It schedules callbacks." {
		t.Errorf("Unexpected second answer: %q", got)
	}
	if result.Metrics.TotalPauses != 2 {
		t.Errorf("Expected 2 pauses, got %d", result.Metrics.TotalPauses)
	}
	if result.Metrics.PostureWarningCount != 2 {
		t.Errorf("Expected 2 posture warnings with cooldown, got %d", result.Metrics.PostureWarningCount)
	}
	if !result.Feedback.Degraded {
		t.Error("Expected local degraded feedback without an AI service")
	}
	if result.Profile.Name != "Frontend Developer" {
		t.Errorf("Expected profile from bank, got %+v", result.Profile)
	}
}

func TestReplay_CooldownFlag(t *testing.T) {
	script, err := LoadScript("testdata/session.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opts := defaultOptions()
	opts.posture.Cooldown = 0
	result, err := replay(context.Background(), script, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Metrics.PostureWarningCount != 3 {
		t.Errorf("Expected every slouch counted without cooldown, got %d", result.Metrics.PostureWarningCount)
	}
}

func TestRootCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"testdata/session.yaml", "--ai-service", "", "--log-level", "error"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result interview.Result
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("Expected JSON output, got %v", err)
	}
	if len(result.Answers) != 2 {
		t.Errorf("Expected 2 answers, got %d", len(result.Answers))
	}
}

func TestLoadScript_Invalid(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("profile: frontend\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadScript(empty); err == nil {
		t.Error("Expected error for script without segments")
	}

	if _, err := LoadScript(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
