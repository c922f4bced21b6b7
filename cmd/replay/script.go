package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lexiqai/interview-coach/internal/model"
	"github.com/lexiqai/interview-coach/internal/posture"
	"github.com/lexiqai/interview-coach/internal/transcript"
)

// Script is a recorded session: one segment per answered question.
type Script struct {
	Profile  string    `yaml:"profile"`
	Segments []Segment `yaml:"segments"`
}

// Segment holds the signals captured while answering one question.
type Segment struct {
	Question    string             `yaml:"question"`
	Typed       string             `yaml:"typed"`
	Poses       []PoseFrame        `yaml:"poses"`
	Spectra     [][]float64        `yaml:"spectra"`
	Recognition []transcript.Event `yaml:"recognition"`
}

// PoseFrame is a pose sample at an offset in milliseconds from the start of
// its segment.
type PoseFrame struct {
	OffsetMs int            `yaml:"offset_ms"`
	Sample   posture.Sample `yaml:",inline"`
}

// LoadScript reads and validates a script.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}

	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	if len(s.Segments) == 0 {
		return nil, fmt.Errorf("script %s has no segments", path)
	}
	for i, seg := range s.Segments {
		if seg.Question == "" {
			return nil, fmt.Errorf("segment %d has no question", i)
		}
	}
	return &s, nil
}

// Questions returns the scripted questions in order.
func (s *Script) Questions() []model.Question {
	qs := make([]model.Question, len(s.Segments))
	for i, seg := range s.Segments {
		qs[i] = model.Question{Text: seg.Question, Difficulty: model.DifficultyMedium}
	}
	return qs
}

// at returns the absolute time of a pose frame in segment i.
func at(base time.Time, segment int, offsetMs int) time.Time {
	// Segments are spaced an hour apart so cooldowns never span segments.
	return base.Add(time.Duration(segment)*time.Hour + time.Duration(offsetMs)*time.Millisecond)
}
