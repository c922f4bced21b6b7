// Package posture turns skeletal pose samples into discrete posture warnings.
package posture

import (
	"math"
	"sync"
	"time"
)

// Landmark names the classifier reads from a sample.
const (
	LandmarkNose          = "nose"
	LandmarkLeftShoulder  = "leftShoulder"
	LandmarkRightShoulder = "rightShoulder"
)

// Kind of posture warning
type Kind string

const (
	SlouchDetected       Kind = "slouch_detected"
	ShoulderTiltDetected Kind = "shoulder_tilt_detected"
)

// Warning is a timestamped posture violation.
type Warning struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
}

// Point is a 2D image position. Y grows downwards.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Landmark is one detected body point.
type Landmark struct {
	Position Point   `json:"position" yaml:"position"`
	Score    float64 `json:"score" yaml:"score"`
}

// Sample is one pose detection result.
type Sample struct {
	Landmarks map[string]Landmark `json:"keypoints" yaml:"keypoints"`
	Score     float64             `json:"score" yaml:"score"`
	At        time.Time           `json:"at" yaml:"at"`
}

// Config holds the calibration of the classifier.
type Config struct {
	// MinPoseScore rejects samples whose overall confidence is lower.
	MinPoseScore float64
	// MinLandmarkScore rejects samples where either shoulder is less certain.
	MinLandmarkScore float64
	// MinShoulderSpan is the smallest horizontal shoulder separation, in
	// image units, for the subject to count as frontally visible.
	MinShoulderSpan float64
	// SlouchRatio is the nose-to-shoulder height, relative to shoulder
	// width, below which the subject is slouching.
	SlouchRatio float64
	// TiltRatio is the shoulder height difference, relative to shoulder
	// width, above which the subject is leaning.
	TiltRatio float64
	// Cooldown suppresses any warning for this long after one is emitted.
	Cooldown time.Duration
}

// DefaultConfig returns calibration suited to 640x480 pixel coordinates.
func DefaultConfig() Config {
	return Config{
		MinPoseScore:     0.2,
		MinLandmarkScore: 0.3,
		MinShoulderSpan:  10,
		SlouchRatio:      0.35,
		TiltRatio:        0.15,
		Cooldown:         2 * time.Second,
	}
}

// Classifier evaluates pose samples. The only state it keeps is the time of
// the last emitted warning.
type Classifier struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	lastWarn time.Time
}

// NewClassifier creates a classifier with the given calibration.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg, now: time.Now}
}

// Classify returns the warnings raised by one sample, possibly none.
// Samples without a timestamp are stamped with the current time.
func (c *Classifier) Classify(s Sample) []Warning {
	neck, tilt, ok := c.ratios(s)
	if !ok {
		return nil
	}

	at := s.At
	if at.IsZero() {
		at = c.now()
	}

	var kinds []Kind
	if neck < c.cfg.SlouchRatio {
		kinds = append(kinds, SlouchDetected)
	}
	if tilt > c.cfg.TiltRatio {
		kinds = append(kinds, ShoulderTiltDetected)
	}
	if len(kinds) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastWarn.IsZero() && at.Sub(c.lastWarn) < c.cfg.Cooldown {
		return nil
	}
	c.lastWarn = at

	warnings := make([]Warning, 0, len(kinds))
	for _, k := range kinds {
		warnings = append(warnings, Warning{Timestamp: at, Kind: k})
	}
	return warnings
}

// Reset forgets the cooldown so the next violation is reported immediately.
func (c *Classifier) Reset() {
	c.mu.Lock()
	c.lastWarn = time.Time{}
	c.mu.Unlock()
}

// ratios computes the neck-length and shoulder-tilt ratios, reporting false
// when the sample cannot be trusted.
func (c *Classifier) ratios(s Sample) (neck, tilt float64, ok bool) {
	if s.Score < c.cfg.MinPoseScore {
		return 0, 0, false
	}

	nose, hasNose := s.Landmarks[LandmarkNose]
	left, hasLeft := s.Landmarks[LandmarkLeftShoulder]
	right, hasRight := s.Landmarks[LandmarkRightShoulder]
	if !hasNose || !hasLeft || !hasRight {
		return 0, 0, false
	}
	if left.Score < c.cfg.MinLandmarkScore || right.Score < c.cfg.MinLandmarkScore {
		return 0, 0, false
	}

	width := math.Abs(left.Position.X - right.Position.X)
	if width < c.cfg.MinShoulderSpan || width == 0 {
		return 0, 0, false
	}

	midY := (left.Position.Y + right.Position.Y) / 2
	neck = (midY - nose.Position.Y) / width
	tilt = math.Abs(left.Position.Y-right.Position.Y) / width
	return neck, tilt, true
}
