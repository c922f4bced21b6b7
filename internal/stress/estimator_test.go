package stress

import (
	"math"
	"testing"
)

func frame(level float64, n int) []float64 {
	f := make([]float64, n)
	for i := range f {
		f[i] = level
	}
	return f
}

func TestNew_StartsNeutral(t *testing.T) {
	e := New(DefaultConfig())

	if got := e.Current(); got != 50 {
		t.Errorf("Expected neutral reading 50, got %f", got)
	}
	if e.Observed() {
		t.Error("Expected no observation before any frame")
	}
}

func TestTick_Smooths(t *testing.T) {
	e := New(DefaultConfig())

	// raw = 128 / 128 * 100 = 100, smoothed = 50*0.9 + 100*0.1 = 55
	e.OnAudioFrame(frame(128, 32))
	if got := e.Tick(); math.Abs(got-55) > 1e-9 {
		t.Errorf("Expected 55, got %f", got)
	}
	if !e.Observed() {
		t.Error("Expected observation after tick")
	}
}

func TestTick_SingleSpikeBounded(t *testing.T) {
	e := New(DefaultConfig())

	e.OnAudioFrame(frame(255, 32))
	got := e.Tick()
	if got > 55+1e-9 {
		t.Errorf("Expected a single loud frame to move the reading by at most 5, got %f", got)
	}
}

func TestTick_ClampsToFloor(t *testing.T) {
	e := New(DefaultConfig())

	for i := 0; i < 200; i++ {
		e.OnAudioFrame(frame(0, 32))
		e.Tick()
	}
	if got := e.Current(); math.Abs(got-5) > 1e-6 {
		t.Errorf("Expected reading to settle at floor 5, got %f", got)
	}
}

func TestTick_StaysWithinRange(t *testing.T) {
	e := New(DefaultConfig())

	for i := 0; i < 200; i++ {
		e.OnAudioFrame(frame(1000, 16))
		got := e.Tick()
		if got < 0 || got > 100 {
			t.Fatalf("Reading %f out of range", got)
		}
	}
}

func TestTick_KeepsValueWithoutFrames(t *testing.T) {
	e := New(DefaultConfig())

	e.OnAudioFrame(frame(128, 8))
	before := e.Tick()

	for i := 0; i < 5; i++ {
		if got := e.Tick(); got != before {
			t.Fatalf("Expected reading to stay at %f while capture is unavailable, got %f", before, got)
		}
	}
}

func TestOnAudioFrame_IgnoresEmpty(t *testing.T) {
	e := New(DefaultConfig())

	e.OnAudioFrame(nil)
	e.OnAudioFrame([]float64{})
	if got := e.Tick(); got != 50 {
		t.Errorf("Expected neutral reading, got %f", got)
	}
	if e.Observed() {
		t.Error("Expected empty frames not to count as observations")
	}
}

func TestAverage(t *testing.T) {
	e := New(DefaultConfig())
	if got := e.Average(); got != 50 {
		t.Errorf("Expected neutral average without readings, got %f", got)
	}

	e.OnAudioFrame(frame(128, 8))
	first := e.Tick()
	e.OnAudioFrame(frame(128, 8))
	second := e.Tick()

	want := (first + second) / 2
	if got := e.Average(); math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected average %f, got %f", want, got)
	}
}

func TestReset(t *testing.T) {
	e := New(DefaultConfig())
	e.OnAudioFrame(frame(128, 8))
	e.Tick()

	e.Reset()
	if got := e.Current(); got != 50 {
		t.Errorf("Expected neutral reading after reset, got %f", got)
	}
	if e.Observed() {
		t.Error("Expected observed flag cleared by reset")
	}
}
