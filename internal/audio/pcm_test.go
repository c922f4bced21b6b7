package audio

import (
	"math"
	"testing"
)

func pcm(samples ...int16) []byte {
	out := make([]byte, 0, len(samples)*2)
	for _, s := range samples {
		out = append(out, byte(s), byte(uint16(s)>>8))
	}
	return out
}

func TestDecodePCM16(t *testing.T) {
	samples, err := DecodePCM16(pcm(0, 1, -1, math.MaxInt16, math.MinInt16))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []int16{0, 1, -1, math.MaxInt16, math.MinInt16}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("Sample %d: expected %d, got %d", i, want[i], samples[i])
		}
	}
}

func TestDecodePCM16_Invalid(t *testing.T) {
	if _, err := DecodePCM16(nil); err == nil {
		t.Error("Expected error for empty data")
	}
	if _, err := DecodePCM16([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for odd length")
	}
}

func TestLinearToMulaw(t *testing.T) {
	tests := []struct {
		sample int16
		want   byte
	}{
		{0, 0xFF},
		{math.MaxInt16, 0x80},
		{math.MinInt16, 0x00},
	}

	for _, tt := range tests {
		if got := linearToMulaw(tt.sample); got != tt.want {
			t.Errorf("linearToMulaw(%d): expected 0x%02X, got 0x%02X", tt.sample, tt.want, got)
		}
	}
}

func TestPCM16ToMulaw_Resamples(t *testing.T) {
	in := pcm(make([]int16, 160)...)

	out, err := PCM16ToMulaw(in, 16000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 80 {
		t.Errorf("Expected 80 bytes at 8kHz, got %d", len(out))
	}
	for i, b := range out {
		if b != 0xFF {
			t.Fatalf("Byte %d: expected silence 0xFF, got 0x%02X", i, b)
		}
	}

	if _, err := PCM16ToMulaw(in, 0); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestResample(t *testing.T) {
	in := []int16{0, 100, 200, 300}

	if got := Resample(in, 8000, 8000); len(got) != 4 {
		t.Errorf("Expected passthrough, got %v", got)
	}

	up := Resample(in, 8000, 16000)
	if len(up) != 8 {
		t.Fatalf("Expected 8 samples, got %d", len(up))
	}
	if up[1] != 50 {
		t.Errorf("Expected interpolated 50, got %d", up[1])
	}
}
