package capture

import (
	"context"
	"errors"
	"testing"
)

func TestFeed_ForwardsOnlyWhileActive(t *testing.T) {
	f := NewFeed[int]("pose")
	var got []int
	f.OnData(func(v int) { got = append(got, v) })

	if f.Push(1) {
		t.Error("Expected push before start to be dropped")
	}
	if err := f.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Push(2)
	f.Push(3)
	if err := f.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Push(4)

	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("Expected [2 3], got %v", got)
	}
}

func TestFeed_StopIsIdempotent(t *testing.T) {
	f := NewFeed[int]("audio")

	for i := 0; i < 3; i++ {
		if err := f.Stop(); err != nil {
			t.Fatalf("Stop %d: unexpected error: %v", i, err)
		}
	}
}

func TestFeed_StartFailsWhenUnavailable(t *testing.T) {
	f := NewFeed[int]("audio")
	f.SetUnavailable(ErrPermissionDenied)

	err := f.Start(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}
	if f.Active() {
		t.Error("Expected feed to stay inactive")
	}

	f.SetUnavailable(nil)
	if err := f.Start(context.Background()); err != nil {
		t.Errorf("Expected start to succeed once device is available, got %v", err)
	}
}

func TestFeed_LateGrantResumesStartedFeed(t *testing.T) {
	f := NewFeed[[]float64]("audio")
	var frames int
	f.OnData(func([]float64) { frames++ })

	f.SetUnavailable(ErrPermissionDenied)
	if err := f.Start(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied, got %v", err)
	}

	f.SetUnavailable(nil)
	if !f.Active() {
		t.Fatal("Expected feed to resume once the device is granted")
	}
	if !f.Push([]float64{64}) || frames != 1 {
		t.Errorf("Expected 1 forwarded frame, got %d", frames)
	}

	_ = f.Stop()
	f.SetUnavailable(nil)
	if f.Active() {
		t.Error("Expected a stopped feed to stay inactive after a grant")
	}
}

func TestFeed_EndNotifiesOnlyWhenActive(t *testing.T) {
	f := NewFeed[string]("speech")
	ends := 0
	f.OnEnd(func(error) { ends++ })

	f.End(nil)
	if ends != 0 {
		t.Errorf("Expected no notification while stopped, got %d", ends)
	}

	_ = f.Start(context.Background())
	f.End(errors.New("network"))
	if ends != 1 {
		t.Errorf("Expected 1 notification, got %d", ends)
	}
	if f.Active() {
		t.Error("Expected feed to be inactive after end")
	}
}

func TestFeed_DeviceLossEndsActiveFeed(t *testing.T) {
	f := NewFeed[string]("speech")
	var endErr error
	f.OnEnd(func(err error) { endErr = err })

	_ = f.Start(context.Background())
	f.SetUnavailable(ErrNoDevice)

	if !errors.Is(endErr, ErrNoDevice) {
		t.Errorf("Expected ErrNoDevice, got %v", endErr)
	}
}

func TestParseDeviceError(t *testing.T) {
	tests := map[string]error{
		"":            nil,
		"granted":     nil,
		"denied":      ErrPermissionDenied,
		"unsupported": ErrNoDevice,
		"busy":        ErrNotStarted,
	}
	for status, want := range tests {
		if got := ParseDeviceError(status); !errors.Is(got, want) || (want == nil && got != nil) {
			t.Errorf("ParseDeviceError(%q) = %v, want %v", status, got, want)
		}
	}
}

func TestIsPermanent(t *testing.T) {
	if !IsPermanent(ErrPermissionDenied) || !IsPermanent(ErrNoDevice) {
		t.Error("Expected device errors to be permanent")
	}
	if IsPermanent(errors.New("socket closed")) || IsPermanent(nil) {
		t.Error("Expected other errors to be transient")
	}
}
