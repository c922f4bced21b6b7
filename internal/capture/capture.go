// Package capture defines the contract shared by the signal capture engines
// (camera pose source, microphone spectrum source, speech recognizer).
package capture

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied is returned when the user refused device access.
	ErrPermissionDenied = errors.New("capture: permission denied")
	// ErrNoDevice is returned when the required device or capability is missing.
	ErrNoDevice = errors.New("capture: no device")
	// ErrNotStarted is returned when an engine cannot be started yet.
	ErrNotStarted = errors.New("capture: not started")
)

// IsPermanent reports whether err means the engine cannot recover by itself.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNoDevice)
}

// ParseDeviceError maps a device status reported by a client onto a capture
// error. An empty or "ok"/"granted" status maps to nil.
func ParseDeviceError(status string) error {
	switch status {
	case "", "ok", "granted":
		return nil
	case "denied", "permission_denied":
		return ErrPermissionDenied
	case "unsupported", "no_device", "missing":
		return ErrNoDevice
	default:
		return ErrNotStarted
	}
}

// Engine is a signal producer with an independent lifecycle. Stop must be
// safe to call at any time, including before a successful Start.
type Engine interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}
