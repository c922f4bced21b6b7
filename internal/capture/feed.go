package capture

import (
	"context"
	"sync"
)

// Feed is an engine whose samples are pushed in from outside, typically by a
// browser that owns the physical device. Pushes are forwarded to the data
// handler only while the feed is started. A feed started while its device
// was unavailable becomes active once the device is reported available.
type Feed[T any] struct {
	name string

	mu          sync.Mutex
	wanted      bool
	active      bool
	unavailable error
	onData      func(T)
	onEnd       func(error)
}

// NewFeed creates a stopped feed.
func NewFeed[T any](name string) *Feed[T] {
	return &Feed[T]{name: name}
}

func (f *Feed[T]) Name() string {
	return f.name
}

// OnData registers the handler receiving pushed samples.
func (f *Feed[T]) OnData(fn func(T)) {
	f.mu.Lock()
	f.onData = fn
	f.mu.Unlock()
}

// OnEnd registers the handler told when the remote side stops on its own.
func (f *Feed[T]) OnEnd(fn func(error)) {
	f.mu.Lock()
	f.onEnd = fn
	f.mu.Unlock()
}

// Start fails with the last reported device error, if any.
func (f *Feed[T]) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.wanted = true
	if f.unavailable != nil {
		return f.unavailable
	}
	f.active = true
	return nil
}

func (f *Feed[T]) Stop() error {
	f.mu.Lock()
	f.wanted = false
	f.active = false
	f.mu.Unlock()
	return nil
}

// Active reports whether pushes are currently forwarded.
func (f *Feed[T]) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// Push forwards one sample. It reports false when the sample was dropped
// because the feed is stopped.
func (f *Feed[T]) Push(v T) bool {
	f.mu.Lock()
	if !f.active || f.onData == nil {
		f.mu.Unlock()
		return false
	}
	handler := f.onData
	f.mu.Unlock()

	handler(v)
	return true
}

// SetUnavailable records the device status reported by the client. A nil
// error clears it and resumes a feed that was started meanwhile. A running
// feed is stopped and its end handler notified.
func (f *Feed[T]) SetUnavailable(err error) {
	f.mu.Lock()
	f.unavailable = err
	wasActive := f.active
	f.active = err == nil && f.wanted
	onEnd := f.onEnd
	f.mu.Unlock()

	if err != nil && wasActive && onEnd != nil {
		onEnd(err)
	}
}

// End reports that the remote engine terminated by itself.
func (f *Feed[T]) End(err error) {
	f.mu.Lock()
	wasActive := f.active
	f.wanted = false
	f.active = false
	onEnd := f.onEnd
	f.mu.Unlock()

	if wasActive && onEnd != nil {
		onEnd(err)
	}
}
