package audio

import "sync"

// RingBuffer holds the most recent audio bytes up to a fixed capacity.
// Writing into a full buffer overwrites the oldest bytes.
type RingBuffer struct {
	mu    sync.Mutex
	data  []byte
	start int
	n     int
}

// NewRingBuffer creates a ring buffer holding at most size bytes.
func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{data: make([]byte, size)}
}

// Write appends p and returns how many older bytes were overwritten.
func (rb *RingBuffer) Write(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	size := len(rb.data)
	dropped := 0
	if len(p) > size {
		dropped = len(p) - size
		p = p[len(p)-size:]
	}

	for _, b := range p {
		if rb.n == size {
			rb.start = (rb.start + 1) % size
			rb.n--
			dropped++
		}
		rb.data[(rb.start+rb.n)%size] = b
		rb.n++
	}
	return dropped
}

// Drain returns all buffered bytes in order and empties the buffer.
func (rb *RingBuffer) Drain() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	out := make([]byte, rb.n)
	for i := range out {
		out[i] = rb.data[(rb.start+i)%len(rb.data)]
	}
	rb.start = 0
	rb.n = 0
	return out
}

// Len returns the number of buffered bytes.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.n
}

// Reset discards all buffered bytes.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	rb.start = 0
	rb.n = 0
	rb.mu.Unlock()
}
