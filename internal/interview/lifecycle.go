package interview

import "sync"

// lifecycle runs engine starts and stops in the order their tickets were
// taken. Tickets are taken under the session lock and run after it is
// released, so slow engines never hold the session lock while transitions
// still apply in order. Every ticket taken must be run.
type lifecycle struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64
	serving uint64
}

func newLifecycle() *lifecycle {
	l := &lifecycle{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *lifecycle) ticket() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.next
	l.next++
	return t
}

// run waits for every earlier ticket, then calls fn.
func (l *lifecycle) run(t uint64, fn func()) {
	l.mu.Lock()
	for l.serving != t {
		l.cond.Wait()
	}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.serving++
		l.cond.Broadcast()
		l.mu.Unlock()
	}()
	fn()
}
