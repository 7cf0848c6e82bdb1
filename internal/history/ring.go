package history

import "sync"

// DefaultRingSize bounds the in-memory event buffer.
const DefaultRingSize = 256

// Ring keeps the most recent events in memory so status queries work even
// when no external sink is configured.
type Ring struct {
	mu  sync.Mutex
	buf []Event
	max int
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &Ring{max: capacity}
}

// Append adds e, evicting the oldest events beyond capacity.
func (r *Ring) Append(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, e)
	if len(r.buf) > r.max {
		copy(r.buf, r.buf[len(r.buf)-r.max:])
		r.buf = r.buf[:r.max]
	}
}

// Recent returns up to n events, newest first. n <= 0 returns everything
// buffered.
func (r *Ring) Recent(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > len(r.buf) {
		n = len(r.buf)
	}
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = r.buf[len(r.buf)-1-i]
	}
	return out
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}
