package usage

// RingSize is how many recent events the in-memory buffer retains.
// The live dashboard only needs recent activity; long retention belongs
// to the durable event store.
const RingSize = 200

// Ring is a bounded append-only buffer of recent events.
// Oldest entries are evicted first. Not safe for concurrent use;
// callers hold their own lock.
type Ring struct {
	buf   []Event
	start int
	n     int
}

// NewRing creates a ring with the given capacity (RingSize if cap <= 0).
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = RingSize
	}
	return &Ring{buf: make([]Event, capacity)}
}

// Append adds an event, evicting the oldest when full.
func (r *Ring) Append(e Event) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = e
		r.n++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

// Len returns the number of retained events.
func (r *Ring) Len() int {
	return r.n
}

// Snapshot returns retained events oldest first.
func (r *Ring) Snapshot() []Event {
	out := make([]Event, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Last returns up to n most recent events, oldest first.
func (r *Ring) Last(n int) []Event {
	if n <= 0 || r.n == 0 {
		return nil
	}
	if n > r.n {
		n = r.n
	}
	out := make([]Event, n)
	first := r.n - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(r.start+first+i)%len(r.buf)]
	}
	return out
}
