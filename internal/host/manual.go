package host

import "sync"

// Manual is a deterministic Adapter driven entirely by the test (or the
// simulator): the clock only moves when Advance is called and armed requests
// only run when FirePending is called, synchronously on the caller's
// goroutine. A per-slice budget makes ShouldYield deterministic too.
type Manual struct {
	mu       sync.Mutex
	now      int64
	fire     func()
	deadline int64
	armed    bool

	budgetMs   int64 // 0 = unlimited slice
	sliceEnd   int64
	forceYield bool

	fires   int
	cancels int
}

// NewManual returns a Manual adapter with the clock at startMs.
func NewManual(startMs int64) *Manual {
	return &Manual{now: startMs}
}

// Now returns the virtual clock in milliseconds.
func (m *Manual) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the virtual clock forward. It never fires callbacks by
// itself — call FirePending to deliver.
func (m *Manual) Advance(ms int64) {
	m.mu.Lock()
	m.now += ms
	m.mu.Unlock()
}

// Request arms fire with the given deadline, replacing any armed request.
func (m *Manual) Request(fire func(), deadlineMs int64) {
	m.mu.Lock()
	m.fire = fire
	m.deadline = deadlineMs
	m.armed = true
	m.mu.Unlock()
}

// Cancel disarms any pending request.
func (m *Manual) Cancel() {
	m.mu.Lock()
	m.armed = false
	m.fire = nil
	m.cancels++
	m.mu.Unlock()
}

// ShouldYield reports true when forced, or when the slice budget opened by
// the last FirePending has been consumed by Advance.
func (m *Manual) ShouldYield() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forceYield {
		return true
	}
	return m.budgetMs > 0 && m.now >= m.sliceEnd
}

// Close is a no-op; Manual owns no goroutine.
func (m *Manual) Close() error { return nil }

// SetSliceBudget sets how much virtual time each fired slice may consume
// before ShouldYield turns true. Zero disables budget-based yielding.
func (m *Manual) SetSliceBudget(ms int64) {
	m.mu.Lock()
	m.budgetMs = ms
	m.mu.Unlock()
}

// ForceYield pins ShouldYield to true (or releases it).
func (m *Manual) ForceYield(v bool) {
	m.mu.Lock()
	m.forceYield = v
	m.mu.Unlock()
}

// Armed reports whether a request is currently armed, and its deadline.
func (m *Manual) Armed() (bool, int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.armed, m.deadline
}

// FirePending invokes the armed callback synchronously, opening a fresh
// slice budget first. Returns false if nothing was armed.
func (m *Manual) FirePending() bool {
	m.mu.Lock()
	if !m.armed {
		m.mu.Unlock()
		return false
	}
	fire := m.fire
	m.armed = false
	m.fire = nil
	m.sliceEnd = m.now + m.budgetMs
	m.fires++
	m.mu.Unlock()

	fire()
	return true
}

// Fires returns how many times FirePending delivered a callback.
func (m *Manual) Fires() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fires
}

// Cancels returns how many times Cancel was called.
func (m *Manual) Cancels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancels
}
