package host

import "sync"

// AlwaysReady is the degraded Adapter for environments without frame timing.
// Every request fires on the next available turn of the dispatch goroutine
// and the slice is never reported exhausted, so the scheduler falls back to
// its own internally tracked forced deadline for yielding.
type AlwaysReady struct {
	mu    sync.Mutex
	fire  func()
	armed bool

	notify chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewAlwaysReady builds and starts an always-ready adapter.
func NewAlwaysReady() *AlwaysReady {
	a := &AlwaysReady{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Now returns the current wall-clock time in UTC milliseconds.
func (a *AlwaysReady) Now() int64 { return nowMs() }

// Request arms fire to run on the dispatch goroutine's next turn.
// The deadline is ignored: this strategy is always ready.
func (a *AlwaysReady) Request(fire func(), _ int64) {
	a.mu.Lock()
	a.fire = fire
	a.armed = true
	a.mu.Unlock()

	select {
	case a.notify <- struct{}{}:
	default:
	}
}

// Cancel disarms any pending request.
func (a *AlwaysReady) Cancel() {
	a.mu.Lock()
	a.armed = false
	a.fire = nil
	a.mu.Unlock()
}

// ShouldYield always reports false: there is no frame budget to exhaust.
func (a *AlwaysReady) ShouldYield() bool { return false }

// Close stops the dispatch goroutine and waits for it to exit.
func (a *AlwaysReady) Close() error {
	select {
	case <-a.done:
	default:
		close(a.done)
	}
	a.wg.Wait()
	return nil
}

func (a *AlwaysReady) run() {
	defer a.wg.Done()
	for {
		select {
		case <-a.done:
			return
		case <-a.notify:
			a.mu.Lock()
			fire := a.fire
			armed := a.armed
			a.armed = false
			a.fire = nil
			a.mu.Unlock()
			if armed {
				fire()
			}
		}
	}
}
