package host

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/rkathuria/sliceq/internal/config"
)

// FramePaced is the production Adapter. It paces callback invocations at an
// adaptively estimated frame cadence, so scheduled work runs in the gap after
// frame work but before the next frame begins.
//
// The frame length estimate starts at the profile's nominal value (33ms by
// default) and shrinks toward the true activation interval: when two
// consecutive intervals both come in under the current estimate, the estimate
// drops to the larger of the two. The estimate is clamped to the profile
// floor (8ms) so the adapter never over-commits past supported refresh rates.
type FramePaced struct {
	floorMs int64

	mu       sync.Mutex
	fire     func()
	deadline int64
	armed    bool

	frameLen      int64 // current frame length estimate, ms
	lastFireAt    int64
	prevInterval  int64
	limiter       *rate.Limiter
	frameDeadline atomic.Int64 // end of the current slice, UTC ms

	notify chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewFramePaced builds and starts a frame-paced adapter from the profile.
func NewFramePaced(fp config.FrameProfile) *FramePaced {
	f := &FramePaced{
		floorMs:  fp.FloorMs,
		frameLen: fp.InitialMs,
		limiter:  rate.NewLimiter(rate.Every(time.Duration(fp.InitialMs)*time.Millisecond), 1),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	f.wg.Add(1)
	go f.run()
	return f
}

// Now returns the current wall-clock time in UTC milliseconds.
func (f *FramePaced) Now() int64 { return nowMs() }

// Request arms fire to be invoked in the next frame gap, no later than
// deadlineMs. A previously armed request is replaced.
func (f *FramePaced) Request(fire func(), deadlineMs int64) {
	f.mu.Lock()
	f.fire = fire
	f.deadline = deadlineMs
	f.armed = true
	f.mu.Unlock()

	// Non-blocking: if a signal is already pending the loop wakes soon anyway.
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// Cancel disarms any pending request.
func (f *FramePaced) Cancel() {
	f.mu.Lock()
	f.armed = false
	f.fire = nil
	f.mu.Unlock()
}

// ShouldYield reports whether the current frame's time budget is spent.
func (f *FramePaced) ShouldYield() bool {
	return nowMs() >= f.frameDeadline.Load()
}

// Close stops the pacing goroutine and waits for it to exit.
func (f *FramePaced) Close() error {
	select {
	case <-f.done:
	default:
		close(f.done)
	}
	f.wg.Wait()
	return nil
}

func (f *FramePaced) run() {
	defer f.wg.Done()

	var t *time.Timer
	defer func() {
		if t != nil {
			t.Stop()
		}
	}()

	for {
		f.mu.Lock()
		armed := f.armed
		deadline := f.deadline
		f.mu.Unlock()

		if !armed {
			select {
			case <-f.done:
				return
			case <-f.notify:
			}
			continue
		}

		// The limiter paces at the frame cadence; the requested deadline caps
		// the wait ("no later than deadline, sooner if time is available").
		now := nowMs()
		res := f.limiter.Reserve()
		delay := res.Delay()
		if latest := time.Duration(deadline-now) * time.Millisecond; latest < delay {
			res.Cancel()
			delay = max(latest, 0)
		}

		if t == nil {
			t = time.NewTimer(delay)
		} else {
			t.Reset(delay)
		}

		select {
		case <-f.done:
			t.Stop()
			return
		case <-f.notify:
			// Re-armed with possibly different data — re-evaluate from the top.
			t.Stop()
			select {
			case <-t.C:
			default:
			}
			t = nil
		case <-t.C:
			t = nil
			f.activate()
		}
	}
}

// activate runs one frame: adapts the cadence estimate, opens a fresh slice,
// and invokes the armed callback outside the lock.
func (f *FramePaced) activate() {
	now := nowMs()

	f.mu.Lock()
	if !f.armed {
		f.mu.Unlock()
		return
	}
	fire := f.fire
	f.armed = false
	f.fire = nil

	f.adapt(now)
	f.frameDeadline.Store(now + f.frameLen)
	f.mu.Unlock()

	fire()
}

// adapt shrinks the frame length estimate toward the observed activation
// interval. Requires f.mu held.
func (f *FramePaced) adapt(now int64) {
	if f.lastFireAt > 0 {
		interval := now - f.lastFireAt
		if interval < f.frameLen && f.prevInterval > 0 && f.prevInterval < f.frameLen {
			// Two consecutive short frames: the platform runs faster than our
			// estimate. Adjust to the slower of the two, clamped to the floor.
			f.frameLen = max(max(interval, f.prevInterval), f.floorMs)
			f.limiter.SetLimit(rate.Every(time.Duration(f.frameLen) * time.Millisecond))
		}
		f.prevInterval = interval
	}
	f.lastFireAt = now
}
