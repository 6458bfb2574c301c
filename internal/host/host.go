// Package host defines the timing boundary between the sliceq core and the
// platform it runs on. The scheduler never reads a clock or arms a timer
// directly — it asks the installed Adapter, and stays agnostic about which
// strategy is behind it.
//
// Three strategies ship with the package:
//
//   - FramePaced — estimates the platform's frame cadence adaptively and
//     schedules work in the gap between frames. The production default.
//   - AlwaysReady — degraded fallback: every request fires on the next
//     available turn and the slice is never reported exhausted. Used where
//     frame timing is unavailable; never a fatal condition.
//   - Manual — deterministic virtual clock for tests and the simulator.
package host

import (
	"time"

	"github.com/rkathuria/sliceq/internal/config"
)

// Adapter supplies the four timing capabilities the scheduler core requires.
//
// Request arms a single future invocation of fire, to happen no later than
// deadlineMs (UTC milliseconds), sooner if time is available. Arming while a
// request is already armed replaces it. Cancel disarms; cancelling with
// nothing armed is a no-op. ShouldYield reports whether the current time
// slice is exhausted at the platform level.
//
// fire is invoked from the adapter's own goroutine (Manual invokes it on the
// caller's); implementations guarantee at most one in-flight invocation.
type Adapter interface {
	Now() int64
	Request(fire func(), deadlineMs int64)
	Cancel()
	ShouldYield() bool
	Close() error
}

// New selects an adapter for the profile: FramePaced when frame pacing is
// enabled, otherwise the degraded AlwaysReady strategy.
func New(p config.Profile) Adapter {
	if p.Frame.Paced {
		return NewFramePaced(p.Frame)
	}
	return NewAlwaysReady()
}

// nowMs is the shared wall clock for the real-time adapters.
func nowMs() int64 { return time.Now().UnixMilli() }
