// Package urgency converts (wall-clock time, priority) pairs into comparable
// urgency scores.
//
// The transform is order-reversing: a sooner deadline yields a higher score,
// so "score >= threshold" uniformly expresses both "at least this priority"
// and "at least this overdue". Deadlines are measured in fixed 10ms ticks and
// rounded up to the priority's batch window, which makes near-simultaneous
// requests at the same priority collapse onto one identical score — the
// scheduler and the update queue then coalesce them into a single pass.
//
// Scores fit in an int32, so the tick count is measured from a per-Calculator
// epoch captured at construction rather than from the raw clock: absolute
// wall-clock milliseconds would overflow the representable range immediately.
package urgency

import (
	"github.com/rkathuria/sliceq/internal/config"
	"github.com/rkathuria/sliceq/internal/types"
)

// scoreOffset is the anchor of the order-reversing transform:
//
//	score = scoreOffset - deadlineTicks
//
// It sits just below ScoreSync so every windowed score is strictly between
// ScoreNever and ScoreSync. With 10ms ticks the representable deadline range
// is ~8 months past the epoch, far beyond any realistic process lifetime.
const scoreOffset = types.ScoreSync - 2

// Calculator computes urgency scores from a tuning profile. All nowMs inputs
// must come from the same clock as the epoch it was constructed with.
// The zero value is not usable; construct with New.
type Calculator struct {
	epochMs      int64
	timeoutTicks [5]int64 // indexed by types.Priority; -1 = sync, -2 = never
	windowTicks  [5]int64
}

// New builds a Calculator from the profile's timeout and window tables,
// anchored at epochMs (typically the host adapter's current time). The
// profile must already be validated.
func New(p config.Profile, epochMs int64) *Calculator {
	c := &Calculator{epochMs: epochMs}

	c.timeoutTicks[types.PriorityImmediate] = -1 // sync, bypasses windowing
	c.timeoutTicks[types.PriorityUserBlocking] = ticks(p.Timeouts.UserBlockingMs)
	c.timeoutTicks[types.PriorityNormal] = ticks(p.Timeouts.NormalMs)
	c.timeoutTicks[types.PriorityLow] = ticks(p.Timeouts.LowMs)
	c.timeoutTicks[types.PriorityIdle] = -2 // never expires

	interactive := ticks(p.Windows.InteractiveMs)
	background := ticks(p.Windows.BackgroundMs)
	c.windowTicks[types.PriorityImmediate] = 1
	c.windowTicks[types.PriorityUserBlocking] = interactive
	c.windowTicks[types.PriorityNormal] = background
	c.windowTicks[types.PriorityLow] = background
	c.windowTicks[types.PriorityIdle] = 1

	return c
}

// Compute returns the urgency score for work requested at nowMs with the
// given priority. Immediate maps to ScoreSync (maximal, no windowing); Idle
// maps to ScoreNever (minimal, no deadline).
func (c *Calculator) Compute(nowMs int64, p types.Priority) types.Score {
	switch c.timeoutTicks[p] {
	case -1:
		return types.ScoreSync
	case -2:
		return types.ScoreNever
	}
	return c.score(c.relTicks(nowMs)+c.timeoutTicks[p], c.windowTicks[p])
}

// ComputeTimeout returns the urgency score for work with an explicit timeout
// in milliseconds, bypassing the priority table. The interactive window is
// used so an explicit timeout loses at most one short window to coalescing.
// A non-positive timeout yields ScoreSync.
func (c *Calculator) ComputeTimeout(nowMs, timeoutMs int64) types.Score {
	if timeoutMs <= 0 {
		return types.ScoreSync
	}
	return c.score(c.relTicks(nowMs)+ticks(timeoutMs), c.windowTicks[types.PriorityUserBlocking])
}

// Expired reports whether the deadline encoded in score has passed at nowMs.
// ScoreSync is always expired; ScoreNever never is.
func (c *Calculator) Expired(score types.Score, nowMs int64) bool {
	switch score {
	case types.ScoreSync:
		return true
	case types.ScoreNever, types.ScoreNone:
		return false
	}
	return deadlineTicks(score) <= c.relTicks(nowMs)
}

// DeadlineMs inverts the transform: the wall-clock millisecond at which the
// scored work expires. Used to arm the host adapter. ScoreSync work is due
// immediately (deadline 0); ScoreNever work reports a far-future deadline.
func (c *Calculator) DeadlineMs(score types.Score) int64 {
	switch score {
	case types.ScoreSync:
		return 0
	case types.ScoreNever, types.ScoreNone:
		return c.epochMs + int64(scoreOffset)*config.TickMs
	}
	return c.epochMs + deadlineTicks(score)*config.TickMs
}

// relTicks converts an absolute clock reading to whole ticks past the epoch.
// A reading before the epoch (clock skew) clamps to zero so the score can
// never climb above the windowed band.
func (c *Calculator) relTicks(nowMs int64) int64 {
	rel := nowMs - c.epochMs
	if rel < 0 {
		rel = 0
	}
	return ticks(rel)
}

// score applies the order-reversing transform. The requested deadline is
// rounded UP to the nearest window boundary (ceiling division), so the
// computed deadline is never earlier than requested and all requests within
// one window share a score.
func (c *Calculator) score(deadline, window int64) types.Score {
	bucketed := ceilTo(deadline, window)
	return scoreOffset - types.Score(bucketed)
}

func deadlineTicks(score types.Score) int64 {
	return int64(scoreOffset - score)
}

// ticks converts milliseconds to whole 10ms ticks, truncating.
func ticks(ms int64) int64 { return ms / config.TickMs }

// ceilTo rounds v up to the next multiple of step.
func ceilTo(v, step int64) int64 {
	return ((v + step - 1) / step) * step
}
