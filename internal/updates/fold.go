package updates

import (
	"github.com/rkathuria/sliceq/internal/metrics"
	"github.com/rkathuria/sliceq/internal/types"
)

// Result is the outcome of one fold pass.
type Result struct {
	// State is the final accumulator: the materialized state for this pass.
	State any
	// Remaining is the maximum score among skipped updates, driving future
	// re-scheduling. ScoreNone when nothing was skipped.
	Remaining types.Score
	// ForceReapply is raised when a Force update was admitted.
	ForceReapply bool
	// EnteredRecovery is raised when a Capture update was admitted.
	EnteredRecovery bool
}

// Process folds q's pending updates into its base state under threshold:
// updates with score >= threshold apply in insertion order; less urgent ones
// are skipped and survive for a later pass.
//
// At the first skip (across both lists) the accumulator is snapshotted as the
// queue's new BaseState — later passes rebase on top of that snapshot and
// re-apply everything from the first skipped update onward, which is what
// makes out-of-temporal-order application converge to the in-order result.
// Before the first skip, each node is unlinked before its payload runs, so a
// panicking payload is fatal to this fold only and cannot corrupt the list.
//
// Admitted updates carrying a completion callback move to the queue's effect
// lists in encounter order; Commit fires them. reg may be nil.
func Process(q *Queue, threshold types.Score, props any, reg *metrics.Registry) Result {
	state := q.BaseState
	remaining := types.ScoreNone
	var force, recovery bool

	var newBase any
	haveNewBase := false

	// Normal list.
	var newFirst *Update
	for u := q.firstUpdate; u != nil; u = u.next {
		if u.Score < threshold {
			if newFirst == nil {
				newFirst = u
				newBase = state
				haveNewBase = true
			}
			remaining = remaining.Max(u.Score)
			if reg != nil {
				reg.UpdatesSkipped.Inc()
			}
			continue
		}
		if newFirst == nil {
			// Unlink before invoking the payload.
			q.firstUpdate = u.next
			if q.firstUpdate == nil {
				q.lastUpdate = nil
			}
		}
		state = u.apply(state, props, &force, &recovery)
		if u.Callback != nil {
			q.appendEffect(u, false)
		}
		if reg != nil {
			reg.UpdateApplied(u.Kind.String())
		}
	}

	// Captured list: identical walk, same first-skip-snapshots-base rule,
	// kept in its own list until commit.
	var newFirstCaptured *Update
	for u := q.firstCaptured; u != nil; u = u.next {
		if u.Score < threshold {
			if newFirstCaptured == nil {
				newFirstCaptured = u
				if newFirst == nil && !haveNewBase {
					newBase = state
					haveNewBase = true
				}
			}
			remaining = remaining.Max(u.Score)
			if reg != nil {
				reg.UpdatesSkipped.Inc()
			}
			continue
		}
		if newFirstCaptured == nil {
			q.firstCaptured = u.next
			if q.firstCaptured == nil {
				q.lastCaptured = nil
			}
		}
		state = u.apply(state, props, &force, &recovery)
		if u.Callback != nil {
			q.appendEffect(u, true)
		}
		if reg != nil {
			reg.UpdateApplied(u.Kind.String())
		}
	}

	// Replace the heads with the surviving skipped suffixes. An applied
	// update that sits after the first skip stays in the list deliberately:
	// the next pass re-applies it on top of the snapshotted base.
	q.firstUpdate = newFirst
	if newFirst == nil {
		q.lastUpdate = nil
	}
	q.firstCaptured = newFirstCaptured
	if newFirstCaptured == nil {
		q.lastCaptured = nil
	}

	if !haveNewBase {
		newBase = state
	}
	q.BaseState = newBase

	if reg != nil {
		reg.FoldPasses.Inc()
	}
	return Result{
		State:           state,
		Remaining:       remaining,
		ForceReapply:    force,
		EnteredRecovery: recovery,
	}
}

// Commit finalizes a fold pass on q.
//
// A surviving captured suffix is appended to the tail of the normal list, so
// recovery work skipped at this threshold is retried at lower urgency rather
// than dropped. Every callback on the effect lists then fires in order, the
// reference cleared before invocation so an aborted loop or a re-entrant
// mutation cannot re-invoke it.
//
// If callbacks fail, the remaining effects still fire and the first error is
// returned. reg may be nil.
func Commit(q *Queue, reg *metrics.Registry) error {
	return FireEffects(TakeEffects(q, reg), reg)
}

// TakeEffects performs the structural half of a commit: it re-appends any
// surviving captured suffix onto the normal list, detaches both effect lists,
// and returns the recorded callbacks in order — each node's Callback
// reference cleared as it is collected, ahead of any invocation. The runtime
// calls this under its lock and fires the callbacks outside it, so re-entrant
// mutation from a callback never observes a queue mid-surgery.
func TakeEffects(q *Queue, reg *metrics.Registry) []func() error {
	if q.firstCaptured != nil {
		if q.lastUpdate != nil {
			q.lastUpdate.next = q.firstCaptured
		} else {
			q.firstUpdate = q.firstCaptured
		}
		q.lastUpdate = q.lastCaptured
		q.firstCaptured = nil
		q.lastCaptured = nil
	}

	var cbs []func() error
	collect := func(head *Update) {
		for e := head; e != nil; {
			next := e.nextEffect
			e.nextEffect = nil
			cb := e.Callback
			e.Callback = nil
			if cb != nil {
				cbs = append(cbs, cb)
			}
			e = next
		}
	}

	collect(q.firstEffect)
	q.firstEffect = nil
	q.lastEffect = nil

	collect(q.firstCapturedEffect)
	q.firstCapturedEffect = nil
	q.lastCapturedEffect = nil

	if reg != nil {
		reg.Commits.Inc()
	}
	return cbs
}

// FireEffects invokes the collected callbacks in order. A failing callback
// does not stop the drain; the first error is returned once every remaining
// effect has fired. reg may be nil.
func FireEffects(cbs []func() error, reg *metrics.Registry) error {
	var firstErr error
	for _, cb := range cbs {
		if reg != nil {
			reg.EffectsFired.Inc()
		}
		if err := cb(); err != nil {
			if reg != nil {
				reg.EffectErrors.Inc()
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
