package runtime

import (
	"errors"

	"github.com/rkathuria/sliceq/internal/sched"
	"github.com/rkathuria/sliceq/internal/types"
	"github.com/rkathuria/sliceq/internal/updates"
)

// EnqueueUpdate appends u to the owner's queues (creating them lazily on the
// first mutation) and schedules a fold at the update's own urgency. It is
// fire-and-forget: materialization happens asynchronously when the host
// grants the scheduler time.
func (r *Runtime) EnqueueUpdate(ownerID string, u *updates.Update) error {
	if u == nil {
		return errors.New("runtime: nil update")
	}

	r.mu.Lock()
	o, ok := r.owners[ownerID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownOwner
	}
	o.ensureQueuesLocked()
	updates.Enqueue(o.current, o.wip, u)
	r.scheduleFoldLocked(o, sched.CurrentPriority(), u.Score)
	r.mu.Unlock()

	r.reg.UpdateEnqueued(u.Kind.String())
	return nil
}

// EnqueueCaptured appends an error-recovery update to the owner's
// work-in-progress generation only, cloning it first if it still aliases the
// committed generation.
func (r *Runtime) EnqueueCaptured(ownerID string, u *updates.Update) error {
	if u == nil {
		return errors.New("runtime: nil update")
	}

	r.mu.Lock()
	o, ok := r.owners[ownerID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownOwner
	}
	o.ensureQueuesLocked()
	o.wip = updates.EnqueueCaptured(o.current, o.wip, u)
	r.scheduleFoldLocked(o, sched.CurrentPriority(), u.Score)
	r.mu.Unlock()

	r.reg.UpdateEnqueued(u.Kind.String())
	return nil
}

// RequestWork asks that the owner's pending updates eventually be folded at
// roughly the hinted priority.
func (r *Runtime) RequestWork(ownerID string, hint types.Priority) error {
	score := r.calc.Compute(r.hst.Now(), hint)

	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.owners[ownerID]
	if !ok {
		return ErrUnknownOwner
	}
	r.scheduleFoldLocked(o, hint, score)
	return nil
}

// scheduleFoldLocked schedules (or coalesces into) the owner's fold task.
// A fold already pending at an equal or higher score absorbs the request;
// a more urgent request replaces the pending task. Requires r.mu held.
func (r *Runtime) scheduleFoldLocked(o *Owner, p types.Priority, score types.Score) {
	if o.workTask != nil {
		if o.workScore >= score {
			return
		}
		r.sch.Cancel(o.workTask)
	}

	id := o.id
	threshold := score
	o.workScore = score
	o.workTask = r.sch.ScheduleScore(func(bool) sched.Runnable {
		r.performWork(id, threshold)
		return nil
	}, p, score)
}

// performWork runs one fold-and-commit pass for the owner at the given
// threshold. The fold itself is atomic — it runs under the runtime lock and
// never yields — while effect callbacks fire after the lock is released and
// may re-enter the runtime.
func (r *Runtime) performWork(id string, threshold types.Score) {
	r.mu.Lock()
	o, ok := r.owners[id]
	if !ok {
		// Owner torn down between scheduling and running. Nothing to fold.
		r.mu.Unlock()
		return
	}
	if o.workTask != nil {
		// When performWork runs as that very task the handle is already
		// flushing and Cancel is a no-op. When called directly (FlushSync
		// drain) this reclaims a fold scheduled since the last iteration,
		// which would otherwise fire later as an empty flush.
		r.sch.Cancel(o.workTask)
		o.workTask = nil
	}
	o.workScore = types.ScoreNone
	if o.current == nil {
		r.mu.Unlock()
		return
	}

	// The work-in-progress generation must be independent from current
	// before folding (copy-on-write; nodes stay shared).
	if o.wip == nil || o.wip == o.current {
		o.wip = updates.Clone(o.current)
	}

	res := updates.Process(o.wip, threshold, o.props, r.reg)
	o.memoized = res.State

	// The folded generation becomes current.
	o.current = o.wip
	o.wip = nil

	cbs := updates.TakeEffects(o.current, r.reg)

	if res.Remaining != types.ScoreNone {
		r.scheduleFoldLocked(o, sched.CurrentPriority(), res.Remaining)
	}
	r.mu.Unlock()

	if err := updates.FireEffects(cbs, r.reg); err != nil {
		r.log.Warn("effect callback failed", "owner", id, "err", err)
	}
	r.log.Debug("fold committed",
		"owner", id,
		"threshold", threshold,
		"remaining", res.Remaining,
		"force", res.ForceReapply,
		"recovery", res.EnteredRecovery,
	)
}

// FlushSync is the synchronous escape hatch: it runs fn at Immediate
// priority, then drains every pending update for the owner to completion
// before returning, bypassing time-slicing. Other owners' in-flight work is
// untouched — only this owner's scheduled fold is cancelled and replayed.
func (r *Runtime) FlushSync(ownerID string, fn func()) error {
	r.mu.Lock()
	o, ok := r.owners[ownerID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownOwner
	}
	if o.workTask != nil {
		r.sch.Cancel(o.workTask)
		o.workTask = nil
		o.workScore = types.ScoreNone
	}
	r.mu.Unlock()

	r.sch.RunWithPriority(types.PriorityImmediate, func() {
		if fn != nil {
			fn()
		}
	})

	// Drain at the lowest threshold until quiescent. Effect callbacks may
	// enqueue fresh updates, so one pass is not necessarily enough.
	for {
		r.mu.Lock()
		o, ok := r.owners[ownerID]
		if !ok {
			// Torn down mid-flush; nothing left to drain.
			r.mu.Unlock()
			return nil
		}
		pending := o.current != nil && o.current.PendingScore() != types.ScoreNone
		if !pending && o.wip != nil && o.wip != o.current {
			pending = o.wip.PendingScore() != types.ScoreNone
		}
		if !pending {
			if o.workTask != nil {
				r.sch.Cancel(o.workTask)
				o.workTask = nil
				o.workScore = types.ScoreNone
			}
			r.mu.Unlock()
			return nil
		}
		r.mu.Unlock()

		r.performWork(ownerID, types.ScoreNever)
	}
}
