package runtime

import (
	"github.com/rkathuria/sliceq/internal/ident"
	"github.com/rkathuria/sliceq/internal/sched"
	"github.com/rkathuria/sliceq/internal/types"
	"github.com/rkathuria/sliceq/internal/updates"
)

// Owner is one independent consumer of the update queue: it owns a
// materialized state, the two queue generations, and at most one scheduled
// fold task. All fields are guarded by the runtime lock.
type Owner struct {
	id       string
	props    any
	memoized any // last materialized state

	current *updates.Queue // last committed generation
	wip     *updates.Queue // work-in-progress generation, nil between folds

	workTask  *sched.Task // scheduled fold, nil when none pending
	workScore types.Score
}

// NewOwner registers an owner with its initial state and props, returning
// its ULID. Queues are created lazily on the first mutation request.
func (r *Runtime) NewOwner(initialState, props any) string {
	o := &Owner{
		id:       ident.MustNewID(),
		props:    props,
		memoized: initialState,
	}
	r.mu.Lock()
	r.owners[o.id] = o
	r.mu.Unlock()

	r.log.Debug("owner registered", "owner", o.id)
	return o.id
}

// RemoveOwner tears an owner down: its scheduled work is cancelled and its
// queues are reset. Removing an unknown owner is a no-op.
func (r *Runtime) RemoveOwner(id string) {
	r.mu.Lock()
	o, ok := r.owners[id]
	if ok {
		if o.workTask != nil {
			r.sch.Cancel(o.workTask)
			o.workTask = nil
		}
		o.current = nil
		o.wip = nil
		delete(r.owners, id)
	}
	r.mu.Unlock()

	if ok {
		r.log.Debug("owner removed", "owner", id)
	}
}

// State returns the owner's last materialized state.
func (r *Runtime) State(id string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.owners[id]
	if !ok {
		return nil, ErrUnknownOwner
	}
	return o.memoized, nil
}

// SetProps replaces the props passed to payload functions on future folds.
func (r *Runtime) SetProps(id string, props any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.owners[id]
	if !ok {
		return ErrUnknownOwner
	}
	o.props = props
	return nil
}

// PendingScore reports the maximum urgency among the owner's pending
// updates, ScoreNone when it has none.
func (r *Runtime) PendingScore(id string) (types.Score, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.owners[id]
	if !ok {
		return types.ScoreNone, ErrUnknownOwner
	}
	if o.current == nil {
		return types.ScoreNone, nil
	}
	return o.current.PendingScore(), nil
}

// ensureQueuesLocked creates or clones queue generations so both exist:
// neither yet → one fresh queue shared by both generations; only one → the
// other becomes a header-only clone. Requires r.mu held.
func (o *Owner) ensureQueuesLocked() {
	switch {
	case o.current == nil && o.wip == nil:
		o.current = updates.NewQueue(o.memoized)
		o.wip = o.current
	case o.current == nil:
		o.current = updates.Clone(o.wip)
	case o.wip == nil:
		o.wip = o.current
	}
}
