package updates

import "github.com/rkathuria/sliceq/internal/types"

// Queue is one generation of an owner's pending-update list. An owner holds
// two parallel generations — current (last committed) and work-in-progress
// (being folded) — whose normal lists structurally share the same update
// nodes: every update is linked in exactly once and reachable from both
// generations' tails.
//
// The captured list holds error-recovery updates raised during the current
// generation's processing; it is generation-local and never shared. The
// effect lists collect applied updates whose completion callback must fire
// after commit.
type Queue struct {
	// BaseState is the state the normal list folds on top of. After a fold
	// with skipped work it rebases to the accumulator snapshotted at the
	// first skip.
	BaseState any

	firstUpdate *Update
	lastUpdate  *Update

	firstCaptured *Update
	lastCaptured  *Update

	firstEffect *Update
	lastEffect  *Update

	firstCapturedEffect *Update
	lastCapturedEffect  *Update
}

// NewQueue creates a queue folding on top of base. Queues are created lazily,
// on the first mutation request for an owner.
func NewQueue(base any) *Queue {
	return &Queue{BaseState: base}
}

// Clone returns a work-in-progress copy of q: a shallow header copy that
// keeps BaseState and the normal list pointers (the nodes themselves are
// shared, never duplicated) and drops the captured and effect lists, which
// are generation-local.
func Clone(q *Queue) *Queue {
	return &Queue{
		BaseState:   q.BaseState,
		firstUpdate: q.firstUpdate,
		lastUpdate:  q.lastUpdate,
	}
}

// First returns the head of the normal list. Exposed for traversal by
// diagnostics and tests; mutation stays inside this package.
func (q *Queue) First() *Update { return q.firstUpdate }

// Last returns the tail of the normal list.
func (q *Queue) Last() *Update { return q.lastUpdate }

// FirstCaptured returns the head of the captured list.
func (q *Queue) FirstCaptured() *Update { return q.firstCaptured }

// PendingScore returns the maximum score among pending normal and captured
// updates, or ScoreNone when the queue is empty.
func (q *Queue) PendingScore() types.Score {
	max := types.ScoreNone
	for u := q.firstUpdate; u != nil; u = u.next {
		max = max.Max(u.Score)
	}
	for u := q.firstCaptured; u != nil; u = u.next {
		max = max.Max(u.Score)
	}
	return max
}

// appendUpdate links u onto q's normal list tail.
func (q *Queue) appendUpdate(u *Update) {
	if q.lastUpdate == nil {
		q.firstUpdate = u
		q.lastUpdate = u
		return
	}
	q.lastUpdate.next = u
	q.lastUpdate = u
}

// appendCaptured links u onto q's captured list tail.
func (q *Queue) appendCaptured(u *Update) {
	if q.lastCaptured == nil {
		q.firstCaptured = u
		q.lastCaptured = u
		return
	}
	q.lastCaptured.next = u
	q.lastCaptured = u
}

// Enqueue appends u physically once, to whichever generations lack it, while
// keeping both generations' tail pointers correct even when only one of them
// physically holds the new tail node.
//
// current and wip may alias each other and either may be nil (an owner with
// only one live generation).
func Enqueue(current, wip *Queue, u *Update) {
	if current == nil {
		current, wip = wip, nil
	}
	if current == nil {
		panic("updates: Enqueue with no queue")
	}

	if wip == nil || wip == current {
		// Single generation, or both share one queue object.
		current.appendUpdate(u)
		return
	}

	if current.lastUpdate == nil || wip.lastUpdate == nil {
		// At least one list is empty: the lists cannot share a tail yet, so
		// the update is linked into both (still one node, two head slots).
		current.appendUpdate(u)
		wip.appendUpdate(u)
		return
	}

	// Both lists are non-empty. They share the same nodes structurally, so a
	// single physical append extends both; only the tail pointer of the
	// second generation needs fixing up.
	current.appendUpdate(u)
	wip.lastUpdate = u
}

// EnqueueCaptured appends an error-recovery update to the work-in-progress
// generation's captured list. If wip currently aliases the current
// generation's queue it is cloned first (copy-on-write), so the captured list
// can never leak into the committed generation. The caller must adopt the
// returned queue as its work-in-progress generation.
func EnqueueCaptured(current, wip *Queue, u *Update) *Queue {
	if wip == nil || wip == current {
		wip = Clone(current)
	}
	wip.appendCaptured(u)
	return wip
}

// appendEffect records an applied update whose callback must fire at commit,
// preserving encounter order. captured selects the captured effect list.
func (q *Queue) appendEffect(u *Update, captured bool) {
	u.nextEffect = nil
	if captured {
		if q.lastCapturedEffect == nil {
			q.firstCapturedEffect = u
			q.lastCapturedEffect = u
			return
		}
		q.lastCapturedEffect.nextEffect = u
		q.lastCapturedEffect = u
		return
	}
	if q.lastEffect == nil {
		q.firstEffect = u
		q.lastEffect = u
		return
	}
	q.lastEffect.nextEffect = u
	q.lastEffect = u
}
