// Package sched implements the cooperative, priority-preemptible scheduler at
// the heart of sliceq.
//
// Pending tasks live in an arena of nodes ordered by a Max-Heap keyed by
// (urgency score, sequence number):
//
//   - peek at the most urgent task → O(1), constant regardless of size.
//   - insert                       → O(log N).
//   - cancel by handle             → O(log N) via the stored heap index.
//
// Ties on score break by sequence number: ordinary inserts take increasing
// sequence numbers (FIFO among equals), while continuations take decreasing
// ones so unfinished work re-enters the line ahead of same-score peers and is
// guaranteed forward progress.
package sched

import (
	"container/heap"
	"sync/atomic"

	"github.com/rkathuria/sliceq/internal/types"
)

// Runnable is a unit of cooperative work. expired reports whether the task is
// being drained past its deadline (in which case yielding is pointless — the
// scheduler will not honor it). Returning a non-nil Runnable signals
// unfinished work: the scheduler wraps it in a fresh task at the same
// priority and score, ordered ahead of same-score peers.
type Runnable func(expired bool) Runnable

// Task is one scheduled unit. It doubles as the cancellation handle returned
// by Schedule. id, priority and score are immutable after insertion; state is
// atomic, so ID, Score and State are safe to call from any goroutine. The
// remaining fields are owned by the scheduler and guarded by its lock.
type Task struct {
	id       string
	run      Runnable
	priority types.Priority
	score    types.Score
	seq      int64
	state    atomic.Uint32 // types.TaskState; zero value is TaskPending

	// heapIdx is the task's current position in the heap slice, maintained by
	// taskHeap.Swap so Cancel can heap.Remove in O(log N). -1 when detached.
	heapIdx int
}

// ID returns the task's ULID.
func (t *Task) ID() string { return t.id }

// Score returns the task's urgency score.
func (t *Task) Score() types.Score { return t.score }

// State returns a snapshot of the task's lifecycle state.
func (t *Task) State() types.TaskState { return types.TaskState(t.state.Load()) }

func (t *Task) setState(st types.TaskState) { t.state.Store(uint32(st)) }

// taskHeap is a slice of *Task that satisfies heap.Interface. The most urgent
// task (highest score, then lowest seq) sits at index 0.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score > h[j].score
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}

func (h *taskHeap) Push(x any) {
	n := len(*h)
	t := x.(*Task)
	t.heapIdx = n
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil // allow GC
	t.heapIdx = -1 // mark as detached
	*h = old[:n-1]
	return t
}

// remove removes the task at position idx and re-heapifies in O(log N).
func (h *taskHeap) remove(idx int) *Task {
	return heap.Remove(h, idx).(*Task)
}
