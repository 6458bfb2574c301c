package sched

import (
	"container/heap"
	"math"
	"sync"

	"github.com/rkathuria/sliceq/internal/config"
	"github.com/rkathuria/sliceq/internal/host"
	"github.com/rkathuria/sliceq/internal/ident"
	"github.com/rkathuria/sliceq/internal/metrics"
	"github.com/rkathuria/sliceq/internal/types"
	"github.com/rkathuria/sliceq/internal/urgency"
)

// Scheduler holds the set of pending tasks ordered by urgency, drains expired
// work unconditionally, and time-slices not-yet-due work against the host
// adapter's frame budget.
//
// The core is logically single-threaded: tasks run one at a time, always to
// completion, and "suspension" only ever happens between tasks. The mutex
// exists because the host adapter fires from its own goroutine and producers
// may schedule from theirs; it is never held while a task runs.
//
// All methods are safe for concurrent use.
type Scheduler struct {
	hst  host.Adapter
	calc *urgency.Calculator
	reg  *metrics.Registry

	maxSliceMs int64

	mu   sync.Mutex
	h    taskHeap
	byID map[string]*Task

	nextSeq  int64 // increasing, for ordinary inserts
	frontSeq int64 // decreasing, for continuations

	flushing bool // a flush is active; defer re-arming until it finishes
	inDrain  bool // the active flush is in expired-drain mode
	paused   bool

	hostArmed bool
	armedID   string // task the host callback was armed for; stale-head detection

	sliceDeadline int64 // forced deadline for the active time-sliced flush
}

// New creates a Scheduler on top of the given host adapter.
// reg may be nil, in which case a private registry is used.
func New(hst host.Adapter, calc *urgency.Calculator, prof config.Profile, reg *metrics.Registry) *Scheduler {
	if reg == nil {
		reg = &metrics.Registry{}
	}
	h := make(taskHeap, 0, 64)
	heap.Init(&h)
	return &Scheduler{
		hst:           hst,
		calc:          calc,
		reg:           reg,
		maxSliceMs:    prof.Slice.MaxSliceMs,
		h:             h,
		byID:          make(map[string]*Task),
		sliceDeadline: math.MaxInt64,
	}
}

// ─── Scheduling ──────────────────────────────────────────────────────────────

// Schedule inserts run at the calling goroutine's ambient priority and
// returns its cancellation handle.
func (s *Scheduler) Schedule(run Runnable) *Task {
	return s.SchedulePriority(run, CurrentPriority())
}

// SchedulePriority inserts run at an explicit priority level.
func (s *Scheduler) SchedulePriority(run Runnable, p types.Priority) *Task {
	score := s.calc.Compute(s.hst.Now(), p)
	return s.insert(run, p, score, false)
}

// ScheduleTimeout inserts run with an explicit timeout in milliseconds
// instead of a priority-table deadline. The task still carries the ambient
// priority for bookkeeping.
func (s *Scheduler) ScheduleTimeout(run Runnable, timeoutMs int64) *Task {
	score := s.calc.ComputeTimeout(s.hst.Now(), timeoutMs)
	return s.insert(run, CurrentPriority(), score, false)
}

// ScheduleScore inserts run at a pre-computed urgency score, preserving the
// deadline of work it is standing in for (e.g. re-scheduling updates skipped
// by a fold at their original remaining score).
func (s *Scheduler) ScheduleScore(run Runnable, p types.Priority, score types.Score) *Task {
	return s.insert(run, p, score, false)
}

// insert links a fresh task into the heap and re-arms the host when needed.
// Requests arriving during an active flush are appended but never re-arm
// synchronously; the flush re-arms once after it completes.
func (s *Scheduler) insert(run Runnable, p types.Priority, score types.Score, front bool) *Task {
	t := &Task{
		id:       ident.MustNewID(),
		run:      run,
		priority: p,
		score:    score,
		heapIdx:  -1,
	}

	s.mu.Lock()
	if front {
		s.frontSeq--
		t.seq = s.frontSeq
	} else {
		s.nextSeq++
		t.seq = s.nextSeq
	}
	heap.Push(&s.h, t)
	s.byID[t.id] = t

	if !s.flushing && !s.paused {
		head := s.h[0]
		if !s.hostArmed || head == t {
			// Either nothing is armed, or the armed callback points at a
			// superseded head: cancel-then-request with fresh data.
			s.armLocked(head)
		}
	}
	s.mu.Unlock()

	s.reg.TaskScheduled(p.String())
	return t
}

// Cancel removes a scheduled-but-not-started task in place. It is
// idempotent: cancelling a missing, running, or already finished handle is a
// no-op and affects no other task.
func (s *Scheduler) Cancel(t *Task) {
	if t == nil {
		return
	}
	s.mu.Lock()
	if t.State() != types.TaskPending {
		s.mu.Unlock()
		return
	}
	t.setState(types.TaskCancelled)
	if t.heapIdx >= 0 {
		s.h.remove(t.heapIdx)
	}
	delete(s.byID, t.id)
	s.mu.Unlock()

	s.reg.TaskCancelled(t.priority.String())
}

// Len returns the number of pending (not yet started) tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// ─── Priority scoping ────────────────────────────────────────────────────────

// RunWithPriority saves the calling goroutine's ambient priority, sets level,
// invokes fn, and restores the saved priority. Afterwards — unconditionally,
// even if fn panicked — it drains any Immediate-priority tasks synchronously
// before returning control.
func (s *Scheduler) RunWithPriority(level types.Priority, fn func()) {
	restore := setAmbient(level)
	defer func() {
		restore()
		s.drainImmediate()
	}()
	fn()
}

// drainImmediate synchronously detach-and-runs every pending ScoreSync task.
// Sync work is expired by definition, so the drain runs in expired mode and
// ShouldYield stays false throughout. Re-entrant calls (from inside a running
// task) are deferred to the active flush, which drains sync work in its
// expired phase anyway.
func (s *Scheduler) drainImmediate() {
	for {
		s.mu.Lock()
		if s.flushing || len(s.h) == 0 || s.h[0].score != types.ScoreSync {
			s.mu.Unlock()
			break
		}
		t := s.detachHeadLocked()
		s.flushing = true
		s.inDrain = true
		s.mu.Unlock()

		func() {
			defer func() {
				s.mu.Lock()
				s.flushing = false
				s.inDrain = false
				s.mu.Unlock()
			}()
			s.runTask(t, true)
		}()
	}
	s.rearmAfterFlush()
}

// ─── Yield protocol ──────────────────────────────────────────────────────────

// ShouldYield reports whether a cooperative long-running task should pause
// and return a continuation. It is always false in expired-drain mode:
// overdue work must not starve, so it runs to completion without yielding.
func (s *Scheduler) ShouldYield() bool {
	s.mu.Lock()
	inDrain := s.inDrain
	flushing := s.flushing
	deadline := s.sliceDeadline
	s.mu.Unlock()

	if inDrain {
		return false
	}
	if s.hst.ShouldYield() {
		return true
	}
	return flushing && s.hst.Now() >= deadline
}

// ─── Pause / resume ──────────────────────────────────────────────────────────

// Pause stops host-driven flushing. Pending tasks stay queued; Immediate
// drains via RunWithPriority still run.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	if s.hostArmed {
		s.hst.Cancel()
		s.hostArmed = false
		s.armedID = ""
	}
	s.mu.Unlock()
}

// Resume re-enables flushing and re-arms the host if work is pending.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	if !s.flushing && len(s.h) > 0 {
		s.armLocked(s.h[0])
	}
	s.mu.Unlock()
}

// ─── Flush ───────────────────────────────────────────────────────────────────

// onHostFire is the callback armed with the host adapter. It drains expired
// work unconditionally, then time-slices the remainder until the host reports
// the slice exhausted, and finally re-arms (or disarms) the host exactly once.
func (s *Scheduler) onHostFire() {
	s.mu.Lock()
	s.hostArmed = false
	s.armedID = ""
	if s.flushing || s.paused {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	s.sliceDeadline = s.hst.Now() + s.maxSliceMs
	s.mu.Unlock()

	s.reg.Flushes.Inc()

	// Re-arm even if a task panics; the heap is valid because tasks are
	// detached before they run.
	defer func() {
		s.mu.Lock()
		s.flushing = false
		s.inDrain = false
		s.sliceDeadline = math.MaxInt64
		s.mu.Unlock()
		s.rearmAfterFlush()
	}()

	// Phase 1: expired drain. While the head's deadline has passed relative
	// to a freshly sampled clock, detach-and-run it. Never yields mid-drain.
	now := s.hst.Now()
	for {
		s.mu.Lock()
		if len(s.h) == 0 || !s.calc.Expired(s.h[0].score, now) {
			s.inDrain = false
			s.mu.Unlock()
			break
		}
		t := s.detachHeadLocked()
		s.inDrain = true
		s.mu.Unlock()

		s.reg.ExpiredRuns.Inc()
		s.runTask(t, true)
		now = s.hst.Now() // re-sample between bursts
	}

	// Phase 2: time-sliced. One head per iteration until the slice is spent.
	for {
		if s.ShouldYield() {
			s.mu.Lock()
			pending := len(s.h) > 0
			s.mu.Unlock()
			if pending {
				s.reg.Yields.Inc()
			}
			return
		}
		s.mu.Lock()
		if len(s.h) == 0 {
			s.mu.Unlock()
			return
		}
		t := s.detachHeadLocked()
		s.mu.Unlock()

		s.runTask(t, false)
	}
}

// detachHeadLocked unlinks the head task and marks it Flushing, so a throwing
// runnable can never leave a half-linked node behind. Requires s.mu held and
// a non-empty heap.
func (s *Scheduler) detachHeadLocked() *Task {
	t := heap.Pop(&s.h).(*Task)
	delete(s.byID, t.id)
	t.setState(types.TaskFlushing)
	return t
}

// runTask invokes the detached task outside the lock. A returned continuation
// re-enters the heap at the same priority and score, ahead of same-score
// peers.
func (s *Scheduler) runTask(t *Task, expired bool) {
	cont := t.run(expired)
	if cont != nil {
		t.setState(types.TaskContinued)
		s.insert(cont, t.priority, t.score, true)
		s.reg.Continuation(t.priority.String())
		return
	}
	t.setState(types.TaskDone)
	s.reg.TaskCompleted(t.priority.String())
}

// rearmAfterFlush arms the host at the new head's deadline, or disarms it
// when nothing is pending.
func (s *Scheduler) rearmAfterFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushing || s.paused {
		return
	}
	if len(s.h) > 0 {
		s.armLocked(s.h[0])
		return
	}
	if s.hostArmed {
		s.hst.Cancel()
		s.hostArmed = false
		s.armedID = ""
	}
}

// armLocked points the host callback at head, cancelling any stale request
// first. Requires s.mu held.
func (s *Scheduler) armLocked(head *Task) {
	if s.hostArmed {
		if s.armedID == head.id {
			return
		}
		s.hst.Cancel()
	}
	s.hst.Request(s.onHostFire, s.calc.DeadlineMs(head.score))
	s.hostArmed = true
	s.armedID = head.id
}
