// Package types contains the core domain types shared across all sliceq
// internal packages. It deliberately has zero imports of other sliceq packages
// so that the scheduler, the update queue, and the runtime can all import from
// it without creating import cycles.
package types

import "math"

// Priority is the nominal urgency class a producer attaches to work.
// Lower numeric value = more urgent.
type Priority uint8

const (
	// PriorityImmediate work runs synchronously: it bypasses deadline
	// windowing entirely and is drained before control returns to the caller
	// that raised it.
	PriorityImmediate Priority = iota
	// PriorityUserBlocking is for work the user is actively waiting on
	// (input handling, hover feedback). Short timeout, short batch window.
	PriorityUserBlocking
	// PriorityNormal is the default for ordinary state recomputation.
	PriorityNormal
	// PriorityLow is for work that can wait behind everything interactive.
	PriorityLow
	// PriorityIdle work only runs when nothing else is pending. It never
	// expires and therefore can be starved indefinitely.
	PriorityIdle
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityImmediate:
		return "immediate"
	case PriorityUserBlocking:
		return "user_blocking"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Valid reports whether p is one of the defined priority levels.
func (p Priority) Valid() bool { return p <= PriorityIdle }

// Score is a comparable urgency scalar: higher = more urgent. A score encodes
// both priority and time-based expiry through an order-reversing transform of
// the deadline (see internal/urgency), so a single "score >= threshold"
// comparison answers "is this at least as urgent as the work being folded?".
type Score int32

const (
	// ScoreNone marks the absence of pending work. It is never assigned to a
	// live update or task.
	ScoreNone Score = 0

	// ScoreNever is the minimum live score. Work tagged ScoreNever has no
	// deadline and only runs when explicitly admitted (threshold == ScoreNever).
	ScoreNever Score = 1

	// ScoreSync is the maximum score. Sync work is always admitted and counts
	// as already expired.
	ScoreSync Score = math.MaxInt32
)

// Max returns the larger of a and b.
func (a Score) Max(b Score) Score {
	if a > b {
		return a
	}
	return b
}

// TaskState is the lifecycle state of a scheduled task.
//
//	Pending → Flushing → {Done | Continued}
//	Pending → Cancelled
//
// Once a task starts flushing it always runs to completion; only its returned
// continuation (a fresh Pending task) remains cancellable.
type TaskState uint8

const (
	TaskPending TaskState = iota
	TaskFlushing
	TaskDone
	TaskCancelled
	TaskContinued
)

// String returns a human-readable representation of the task state.
func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskFlushing:
		return "flushing"
	case TaskDone:
		return "done"
	case TaskCancelled:
		return "cancelled"
	case TaskContinued:
		return "continued"
	default:
		return "unknown"
	}
}

// UpdateKind selects how an update's payload folds into the accumulator.
type UpdateKind uint8

const (
	// UpdateSet shallow-merges the computed partial state over the accumulator.
	UpdateSet UpdateKind = iota
	// UpdateReplace replaces the accumulator with the computed state entirely.
	UpdateReplace
	// UpdateForce changes no state but raises the force-reapply flag on the
	// fold result.
	UpdateForce
	// UpdateCapture behaves like UpdateSet and additionally raises the
	// entered-recovery flag. Capture updates live on the queue's separate
	// captured list until commit.
	UpdateCapture
)

// String returns a human-readable representation of the update kind.
func (k UpdateKind) String() string {
	switch k {
	case UpdateSet:
		return "set"
	case UpdateReplace:
		return "replace"
	case UpdateForce:
		return "force"
	case UpdateCapture:
		return "capture"
	default:
		return "unknown"
	}
}
