// Package updates implements the per-owner persistent mutation queue: a
// structurally shared, double-buffered linked list of updates that is folded
// into a materialized state under an urgency threshold, preserving skipped
// lower-urgency work for later passes.
//
// The key correctness property is order-independent convergence: for any
// fixed multiset of updates ultimately applied, the final state equals the
// result of a single fold over those updates in original insertion order,
// regardless of how many intermediate threshold passes were required. That is
// what makes priority-preemptible, interruptible folding safe.
package updates

import (
	"fmt"

	"github.com/rkathuria/sliceq/internal/types"
)

// Payload is the tagged variant carried by an update: either a literal
// partial state, or a pure function of (previous state, props) producing one.
// The tag is resolved once at apply time, never by runtime type inspection of
// the value itself.
type Payload struct {
	fn    func(prev, props any) any
	value any
	isFn  bool
}

// Value wraps a literal partial state.
func Value(v any) Payload { return Payload{value: v} }

// Func wraps a pure function of (previous state, props).
func Func(fn func(prev, props any) any) Payload {
	if fn == nil {
		panic("updates: Func payload must not be nil")
	}
	return Payload{fn: fn, isFn: true}
}

// compute resolves the payload against the accumulator.
func (p Payload) compute(prev, props any) any {
	if p.isFn {
		return p.fn(prev, props)
	}
	return p.value
}

// Update is a single pending mutation. next links it into a queue's normal or
// captured list; nextEffect links it into an effect list after a fold admits
// it, and is only ever used post-fold.
//
// An update is allocated once and may be reachable from both queue
// generations simultaneously (structural sharing); it must never be mutated
// after enqueueing except by Process and Commit.
type Update struct {
	Score   types.Score
	Kind    types.UpdateKind
	Payload Payload

	// Callback, when non-nil, is invoked after the update's effects commit.
	// Commit clears the reference before invoking it, so a re-entrant
	// mutation during the callback can never cause a double invocation.
	Callback func() error

	next       *Update
	nextEffect *Update
}

// New builds an update with the given urgency score, kind and payload.
func New(score types.Score, kind types.UpdateKind, p Payload) *Update {
	return &Update{Score: score, Kind: kind, Payload: p}
}

// Next returns the update following u in its list, for traversal by
// diagnostics and tests.
func (u *Update) Next() *Update { return u.next }

// apply folds u into prev, reporting force/recovery flags through the fold.
// An unknown kind is a programmer error and panics; the caller has already
// unlinked u, so the queue stays valid for subsequent processing.
func (u *Update) apply(prev, props any, force, recovery *bool) any {
	switch u.Kind {
	case types.UpdateReplace:
		return u.Payload.compute(prev, props)
	case types.UpdateSet:
		return mergeInto(prev, u.Payload.compute(prev, props))
	case types.UpdateCapture:
		*recovery = true
		return mergeInto(prev, u.Payload.compute(prev, props))
	case types.UpdateForce:
		*force = true
		return prev
	default:
		panic(fmt.Sprintf("updates: unknown update kind %d", u.Kind))
	}
}

// mergeInto shallow-merges partial over prev. A nil partial is a no-op. When
// both are map[string]any the keys merge (partial wins); any other partial
// replaces prev wholesale.
func mergeInto(prev, partial any) any {
	if partial == nil {
		return prev
	}
	pm, okPrev := prev.(map[string]any)
	qm, okPart := partial.(map[string]any)
	if !okPrev || !okPart {
		return partial
	}
	merged := make(map[string]any, len(pm)+len(qm))
	for k, v := range pm {
		merged[k] = v
	}
	for k, v := range qm {
		merged[k] = v
	}
	return merged
}
