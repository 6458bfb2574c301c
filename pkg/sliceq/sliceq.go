// Package sliceq is the public embedding surface of the sliceq core: a
// cooperative, priority-preemptible task scheduler paired with a persistent,
// priority-filtered update queue.
//
// Producers tag mutations with a priority, enqueue them without blocking, and
// the runtime folds them into materialized state when the host adapter grants
// time — partial, interruptible, urgency-reordered processing that converges
// to the same result as a single uninterrupted pass.
//
// Typical use:
//
//	rt, err := sliceq.New()
//	if err != nil { ... }
//	defer rt.Close()
//
//	owner := rt.NewOwner(map[string]any{"count": 0}, nil)
//	u := rt.BuildUpdate(sliceq.Normal, sliceq.Set,
//		sliceq.Func(func(prev, _ any) any {
//			s := prev.(map[string]any)
//			return map[string]any{"count": s["count"].(int) + 1}
//		}), nil)
//	rt.EnqueueUpdate(owner, u)
package sliceq

import (
	"github.com/rkathuria/sliceq/internal/config"
	"github.com/rkathuria/sliceq/internal/host"
	"github.com/rkathuria/sliceq/internal/metrics"
	"github.com/rkathuria/sliceq/internal/runtime"
	"github.com/rkathuria/sliceq/internal/sched"
	"github.com/rkathuria/sliceq/internal/types"
	"github.com/rkathuria/sliceq/internal/updates"
)

// Runtime coordinates owners, queues and the cooperative scheduler.
type Runtime = runtime.Runtime

// New builds a Runtime; see the runtime options below.
var New = runtime.New

// Options.
var (
	WithHost    = runtime.WithHost
	WithProfile = runtime.WithProfile
	WithMetrics = runtime.WithMetrics
	WithLogger  = runtime.WithLogger
)

// ErrUnknownOwner is returned when an owner ID does not name a live owner.
var ErrUnknownOwner = runtime.ErrUnknownOwner

// Priority levels.
type Priority = types.Priority

const (
	Immediate    = types.PriorityImmediate
	UserBlocking = types.PriorityUserBlocking
	Normal       = types.PriorityNormal
	Low          = types.PriorityLow
	Idle         = types.PriorityIdle
)

// Score is the comparable urgency scalar; higher = more urgent.
type Score = types.Score

// Update kinds.
type UpdateKind = types.UpdateKind

const (
	Set     = types.UpdateSet
	Replace = types.UpdateReplace
	Force   = types.UpdateForce
	Capture = types.UpdateCapture
)

// Update is a single pending mutation.
type Update = updates.Update

// Payload is the tagged update payload: a literal partial state (Value) or a
// pure function of (previous state, props) (Func).
type Payload = updates.Payload

var (
	Value = updates.Value
	Func  = updates.Func
)

// Scheduler is the cooperative scheduler, for callers that run plain tasks
// alongside update folds.
type Scheduler = sched.Scheduler

// Runnable is a unit of cooperative work; see Scheduler.Schedule.
type Runnable = sched.Runnable

// Task is a scheduled unit and its cancellation handle.
type Task = sched.Task

// CurrentPriority returns the calling goroutine's ambient priority.
var CurrentPriority = sched.CurrentPriority

// HostAdapter is the platform timing boundary.
type HostAdapter = host.Adapter

// ManualHost is the deterministic virtual-clock adapter for tests.
type ManualHost = host.Manual

// NewManualHost returns a ManualHost with its clock at startMs.
var NewManualHost = host.NewManual

// Profile is the tuning profile; DefaultProfile is the canonical constant
// table and LoadProfile overlays a YAML file on top of it.
type Profile = config.Profile

var (
	DefaultProfile = config.Default
	LoadProfile    = config.Load
)

// Metrics is the runtime counter registry.
type Metrics = metrics.Registry
