// Package metrics provides a lightweight Prometheus-compatible metrics
// registry for sliceq. It deliberately avoids the prometheus/client_golang
// package so embedding the core pulls in no additional dependencies.
//
// Label-keyed counters use the label value directly as the key (priority name
// or update kind), so a single sync.Map holds all combinations without map
// nesting. Calling Registry.Handler() returns an http.Handler that renders
// every counter in the Prometheus exposition format (text/plain;
// version=0.0.4); Render writes the same text to any io.Writer.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// ─── Counter ──────────────────────────────────────────────────────────────────

// Counter is a plain monotone counter.
type Counter struct {
	v atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.v.Add(1) }

// Add increments the counter by n.
func (c *Counter) Add(n int64) { c.v.Add(n) }

// Load returns the current value.
func (c *Counter) Load() int64 { return c.v.Load() }

// ─── labelCounter ─────────────────────────────────────────────────────────────

// labelCounter is a lock-free, label-keyed counter map backed by sync.Map and
// atomic.Int64 values.
type labelCounter struct {
	vals sync.Map // key string → *atomic.Int64
}

func (lc *labelCounter) get(key string) *atomic.Int64 {
	v, _ := lc.vals.LoadOrStore(key, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// Inc increments the counter for key by 1.
func (lc *labelCounter) Inc(key string) { lc.get(key).Add(1) }

// Load returns the current value for key (0 if never incremented).
func (lc *labelCounter) Load(key string) int64 {
	v, ok := lc.vals.Load(key)
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// Each calls fn for every key/value pair in sorted key order.
func (lc *labelCounter) Each(fn func(key string, val int64)) {
	var keys []string
	lc.vals.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	for _, k := range keys {
		fn(k, lc.Load(k))
	}
}

// ─── Registry ─────────────────────────────────────────────────────────────────

// Registry holds all sliceq runtime metrics. The zero value is ready to use.
type Registry struct {
	// Scheduler counters. key = priority name.
	TasksScheduled labelCounter
	TasksCompleted labelCounter
	TasksCancelled labelCounter
	Continuations  labelCounter

	// Flush counters.
	Flushes     Counter
	ExpiredRuns Counter // tasks run in expired-drain mode
	Yields      Counter // time-sliced flushes that paused with work left

	// Update queue counters. key = update kind.
	UpdatesEnqueued labelCounter
	UpdatesApplied  labelCounter
	UpdatesSkipped  Counter
	FoldPasses      Counter
	Commits         Counter
	EffectsFired    Counter
	EffectErrors    Counter
}

// TaskScheduled records a schedule at the given priority label.
func (r *Registry) TaskScheduled(priority string) { r.TasksScheduled.Inc(priority) }

// TaskCompleted records a task run to completion.
func (r *Registry) TaskCompleted(priority string) { r.TasksCompleted.Inc(priority) }

// TaskCancelled records an in-place cancellation.
func (r *Registry) TaskCancelled(priority string) { r.TasksCancelled.Inc(priority) }

// Continuation records a task that yielded a continuation.
func (r *Registry) Continuation(priority string) { r.Continuations.Inc(priority) }

// UpdateEnqueued records an enqueued update of the given kind.
func (r *Registry) UpdateEnqueued(kind string) { r.UpdatesEnqueued.Inc(kind) }

// UpdateApplied records an update admitted by a fold.
func (r *Registry) UpdateApplied(kind string) { r.UpdatesApplied.Inc(kind) }

// ─── Prometheus text serialisation ────────────────────────────────────────────

// Render writes all metrics to w in the Prometheus plain-text exposition
// format.
func (r *Registry) Render(w io.Writer) {
	var b strings.Builder

	labelled := func(name, help, label string, lc *labelCounter) {
		writeFamily(&b, name, help, func(fn func(labels, val string)) {
			lc.Each(func(key string, val int64) {
				fn(fmt.Sprintf(`%s=%q`, label, key), fmt.Sprintf("%d", val))
			})
		})
	}
	scalar := func(name, help string, c *Counter) {
		if v := c.Load(); v != 0 {
			fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, v)
		}
	}

	labelled("sliceq_tasks_scheduled_total", "Total tasks scheduled", "priority", &r.TasksScheduled)
	labelled("sliceq_tasks_completed_total", "Total tasks run to completion", "priority", &r.TasksCompleted)
	labelled("sliceq_tasks_cancelled_total", "Total tasks cancelled before running", "priority", &r.TasksCancelled)
	labelled("sliceq_task_continuations_total", "Total continuations returned by tasks", "priority", &r.Continuations)

	scalar("sliceq_flushes_total", "Total host-driven flushes", &r.Flushes)
	scalar("sliceq_expired_runs_total", "Total tasks drained past their deadline", &r.ExpiredRuns)
	scalar("sliceq_yields_total", "Total time-sliced flushes that yielded with work pending", &r.Yields)

	labelled("sliceq_updates_enqueued_total", "Total updates enqueued", "kind", &r.UpdatesEnqueued)
	labelled("sliceq_updates_applied_total", "Total updates admitted by a fold", "kind", &r.UpdatesApplied)
	scalar("sliceq_updates_skipped_total", "Total updates deferred below a fold threshold", &r.UpdatesSkipped)
	scalar("sliceq_fold_passes_total", "Total fold passes over update queues", &r.FoldPasses)
	scalar("sliceq_commits_total", "Total commits", &r.Commits)
	scalar("sliceq_effects_fired_total", "Total completion callbacks invoked", &r.EffectsFired)
	scalar("sliceq_effect_errors_total", "Total completion callbacks that returned an error", &r.EffectErrors)

	io.WriteString(w, b.String())
}

// Handler returns an http.Handler that renders all metrics.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		r.Render(w)
	})
}

// writeFamily writes a single Prometheus metric family to b.
// fill is called with a writer function that appends individual label+value
// lines; the family header is skipped entirely when no lines are produced.
func writeFamily(
	b *strings.Builder,
	name, help string,
	fill func(fn func(labels, val string)),
) {
	var lines []string
	fill(func(labels, val string) {
		lines = append(lines, fmt.Sprintf("%s{%s} %s\n", name, labels, val))
	})
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s counter\n", name)
	for _, l := range lines {
		b.WriteString(l)
	}
}
