// Package runtime ties the sliceq core together: it owns the registry of
// update-queue owners, schedules fold work on the cooperative scheduler, and
// exposes the contract consumed by the presentation layer — EnqueueUpdate,
// RequestWork, and FlushSync.
//
// Everything here is fire-and-forget from the producer's point of view:
// enqueueing returns immediately and materialization happens asynchronously
// when the host adapter grants the scheduler time.
package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rkathuria/sliceq/internal/config"
	"github.com/rkathuria/sliceq/internal/host"
	"github.com/rkathuria/sliceq/internal/metrics"
	"github.com/rkathuria/sliceq/internal/sched"
	"github.com/rkathuria/sliceq/internal/types"
	"github.com/rkathuria/sliceq/internal/updates"
	"github.com/rkathuria/sliceq/internal/urgency"
)

// ErrUnknownOwner is returned when an owner ID does not name a live owner.
var ErrUnknownOwner = errors.New("runtime: unknown owner")

// Runtime is the top-level coordinator. All methods are safe for concurrent
// use; queue structures are only ever touched under the runtime lock, so fold
// and commit surgery stays logically single-threaded. Effect callbacks run
// outside the lock and may re-enter the runtime freely.
type Runtime struct {
	prof config.Profile
	hst  host.Adapter
	calc *urgency.Calculator
	sch  *sched.Scheduler
	reg  *metrics.Registry
	log  *slog.Logger

	ownsHost bool

	mu     sync.Mutex
	owners map[string]*Owner
}

// Option customises a Runtime.
type Option func(*Runtime)

// WithHost installs a specific host adapter (e.g. a Manual one in tests).
// The runtime will not close an adapter it did not create.
func WithHost(h host.Adapter) Option {
	return func(r *Runtime) { r.hst = h }
}

// WithProfile overrides the default tuning profile.
func WithProfile(p config.Profile) Option {
	return func(r *Runtime) { r.prof = p }
}

// WithMetrics installs a shared metrics registry.
func WithMetrics(reg *metrics.Registry) Option {
	return func(r *Runtime) { r.reg = reg }
}

// WithLogger installs a structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) { r.log = l }
}

// New builds a Runtime. With no options it uses the default profile, the
// host adapter the profile selects, a private metrics registry, and the
// default logger.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{
		prof:   config.Default(),
		owners: make(map[string]*Owner),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.prof.Validate(); err != nil {
		return nil, fmt.Errorf("runtime: invalid profile: %w", err)
	}
	if r.hst == nil {
		r.hst = host.New(r.prof)
		r.ownsHost = true
	}
	if r.reg == nil {
		r.reg = &metrics.Registry{}
	}
	if r.log == nil {
		r.log = slog.Default()
	}

	r.calc = urgency.New(r.prof, r.hst.Now())
	r.sch = sched.New(r.hst, r.calc, r.prof, r.reg)
	return r, nil
}

// Scheduler exposes the underlying cooperative scheduler for callers that
// schedule plain tasks alongside update folds.
func (r *Runtime) Scheduler() *sched.Scheduler { return r.sch }

// Metrics returns the runtime's metrics registry.
func (r *Runtime) Metrics() *metrics.Registry { return r.reg }

// Close tears down every owner and, if the runtime created its own host
// adapter, closes it.
func (r *Runtime) Close() error {
	r.mu.Lock()
	for id, o := range r.owners {
		if o.workTask != nil {
			r.sch.Cancel(o.workTask)
		}
		delete(r.owners, id)
	}
	r.mu.Unlock()

	if r.ownsHost {
		return r.hst.Close()
	}
	return nil
}

// BuildUpdate constructs an update tagged with the urgency score for the
// given priority at the current host time. A nil callback is allowed.
func (r *Runtime) BuildUpdate(p types.Priority, kind types.UpdateKind, payload updates.Payload, callback func() error) *updates.Update {
	u := updates.New(r.calc.Compute(r.hst.Now(), p), kind, payload)
	u.Callback = callback
	return u
}
