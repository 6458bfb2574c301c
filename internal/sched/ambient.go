package sched

import (
	"sync"

	"github.com/petermattis/goid"

	"github.com/rkathuria/sliceq/internal/types"
)

// The ambient priority is the priority context new work inherits when the
// producer does not pass one explicitly. It is goroutine-local rather than a
// shared mutable global, so producers on different goroutines cannot observe
// each other's scopes.
var ambientPriorities sync.Map // goroutine id int64 → types.Priority

// CurrentPriority returns the ambient priority for the calling goroutine.
// Outside any RunWithPriority scope it defaults to PriorityNormal.
func CurrentPriority() types.Priority {
	if v, ok := ambientPriorities.Load(goid.Get()); ok {
		return v.(types.Priority)
	}
	return types.PriorityNormal
}

// setAmbient installs p for the calling goroutine and returns a restore
// function for the previous scope.
func setAmbient(p types.Priority) (restore func()) {
	gid := goid.Get()
	prev, had := ambientPriorities.Load(gid)
	ambientPriorities.Store(gid, p)
	return func() {
		if had {
			ambientPriorities.Store(gid, prev)
		} else {
			ambientPriorities.Delete(gid)
		}
	}
}
