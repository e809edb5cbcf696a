package webhook

import (
	"sync"

	"github.com/komodore/core/internal/model"
)

// resourceLocks serializes back-to-back webhooks for the same resource
// (spec §4.13 "a per-resource serialized mutex ensures back-to-back
// webhooks do not interleave"), the same mutex-map shape as
// internal/actionstate.Registry but keyed on a plain lock rather than a
// busy-flag struct, since a webhook only needs mutual exclusion, not a
// queryable busy state.
type resourceLocks struct {
	mu    sync.Mutex
	byKey map[model.ResourceTarget]*sync.Mutex
}

func newResourceLocks() *resourceLocks {
	return &resourceLocks{byKey: make(map[model.ResourceTarget]*sync.Mutex)}
}

func (r *resourceLocks) lock(target model.ResourceTarget) func() {
	r.mu.Lock()
	l, ok := r.byKey[target]
	if !ok {
		l = &sync.Mutex{}
		r.byKey[target] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}
