package webtransport

import (
	"sync"

	"github.com/komodore/core/internal/model"
)

// subscriberBufferSize bounds how many Updates a slow /ws/update
// subscriber can lag behind before Publish starts dropping events to it,
// the same tradeoff and constant the teacher's internal/events.Bus makes
// for its SSE fan-out.
const subscriberBufferSize = 64

// UpdateBus fans out the Updates handed to Publish to every /ws/update
// subscriber, generalizing the teacher's internal/events.Bus from a
// single SSEEvent type to *model.Update. No dispatcher or executor path
// in this repository calls Publish, so subscribers receive only what a
// caller publishes explicitly.
type UpdateBus struct {
	mu   sync.Mutex
	subs map[uint64]chan *model.Update
	next uint64
}

// NewUpdateBus constructs an empty UpdateBus.
func NewUpdateBus() *UpdateBus {
	return &UpdateBus{subs: make(map[uint64]chan *model.Update)}
}

// Publish fans evt out to every current subscriber without blocking —
// a subscriber whose buffer is full simply misses it, matching the
// teacher's "best-effort live stream, not a durable log" semantics.
func (b *UpdateBus) Publish(evt *model.Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel plus a
// cancel func that must be called when the subscriber disconnects.
func (b *UpdateBus) Subscribe() (<-chan *model.Update, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan *model.Update, subscriberBufferSize)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if cur, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(cur)
		}
	}
}
