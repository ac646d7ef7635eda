// Package history keeps a bounded in-memory trail of delivered review
// events. Nothing is persisted; the trail exists for status output and
// the embedding API.
package history

import (
	"sync"

	"github.com/patchgate-project/patchgate/pkg/model"
)

// DefaultCapacity bounds the recorder when no size is given.
const DefaultCapacity = 256

// Recorder is a fixed-capacity ring of events. It implements
// notify.Sink, so it is fed by the dispatcher like any other sink.
type Recorder struct {
	mu    sync.Mutex
	ring  []model.Event
	next  int
	count int
}

// NewRecorder creates a recorder holding at most capacity events; zero
// or negative capacity falls back to DefaultCapacity.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{ring: make([]model.Event, capacity)}
}

// Deliver records one event, displacing the oldest once full.
func (r *Recorder) Deliver(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ring[r.next] = ev
	r.next = (r.next + 1) % len(r.ring)
	if r.count < len(r.ring) {
		r.count++
	}
}

// List returns the recorded events oldest first.
func (r *Recorder) List() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Event, 0, r.count)
	start := r.next - r.count
	if start < 0 {
		start += len(r.ring)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.ring[(start+i)%len(r.ring)])
	}
	return out
}

// Len reports how many events are currently held.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
