// Package metrics provides in-process counters for review activity.
package metrics

import (
	"sort"
	"sync"
)

// Counter names incremented by the store and the notification dispatcher.
const (
	ChangesCreated   = "changes_created"
	ChangesAccepted  = "changes_accepted"
	ChangesRejected  = "changes_rejected"
	ChangesResolved  = "changes_resolved"
	ChangesFailed    = "changes_failed"
	ChangesEvicted   = "changes_evicted"
	ChangesConflict  = "changes_conflict"
	BackupsCreated   = "backups_created"
	BackupsRestored  = "backups_restored"
	EventsPublished  = "events_published"
	EventsDropped    = "events_dropped"
	DeliveriesFailed = "deliveries_failed"
)

// Registry holds named counters. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]int64
}

// NewRegistry creates an empty metrics registry.
func NewRegistry() *Registry {
	return &Registry{counters: make(map[string]int64)}
}

// Inc increments a named counter by one.
func (r *Registry) Inc(name string) {
	r.Add(name, 1)
}

// Add increments a named counter by delta.
func (r *Registry) Add(name string, delta int64) {
	r.mu.Lock()
	r.counters[name] += delta
	r.mu.Unlock()
}

// Get returns the current value of a counter.
func (r *Registry) Get(name string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counters[name]
}

// Snapshot returns a copy of all non-zero counters.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int64, len(r.counters))
	for k, v := range r.counters {
		out[k] = v
	}
	return out
}

// Names returns the counter names seen so far, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.counters))
	for k := range r.counters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

var (
	defaultMu       sync.RWMutex
	defaultRegistry = NewRegistry()
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultRegistry
}

// SetDefault replaces the process-wide registry. Intended for tests.
func SetDefault(r *Registry) {
	defaultMu.Lock()
	defaultRegistry = r
	defaultMu.Unlock()
}
