package http

import (
	"sync"
	"time"

	"banklink/internal/linking"
)

// pendingRegistry keeps popup attempts between POST /link and the page's
// long poll on /link/wait.
type pendingRegistry struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
	ttl     time.Duration
}

type pendingEntry struct {
	pending *linking.Pending
	timer   *time.Timer
	claimed bool
}

func newPendingRegistry(ttl time.Duration) *pendingRegistry {
	return &pendingRegistry{entries: make(map[string]*pendingEntry), ttl: ttl}
}

func (r *pendingRegistry) Register(id string, p *linking.Pending) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[id]; ok {
		old.timer.Stop()
		old.pending.Close()
	}
	r.entries[id] = &pendingEntry{
		pending: p,
		timer:   time.AfterFunc(r.ttl, func() { r.expire(id) }),
	}
}

// Claim hands the attempt to a single waiter.
func (r *pendingRegistry) Claim(id string) (*linking.Pending, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.claimed {
		return nil, false
	}
	e.claimed = true
	e.timer.Stop()
	return e.pending, true
}

// Release forgets an attempt whose wait has finished.
func (r *pendingRegistry) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Cancel closes the attempt, waking its waiter if there is one.
func (r *pendingRegistry) Cancel(id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	e.timer.Stop()
	e.pending.Close()
	return true
}

func (r *pendingRegistry) expire(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok || e.claimed {
		r.mu.Unlock()
		return
	}
	delete(r.entries, id)
	r.mu.Unlock()

	e.pending.Close()
}

func (r *pendingRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *pendingRegistry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*pendingEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.timer.Stop()
		e.pending.Close()
	}
}
