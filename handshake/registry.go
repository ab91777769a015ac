package handshake

import (
	"log"
	"sync"
	"time"
)

// Entry is one page load's checkout.
type Entry struct {
	ID         string
	Controller *Controller
	Outbox     *Outbox
	CreatedAt  time.Time
	lastSeen   time.Time
}

// Registry keeps the live checkouts of this process and evicts the ones
// whose page has gone quiet.
type Registry struct {
	mu        sync.Mutex
	entries   map[string]*Entry
	ttl       time.Duration
	now       func() time.Time
	shutdown  chan struct{}
	isRunning bool
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		entries:  make(map[string]*Entry),
		ttl:      ttl,
		now:      time.Now,
		shutdown: make(chan struct{}),
	}
}

func (r *Registry) Add(e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.lastSeen = now
	r.entries[e.ID] = e
}

// Get returns the entry and marks it as recently used.
func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if ok {
		e.lastSeen = r.now()
	}
	return e, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if ok {
		e.Controller.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep closes and drops entries idle for longer than the TTL.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	cutoff := r.now().Add(-r.ttl)
	var expired []*Entry
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, e := range expired {
		e.Controller.Close()
	}
	return len(expired)
}

// Start runs Sweep every interval until Stop.
func (r *Registry) Start(interval time.Duration) {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return
	}
	r.isRunning = true
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.shutdown:
				return
			case <-ticker.C:
				if n := r.Sweep(); n > 0 {
					log.Printf("Evicted %d idle checkout sessions", n)
				}
			}
		}
	}()
}

func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.isRunning {
		return
	}
	close(r.shutdown)
	r.isRunning = false
}
