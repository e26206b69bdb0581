package engine

import (
	"sort"
	"sync"

	"github.com/tarungka/wirecore/stream"
)

// Status is a point in time view of one actor.
type Status struct {
	ID    uint32       `json:"id"`
	State State        `json:"state"`
	Epoch stream.Epoch `json:"epoch"`
	Error string       `json:"error,omitempty"`
}

// Registry tracks the status of every actor of a process. Actors write to
// it, the admin server reads from it.
type Registry struct {
	mu       sync.RWMutex
	statuses map[uint32]Status
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{statuses: make(map[uint32]Status)}
}

func (r *Registry) update(s Status) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[s.ID] = s
}

// Get returns the status of one actor.
func (r *Registry) Get(id uint32) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.statuses[id]
	return s, ok
}

// List returns every known status ordered by actor id.
func (r *Registry) List() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.statuses))
	for _, s := range r.statuses {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
