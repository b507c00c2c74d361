package app

import (
	"sync"

	"github.com/sebbywestside/exercise-monitoring-vest/internal/domain"
)

// Registry is the set of connected viewers, keyed by identity. It does not
// log; connect and disconnect lines come from the transport that owns the
// connection.
type Registry struct {
	mu       sync.Mutex
	viewers  map[domain.Viewer]struct{}
	onChange func(count int)
}

// NewRegistry creates an empty registry. onChange, if set, is called with the
// new member count after every insert or removal.
func NewRegistry(onChange func(count int)) *Registry {
	return &Registry{
		viewers:  make(map[domain.Viewer]struct{}),
		onChange: onChange,
	}
}

// Register adds a viewer. Returns false if it was already present.
func (r *Registry) Register(v domain.Viewer) bool {
	r.mu.Lock()
	if _, exists := r.viewers[v]; exists {
		r.mu.Unlock()
		return false
	}
	r.viewers[v] = struct{}{}
	r.notify(len(r.viewers))
	r.mu.Unlock()
	return true
}

// Unregister removes a viewer and closes it. Removing an absent viewer is a
// no-op and returns false.
func (r *Registry) Unregister(v domain.Viewer, reason string) bool {
	r.mu.Lock()
	if _, exists := r.viewers[v]; !exists {
		r.mu.Unlock()
		return false
	}
	delete(r.viewers, v)
	r.notify(len(r.viewers))
	r.mu.Unlock()

	v.Close(reason)
	return true
}

// Snapshot returns the current members. The lock is released before the
// caller iterates, so a blocked viewer never stalls Register/Unregister.
func (r *Registry) Snapshot() []domain.Viewer {
	r.mu.Lock()
	defer r.mu.Unlock()

	viewers := make([]domain.Viewer, 0, len(r.viewers))
	for v := range r.viewers {
		viewers = append(viewers, v)
	}
	return viewers
}

// Len returns the number of registered viewers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.viewers)
}

// CloseAll removes and closes every viewer. Used on shutdown.
func (r *Registry) CloseAll(reason string) int {
	r.mu.Lock()
	viewers := make([]domain.Viewer, 0, len(r.viewers))
	for v := range r.viewers {
		viewers = append(viewers, v)
	}
	clear(r.viewers)
	r.notify(0)
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, v := range viewers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.Close(reason)
		}()
	}
	wg.Wait()

	return len(viewers)
}

// notify must be called with mu held so counts are reported in order.
func (r *Registry) notify(count int) {
	if r.onChange != nil {
		r.onChange(count)
	}
}
