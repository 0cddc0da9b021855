package lock

import (
	"context"
	"sync"
)

// Registry is an in-process Locker backed by a set of held keys.
type Registry struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{held: make(map[string]struct{})}
}

func (r *Registry) TryAcquire(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.held[key]; ok {
		return false, nil
	}
	r.held[key] = struct{}{}
	return true, nil
}

// Release drops key. Releasing a key that is not held is a no-op.
func (r *Registry) Release(_ context.Context, key string) error {
	r.mu.Lock()
	delete(r.held, key)
	r.mu.Unlock()
	return nil
}

// Held reports whether key is currently acquired.
func (r *Registry) Held(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.held[key]
	return ok
}

var _ Locker = (*Registry)(nil)
