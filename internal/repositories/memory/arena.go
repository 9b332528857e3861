// Package memory implements the repositories on process-local collections for running without a backend.
//
// The collections are seeded with demo data and reset on restart.
package memory

import (
	"net/http"
	"sync"

	"github.com/myrjola/cdms/internal/backend"
)

// arena is an insertion-ordered collection keyed by id that is safe for concurrent use.
type arena[T any] struct {
	mu    sync.RWMutex
	order []string
	items map[string]T
	// notFound is the message of the error returned for unknown ids.
	notFound string
}

func newArena[T any](notFound string) *arena[T] {
	return &arena[T]{items: make(map[string]T), notFound: notFound}
}

func (a *arena[T]) put(id string, item T) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.items[id]; !ok {
		a.order = append(a.order, id)
	}
	a.items[id] = item
}

func (a *arena[T]) get(id string) (T, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	item, ok := a.items[id]
	if !ok {
		var zero T
		return zero, backend.NewError(http.StatusNotFound, a.notFound)
	}
	return item, nil
}

func (a *arena[T]) remove(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.items[id]; !ok {
		return backend.NewError(http.StatusNotFound, a.notFound)
	}
	delete(a.items, id)
	for i, candidate := range a.order {
		if candidate == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
	return nil
}

// filter returns the items matching keep in insertion order. A positive limit caps the result.
func (a *arena[T]) filter(keep func(T) bool, limit int) []T {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]T, 0, len(a.order))
	for _, id := range a.order {
		item := a.items[id]
		if !keep(item) {
			continue
		}
		out = append(out, item)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
