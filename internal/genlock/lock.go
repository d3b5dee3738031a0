// Package genlock is the per-player registry of in-flight lesson generations.
package genlock

import (
	"sync"

	"github.com/yungbote/neurobridge-player/internal/domain"
)

// Lock guarantees at most one active generation per key. The zero value is
// not usable; construct with New.
type Lock struct {
	mu   sync.Mutex
	held map[domain.GenerationKey]struct{}
}

func New() *Lock {
	return &Lock{held: map[domain.GenerationKey]struct{}{}}
}

// TryAcquire marks key held and returns true, or returns false if another
// caller already holds it. Check and set happen under one critical section.
func (l *Lock) TryAcquire(key domain.GenerationKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return false
	}
	l.held[key] = struct{}{}
	return true
}

// Release is idempotent; releasing an unheld key is a no-op.
func (l *Lock) Release(key domain.GenerationKey) {
	l.mu.Lock()
	delete(l.held, key)
	l.mu.Unlock()
}

func (l *Lock) Held(key domain.GenerationKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

func (l *Lock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// Clear drops every held key. Used when the owning player unmounts.
func (l *Lock) Clear() {
	l.mu.Lock()
	l.held = map[domain.GenerationKey]struct{}{}
	l.mu.Unlock()
}
