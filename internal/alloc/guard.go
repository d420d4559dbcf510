package alloc

import "sync"

// Guard serializes check-then-commit sections per entity key, so two
// concurrent holds on the same resource or key cannot race past each other's
// availability check. Keys for different entities proceed independently.
type Guard struct {
	mu   sync.Mutex
	held map[string]*guardEntry
}

type guardEntry struct {
	mu   sync.Mutex
	refs int
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{held: make(map[string]*guardEntry)}
}

// Lock acquires the mutex for key and returns the matching unlock function.
func (g *Guard) Lock(key string) func() {
	g.mu.Lock()
	e, ok := g.held[key]
	if !ok {
		e = &guardEntry{}
		g.held[key] = e
	}
	e.refs++
	g.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		g.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(g.held, key)
		}
		g.mu.Unlock()
	}
}
