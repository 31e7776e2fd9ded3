package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryGuard keeps marks in process memory. Expired entries are dropped
// lazily on access and by a sweep every sweepEvery marks.
type MemoryGuard struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	marks map[string]time.Time
	adds  int
}

const sweepEvery = 1024

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGuard{ttl: ttl, now: time.Now, marks: make(map[string]time.Time)}
}

func (g *MemoryGuard) MarkIfAbsent(_ context.Context, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if exp, ok := g.marks[id]; ok && now.Before(exp) {
		return false, nil
	}
	g.marks[id] = now.Add(g.ttl)
	g.adds++
	if g.adds%sweepEvery == 0 {
		for k, exp := range g.marks {
			if !now.Before(exp) {
				delete(g.marks, k)
			}
		}
	}
	return true, nil
}

func (g *MemoryGuard) IsProcessed(_ context.Context, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	exp, ok := g.marks[id]
	if !ok {
		return false, nil
	}
	if !g.now().Before(exp) {
		delete(g.marks, id)
		return false, nil
	}
	return true, nil
}

func (g *MemoryGuard) Forget(_ context.Context, id string) error {
	g.mu.Lock()
	delete(g.marks, id)
	g.mu.Unlock()
	return nil
}

func (g *MemoryGuard) Ping(context.Context) error { return nil }
