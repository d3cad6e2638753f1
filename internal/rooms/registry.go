package rooms

import (
	"context"
	"sync"
	"time"

	"github.com/byngosink/byngosink/internal/protocol"
	"k8s.io/klog/v2"
)

// Registry is the process-wide room table. Reads are shared; inserting and
// reaping take the write lock. Room state itself is guarded by each room's
// own mutex.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Add registers a room under its id.
func (g *Registry) Add(r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rooms[r.ID] = r
}

// Get looks a room up by id.
func (g *Registry) Get(id string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[id]
	return r, ok
}

// Rooms returns a snapshot of every registered room.
func (g *Registry) Rooms() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r)
	}
	return out
}

// List returns the LISTED projection of every room with at least one user.
func (g *Registry) List() map[string]protocol.RoomInfo {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]protocol.RoomInfo, len(g.rooms))
	for id, r := range g.rooms {
		if info, ok := r.Info(); ok {
			out[id] = info
		}
	}
	return out
}

// Prune removes rooms that have had no users and no mutation for maxIdle,
// returning how many were dropped.
func (g *Registry) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	g.mu.Lock()
	defer g.mu.Unlock()
	dropped := 0
	for id, r := range g.rooms {
		if r.UserCount() == 0 && r.Touched().Before(cutoff) {
			delete(g.rooms, id)
			dropped++
		}
	}
	return dropped
}

// Reap prunes on an interval until the context is cancelled. Reaping is a
// hygiene measure only; correctness never depends on it.
func (g *Registry) Reap(ctx context.Context, interval, maxIdle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := g.Prune(maxIdle); n > 0 {
				klog.Infof("Reaped %d idle rooms", n)
			}
		}
	}
}
