package voxserv

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the live sessions of every room so pipeline output can be
// fanned out to a room's listeners.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[uuid.UUID]*wsSession
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[uuid.UUID]*wsSession),
	}
}

func (r *Registry) Add(s *wsSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[s.roomID]
	if !ok {
		room = make(map[uuid.UUID]*wsSession)
		r.rooms[s.roomID] = room
	}
	room[s.id] = s
}

func (r *Registry) Remove(s *wsSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[s.roomID]
	if !ok {
		return
	}
	delete(room, s.id)
	if len(room) == 0 {
		delete(r.rooms, s.roomID)
	}
}

// Listeners snapshots the listener sessions currently joined to roomID.
func (r *Registry) Listeners(roomID string) []*wsSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*wsSession
	for _, s := range r.rooms[roomID] {
		if s.role == roleListener {
			out = append(out, s)
		}
	}
	return out
}

// Count reports the number of sessions in roomID.
func (r *Registry) Count(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}
