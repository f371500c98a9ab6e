package room

import "sync"

// Hub places rooms deterministically: the same room id always resolves to
// the same actor instance for this process's lifetime. Rooms share no
// mutable state and run fully in parallel.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	deps  Deps
}

func NewHub(deps Deps) *Hub {
	return &Hub{
		rooms: make(map[string]*Room),
		deps:  deps,
	}
}

// Get returns the actor for roomID, starting it on first use.
func (h *Hub) Get(roomID string) *Room {
	h.mu.RLock()
	r := h.rooms[roomID]
	h.mu.RUnlock()
	if r != nil {
		return r
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r := h.rooms[roomID]; r != nil {
		return r
	}
	r = NewRoom(roomID, h.deps)
	h.rooms[roomID] = r
	go r.Run()
	return r
}

// Stop drains every room actor. Used during graceful shutdown.
func (h *Hub) Stop() {
	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.rooms = make(map[string]*Room)
	h.mu.Unlock()

	for _, r := range rooms {
		r.Stop()
	}
}
