package chat

import "sync"

// Registry maps chat IDs to the set of live connections subscribed to them.
// It is the only mutable state shared between sessions; every operation
// holds the mutex for the duration of a map update and nothing else, so no
// lock is ever held across I/O. In a multi-node deployment each node has
// its own registry holding only its local connections.
type Registry struct {
	mu    sync.RWMutex
	rooms map[int64]map[*Conn]struct{}
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[int64]map[*Conn]struct{})}
}

// Join subscribes conn to the chat's room. Joining twice with the same
// handle has the effect of one join.
func (r *Registry) Join(chatID int64, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[chatID]
	if !ok {
		room = make(map[*Conn]struct{})
		r.rooms[chatID] = room
	}
	room[conn] = struct{}{}
}

// Leave removes conn from the chat's room. Leaving a room the handle never
// joined, or was already removed from, is a no-op so duplicate teardown
// paths are harmless. Empty rooms are dropped from the map.
func (r *Registry) Leave(chatID int64, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[chatID]
	if !ok {
		return
	}
	delete(room, conn)
	if len(room) == 0 {
		delete(r.rooms, chatID)
	}
}

// Members returns a snapshot of the chat's local connections.
func (r *Registry) Members(chatID int64) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[chatID]
	members := make([]*Conn, 0, len(room))
	for conn := range room {
		members = append(members, conn)
	}
	return members
}
