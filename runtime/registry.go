package runtime

import (
	"chat-relay/contract"
	"sync"

	"github.com/google/uuid"
)

// roomSet holds the live subscriptions of one room behind its own lock, so
// broadcast traffic in one room never serializes with another room's.
// closed marks a set that was removed from the registry after its last
// member left; a subscriber that raced the removal retries on a fresh set.
type roomSet struct {
	mu     sync.RWMutex
	sinks  map[uuid.UUID]contract.PushSink
	closed bool
}

type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*roomSet
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*roomSet)}
}

// Subscribe attaches a sink to a room and returns the handle that removes
// it. The caller owns the sink and its reading side; the registry only ever
// pushes through it.
func (r *Registry) Subscribe(roomID string, sink contract.PushSink) uuid.UUID {
	handle := uuid.New()
	for {
		rs := r.room(roomID)
		rs.mu.Lock()
		if rs.closed {
			// Unsubscribe emptied and dropped this set between our lookup
			// and the lock; look the room up again.
			rs.mu.Unlock()
			continue
		}
		rs.sinks[handle] = sink
		rs.mu.Unlock()
		return handle
	}
}

func (r *Registry) room(roomID string) *roomSet {
	r.mu.RLock()
	rs, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return rs
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rs, ok = r.rooms[roomID]; ok {
		return rs
	}
	rs = &roomSet{sinks: make(map[uuid.UUID]contract.PushSink)}
	r.rooms[roomID] = rs
	return rs
}

// Unsubscribe detaches a handle from a room. Removing an unknown or
// already-removed handle is a no-op. A room left without members is dropped
// entirely so an idle room holds no standing resources.
func (r *Registry) Unsubscribe(roomID string, handle uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rs, ok := r.rooms[roomID]
	if !ok {
		return
	}
	rs.mu.Lock()
	delete(rs.sinks, handle)
	if len(rs.sinks) == 0 {
		rs.closed = true
		delete(r.rooms, roomID)
	}
	rs.mu.Unlock()
}

// Snapshot returns the room's current subscriber set as a copy. A broadcast
// works off this snapshot: subscriptions added afterwards miss that message
// live and recover it through catch-up, which is the intended semantics.
func (r *Registry) Snapshot(roomID string) []contract.RoomSink {
	r.mu.RLock()
	rs, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	rs.mu.RLock()
	defer rs.mu.RUnlock()
	sinks := make([]contract.RoomSink, 0, len(rs.sinks))
	for handle, sink := range rs.sinks {
		sinks = append(sinks, contract.RoomSink{Handle: handle, Sink: sink})
	}
	return sinks
}

// Rooms reports how many rooms currently hold at least one subscription.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
