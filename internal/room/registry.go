package room

import (
	"sync"

	"github.com/crewdesk/meetlive/internal/domain"
)

// Registry maps meeting ids to their live room actors. It is the single
// source of truth for "who is in the room now"; nothing here persists
// across a restart, every client simply reconnects and re-admits.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.MeetingID]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[domain.MeetingID]*Room)}
}

// GetOrCreate returns the room actor for meetingID, spinning one up on
// first use.
func (reg *Registry) GetOrCreate(meetingID domain.MeetingID) *Room {
	reg.mu.RLock()
	r, ok := reg.rooms[meetingID]
	reg.mu.RUnlock()
	if ok && !r.closed() {
		return r
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok = reg.rooms[meetingID]; ok && !r.closed() {
		return r
	}
	r = newRoom(meetingID)
	reg.rooms[meetingID] = r
	return r
}

// Get returns the room for meetingID if one is live.
func (reg *Registry) Get(meetingID domain.MeetingID) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.rooms[meetingID]
	if !ok || r.closed() {
		return nil, false
	}
	return r, true
}

// Drop removes the mapping for a closed room. A newer actor under the
// same id is left alone.
func (reg *Registry) Drop(meetingID domain.MeetingID, r *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if cur, ok := reg.rooms[meetingID]; ok && cur == r {
		delete(reg.rooms, meetingID)
	}
}
