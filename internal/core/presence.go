package core

import (
	"sync"
	"time"
)

// Membership associates a connected client with a user id and a room.
type Membership struct {
	UserID   string
	Client   *Client
	Room     string
	JoinedAt time.Time
}

// Presence tracks which client occupies which room.
// A channel holds at most one membership and a user id is tracked on at
// most one channel; the latest join wins.
type Presence struct {
	mu        sync.RWMutex
	byChannel map[string]*Membership
	byUser    map[string]string             // user id -> channel id
	rooms     map[string]map[string]*Client // room -> channel id -> client
}

// NewPresence constructs an empty registry.
func NewPresence() *Presence {
	return &Presence{
		byChannel: make(map[string]*Membership),
		byUser:    make(map[string]string),
		rooms:     make(map[string]map[string]*Client),
	}
}

// Join records that c, acting as userID, occupies room. Any membership the
// channel or the user held before is replaced and returned.
func (p *Presence) Join(userID string, c *Client, room string) []Membership {
	p.mu.Lock()
	defer p.mu.Unlock()

	var displaced []Membership
	if m, ok := p.removeLocked(c.ID); ok {
		displaced = append(displaced, m)
	}
	if channelID, ok := p.byUser[userID]; ok {
		if m, ok := p.removeLocked(channelID); ok {
			displaced = append(displaced, m)
		}
	}

	p.byChannel[c.ID] = &Membership{
		UserID:   userID,
		Client:   c,
		Room:     room,
		JoinedAt: time.Now(),
	}
	p.byUser[userID] = c.ID
	members, ok := p.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		p.rooms[room] = members
	}
	members[c.ID] = c

	return displaced
}

// Leave removes the membership of a channel and returns it.
func (p *Presence) Leave(channelID string) (Membership, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(channelID)
}

// Lookup returns the membership of a channel.
func (p *Presence) Lookup(channelID string) (Membership, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	m, ok := p.byChannel[channelID]
	if !ok {
		return Membership{}, false
	}
	return *m, true
}

// MembersOf returns a snapshot of the clients currently in room.
func (p *Presence) MembersOf(room string) []*Client {
	p.mu.RLock()
	defer p.mu.RUnlock()

	members := p.rooms[room]
	out := make([]*Client, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

// Count returns the number of channels holding a membership.
func (p *Presence) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byChannel)
}

// RoomCount returns the number of occupied rooms.
func (p *Presence) RoomCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.rooms)
}

func (p *Presence) removeLocked(channelID string) (Membership, bool) {
	m, ok := p.byChannel[channelID]
	if !ok {
		return Membership{}, false
	}
	delete(p.byChannel, channelID)
	if p.byUser[m.UserID] == channelID {
		delete(p.byUser, m.UserID)
	}
	if members, ok := p.rooms[m.Room]; ok {
		delete(members, channelID)
		if len(members) == 0 {
			delete(p.rooms, m.Room)
		}
	}
	return *m, true
}
