package core

import "github.com/rs/zerolog"

// Broadcaster fans events out to the clients of a room.
// Delivery never blocks: a client whose queue is full misses the event and
// is flagged stalled so the transport can drop the connection.
type Broadcaster struct {
	presence *Presence
	log      *zerolog.Logger
}

// NewBroadcaster creates a broadcaster over the given presence registry.
func NewBroadcaster(presence *Presence, logger *zerolog.Logger) *Broadcaster {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Broadcaster{presence: presence, log: logger}
}

// EmitToRoom sends ev to every client in room except exclude (may be nil).
// It returns the number of clients the event was queued for.
func (b *Broadcaster) EmitToRoom(room string, ev *Event, exclude *Client) int {
	delivered := 0
	for _, c := range b.presence.MembersOf(room) {
		if c == exclude {
			continue
		}
		if b.EmitToChannel(c, ev) {
			delivered++
		}
	}
	return delivered
}

// EmitToChannel sends ev to a single client.
func (b *Broadcaster) EmitToChannel(c *Client, ev *Event) bool {
	if c.deliver(ev) {
		return true
	}
	b.log.Warn().
		Str("client_id", c.ID).
		Stringer("event", ev.Kind).
		Msg("client queue full, dropping event")
	return false
}
