package core

import "sync"

// DefaultQueueSize is the outbound queue length used when none is configured.
const DefaultQueueSize = 64

// Client is one connected channel as seen by the core layer.
// Commands carries inbound requests in submission order; Events is the
// outbound queue the transport drains.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	stalled   chan struct{}
	stallOnce sync.Once

	// userID is set by register and only touched by the hub's Serve task.
	userID string
}

// NewClient constructs a client with initialized queues.
func NewClient(id string, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 16),
		Events:   make(chan *Event, queueSize),
		stalled:  make(chan struct{}),
	}
}

// Stalled is closed once an event could not be queued for this client.
// The transport treats it as a disconnect.
func (c *Client) Stalled() <-chan struct{} {
	return c.stalled
}

// deliver enqueues ev without blocking. A full queue marks the client stalled.
func (c *Client) deliver(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		c.stallOnce.Do(func() { close(c.stalled) })
		return false
	}
}
