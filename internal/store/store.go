package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no record.
var ErrNotFound = errors.New("not found")

// Identity binds a device fingerprint to a persistent user id.
type Identity struct {
	ID                int64
	DeviceFingerprint string
	UserID            string
	CreatedAt         time.Time
}

// EventKind defines the payload carried by a chat event.
type EventKind string

const (
	EventKindText  EventKind = "text"
	EventKindImage EventKind = "image"
	EventKindAudio EventKind = "audio"
)

// ChatEvent represents a persisted chat message.
type ChatEvent struct {
	ID              int64
	Room            string
	SenderID        string
	Kind            EventKind
	Text            string
	ImageRef        string
	AudioRef        string
	AudioDurationMs int64
	FileName        string
	CreatedAt       time.Time
}

// IdentityStore handles identity persistence.
type IdentityStore interface {
	// GetIdentityByFingerprint retrieves an identity by device fingerprint.
	// Returns ErrNotFound if the fingerprint was never registered.
	GetIdentityByFingerprint(ctx context.Context, fingerprint string) (*Identity, error)

	// CreateIdentity stores a new identity. If the fingerprint is already
	// registered the existing record is returned unchanged.
	CreateIdentity(ctx context.Context, fingerprint, userID string) (*Identity, error)

	// CountIdentities returns the number of registered identities.
	CountIdentities(ctx context.Context) (int64, error)
}

// MessageStore handles chat event persistence.
type MessageStore interface {
	// Append persists an event and sets its ID.
	Append(ctx context.Context, ev *ChatEvent) error

	// RecentByRoom returns up to limit most recent events of a room, oldest first.
	RecentByRoom(ctx context.Context, room string, limit int) ([]*ChatEvent, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	IdentityStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
