package core

import (
	"time"

	"github.com/vovakirdan/anonchat-server/internal/store"
)

// Message is the domain model for a chat message.
type Message struct {
	ID              int64
	Room            string
	SenderID        string
	Kind            store.EventKind
	Text            string
	Image           string
	AudioURL        string
	AudioDurationMs int64
	FileName        string
	CreatedAt       time.Time
}

func messageFromStore(ev *store.ChatEvent) Message {
	return Message{
		ID:              ev.ID,
		Room:            ev.Room,
		SenderID:        ev.SenderID,
		Kind:            ev.Kind,
		Text:            ev.Text,
		Image:           ev.ImageRef,
		AudioURL:        ev.AudioRef,
		AudioDurationMs: ev.AudioDurationMs,
		FileName:        ev.FileName,
		CreatedAt:       ev.CreatedAt,
	}
}
