package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/anonchat-server/internal/core"
	"github.com/vovakirdan/anonchat-server/internal/proto"
	"github.com/vovakirdan/anonchat-server/internal/store"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatsResponse summarizes server activity.
type StatsResponse struct {
	Connections int   `json:"connections"`
	Rooms       int   `json:"rooms"`
	Identities  int64 `json:"identities"`
}

// ChatHandlers provides read-only HTTP endpoints over chat state.
type ChatHandlers struct {
	hub   *core.Hub
	store store.Store
	log   *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(hub *core.Hub, st store.Store, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		hub:   hub,
		store: st,
		log:   logger,
	}
}

// RoomMessages returns the recent history of a room, oldest first.
// GET /api/rooms/:room/messages?limit=N
func (h *ChatHandlers) RoomMessages(c *gin.Context) {
	room := c.Param("room")

	limit := core.HistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > core.HistoryLimit {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and " + strconv.Itoa(core.HistoryLimit)})
			return
		}
		limit = n
	}

	events, err := h.store.RecentByRoom(c.Request.Context(), room, limit)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("failed to load room messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	messages := make([]proto.ChatEvent, 0, len(events))
	for _, ev := range events {
		messages = append(messages, chatEventFromStore(ev))
	}

	h.log.Debug().Str("room", room).Int("count", len(messages)).Msg("room messages listed")
	c.JSON(http.StatusOK, proto.ChatHistoryData{Room: room, Messages: messages})
}

// Stats reports connected channels, occupied rooms and registered identities.
// GET /api/stats
func (h *ChatHandlers) Stats(c *gin.Context) {
	identities, err := h.store.CountIdentities(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to count identities")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	presence := h.hub.Presence()
	c.JSON(http.StatusOK, StatsResponse{
		Connections: presence.Count(),
		Rooms:       presence.RoomCount(),
		Identities:  identities,
	})
}

func chatEventFromStore(ev *store.ChatEvent) proto.ChatEvent {
	return proto.ChatEvent{
		ID:            ev.ID,
		Room:          ev.Room,
		SenderID:      ev.SenderID,
		Kind:          string(ev.Kind),
		Text:          ev.Text,
		Image:         ev.ImageRef,
		AudioURL:      ev.AudioRef,
		AudioDuration: ev.AudioDurationMs,
		FileName:      ev.FileName,
		Timestamp:     formatTimestamp(ev.CreatedAt),
	}
}
