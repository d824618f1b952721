package core

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/anonchat-server/internal/attachment"
	"github.com/vovakirdan/anonchat-server/internal/store"
)

// HubConfig collects the collaborators of a Hub.
type HubConfig struct {
	Identities  store.IdentityStore
	Messages    store.MessageStore
	Attachments attachment.Store
	// MaxAudioBytes bounds decoded audio clips. Zero means unlimited.
	MaxAudioBytes int
	Logger        *zerolog.Logger
}

// Hub coordinates registration, rooms, presence and message delivery.
// Each connection is driven by its own Serve call; the hub itself holds no
// per-connection goroutines.
type Hub struct {
	identities    *IdentityRegistry
	messages      store.MessageStore
	attachments   attachment.Store
	presence      *Presence
	broadcaster   *Broadcaster
	maxAudioBytes int
	log           *zerolog.Logger
	now           func() time.Time
}

// NewHub creates a new chat hub instance.
func NewHub(cfg HubConfig) *Hub {
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	presence := NewPresence()
	return &Hub{
		identities:    NewIdentityRegistry(cfg.Identities),
		messages:      cfg.Messages,
		attachments:   cfg.Attachments,
		presence:      presence,
		broadcaster:   NewBroadcaster(presence, logger),
		maxAudioBytes: cfg.MaxAudioBytes,
		log:           logger,
		now:           time.Now,
	}
}

// Presence exposes the presence registry for read-only inspection.
func (h *Hub) Presence() *Presence {
	return h.presence
}

// Serve processes the commands of one client in submission order until ctx
// is cancelled or the command queue is closed.
func (h *Hub) Serve(ctx context.Context, c *Client) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-c.Commands:
			if !ok {
				return nil
			}
			h.handle(ctx, c, cmd)
		}
	}
}

// Disconnect removes the client's membership and tells the rest of its room.
// Calling it for a client without membership is a no-op.
func (h *Hub) Disconnect(c *Client) {
	m, ok := h.presence.Leave(c.ID)
	if !ok {
		return
	}
	h.log.Info().Str("client_id", c.ID).Str("user_id", m.UserID).Str("room", m.Room).Msg("user disconnected")
	h.broadcaster.EmitToRoom(m.Room, &Event{Kind: EventUserLeft, Room: m.Room, User: m.UserID}, c)
}

func (h *Hub) handle(ctx context.Context, c *Client, cmd *Command) {
	var err error
	switch cmd.Kind {
	case CommandRegister:
		err = h.register(ctx, c, cmd)
	case CommandJoinRoom:
		err = h.joinRoom(ctx, c, cmd)
	case CommandSendMessage:
		err = h.sendMessage(ctx, c, cmd)
	case CommandSendAudio:
		err = h.sendAudio(ctx, c, cmd)
	default:
		err = fmt.Errorf("%w: unknown command %d", ErrMalformedPayload, cmd.Kind)
	}
	if err == nil {
		return
	}

	l := h.log.Warn()
	if errors.Is(err, ErrStoreUnavailable) {
		l = h.log.Error()
	}
	l.Err(err).Str("client_id", c.ID).Str("user_id", c.userID).Stringer("command", cmd.Kind).Msg("command failed")
}

func (h *Hub) register(ctx context.Context, c *Client, cmd *Command) error {
	userID, err := h.identities.RegisterDevice(ctx, cmd.DeviceID)
	if err != nil {
		h.notify(c, ErrCodeRegisterFailed, "Failed to register user")
		return err
	}

	if c.userID != "" && c.userID != userID {
		if _, inRoom := h.presence.Lookup(c.ID); inRoom {
			return fmt.Errorf("%w: connection already in a room as %s", ErrInvalidState, c.userID)
		}
	}
	c.userID = userID

	h.log.Info().Str("client_id", c.ID).Str("user_id", userID).Msg("user registered")
	h.broadcaster.EmitToChannel(c, &Event{Kind: EventUserRegistered, User: userID})
	return nil
}

func (h *Hub) joinRoom(ctx context.Context, c *Client, cmd *Command) error {
	if err := h.checkSender(c, cmd); err != nil {
		return err
	}
	if cmd.ReceiverID == "" {
		return fmt.Errorf("%w: receiver id is required", ErrMalformedPayload)
	}

	room := RoomID(c.userID, cmd.ReceiverID)
	for _, old := range h.presence.Join(c.userID, c, room) {
		if old.Room == room && old.UserID == c.userID {
			continue
		}
		h.broadcaster.EmitToRoom(old.Room, &Event{Kind: EventUserLeft, Room: old.Room, User: old.UserID}, old.Client)
	}

	history, err := h.messages.RecentByRoom(ctx, room, HistoryLimit)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("failed to load chat history")
		history = nil
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedAt.Before(history[j].CreatedAt)
	})
	messages := make([]Message, 0, len(history))
	for _, ev := range history {
		messages = append(messages, messageFromStore(ev))
	}

	h.log.Info().Str("user_id", c.userID).Str("room", room).Int("history", len(messages)).Msg("user joined room")
	h.broadcaster.EmitToChannel(c, &Event{Kind: EventHistory, Room: room, Messages: messages})
	h.broadcaster.EmitToRoom(room, &Event{Kind: EventUserJoined, Room: room, User: c.userID}, c)
	return nil
}

func (h *Hub) sendMessage(ctx context.Context, c *Client, cmd *Command) error {
	room, err := h.currentRoom(c, cmd)
	if err != nil {
		return err
	}
	if cmd.Text == "" && cmd.Image == "" {
		return fmt.Errorf("%w: message or image is required", ErrMalformedPayload)
	}

	msg := Message{
		Room:      room,
		SenderID:  c.userID,
		Kind:      store.EventKindImage,
		Text:      cmd.Text,
		Image:     cmd.Image,
		CreatedAt: h.now(),
	}

	// Only text is persisted. Image-only messages are relayed but never
	// stored, and a message carrying both stores just its text.
	if msg.Text != "" {
		msg.Kind = store.EventKindText
		ev := &store.ChatEvent{
			Room:      room,
			SenderID:  c.userID,
			Kind:      store.EventKindText,
			Text:      msg.Text,
			CreatedAt: msg.CreatedAt,
		}
		if err := h.messages.Append(ctx, ev); err != nil {
			// Delivery does not wait on durability.
			h.log.Error().Err(err).Str("user_id", c.userID).Str("room", room).Msg("failed to persist message")
		} else {
			msg.ID = ev.ID
		}
	}

	h.broadcaster.EmitToRoom(room, &Event{Kind: EventReceiveMessage, Room: room, Message: msg}, nil)
	return nil
}

func (h *Hub) sendAudio(ctx context.Context, c *Client, cmd *Command) error {
	room, err := h.currentRoom(c, cmd)
	if err != nil {
		return err
	}
	if cmd.Audio == nil || cmd.Audio.Data == "" {
		return fmt.Errorf("%w: audio data is required", ErrMalformedPayload)
	}
	if cmd.Audio.DurationMs < 0 {
		return fmt.Errorf("%w: negative audio duration", ErrMalformedPayload)
	}

	data, err := decodeAudio(cmd.Audio.Data)
	if err != nil {
		return fmt.Errorf("%w: decode audio: %v", ErrMalformedPayload, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty audio clip", ErrMalformedPayload)
	}
	if h.maxAudioBytes > 0 && len(data) > h.maxAudioBytes {
		return fmt.Errorf("%w: audio clip of %d bytes exceeds %d", ErrMalformedPayload, len(data), h.maxAudioBytes)
	}

	name := attachment.NewName(cmd.Audio.FileName)
	ref, err := h.attachments.Put(ctx, name, bytes.NewReader(data), int64(len(data)), attachment.DetectContentType(data))
	if err != nil {
		h.notify(c, ErrCodeAudioFailed, "Failed to send audio message")
		return fmt.Errorf("%w: write attachment: %v", ErrStoreUnavailable, err)
	}

	ev := &store.ChatEvent{
		Room:            room,
		SenderID:        c.userID,
		Kind:            store.EventKindAudio,
		AudioRef:        ref,
		AudioDurationMs: cmd.Audio.DurationMs,
		FileName:        name,
		CreatedAt:       h.now(),
	}
	if err := h.messages.Append(ctx, ev); err != nil {
		h.notify(c, ErrCodeAudioFailed, "Failed to send audio message")
		if delErr := h.attachments.Delete(ctx, name); delErr != nil {
			h.log.Error().Err(delErr).Str("file", name).Msg("orphaned audio attachment")
		}
		return fmt.Errorf("%w: persist audio message %s: %v", ErrStoreUnavailable, name, err)
	}

	h.log.Info().Str("user_id", c.userID).Str("room", room).Str("file", name).Int("bytes", len(data)).Msg("audio message stored")
	h.broadcaster.EmitToRoom(room, &Event{Kind: EventReceiveAudio, Room: room, Message: messageFromStore(ev)}, nil)
	return nil
}

// checkSender requires a registered connection acting as itself.
func (h *Hub) checkSender(c *Client, cmd *Command) error {
	if c.userID == "" {
		return fmt.Errorf("%w: connection is not registered", ErrInvalidState)
	}
	if cmd.SenderID != "" && cmd.SenderID != c.userID {
		return fmt.Errorf("%w: sender %s does not match registered user %s", ErrInvalidState, cmd.SenderID, c.userID)
	}
	return nil
}

// currentRoom returns the room a send is addressed to, which must be the room
// the client currently occupies.
func (h *Hub) currentRoom(c *Client, cmd *Command) (string, error) {
	if err := h.checkSender(c, cmd); err != nil {
		return "", err
	}
	if cmd.ReceiverID == "" {
		return "", fmt.Errorf("%w: receiver id is required", ErrMalformedPayload)
	}
	m, ok := h.presence.Lookup(c.ID)
	if !ok {
		return "", fmt.Errorf("%w: connection is not in a room", ErrInvalidState)
	}
	room := RoomID(c.userID, cmd.ReceiverID)
	if room != m.Room {
		return "", fmt.Errorf("%w: addressed room %s but occupies %s", ErrInvalidState, room, m.Room)
	}
	return room, nil
}

// Notify sends an error notice to a single client.
func (h *Hub) Notify(c *Client, code, msg string) {
	h.notify(c, code, msg)
}

func (h *Hub) notify(c *Client, code, msg string) {
	h.broadcaster.EmitToChannel(c, &Event{Kind: EventError, Error: coreError(code, msg)})
}

func decodeAudio(data string) ([]byte, error) {
	if strings.HasPrefix(data, "data:") {
		comma := strings.IndexByte(data, ',')
		if comma < 0 {
			return nil, errors.New("data url without payload")
		}
		data = data[comma+1:]
	}
	data = strings.TrimSpace(data)
	if out, err := base64.StdEncoding.DecodeString(data); err == nil {
		return out, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
}
