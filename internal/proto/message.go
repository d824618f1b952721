package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Client to server events.
const (
	EventRegisterUser     = "registerUser"
	EventJoinRoom         = "joinRoom"
	EventSendMessage      = "sendMessage"
	EventSendAudioMessage = "sendAudioMessage"
)

// Server to client events.
const (
	EventUserRegistered      = "userRegistered"
	EventError               = "error"
	EventChatHistory         = "chatHistory"
	EventUserJoined          = "userJoined"
	EventUserLeft            = "userLeft"
	EventReceiveMessage      = "receiveMessage"
	EventReceiveAudioMessage = "receiveAudioMessage"
)

// RegisterUserData binds the connection to a device.
type RegisterUserData struct {
	DeviceID string `json:"deviceId"`
}

// JoinRoomData moves the client into the shared room or a pairwise room.
type JoinRoomData struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

// SendMessageData carries a text message, an image reference, or both.
type SendMessageData struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Message    string `json:"message,omitempty"`
	Image      string `json:"image,omitempty"`
}

// SendAudioData carries a base64 encoded audio clip.
type SendAudioData struct {
	SenderID      string  `json:"senderId"`
	ReceiverID    string  `json:"receiverId"`
	AudioData     string  `json:"audioData"`
	AudioDuration float64 `json:"audioDuration"` // milliseconds
	FileName      string  `json:"fileName"`
}

// UserRegisteredData answers registerUser.
type UserRegisteredData struct {
	UserID string `json:"userId"`
}

// ErrorData is a notice about a failed request.
type ErrorData struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ChatEvent is a persisted message as replayed in chatHistory.
type ChatEvent struct {
	ID            int64  `json:"id"`
	Room          string `json:"room"`
	SenderID      string `json:"senderId"`
	Kind          string `json:"kind"`
	Text          string `json:"text,omitempty"`
	Image         string `json:"image,omitempty"`
	AudioURL      string `json:"audioUrl,omitempty"`
	AudioDuration int64  `json:"audioDuration,omitempty"`
	FileName      string `json:"fileName,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// ChatHistoryData holds the recent messages of a room, oldest first.
type ChatHistoryData struct {
	Room     string      `json:"room,omitempty"`
	Messages []ChatEvent `json:"messages"`
}

// UserPresenceData is the payload of userJoined and userLeft.
type UserPresenceData struct {
	UserID string `json:"userId"`
}

// ReceiveMessageData is a text or image message broadcast to a room.
type ReceiveMessageData struct {
	SenderID  string `json:"senderId"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message,omitempty"`
	Image     string `json:"image,omitempty"`
}

// ReceiveAudioData is an audio message broadcast to a room.
type ReceiveAudioData struct {
	SenderID      string `json:"senderId"`
	Timestamp     string `json:"timestamp"`
	AudioURL      string `json:"audioUrl"`
	AudioDuration int64  `json:"audioDuration"`
	FileName      string `json:"fileName"`
}
