package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventUserRegistered answers a registration with the persistent user id.
	EventUserRegistered EventKind = iota
	// EventError notifies a single client about a failed request.
	EventError
	// EventHistory delivers recent room messages to a client upon joining.
	EventHistory
	// EventUserJoined notifies room members about a user joining.
	EventUserJoined
	// EventUserLeft notifies room members about a user leaving.
	EventUserLeft
	// EventReceiveMessage delivers a text or image message to the room.
	EventReceiveMessage
	// EventReceiveAudio delivers a stored audio message to the room.
	EventReceiveAudio
)

func (k EventKind) String() string {
	switch k {
	case EventUserRegistered:
		return "user_registered"
	case EventError:
		return "error"
	case EventHistory:
		return "history"
	case EventUserJoined:
		return "user_joined"
	case EventUserLeft:
		return "user_left"
	case EventReceiveMessage:
		return "receive_message"
	case EventReceiveAudio:
		return "receive_audio"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
// Events are shared between recipients and must not be modified once emitted.
type Event struct {
	Kind     EventKind
	Room     string
	User     string
	Message  Message
	Messages []Message // For EventHistory
	Error    *CoreError
}
