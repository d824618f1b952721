package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandRegister binds the connection to the identity of a device.
	CommandRegister CommandKind = iota
	// CommandJoinRoom moves the client into the shared or a pairwise room.
	CommandJoinRoom
	// CommandSendMessage delivers a text and/or image message to the room.
	CommandSendMessage
	// CommandSendAudio stores an audio clip and delivers a reference to the room.
	CommandSendAudio
)

func (k CommandKind) String() string {
	switch k {
	case CommandRegister:
		return "register"
	case CommandJoinRoom:
		return "join_room"
	case CommandSendMessage:
		return "send_message"
	case CommandSendAudio:
		return "send_audio"
	default:
		return "unknown"
	}
}

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind

	DeviceID   string
	SenderID   string
	ReceiverID string

	Text  string
	Image string
	Audio *AudioPayload
}

// AudioPayload is an audio clip as submitted by the client.
type AudioPayload struct {
	Data       string // base64, optionally a data: URL
	DurationMs int64
	FileName   string
}
