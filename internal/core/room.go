package core

// GlobalRoom is the shared room every client joins by default.
const GlobalRoom = "global_chat_room"

// HistoryLimit is the number of recent messages replayed on join.
const HistoryLimit = 50

// RoomID returns the room a user addresses with target: the shared room for
// GlobalRoom, otherwise a pairwise room that is the same for both participants.
func RoomID(userID, target string) string {
	if target == GlobalRoom {
		return GlobalRoom
	}
	a, b := userID, target
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}
