package sse

// SSE event type constants
const (
	EventRoomUpdate   = "room-update"
	EventPlayerUpdate = "player-update"
	EventRoomClosed   = "room-closed"
	EventErrorMessage = "error-message"
)

// Message is one server-sent event
type Message struct {
	Event string
	Data  string
}
