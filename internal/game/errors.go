package game

import "errors"

// Structural errors route a client home with a one-time notice
var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomClosed      = errors.New("room closed during session")
	ErrRoomNotJoinable = errors.New("room is not accepting players")
	ErrHostDeparted    = errors.New("host departed")
	ErrUnplayableGame  = errors.New("not enough citizens left to continue")
	ErrRemoved         = errors.New("player no longer in room")
	ErrStoreLost       = errors.New("lost connection to the room")
)

// Operational errors
var (
	ErrWriteFailure         = errors.New("write failed")
	ErrTimerSyncAnomaly     = errors.New("timer listener error")
	ErrAlreadyVoted         = errors.New("vote already submitted")
	ErrInvalidVote          = errors.New("invalid vote")
	ErrNotEnoughPlayers     = errors.New("not enough players")
	ErrInvalidImpostorCount = errors.New("invalid impostor count")
	ErrNotHost              = errors.New("only the host can do that")
	ErrWrongPhase           = errors.New("action not allowed in this phase")
	ErrRoomCodeExhausted    = errors.New("no free room code")
)

// Structural reports whether err should surface as a navigation dialog
func Structural(err error) bool {
	switch {
	case errors.Is(err, ErrRoomNotFound),
		errors.Is(err, ErrRoomClosed),
		errors.Is(err, ErrRoomNotJoinable),
		errors.Is(err, ErrHostDeparted),
		errors.Is(err, ErrUnplayableGame),
		errors.Is(err, ErrStoreLost):
		return true
	default:
		return false
	}
}
