package models

// Status represents the current phase of a room
type Status string

const (
	StatusLobby      Status = "lobby"
	StatusReveal     Status = "reveal"
	StatusWhoStarts  Status = "whoStarts"
	StatusDiscussion Status = "discussion"
	StatusVoting     Status = "voting"
	StatusResult     Status = "result"
)

// InGame reports whether the status belongs to a running game
func (s Status) InGame() bool {
	switch s {
	case StatusReveal, StatusWhoStarts, StatusDiscussion, StatusVoting, StatusResult:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	return s == StatusLobby || s.InGame()
}

// Role is the secret role dealt to a player
type Role string

const (
	RoleCitizen  Role = "Citizen"
	RoleImpostor Role = "Impostor"
)
