package session

import (
	"time"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
)

// Screen is the view a client is on
type Screen string

const (
	ScreenHome       Screen = "home"
	ScreenHost       Screen = "host"
	ScreenLobby      Screen = "lobby"
	ScreenReveal     Screen = "reveal"
	ScreenWhoStarts  Screen = "whoStarts"
	ScreenDiscussion Screen = "discussion"
	ScreenVoting     Screen = "voting"
	ScreenResult     Screen = "result"
)

// EventKind names what happened
type EventKind string

const (
	EventNavigate           EventKind = "navigate"
	EventNotice             EventKind = "notice"
	EventTimerInitialized   EventKind = "timer-initialized"
	EventConsensusStarted   EventKind = "consensus-started"
	EventConsensusCancelled EventKind = "consensus-cancelled"
	EventStarterChosen      EventKind = "starter-chosen"
	EventVoteTied           EventKind = "vote-tied"
	EventResult             EventKind = "result"
	EventAnomaly            EventKind = "anomaly"
)

// Event is emitted by the client loop for the UI
type Event struct {
	Kind   EventKind
	Screen Screen

	// Err is set on Notice and Anomaly
	Err error

	// At is the authoritative timestamp the event is keyed on
	At int64
	// Remaining is the countdown left when the event fired
	Remaining time.Duration

	Starter *models.PlayerRef
	Outcome *Outcome
}

// Outcome summarises a finished round
type Outcome struct {
	Winners    models.Role
	SecretWord string
	Ejected    *models.PlayerRef
	Impostors  []models.PlayerRef
	TimedOut   bool
}

// View is a copy of the client's derived state
type View struct {
	Screen       Screen
	Room         *models.Room
	Ready        bool
	EndRequested bool
	Vote         []string
	Remaining    time.Duration
	Consensus    time.Duration
	VoteTimeLeft time.Duration
}
