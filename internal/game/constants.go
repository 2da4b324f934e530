package game

import "time"

const (
	// MinPlayers is the minimum number of players required to start a game
	MinPlayers = 3

	// RoomCodeMin and RoomCodeMax bound the 6-digit numeric room codes
	RoomCodeMin = 100000
	RoomCodeMax = 999999

	// RoomCodeAttempts is how many codes are tried before giving up
	RoomCodeAttempts = 10

	// ImpostorWord is the word shown on every impostor card
	ImpostorWord = "Imposter"

	// UnknownWord is reported when no citizen card survived
	UnknownWord = "Unknown"

	// SSEBufferSize is the buffer size for SSE message channels
	SSEBufferSize = 10

	// SSETimeoutSeconds is the timeout for sending messages to SSE clients
	SSETimeoutSeconds = 1
)

// Timings holds every clock the session engine runs on
type Timings struct {
	Tick                time.Duration // duty-holder evaluation interval
	Poll                time.Duration // verification polling interval
	DiscussionPerPlayer time.Duration
	TieDiscussion       time.Duration
	Voting              time.Duration
	Consensus           time.Duration
	WhoStartsCountdown  time.Duration
	WhoStartsFallback   time.Duration
	TakeoverGrace       time.Duration
	LeaseTTL            time.Duration
}

// DefaultTimings returns the production clocks
func DefaultTimings() Timings {
	return Timings{
		Tick:                time.Second,
		Poll:                10 * time.Second,
		DiscussionPerPlayer: 60 * time.Second,
		TieDiscussion:       60 * time.Second,
		Voting:              15 * time.Second,
		Consensus:           20 * time.Second,
		WhoStartsCountdown:  5 * time.Second,
		WhoStartsFallback:   3 * time.Second,
		TakeoverGrace:       3 * time.Second,
		LeaseTTL:            3 * time.Second,
	}
}

// DiscussionFor returns the discussion length for n players
func (t Timings) DiscussionFor(n int) time.Duration {
	return time.Duration(n) * t.DiscussionPerPlayer
}

// Millis converts a wall clock time to document milliseconds
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
