package models

import "sort"

// GameState represents the running game nested under a room (ephemeral)
type GameState struct {
	Assignments   map[string]Assignment `json:"assignments,omitempty"`
	ImposterCount int                   `json:"imposterCount"`
	Category      string                `json:"category,omitempty"`
	Language      string                `json:"language,omitempty"`
	StartedAt     int64                 `json:"startedAt,omitempty"`

	StartingPlayerID     string `json:"startingPlayerId,omitempty"`
	StartingPlayerName   string `json:"startingPlayerName,omitempty"`
	StartingPlayerAvatar int    `json:"startingPlayerAvatar,omitempty"`

	DiscussionDuration  int64           `json:"discussionDuration,omitempty"` // ms
	DiscussionStartedAt int64           `json:"discussionStartedAt,omitempty"`
	IsPaused            bool            `json:"isPaused,omitempty"`
	PausedAt            int64           `json:"pausedAt,omitempty"`
	PausedTotal         int64           `json:"pausedTotal,omitempty"`
	EndRequests         map[string]bool `json:"endRequests,omitempty"`
	ConsensusExpiresAt  int64           `json:"consensusExpiresAt,omitempty"`
	VoteTied            bool            `json:"voteTied,omitempty"`

	Votes            map[string][]string `json:"votes,omitempty"`
	VotingExpiresAt  int64               `json:"votingExpiresAt,omitempty"`
	VotingConcluded  bool                `json:"votingConcluded,omitempty"`
	AllVotesReceived bool                `json:"allVotesReceived,omitempty"`
	SkipTimer        bool                `json:"skipTimer,omitempty"`
	TimerExpired     bool                `json:"timerExpired,omitempty"`

	Winners       Role        `json:"winners,omitempty"`
	SecretWord    string      `json:"secretWord,omitempty"`
	Impostors     []PlayerRef `json:"impostors,omitempty"`
	EjectedPlayer *PlayerRef  `json:"ejectedPlayer,omitempty"`

	LastActionAt int64 `json:"lastActionAt,omitempty"`
}

// Assignment is the role card dealt to one player
type Assignment struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	AvatarID     int    `json:"avatarId"`
	Order        int    `json:"order"`
	Role         Role   `json:"role"`
	Word         string `json:"word"`
	Hint         string `json:"hint,omitempty"`
	OriginalWord string `json:"originalWord,omitempty"`
	IsImposter   bool   `json:"isImposter"`
	Ready        bool   `json:"ready,omitempty"`
	ReadyAt      int64  `json:"readyAt,omitempty"`
}

// Ordered returns assignments sorted by order, then id
func (g *GameState) Ordered() []Assignment {
	list := make([]Assignment, 0, len(g.Assignments))
	for _, a := range g.Assignments {
		list = append(list, a)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Order == list[j].Order {
			return list[i].ID < list[j].ID
		}
		return list[i].Order < list[j].Order
	})
	return list
}

// PlayerCount returns the number of dealt-in players still present
func (g *GameState) PlayerCount() int {
	return len(g.Assignments)
}

// RoleCounts returns the number of citizens and impostors still present
func (g *GameState) RoleCounts() (citizens, impostors int) {
	for _, a := range g.Assignments {
		if a.IsImposter {
			impostors++
		} else {
			citizens++
		}
	}
	return citizens, impostors
}

// Unplayable reports whether the players left, less the dealt impostor
// count, no longer outnumber it. A departed impostor still counts.
func (g *GameState) Unplayable() bool {
	citizens := len(g.Assignments) - g.ImposterCount
	return len(g.Assignments) > 0 && citizens <= g.ImposterCount
}

// AllReady reports whether every assignment acknowledged its role
func (g *GameState) AllReady() bool {
	if len(g.Assignments) == 0 {
		return false
	}
	for _, a := range g.Assignments {
		if !a.Ready {
			return false
		}
	}
	return true
}

// CountReady counts acknowledged assignments
func (g *GameState) CountReady() int {
	count := 0
	for _, a := range g.Assignments {
		if a.Ready {
			count++
		}
	}
	return count
}

// CountEndRequests counts consensus flags from present players
func (g *GameState) CountEndRequests() int {
	count := 0
	for id, flagged := range g.EndRequests {
		if _, ok := g.Assignments[id]; ok && flagged {
			count++
		}
	}
	return count
}

// CountVotes counts submitted votes from present players
func (g *GameState) CountVotes() int {
	count := 0
	for id := range g.Votes {
		if _, ok := g.Assignments[id]; ok {
			count++
		}
	}
	return count
}

// DiscussionRemaining returns the ms left on the discussion clock at now
func (g *GameState) DiscussionRemaining(now int64) int64 {
	if g.DiscussionStartedAt == 0 {
		return g.DiscussionDuration
	}
	paused := g.PausedTotal
	if g.IsPaused && g.PausedAt > 0 {
		paused += now - g.PausedAt
	}
	elapsed := now - g.DiscussionStartedAt - paused
	if elapsed < 0 {
		elapsed = 0
	}
	return g.DiscussionDuration - elapsed
}

// SecretWordOf returns the word any citizen holds
func (g *GameState) SecretWordOf() string {
	for _, a := range g.Ordered() {
		if a.IsImposter {
			continue
		}
		if a.Word != "" {
			return a.Word
		}
		if a.OriginalWord != "" {
			return a.OriginalWord
		}
	}
	return "Unknown"
}

// ImpostorRefs lists the impostors in play order
func (g *GameState) ImpostorRefs() []PlayerRef {
	refs := make([]PlayerRef, 0, g.ImposterCount)
	for _, a := range g.Ordered() {
		if a.IsImposter {
			refs = append(refs, PlayerRef{ID: a.ID, Name: a.Name})
		}
	}
	return refs
}
