package game

import (
	"fmt"
	"sort"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
)

// VoteResult represents the outcome of vote counting
type VoteResult struct {
	VoteCount map[string]int
	MaxVotes  int
	Leaders   []string
	IsTie     bool
	Ejected   string
}

// CountVotes tallies every suspect across every submitted ballot.
// Zero votes or a shared maximum is a tie.
func CountVotes(votes map[string][]string) VoteResult {
	voteCount := make(map[string]int)
	for _, suspects := range votes {
		for _, id := range suspects {
			voteCount[id]++
		}
	}

	maxVotes := 0
	var leaders []string
	for id, count := range voteCount {
		if count > maxVotes {
			maxVotes = count
			leaders = []string{id}
		} else if count == maxVotes {
			leaders = append(leaders, id)
		}
	}
	sort.Strings(leaders)

	result := VoteResult{
		VoteCount: voteCount,
		MaxVotes:  maxVotes,
		Leaders:   leaders,
		IsTie:     maxVotes == 0 || len(leaders) > 1,
	}
	if !result.IsTie {
		result.Ejected = leaders[0]
	}
	return result
}

// ConsensusAction is what the duty holder must do about the consensus countdown
type ConsensusAction int

const (
	ConsensusNone ConsensusAction = iota
	ConsensusStart
	ConsensusCancel
	ConsensusExpired
	ConsensusFull
)

func (a ConsensusAction) String() string {
	switch a {
	case ConsensusStart:
		return "start"
	case ConsensusCancel:
		return "cancel"
	case ConsensusExpired:
		return "expired"
	case ConsensusFull:
		return "full"
	default:
		return "none"
	}
}

// EvaluateConsensus decides the countdown action at now (ms).
// The countdown runs while the undecided players equal the impostor count.
func EvaluateConsensus(gs *models.GameState, now int64) ConsensusAction {
	total := gs.PlayerCount()
	requests := gs.CountEndRequests()
	if total > 0 && requests >= total {
		return ConsensusFull
	}

	remaining := total - requests
	active := gs.ImposterCount > 0 && remaining == gs.ImposterCount
	switch {
	case active && gs.ConsensusExpiresAt == 0:
		return ConsensusStart
	case active && now >= gs.ConsensusExpiresAt:
		return ConsensusExpired
	case !active && gs.ConsensusExpiresAt != 0:
		return ConsensusCancel
	default:
		return ConsensusNone
	}
}

// MaxImpostors returns the largest impostor count allowed for n players
func MaxImpostors(n int) int {
	if m := (n - 1) / 2; m > 1 {
		return m
	}
	return 1
}

// ValidateVote checks a ballot before it is written
func ValidateVote(gs *models.GameState, voter string, suspects []string) error {
	if len(suspects) != gs.ImposterCount {
		return fmt.Errorf("%w: need %d suspects, got %d", ErrInvalidVote, gs.ImposterCount, len(suspects))
	}
	seen := make(map[string]bool, len(suspects))
	for _, id := range suspects {
		if id == voter {
			return fmt.Errorf("%w: cannot vote for yourself", ErrInvalidVote)
		}
		if _, ok := gs.Assignments[id]; !ok {
			return fmt.Errorf("%w: %s is not playing", ErrInvalidVote, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate suspect %s", ErrInvalidVote, id)
		}
		seen[id] = true
	}
	return nil
}
