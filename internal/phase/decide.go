package phase

import (
	"math/rand"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/game"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
)

// Reasons recorded with duty-holder writes
const (
	ReasonTimer     = "timer"
	ReasonConsensus = "consensus"
	ReasonFull      = "full consensus"
	ReasonAllVotes  = "all votes"
)

// Reveal returns the write due once every card was acknowledged
func Reveal(room *models.Room, now int64) (Transition, bool) {
	if room.Status != models.StatusReveal || room.GameState == nil || !room.GameState.AllReady() {
		return Transition{}, false
	}
	return RevealDone(room, now), true
}

// Starter picks a uniformly random starting player when none is recorded
func Starter(room *models.Room, now int64, rng *rand.Rand) (Transition, bool) {
	state := room.GameState
	if room.Status != models.StatusWhoStarts || state == nil || state.StartingPlayerID != "" || len(state.Assignments) == 0 {
		return Transition{}, false
	}
	cards := state.Ordered()
	var pick models.Assignment
	if rng != nil {
		pick = cards[rng.Intn(len(cards))]
	} else {
		pick = cards[rand.Intn(len(cards))]
	}
	return PickStarter(room, pick, now), true
}

// Discussion returns the duty-holder write due at now, if any
func Discussion(room *models.Room, now int64, t game.Timings) (Transition, bool) {
	state := room.GameState
	if room.Status != models.StatusDiscussion || state == nil {
		return Transition{}, false
	}
	if state.Unplayable() {
		return Abort(room), true
	}
	if !state.IsPaused && state.DiscussionStartedAt > 0 && state.DiscussionRemaining(now) <= 0 {
		return ToVoting(room, now, t, ReasonTimer), true
	}
	switch game.EvaluateConsensus(state, now) {
	case game.ConsensusFull:
		return ToVoting(room, now, t, ReasonFull), true
	case game.ConsensusExpired:
		return ToVoting(room, now, t, ReasonConsensus), true
	case game.ConsensusStart:
		return ConsensusStart(room, now, t), true
	case game.ConsensusCancel:
		return ConsensusCancel(room, now), true
	}
	return Transition{}, false
}

// Voting returns the duty-holder write due at now, if any
func Voting(room *models.Room, now int64, t game.Timings) (Transition, bool) {
	state := room.GameState
	if room.Status != models.StatusVoting || state == nil || state.VotingConcluded {
		return Transition{}, false
	}
	if state.Unplayable() {
		return Abort(room), true
	}
	if state.PlayerCount() > 0 && state.CountVotes() >= state.PlayerCount() {
		tr, _ := ResolveVoting(room, now, t, ReasonAllVotes)
		return tr, true
	}
	if state.VotingExpiresAt == 0 {
		return InitVotingTimer(room, now, t), true
	}
	if now >= state.VotingExpiresAt {
		tr, _ := ResolveVoting(room, now, t, ReasonTimer)
		return tr, true
	}
	return Transition{}, false
}

// Overdue reports whether an authoritative deadline passed more than grace
// ago without being resolved. Any client may then act in place of the duty holder.
func Overdue(room *models.Room, now int64, t game.Timings) bool {
	state := room.GameState
	if state == nil {
		return false
	}
	grace := t.TakeoverGrace.Milliseconds()
	switch room.Status {
	case models.StatusDiscussion:
		if !state.IsPaused && state.DiscussionStartedAt > 0 && state.DiscussionRemaining(now) <= -grace {
			return true
		}
		return state.ConsensusExpiresAt > 0 && now >= state.ConsensusExpiresAt+grace
	case models.StatusVoting:
		return !state.VotingConcluded && state.VotingExpiresAt > 0 && now >= state.VotingExpiresAt+grace
	default:
		return false
	}
}
