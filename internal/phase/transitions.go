package phase

import (
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/game"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
)

func advance(room *models.Room, to models.Status, reason string, fields map[string]any, extra ...store.Condition) Transition {
	fields["status"] = to
	fields["phaseSeq"] = room.PhaseSeq + 1
	return Transition{
		From:   room.Status,
		To:     to,
		Reason: reason,
		Conds:  guard(room, extra...),
		Fields: fields,
	}
}

func stay(room *models.Room, reason string, fields map[string]any, extra ...store.Condition) Transition {
	return Transition{
		From:   room.Status,
		To:     room.Status,
		Reason: reason,
		Conds:  guard(room, extra...),
		Fields: fields,
	}
}

// Start deals a fresh game out of the lobby
func Start(room *models.Room, state *models.GameState, settings models.Settings) Transition {
	return advance(room, models.StatusReveal, "start", map[string]any{
		"gameState":   state,
		"settings":    settings,
		"abortReason": nil,
	})
}

// Restart re-deals the same table from the result screen
func Restart(room *models.Room, state *models.GameState) Transition {
	return advance(room, models.StatusReveal, "restart", map[string]any{
		"gameState":   state,
		"abortReason": nil,
	})
}

// ReturnToLobby clears the game and host flags from the result screen
func ReturnToLobby(room *models.Room) Transition {
	return advance(room, models.StatusLobby, "return to lobby", map[string]any{
		"gameState":        nil,
		"hostDisconnected": false,
		"hostLeft":         false,
		"abortReason":      nil,
	})
}

// Abort resets an unplayable game back to lobby
func Abort(room *models.Room) Transition {
	return advance(room, models.StatusLobby, "unplayable", map[string]any{
		"gameState":   nil,
		"abortReason": models.AbortUnplayable,
	})
}

// RevealDone moves on once every card was acknowledged
func RevealDone(room *models.Room, now int64) Transition {
	return advance(room, models.StatusWhoStarts, "all ready", map[string]any{
		gs("lastActionAt"): now,
	})
}

// PickStarter records who speaks first; it only applies once
func PickStarter(room *models.Room, starter models.Assignment, now int64) Transition {
	return stay(room, "pick starter", map[string]any{
		gs("startingPlayerId"):     starter.ID,
		gs("startingPlayerName"):   starter.Name,
		gs("startingPlayerAvatar"): starter.AvatarID,
		gs("lastActionAt"):         now,
	}, store.Missing(gs("startingPlayerId")))
}

// BeginDiscussion starts the discussion clock
func BeginDiscussion(room *models.Room, now int64) Transition {
	return advance(room, models.StatusDiscussion, "starter countdown", map[string]any{
		gs("discussionStartedAt"): now,
		gs("isPaused"):            nil,
		gs("pausedAt"):            nil,
		gs("pausedTotal"):         nil,
		gs("endRequests"):         nil,
		gs("consensusExpiresAt"):  nil,
		gs("voteTied"):            nil,
		gs("lastActionAt"):        now,
	})
}

// ToVoting ends the discussion and arms the voting timer
func ToVoting(room *models.Room, now int64, t game.Timings, reason string) Transition {
	return advance(room, models.StatusVoting, reason, map[string]any{
		gs("votingExpiresAt"):    now + t.Voting.Milliseconds(),
		gs("consensusExpiresAt"): nil,
		gs("endRequests"):        nil,
		gs("voteTied"):           nil,
		gs("votes"):              nil,
		gs("isPaused"):           nil,
		gs("pausedAt"):           nil,
		gs("votingConcluded"):    nil,
		gs("allVotesReceived"):   nil,
		gs("skipTimer"):          nil,
		gs("timerExpired"):       nil,
		gs("lastActionAt"):       now,
	})
}

// ConsensusStart arms the consensus countdown if it is not running
func ConsensusStart(room *models.Room, now int64, t game.Timings) Transition {
	return stay(room, "consensus start", map[string]any{
		gs("consensusExpiresAt"): now + t.Consensus.Milliseconds(),
		gs("lastActionAt"):       now,
	}, store.Missing(gs("consensusExpiresAt")))
}

// ConsensusCancel clears the consensus countdown
func ConsensusCancel(room *models.Room, now int64) Transition {
	return stay(room, "consensus cancel", map[string]any{
		gs("consensusExpiresAt"): nil,
		gs("lastActionAt"):       now,
	})
}

// InitVotingTimer sets the voting deadline when nobody has yet
func InitVotingTimer(room *models.Room, now int64, t game.Timings) Transition {
	return stay(room, "voting timer", map[string]any{
		gs("votingExpiresAt"): now + t.Voting.Milliseconds(),
	}, store.Missing(gs("votingExpiresAt")), store.Missing(gs("votingConcluded")))
}

// ResolveVoting tallies the ballots into a result or a tie
func ResolveVoting(room *models.Room, now int64, t game.Timings, reason string) (Transition, game.VoteResult) {
	state := room.GameState
	result := game.CountVotes(state.Votes)
	concluded := store.Missing(gs("votingConcluded"))

	if result.IsTie {
		return advance(room, models.StatusDiscussion, "tie", map[string]any{
			gs("discussionStartedAt"): now,
			gs("discussionDuration"):  t.TieDiscussion.Milliseconds(),
			gs("voteTied"):            true,
			gs("votes"):               nil,
			gs("endRequests"):         nil,
			gs("consensusExpiresAt"):  nil,
			gs("isPaused"):            nil,
			gs("pausedAt"):            nil,
			gs("pausedTotal"):         nil,
			gs("votingExpiresAt"):     nil,
			gs("allVotesReceived"):    nil,
			gs("votingConcluded"):     nil,
			gs("skipTimer"):           nil,
			gs("timerExpired"):        nil,
			gs("lastActionAt"):        now,
		}, concluded), result
	}

	ejected := models.PlayerRef{ID: result.Ejected, Name: result.Ejected}
	winners := models.RoleImpostor
	if card, ok := state.Assignments[result.Ejected]; ok {
		ejected.Name = card.Name
		if card.IsImposter {
			winners = models.RoleCitizen
		}
	}
	return advance(room, models.StatusResult, reason, map[string]any{
		gs("winners"):          winners,
		gs("secretWord"):       state.SecretWordOf(),
		gs("impostors"):        state.ImpostorRefs(),
		gs("ejectedPlayer"):    ejected,
		gs("votingExpiresAt"):  nil,
		gs("allVotesReceived"): true,
		gs("votingConcluded"):  true,
		gs("skipTimer"):        true,
		gs("timerExpired"):     reason == ReasonTimer,
		gs("lastActionAt"):     now,
	}, concluded), result
}
