package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/game"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
)

// PlayerList renders the roster, host first, one name per line
func PlayerList(room *models.Room) string {
	var b strings.Builder
	if room.GameState != nil && room.Status.InGame() {
		list := room.GameState.Ordered()
		b.WriteString("Players (")
		b.WriteString(strconv.Itoa(len(list)))
		b.WriteString(")\n")
		for _, a := range list {
			b.WriteString("- ")
			b.WriteString(a.Name)
			if a.ID == models.HostID {
				b.WriteString(" (host)")
			}
			b.WriteString("\n")
		}
		return b.String()
	}

	members := room.Members()
	b.WriteString("Players (")
	b.WriteString(strconv.Itoa(len(members)))
	b.WriteString(")\n")
	for _, m := range members {
		b.WriteString("- ")
		b.WriteString(m.Name)
		if m.ID == models.HostID {
			b.WriteString(" (host)")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ReadyCount renders a progress line shared by every phase
func ReadyCount(ready, total int, label string) string {
	return strconv.Itoa(ready) + "/" + strconv.Itoa(total) + " " + label
}

// VoteCount renders the voting progress line
func VoteCount(count, total int) string {
	return ReadyCount(count, total, "players have voted")
}

// Countdown renders ms as m:ss, never negative
func Countdown(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// Status renders the phase specific line a spectator sees; secrets stay hidden until the result
func Status(room *models.Room, now int64) string {
	gs := room.GameState
	switch {
	case room.HostDeparted():
		return "Host disconnected, waiting for the host to return"
	case room.Status == models.StatusLobby:
		if n := len(room.Members()); n < game.MinPlayers {
			return "Waiting for players to join (need at least " + strconv.Itoa(game.MinPlayers) + ")"
		}
		return "Waiting for host to start the game"
	case gs == nil:
		return "Starting..."
	}

	switch room.Status {
	case models.StatusReveal:
		return ReadyCount(gs.CountReady(), gs.PlayerCount(), "players ready")
	case models.StatusWhoStarts:
		if gs.StartingPlayerName == "" {
			return "Choosing who starts..."
		}
		return gs.StartingPlayerName + " starts"
	case models.StatusDiscussion:
		line := "Discussion " + Countdown(gs.DiscussionRemaining(now))
		if gs.IsPaused {
			line += " (paused)"
		}
		if gs.VoteTied {
			line += ", tie break round"
		}
		line += ", " + ReadyCount(gs.CountEndRequests(), gs.PlayerCount(), "ready to vote")
		if gs.ConsensusExpiresAt > 0 {
			line += ", voting in " + Countdown(gs.ConsensusExpiresAt-now)
		}
		return line
	case models.StatusVoting:
		return VoteCount(gs.CountVotes(), gs.PlayerCount()) + ", " + Countdown(gs.VotingExpiresAt-now) + " left"
	case models.StatusResult:
		return Result(gs)
	default:
		return string(room.Status)
	}
}

// Result renders the outcome of a finished round
func Result(gs *models.GameState) string {
	var b strings.Builder
	switch gs.Winners {
	case models.RoleCitizen:
		b.WriteString("Citizens win!")
	case models.RoleImpostor:
		b.WriteString("Impostors win!")
	default:
		b.WriteString("Round over")
	}
	if gs.EjectedPlayer != nil {
		b.WriteString(" Ejected: ")
		b.WriteString(gs.EjectedPlayer.Name)
		b.WriteString(".")
	}
	if len(gs.Impostors) > 0 {
		names := make([]string, len(gs.Impostors))
		for i, p := range gs.Impostors {
			names[i] = p.Name
		}
		b.WriteString(" Impostors: ")
		b.WriteString(strings.Join(names, ", "))
		b.WriteString(".")
	}
	if gs.SecretWord != "" {
		b.WriteString(" The word was ")
		b.WriteString(gs.SecretWord)
		b.WriteString(".")
	}
	return b.String()
}

// Summary renders the full spectator card for a room
func Summary(room *models.Room, now int64) string {
	var b strings.Builder
	b.WriteString("Room ")
	b.WriteString(room.Code)
	b.WriteString(" [")
	b.WriteString(string(room.Status))
	b.WriteString("]\n")
	b.WriteString(Status(room, now))
	b.WriteString("\n")
	b.WriteString(PlayerList(room))
	return b.String()
}
