package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/game"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/phase"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/room"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
)

func (c *Client) observe(ctx context.Context, m snapMsg) error {
	if m.err != nil {
		if dead := severed(m.err); dead != nil {
			return dead
		}
		c.anomaly(m.err)
		return nil
	}
	r, ok, err := room.Decode(c.code, m.snap)
	if err != nil {
		c.anomaly(err)
		return nil
	}
	if !ok {
		return game.ErrRoomClosed
	}
	return c.follow(ctx, r)
}

// verify re-reads the room in case a subscription update was missed
func (c *Client) verify(ctx context.Context) error {
	r, err := room.Load(ctx, c.st, c.code)
	if errors.Is(err, game.ErrRoomNotFound) {
		return game.ErrRoomClosed
	}
	if dead := severed(err); dead != nil {
		return dead
	}
	if err != nil {
		c.log.Warn("verification read failed", zap.Error(err))
		return nil
	}
	return c.follow(ctx, r)
}

// severed turns a dead store connection into a terminal session error
func severed(err error) error {
	if errors.Is(err, store.ErrClosed) || errors.Is(err, store.ErrConnectionLost) {
		return fmt.Errorf("%w: %v", game.ErrStoreLost, err)
	}
	return nil
}

// present reports whether this player still belongs to r
func (c *Client) present(r *models.Room) bool {
	if r.Status.InGame() && r.GameState != nil && len(r.GameState.Assignments) > 0 {
		_, ok := r.GameState.Assignments[c.me]
		return ok
	}
	return r.HasMember(c.me)
}

// follow reconciles local state with an authoritative room view
func (c *Client) follow(ctx context.Context, r *models.Room) error {
	c.room = r
	if !c.present(r) {
		return game.ErrRemoved
	}
	if r.HostDeparted() {
		return c.hostGone(r)
	}
	c.hostNoticed = false
	if r.Status.InGame() && r.GameState == nil {
		c.log.Warn("in-game room without game state", zap.String("status", string(r.Status)))
		return nil
	}

	switch r.Status {
	case models.StatusLobby:
		if c.inGame && r.AbortReason == models.AbortUnplayable {
			return game.ErrUnplayableGame
		}
		c.inGame = false
		c.leaveVoice()
		c.navigate(c.lobbyScreen())
	case models.StatusReveal:
		c.enterGame()
		c.navigate(ScreenReveal)
		if card, ok := r.GameState.Assignments[c.me]; ok {
			c.ready = card.Ready
		}
	case models.StatusWhoStarts:
		c.enterGame()
		c.navigate(ScreenWhoStarts)
		c.joinVoice(ctx)
		c.followWhoStarts(r)
	case models.StatusDiscussion:
		c.enterGame()
		if err := c.checkPlayable(ctx, r); err != nil {
			return err
		}
		c.navigate(ScreenDiscussion)
		c.joinVoice(ctx)
		c.followDiscussion(r)
	case models.StatusVoting:
		c.enterGame()
		if err := c.checkPlayable(ctx, r); err != nil {
			return err
		}
		c.navigate(ScreenVoting)
		c.joinVoice(ctx)
		c.followVoting(r)
	case models.StatusResult:
		c.enterGame()
		c.navigate(ScreenResult)
		c.leaveVoice()
		c.followResult(r)
	default:
		c.log.Warn("unknown room status", zap.String("status", string(r.Status)))
	}
	return nil
}

func (c *Client) enterGame() {
	c.inGame = true
}

// hostGone parks the client while the host is away
func (c *Client) hostGone(r *models.Room) error {
	c.inGame = false
	c.leaveVoice()
	if !c.hostNoticed {
		c.hostNoticed = true
		c.log.Info("host departed",
			zap.Bool("disconnected", r.HostDisconnected),
			zap.Bool("left", r.HostLeft),
			zap.String("status", string(r.Status)))
		c.emit(Event{Kind: EventNotice, Err: game.ErrHostDeparted})
	}
	c.navigate(c.lobbyScreen())
	return nil
}

// checkPlayable aborts the game once citizens no longer outnumber impostors
func (c *Client) checkPlayable(ctx context.Context, r *models.Room) error {
	gs := r.GameState
	if gs == nil || !gs.Unplayable() {
		return nil
	}
	citizens, impostors := gs.RoleCounts()
	c.log.Warn("game unplayable", zap.Int("citizens", citizens), zap.Int("impostors", impostors))
	if duty, _ := c.isDuty(ctx, r); duty {
		phase.ApplyWithRetry(ctx, c.st, c.code, phase.Abort(r), c.retry, c.log)
	}
	return game.ErrUnplayableGame
}

func (c *Client) followWhoStarts(r *models.Room) {
	gs := r.GameState
	if r.PhaseSeq != c.whoSeq || c.whoSince.IsZero() {
		c.whoSeq = r.PhaseSeq
		c.whoSince = c.now()
		c.starterID = ""
		c.starterSeen = time.Time{}
	}
	if gs == nil || gs.StartingPlayerID == "" || gs.StartingPlayerID == c.starterID {
		return
	}
	c.starterID = gs.StartingPlayerID
	c.starterSeen = c.now()
	c.emit(Event{
		Kind:      EventStarterChosen,
		Starter:   &models.PlayerRef{ID: gs.StartingPlayerID, Name: gs.StartingPlayerName},
		Remaining: c.t.WhoStartsCountdown,
	})
}

func (c *Client) followDiscussion(r *models.Room) {
	gs := r.GameState
	now := game.Millis(c.now())

	if gs.DiscussionStartedAt > 0 && gs.DiscussionStartedAt != c.timerMark {
		c.timerMark = gs.DiscussionStartedAt
		c.vote = nil
		c.emit(Event{
			Kind:      EventTimerInitialized,
			At:        gs.DiscussionStartedAt,
			Remaining: clampMillis(gs.DiscussionRemaining(now)),
		})
	}
	if gs.VoteTied && gs.DiscussionStartedAt != c.tieMark {
		c.tieMark = gs.DiscussionStartedAt
		c.emit(Event{Kind: EventVoteTied, At: gs.DiscussionStartedAt})
	}
	c.endWanted = gs.EndRequests[c.me]

	switch {
	case gs.ConsensusExpiresAt > 0 && gs.ConsensusExpiresAt != c.consensusAt:
		c.consensusAt = gs.ConsensusExpiresAt
		c.emit(Event{
			Kind:      EventConsensusStarted,
			At:        gs.ConsensusExpiresAt,
			Remaining: clampMillis(gs.ConsensusExpiresAt - now),
		})
	case gs.ConsensusExpiresAt == 0 && c.consensusAt > 0:
		c.consensusAt = 0
		c.emit(Event{Kind: EventConsensusCancelled})
	}
}

func (c *Client) followVoting(r *models.Room) {
	c.consensusAt = 0
	if r.PhaseSeq != c.voteSeq {
		c.voteSeq = r.PhaseSeq
		c.vote = nil
	}
	if ballot, ok := r.GameState.Votes[c.me]; ok {
		c.vote = ballot
	}
}

func (c *Client) followResult(r *models.Room) {
	if r.PhaseSeq == c.resultSeq {
		return
	}
	c.resultSeq = r.PhaseSeq
	gs := r.GameState
	c.log.Info("round finished", zap.String("winners", string(gs.Winners)), zap.String("word", gs.SecretWord))
	c.emit(Event{Kind: EventResult, Outcome: &Outcome{
		Winners:    gs.Winners,
		SecretWord: gs.SecretWord,
		Ejected:    gs.EjectedPlayer,
		Impostors:  gs.Impostors,
		TimedOut:   gs.TimerExpired,
	}})
	c.ready, c.endWanted, c.vote = false, false, nil
}
