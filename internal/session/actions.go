package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/game"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/phase"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/room"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
)

// MaxChatLength bounds a chat message in runes
const MaxChatLength = 500

// ErrEmptyMessage is returned for a blank chat message
var ErrEmptyMessage = errors.New("chat message is empty")

// AcknowledgeRole marks this player's card as seen
func (c *Client) AcknowledgeRole(ctx context.Context) error {
	return c.call(ctx, c.acknowledgeRole)
}

// ToggleEndRequest flips this player's request to end the discussion
func (c *Client) ToggleEndRequest(ctx context.Context) error {
	return c.call(ctx, c.toggleEndRequest)
}

// TogglePause pauses or resumes the discussion clock
func (c *Client) TogglePause(ctx context.Context) error {
	return c.call(ctx, c.togglePause)
}

// SubmitVote casts this player's ballot once
func (c *Client) SubmitVote(ctx context.Context, suspects []string) error {
	return c.call(ctx, func(ctx context.Context) error {
		return c.submitVote(ctx, suspects)
	})
}

// SendChat appends a message to the room chat
func (c *Client) SendChat(ctx context.Context, text string) error {
	return c.call(ctx, func(ctx context.Context) error {
		return c.sendChat(ctx, text)
	})
}

// Leave removes this player from the room and stops Run
func (c *Client) Leave(ctx context.Context) error {
	return c.call(ctx, c.leave)
}

// guard returns the phase token conditions of the cached room
func (c *Client) guard(status models.Status, extra ...store.Condition) ([]store.Condition, error) {
	if c.room == nil || c.room.Status != status || c.room.GameState == nil {
		return nil, game.ErrWrongPhase
	}
	conds := []store.Condition{
		store.Eq("status", status),
		store.Eq("phaseSeq", c.room.PhaseSeq),
	}
	return append(conds, extra...), nil
}

func (c *Client) write(ctx context.Context, what string, conds []store.Condition, fields map[string]any) error {
	ok, err := c.st.UpdateIf(ctx, models.RoomPath(c.code), conds, fields)
	if err != nil {
		c.log.Warn(what+" failed", zap.Error(err))
		return fmt.Errorf("%w: %s: %v", game.ErrWriteFailure, what, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s: room changed", game.ErrWriteFailure, what)
	}
	return nil
}

func (c *Client) acknowledgeRole(ctx context.Context) error {
	card := "gameState/assignments/" + c.me
	conds, err := c.guard(models.StatusReveal, store.Eq(card+"/id", c.me))
	if err != nil {
		return err
	}
	was := c.ready
	c.ready = true
	if err := c.write(ctx, "acknowledge role", conds, map[string]any{
		card + "/ready":   true,
		card + "/readyAt": game.Millis(c.now()),
	}); err != nil {
		c.ready = was
		return err
	}

	// whoever acknowledges last moves everyone on
	fresh, err := room.Load(ctx, c.st, c.code)
	if err != nil {
		return nil
	}
	if tr, ok := phase.Reveal(fresh, game.Millis(c.now())); ok {
		phase.ApplyWithRetry(ctx, c.st, c.code, tr, c.retry, c.log)
	}
	return nil
}

func (c *Client) toggleEndRequest(ctx context.Context) error {
	conds, err := c.guard(models.StatusDiscussion)
	if err != nil {
		return err
	}
	was := c.endWanted
	c.endWanted = !was
	var value any
	if c.endWanted {
		value = true
	}
	if err := c.write(ctx, "end request", conds, map[string]any{
		"gameState/endRequests/" + c.me: value,
		"gameState/lastActionAt":        game.Millis(c.now()),
	}); err != nil {
		c.endWanted = was
		return err
	}
	return nil
}

func (c *Client) togglePause(ctx context.Context) error {
	if c.room == nil || c.room.GameState == nil {
		return game.ErrWrongPhase
	}
	gs := c.room.GameState
	now := game.Millis(c.now())

	if gs.IsPaused {
		conds, err := c.guard(models.StatusDiscussion, store.Eq("gameState/isPaused", true))
		if err != nil {
			return err
		}
		pausedFor := int64(0)
		if gs.PausedAt > 0 {
			pausedFor = now - gs.PausedAt
		}
		return c.write(ctx, "resume", conds, map[string]any{
			"gameState/isPaused":     nil,
			"gameState/pausedAt":     nil,
			"gameState/pausedTotal":  gs.PausedTotal + pausedFor,
			"gameState/lastActionAt": now,
		})
	}
	conds, err := c.guard(models.StatusDiscussion, store.Missing("gameState/isPaused"))
	if err != nil {
		return err
	}
	return c.write(ctx, "pause", conds, map[string]any{
		"gameState/isPaused":     true,
		"gameState/pausedAt":     now,
		"gameState/lastActionAt": now,
	})
}

func (c *Client) submitVote(ctx context.Context, suspects []string) error {
	if c.room == nil || c.room.Status != models.StatusVoting || c.room.GameState == nil {
		return game.ErrWrongPhase
	}
	gs := c.room.GameState
	if len(c.vote) > 0 {
		return game.ErrAlreadyVoted
	}
	if _, ok := gs.Votes[c.me]; ok {
		return game.ErrAlreadyVoted
	}
	if err := game.ValidateVote(gs, c.me, suspects); err != nil {
		return err
	}

	ballot := "gameState/votes/" + c.me
	conds, err := c.guard(models.StatusVoting, store.Missing(ballot), store.Missing("gameState/votingConcluded"))
	if err != nil {
		return err
	}
	c.vote = append([]string(nil), suspects...)
	ok, err := c.st.UpdateIf(ctx, models.RoomPath(c.code), conds, map[string]any{ballot: suspects})
	if err != nil {
		c.vote = nil
		return fmt.Errorf("%w: vote: %v", game.ErrWriteFailure, err)
	}
	if !ok {
		c.vote = nil
		if snap, err := c.st.Get(ctx, models.RoomPath(c.code)+"/"+ballot); err == nil && snap.Exists() {
			return game.ErrAlreadyVoted
		}
		return fmt.Errorf("%w: vote: room changed", game.ErrWriteFailure)
	}
	c.log.Info("vote submitted", zap.Strings("suspects", suspects))

	// the final ballot resolves the round without waiting for a tick
	fresh, err := room.Load(ctx, c.st, c.code)
	if err != nil || fresh.GameState == nil {
		return nil
	}
	if fresh.GameState.PlayerCount() > 0 && fresh.GameState.CountVotes() >= fresh.GameState.PlayerCount() {
		if tr, ok := phase.Voting(fresh, game.Millis(c.now()), c.t); ok {
			phase.ApplyWithRetry(ctx, c.st, c.code, tr, c.retry, c.log)
		}
	}
	return nil
}

func (c *Client) sendChat(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	if r := []rune(text); len(r) > MaxChatLength {
		text = string(r[:MaxChatLength])
	}
	name := c.profile.Name
	if c.room != nil && c.room.GameState != nil {
		if card, ok := c.room.GameState.Assignments[c.me]; ok && name == "" {
			name = card.Name
		}
	}
	_, err := c.st.Push(ctx, models.RoomPath(c.code)+"/chat", models.ChatMessage{
		SenderID:   c.me,
		SenderName: name,
		Text:       text,
		Type:       "text",
		Timestamp:  game.Millis(c.now()),
	})
	if err != nil {
		return fmt.Errorf("%w: chat: %v", game.ErrWriteFailure, err)
	}
	return nil
}

func (c *Client) leave(ctx context.Context) error {
	dep, err := c.rooms.LeaveRoom(ctx, c.code, c.me)
	if err != nil {
		return fmt.Errorf("%w: leave: %v", game.ErrWriteFailure, err)
	}
	c.log.Info("left room", zap.Bool("hostDeparted", dep.HostDeparted), zap.Bool("roomClosed", dep.RoomClosed))
	c.left = true
	return nil
}
