package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/game"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/phase"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/room"
)

// tick re-reads the room and performs whatever write is due
func (c *Client) tick(ctx context.Context) error {
	if c.room == nil || !c.room.Status.InGame() || c.room.HostDeparted() {
		return nil
	}
	fresh, err := room.Load(ctx, c.st, c.code)
	if errors.Is(err, game.ErrRoomNotFound) {
		return game.ErrRoomClosed
	}
	if dead := severed(err); dead != nil {
		return dead
	}
	if err != nil {
		c.log.Warn("guard read failed", zap.Error(err))
		return nil
	}
	if err := c.follow(ctx, fresh); err != nil {
		return err
	}
	if fresh.HostDeparted() || fresh.GameState == nil {
		return nil
	}

	tr, ok := c.due(ctx, fresh, c.now())
	if !ok {
		return nil
	}
	phase.ApplyWithRetry(ctx, c.st, c.code, tr, c.retry, c.log)
	return nil
}

func (c *Client) isDuty(ctx context.Context, r *models.Room) (bool, error) {
	duty, err := c.elector.IsDutyHolder(ctx, r, c.me)
	if err != nil {
		c.log.Warn("election failed", zap.Error(err))
		return false, err
	}
	return duty, nil
}

// due returns the transition this client should attempt at now
func (c *Client) due(ctx context.Context, r *models.Room, now time.Time) (phase.Transition, bool) {
	ms := game.Millis(now)
	gs := r.GameState
	duty, _ := c.isDuty(ctx, r)

	switch r.Status {
	case models.StatusReveal:
		// the last acknowledger normally advances; the duty holder backs it up
		if duty {
			return phase.Reveal(r, ms)
		}
	case models.StatusWhoStarts:
		if gs.StartingPlayerID == "" {
			if duty {
				if tr, ok := phase.Starter(r, ms, c.rng); ok {
					return tr, true
				}
			}
			if !c.whoSince.IsZero() && now.Sub(c.whoSince) >= c.t.WhoStartsFallback {
				c.log.Info("no starter chosen, advancing anyway")
				return phase.BeginDiscussion(r, ms), true
			}
			return phase.Transition{}, false
		}
		if !c.starterSeen.IsZero() && now.Sub(c.starterSeen) >= c.t.WhoStartsCountdown {
			return phase.BeginDiscussion(r, ms), true
		}
	case models.StatusDiscussion:
		if duty || phase.Overdue(r, ms, c.t) {
			return phase.Discussion(r, ms, c.t)
		}
	case models.StatusVoting:
		if duty || phase.Overdue(r, ms, c.t) {
			return phase.Voting(r, ms, c.t)
		}
	}
	return phase.Transition{}, false
}
