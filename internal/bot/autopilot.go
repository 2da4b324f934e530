package bot

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/game"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/session"
)

// drive answers every screen the seat lands on until its event stream closes
func (s *seat) drive(ctx context.Context, events <-chan session.Event, opts Options, outcomes chan<- session.Outcome) {
	for e := range events {
		switch e.Kind {
		case session.EventNavigate:
			s.act(ctx, e.Screen, opts)
		case session.EventResult:
			if outcomes != nil && e.Outcome != nil {
				select {
				case outcomes <- *e.Outcome:
				case <-ctx.Done():
				}
			}
		case session.EventNotice, session.EventAnomaly:
			s.log.Debug("bot saw", zap.String("kind", string(e.Kind)), zap.Error(e.Err))
		}
	}
}

func (s *seat) act(ctx context.Context, screen session.Screen, opts Options) {
	if err := pause(ctx, opts.Think); err != nil {
		return
	}
	var err error
	switch screen {
	case session.ScreenReveal:
		err = s.client.AcknowledgeRole(ctx)
	case session.ScreenDiscussion:
		err = s.discuss(ctx)
	case session.ScreenVoting:
		err = s.vote(ctx, opts.Insight)
	default:
		return
	}
	// the room may move on while a bot thinks
	if err != nil && !errors.Is(err, game.ErrWrongPhase) && !errors.Is(err, context.Canceled) {
		s.log.Warn("bot action failed", zap.String("screen", string(screen)), zap.Error(err))
	}
}

func (s *seat) discuss(ctx context.Context) error {
	v, err := s.client.View(ctx)
	if err != nil {
		return err
	}
	if v.Room != nil && v.Room.GameState != nil {
		if card, ok := v.Room.GameState.Assignments[s.id]; ok {
			if err := s.client.SendChat(ctx, clue(card)); err != nil {
				s.log.Debug("chat failed", zap.Error(err))
			}
		}
	}
	if v.EndRequested {
		return nil
	}
	return s.client.ToggleEndRequest(ctx)
}

func (s *seat) vote(ctx context.Context, insight float64) error {
	v, err := s.client.View(ctx)
	if err != nil {
		return err
	}
	if v.Room == nil || v.Room.GameState == nil || len(v.Vote) > 0 {
		return nil
	}
	suspects := s.suspects(v.Room.GameState, insight)
	if len(suspects) == 0 {
		return nil
	}
	err = s.client.SubmitVote(ctx, suspects)
	if errors.Is(err, game.ErrAlreadyVoted) {
		return nil
	}
	return err
}

// suspects picks imposterCount distinct players other than the seat itself.
// Impostors point at citizens; citizens point at impostors with probability insight.
func (s *seat) suspects(gs *models.GameState, insight float64) []string {
	me := gs.Assignments[s.id]
	var first, rest []string
	for _, a := range gs.Ordered() {
		if a.ID == s.id {
			continue
		}
		guilty := a.IsImposter
		if me.IsImposter {
			guilty = !a.IsImposter
		} else if guilty && s.rng.Float64() >= insight {
			guilty = false
		}
		if guilty {
			first = append(first, a.ID)
		} else {
			rest = append(rest, a.ID)
		}
	}
	s.rng.Shuffle(len(first), func(i, j int) { first[i], first[j] = first[j], first[i] })
	s.rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	picks := append(first, rest...)
	if len(picks) > gs.ImposterCount {
		picks = picks[:gs.ImposterCount]
	}
	return picks
}

func clue(card models.Assignment) string {
	if card.Hint == "" {
		return "I know exactly what it is"
	}
	return "Makes me think of " + card.Hint
}
