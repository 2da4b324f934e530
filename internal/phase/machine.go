package phase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/retry"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
)

// ErrIllegalTransition is returned for a status change outside the table
var ErrIllegalTransition = errors.New("illegal phase transition")

var validTransitions = map[models.Status][]models.Status{
	models.StatusLobby:      {models.StatusReveal},
	models.StatusReveal:     {models.StatusWhoStarts},
	models.StatusWhoStarts:  {models.StatusDiscussion},
	models.StatusDiscussion: {models.StatusVoting, models.StatusLobby},
	models.StatusVoting:     {models.StatusResult, models.StatusDiscussion, models.StatusLobby},
	models.StatusResult:     {models.StatusReveal, models.StatusLobby},
}

// CanTransition checks if a status change is allowed
func CanTransition(from, to models.Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition is a guarded room write. When From differs from To it also
// advances the phase token.
type Transition struct {
	From   models.Status
	To     models.Status
	Reason string
	Conds  []store.Condition
	Fields map[string]any
}

// Changes reports whether the write moves the room to another status
func (t Transition) Changes() bool {
	return t.From != t.To
}

// Apply writes tr as a compare-and-set against the room document.
// It returns false when another writer got there first.
func Apply(ctx context.Context, st store.Store, code string, tr Transition) (bool, error) {
	if tr.Changes() && !CanTransition(tr.From, tr.To) {
		return false, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, tr.From, tr.To)
	}
	return st.UpdateIf(ctx, models.RoomPath(code), tr.Conds, tr.Fields)
}

// ApplyWithRetry applies tr with bounded backoff; failures are logged only
func ApplyWithRetry(ctx context.Context, st store.Store, code string, tr Transition, p retry.Policy, log *zap.Logger) bool {
	fields := []zap.Field{
		zap.String("room", code),
		zap.String("from", string(tr.From)),
		zap.String("to", string(tr.To)),
		zap.String("reason", tr.Reason),
	}
	if tr.Changes() && !CanTransition(tr.From, tr.To) {
		log.Error("refusing illegal transition", fields...)
		return false
	}

	var applied bool
	err := retry.Do(ctx, p, func(ctx context.Context) error {
		ok, err := Apply(ctx, st, code, tr)
		applied = ok
		return err
	})
	if err != nil {
		log.Warn("transition write gave up", append(fields, zap.Error(err))...)
		return false
	}
	if applied {
		log.Info("transition applied", fields...)
	} else {
		log.Debug("transition already applied elsewhere", fields...)
	}
	return applied
}

// guard pins a write to the observed status and phase token
func guard(room *models.Room, extra ...store.Condition) []store.Condition {
	conds := []store.Condition{
		store.Eq("status", room.Status),
		store.Eq("phaseSeq", room.PhaseSeq),
	}
	return append(conds, extra...)
}

func gs(field string) string {
	return "gameState/" + field
}
