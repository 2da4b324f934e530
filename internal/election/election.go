package election

import (
	"context"
	"fmt"
	"time"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
)

// Elector decides whether a player currently holds host duty for a room
type Elector interface {
	IsDutyHolder(ctx context.Context, room *models.Room, playerID string) (bool, error)
}

// New returns the elector named by kind ("convention" or "lease")
func New(kind string, st store.Store, ttl time.Duration, now func() time.Time) (Elector, error) {
	switch kind {
	case "", "convention":
		return Convention{}, nil
	case "lease":
		return NewLease(st, ttl, now), nil
	default:
		return nil, fmt.Errorf("unknown election mode %q", kind)
	}
}

// Convention elects the reserved host id or the first player in roster order.
// Both may hold duty at once; guarded writes keep that harmless.
type Convention struct{}

// IsDutyHolder implements Elector
func (Convention) IsDutyHolder(_ context.Context, room *models.Room, playerID string) (bool, error) {
	if playerID == models.HostID {
		return true, nil
	}
	return FirstInOrder(room) == playerID, nil
}

// FirstInOrder returns the id first in play order, or first to join in lobby
func FirstInOrder(room *models.Room) string {
	if room.GameState != nil && len(room.GameState.Assignments) > 0 {
		return room.GameState.Ordered()[0].ID
	}
	members := room.Members()
	if len(members) == 0 {
		return ""
	}
	return members[0].ID
}
