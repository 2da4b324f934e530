package election

import (
	"context"
	"time"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
)

// Lease elects through a short-TTL heartbeat written into the room.
// The holder renews every evaluation; others promote only after expiry.
type Lease struct {
	st  store.Store
	ttl time.Duration
	now func() time.Time
}

// NewLease creates a lease elector
func NewLease(st store.Store, ttl time.Duration, now func() time.Time) *Lease {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = 3 * time.Second
	}
	return &Lease{st: st, ttl: ttl, now: now}
}

// IsDutyHolder implements Elector
func (l *Lease) IsDutyHolder(ctx context.Context, room *models.Room, playerID string) (bool, error) {
	if !room.HasMember(playerID) {
		return false, nil
	}
	now := l.now().UnixMilli()
	next := models.Lease{Holder: playerID, ExpiresAt: now + l.ttl.Milliseconds()}
	path := models.RoomPath(room.Code)

	current := room.Lease
	switch {
	case current != nil && current.Holder == playerID:
		// renew our own lease
		return l.st.UpdateIf(ctx, path,
			[]store.Condition{store.Eq("lease/holder", playerID)},
			map[string]any{"lease": next})
	case current == nil:
		return l.st.UpdateIf(ctx, path,
			[]store.Condition{store.Eq("status", room.Status), store.Missing("lease")},
			map[string]any{"lease": next})
	case now >= current.ExpiresAt || !room.HasMember(current.Holder):
		// take over an expired or orphaned lease
		return l.st.UpdateIf(ctx, path,
			[]store.Condition{store.Eq("lease/holder", current.Holder), store.Eq("lease/expiresAt", current.ExpiresAt)},
			map[string]any{"lease": next})
	default:
		return false, nil
	}
}
