package room

import (
	"context"
	"fmt"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/game"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
)

// Load reads a room document; a missing room is ErrRoomNotFound
func Load(ctx context.Context, st store.Store, code string) (*models.Room, error) {
	snap, err := st.Get(ctx, models.RoomPath(code))
	if err != nil {
		return nil, fmt.Errorf("read room %s: %w", code, err)
	}
	room, ok, err := Decode(code, snap)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, game.ErrRoomNotFound
	}
	return room, nil
}

// Decode turns a room snapshot into a Room; ok is false when it was deleted
func Decode(code string, snap store.Snapshot) (*models.Room, bool, error) {
	if !snap.Exists() {
		return nil, false, nil
	}
	var room models.Room
	if err := snap.Decode(&room); err != nil {
		return nil, false, fmt.Errorf("decode room %s: %w", code, err)
	}
	room.Code = code
	return &room, true, nil
}

// departureFields clears everything a member owns under the room
func departureFields(id string) map[string]any {
	return map[string]any{
		"players/" + id:               nil,
		"gameState/assignments/" + id: nil,
		"gameState/endRequests/" + id: nil,
		"gameState/votes/" + id:       nil,
	}
}

// liveRoom guards disconnect writes so they never resurrect a deleted room
func liveRoom() store.Condition {
	return store.In("status",
		models.StatusLobby,
		models.StatusReveal,
		models.StatusWhoStarts,
		models.StatusDiscussion,
		models.StatusVoting,
		models.StatusResult,
	)
}
