package sse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
)

func next(t *testing.T, ch chan Message, event string) Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-ch:
			if msg.Event == event {
				return msg
			}
		case <-deadline:
			t.Fatalf("no %s event", event)
			return Message{}
		}
	}
}

func TestHubFollowsRoom(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory(nil)
	conn := mem.Connect()
	require.NoError(t, conn.Set(ctx, models.RoomPath("123456"), &models.Room{
		Status: models.StatusLobby,
		Host:   "Hana",
	}))

	hub := NewHub(conn, nil, nil)
	client := make(chan Message, BufferSize)
	require.NoError(t, hub.AddClient(ctx, "123456", client, "spectator-1"))
	assert.Equal(t, 1, hub.ClientCount("123456"))

	msg := next(t, client, EventRoomUpdate)
	assert.Contains(t, msg.Data, "Room 123456 [lobby]")
	assert.Contains(t, next(t, client, EventPlayerUpdate).Data, "Players (1)")

	require.NoError(t, conn.Set(ctx, models.RoomPath("123456")+"/players/p1", models.PlayerEntry{Name: "Ana", JoinedAt: 5}))
	assert.Contains(t, next(t, client, EventPlayerUpdate).Data, "- Ana")

	late := make(chan Message, BufferSize)
	require.NoError(t, hub.AddClient(ctx, "123456", late, "spectator-2"))
	assert.Contains(t, next(t, late, EventRoomUpdate).Data, "Players (2)", "late spectators get the latest state")

	require.NoError(t, conn.Remove(ctx, models.RoomPath("123456")))
	assert.Equal(t, "123456", next(t, client, EventRoomClosed).Data)

	hub.RemoveClient("123456", client)
	hub.RemoveClient("123456", late)
	assert.Zero(t, hub.ClientCount("123456"))
	assert.Zero(t, mem.Subscriptions())
}

func TestBroadcastSkipsSlowClients(t *testing.T) {
	hub := NewHub(store.NewMemory(nil).Connect(), nil, nil)
	hub.rooms["1"] = &feed{clients: map[chan Message]string{make(chan Message): "stuck"}}

	start := time.Now()
	hub.Broadcast("1", EventRoomUpdate, "x")
	assert.Less(t, time.Since(start), 3*SendTimeout)
}
