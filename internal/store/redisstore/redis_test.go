package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
)

func TestLocateRejectsShallowPaths(t *testing.T) {
	b := &Backend{prefix: "p:"}
	_, _, _, err := b.locate("rooms")
	assert.ErrorIs(t, err, store.ErrUnsupportedPath)

	key, channel, rel, err := b.locate("rooms/123456/gameState/votes")
	require.NoError(t, err)
	assert.Equal(t, "p:doc:rooms/123456", key)
	assert.Equal(t, "p:chan:rooms/123456", channel)
	assert.Equal(t, "gameState/votes", rel)
}

// RedisSuite runs against a live server named by IMPOSTOR_TEST_REDIS_ADDR
type RedisSuite struct {
	suite.Suite
	backend *Backend
}

func TestRedisSuite(t *testing.T) {
	suite.Run(t, new(RedisSuite))
}

func (s *RedisSuite) SetupSuite() {
	addr := os.Getenv("IMPOSTOR_TEST_REDIS_ADDR")
	if addr == "" {
		s.T().Skip("IMPOSTOR_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	b, err := New(ctx, Options{Addr: addr, Prefix: "impostor-test:" + uuid.NewString() + ":"}, zap.NewNop())
	s.Require().NoError(err)
	s.backend = b
}

func (s *RedisSuite) TearDownSuite() {
	if s.backend != nil {
		s.backend.Close()
	}
}

func (s *RedisSuite) TestConditionalUpdate() {
	ctx := context.Background()
	c := s.backend.Connect()
	defer c.Close()

	s.Require().NoError(c.Set(ctx, "rooms/1", map[string]any{"status": "lobby", "phaseSeq": 0}))
	ok, err := c.UpdateIf(ctx, "rooms/1", []store.Condition{store.Eq("phaseSeq", 0)}, map[string]any{"status": "reveal", "phaseSeq": 1})
	s.Require().NoError(err)
	s.True(ok)

	ok, err = c.UpdateIf(ctx, "rooms/1", []store.Condition{store.Eq("phaseSeq", 0)}, map[string]any{"status": "result"})
	s.Require().NoError(err)
	s.False(ok)

	snap, err := c.Get(ctx, "rooms/1/status")
	s.Require().NoError(err)
	s.Equal("reveal", snap.Value)
}

func (s *RedisSuite) TestPushKeysAreOrdered() {
	ctx := context.Background()
	c := s.backend.Connect()
	defer c.Close()

	first, err := c.Push(ctx, "rooms/3/chat", map[string]any{"text": "hi"})
	s.Require().NoError(err)
	second, err := c.Push(ctx, "rooms/3/chat", map[string]any{"text": "there"})
	s.Require().NoError(err)
	s.Less(first, second)

	snap, err := c.Get(ctx, "rooms/3/chat")
	s.Require().NoError(err)
	s.Len(snap.Value, 2)
}

func (s *RedisSuite) TestSubscribeAndDisconnect() {
	ctx := context.Background()
	watcher, player := s.backend.Connect(), s.backend.Connect()
	defer watcher.Close()

	got := make(chan store.Snapshot, 16)
	_, err := watcher.Subscribe(ctx, "rooms/2/players", func(snap store.Snapshot, err error) {
		if err == nil {
			got <- snap
		}
	})
	s.Require().NoError(err)
	s.Require().False((<-got).Exists())

	s.Require().NoError(player.Set(ctx, "rooms/2/status", "lobby"))
	s.Require().NoError(player.Set(ctx, "rooms/2/players/p1", map[string]any{"name": "Ana"}))
	leave := store.UpdateOp("rooms/2", map[string]any{"players/p1": nil}).If(store.In("status", "lobby"))
	s.Require().NoError(player.OnDisconnect(ctx, leave))

	select {
	case snap := <-got:
		s.True(snap.Exists())
	case <-time.After(2 * time.Second):
		s.FailNow("join never observed")
	}

	s.Require().NoError(player.Close())
	select {
	case snap := <-got:
		s.False(snap.Exists())
	case <-time.After(2 * time.Second):
		s.FailNow("disconnect never observed")
	}
}
