package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/game"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/retry"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store/remote"
)

const soloCode = "424242"

type clock struct{ ms atomic.Int64 }

func newClock(ms int64) *clock {
	c := &clock{}
	c.ms.Store(ms)
	return c
}

func (c *clock) Now() time.Time          { return time.UnixMilli(c.ms.Load()) }
func (c *clock) Advance(d time.Duration) { c.ms.Add(d.Milliseconds()) }

func slowTimings() game.Timings {
	t := game.DefaultTimings()
	t.Tick = time.Hour
	t.Poll = time.Hour
	return t
}

// fourSeats is a discussion among the host and three players; p3 is the impostor
func fourSeats(now int64) *models.Room {
	card := func(id, name string, order int, impostor bool) models.Assignment {
		a := models.Assignment{ID: id, Name: name, Order: order, Role: models.RoleCitizen, Word: "Lighthouse"}
		if impostor {
			a.Role, a.Word, a.IsImposter = models.RoleImpostor, game.ImpostorWord, true
		}
		return a
	}
	return &models.Room{
		Status:   models.StatusDiscussion,
		PhaseSeq: 3,
		Host:     "Hana",
		HostID:   "u-host",
		Players: map[string]models.PlayerEntry{
			"p1": {Name: "Ana", JoinedAt: 1},
			"p2": {Name: "Ben", JoinedAt: 2},
			"p3": {Name: "Cy", JoinedAt: 3},
		},
		GameState: &models.GameState{
			ImposterCount:       1,
			DiscussionDuration:  10_000,
			DiscussionStartedAt: now - 1_000,
			Assignments: map[string]models.Assignment{
				models.HostID: card(models.HostID, "Hana", 0, false),
				"p1":          card("p1", "Ana", 1, false),
				"p2":          card("p2", "Ben", 2, false),
				"p3":          card("p3", "Cy", 3, true),
			},
		},
	}
}

type solo struct {
	t      *testing.T
	ctx    context.Context
	cancel context.CancelFunc
	mem    *store.Memory
	conn   *store.Conn
	client *Client
	rec    *recorder
	done   chan error
	ended  chan struct{}
}

type soloOption func(*Options)

func startSolo(t *testing.T, doc *models.Room, me string, opts ...soloOption) *solo {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	mem := store.NewMemory(nil)
	conn := mem.Connect()
	require.NoError(t, conn.Set(ctx, models.RoomPath(soloCode), doc))

	o := Options{
		Store:    conn,
		Code:     soloCode,
		PlayerID: me,
		Profile:  models.Profile{UID: "u-" + me, Name: me},
		Timings:  slowTimings(),
		Retry:    retry.Policy{Attempts: 1},
		Log:      zaptest.NewLogger(t),
	}
	for _, fn := range opts {
		fn(&o)
	}
	s := &solo{t: t, ctx: ctx, cancel: cancel, mem: mem, conn: conn, client: New(o), rec: &recorder{}, done: make(chan error, 1), ended: make(chan struct{})}
	events := s.client.Events()
	go func() {
		defer close(s.ended)
		for e := range events {
			s.rec.add(e)
		}
	}()
	go func() { s.done <- s.client.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-s.ended
	})
	return s
}

func (s *solo) waitScreen(screen Screen) {
	s.t.Helper()
	require.Eventually(s.t, func() bool {
		v, err := s.client.View(s.ctx)
		return err == nil && v.Screen == screen
	}, waitFor, 5*time.Millisecond)
}

func (s *solo) view() View {
	s.t.Helper()
	v, err := s.client.View(s.ctx)
	require.NoError(s.t, err)
	return v
}

func (s *solo) stop() error {
	s.t.Helper()
	s.cancel()
	err := <-s.done
	<-s.ended
	return err
}

func (s *solo) read(path string) any {
	return s.mem.Read(models.RoomPath(soloCode) + "/" + path)
}

func TestRedundantSnapshotsInitialiseTimerOnce(t *testing.T) {
	clk := newClock(1_000_000)
	s := startSolo(t, fourSeats(clk.ms.Load()), "p1", func(o *Options) { o.Now = clk.Now })
	s.waitScreen(ScreenDiscussion)

	snap, err := s.conn.Get(s.ctx, models.RoomPath(soloCode))
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		s.client.snaps <- snapMsg{snap: snap}
	}
	s.view() // every snapshot above was handled before this returns

	require.NoError(t, s.stop())
	assert.Equal(t, 1, s.rec.count(EventTimerInitialized))
	e, _ := s.rec.find(EventTimerInitialized)
	assert.Equal(t, int64(999_000), e.At)
	assert.Equal(t, 9*time.Second, e.Remaining)
}

func TestConsensusStartsAndCancels(t *testing.T) {
	timings := slowTimings()
	timings.Tick = 10 * time.Millisecond
	timings.Consensus = time.Hour
	s := startSolo(t, fourSeats(time.Now().UnixMilli()), models.HostID, func(o *Options) { o.Timings = timings })
	s.waitScreen(ScreenDiscussion)
	path := models.RoomPath(soloCode)

	require.NoError(t, s.conn.Update(s.ctx, path, map[string]any{
		"gameState/endRequests/" + models.HostID: true,
		"gameState/endRequests/p1":               true,
		"gameState/endRequests/p2":               true,
	}))
	require.Eventually(t, func() bool { return s.rec.count(EventConsensusStarted) == 1 }, waitFor, 5*time.Millisecond)
	assert.NotNil(t, s.read("gameState/consensusExpiresAt"))
	assert.Equal(t, models.StatusDiscussion, models.Status(s.read("status").(string)))

	require.NoError(t, s.conn.Update(s.ctx, path, map[string]any{"gameState/endRequests/p2": nil}))
	require.Eventually(t, func() bool { return s.rec.count(EventConsensusCancelled) == 1 }, waitFor, 5*time.Millisecond)
	assert.Nil(t, s.read("gameState/consensusExpiresAt"))
}

func TestFullConsensusEndsDiscussion(t *testing.T) {
	timings := slowTimings()
	timings.Tick = 10 * time.Millisecond
	doc := fourSeats(time.Now().UnixMilli())
	doc.GameState.EndRequests = map[string]bool{models.HostID: true, "p1": true, "p2": true, "p3": true}
	s := startSolo(t, doc, models.HostID, func(o *Options) { o.Timings = timings })

	s.waitScreen(ScreenVoting)
	assert.Nil(t, s.read("gameState/endRequests"))
	assert.NotNil(t, s.read("gameState/votingExpiresAt"))
}

func TestWhoStartsFallbackWithoutStarter(t *testing.T) {
	timings := slowTimings()
	timings.Tick = 10 * time.Millisecond
	timings.WhoStartsFallback = 50 * time.Millisecond
	doc := fourSeats(0)
	doc.Status = models.StatusWhoStarts
	doc.GameState.DiscussionStartedAt = 0

	// p2 never holds duty, so nobody picks a starter
	s := startSolo(t, doc, "p2", func(o *Options) { o.Timings = timings })
	s.waitScreen(ScreenDiscussion)
	assert.Nil(t, s.read("gameState/startingPlayerId"))
	assert.NotNil(t, s.read("gameState/discussionStartedAt"))
}

func TestSubmitVoteRules(t *testing.T) {
	now := time.Now().UnixMilli()
	doc := fourSeats(now - 20_000)
	doc.Status = models.StatusVoting
	doc.PhaseSeq = 4
	doc.GameState.VotingExpiresAt = now + 60_000
	s := startSolo(t, doc, "p1")
	s.waitScreen(ScreenVoting)

	assert.ErrorIs(t, s.client.SubmitVote(s.ctx, []string{"p1"}), game.ErrInvalidVote)
	assert.ErrorIs(t, s.client.SubmitVote(s.ctx, []string{"ghost"}), game.ErrInvalidVote)
	assert.ErrorIs(t, s.client.SubmitVote(s.ctx, []string{"p2", "p3"}), game.ErrInvalidVote)

	require.NoError(t, s.client.SubmitVote(s.ctx, []string{"p3"}))
	assert.Equal(t, []any{"p3"}, s.read("gameState/votes/p1"))
	assert.ErrorIs(t, s.client.SubmitVote(s.ctx, []string{"p2"}), game.ErrAlreadyVoted)
	assert.Equal(t, []string{"p3"}, s.view().Vote)
}

func TestActionsOutsideTheirPhase(t *testing.T) {
	s := startSolo(t, fourSeats(time.Now().UnixMilli()), "p1")
	s.waitScreen(ScreenDiscussion)

	assert.ErrorIs(t, s.client.SubmitVote(s.ctx, []string{"p3"}), game.ErrWrongPhase)
	assert.ErrorIs(t, s.client.AcknowledgeRole(s.ctx), game.ErrWrongPhase)
}

type failingWrites struct{ store.Store }

func (failingWrites) UpdateIf(context.Context, string, []store.Condition, map[string]any) (bool, error) {
	return false, errors.New("network down")
}

func TestFailedWriteRollsBack(t *testing.T) {
	s := startSolo(t, fourSeats(time.Now().UnixMilli()), "p1", func(o *Options) {
		o.Store = failingWrites{o.Store}
	})
	s.waitScreen(ScreenDiscussion)

	err := s.client.ToggleEndRequest(s.ctx)
	assert.ErrorIs(t, err, game.ErrWriteFailure)
	assert.False(t, s.view().EndRequested)
	assert.Nil(t, s.read("gameState/endRequests"))
}

func TestToggleEndRequest(t *testing.T) {
	s := startSolo(t, fourSeats(time.Now().UnixMilli()), "p1")
	s.waitScreen(ScreenDiscussion)

	require.NoError(t, s.client.ToggleEndRequest(s.ctx))
	assert.Equal(t, true, s.read("gameState/endRequests/p1"))
	assert.True(t, s.view().EndRequested)

	require.Eventually(t, func() bool { return s.view().EndRequested }, waitFor, 5*time.Millisecond)
	require.NoError(t, s.client.ToggleEndRequest(s.ctx))
	assert.Nil(t, s.read("gameState/endRequests/p1"))
}

func TestTogglePauseAccumulates(t *testing.T) {
	clk := newClock(2_000_000)
	s := startSolo(t, fourSeats(clk.ms.Load()), "p2", func(o *Options) { o.Now = clk.Now })
	s.waitScreen(ScreenDiscussion)

	require.NoError(t, s.client.TogglePause(s.ctx))
	assert.Equal(t, true, s.read("gameState/isPaused"))
	require.Eventually(t, func() bool { return s.view().Room.GameState.IsPaused }, waitFor, 5*time.Millisecond)

	clk.Advance(5 * time.Second)
	assert.Equal(t, 9*time.Second, s.view().Remaining, "a paused clock does not run")

	require.NoError(t, s.client.TogglePause(s.ctx))
	assert.Nil(t, s.read("gameState/isPaused"))
	assert.Equal(t, float64(5_000), s.read("gameState/pausedTotal"))
}

func TestSendChat(t *testing.T) {
	s := startSolo(t, fourSeats(time.Now().UnixMilli()), "p1")
	s.waitScreen(ScreenDiscussion)

	require.NoError(t, s.client.SendChat(s.ctx, "  who said lighthouse?  "))
	assert.ErrorIs(t, s.client.SendChat(s.ctx, "   "), ErrEmptyMessage)

	chat, ok := s.read("chat").(map[string]any)
	require.True(t, ok)
	require.Len(t, chat, 1)
	for _, raw := range chat {
		var msg models.ChatMessage
		require.NoError(t, store.Snapshot{Value: raw}.Decode(&msg))
		assert.Equal(t, "who said lighthouse?", msg.Text)
		assert.Equal(t, "p1", msg.SenderID)
		assert.Equal(t, "text", msg.Type)
	}
}

func TestRoomDeletionEndsSession(t *testing.T) {
	s := startSolo(t, fourSeats(time.Now().UnixMilli()), "p1")
	s.waitScreen(ScreenDiscussion)

	require.NoError(t, s.conn.Remove(s.ctx, models.RoomPath(soloCode)))
	var err error
	select {
	case err = <-s.done:
	case <-time.After(waitFor):
		t.Fatal("session kept running")
	}
	<-s.ended
	assert.ErrorIs(t, err, game.ErrRoomClosed)
	notice, ok := s.rec.find(EventNotice)
	require.True(t, ok)
	assert.ErrorIs(t, notice.Err, game.ErrRoomClosed)
}

func TestRemovedPlayerGoesHomeSilently(t *testing.T) {
	s := startSolo(t, fourSeats(time.Now().UnixMilli()), "p1")
	s.waitScreen(ScreenDiscussion)

	require.NoError(t, s.conn.Update(s.ctx, models.RoomPath(soloCode), map[string]any{
		"players/p1":               nil,
		"gameState/assignments/p1": nil,
	}))
	var err error
	select {
	case err = <-s.done:
	case <-time.After(waitFor):
		t.Fatal("session kept running")
	}
	<-s.ended
	assert.ErrorIs(t, err, game.ErrRemoved)
	assert.Zero(t, s.rec.count(EventNotice))
}

func TestListenerErrorIsAnomaly(t *testing.T) {
	s := startSolo(t, fourSeats(time.Now().UnixMilli()), "p1")
	s.waitScreen(ScreenDiscussion)

	s.client.snaps <- snapMsg{err: errors.New("permission denied")}
	assert.Equal(t, ScreenDiscussion, s.view().Screen, "anomalies never conclude a phase")

	require.NoError(t, s.stop())
	e, ok := s.rec.find(EventAnomaly)
	require.True(t, ok)
	assert.ErrorIs(t, e.Err, game.ErrTimerSyncAnomaly)
}

func TestDroppedConnectionEndsSession(t *testing.T) {
	timings := slowTimings()
	timings.Poll = 10 * time.Millisecond
	s := startSolo(t, fourSeats(time.Now().UnixMilli()), "p1", func(o *Options) { o.Timings = timings })
	s.waitScreen(ScreenDiscussion)

	s.mem.Drop(s.conn)
	select {
	case err := <-s.done:
		assert.ErrorIs(t, err, game.ErrStoreLost)
		assert.ErrorIs(t, err, store.ErrClosed)
	case <-time.After(waitFor):
		t.Fatal("client kept running on a closed connection")
	}
	<-s.ended

	notice, ok := s.rec.find(EventNotice)
	require.True(t, ok)
	assert.ErrorIs(t, notice.Err, game.ErrStoreLost)
	events := s.rec.all()
	assert.Equal(t, Event{Kind: EventNavigate, Screen: ScreenHome}, events[len(events)-1])
}

func TestLostSubscriptionEndsSession(t *testing.T) {
	s := startSolo(t, fourSeats(time.Now().UnixMilli()), "p1")
	s.waitScreen(ScreenDiscussion)

	s.client.snaps <- snapMsg{err: remote.ErrConnectionLost}
	select {
	case err := <-s.done:
		assert.ErrorIs(t, err, game.ErrStoreLost)
		assert.ErrorIs(t, err, store.ErrConnectionLost)
	case <-time.After(waitFor):
		t.Fatal("client kept running after the link dropped")
	}
	<-s.ended
	assert.Zero(t, s.rec.count(EventAnomaly))
	assert.Equal(t, 1, s.rec.count(EventNotice))
}
