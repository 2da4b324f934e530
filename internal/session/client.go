package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/election"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/game"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/retry"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/room"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/voice"
)

// DefaultEventBuffer is the capacity of the event channel
const DefaultEventBuffer = 256

// Options configures a Client
type Options struct {
	Store    store.Store
	Code     string
	PlayerID string
	Profile  models.Profile
	Elector  election.Elector
	Voice    voice.Channel
	Rooms    *room.Manager
	Timings  game.Timings
	Retry    retry.Policy
	Log      *zap.Logger
	Now      func() time.Time
	Rand     *rand.Rand
	Buffer   int
}

type snapMsg struct {
	snap store.Snapshot
	err  error
}

type action struct {
	fn    func(ctx context.Context) error
	reply chan error
}

// Client follows one room on behalf of one player
type Client struct {
	st      store.Store
	code    string
	me      string
	profile models.Profile
	elector election.Elector
	voice   voice.Channel
	rooms   *room.Manager
	t       game.Timings
	retry   retry.Policy
	log     *zap.Logger
	now     func() time.Time
	rng     *rand.Rand

	events  chan Event
	snaps   chan snapMsg
	actions chan action
	done    chan struct{}

	// everything below is owned by the loop goroutine
	room        *models.Room
	screen      Screen
	inGame      bool
	left        bool
	voiceOn     bool
	hostNoticed bool

	timerMark   int64 // discussionStartedAt already initialised
	tieMark     int64
	consensusAt int64
	starterID   string
	starterSeen time.Time
	whoSeq      int64
	whoSince    time.Time
	resultSeq   int64

	ready     bool
	endWanted bool
	vote      []string
	voteSeq   int64
}

// New creates a Client; call Run to start it
func New(opts Options) *Client {
	c := &Client{
		st:      opts.Store,
		code:    opts.Code,
		me:      opts.PlayerID,
		profile: opts.Profile,
		elector: opts.Elector,
		voice:   opts.Voice,
		rooms:   opts.Rooms,
		t:       opts.Timings,
		retry:   opts.Retry,
		log:     opts.Log,
		now:     opts.Now,
		rng:     opts.Rand,
		snaps:   make(chan snapMsg),
		actions: make(chan action),
		done:    make(chan struct{}),
		screen:  ScreenHome,
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.log = c.log.With(zap.String("room", c.code), zap.String("player", c.me))
	if c.elector == nil {
		c.elector = election.Convention{}
	}
	if c.voice == nil {
		c.voice = voice.Disabled{}
	}
	if c.t == (game.Timings{}) {
		c.t = game.DefaultTimings()
	}
	if c.retry.Attempts == 0 {
		c.retry = retry.Default
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.rooms == nil {
		c.rooms = room.NewManager(room.Options{Store: c.st, Timings: c.t, Log: c.log, Now: c.now})
	}
	buf := opts.Buffer
	if buf <= 0 {
		buf = DefaultEventBuffer
	}
	c.events = make(chan Event, buf)
	return c
}

// Events returns the event stream; it is closed when Run returns
func (c *Client) Events() <-chan Event {
	return c.events
}

// Run follows the room until ctx ends, the player leaves, or the room
// sends the player home. A voluntary exit returns nil.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)
	defer close(c.done)

	unsub, err := c.st.Subscribe(ctx, models.RoomPath(c.code), c.onSnapshot)
	if err != nil {
		return fmt.Errorf("subscribe room %s: %w", c.code, err)
	}
	defer unsub()

	tick := time.NewTicker(c.t.Tick)
	defer tick.Stop()
	poll := time.NewTicker(c.t.Poll)
	defer poll.Stop()

	c.log.Info("session started")
	for {
		var err error
		select {
		case <-ctx.Done():
			return c.finish(nil)
		case m := <-c.snaps:
			err = c.observe(ctx, m)
		case <-tick.C:
			err = c.tick(ctx)
		case <-poll.C:
			err = c.verify(ctx)
		case a := <-c.actions:
			a.reply <- a.fn(ctx)
		}
		if err != nil {
			return c.finish(err)
		}
		if c.left {
			return c.finish(nil)
		}
	}
}

func (c *Client) onSnapshot(snap store.Snapshot, err error) {
	select {
	case c.snaps <- snapMsg{snap: snap, err: err}:
	case <-c.done:
	}
}

// call runs fn on the loop goroutine and waits for its result
func (c *Client) call(ctx context.Context, fn func(ctx context.Context) error) error {
	a := action{fn: fn, reply: make(chan error, 1)}
	select {
	case c.actions <- a:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return game.ErrRoomClosed
	}
	select {
	case err := <-a.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// View returns a copy of the client's current derived state
func (c *Client) View(ctx context.Context) (View, error) {
	var v View
	err := c.call(ctx, func(context.Context) error {
		v = c.view()
		return nil
	})
	return v, err
}

func (c *Client) view() View {
	v := View{
		Screen:       c.screen,
		Room:         c.room,
		Ready:        c.ready,
		EndRequested: c.endWanted,
		Vote:         append([]string(nil), c.vote...),
	}
	if c.room == nil || c.room.GameState == nil {
		return v
	}
	now := game.Millis(c.now())
	gs := c.room.GameState
	switch c.room.Status {
	case models.StatusDiscussion:
		v.Remaining = clampMillis(gs.DiscussionRemaining(now))
		if gs.ConsensusExpiresAt > 0 {
			v.Consensus = clampMillis(gs.ConsensusExpiresAt - now)
		}
	case models.StatusVoting:
		if gs.VotingExpiresAt > 0 {
			v.VoteTimeLeft = clampMillis(gs.VotingExpiresAt - now)
		}
	}
	return v
}

func clampMillis(ms int64) time.Duration {
	if ms < 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}

func (c *Client) emit(e Event) {
	if e.Screen == "" {
		e.Screen = c.screen
	}
	select {
	case c.events <- e:
	default:
		c.log.Warn("event dropped, consumer too slow", zap.String("kind", string(e.Kind)))
	}
}

func (c *Client) navigate(to Screen) {
	if c.screen == to {
		return
	}
	c.log.Debug("navigate", zap.String("from", string(c.screen)), zap.String("to", string(to)))
	c.screen = to
	c.emit(Event{Kind: EventNavigate, Screen: to})
}

func (c *Client) anomaly(err error) {
	err = fmt.Errorf("%w: %v", game.ErrTimerSyncAnomaly, err)
	c.log.Warn("room listener anomaly", zap.Error(err))
	c.emit(Event{Kind: EventAnomaly, Err: err})
}

// finish tears the session down; structural errors get one notice first
func (c *Client) finish(err error) error {
	c.leaveVoice()
	if err != nil && !errors.Is(err, game.ErrRemoved) {
		c.emit(Event{Kind: EventNotice, Err: err})
	}
	c.navigate(ScreenHome)
	if err != nil {
		c.log.Info("session ended", zap.Error(err))
	} else {
		c.log.Info("session ended")
	}
	return err
}

func (c *Client) joinVoice(ctx context.Context) {
	if c.voiceOn {
		return
	}
	c.voiceOn = true
	if err := c.voice.Join(ctx, c.code, c.profile.UID); err != nil {
		if errors.Is(err, voice.ErrVoiceDisabled) {
			c.log.Debug("voice disabled")
			return
		}
		c.log.Warn("voice join failed", zap.Error(err))
	}
}

func (c *Client) leaveVoice() {
	if !c.voiceOn {
		return
	}
	c.voiceOn = false
	if err := c.voice.Leave(context.Background()); err != nil {
		c.log.Warn("voice leave failed", zap.Error(err))
	}
}

func (c *Client) lobbyScreen() Screen {
	if c.me == models.HostID {
		return ScreenHost
	}
	return ScreenLobby
}
