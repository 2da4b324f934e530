package session

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/game"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/retry"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/room"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/voice"
)

const waitFor = 3 * time.Second

func fastTimings() game.Timings {
	return game.Timings{
		Tick:                10 * time.Millisecond,
		Poll:                100 * time.Millisecond,
		DiscussionPerPlayer: 100 * time.Millisecond,
		TieDiscussion:       time.Minute,
		Voting:              5 * time.Second,
		Consensus:           200 * time.Millisecond,
		WhoStartsCountdown:  30 * time.Millisecond,
		WhoStartsFallback:   60 * time.Millisecond,
		TakeoverGrace:       50 * time.Millisecond,
		LeaseTTL:            100 * time.Millisecond,
	}
}

type staticWords struct{}

func (staticWords) Pick([]string) (models.Word, error) {
	return models.Word{Word: "Lighthouse", Hint: "Coast", ImpostorHint: "Buildings", Category: "places"}, nil
}

// recorder keeps every event a client emitted
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, e := range r.all() {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) find(kind EventKind) (Event, bool) {
	for _, e := range r.all() {
		if e.Kind == kind {
			return e, true
		}
	}
	return Event{}, false
}

type seat struct {
	id      string
	conn    *store.Conn
	client  *Client
	voice   *voice.Logging
	rec     *recorder
	done    chan error
	drained chan struct{} // closed once every event was recorded
}

// wait blocks until Run returned
func (s *seat) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-s.done:
		<-s.drained
		return err
	case <-time.After(waitFor):
		t.Fatalf("client %s did not stop", s.id)
		return nil
	}
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	mem     *store.Memory
	timings game.Timings
	code    string
	host    *room.Manager
	seats   []*seat
}

// newHarness seats a host and the named players in a fresh lobby, each with a running client
func newHarness(t *testing.T, timings game.Timings, names ...string) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{t: t, ctx: ctx, mem: store.NewMemory(zaptest.NewLogger(t)), timings: timings}

	hostConn := h.mem.Connect()
	h.host = room.NewManager(room.Options{Store: hostConn, Words: staticWords{}, Timings: timings, Rand: rand.New(rand.NewSource(1))})
	code, err := h.host.CreateRoom(ctx, models.Profile{UID: "u-host", Name: "Hana"})
	require.NoError(t, err)
	h.code = code
	h.seat(models.HostID, hostConn, "Hana")

	for _, name := range names {
		conn := h.mem.Connect()
		id, err := room.NewManager(room.Options{Store: conn, Timings: timings}).JoinRoom(ctx, code, models.Profile{UID: "u-" + name, Name: name})
		require.NoError(t, err)
		h.seat(id, conn, name)
	}

	t.Cleanup(func() {
		cancel()
		for _, s := range h.seats {
			select {
			case <-s.done:
			case <-time.After(waitFor):
			}
		}
	})
	return h
}

func (h *harness) seat(id string, conn *store.Conn, name string) {
	s := &seat{
		id:      id,
		conn:    conn,
		voice:   voice.NewLogging(nil),
		rec:     &recorder{},
		done:    make(chan error, 1),
		drained: make(chan struct{}),
	}
	s.client = New(Options{
		Store:    conn,
		Code:     h.code,
		PlayerID: id,
		Profile:  models.Profile{UID: "u-" + name, Name: name},
		Voice:    s.voice,
		Timings:  h.timings,
		Retry:    retry.Policy{Attempts: 2, Base: 5 * time.Millisecond},
		Log:      zaptest.NewLogger(h.t).Named(name),
		Rand:     rand.New(rand.NewSource(int64(len(h.seats) + 1))),
	})
	events := s.client.Events()
	go func() {
		defer close(s.drained)
		for e := range events {
			s.rec.add(e)
		}
	}()
	go func() { s.done <- s.client.Run(h.ctx) }()
	h.seats = append(h.seats, s)
}

func (h *harness) room() *models.Room {
	h.t.Helper()
	r, ok, err := room.Decode(h.code, store.Snapshot{Value: h.mem.Read(models.RoomPath(h.code))})
	require.NoError(h.t, err)
	if !ok {
		return nil
	}
	return r
}

func (h *harness) waitRoom(desc string, cond func(r *models.Room) bool) *models.Room {
	h.t.Helper()
	var last *models.Room
	require.Eventually(h.t, func() bool {
		last = h.room()
		return last != nil && cond(last)
	}, waitFor, 5*time.Millisecond, desc)
	return last
}

func (h *harness) waitScreen(s *seat, screen Screen) {
	h.t.Helper()
	require.Eventually(h.t, func() bool {
		v, err := s.client.View(h.ctx)
		return err == nil && v.Screen == screen
	}, waitFor, 5*time.Millisecond, "%s never reached %s", s.id, screen)
}

func (h *harness) waitAll(screen Screen) {
	h.t.Helper()
	for _, s := range h.seats {
		h.waitScreen(s, screen)
	}
}

// deal starts the game and acknowledges every card
func (h *harness) deal() {
	h.t.Helper()
	require.NoError(h.t, h.host.StartGame(h.ctx, h.code, models.Settings{ImposterCount: 1}))
	h.waitAll(ScreenReveal)
	for _, s := range h.seats {
		require.NoError(h.t, s.client.AcknowledgeRole(h.ctx))
	}
}

func (h *harness) byID(id string) *seat {
	for _, s := range h.seats {
		if s.id == id {
			return s
		}
	}
	h.t.Fatalf("no seat %s", id)
	return nil
}

// roles splits the seats into the impostor and the citizens
func (h *harness) roles() (impostor *seat, citizens []*seat) {
	gs := h.room().GameState
	for _, s := range h.seats {
		if gs.Assignments[s.id].IsImposter {
			impostor = s
		} else {
			citizens = append(citizens, s)
		}
	}
	return impostor, citizens
}
