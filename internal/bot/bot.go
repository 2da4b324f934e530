package bot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/election"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/game"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/retry"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/room"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/session"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/voice"
)

// DefaultThink is the pause before a bot acts on a new screen
const DefaultThink = 200 * time.Millisecond

var names = []string{"Hana", "Ana", "Ben", "Cleo", "Dev", "Eli", "Fay", "Gus", "Ida", "Jon"}

// Options configures a simulated table
type Options struct {
	// Connect opens the store connection of one seat
	Connect    func(ctx context.Context) (store.Store, error)
	Players    int // seats besides the host
	Impostors  int
	Rounds     int
	Categories []string
	Language   string
	Words      room.WordPicker
	Timings    game.Timings
	Retry      retry.Policy
	Election   string
	Think      time.Duration
	Insight    float64 // chance a citizen points at a real impostor first
	Seed       int64
	Log        *zap.Logger
}

// Report summarises a finished table
type Report struct {
	Code   string
	Rounds []session.Outcome
}

// Wins counts the rounds won by role
func (r *Report) Wins(role models.Role) int {
	n := 0
	for _, o := range r.Rounds {
		if o.Winners == role {
			n++
		}
	}
	return n
}

type seat struct {
	id      string
	name    string
	profile models.Profile
	st      store.Store
	client  *session.Client
	voice   *voice.Logging
	rng     *rand.Rand
	log     *zap.Logger
}

// Play seats a host and opts.Players bots, then plays opts.Rounds games to the result
func Play(ctx context.Context, opts Options) (*Report, error) {
	if opts.Players < game.MinPlayers-1 {
		return nil, fmt.Errorf("%w: a table needs at least %d bots", game.ErrNotEnoughPlayers, game.MinPlayers-1)
	}
	if opts.Connect == nil {
		return nil, errors.New("bot: no store connector")
	}
	if opts.Impostors <= 0 {
		opts.Impostors = 1
	}
	if opts.Rounds <= 0 {
		opts.Rounds = 1
	}
	if opts.Think <= 0 {
		opts.Think = DefaultThink
	}
	if opts.Timings == (game.Timings{}) {
		opts.Timings = game.DefaultTimings()
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	ctx, cancel := context.WithCancel(ctx)
	var (
		wg    sync.WaitGroup
		seats []*seat
	)
	defer func() {
		cancel()
		wg.Wait()
		for _, s := range seats {
			if err := s.st.Close(); err != nil {
				log.Debug("seat store close", zap.String("seat", s.name), zap.Error(err))
			}
		}
	}()

	open := func(id string, i int) (*seat, error) {
		p := profile(i)
		st, err := opts.Connect(ctx)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", p.Name, err)
		}
		s := &seat{id: id, name: p.Name, profile: p, st: st, rng: rand.New(rand.NewSource(rng.Int63())), log: log.Named(p.Name)}
		s.voice = voice.NewLogging(s.log)
		seats = append(seats, s)
		return s, nil
	}

	host, err := open(models.HostID, 0)
	if err != nil {
		return nil, err
	}
	rooms := room.NewManager(room.Options{
		Store:   host.st,
		Words:   opts.Words,
		Timings: opts.Timings,
		Log:     log.Named("rooms"),
		Rand:    rand.New(rand.NewSource(rng.Int63())),
	})
	code, err := rooms.CreateRoom(ctx, host.profile)
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("room", code))
	log.Info("table opened", zap.Int("bots", opts.Players), zap.Int("rounds", opts.Rounds))

	for i := 1; i <= opts.Players; i++ {
		s, err := open("", i)
		if err != nil {
			return nil, err
		}
		s.id, err = room.NewManager(room.Options{Store: s.st, Timings: opts.Timings, Log: s.log}).JoinRoom(ctx, code, s.profile)
		if err != nil {
			return nil, fmt.Errorf("join %s: %w", s.name, err)
		}
	}

	results := make(chan session.Outcome, opts.Rounds)
	failures := make(chan error, len(seats))
	for _, s := range seats {
		elector, err := election.New(opts.Election, s.st, opts.Timings.LeaseTTL, nil)
		if err != nil {
			return nil, err
		}
		s.client = session.New(session.Options{
			Store:    s.st,
			Code:     code,
			PlayerID: s.id,
			Profile:  s.profile,
			Elector:  elector,
			Voice:    s.voice,
			Rooms:    room.NewManager(room.Options{Store: s.st, Timings: opts.Timings, Log: s.log}),
			Timings:  opts.Timings,
			Retry:    opts.Retry,
			Log:      s.log,
			Rand:     rand.New(rand.NewSource(rng.Int63())),
		})
		var outcomes chan<- session.Outcome
		if s.id == models.HostID {
			outcomes = results
		}
		events := s.client.Events()
		wg.Add(2)
		go func(s *seat) {
			defer wg.Done()
			err := s.client.Run(ctx)
			if err != nil && !errors.Is(err, game.ErrRoomClosed) {
				failures <- fmt.Errorf("%s: %w", s.name, err)
			}
		}(s)
		go func(s *seat) {
			defer wg.Done()
			s.drive(ctx, events, opts, outcomes)
		}(s)
	}

	settings := models.Settings{ImposterCount: opts.Impostors, Categories: opts.Categories, Language: opts.Language}
	if err := rooms.StartGame(ctx, code, settings); err != nil {
		return nil, err
	}

	report := &Report{Code: code}
	for len(report.Rounds) < opts.Rounds {
		select {
		case out := <-results:
			report.Rounds = append(report.Rounds, out)
			log.Info("round played",
				zap.Int("round", len(report.Rounds)),
				zap.String("winners", string(out.Winners)),
				zap.String("word", out.SecretWord),
				zap.Bool("timedOut", out.TimedOut),
			)
			if len(report.Rounds) == opts.Rounds {
				continue
			}
			if err := pause(ctx, opts.Think); err != nil {
				return report, err
			}
			if err := rooms.Restart(ctx, code); err != nil {
				return report, fmt.Errorf("restart: %w", err)
			}
		case err := <-failures:
			return report, err
		case <-ctx.Done():
			return report, ctx.Err()
		}
	}

	if err := rooms.CloseRoom(ctx, code); err != nil {
		return report, fmt.Errorf("close room: %w", err)
	}
	log.Info("table closed", zap.Int("citizenWins", report.Wins(models.RoleCitizen)), zap.Int("impostorWins", report.Wins(models.RoleImpostor)))
	return report, nil
}

func seatName(i int) string {
	if i < len(names) {
		return names[i]
	}
	return fmt.Sprintf("Bot %d", i)
}

func profile(i int) models.Profile {
	return models.Profile{UID: "bot-" + uuid.NewString(), Name: seatName(i), AvatarID: i%12 + 1}
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
