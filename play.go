package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/bot"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/config"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/logger"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store/redisstore"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store/remote"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/words"
)

// runPlay seats a bot table and prints the outcome of every round
func runPlay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	players := fs.Int("players", 4, "bots besides the host")
	impostors := fs.Int("impostors", 0, "impostors per round (default from config)")
	rounds := fs.Int("rounds", 1, "rounds to play")
	backend := fs.String("store", "", "memory, remote or redis (default from config)")
	url := fs.String("url", "", "document server websocket url (default from config)")
	think := fs.Duration("think", bot.DefaultThink, "bot reaction delay")
	insight := fs.Float64("insight", 0.5, "chance a citizen suspects a real impostor")
	seed := fs.Int64("seed", 0, "random seed (default time based)")

	loader, err := setup(fs, args)
	if err != nil {
		return err
	}
	cfg := loader.Config()
	if *backend != "" {
		cfg.Store.Backend = *backend
	}
	if *url != "" {
		cfg.WebSocket.URL = *url
	}
	if *impostors <= 0 {
		*impostors = cfg.Game.ImposterCount
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	log := logger.WithModule("play")

	picker, closeWords, err := openWords(ctx, cfg.Words, rand.New(rand.NewSource(*seed)))
	if err != nil {
		return err
	}
	defer closeWords()

	connect, closeBackend, err := seatConnector(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeBackend()

	report, err := bot.Play(ctx, bot.Options{
		Connect:    connect,
		Players:    *players,
		Impostors:  *impostors,
		Rounds:     *rounds,
		Categories: cfg.Game.Categories,
		Language:   cfg.Game.Language,
		Words:      picker,
		Timings:    cfg.Timings(),
		Retry:      cfg.RetryPolicy(),
		Election:   cfg.Store.Election,
		Think:      *think,
		Insight:    *insight,
		Seed:       *seed,
		Log:        logger.WithModule("bot"),
	})
	if report != nil {
		for i, out := range report.Rounds {
			ejected := "nobody"
			if out.Ejected != nil {
				ejected = out.Ejected.Name
			}
			fmt.Printf("room %s round %d: %s win, word %q, ejected %s\n", report.Code, i+1, out.Winners, out.SecretWord, ejected)
		}
		log.Info("table finished",
			zap.Int("citizens", report.Wins(models.RoleCitizen)),
			zap.Int("impostors", report.Wins(models.RoleImpostor)),
		)
	}
	return err
}

// seatConnector opens one store connection per bot against the configured backend
func seatConnector(ctx context.Context, cfg *config.Config) (func(context.Context) (store.Store, error), func(), error) {
	switch cfg.Store.Backend {
	case "memory":
		mem := store.NewMemory(logger.WithModule("store"))
		return func(context.Context) (store.Store, error) { return mem.Connect(), nil }, func() {}, nil
	case "remote":
		wsURL := cfg.WebSocket.URL
		log := logger.WithModule("remote")
		return func(ctx context.Context) (store.Store, error) {
			dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return remote.Dial(dialCtx, wsURL, nil, log)
		}, func() {}, nil
	case "redis":
		b, err := redisstore.New(ctx, cfg.Redis, logger.WithModule("store"))
		if err != nil {
			return nil, nil, err
		}
		return func(context.Context) (store.Store, error) { return b.Connect(), nil }, func() { b.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// openWords builds the word picker from the configured catalog
func openWords(ctx context.Context, cfg config.WordsConfig, rng *rand.Rand) (*words.Picker, func(), error) {
	switch cfg.Source {
	case "embedded":
		catalog, err := words.LoadEmbedded()
		if err != nil {
			return nil, nil, err
		}
		return words.NewPicker(catalog, rng), func() {}, nil
	case "file":
		catalog, err := words.LoadFile(cfg.File)
		if err != nil {
			return nil, nil, err
		}
		return words.NewPicker(catalog, rng), func() {}, nil
	case "sql":
		db, err := words.OpenSQL(cfg.Driver, cfg.DSN, logger.WithModule("words"))
		if err != nil {
			return nil, nil, err
		}
		if cfg.Seed {
			embedded, err := words.LoadEmbedded()
			if err == nil {
				err = db.Seed(ctx, embedded)
			}
			if err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("seed word catalog: %w", err)
			}
		}
		return words.NewPicker(db, rng), func() { db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown word source %q", cfg.Source)
	}
}
