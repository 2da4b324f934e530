package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/config"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/logger"
)

const usage = `usage:
  impostor serve [-config path]
  impostor play [-config path] [-players N] [-impostors K] [-rounds R] [-store memory|remote|redis] [-url ws://..]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "play":
		err = runPlay(ctx, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	_ = logger.Sync()
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintln(os.Stderr, "impostor:", err)
		os.Exit(1)
	}
}

// setup loads configuration and starts the process logger
func setup(fs *flag.FlagSet, args []string) (*config.Loader, error) {
	path := fs.String("config", "", "config file (default ./config.yaml or ./config/config.yaml)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	loader, err := config.Load(*path)
	if err != nil {
		return nil, err
	}
	cfg := loader.Config()
	if err := logger.Init(&cfg.Log); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.Get().Info("config loaded",
		zap.String("backend", cfg.Store.Backend),
		zap.String("election", cfg.Store.Election),
		zap.String("words", cfg.Words.Source),
	)
	return loader, nil
}
