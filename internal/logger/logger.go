package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/config"
)

var (
	mu      sync.RWMutex
	logger  *zap.Logger
	level   = zap.NewAtomicLevel()
	modules = map[string]zap.AtomicLevel{}
)

// Init builds the process logger from cfg; it may be called again to rebuild
func Init(cfg *config.LogConfig) error {
	level.SetLevel(parseLevel(cfg.Level))

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var cores []zapcore.Core
	if cfg.Output == "" || cfg.Output == "stdout" || cfg.Output == "both" {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}
	if cfg.Output == "file" || cfg.Output == "both" {
		if err := os.MkdirAll(cfg.File.Path, 0o755); err != nil {
			return err
		}
		rotate := func(name string) zapcore.WriteSyncer {
			return zapcore.AddSync(&lumberjack.Logger{
				Filename:   filepath.Join(cfg.File.Path, name),
				MaxSize:    cfg.File.MaxSize,
				MaxAge:     cfg.File.MaxAge,
				MaxBackups: cfg.File.MaxBackups,
				Compress:   cfg.File.Compress,
			})
		}
		cores = append(cores,
			zapcore.NewCore(encoder, rotate(cfg.File.Filename), level),
			// errors are also kept in their own file
			zapcore.NewCore(encoder, rotate("error.log"), zapcore.ErrorLevel),
		)
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	mu.Lock()
	defer mu.Unlock()
	logger = l
	modules = make(map[string]zap.AtomicLevel, len(cfg.Modules))
	for name, lvl := range cfg.Modules {
		modules[name] = zap.NewAtomicLevelAt(parseLevel(lvl))
	}
	return nil
}

// SetLevel changes the root level without rebuilding cores
func SetLevel(lvl string) {
	level.SetLevel(parseLevel(lvl))
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// Get returns the process logger, or a nop logger before Init
func Get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// WithModule returns a named logger, filtered by its module level if one is configured
func WithModule(name string) *zap.Logger {
	mu.RLock()
	lvl, ok := modules[name]
	mu.RUnlock()

	l := Get().Named(name)
	if !ok {
		return l
	}
	return l.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &moduleCore{Core: core, level: lvl}
	}))
}

// moduleCore lets a module run quieter than the root level
type moduleCore struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (c *moduleCore) Enabled(l zapcore.Level) bool {
	return c.level.Enabled(l) && c.Core.Enabled(l)
}

func (c *moduleCore) With(fields []zapcore.Field) zapcore.Core {
	return &moduleCore{Core: c.Core.With(fields), level: c.level}
}

func (c *moduleCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.level.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// Sync flushes buffered entries
func Sync() error {
	return Get().Sync()
}
