package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/game"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/retry"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store/redisstore"
)

// EnvPrefix namespaces environment overrides, e.g. IMPOSTOR_SERVER_PORT
const EnvPrefix = "IMPOSTOR"

// Config is the full application configuration
type Config struct {
	Server    ServerConfig       `mapstructure:"server"`
	WebSocket WebSocketConfig    `mapstructure:"websocket"`
	Store     StoreConfig        `mapstructure:"store"`
	Redis     redisstore.Options `mapstructure:"redis"`
	Game      GameConfig         `mapstructure:"game"`
	Words     WordsConfig        `mapstructure:"words"`
	Log       LogConfig          `mapstructure:"log"`
	Security  SecurityConfig     `mapstructure:"security"`
	Monitor   MonitorConfig      `mapstructure:"monitor"`
}

// ServerConfig configures the document server
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WebSocketConfig configures the store protocol endpoint
type WebSocketConfig struct {
	Path            string `mapstructure:"path"`
	URL             string `mapstructure:"url"`
	ReadBufferSize  int    `mapstructure:"read_buffer_size"`
	WriteBufferSize int    `mapstructure:"write_buffer_size"`
}

// StoreConfig picks the document backend and the election strategy
type StoreConfig struct {
	Backend  string `mapstructure:"backend"`
	Election string `mapstructure:"election"`
}

// GameConfig holds the session clocks and default settings
type GameConfig struct {
	Tick                time.Duration `mapstructure:"tick"`
	Poll                time.Duration `mapstructure:"poll"`
	DiscussionPerPlayer time.Duration `mapstructure:"discussion_per_player"`
	TieDiscussion       time.Duration `mapstructure:"tie_discussion"`
	Voting              time.Duration `mapstructure:"voting"`
	Consensus           time.Duration `mapstructure:"consensus"`
	WhoStartsCountdown  time.Duration `mapstructure:"who_starts_countdown"`
	WhoStartsFallback   time.Duration `mapstructure:"who_starts_fallback"`
	TakeoverGrace       time.Duration `mapstructure:"takeover_grace"`
	LeaseTTL            time.Duration `mapstructure:"lease_ttl"`
	ImposterCount       int           `mapstructure:"imposter_count"`
	Language            string        `mapstructure:"language"`
	Categories          []string      `mapstructure:"categories"`
	Retry               RetryConfig   `mapstructure:"retry"`
}

// RetryConfig bounds transition write retries
type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Base     time.Duration `mapstructure:"base"`
	Jitter   time.Duration `mapstructure:"jitter"`
}

// WordsConfig picks the word catalog source
type WordsConfig struct {
	Source string `mapstructure:"source"`
	File   string `mapstructure:"file"`
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Seed   bool   `mapstructure:"seed"`
}

// LogConfig configures zap
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig configures rotation
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig groups abuse protection
type SecurityConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig is a per-connection token bucket
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// MonitorConfig configures metrics collection
type MonitorConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MetricsInterval time.Duration `mapstructure:"metrics_interval"`
}

// Timings converts the game section to engine clocks; zero values keep defaults
func (c *Config) Timings() game.Timings {
	t := game.DefaultTimings()
	g := c.Game
	set := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	set(&t.Tick, g.Tick)
	set(&t.Poll, g.Poll)
	set(&t.DiscussionPerPlayer, g.DiscussionPerPlayer)
	set(&t.TieDiscussion, g.TieDiscussion)
	set(&t.Voting, g.Voting)
	set(&t.Consensus, g.Consensus)
	set(&t.WhoStartsCountdown, g.WhoStartsCountdown)
	set(&t.WhoStartsFallback, g.WhoStartsFallback)
	set(&t.TakeoverGrace, g.TakeoverGrace)
	set(&t.LeaseTTL, g.LeaseTTL)
	return t
}

// RetryPolicy returns the transition retry policy
func (c *Config) RetryPolicy() retry.Policy {
	p := retry.Default
	if r := c.Game.Retry; r.Attempts > 0 {
		p = retry.Policy{Attempts: r.Attempts, Base: r.Base, Jitter: r.Jitter}
	}
	return p
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "remote", "redis":
	default:
		return fmt.Errorf("store.backend: unknown backend %q", c.Store.Backend)
	}
	switch c.Words.Source {
	case "embedded", "file", "sql":
	default:
		return fmt.Errorf("words.source: unknown source %q", c.Words.Source)
	}
	if c.Game.ImposterCount < 1 {
		return fmt.Errorf("game.imposter_count: %w", game.ErrInvalidImpostorCount)
	}
	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RequestsPerSecond <= 0 || c.Security.RateLimit.Burst < 1) {
		return errors.New("security.rate_limit: requests_per_second and burst must be positive")
	}
	if c.Monitor.Enabled && c.Monitor.MetricsInterval <= 0 {
		return errors.New("monitor.metrics_interval: must be positive")
	}
	return nil
}

// Loader owns the viper instance behind a Config
type Loader struct {
	v   *viper.Viper
	mu  sync.RWMutex
	cfg *Config
}

// Load reads .env, the config file (optional) and IMPOSTOR_* overrides
func Load(configPath string) (*Loader, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	l := &Loader{v: v}
	cfg, err := l.decode()
	if err != nil {
		return nil, err
	}
	l.cfg = cfg
	return l, nil
}

func (l *Loader) decode() (*Config, error) {
	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Config returns the current configuration
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Watch reloads on file changes; invalid edits are reported and ignored
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	l.v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := l.decode()
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		l.mu.Lock()
		l.cfg = cfg
		l.mu.Unlock()
		if onChange != nil {
			onChange(cfg)
		}
	})
	l.v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.url", "ws://127.0.0.1:8080/ws")
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.election", "convention")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "impostor:")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	d := game.DefaultTimings()
	v.SetDefault("game.tick", d.Tick)
	v.SetDefault("game.poll", d.Poll)
	v.SetDefault("game.discussion_per_player", d.DiscussionPerPlayer)
	v.SetDefault("game.tie_discussion", d.TieDiscussion)
	v.SetDefault("game.voting", d.Voting)
	v.SetDefault("game.consensus", d.Consensus)
	v.SetDefault("game.who_starts_countdown", d.WhoStartsCountdown)
	v.SetDefault("game.who_starts_fallback", d.WhoStartsFallback)
	v.SetDefault("game.takeover_grace", d.TakeoverGrace)
	v.SetDefault("game.lease_ttl", d.LeaseTTL)
	v.SetDefault("game.imposter_count", 1)
	v.SetDefault("game.language", "en")
	v.SetDefault("game.categories", []string{"all"})
	v.SetDefault("game.retry.attempts", retry.Default.Attempts)
	v.SetDefault("game.retry.base", retry.Default.Base)
	v.SetDefault("game.retry.jitter", retry.Default.Jitter)

	v.SetDefault("words.source", "embedded")
	v.SetDefault("words.driver", "sqlite")
	v.SetDefault("words.dsn", "./data/words.db")
	v.SetDefault("words.seed", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "impostor.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests_per_second", 20)
	v.SetDefault("security.rate_limit.burst", 40)

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.metrics_interval", "15s")
}
