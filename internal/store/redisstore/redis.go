// Package redisstore keeps room documents in Redis, one JSON value per room.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
)

// txAttempts bounds optimistic transaction retries on a contended key
const txAttempts = 16

// Options configures the Redis connection
type Options struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	Prefix       string        `mapstructure:"prefix"`
	PoolSize     int           `mapstructure:"pool_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Backend is a shared Redis client; each player opens its own Conn
type Backend struct {
	rdb    *redis.Client
	prefix string
	log    *zap.Logger
}

// New connects to Redis and verifies the server answers
func New(ctx context.Context, opts Options, log *zap.Logger) (*Backend, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Prefix == "" {
		opts.Prefix = "impostor:"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MaxRetries:   opts.MaxRetries,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	log.Info("connected to redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return &Backend{rdb: rdb, prefix: opts.Prefix, log: log}, nil
}

// Close releases the Redis pool
func (b *Backend) Close() error {
	return b.rdb.Close()
}

// Connect opens a logical client connection
func (b *Backend) Connect() *Conn {
	return &Conn{b: b}
}

// locate maps a path to its document key and the path inside that document
func (b *Backend) locate(path string) (key, channel, rel string, err error) {
	segs := store.SplitPath(path)
	if len(segs) < 2 {
		return "", "", "", fmt.Errorf("%w: %q", store.ErrUnsupportedPath, path)
	}
	doc := segs[0] + "/" + segs[1]
	return b.prefix + "doc:" + doc, b.prefix + "chan:" + doc, strings.Join(segs[2:], "/"), nil
}

func (b *Backend) load(ctx context.Context, get func(ctx context.Context, key string) *redis.StringCmd, key string) (*store.Tree, error) {
	raw, err := get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return store.NewTree(nil), nil
	}
	if err != nil {
		return nil, err
	}
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return store.NewTree(root), nil
}

// mutate runs fn against the document inside WATCH/MULTI and publishes the result
func (b *Backend) mutate(ctx context.Context, path string, fn func(t *store.Tree, rel string) (bool, error)) (bool, error) {
	key, channel, rel, err := b.locate(path)
	if err != nil {
		return false, err
	}

	var applied bool
	txf := func(tx *redis.Tx) error {
		tree, err := b.load(ctx, tx.Get, key)
		if err != nil {
			return err
		}
		ok, err := fn(tree, rel)
		if err != nil || !ok {
			applied = false
			return err
		}
		var payload []byte
		if root := tree.Root(); root != nil {
			if payload, err = json.Marshal(root); err != nil {
				return err
			}
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			if payload == nil {
				p.Del(ctx, key)
			} else {
				p.Set(ctx, key, payload, 0)
			}
			p.Publish(ctx, channel, payload)
			return nil
		})
		applied = err == nil
		return err
	}

	for attempt := 0; attempt < txAttempts; attempt++ {
		err = b.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return applied, err
		}
		b.log.Debug("redis transaction contended", zap.String("key", key), zap.Int("attempt", attempt+1))
	}
	return false, fmt.Errorf("update %s: %w", key, err)
}

// Conn is one player's view of the Redis backend
type Conn struct {
	b *Backend

	mu     sync.Mutex
	closed bool
	onDisc []store.Op
	unsubs []store.Unsubscribe
}

var _ store.Store = (*Conn)(nil)

func (c *Conn) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return store.ErrClosed
	}
	return nil
}

// Get reads the subtree at path
func (c *Conn) Get(ctx context.Context, path string) (store.Snapshot, error) {
	if err := c.check(ctx); err != nil {
		return store.Snapshot{}, err
	}
	key, _, rel, err := c.b.locate(path)
	if err != nil {
		return store.Snapshot{}, err
	}
	tree, err := c.b.load(ctx, c.b.rdb.Get, key)
	if err != nil {
		return store.Snapshot{}, err
	}
	return store.Snapshot{Path: path, Value: tree.Get(rel)}, nil
}

// Set replaces the subtree at path
func (c *Conn) Set(ctx context.Context, path string, value any) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	_, err := c.b.mutate(ctx, path, func(t *store.Tree, rel string) (bool, error) {
		return true, t.Set(rel, value)
	})
	return err
}

// Update merges fields under path
func (c *Conn) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	_, err := c.b.mutate(ctx, path, func(t *store.Tree, rel string) (bool, error) {
		return true, t.Update(rel, fields)
	})
	return err
}

// UpdateIf merges fields when every condition holds inside the transaction
func (c *Conn) UpdateIf(ctx context.Context, path string, conds []store.Condition, fields map[string]any) (bool, error) {
	if err := c.check(ctx); err != nil {
		return false, err
	}
	return c.b.mutate(ctx, path, func(t *store.Tree, rel string) (bool, error) {
		ok, err := t.Check(rel, conds)
		if err != nil || !ok {
			return false, err
		}
		return true, t.Update(rel, fields)
	})
}

// Remove deletes the subtree at path
func (c *Conn) Remove(ctx context.Context, path string) error {
	return c.Set(ctx, path, nil)
}

// Push appends value under a new time-ordered key
func (c *Conn) Push(ctx context.Context, path string, value any) (string, error) {
	key, err := store.NewPushKey()
	if err != nil {
		return "", err
	}
	return key, c.Set(ctx, store.JoinPath(path, key), value)
}

// Subscribe listens on the document channel and delivers the value at path
func (c *Conn) Subscribe(ctx context.Context, path string, handler store.Handler) (store.Unsubscribe, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	key, channel, rel, err := c.b.locate(path)
	if err != nil {
		return nil, err
	}

	ps := c.b.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	// read after the subscription is live so no change falls between
	tree, err := c.b.load(ctx, c.b.rdb.Get, key)
	if err != nil {
		ps.Close()
		return nil, err
	}

	box := store.NewMailbox(handler)
	last := tree.Get(rel)
	box.Offer(store.Snapshot{Path: path, Value: last})

	stop := make(chan struct{})
	go func() {
		msgs := ps.Channel()
		for {
			select {
			case <-stop:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var root any
				if msg.Payload != "" {
					if err := json.Unmarshal([]byte(msg.Payload), &root); err != nil {
						box.Fail(fmt.Errorf("decode %s: %w", channel, err))
						continue
					}
				}
				v := store.NewTree(root).Get(rel)
				if equal(v, last) {
					continue
				}
				last = v
				box.Offer(store.Snapshot{Path: path, Value: v})
			}
		}
	}()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			close(stop)
			ps.Close()
			box.Close()
		})
	}
	c.mu.Lock()
	c.unsubs = append(c.unsubs, unsub)
	c.mu.Unlock()
	return unsub, nil
}

// OnDisconnect queues op to run when this Conn closes
func (c *Conn) OnDisconnect(ctx context.Context, op store.Op) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	if _, _, _, err := c.b.locate(op.Path); err != nil {
		return err
	}
	c.mu.Lock()
	c.onDisc = append(c.onDisc, op)
	c.mu.Unlock()
	return nil
}

// CancelOnDisconnect drops queued ops registered at path
func (c *Conn) CancelOnDisconnect(ctx context.Context, path string) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.onDisc[:0]
	for _, op := range c.onDisc {
		if op.Path != path {
			kept = append(kept, op)
		}
	}
	c.onDisc = kept
	return nil
}

// Close stops subscriptions and runs queued disconnect ops
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ops, unsubs := c.onDisc, c.unsubs
	c.onDisc, c.unsubs = nil, nil
	c.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var errs []error
	for _, op := range ops {
		op := op
		if _, err := c.b.mutate(ctx, op.Path, func(t *store.Tree, rel string) (bool, error) {
			local := op
			local.Path = rel
			ok, err := t.Check(rel, op.Conds)
			if err != nil || !ok {
				return false, err
			}
			local.Conds = nil
			return true, t.Apply(local)
		}); err != nil {
			c.b.log.Warn("disconnect op failed", zap.String("path", op.Path), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func equal(a, b any) bool {
	ra, errA := json.Marshal(a)
	rb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ra) == string(rb)
}
