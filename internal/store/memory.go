package store

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Memory is an in-process shared document tree
type Memory struct {
	mu      sync.RWMutex
	tree    *Tree
	subs    map[uint64]*memorySub
	nextSub uint64
	conns   map[string]*Conn
	log     *zap.Logger
}

type memorySub struct {
	id     uint64
	path   string
	box    *Mailbox
	last   any
	primed bool
}

// NewMemory creates an empty document tree
func NewMemory(log *zap.Logger) *Memory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Memory{
		tree:  NewTree(nil),
		subs:  make(map[uint64]*memorySub),
		conns: make(map[string]*Conn),
		log:   log,
	}
}

// Connect opens a new client connection
func (m *Memory) Connect() *Conn {
	c := &Conn{
		id:  uuid.NewString(),
		mem: m,
	}
	m.mu.Lock()
	m.conns[c.id] = c
	m.mu.Unlock()
	return c
}

// Drop simulates the network loss of a connection
func (m *Memory) Drop(c *Conn) {
	m.log.Debug("dropping connection", zap.String("conn", c.id))
	c.Close()
}

// Connections returns the number of open connections
func (m *Memory) Connections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// Subscriptions returns the number of live subscriptions
func (m *Memory) Subscriptions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs)
}

// Read returns a copy of the value at path
func (m *Memory) Read(path string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Get(path)
}

// mutate runs fn under the write lock and fans out changes afterwards
func (m *Memory) mutate(fn func(t *Tree) (bool, error)) (bool, error) {
	m.mu.Lock()
	changed, err := fn(m.tree)
	if err != nil || !changed {
		m.mu.Unlock()
		return changed, err
	}

	// Collect deliveries while holding the lock
	type delivery struct {
		box  *Mailbox
		snap Snapshot
	}
	var out []delivery
	for _, s := range m.subs {
		v := m.tree.Get(s.path)
		if s.primed && reflect.DeepEqual(v, s.last) {
			continue
		}
		s.last, s.primed = v, true
		out = append(out, delivery{box: s.box, snap: Snapshot{Path: s.path, Value: deepCopy(v)}})
	}
	m.mu.Unlock()

	// Send WITHOUT holding the lock
	for _, d := range out {
		d.box.Offer(d.snap)
	}
	return true, nil
}

func (m *Memory) subscribe(path string, handler Handler) Unsubscribe {
	box := NewMailbox(handler)

	m.mu.Lock()
	m.nextSub++
	s := &memorySub{id: m.nextSub, path: path, box: box}
	s.last, s.primed = m.tree.Get(path), true
	m.subs[s.id] = s
	initial := Snapshot{Path: path, Value: deepCopy(s.last)}
	m.mu.Unlock()

	box.Offer(initial)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, s.id)
			m.mu.Unlock()
			box.Close()
		})
	}
}

// Conn is one client's connection to a Memory tree
type Conn struct {
	id  string
	mem *Memory

	mu     sync.Mutex
	closed bool
	onDisc []Op
	unsubs []Unsubscribe
}

var _ Store = (*Conn)(nil)

// ID returns the connection id
func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// Get reads the subtree at path
func (c *Conn) Get(ctx context.Context, path string) (Snapshot, error) {
	if err := c.check(ctx); err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Path: path, Value: c.mem.Read(path)}, nil
}

// Set replaces the subtree at path
func (c *Conn) Set(ctx context.Context, path string, value any) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	_, err := c.mem.mutate(func(t *Tree) (bool, error) {
		return true, t.Set(path, value)
	})
	return err
}

// Update merges fields under path
func (c *Conn) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	_, err := c.mem.mutate(func(t *Tree) (bool, error) {
		return true, t.Update(path, fields)
	})
	return err
}

// UpdateIf merges fields when every condition holds
func (c *Conn) UpdateIf(ctx context.Context, path string, conds []Condition, fields map[string]any) (bool, error) {
	if err := c.check(ctx); err != nil {
		return false, err
	}
	return c.mem.mutate(func(t *Tree) (bool, error) {
		ok, err := t.Check(path, conds)
		if err != nil || !ok {
			return false, err
		}
		return true, t.Update(path, fields)
	})
}

// Remove deletes the subtree at path
func (c *Conn) Remove(ctx context.Context, path string) error {
	return c.Set(ctx, path, nil)
}

// Push appends value under a new time-ordered key
func (c *Conn) Push(ctx context.Context, path string, value any) (string, error) {
	key, err := NewPushKey()
	if err != nil {
		return "", err
	}
	return key, c.Set(ctx, JoinPath(path, key), value)
}

// Subscribe watches path; the current value is delivered first
func (c *Conn) Subscribe(ctx context.Context, path string, handler Handler) (Unsubscribe, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	unsub := c.mem.subscribe(path, handler)
	c.mu.Lock()
	c.unsubs = append(c.unsubs, unsub)
	c.mu.Unlock()
	return unsub, nil
}

// OnDisconnect queues op for when the connection drops
func (c *Conn) OnDisconnect(ctx context.Context, op Op) error {
	if err := c.check(ctx); err != nil {
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

// Close ends the connection and runs its disconnect ops in order
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
	for _, op := range ops {
		if _, err := c.mem.mutate(func(t *Tree) (bool, error) {
			return true, t.Apply(op)
		}); err != nil {
			c.mem.log.Warn("disconnect op failed", zap.String("conn", c.id), zap.String("path", op.Path), zap.Error(err))
		}
	}

	c.mem.mu.Lock()
	delete(c.mem.conns, c.id)
	c.mem.mu.Unlock()
	return nil
}

// NewPushKey returns a time-ordered unique key
func NewPushKey() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
