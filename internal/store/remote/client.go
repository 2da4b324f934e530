package remote

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
)

// ErrConnectionLost is reported to subscribers when the socket drops
var ErrConnectionLost = fmt.Errorf("remote: %w", store.ErrConnectionLost)

// Client is a store.Store backed by a document server connection
type Client struct {
	ws  *websocket.Conn
	log *zap.Logger

	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	closed  bool
	nextID  uint64
	nextSub uint64
	pending map[uint64]chan Frame
	subs    map[uint64]*remoteSub
}

type remoteSub struct {
	box     *store.Mailbox
	handler store.Handler
}

var _ store.Store = (*Client)(nil)

// Dial connects to the document server at url (ws:// or wss://)
func Dial(ctx context.Context, url string, header http.Header, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(maxMessageSize)

	c := &Client{
		ws:      ws,
		log:     log,
		send:    make(chan Frame, sendBuffer),
		done:    make(chan struct{}),
		pending: make(map[uint64]chan Frame),
		subs:    make(map[uint64]*remoteSub),
	}
	go c.readPump()
	go c.writePump()
	return c, nil
}

func (c *Client) readPump() {
	var lost error
	defer func() { c.shutdown(lost) }()

	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("document server connection lost", zap.Error(err))
				lost = ErrConnectionLost
			}
			return
		}

		switch f.Type {
		case FrameResponse:
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			delete(c.pending, f.ID)
			c.mu.Unlock()
			if ok {
				ch <- f
			}
		case FrameEvent:
			c.mu.Lock()
			sub, ok := c.subs[f.Sub]
			c.mu.Unlock()
			if !ok {
				continue
			}
			if f.Error != "" {
				sub.box.Fail(remoteError(f.Error))
				continue
			}
			sub.box.Offer(store.Snapshot{Path: f.Path, Value: f.Value})
		}
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case f := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(f); err != nil {
				c.log.Debug("websocket write failed", zap.Error(err))
				c.ws.Close()
				return
			}
		}
	}
}

// shutdown stops both pumps; a non-nil cause is reported to live subscriptions
func (c *Client) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		subs := c.subs
		c.subs = make(map[uint64]*remoteSub)
		c.mu.Unlock()

		close(c.done)
		for _, s := range subs {
			s.box.Close()
			if cause != nil {
				go s.handler(store.Snapshot{}, cause)
			}
		}
	})
}

func (c *Client) request(ctx context.Context, f Frame) (Frame, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Frame{}, store.ErrClosed
	}
	c.nextID++
	f.Type, f.ID = FrameRequest, c.nextID
	ch := make(chan Frame, 1)
	c.pending[f.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, f.ID)
		c.mu.Unlock()
	}()

	select {
	case c.send <- f:
	case <-c.done:
		return Frame{}, store.ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}

	select {
	case res := <-ch:
		return res, remoteError(res.Error)
	case <-c.done:
		return Frame{}, store.ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Get reads the subtree at path
func (c *Client) Get(ctx context.Context, path string) (store.Snapshot, error) {
	res, err := c.request(ctx, Frame{Op: OpGet, Path: path})
	if err != nil {
		return store.Snapshot{}, err
	}
	return store.Snapshot{Path: path, Value: res.Value}, nil
}

// Set replaces the subtree at path
func (c *Client) Set(ctx context.Context, path string, value any) error {
	_, err := c.request(ctx, Frame{Op: OpSet, Path: path, Value: value})
	return err
}

// Update merges fields under path
func (c *Client) Update(ctx context.Context, path string, fields map[string]any) error {
	_, err := c.request(ctx, Frame{Op: OpUpdate, Path: path, Fields: fields})
	return err
}

// UpdateIf merges fields when every condition holds on the server
func (c *Client) UpdateIf(ctx context.Context, path string, conds []store.Condition, fields map[string]any) (bool, error) {
	res, err := c.request(ctx, Frame{Op: OpUpdateIf, Path: path, Conds: conds, Fields: fields})
	return res.Applied, err
}

// Remove deletes the subtree at path
func (c *Client) Remove(ctx context.Context, path string) error {
	_, err := c.request(ctx, Frame{Op: OpRemove, Path: path})
	return err
}

// Push appends value under a server generated key
func (c *Client) Push(ctx context.Context, path string, value any) (string, error) {
	res, err := c.request(ctx, Frame{Op: OpPush, Path: path, Value: value})
	return res.Key, err
}

// Subscribe watches path on the server
func (c *Client) Subscribe(ctx context.Context, path string, handler store.Handler) (store.Unsubscribe, error) {
	sub := &remoteSub{box: store.NewMailbox(handler), handler: handler}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		sub.box.Close()
		return nil, store.ErrClosed
	}
	c.nextSub++
	id := c.nextSub
	c.subs[id] = sub
	c.mu.Unlock()

	if _, err := c.request(ctx, Frame{Op: OpSubscribe, Path: path, Sub: id}); err != nil {
		c.drop(id)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if !c.drop(id) {
				return
			}
			// fire and forget; responses without a waiter are ignored
			c.mu.Lock()
			c.nextID++
			f := Frame{Type: FrameRequest, ID: c.nextID, Op: OpUnsubscribe, Sub: id}
			c.mu.Unlock()
			select {
			case c.send <- f:
			case <-c.done:
			}
		})
	}, nil
}

func (c *Client) drop(id uint64) bool {
	c.mu.Lock()
	sub, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok {
		sub.box.Close()
	}
	return ok
}

// OnDisconnect queues op on the server for when this socket drops
func (c *Client) OnDisconnect(ctx context.Context, op store.Op) error {
	_, err := c.request(ctx, Frame{Op: OpOnDisconnect, Path: op.Path, Queued: &op})
	return err
}

// CancelOnDisconnect drops queued ops registered at path
func (c *Client) CancelOnDisconnect(ctx context.Context, path string) error {
	_, err := c.request(ctx, Frame{Op: OpCancel, Path: path})
	return err
}

// Close hangs up; the server then runs the queued disconnect writes
func (c *Client) Close() error {
	c.shutdown(nil)
	return c.ws.Close()
}
