package remote

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
)

// ServeOptions configures one server side connection
type ServeOptions struct {
	// Limiter, when set, rejects requests beyond its budget
	Limiter *rate.Limiter
	Log     *zap.Logger
	// Observe is told about every handled request
	Observe func(op string, err error)
}

type peer struct {
	id      string
	ws      *websocket.Conn
	backend store.Store
	opts    ServeOptions

	send chan Frame
	done chan struct{}

	mu   sync.Mutex
	subs map[uint64]store.Unsubscribe
}

// Serve runs the protocol on ws against backend until the socket or ctx closes.
// backend is closed on return, which runs its disconnect writes.
func Serve(ctx context.Context, id string, ws *websocket.Conn, backend store.Store, opts ServeOptions) error {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	p := &peer{
		id:      id,
		ws:      ws,
		backend: backend,
		opts:    opts,
		send:    make(chan Frame, sendBuffer),
		done:    make(chan struct{}),
		subs:    make(map[uint64]store.Unsubscribe),
	}
	defer p.shutdown(cancel)

	go p.writePump()
	go func() {
		<-ctx.Done()
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var f Frame
		if err := ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				p.opts.Log.Warn("websocket read failed", zap.String("conn", id), zap.Error(err))
				return err
			}
			return nil
		}
		if f.Type != FrameRequest {
			p.opts.Log.Debug("ignoring frame", zap.String("conn", id), zap.String("type", f.Type))
			continue
		}
		p.push(p.handle(ctx, f))
	}
}

func (p *peer) shutdown(cancel context.CancelFunc) {
	cancel()
	close(p.done)

	p.mu.Lock()
	subs := p.subs
	p.subs = nil
	p.mu.Unlock()
	for _, u := range subs {
		u()
	}

	if err := p.backend.Close(); err != nil {
		p.opts.Log.Warn("closing backend failed", zap.String("conn", p.id), zap.Error(err))
	}
	p.ws.Close()
}

// push queues f unless the connection is gone
func (p *peer) push(f Frame) {
	select {
	case p.send <- f:
	case <-p.done:
	}
}

func (p *peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			p.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case f := <-p.send:
			p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteJSON(f); err != nil {
				p.opts.Log.Debug("websocket write failed", zap.String("conn", p.id), zap.Error(err))
				p.ws.Close()
				return
			}
		case <-ticker.C:
			p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.ws.Close()
				return
			}
		}
	}
}

func (p *peer) handle(ctx context.Context, f Frame) (res Frame) {
	res = Frame{Type: FrameResponse, ID: f.ID}
	var err error
	defer func() {
		if err != nil {
			res.Error = err.Error()
		}
		if p.opts.Observe != nil {
			p.opts.Observe(f.Op, err)
		}
	}()

	if p.opts.Limiter != nil && !p.opts.Limiter.Allow() {
		err = ErrRateLimited
		return res
	}

	switch f.Op {
	case OpGet:
		var snap store.Snapshot
		snap, err = p.backend.Get(ctx, f.Path)
		res.Path, res.Value = f.Path, snap.Value
	case OpSet:
		err = p.backend.Set(ctx, f.Path, f.Value)
	case OpUpdate:
		err = p.backend.Update(ctx, f.Path, f.Fields)
	case OpUpdateIf:
		res.Applied, err = p.backend.UpdateIf(ctx, f.Path, f.Conds, f.Fields)
	case OpRemove:
		err = p.backend.Remove(ctx, f.Path)
	case OpPush:
		res.Key, err = p.backend.Push(ctx, f.Path, f.Value)
	case OpSubscribe:
		err = p.subscribe(ctx, f.Sub, f.Path)
	case OpUnsubscribe:
		p.unsubscribe(f.Sub)
	case OpOnDisconnect:
		if f.Queued == nil {
			err = ErrUnknownOp
			break
		}
		err = p.backend.OnDisconnect(ctx, *f.Queued)
	case OpCancel:
		err = p.backend.CancelOnDisconnect(ctx, f.Path)
	default:
		err = ErrUnknownOp
	}
	return res
}

// subscribe forwards every snapshot at path as events tagged with the client chosen id
func (p *peer) subscribe(ctx context.Context, sub uint64, path string) error {
	unsub, err := p.backend.Subscribe(ctx, path, func(snap store.Snapshot, err error) {
		evt := Frame{Type: FrameEvent, Sub: sub, Path: path, Value: snap.Value}
		if err != nil {
			evt.Error = err.Error()
		}
		p.push(evt)
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subs == nil {
		unsub()
		return store.ErrClosed
	}
	if old, ok := p.subs[sub]; ok {
		old()
	}
	p.subs[sub] = unsub
	return nil
}

func (p *peer) unsubscribe(sub uint64) {
	p.mu.Lock()
	unsub, ok := p.subs[sub]
	delete(p.subs, sub)
	p.mu.Unlock()
	if ok {
		unsub()
	}
}
