package sse

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/models"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/render"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/room"
	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
)

const (
	// BufferSize is the buffer size for spectator channels
	BufferSize = 10
	// SendTimeout bounds a send to one slow spectator
	SendTimeout = time.Second
)

// Hub fans room snapshots out to SSE spectators, one store subscription per watched room
type Hub struct {
	st  store.Store
	now func() time.Time
	log *zap.Logger

	mu    sync.RWMutex
	rooms map[string]*feed
}

type feed struct {
	clients map[chan Message]string // channel -> spectator id
	unsub   store.Unsubscribe
	last    []Message
}

// NewHub creates a hub reading rooms from st
func NewHub(st store.Store, now func() time.Time, log *zap.Logger) *Hub {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{st: st, now: now, log: log, rooms: make(map[string]*feed)}
}

// AddClient registers a spectator; the first one for a room starts its subscription
func (h *Hub) AddClient(ctx context.Context, code string, client chan Message, id string) error {
	h.mu.Lock()
	f, ok := h.rooms[code]
	if ok {
		f.clients[client] = id
		last := f.last
		h.mu.Unlock()
		// replay the latest state so late joiners are not blank
		for _, msg := range last {
			h.send(client, msg)
		}
		return nil
	}
	f = &feed{clients: map[chan Message]string{client: id}}
	h.rooms[code] = f
	h.mu.Unlock()

	unsub, err := h.st.Subscribe(ctx, models.RoomPath(code), func(snap store.Snapshot, err error) {
		h.onSnapshot(code, snap, err)
	})
	if err != nil {
		h.mu.Lock()
		delete(h.rooms, code)
		h.mu.Unlock()
		return err
	}

	h.mu.Lock()
	if cur, ok := h.rooms[code]; ok && cur == f {
		f.unsub = unsub
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()
	// every client left while subscribing
	unsub()
	return nil
}

// RemoveClient drops a spectator; the last one stops the subscription
func (h *Hub) RemoveClient(code string, client chan Message) {
	h.mu.Lock()
	f, ok := h.rooms[code]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(f.clients, client)
	remaining := len(f.clients)
	var unsub store.Unsubscribe
	if remaining == 0 {
		delete(h.rooms, code)
		unsub = f.unsub
	}
	h.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	h.log.Debug("spectator removed", zap.String("room", code), zap.Int("remaining", remaining))
}

// ClientCount returns the number of spectators of a room
func (h *Hub) ClientCount(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if f, ok := h.rooms[code]; ok {
		return len(f.clients)
	}
	return 0
}

func (h *Hub) onSnapshot(code string, snap store.Snapshot, err error) {
	if err != nil {
		h.log.Warn("spectator feed listener error", zap.String("room", code), zap.Error(err))
		h.Broadcast(code, EventErrorMessage, err.Error())
		return
	}
	r, exists, err := room.Decode(code, snap)
	if err != nil {
		h.log.Warn("undecodable room", zap.String("room", code), zap.Error(err))
		return
	}
	if !exists {
		h.remember(code, nil)
		h.Broadcast(code, EventRoomClosed, code)
		return
	}
	now := h.now().UnixMilli()
	msgs := []Message{
		{Event: EventRoomUpdate, Data: render.Summary(r, now)},
		{Event: EventPlayerUpdate, Data: render.PlayerList(r)},
	}
	h.remember(code, msgs)
	for _, m := range msgs {
		h.Broadcast(code, m.Event, m.Data)
	}
}

func (h *Hub) remember(code string, msgs []Message) {
	h.mu.Lock()
	if f, ok := h.rooms[code]; ok {
		f.last = msgs
	}
	h.mu.Unlock()
}

// Broadcast sends a message to every spectator of a room
func (h *Hub) Broadcast(code, event, data string) {
	h.mu.RLock()
	f, ok := h.rooms[code]
	var clients []chan Message
	if ok {
		// Collect all client channels while holding the lock
		clients = make([]chan Message, 0, len(f.clients))
		for c := range f.clients {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	// Send messages WITHOUT holding the lock
	msg := Message{Event: event, Data: data}
	delivered := 0
	for _, c := range clients {
		if h.send(c, msg) {
			delivered++
		}
	}
	h.log.Debug("broadcast", zap.String("room", code), zap.String("event", event), zap.Int("delivered", delivered), zap.Int("clients", len(clients)))
}

func (h *Hub) send(client chan Message, msg Message) bool {
	timer := time.NewTimer(SendTimeout)
	defer timer.Stop()
	select {
	case client <- msg:
		return true
	case <-timer.C:
		return false
	}
}
