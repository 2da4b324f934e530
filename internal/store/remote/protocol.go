// Package remote speaks the document store protocol over a websocket.
package remote

import (
	"errors"
	"time"

	"github.com/raynusman100-hue/The-Impostor-Game-sub001/internal/store"
)

// Frame types
const (
	FrameRequest  = "req"
	FrameResponse = "res"
	FrameEvent    = "evt"
)

// Request ops
const (
	OpGet          = "get"
	OpSet          = "set"
	OpUpdate       = "update"
	OpUpdateIf     = "updateIf"
	OpRemove       = "remove"
	OpPush         = "push"
	OpSubscribe    = "subscribe"
	OpUnsubscribe  = "unsubscribe"
	OpOnDisconnect = "onDisconnect"
	OpCancel       = "cancelOnDisconnect"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBuffer     = 256
)

var (
	// ErrRateLimited is returned when a connection exceeds its request budget
	ErrRateLimited = errors.New("remote: rate limited")
	// ErrUnknownOp is returned for requests the server does not understand
	ErrUnknownOp = errors.New("remote: unknown op")
)

// Frame is one message on the wire
type Frame struct {
	Type    string            `json:"type"`
	ID      uint64            `json:"id,omitempty"`
	Op      string            `json:"op,omitempty"`
	Path    string            `json:"path,omitempty"`
	Value   any               `json:"value"`
	Fields  map[string]any    `json:"fields,omitempty"`
	Conds   []store.Condition `json:"conds,omitempty"`
	Queued  *store.Op         `json:"queued,omitempty"`
	Sub     uint64            `json:"sub,omitempty"`
	Applied bool              `json:"applied,omitempty"`
	Key     string            `json:"key,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// remoteError keeps well known errors comparable across the wire
func remoteError(msg string) error {
	if msg == "" {
		return nil
	}
	for _, known := range []error{store.ErrClosed, store.ErrUnsupportedPath, ErrRateLimited, ErrUnknownOp} {
		if msg == known.Error() {
			return known
		}
	}
	return errors.New(msg)
}
