package voice

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrVoiceDisabled is returned when no voice provider is configured
var ErrVoiceDisabled = errors.New("voice chat is disabled")

// State is the local view of a voice channel
type State struct {
	Joined      bool
	Muted       bool
	Channel     string
	RemoteUsers []string
}

// Channel is a room voice connection
type Channel interface {
	Join(ctx context.Context, name, uid string) error
	Leave(ctx context.Context) error
	ToggleMute() (bool, error)
	State() State
}

// Disabled is the provider used when voice is switched off
type Disabled struct{}

func (Disabled) Join(context.Context, string, string) error { return ErrVoiceDisabled }
func (Disabled) Leave(context.Context) error                { return nil }
func (Disabled) ToggleMute() (bool, error)                  { return false, ErrVoiceDisabled }
func (Disabled) State() State                               { return State{} }

// Logging is an in-process channel that records every call
type Logging struct {
	log *zap.Logger

	mu    sync.Mutex
	state State
	calls []string
}

// NewLogging creates a Logging channel
func NewLogging(log *zap.Logger) *Logging {
	if log == nil {
		log = zap.NewNop()
	}
	return &Logging{log: log}
}

// Join implements Channel
func (l *Logging) Join(_ context.Context, name, uid string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, "join:"+name)
	if l.state.Joined && l.state.Channel == name {
		return nil
	}
	l.state = State{Joined: true, Channel: name, Muted: l.state.Muted}
	l.log.Info("voice joined", zap.String("channel", name), zap.String("uid", uid))
	return nil
}

// Leave implements Channel
func (l *Logging) Leave(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.state.Joined {
		return nil
	}
	l.calls = append(l.calls, "leave:"+l.state.Channel)
	l.log.Info("voice left", zap.String("channel", l.state.Channel))
	l.state = State{Muted: l.state.Muted}
	return nil
}

// ToggleMute implements Channel
func (l *Logging) ToggleMute() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Muted = !l.state.Muted
	l.calls = append(l.calls, "mute")
	return l.state.Muted, nil
}

// State implements Channel
func (l *Logging) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.state
	s.RemoteUsers = append([]string(nil), l.state.RemoteUsers...)
	return s
}

// Calls returns the recorded join and leave calls
func (l *Logging) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}
