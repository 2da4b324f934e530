package store

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrClosed is returned by operations on a closed connection
	ErrClosed = errors.New("store: connection closed")
	// ErrConnectionLost is reported to subscribers when a backend link drops
	ErrConnectionLost = errors.New("store: connection lost")
	// ErrUnsupportedPath is returned when a backend cannot address a path
	ErrUnsupportedPath = errors.New("store: unsupported path")
)

// Store is the shared document service every client talks to
type Store interface {
	// Get reads the subtree at path once
	Get(ctx context.Context, path string) (Snapshot, error)
	// Set replaces the subtree at path; a nil value deletes it
	Set(ctx context.Context, path string, value any) error
	// Update merges fields under path; keys may be nested relative paths and nil deletes
	Update(ctx context.Context, path string, fields map[string]any) error
	// UpdateIf applies fields atomically when every condition holds
	UpdateIf(ctx context.Context, path string, conds []Condition, fields map[string]any) (bool, error)
	// Remove deletes the subtree at path
	Remove(ctx context.Context, path string) error
	// Push appends value under a new time-ordered key and returns the key
	Push(ctx context.Context, path string, value any) (string, error)
	// Subscribe delivers the current value and every later change at path
	Subscribe(ctx context.Context, path string, handler Handler) (Unsubscribe, error)
	// OnDisconnect queues a write that runs when this connection drops
	OnDisconnect(ctx context.Context, op Op) error
	// CancelOnDisconnect drops queued writes registered for path
	CancelOnDisconnect(ctx context.Context, path string) error
	// Close ends the connection and runs queued disconnect writes
	Close() error
}

// Handler receives subscription snapshots; err reports a listener failure
type Handler func(snap Snapshot, err error)

// Unsubscribe stops a subscription
type Unsubscribe func()

// Snapshot is the value observed at a path
type Snapshot struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// Exists reports whether the path held a value
func (s Snapshot) Exists() bool {
	return s.Value != nil
}

// Decode unmarshals the snapshot value into v
func (s Snapshot) Decode(v any) error {
	raw, err := json.Marshal(s.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Condition is one precondition of a guarded update, relative to the update path
type Condition struct {
	Path   string `json:"path"`
	Equals any    `json:"equals"`
	Absent bool   `json:"absent,omitempty"`
	OneOf  []any  `json:"oneOf,omitempty"`
}

// Eq builds an equality condition
func Eq(path string, value any) Condition {
	return Condition{Path: path, Equals: value}
}

// Missing builds an absence condition
func Missing(path string) Condition {
	return Condition{Path: path, Absent: true}
}

// In builds a membership condition
func In(path string, values ...any) Condition {
	return Condition{Path: path, OneOf: values}
}

// OpKind names a queued disconnect write
type OpKind string

const (
	OpSet    OpKind = "set"
	OpUpdate OpKind = "update"
	OpRemove OpKind = "remove"
)

// Op is a write registered to run on disconnect; Conds, when set, must hold
type Op struct {
	Kind   OpKind         `json:"kind"`
	Path   string         `json:"path"`
	Value  any            `json:"value"`
	Fields map[string]any `json:"fields,omitempty"`
	Conds  []Condition    `json:"conds,omitempty"`
}

// If returns a copy of op guarded by conds
func (op Op) If(conds ...Condition) Op {
	op.Conds = append(append([]Condition{}, op.Conds...), conds...)
	return op
}

// SetOp builds a disconnect set
func SetOp(path string, value any) Op {
	return Op{Kind: OpSet, Path: path, Value: value}
}

// UpdateOp builds a disconnect merge
func UpdateOp(path string, fields map[string]any) Op {
	return Op{Kind: OpUpdate, Path: path, Fields: fields}
}

// RemoveOp builds a disconnect delete
func RemoveOp(path string) Op {
	return Op{Kind: OpRemove, Path: path}
}
