package store

import "sync"

// Mailbox delivers the latest snapshot to a handler on its own goroutine.
// Offers never block; a slow handler only sees the newest pending value.
type Mailbox struct {
	handler Handler

	mu      sync.Mutex
	pending *Snapshot
	errs    []error
	closed  bool

	wake chan struct{}
	done chan struct{}
}

// NewMailbox starts a delivery goroutine for handler
func NewMailbox(handler Handler) *Mailbox {
	mb := &Mailbox{
		handler: handler,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go mb.run()
	return mb
}

// Offer replaces any pending snapshot with snap
func (mb *Mailbox) Offer(snap Snapshot) {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return
	}
	mb.pending = &snap
	mb.mu.Unlock()
	mb.signal()
}

// Fail queues a listener error
func (mb *Mailbox) Fail(err error) {
	mb.mu.Lock()
	if mb.closed {
		mb.mu.Unlock()
		return
	}
	mb.errs = append(mb.errs, err)
	mb.mu.Unlock()
	mb.signal()
}

// Close stops delivery; pending values are dropped
func (mb *Mailbox) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.done)
}

func (mb *Mailbox) signal() {
	select {
	case mb.wake <- struct{}{}:
	default:
	}
}

func (mb *Mailbox) run() {
	for {
		select {
		case <-mb.done:
			return
		case <-mb.wake:
		}

		mb.mu.Lock()
		snap, errs := mb.pending, mb.errs
		mb.pending, mb.errs = nil, nil
		closed := mb.closed
		mb.mu.Unlock()
		if closed {
			return
		}

		for _, err := range errs {
			mb.handler(Snapshot{}, err)
		}
		if snap != nil {
			mb.handler(*snap, nil)
		}
	}
}
