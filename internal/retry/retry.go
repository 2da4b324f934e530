package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy bounds how often and how slowly an operation is retried
type Policy struct {
	Attempts int
	Base     time.Duration
	Jitter   time.Duration
}

// Default is three attempts starting at one second
var Default = Policy{Attempts: 3, Base: time.Second, Jitter: time.Second}

// Delay returns the wait before the given retry (1-based)
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Base << (attempt - 1)
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}

// Do runs fn until it succeeds, attempts run out or ctx ends.
// The last error from fn is returned.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
