// Package breaker implements a circuit breaker for calls to a remote
// dependency. The breaker is shared process-wide per dependency: every
// concurrent caller observes and updates the same state machine.
//
// States:
//
//	Closed   — calls pass through; consecutive failures within the rolling
//	           window are counted. Reaching the threshold trips to Open.
//	Open     — calls are rejected immediately with ErrOpen, without invoking
//	           the underlying operation. After the cool-down elapses the next
//	           caller moves the breaker to HalfOpen.
//	HalfOpen — a limited number of trial calls are let through. The first
//	           success closes the breaker; any failure reopens it and
//	           restarts the cool-down.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker rejects a call without attempting it.
var ErrOpen = errors.New("breaker: circuit open")

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Config tunes a Breaker. Zero values fall back to the defaults below.
type Config struct {
	// FailureThreshold is how many consecutive failures within Window trip
	// the breaker. Default 5.
	FailureThreshold int

	// Window bounds how long a failure streak stays relevant. A streak whose
	// first failure is older than Window is discarded. Default 30s.
	Window time.Duration

	// CoolDown is how long the breaker stays Open before allowing trial
	// calls. Default 10s.
	CoolDown time.Duration

	// MaxTrialCalls caps concurrent calls let through in HalfOpen; excess
	// calls are rejected with ErrOpen. Default 1.
	MaxTrialCalls int

	// CallTimeout bounds each underlying call. Exceeding it counts as a
	// failure. Default 3s.
	CallTimeout time.Duration

	// Ignore, when set, marks errors that should not count against the
	// breaker (business outcomes such as "not found" carried over an
	// otherwise healthy transport). Ignored errors are still returned.
	Ignore func(error) bool
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Window <= 0 {
		c.Window = 30 * time.Second
	}
	if c.CoolDown <= 0 {
		c.CoolDown = 10 * time.Second
	}
	if c.MaxTrialCalls <= 0 {
		c.MaxTrialCalls = 1
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 3 * time.Second
	}
	return c
}

// Breaker is safe for concurrent use.
type Breaker struct {
	name string
	cfg  Config
	now  func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	streakStart time.Time // first failure of the current streak
	openedAt    time.Time
	trials      int // in-flight trial calls while half-open
}

// Option configures a Breaker beyond its Config.
type Option func(*Breaker)

// WithClock replaces the wall clock, letting tests drive state transitions
// without sleeping.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// New returns a Closed breaker named after the dependency it guards.
func New(name string, cfg Config, opts ...Option) *Breaker {
	b := &Breaker{
		name: name,
		cfg:  cfg.withDefaults(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the guarded dependency's name, for error context and logs.
func (b *Breaker) Name() string { return b.name }

// State reports the current state, accounting for an elapsed cool-down.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.CoolDown {
		return HalfOpen
	}
	return b.state
}

// Do runs fn under the breaker's admission policy and call timeout. In Open
// state fn is not invoked and ErrOpen is returned immediately. Otherwise the
// outcome (including a timeout) is recorded before the error is returned.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.acquire(); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	err := fn(callCtx)
	cancel()

	b.record(err)
	return err
}

// acquire decides whether a call may proceed and applies the
// Open → HalfOpen transition once the cool-down has elapsed.
func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	switch b.state {
	case Open:
		if now.Sub(b.openedAt) < b.cfg.CoolDown {
			return ErrOpen
		}
		b.state = HalfOpen
		b.trials = 0
		fallthrough
	case HalfOpen:
		if b.trials >= b.cfg.MaxTrialCalls {
			return ErrOpen
		}
		b.trials++
	case Closed:
		// Expire a stale failure streak.
		if b.failures > 0 && now.Sub(b.streakStart) > b.cfg.Window {
			b.failures = 0
		}
	}
	return nil
}

func (b *Breaker) record(err error) {
	failed := err != nil
	if failed && b.cfg.Ignore != nil && b.cfg.Ignore(err) {
		failed = false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !failed {
		switch b.state {
		case HalfOpen:
			// Trial succeeded: the dependency recovered.
			b.state = Closed
			b.failures = 0
			b.trials = 0
		case Closed:
			b.failures = 0
		}
		return
	}

	now := b.now()
	switch b.state {
	case HalfOpen:
		// Trial failed: reopen and restart the cool-down.
		b.state = Open
		b.openedAt = now
		b.trials = 0
	case Closed:
		if b.failures == 0 {
			b.streakStart = now
		}
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = Open
			b.openedAt = now
		}
	case Open:
		// A call admitted before the trip finished after it; nothing to do.
	}
}
