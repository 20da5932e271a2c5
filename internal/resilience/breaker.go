// Package resilience guards calls to external services with circuit breakers
// and bounded retries.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the state of a Breaker.
type BreakerState int

const (
	// BreakerClosed lets calls through.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the cooldown elapses.
	BreakerOpen
	// BreakerHalfOpen lets a single probe through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrBreakerOpen is returned when a call is rejected without being attempted.
var ErrBreakerOpen = eris.New("resilience: breaker open")

// BreakerConfig controls a Breaker.
type BreakerConfig struct {
	// Name identifies the guarded service in logs.
	Name string

	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Default: 5.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before a probe is allowed.
	// Default: 30s.
	Cooldown time.Duration

	// ShouldTrip decides whether an error counts as a failure. If nil, every
	// error except caller cancellation counts.
	ShouldTrip func(err error) bool

	// OnStateChange is called on every transition, under the breaker lock.
	OnStateChange func(name string, from, to BreakerState)
}

// BreakerConfigFrom builds a BreakerConfig from config values; non-positive
// values keep the defaults.
func BreakerConfigFrom(name string, threshold, cooldownSecs int) BreakerConfig {
	cfg := BreakerConfig{Name: name, FailureThreshold: 5, Cooldown: 30 * time.Second}
	if threshold > 0 {
		cfg.FailureThreshold = threshold
	}
	if cooldownSecs > 0 {
		cfg.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	return cfg
}

// Breaker is a circuit breaker for one external service.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probing  bool

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ShouldTrip == nil {
		cfg.ShouldTrip = func(err error) bool { return !errors.Is(err, context.Canceled) }
	}
	return &Breaker{cfg: cfg, nowFunc: time.Now}
}

// Guard runs fn unless the breaker is open. The result of fn is recorded
// against the breaker and returned unchanged.
func Guard[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	probe, err := b.admit()
	if err != nil {
		return zero, err
	}

	val, err := fn(ctx)
	b.record(probe, err)
	return val, err
}

// State returns the current state, reporting an open breaker whose cooldown
// has elapsed as half-open.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.cooledDown() {
		return BreakerHalfOpen
	}
	return b.state
}

// Failures returns the current consecutive failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	b.transition(BreakerClosed)
}

func (b *Breaker) admit() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if !b.cooledDown() {
			return false, ErrBreakerOpen
		}
		b.transition(BreakerHalfOpen)
		b.probing = true
		return true, nil
	case BreakerHalfOpen:
		// One probe at a time.
		if b.probing {
			return false, ErrBreakerOpen
		}
		b.probing = true
		return true, nil
	default:
		return false, nil
	}
}

func (b *Breaker) record(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
	}

	if err == nil || !b.cfg.ShouldTrip(err) {
		if probe || b.state == BreakerClosed {
			b.failures = 0
			b.transition(BreakerClosed)
		}
		return
	}

	b.failures++
	if probe || b.failures >= b.cfg.FailureThreshold {
		b.openedAt = b.nowFunc()
		b.transition(BreakerOpen)
	}
}

func (b *Breaker) cooledDown() bool {
	return b.nowFunc().Sub(b.openedAt) >= b.cfg.Cooldown
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	zap.L().Warn("resilience: breaker state change",
		zap.String("service", b.cfg.Name),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}
