// Package circuitbreaker stops calling a remote API for a while after it
// keeps failing, so callers fail fast instead of queueing behind an outage.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the position of the breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrOpen is returned without calling the operation while the breaker is open.
	ErrOpen = errors.New("circuit breaker is open")

	// ErrProbeInFlight is returned in half-open state while the single probe
	// call has not finished.
	ErrProbeInFlight = errors.New("circuit breaker is probing")
)

// Config holds breaker settings.
type Config struct {
	// Name identifies the breaker in state change callbacks.
	Name string

	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before a probe is let through.
	Cooldown time.Duration

	// IsFailure decides whether an error counts. Nil counts every error.
	// Context cancellation never counts.
	IsFailure func(error) bool

	// OnStateChange is called with the lock released.
	OnStateChange func(name string, from, to State)
}

// Option configures a breaker.
type Option func(*Config)

// WithFailureThreshold sets the number of failures that opens the breaker.
func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

// WithCooldown sets the open period.
func WithCooldown(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Cooldown = d
		}
	}
}

// WithIsFailure sets the failure classifier.
func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) { c.IsFailure = fn }
}

// WithOnStateChange sets the state change callback.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) { c.OnStateChange = fn }
}

// Breaker is safe for concurrent use.
type Breaker struct {
	config Config
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New creates a closed breaker. Defaults are 5 failures and a 30s cooldown.
func New(name string, opts ...Option) *Breaker {
	config := Config{
		Name:             name,
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
	}
	for _, opt := range opts {
		opt(&config)
	}
	return &Breaker{config: config, now: time.Now}
}

// Do runs op unless the breaker is open.
func (b *Breaker) Do(ctx context.Context, op func(ctx context.Context) error) error {
	probe, err := b.acquire()
	if err != nil {
		return err
	}
	err = op(ctx)
	b.record(probe, err)
	return err
}

func (b *Breaker) acquire() (probe bool, err error) {
	b.mu.Lock()
	var change func()
	defer func() {
		b.mu.Unlock()
		if change != nil {
			change()
		}
	}()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			return false, ErrOpen
		}
		change = b.setLocked(StateHalfOpen)
		b.probing = true
		return true, nil
	case StateHalfOpen:
		if b.probing {
			return false, ErrProbeInFlight
		}
		b.probing = true
		return true, nil
	default:
		return false, nil
	}
}

func (b *Breaker) record(probe bool, err error) {
	failed := b.counts(err)

	b.mu.Lock()
	var change func()
	defer func() {
		b.mu.Unlock()
		if change != nil {
			change()
		}
	}()

	if probe {
		b.probing = false
	}
	if !failed {
		b.failures = 0
		if b.state == StateHalfOpen && probe {
			change = b.setLocked(StateClosed)
		}
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.config.FailureThreshold {
		b.openedAt = b.now()
		change = b.setLocked(StateOpen)
	}
}

func (b *Breaker) counts(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if b.config.IsFailure != nil {
		return b.config.IsFailure(err)
	}
	return true
}

// setLocked switches state and returns the callback to run after unlocking.
func (b *Breaker) setLocked(to State) func() {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	b.failures = 0
	if b.config.OnStateChange == nil {
		return nil
	}
	name, fn := b.config.Name, b.config.OnStateChange
	return func() { fn(name, from, to) }
}

// State returns the current state. An open breaker whose cooldown has
// elapsed still reports open until the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}

// ChatBreaker guards Discord REST calls. It opens after 5 consecutive
// failures that isFailure accepts and probes again after a minute.
func ChatBreaker(isFailure func(error) bool, onStateChange func(name string, from, to State)) *Breaker {
	return New("discord-api",
		WithFailureThreshold(5),
		WithCooldown(time.Minute),
		WithIsFailure(isFailure),
		WithOnStateChange(onStateChange),
	)
}
