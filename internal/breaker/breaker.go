// Package breaker implements a three-state circuit breaker that isolates
// calls to a failing dependency.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned without invoking the operation while the circuit is
// open, and to callers arriving while a half-open trial is in flight.
var ErrOpen = errors.New("circuit breaker is open")

// excluded marks an error the breaker must not record.
type excluded struct{ err error }

func (e *excluded) Error() string { return e.err.Error() }
func (e *excluded) Unwrap() error { return e.err }

// Exclude wraps err so the breaker records neither a failure nor a success
// for the call. Execute returns err itself to the caller.
func Exclude(err error) error {
	if err == nil {
		return nil
	}
	return &excluded{err: err}
}

// State is the breaker's current mode.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String returns the conventional upper-case name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds breaker thresholds.
type Config struct {
	FailureThreshold        int           // consecutive-ish failures in CLOSED before opening
	ResetTimeout            time.Duration // time since last failure before a trial call
	HalfOpenSuccessRequired int           // trial successes needed to close
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:        5,
		ResetTimeout:            60 * time.Second,
		HalfOpenSuccessRequired: 3,
	}
}

// Breaker guards one downstream resource.
//
// Failures in CLOSED accumulate without decay; successes in CLOSED do not
// reset the count. Only a completed HALF_OPEN trial or Reset clears it.
type Breaker struct {
	name string
	cfg  Config

	mu              sync.Mutex
	state           State
	failures        int
	lastFailure     time.Time
	halfOpenSuccess int
	trialInFlight   bool
	clockNow        func() time.Time
	onStateChange   func(name string, from, to State)
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.clockNow = now
	}
}

// WithStateChange registers a hook called on every transition. The hook runs
// with the breaker's lock held and must not call back into the breaker.
func WithStateChange(fn func(name string, from, to State)) Option {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// New creates a breaker in the CLOSED state. Zero config fields take defaults.
func New(name string, cfg Config, opts ...Option) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	if cfg.HalfOpenSuccessRequired <= 0 {
		cfg.HalfOpenSuccessRequired = def.HalfOpenSuccessRequired
	}
	b := &Breaker{
		name:     name,
		cfg:      cfg,
		state:    StateClosed,
		clockNow: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Execute runs fn through the breaker and returns its result.
func Execute[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	trial, err := b.before()
	if err != nil {
		return zero, err
	}
	result, err := fn(ctx)
	b.after(err, trial)
	if err != nil {
		var ex *excluded
		if errors.As(err, &ex) {
			err = ex.err
		}
		return zero, err
	}
	return result, nil
}

// Do runs an operation that returns only an error.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	_, err := Execute(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// before admits or rejects a call. Once the reset timeout has elapsed since
// the last failure, OPEN moves to HALF_OPEN and exactly one trial call is
// admitted at a time; trial reports whether this call is it.
func (b *Breaker) before() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if b.clockNow().Sub(b.lastFailure) < b.cfg.ResetTimeout {
			return false, fmt.Errorf("%s: %w", b.name, ErrOpen)
		}
		b.halfOpenSuccess = 0
		b.setState(StateHalfOpen)
	}
	if b.trialInFlight {
		return false, fmt.Errorf("%s: trial in flight: %w", b.name, ErrOpen)
	}
	b.trialInFlight = true
	return true, nil
}

func (b *Breaker) after(err error, trial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.trialInFlight = false
	} else if b.state == StateHalfOpen {
		// Admitted before the circuit opened; only trials decide HALF_OPEN.
		return
	}

	var ex *excluded
	if errors.As(err, &ex) {
		return
	}
	if err != nil {
		// Shutdown is not a dependency failure.
		if errors.Is(err, context.Canceled) {
			return
		}
		b.failures++
		b.lastFailure = b.clockNow()
		switch b.state {
		case StateHalfOpen:
			b.setState(StateOpen)
		case StateClosed:
			if b.failures >= b.cfg.FailureThreshold {
				b.setState(StateOpen)
			}
		}
		return
	}

	if b.state == StateHalfOpen {
		b.halfOpenSuccess++
		if b.halfOpenSuccess >= b.cfg.HalfOpenSuccessRequired {
			b.resetLocked()
		}
	}
}

func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}

func (b *Breaker) resetLocked() {
	b.failures = 0
	b.halfOpenSuccess = 0
	b.trialInFlight = false
	b.lastFailure = time.Time{}
	b.setState(StateClosed)
}

// Reset forces the breaker back to CLOSED with cleared counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

// State returns the current state. An OPEN breaker whose timeout has elapsed
// still reports OPEN until the next call moves it to HALF_OPEN.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the recorded failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Name returns the guarded resource name.
func (b *Breaker) Name() string {
	return b.name
}
