// Package breaker wraps sony/gobreaker with the named-registry idiom the
// teacher uses for its escalation engine lookups (pkg/escalation/engine.go),
// adapted here to guard outbound notifier deliveries (the "notify" breaker
// used by pkg/notify). Fetches from the external ticket source do not go
// through a breaker.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/ticketsync/ingestor/internal/telemetry"
)

// IsOpenError reports whether err is the distinguished error returned when
// a call is rejected because its circuit is open.
func IsOpenError(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState)
}

// State mirrors gobreaker's state names for status reporting.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Status is the externally reported state of a circuit.
type Status struct {
	Name       string    `json:"name"`
	State      State     `json:"state"`
	Failures   uint32    `json:"failures"`
	OpenedAt   time.Time `json:"opened_at,omitempty"`
	RetryAfter int64     `json:"retry_after_seconds,omitempty"`
}

// Breaker guards a single dependency call behind sony/gobreaker, tracking
// when it most recently opened so Status can report a retry_after.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
	cfg  gobreaker.Settings

	mu       sync.Mutex
	openedAt time.Time
}

// New builds a breaker that trips after failureThreshold consecutive
// failures and stays open for cooldown before probing half-open.
func New(name string, failureThreshold uint32, cooldown time.Duration) *Breaker {
	b := &Breaker{name: name}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.mu.Lock()
			defer b.mu.Unlock()
			if to == gobreaker.StateOpen {
				b.openedAt = time.Now()
			}
			if to == gobreaker.StateClosed {
				b.openedAt = time.Time{}
			}
			telemetry.CircuitBreakerState.WithLabelValues(name).Set(stateGaugeValue(to))
		},
	}

	b.cfg = settings
	b.cb = gobreaker.NewCircuitBreaker(settings)
	telemetry.CircuitBreakerState.WithLabelValues(name).Set(stateGaugeValue(gobreaker.StateClosed))
	return b
}

// stateGaugeValue maps a gobreaker.State to the gauge values documented on
// telemetry.CircuitBreakerState: 0=closed, 1=half-open, 2=open.
func stateGaugeValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 2
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 0
	}
}

// Execute runs fn through the breaker. If the circuit is open, it returns
// gobreaker.ErrOpenState without invoking fn.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	return b.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
}

// Status reports the breaker's current state for the circuit-breaker
// status endpoint.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	openedAt := b.openedAt
	b.mu.Unlock()

	counts := b.cb.Counts()

	var state State
	switch b.cb.State() {
	case gobreaker.StateOpen:
		state = StateOpen
	case gobreaker.StateHalfOpen:
		state = StateHalfOpen
	default:
		state = StateClosed
	}

	st := Status{
		Name:     b.name,
		State:    state,
		Failures: counts.ConsecutiveFailures,
		OpenedAt: openedAt,
	}

	if state == StateOpen && !openedAt.IsZero() {
		retryAt := openedAt.Add(b.cfg.Timeout)
		if remaining := time.Until(retryAt); remaining > 0 {
			st.RetryAfter = int64(remaining.Seconds())
		}
	}

	return st
}

// Reset forces the breaker back to the closed state, discarding counts.
func (b *Breaker) Reset() {
	b.cb = gobreaker.NewCircuitBreaker(b.cfg)
	b.mu.Lock()
	b.openedAt = time.Time{}
	b.mu.Unlock()
	telemetry.CircuitBreakerState.WithLabelValues(b.name).Set(stateGaugeValue(gobreaker.StateClosed))
}

// Registry is a process-wide set of named breakers, one instance per name.
type Registry struct {
	failureThreshold uint32
	cooldown         time.Duration

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewRegistry builds a Registry that creates breakers with the given
// defaults on first use of a name.
func NewRegistry(failureThreshold uint32, cooldown time.Duration) *Registry {
	return &Registry{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		breakers:         make(map[string]*Breaker),
	}
}

// Get returns the named breaker, creating it on first access.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[name]
	if !ok {
		b = New(name, r.failureThreshold, r.cooldown)
		r.breakers[name] = b
	}
	return b
}

// All returns the status of every breaker known to the registry.
func (r *Registry) All() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]Status, 0, len(r.breakers))
	for _, b := range r.breakers {
		statuses = append(statuses, b.Status())
	}
	return statuses
}

// Reset resets the named breaker if it exists.
func (r *Registry) Reset(name string) error {
	r.mu.Lock()
	b, ok := r.breakers[name]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("breaker: unknown circuit %q", name)
	}
	b.Reset()
	return nil
}
