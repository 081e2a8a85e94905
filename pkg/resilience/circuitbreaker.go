// Package resilience guards calls to flaky upstreams (scraped sites, the
// chat-completion API) with circuit breakers.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/faultscope/faultscope/pkg/fn"
)

// Circuit breaker states.
type State int

const (
	StateClosed   State = iota // normal operation
	StateOpen                  // tripping, reject calls
	StateHalfOpen              // allowing a probe call
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
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// BreakerOpts configures the circuit breaker.
type BreakerOpts struct {
	// FailThreshold is how many consecutive failures trip the breaker.
	FailThreshold int
	// Timeout is how long the breaker stays open before entering half-open.
	Timeout time.Duration
	// HalfOpenMax is the number of probe calls allowed in half-open state.
	HalfOpenMax int
}

// DefaultBreakerOpts trips after five straight upstream failures and probes
// again after a minute.
var DefaultBreakerOpts = BreakerOpts{
	FailThreshold: 5,
	Timeout:       time.Minute,
	HalfOpenMax:   1,
}

// Breaker implements a circuit breaker with closed/open/half-open states.
type Breaker struct {
	mu            sync.Mutex
	opts          BreakerOpts
	state         State
	failures      int
	openedAt      time.Time
	halfOpenCount int
	now           func() time.Time // for testing
}

// NewBreaker creates a circuit breaker with the given options.
func NewBreaker(opts BreakerOpts) *Breaker {
	if opts.FailThreshold <= 0 {
		opts.FailThreshold = DefaultBreakerOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultBreakerOpts.Timeout
	}
	if opts.HalfOpenMax <= 0 {
		opts.HalfOpenMax = DefaultBreakerOpts.HalfOpenMax
	}
	return &Breaker{opts: opts, now: time.Now}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState()
}

// currentState returns state, transitioning open→half-open if timeout elapsed. Must hold mu.
func (b *Breaker) currentState() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.opts.Timeout {
		b.state = StateHalfOpen
		b.halfOpenCount = 0
	}
	return b.state
}

// allow reserves a slot for one call, or reports ErrCircuitOpen.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.currentState() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.halfOpenCount >= b.opts.HalfOpenMax {
			return ErrCircuitOpen
		}
		b.halfOpenCount++
	}
	return nil
}

// record feeds the outcome of a call back into the state machine.
func (b *Breaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if failed {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.opts.FailThreshold {
			b.state = StateOpen
			b.openedAt = b.now()
			b.failures = 0
			b.halfOpenCount = 0
		}
		return
	}
	if b.state == StateHalfOpen {
		b.state = StateClosed
	}
	b.failures = 0
}

// Call executes f through the circuit breaker.
func (b *Breaker) Call(ctx context.Context, f func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := f(ctx)
	b.record(err != nil)
	return err
}

// CallResult is a generic version of Call that works with fn.Result.
func CallResult[T any](b *Breaker, ctx context.Context, f func(context.Context) fn.Result[T]) fn.Result[T] {
	if err := b.allow(); err != nil {
		return fn.Err[T](err)
	}
	result := f(ctx)
	b.record(result.IsErr())
	return result
}

// BreakerStage wraps an fn.Stage with circuit breaker protection.
func BreakerStage[In, Out any](b *Breaker, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return func(ctx context.Context, in In) fn.Result[Out] {
		return CallResult(b, ctx, func(ctx context.Context) fn.Result[Out] {
			return stage(ctx, in)
		})
	}
}

// Group hands out one breaker per key, created on first use with shared
// options. Scrape targets are keyed by name so one dead site does not
// penalise the others.
type Group struct {
	mu       sync.Mutex
	opts     BreakerOpts
	breakers map[string]*Breaker
}

// NewGroup creates an empty breaker group.
func NewGroup(opts BreakerOpts) *Group {
	return &Group{opts: opts, breakers: make(map[string]*Breaker)}
}

// Get returns the breaker for key, creating it if needed.
func (g *Group) Get(key string) *Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.breakers[key]
	if !ok {
		b = NewBreaker(g.opts)
		g.breakers[key] = b
	}
	return b
}

// States reports the current state of every breaker in the group.
func (g *Group) States() map[string]State {
	g.mu.Lock()
	keys := make([]string, 0, len(g.breakers))
	for k := range g.breakers {
		keys = append(keys, k)
	}
	g.mu.Unlock()

	out := make(map[string]State, len(keys))
	for _, k := range keys {
		out[k] = g.Get(k).State()
	}
	return out
}
