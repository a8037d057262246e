package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrOpen = errors.New("circuit breaker open")

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

type Options struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	Now              func() time.Time
}

// Breaker guards calls to a flaky dependency. After FailureThreshold
// consecutive failures it rejects calls until ResetTimeout has passed, then
// lets a single trial call through.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	reset     time.Duration
	now       func() time.Time

	state    State
	failures int
	openedAt time.Time
	trial    bool
	// generation changes with every state transition. Results from calls
	// admitted under an older generation are dropped.
	generation uint64
}

func NewBreaker(opts Options) *Breaker {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Breaker{
		threshold: opts.FailureThreshold,
		reset:     opts.ResetTimeout,
		now:       opts.Now,
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	return b.state
}

// Do runs fn unless the breaker is open. Errors caused by ctx being
// cancelled do not count as failures.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	generation, err := b.acquire()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.record(ctx, generation, err)
	return err
}

func (b *Breaker) acquire() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.advance()
	switch b.state {
	case StateOpen:
		return 0, ErrOpen
	case StateHalfOpen:
		if b.trial {
			return 0, ErrOpen
		}
		b.trial = true
	}
	return b.generation, nil
}

func (b *Breaker) record(ctx context.Context, generation uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if generation != b.generation {
		return
	}

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		if b.state == StateHalfOpen {
			b.trial = false
		}
		return
	}

	if err == nil {
		if b.state != StateClosed {
			b.state = StateClosed
			b.generation++
		}
		b.failures = 0
		b.trial = false
		return
	}

	switch b.state {
	case StateHalfOpen:
		b.trip()
	default:
		b.failures++
		if b.failures >= b.threshold {
			b.trip()
		}
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.trial = false
	b.failures = 0
	b.generation++
}

// advance moves an open breaker to half-open once the reset timeout passed.
func (b *Breaker) advance() {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.reset {
		b.state = StateHalfOpen
		b.trial = false
		b.generation++
	}
}
