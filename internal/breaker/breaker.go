// Package breaker implements spec.md §4.11: a per-dependency circuit
// breaker state machine (closed/open/half-open) with rolling error-rate
// tripping and a single-probe half-open recovery. The teacher and the rest
// of the retrieval pack carry no breaker of any kind; this is new
// infrastructure, shaped after the standard closed/open/half-open model
// spec.md §4.11 names directly.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ncecere-raito/scrapeengine/internal/metrics"
	"github.com/ncecere-raito/scrapeengine/internal/model"
	"github.com/rs/zerolog"
)

// ErrOpen is returned by Execute when the breaker is open and the call is
// rejected without invoking the wrapped function.
var ErrOpen = errors.New("circuit breaker open")

// Options configures one Breaker.
type Options struct {
	ErrorThresholdPct float64
	MinRequests       int
	ResetTimeout      time.Duration
	WindowSize        int // how many recent outcomes feed the rolling error rate
}

// Transition is emitted on every state change.
type Transition struct {
	Dependency string
	From       model.BreakerState
	To         model.BreakerState
	At         time.Time
}

// Listener receives breaker transitions.
type Listener func(Transition)

// Breaker guards calls to a single named dependency.
type Breaker struct {
	Dependency string
	opts       Options
	log        zerolog.Logger
	listeners  []Listener

	mu           sync.Mutex
	state        model.BreakerState
	outcomes     []bool // true=success, ring buffer up to WindowSize
	openedAt     time.Time
	halfOpenBusy bool
}

func New(dependency string, opts Options, log zerolog.Logger) *Breaker {
	if opts.WindowSize <= 0 {
		opts.WindowSize = 20
	}
	return &Breaker{
		Dependency: dependency,
		opts:       opts,
		log:        log,
		state:      model.BreakerClosed,
	}
}

// OnTransition registers a listener for state changes.
func (b *Breaker) OnTransition(l Listener) {
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()
}

// State returns the breaker's current state.
func (b *Breaker) State() model.BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn if the breaker admits the call, records the outcome, and
// drives the state machine. Returns ErrOpen without calling fn when the
// breaker is open (or when half-open already has a probe in flight).
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !b.admit() {
		return ErrOpen
	}

	err := fn(ctx)
	b.record(err == nil)
	return err
}

// admit decides whether to let a call through, transitioning open→half-open
// once ResetTimeout has passed.
func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case model.BreakerClosed:
		return true
	case model.BreakerHalfOpen:
		if b.halfOpenBusy {
			return false
		}
		b.halfOpenBusy = true
		return true
	case model.BreakerOpen:
		if time.Since(b.openedAt) >= b.opts.ResetTimeout {
			b.transitionLocked(model.BreakerHalfOpen)
			b.halfOpenBusy = true
			return true
		}
		return false
	default:
		return true
	}
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case model.BreakerHalfOpen:
		b.halfOpenBusy = false
		if success {
			b.outcomes = nil
			b.transitionLocked(model.BreakerClosed)
		} else {
			b.transitionLocked(model.BreakerOpen)
			b.openedAt = time.Now()
		}
		return
	case model.BreakerOpen:
		return
	}

	b.outcomes = append(b.outcomes, success)
	if len(b.outcomes) > b.opts.WindowSize {
		b.outcomes = b.outcomes[len(b.outcomes)-b.opts.WindowSize:]
	}

	if len(b.outcomes) < b.opts.MinRequests {
		return
	}

	failures := 0
	for _, ok := range b.outcomes {
		if !ok {
			failures++
		}
	}
	errorRate := float64(failures) / float64(len(b.outcomes)) * 100

	if errorRate >= b.opts.ErrorThresholdPct {
		b.transitionLocked(model.BreakerOpen)
		b.openedAt = time.Now()
	}
}

// transitionLocked must be called with b.mu held.
func (b *Breaker) transitionLocked(to model.BreakerState) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	t := Transition{Dependency: b.Dependency, From: from, To: to, At: time.Now()}
	b.log.Info().Str("dependency", b.Dependency).Str("from", string(from)).Str("to", string(to)).Msg("circuit breaker transition")
	metrics.RecordBreakerTransition(b.Dependency, string(from), string(to))
	for _, l := range b.listeners {
		l(t)
	}
}

// Registry owns one Breaker per dependency, created lazily on first use.
type Registry struct {
	mu       sync.Mutex
	opts     Options
	log      zerolog.Logger
	breakers map[string]*Breaker
}

func NewRegistry(opts Options, log zerolog.Logger) *Registry {
	return &Registry{opts: opts, log: log, breakers: make(map[string]*Breaker)}
}

// Get returns (creating if needed) the Breaker for dependency.
func (r *Registry) Get(dependency string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[dependency]
	if !ok {
		b = New(dependency, r.opts, r.log)
		r.breakers[dependency] = b
	}
	return b
}
