package provider

import (
	"sync"
	"time"
)

// CircuitState is the current state of one breaker
type CircuitState string

const (
	// StateClosed passes calls through, counting consecutive failures
	StateClosed CircuitState = "closed"
	// StateOpen short-circuits every call until the cooldown expires
	StateOpen CircuitState = "open"
	// StateHalfOpen admits a single trial call
	StateHalfOpen CircuitState = "half_open"
)

// BreakerConfig tunes circuit behavior
type BreakerConfig struct {
	// FailureThreshold is how many failures within Window trip the circuit
	FailureThreshold int
	// Window is the rolling window for counting failures
	Window time.Duration
	// Cooldown is the initial open duration; it doubles on each failed
	// trial up to MaxCooldown
	Cooldown    time.Duration
	MaxCooldown time.Duration
}

// DefaultBreakerConfig returns the production defaults
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Window:           30 * time.Second,
		Cooldown:         10 * time.Second,
		MaxCooldown:      5 * time.Minute,
	}
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	def := DefaultBreakerConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.Window <= 0 {
		c.Window = def.Window
	}
	if c.Cooldown <= 0 {
		c.Cooldown = def.Cooldown
	}
	if c.MaxCooldown <= 0 {
		c.MaxCooldown = def.MaxCooldown
	}
	return c
}

// breaker is the state for one (tenant, upstream) pair. It is mutated only
// under its own lock; cooldown expiry is checked lazily on the next Allow,
// never by a timer.
type breaker struct {
	mu  sync.Mutex
	cfg BreakerConfig
	now func() time.Time

	state         CircuitState
	failureCount  int
	firstFailure  time.Time
	lastFailure   time.Time
	nextRetry     time.Time
	cooldown      time.Duration
	trialInFlight bool
}

func newBreaker(cfg BreakerConfig, now func() time.Time) *breaker {
	if now == nil {
		now = time.Now
	}
	return &breaker{
		cfg:      cfg.withDefaults(),
		now:      now,
		state:    StateClosed,
		cooldown: cfg.withDefaults().Cooldown,
	}
}

// Allow reports whether a call may proceed now. In HalfOpen only the first
// caller past the cooldown gets the trial slot; concurrent callers are
// rejected until the trial reports back.
func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Before(b.nextRetry) {
			return false
		}
		b.state = StateHalfOpen
		b.trialInFlight = true
		return true
	case StateHalfOpen:
		if b.trialInFlight {
			return false
		}
		b.trialInFlight = true
		return true
	}
	return false
}

// Success records a successful call outcome
func (b *breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failureCount = 0
	b.trialInFlight = false
	b.cooldown = b.cfg.Cooldown
}

// Failure records a failed call outcome (one retry-exhausted call counts as
// exactly one failure)
func (b *breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	if b.state == StateHalfOpen {
		// Failed trial: reopen with doubled cooldown
		b.trialInFlight = false
		b.cooldown *= 2
		if b.cooldown > b.cfg.MaxCooldown {
			b.cooldown = b.cfg.MaxCooldown
		}
		b.open(now)
		return
	}

	if b.failureCount == 0 || now.Sub(b.firstFailure) > b.cfg.Window {
		// Start a fresh window
		b.failureCount = 0
		b.firstFailure = now
	}
	b.failureCount++
	b.lastFailure = now

	if b.failureCount >= b.cfg.FailureThreshold {
		b.open(now)
	}
}

func (b *breaker) open(now time.Time) {
	b.state = StateOpen
	b.lastFailure = now
	b.nextRetry = now.Add(b.cooldown)
}

// State returns the current state, applying lazy cooldown expiry so callers
// observe HalfOpen once the wait has passed
func (b *breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && !b.now().Before(b.nextRetry) {
		return StateHalfOpen
	}
	return b.state
}
