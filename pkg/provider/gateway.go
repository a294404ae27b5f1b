package provider

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/m-mizutani/goerr/v2"
	"github.com/whippetlabs/whippet/pkg/model"
	"github.com/whippetlabs/whippet/pkg/utils/logging"
)

// upstream names the provider API surfaces tracked by separate breakers.
// A failing catalog endpoint must not block order lookups.
const (
	upstreamCatalog = "catalog"
	upstreamOrders  = "orders"
)

// RetryConfig tunes the bounded retry inside one gateway call
type RetryConfig struct {
	Attempts  uint
	BaseDelay time.Duration
	MaxJitter time.Duration
}

// DefaultRetryConfig returns the production defaults: 2 attempts, 100ms
// then 200ms, jittered.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:  2,
		BaseDelay: 100 * time.Millisecond,
		MaxJitter: 50 * time.Millisecond,
	}
}

// Gateway wraps per-tenant commerce clients in retry and circuit breaking.
// One Gateway instance owns all breaker state; construct isolated instances
// for isolated tests.
type Gateway struct {
	factory Factory
	breaker BreakerConfig
	retry   RetryConfig
	now     func() time.Time

	mu       sync.Mutex
	breakers map[string]*breaker
	clients  map[string]Client
}

// GatewayOption is a functional option for Gateway
type GatewayOption func(*Gateway)

// WithBreakerConfig overrides circuit breaker tuning
func WithBreakerConfig(cfg BreakerConfig) GatewayOption {
	return func(g *Gateway) {
		g.breaker = cfg
	}
}

// WithRetryConfig overrides retry tuning
func WithRetryConfig(cfg RetryConfig) GatewayOption {
	return func(g *Gateway) {
		g.retry = cfg
	}
}

// WithClock overrides the time source, for breaker tests
func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		g.now = now
	}
}

// NewGateway creates a Gateway using the given client factory
func NewGateway(factory Factory, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		factory:  factory,
		breaker:  DefaultBreakerConfig(),
		retry:    DefaultRetryConfig(),
		now:      time.Now,
		breakers: make(map[string]*breaker),
		clients:  make(map[string]Client),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SearchProducts queries the tenant's catalog through retry and the
// catalog breaker. Returns model.ErrProviderUnavailable (with the failure
// kind attached) when the circuit is open or the call failed after retries.
func (g *Gateway) SearchProducts(ctx context.Context, tenant *model.Tenant, query string, filters SearchFilters, limit int) ([]*Product, error) {
	var products []*Product
	err := g.call(ctx, tenant, upstreamCatalog, func(ctx context.Context, client Client) error {
		result, err := client.SearchProducts(ctx, query, filters, limit)
		if err != nil {
			return err
		}
		products = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

// GetOrder fetches one order through retry and the orders breaker
func (g *Gateway) GetOrder(ctx context.Context, tenant *model.Tenant, ref string) (*Order, error) {
	var order *Order
	err := g.call(ctx, tenant, upstreamOrders, func(ctx context.Context, client Client) error {
		result, err := client.GetOrder(ctx, ref)
		if err != nil {
			return err
		}
		order = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CircuitState exposes the breaker state for a (tenant, upstream) pair,
// for observability and tests
func (g *Gateway) CircuitState(tenant *model.Tenant, up string) CircuitState {
	return g.breakerFor(tenant.Domain, up).State()
}

func (g *Gateway) call(ctx context.Context, tenant *model.Tenant, up string, fn func(context.Context, Client) error) error {
	if !tenant.HasProvider() {
		return goerr.Wrap(model.ErrProviderUnavailable, "no provider configured",
			goerr.V("domain", tenant.Domain))
	}

	logger := logging.From(ctx)
	brk := g.breakerFor(tenant.Domain, up)

	if !brk.Allow() {
		// Short-circuit: no network attempt while the circuit is open
		return WithKind(
			goerr.Wrap(model.ErrProviderUnavailable, "circuit open",
				goerr.V("domain", tenant.Domain), goerr.V("upstream", up)),
			model.ErrorKindUnknown)
	}

	client, err := g.clientFor(tenant)
	if err != nil {
		brk.Failure()
		return goerr.Wrap(err, "failed to create provider client", goerr.V("domain", tenant.Domain))
	}

	// Bounded retry counts as a single outcome toward the circuit
	err = retry.Do(
		func() error { return fn(ctx, client) },
		retry.Context(ctx),
		retry.Attempts(g.retry.Attempts),
		retry.Delay(g.retry.BaseDelay),
		retry.MaxJitter(g.retry.MaxJitter),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.RetryIf(retriable),
		retry.LastErrorOnly(true),
	)

	if err != nil {
		prev := brk.State()
		brk.Failure()
		if next := brk.State(); next != prev {
			logger.Warn("provider circuit state changed",
				"domain", tenant.Domain, "upstream", up, "from", prev, "to", next)
		}
		kind := KindOf(err)
		return WithKind(
			goerr.Wrap(model.ErrProviderUnavailable, "provider call failed",
				goerr.V("domain", tenant.Domain), goerr.V("upstream", up),
				goerr.V("kind", kind), goerr.V("cause", err.Error())),
			kind)
	}

	prev := brk.State()
	brk.Success()
	if prev != StateClosed {
		logger.Info("provider circuit closed", "domain", tenant.Domain, "upstream", up)
	}
	return nil
}

func (g *Gateway) breakerFor(domain, up string) *breaker {
	key := domain + "/" + up

	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.breakers[key]; ok {
		return b
	}
	b := newBreaker(g.breaker, g.now)
	g.breakers[key] = b
	return b
}

func (g *Gateway) clientFor(tenant *model.Tenant) (Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[tenant.Domain]; ok {
		return c, nil
	}
	c, err := g.factory.Create(tenant.Provider)
	if err != nil {
		return nil, err
	}
	g.clients[tenant.Domain] = c
	return c, nil
}
