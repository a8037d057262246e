package licensing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"payaid/internal/authn"
	"payaid/internal/platform/resilience"

	"go.uber.org/zap"
)

type Source interface {
	LoadTenant(ctx context.Context, tenantID string) (TenantState, error)
}

type GateOptions struct {
	TTL     time.Duration
	Breaker *resilience.Breaker
	Logger  *zap.Logger
	Now     func() time.Time
}

// Gate decides whether a principal may use a module. Tenant state is cached
// for TTL and loaded through a circuit breaker.
type Gate struct {
	source  Source
	ttl     time.Duration
	breaker *resilience.Breaker
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]cachedState
}

type cachedState struct {
	state    TenantState
	loadedAt time.Time
}

func NewGate(source Source, opts GateOptions) *Gate {
	if opts.TTL <= 0 {
		opts.TTL = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewBreaker(resilience.Options{Now: opts.Now})
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Gate{
		source:  source,
		ttl:     opts.TTL,
		breaker: opts.Breaker,
		logger:  opts.Logger,
		now:     opts.Now,
		cache:   make(map[string]cachedState),
	}
}

func (g *Gate) RequireModuleAccess(ctx context.Context, p authn.Principal, module string) error {
	if !KnownModule(module) {
		return fmt.Errorf("%w: %q", ErrUnknownModule, module)
	}
	if p.SuperAdmin {
		return nil
	}
	state, err := g.tenantState(ctx, p.TenantID)
	if err != nil {
		return err
	}
	if state.Status == TenantSuspended {
		return ErrTenantSuspended
	}
	license, ok := state.Licenses[module]
	if !ok || !license.Enabled {
		return fmt.Errorf("%w: %s", ErrModuleNotLicensed, module)
	}
	if license.ExpiresAt != nil && !license.ExpiresAt.After(g.now()) {
		return fmt.Errorf("%w: %s", ErrLicenseExpired, module)
	}
	return nil
}

// TenantState returns the cached state for tenantID, loading it if needed.
func (g *Gate) TenantState(ctx context.Context, tenantID string) (TenantState, error) {
	return g.tenantState(ctx, tenantID)
}

// Invalidate drops tenantID from this process's cache only. Other processes
// pick the change up through Follow, or once their TTL expires.
func (g *Gate) Invalidate(tenantID string) {
	g.mu.Lock()
	delete(g.cache, tenantID)
	g.mu.Unlock()
}

// Check is a readiness check reporting the breaker state.
func (g *Gate) Check(ctx context.Context) error {
	if g.breaker.State() == resilience.StateOpen {
		return resilience.ErrOpen
	}
	return nil
}

func (g *Gate) tenantState(ctx context.Context, tenantID string) (TenantState, error) {
	now := g.now()
	g.mu.Lock()
	cached, ok := g.cache[tenantID]
	g.mu.Unlock()
	if ok && now.Sub(cached.loadedAt) < g.ttl {
		return cached.state, nil
	}

	var state TenantState
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		loaded, err := g.source.LoadTenant(ctx, tenantID)
		if errors.Is(err, ErrTenantNotFound) {
			// a missing tenant is an answer, not a source failure
			state = TenantState{}
			return nil
		}
		if err != nil {
			return err
		}
		state = loaded
		return nil
	})
	if err != nil {
		g.logger.Warn("license source unavailable", zap.String("tenant_id", tenantID), zap.Error(err))
		return TenantState{}, fmt.Errorf("%w: %v", ErrLicenseUnavailable, err)
	}
	if state.TenantID == "" {
		return TenantState{}, ErrTenantNotFound
	}

	g.mu.Lock()
	g.cache[tenantID] = cachedState{state: state, loadedAt: now}
	g.mu.Unlock()
	return state, nil
}
