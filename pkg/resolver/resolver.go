// Package resolver maps a request's tenant domain to its content index.
// Resolution runs three tiers before giving up: exact cache lookup,
// cache lookup by normalized alternates, then the datastore directly. A
// cache miss alone never becomes "domain not found"; only a datastore miss
// after all tiers is authoritative.
package resolver

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/whippetlabs/whippet/pkg/adapter"
	"github.com/whippetlabs/whippet/pkg/model"
	"github.com/whippetlabs/whippet/pkg/repository"
	"github.com/whippetlabs/whippet/pkg/utils/logging"
)

// Result carries the resolved index plus which tier satisfied the lookup
// and the tenant record when tier 3 fetched one.
type Result struct {
	IndexID model.IndexID
	Tier    model.ResolveTier

	// Tenant is populated only on a datastore hit; cache hits return the
	// index alone.
	Tenant *model.Tenant
}

// Resolver performs tiered domain resolution
type Resolver struct {
	cache adapter.DomainCache
	repo  repository.Repository
}

// New creates a Resolver. cache may be nil, in which case resolution goes
// straight to the datastore.
func New(cache adapter.DomainCache, repo repository.Repository) *Resolver {
	return &Resolver{
		cache: cache,
		repo:  repo,
	}
}

// Resolve maps a tenant domain to its index ID. Returns
// model.ErrDomainNotFound only after all three tiers are exhausted.
func (r *Resolver) Resolve(ctx context.Context, tenantDomain string) (*Result, error) {
	logger := logging.From(ctx)
	normalized := model.NormalizeDomain(tenantDomain)
	if normalized == "" {
		return nil, goerr.Wrap(model.ErrDomainNotFound, "empty domain", goerr.V("domain", tenantDomain))
	}

	// Tier 1: exact cache lookup
	if r.cache != nil {
		indexID, err := r.cache.GetIndex(ctx, normalized)
		if err != nil {
			// A broken cache degrades to the datastore; it must not turn
			// into a resolution failure
			logger.Warn("domain cache lookup failed", "domain", normalized, "error", err)
		} else if indexID != "" {
			logger.Debug("domain resolved", "domain", normalized, "tier", model.TierCacheExact)
			return &Result{IndexID: indexID, Tier: model.TierCacheExact}, nil
		}

		// Tier 2: cache lookup by normalized alternates
		for _, alt := range model.DomainAlternates(normalized) {
			if alt == normalized {
				continue
			}
			indexID, err := r.cache.GetIndex(ctx, alt)
			if err != nil {
				logger.Warn("domain cache lookup failed", "domain", alt, "error", err)
				break
			}
			if indexID != "" {
				logger.Debug("domain resolved", "domain", normalized, "alternate", alt,
					"tier", model.TierCacheAlternate)
				return &Result{IndexID: indexID, Tier: model.TierCacheAlternate}, nil
			}
		}
	}

	// Tier 3: datastore, bypassing the cache entirely
	tenant, err := r.lookupTenant(ctx, normalized)
	if err != nil {
		return nil, err
	}

	logger.Debug("domain resolved", "domain", normalized, "tier", model.TierDatastore)
	r.refreshCache(ctx, normalized, tenant.IndexID)

	return &Result{
		IndexID: tenant.IndexID,
		Tier:    model.TierDatastore,
		Tenant:  tenant,
	}, nil
}

// Tenant fetches the full tenant record for a domain, always from the
// datastore. The search pipeline needs this when a cache hit resolved the
// index but the provider configuration is required too.
func (r *Resolver) Tenant(ctx context.Context, tenantDomain string) (*model.Tenant, error) {
	normalized := model.NormalizeDomain(tenantDomain)
	if normalized == "" {
		return nil, goerr.Wrap(model.ErrDomainNotFound, "empty domain", goerr.V("domain", tenantDomain))
	}
	return r.lookupTenant(ctx, normalized)
}

func (r *Resolver) lookupTenant(ctx context.Context, normalized string) (*model.Tenant, error) {
	var lastErr error
	for _, candidate := range model.DomainAlternates(normalized) {
		tenant, err := r.repo.GetTenantByDomain(ctx, candidate)
		if err == nil {
			return tenant, nil
		}
		lastErr = err
	}
	return nil, goerr.Wrap(lastErr, "domain resolution exhausted all tiers",
		goerr.V("domain", normalized))
}

// refreshCache backfills tier-1 entries after a datastore hit, best-effort
func (r *Resolver) refreshCache(ctx context.Context, domain string, indexID model.IndexID) {
	if r.cache == nil {
		return
	}
	if err := r.cache.PutIndex(ctx, domain, indexID); err != nil {
		logging.From(ctx).Warn("failed to refresh domain cache", "domain", domain, "error", err)
	}
}
