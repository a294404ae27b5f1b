package resolver_test

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/whippetlabs/whippet/pkg/model"
	"github.com/whippetlabs/whippet/pkg/resolver"
)

// Mock DomainCache
type mockCache struct {
	entries map[string]model.IndexID
	err     error
	gets    []string
	puts    map[string]model.IndexID
}

func newMockCache() *mockCache {
	return &mockCache{
		entries: make(map[string]model.IndexID),
		puts:    make(map[string]model.IndexID),
	}
}

func (m *mockCache) GetIndex(ctx context.Context, domain string) (model.IndexID, error) {
	m.gets = append(m.gets, domain)
	if m.err != nil {
		return "", m.err
	}
	return m.entries[domain], nil
}

func (m *mockCache) PutIndex(ctx context.Context, domain string, indexID model.IndexID) error {
	m.puts[domain] = indexID
	return nil
}

// Mock Repository
type mockRepo struct {
	tenants map[string]*model.Tenant
	calls   int
}

func newMockRepo() *mockRepo {
	return &mockRepo{tenants: make(map[string]*model.Tenant)}
}

func (m *mockRepo) GetTenantByDomain(ctx context.Context, domain string) (*model.Tenant, error) {
	m.calls++
	if t, ok := m.tenants[domain]; ok {
		return t, nil
	}
	for _, t := range m.tenants {
		for _, a := range t.Aliases {
			if a == domain {
				return t, nil
			}
		}
	}
	return nil, goerr.Wrap(model.ErrDomainNotFound, "no tenant for domain", goerr.V("domain", domain))
}

func (m *mockRepo) PutTenant(ctx context.Context, tenant *model.Tenant) error {
	m.tenants[tenant.Domain] = tenant
	return nil
}

func (m *mockRepo) SearchContent(ctx context.Context, indexID model.IndexID, embedding firestore.Vector32, limit int) ([]*model.ContentHit, error) {
	return nil, nil
}

func (m *mockRepo) PutContent(ctx context.Context, doc *model.ContentDoc) error {
	return nil
}

func TestResolveTierCacheExact(t *testing.T) {
	cache := newMockCache()
	cache.entries["shop.example.com"] = "idx-1"
	r := resolver.New(cache, newMockRepo())

	result, err := r.Resolve(context.Background(), "shop.example.com")
	gt.NoError(t, err)
	gt.Equal(t, result.IndexID, model.IndexID("idx-1"))
	gt.Equal(t, result.Tier, model.TierCacheExact)
}

func TestResolveNormalizesBeforeLookup(t *testing.T) {
	cache := newMockCache()
	cache.entries["shop.example.com"] = "idx-1"
	r := resolver.New(cache, newMockRepo())

	result, err := r.Resolve(context.Background(), "https://Shop.Example.com/checkout?step=1")
	gt.NoError(t, err)
	gt.Equal(t, result.Tier, model.TierCacheExact)
}

func TestResolveTierCacheAlternate(t *testing.T) {
	cache := newMockCache()
	cache.entries["shop.example.com"] = "idx-1"
	r := resolver.New(cache, newMockRepo())

	result, err := r.Resolve(context.Background(), "www.shop.example.com")
	gt.NoError(t, err)
	gt.Equal(t, result.IndexID, model.IndexID("idx-1"))
	gt.Equal(t, result.Tier, model.TierCacheAlternate)
}

func TestResolveTierDatastore(t *testing.T) {
	cache := newMockCache()
	repo := newMockRepo()
	repo.tenants["shop.example.com"] = &model.Tenant{
		IndexID: "idx-1",
		Domain:  "shop.example.com",
	}
	r := resolver.New(cache, repo)

	result, err := r.Resolve(context.Background(), "shop.example.com")
	gt.NoError(t, err)
	gt.Equal(t, result.IndexID, model.IndexID("idx-1"))
	gt.Equal(t, result.Tier, model.TierDatastore)
	gt.V(t, result.Tenant).NotNil()

	// The datastore hit backfills the cache for the next request
	gt.Equal(t, cache.puts["shop.example.com"], model.IndexID("idx-1"))
}

func TestResolveDatastoreTriesAlternates(t *testing.T) {
	repo := newMockRepo()
	repo.tenants["shop.example.com"] = &model.Tenant{
		IndexID: "idx-1",
		Domain:  "shop.example.com",
	}
	r := resolver.New(newMockCache(), repo)

	result, err := r.Resolve(context.Background(), "www.shop.example.com")
	gt.NoError(t, err)
	gt.Equal(t, result.IndexID, model.IndexID("idx-1"))
	gt.Equal(t, result.Tier, model.TierDatastore)
}

func TestCacheFailureDegradesToDatastore(t *testing.T) {
	// A transient cache outage must resolve through the datastore, never
	// surface as "domain not found"
	cache := newMockCache()
	cache.err = errors.New("connection refused")
	repo := newMockRepo()
	repo.tenants["shop.example.com"] = &model.Tenant{
		IndexID: "idx-1",
		Domain:  "shop.example.com",
	}
	r := resolver.New(cache, repo)

	result, err := r.Resolve(context.Background(), "shop.example.com")
	gt.NoError(t, err)
	gt.Equal(t, result.Tier, model.TierDatastore)
}

func TestResolveNotFoundAfterAllTiers(t *testing.T) {
	cache := newMockCache()
	repo := newMockRepo()
	r := resolver.New(cache, repo)

	_, err := r.Resolve(context.Background(), "unknown.example.com")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrDomainNotFound))

	// Every tier was attempted: two cache lookups and two datastore
	// candidates (with and without www)
	gt.A(t, cache.gets).Length(2)
	gt.Equal(t, repo.calls, 2)
}

func TestResolveEmptyDomain(t *testing.T) {
	r := resolver.New(newMockCache(), newMockRepo())

	_, err := r.Resolve(context.Background(), "   ")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrDomainNotFound))
}

func TestResolveNilCache(t *testing.T) {
	repo := newMockRepo()
	repo.tenants["shop.example.com"] = &model.Tenant{
		IndexID: "idx-1",
		Domain:  "shop.example.com",
	}
	r := resolver.New(nil, repo)

	result, err := r.Resolve(context.Background(), "shop.example.com")
	gt.NoError(t, err)
	gt.Equal(t, result.Tier, model.TierDatastore)
}
