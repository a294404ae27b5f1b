package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrDomainNotFound means every resolver tier was exhausted. It is fatal
	// for the turn and must never be conflated with an empty catalog: a
	// transient cache miss alone never produces this error.
	ErrDomainNotFound = goerr.New("domain not found")
)

// IndexID identifies a tenant's content index (catalog + pages)
type IndexID string

// ResolveTier records which lookup tier satisfied a domain resolution
type ResolveTier string

const (
	TierCacheExact     ResolveTier = "cache_exact"
	TierCacheAlternate ResolveTier = "cache_alternate"
	TierDatastore      ResolveTier = "datastore"
)

// Tenant is the per-domain configuration the engine needs: which content
// index to query and, when the storefront has one, how to reach its commerce
// platform. Ownership, billing and access control live elsewhere.
type Tenant struct {
	IndexID IndexID `firestore:"index_id" json:"index_id"`
	Domain  string  `firestore:"domain" json:"domain"`

	// Aliases are alternate hostnames that map to the same index
	// (www-variant, vanity domains).
	Aliases []string `firestore:"aliases,omitempty" json:"aliases,omitempty"`

	Provider *ProviderConfig `firestore:"provider,omitempty" json:"provider,omitempty"`
}

// HasProvider reports whether a commerce platform is configured for direct
// catalog queries
func (t *Tenant) HasProvider() bool {
	return t != nil && t.Provider != nil && t.Provider.BaseURL != ""
}

// ProviderConfig holds the commerce platform connection for one tenant
type ProviderConfig struct {
	// Platform name, currently always "woocommerce"
	Platform string `firestore:"platform" json:"platform"`

	BaseURL        string `firestore:"base_url" json:"base_url"`
	ConsumerKey    string `firestore:"consumer_key" json:"consumer_key"`
	ConsumerSecret string `firestore:"consumer_secret" json:"consumer_secret"`

	// Currency is the ISO 4217 code used when formatting prices ("GBP")
	Currency string `firestore:"currency,omitempty" json:"currency,omitempty"`
}

// NormalizeDomain lowercases a tenant domain and strips scheme, port, path
// and surrounding whitespace so lookups are stable regardless of how the
// caller captured the host.
func NormalizeDomain(domain string) string {
	d := strings.TrimSpace(strings.ToLower(domain))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.Index(d, ":"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSuffix(d, ".")
}

// DomainAlternates returns the normalized lookup candidates for a domain in
// probe order: the domain itself, then the www-toggled variant.
func DomainAlternates(domain string) []string {
	d := NormalizeDomain(domain)
	if d == "" {
		return nil
	}
	if strings.HasPrefix(d, "www.") {
		return []string{d, strings.TrimPrefix(d, "www.")}
	}
	return []string{d, "www." + d}
}
