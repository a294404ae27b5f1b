// Package provider is the gateway to per-tenant commerce platforms. Calls
// go through bounded retry inside a per-(tenant, upstream) circuit breaker,
// and every failure carries a coarse error kind so downstream ranking can
// tell "provider down" apart from "no such product".
package provider

import (
	"context"
	"errors"

	"github.com/whippetlabs/whippet/pkg/model"
)

// Product is one catalog item from the commerce platform
type Product struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URL        string   `json:"permalink"`
	Price      string   `json:"price"`
	InStock    bool     `json:"in_stock"`
	Categories []string `json:"categories,omitempty"`
}

// Order is one customer order from the commerce platform
type Order struct {
	ID       string `json:"id"`
	Number   string `json:"number"`
	Status   string `json:"status"`
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

// SearchFilters narrows a catalog query. Zero values mean no filter.
type SearchFilters struct {
	Category string
	InStock  bool
	MinPrice float64
	MaxPrice float64
}

// Client is a connected commerce-platform client for one tenant
type Client interface {
	SearchProducts(ctx context.Context, query string, filters SearchFilters, limit int) ([]*Product, error)
	GetOrder(ctx context.Context, ref string) (*Order, error)
}

// Factory creates platform clients from tenant configuration. An explicit
// factory keeps client construction injectable, so tests substitute doubles
// without touching the gateway.
type Factory interface {
	Create(cfg *model.ProviderConfig) (Client, error)
}

// FactoryFunc adapts a function to the Factory interface
type FactoryFunc func(cfg *model.ProviderConfig) (Client, error)

func (f FactoryFunc) Create(cfg *model.ProviderConfig) (Client, error) {
	return f(cfg)
}

// kindError tags an error with its coarse cause
type kindError struct {
	kind model.ErrorKind
	err  error
}

func (e *kindError) Error() string {
	return string(e.kind) + ": " + e.err.Error()
}

func (e *kindError) Unwrap() error {
	return e.err
}

// WithKind attaches an ErrorKind to an error
func WithKind(err error, kind model.ErrorKind) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// KindOf extracts the ErrorKind from an error chain, defaulting to unknown
func KindOf(err error) model.ErrorKind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.ErrorKindTimeout
	}
	return model.ErrorKindUnknown
}

// retriable reports whether a failure is worth another attempt. Auth and
// not-found outcomes will not change on retry.
func retriable(err error) bool {
	switch KindOf(err) {
	case model.ErrorKindAuth, model.ErrorKindNotFound:
		return false
	default:
		return true
	}
}
