package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/whippetlabs/whippet/pkg/model"
)

// Repository is the datastore behind tenant resolution and semantic search
type Repository interface {
	// GetTenantByDomain returns the tenant whose primary domain or alias
	// list contains the normalized domain. Returns model.ErrDomainNotFound
	// when no tenant matches.
	GetTenantByDomain(ctx context.Context, domain string) (*model.Tenant, error)

	// PutTenant creates or replaces a tenant record
	PutTenant(ctx context.Context, tenant *model.Tenant) error

	// SearchContent performs a nearest-neighbor query over a tenant's
	// content index, returning hits ordered by descending similarity
	SearchContent(ctx context.Context, indexID model.IndexID, embedding firestore.Vector32, limit int) ([]*model.ContentHit, error)

	// PutContent creates or replaces a content document
	PutContent(ctx context.Context, doc *model.ContentDoc) error
}
