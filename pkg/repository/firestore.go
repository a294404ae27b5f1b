package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/whippetlabs/whippet/pkg/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	tenantCollection  = "tenants"
	contentCollection = "content"
)

// Firestore implements Repository using Firestore
type Firestore struct {
	client *firestore.Client
}

// New creates a new Firestore repository
func New(ctx context.Context, projectID, databaseID string) (*Firestore, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID), goerr.V("database_id", databaseID))
	}

	return &Firestore{client: client}, nil
}

// Close releases the underlying client
func (r *Firestore) Close() error {
	return r.client.Close()
}

func (r *Firestore) GetTenantByDomain(ctx context.Context, domain string) (*model.Tenant, error) {
	// Primary domain first, then the alias list. Both are single-document
	// lookups; a tenant's domain and aliases are unique across the
	// collection by construction of the onboarding flow.
	queries := []firestore.Query{
		r.client.Collection(tenantCollection).Where("domain", "==", domain).Limit(1),
		r.client.Collection(tenantCollection).Where("aliases", "array-contains", domain).Limit(1),
	}

	for _, q := range queries {
		doc, err := q.Documents(ctx).Next()
		if err == iterator.Done {
			continue
		}
		if err != nil {
			return nil, goerr.Wrap(normalizeRPCError(err), "failed to query tenants", goerr.V("domain", domain))
		}

		var tenant model.Tenant
		if err := doc.DataTo(&tenant); err != nil {
			return nil, goerr.Wrap(err, "failed to decode tenant", goerr.V("doc_id", doc.Ref.ID))
		}
		return &tenant, nil
	}

	return nil, goerr.Wrap(model.ErrDomainNotFound, "no tenant for domain", goerr.V("domain", domain))
}

func (r *Firestore) PutTenant(ctx context.Context, tenant *model.Tenant) error {
	if tenant.Domain == "" {
		return goerr.New("tenant domain is required")
	}

	_, err := r.client.Collection(tenantCollection).Doc(string(tenant.IndexID)).Set(ctx, tenant)
	if err != nil {
		return goerr.Wrap(err, "failed to put tenant", goerr.V("domain", tenant.Domain))
	}
	return nil
}

func (r *Firestore) SearchContent(ctx context.Context, indexID model.IndexID, embedding firestore.Vector32, limit int) ([]*model.ContentHit, error) {
	if limit <= 0 {
		limit = 10
	}

	q := r.client.Collection(contentCollection).
		Where("index_id", "==", string(indexID)).
		FindNearest("embedding", embedding, limit, firestore.DistanceMeasureCosine,
			&firestore.FindNearestOptions{
				DistanceResultField: "vector_distance",
			})

	iter := q.Documents(ctx)
	defer iter.Stop()

	var hits []*model.ContentHit
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(normalizeRPCError(err), "failed to iterate vector search results",
				goerr.V("index_id", indexID))
		}

		var content model.ContentDoc
		if err := doc.DataTo(&content); err != nil {
			return nil, goerr.Wrap(err, "failed to decode content doc", goerr.V("doc_id", doc.Ref.ID))
		}

		// Cosine distance is in [0, 2]; fold into a descending similarity
		// score in [0, 1].
		score := 1.0
		if v, err := doc.DataAt("vector_distance"); err == nil {
			if dist, ok := v.(float64); ok {
				score = 1.0 - dist/2.0
			}
		}

		hits = append(hits, &model.ContentHit{Doc: &content, Score: score})
	}

	return hits, nil
}

// normalizeRPCError maps gRPC deadline errors onto the context error, so
// callers classifying timeouts see one shape regardless of where the
// deadline fired
func normalizeRPCError(err error) error {
	if status.Code(err) == codes.DeadlineExceeded {
		return goerr.Wrap(context.DeadlineExceeded, err.Error())
	}
	return err
}

// contentDocID derives a deterministic document ID for a content doc.
// Canonical IDs are URLs, and slashes are not valid in a Firestore
// document path, so the (index, canonical) pair is hashed.
func contentDocID(indexID model.IndexID, canonicalID string) string {
	sum := sha256.Sum256([]byte(string(indexID) + "\x00" + canonicalID))
	return hex.EncodeToString(sum[:])
}

func (r *Firestore) PutContent(ctx context.Context, doc *model.ContentDoc) error {
	if doc.CanonicalID == "" {
		return goerr.New("content canonical_id is required")
	}

	docID := contentDocID(doc.IndexID, doc.CanonicalID)
	if _, err := r.client.Collection(contentCollection).Doc(docID).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to put content doc",
			goerr.V("doc_id", docID), goerr.V("canonical_id", doc.CanonicalID))
	}
	return nil
}
