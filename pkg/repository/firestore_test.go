package repository_test

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/whippetlabs/whippet/pkg/model"
	"github.com/whippetlabs/whippet/pkg/repository"
)

func setupFirestore(t *testing.T) *repository.Firestore {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")

	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	repo, err := repository.New(context.Background(), projectID, databaseID)
	gt.NoError(t, err)

	return repo
}

func testTenant() *model.Tenant {
	suffix := uuid.New().String()[:8]
	return &model.Tenant{
		IndexID: model.IndexID("idx-" + suffix),
		Domain:  "shop-" + suffix + ".example.com",
		Aliases: []string{"www.shop-" + suffix + ".example.com"},
		Provider: &model.ProviderConfig{
			Platform:       "woocommerce",
			BaseURL:        "https://shop-" + suffix + ".example.com",
			ConsumerKey:    "ck_test",
			ConsumerSecret: "cs_test",
			Currency:       "GBP",
		},
	}
}

func TestFirestorePutAndGetTenant(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	tenant := testTenant()
	gt.NoError(t, repo.PutTenant(ctx, tenant))

	retrieved, err := repo.GetTenantByDomain(ctx, tenant.Domain)
	gt.NoError(t, err)
	gt.V(t, retrieved).NotNil()
	gt.Equal(t, retrieved.IndexID, tenant.IndexID)
	gt.Equal(t, retrieved.Domain, tenant.Domain)
	gt.True(t, retrieved.HasProvider())
}

func TestFirestoreGetTenantByAlias(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	tenant := testTenant()
	gt.NoError(t, repo.PutTenant(ctx, tenant))

	retrieved, err := repo.GetTenantByDomain(ctx, tenant.Aliases[0])
	gt.NoError(t, err)
	gt.Equal(t, retrieved.IndexID, tenant.IndexID)
}

func TestFirestoreGetTenantNotFound(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	_, err := repo.GetTenantByDomain(ctx, "no-such-tenant.example.com")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrDomainNotFound))
}

func TestFirestoreSearchContent(t *testing.T) {
	repo := setupFirestore(t)
	ctx := context.Background()

	indexID := model.IndexID("idx-" + uuid.New().String()[:8])
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	embed := func(base float32) firestore.Vector32 {
		v := make(firestore.Vector32, 768)
		for i := range v {
			v[i] = base + float32(rng.Float64()*0.02-0.01)
		}
		return v
	}

	docs := []*model.ContentDoc{
		{
			IndexID:     indexID,
			CanonicalID: "product-gloves",
			Title:       "Road Runner Gloves",
			URL:         "https://shop.example.com/product/road-runner-gloves",
			Embedding:   embed(0.5),
			UpdatedAt:   time.Now(),
		},
		{
			IndexID:     indexID,
			CanonicalID: "product-mitts",
			Title:       "Trail Mitts",
			URL:         "https://shop.example.com/product/trail-mitts",
			Embedding:   embed(0.5),
			UpdatedAt:   time.Now(),
		},
		{
			IndexID:     indexID,
			CanonicalID: "page-returns",
			Title:       "Returns Policy",
			URL:         "https://shop.example.com/returns",
			Embedding:   embed(0.9),
			UpdatedAt:   time.Now(),
		},
	}

	for _, doc := range docs {
		gt.NoError(t, repo.PutContent(ctx, doc))
	}

	query := embed(0.5)
	hits, err := repo.SearchContent(ctx, indexID, query, 2)
	gt.NoError(t, err)
	gt.A(t, hits).Length(2)

	// Both near-duplicates of the query should outrank the distant
	// document, and scores come back descending
	for _, hit := range hits {
		if hit.Doc.CanonicalID == "page-returns" {
			t.Errorf("distant document ranked in top 2: %+v", hit.Doc)
		}
	}
	if len(hits) == 2 && hits[0].Score < hits[1].Score {
		t.Errorf("hits not ordered by descending score: %f < %f", hits[0].Score, hits[1].Score)
	}
}
