package model

import (
	"time"

	"cloud.google.com/go/firestore"
)

// ContentDoc is one indexed document of a tenant's content index: a product
// page, category page or article. The ingestion pipeline writes these; the
// engine only reads.
type ContentDoc struct {
	IndexID     IndexID            `firestore:"index_id"`
	CanonicalID string             `firestore:"canonical_id"`
	Title       string             `firestore:"title"`
	URL         string             `firestore:"url"`
	Category    string             `firestore:"category,omitempty"`
	Embedding   firestore.Vector32 `firestore:"embedding"`
	UpdatedAt   time.Time          `firestore:"updated_at"`
}

// ContentHit is a ContentDoc returned from vector search with its
// similarity score (1 at identical, 0 at orthogonal).
type ContentHit struct {
	Doc   *ContentDoc
	Score float64
}
