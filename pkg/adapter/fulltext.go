package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/whippetlabs/whippet/pkg/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// FulltextHit is one scored row from the full-text index
type FulltextHit struct {
	ID    string  `gorm:"column:canonical_id"`
	Title string  `gorm:"column:title"`
	URL   string  `gorm:"column:url"`
	Score float64 `gorm:"column:score"`
}

// FulltextFilters narrows a full-text query. Zero values mean no filter.
type FulltextFilters struct {
	Category string
	InStock  bool
	MinPrice float64
	MaxPrice float64
}

// Fulltext is the port to the lexical content index
type Fulltext interface {
	Query(ctx context.Context, indexID model.IndexID, text string, filters FulltextFilters, limit int) ([]FulltextHit, error)
}

type fulltextClient struct {
	db *gorm.DB
}

// NewFulltext connects to the Postgres content index. The `content_fts`
// table is populated by the ingestion pipeline; this client only reads.
func NewFulltext(dsn string) (Fulltext, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open postgres connection")
	}

	return &fulltextClient{db: db}, nil
}

func (c *fulltextClient) Query(ctx context.Context, indexID model.IndexID, text string, filters FulltextFilters, limit int) ([]FulltextHit, error) {
	if limit <= 0 {
		limit = 10
	}

	q := c.db.WithContext(ctx).
		Table("content_fts").
		Select("canonical_id, title, url, ts_rank_cd(tsv, websearch_to_tsquery('english', ?)) AS score", text).
		Where("index_id = ?", string(indexID)).
		Where("tsv @@ websearch_to_tsquery('english', ?)", text)

	if filters.Category != "" {
		q = q.Where("category = ?", filters.Category)
	}
	if filters.InStock {
		q = q.Where("in_stock")
	}
	if filters.MinPrice > 0 {
		q = q.Where("price >= ?", filters.MinPrice)
	}
	if filters.MaxPrice > 0 {
		q = q.Where("price <= ?", filters.MaxPrice)
	}

	var hits []FulltextHit
	// Secondary order on canonical_id keeps equal-rank rows stable across
	// identical queries.
	if err := q.Order("score DESC, canonical_id ASC").Limit(limit).Scan(&hits).Error; err != nil {
		return nil, goerr.Wrap(err, "failed to query fulltext index",
			goerr.V("index_id", indexID), goerr.V("query", text))
	}

	return hits, nil
}
