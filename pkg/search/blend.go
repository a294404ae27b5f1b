package search

import (
	"sort"

	"github.com/whippetlabs/whippet/pkg/adapter"
	"github.com/whippetlabs/whippet/pkg/model"
	"github.com/whippetlabs/whippet/pkg/provider"
)

// providerScoreBase puts provider results above any blended score so the
// live catalog always ranks first. Blended scores stay well under this
// value; provider results keep their upstream order via a per-position
// decrement.
const providerScoreBase = 2.0

// blend merges the three source result sets into one ranked, deduplicated
// sequence ordered by (blendedScore desc, id asc).
func (o *Orchestrator) blend(providerHits []*provider.Product, ftsHits []adapter.FulltextHit, semHits []*model.ContentHit, currency string) []*model.SearchResult {
	// Index lexical and semantic scores by canonical ID so a document found
	// by both sources gets one blended entry
	type blended struct {
		title string
		url   string
		fts   float64
		sem   float64
	}
	byID := make(map[string]*blended)
	order := make([]string, 0, len(ftsHits)+len(semHits))

	touch := func(id, title, url string) *blended {
		b, ok := byID[id]
		if !ok {
			b = &blended{title: title, url: url}
			byID[id] = b
			order = append(order, id)
		}
		return b
	}

	for _, h := range ftsHits {
		b := touch(h.ID, h.Title, h.URL)
		if h.Score > b.fts {
			b.fts = h.Score
		}
	}
	for _, h := range semHits {
		b := touch(h.Doc.CanonicalID, h.Doc.Title, h.Doc.URL)
		if h.Score > b.sem {
			b.sem = h.Score
		}
	}

	seen := make(map[string]bool)
	results := make([]*model.SearchResult, 0, len(providerHits)+len(order))

	// Provider results first, deduplicating downstream index entries for
	// the same catalog item
	for i, p := range providerHits {
		id := canonicalProductID(p)
		if seen[id] {
			continue
		}
		seen[id] = true
		results = append(results, &model.SearchResult{
			ID:           id,
			Source:       model.SourceProvider,
			Title:        p.Name,
			URL:          p.URL,
			RawScore:     float64(len(providerHits) - i),
			BlendedScore: providerScoreBase - float64(i)*0.001,
			Payload: map[string]any{
				"price":    provider.FormatPrice(p.Price, currency),
				"in_stock": p.InStock,
			},
		})
	}

	for _, id := range order {
		if seen[id] {
			continue
		}
		b := byID[id]
		score := o.cfg.FulltextWeight*b.fts + o.cfg.SemanticWeight*b.sem
		if score < o.cfg.ScoreFloor {
			continue
		}
		seen[id] = true

		source := model.SourceFulltext
		raw := b.fts
		if b.sem > b.fts {
			source = model.SourceSemantic
			raw = b.sem
		}

		results = append(results, &model.SearchResult{
			ID:           id,
			Source:       source,
			Title:        b.title,
			URL:          b.url,
			RawScore:     raw,
			BlendedScore: score,
		})
	}

	// Deterministic total order: id breaks score ties, so identical queries
	// always rank identically
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].BlendedScore != results[j].BlendedScore {
			return results[i].BlendedScore > results[j].BlendedScore
		}
		return results[i].ID < results[j].ID
	})

	return results
}

// canonicalProductID prefers the product URL, matching the canonical IDs
// the content index uses, so cross-source dedupe works
func canonicalProductID(p *provider.Product) string {
	if p.URL != "" {
		return p.URL
	}
	return "provider:" + p.ID
}
