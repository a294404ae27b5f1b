// Package search runs the hybrid retrieval pipeline: a live catalog query
// through the provider gateway plus concurrent full-text and vector queries
// against the content index, blended into one ranked, stably paginated
// result set. Branch failures degrade the response and surface as warnings;
// they never abort the whole search.
package search

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/whippetlabs/whippet/pkg/adapter"
	"github.com/whippetlabs/whippet/pkg/model"
	"github.com/whippetlabs/whippet/pkg/provider"
	"github.com/whippetlabs/whippet/pkg/repository"
	"github.com/whippetlabs/whippet/pkg/resolver"
	"github.com/whippetlabs/whippet/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// Request is one search invocation
type Request struct {
	Domain    string
	SessionID model.SessionID
	Query     string
	Filters   Filters
	Cursor    string
	Limit     int
}

// Filters narrows results across all branches
type Filters struct {
	Category string  `json:"category,omitempty"`
	InStock  bool    `json:"in_stock,omitempty"`
	MinPrice float64 `json:"min_price,omitempty"`
	MaxPrice float64 `json:"max_price,omitempty"`
}

// Response is a ranked result page. Warnings list branch failures; a
// response with warnings may be incomplete, which callers must distinguish
// from a genuinely empty result set.
type Response struct {
	Results    []*model.SearchResult
	HasMore    bool
	NextCursor string
	Warnings   []model.Warning

	// Tier records which resolver tier satisfied the domain lookup
	Tier model.ResolveTier
}

// Orchestrator coordinates domain resolution, the provider gateway and the
// two index branches
type Orchestrator struct {
	resolver  *resolver.Resolver
	gateway   *provider.Gateway
	repo      repository.Repository
	fulltext  adapter.Fulltext
	embedder  adapter.Embedder
	telemetry adapter.Telemetry
	cfg       Config
}

// Option is a functional option for Orchestrator
type Option func(*Orchestrator)

// WithConfig overrides the pipeline tunables
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		o.cfg = cfg.withDefaults()
	}
}

// WithTelemetry sets the search telemetry sink
func WithTelemetry(t adapter.Telemetry) Option {
	return func(o *Orchestrator) {
		o.telemetry = t
	}
}

// New creates an Orchestrator
func New(rsv *resolver.Resolver, gw *provider.Gateway, repo repository.Repository, fulltext adapter.Fulltext, embedder adapter.Embedder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver:  rsv,
		gateway:   gw,
		repo:      repo,
		fulltext:  fulltext,
		embedder:  embedder,
		telemetry: adapter.NopTelemetry{},
		cfg:       DefaultConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Search runs the full pipeline. Only domain resolution failure aborts;
// every branch failure degrades to a warning on the response.
func (o *Orchestrator) Search(ctx context.Context, req Request) (*Response, error) {
	logger := logging.From(ctx)
	started := time.Now()

	resolved, err := o.resolver.Resolve(ctx, req.Domain)
	if err != nil {
		return nil, err
	}

	cur, err := decodeCursor(req.Cursor)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = o.cfg.PageSize
	}

	var (
		providerHits []*provider.Product
		providerErr  error
		ftsHits      []adapter.FulltextHit
		ftsErr       error
		semHits      []*model.ContentHit
		semErr       error
	)

	// The tenant record carries provider credentials; a cache-tier resolve
	// does not include it. A failed fetch disables the provider branch and
	// must surface as a provider warning like any other branch failure:
	// the tenant may be provider-configured, and a result set that never
	// consulted the catalog cannot look like one that did.
	tenant := resolved.Tenant
	if tenant == nil {
		t, err := o.resolver.Tenant(ctx, req.Domain)
		if err != nil {
			providerErr = goerr.Wrap(err, "tenant fetch failed, provider branch skipped",
				goerr.V("domain", req.Domain))
			logger.Warn("tenant fetch failed, provider branch disabled",
				"domain", req.Domain, "error", err)
		} else {
			tenant = t
		}
	}

	// The three branches are independent; each gets its own timeout and a
	// failure in one never cancels the others. Cancelling the parent
	// request still cancels all of them through ctx.
	var grp errgroup.Group

	if tenant.HasProvider() {
		grp.Go(func() error {
			branchCtx, cancel := context.WithTimeout(ctx, o.cfg.BranchTimeout)
			defer cancel()
			providerHits, providerErr = o.gateway.SearchProducts(branchCtx, tenant, req.Query, provider.SearchFilters(req.Filters), o.cfg.BranchLimit)
			return nil
		})
	}

	grp.Go(func() error {
		branchCtx, cancel := context.WithTimeout(ctx, o.cfg.BranchTimeout)
		defer cancel()
		ftsHits, ftsErr = o.fulltext.Query(branchCtx, resolved.IndexID, req.Query, adapter.FulltextFilters(req.Filters), o.cfg.BranchLimit)
		return nil
	})

	grp.Go(func() error {
		branchCtx, cancel := context.WithTimeout(ctx, o.cfg.BranchTimeout)
		defer cancel()
		embedding, err := o.embedder.Embed(branchCtx, req.Query)
		if err != nil {
			semErr = err
			return nil
		}
		semHits, semErr = o.repo.SearchContent(branchCtx, resolved.IndexID, embedding, o.cfg.BranchLimit)
		return nil
	})

	_ = grp.Wait()

	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "search cancelled")
	}

	resp := &Response{Tier: resolved.Tier}
	resp.Warnings = collectWarnings(providerErr, ftsErr, semErr)
	for _, w := range resp.Warnings {
		logger.Warn("search branch failed", "source", w.Source, "kind", w.Kind, "message", w.Message)
	}

	currency := ""
	if tenant != nil && tenant.Provider != nil {
		currency = tenant.Provider.Currency
	}
	ranked := o.blend(providerHits, ftsHits, semHits, currency)

	// Keyset pagination over the ranked sequence
	page := make([]*model.SearchResult, 0, limit)
	for _, r := range ranked {
		if cur != nil && !cur.after(r) {
			continue
		}
		if len(page) == limit {
			resp.HasMore = true
			break
		}
		page = append(page, r)
	}
	resp.Results = page
	if resp.HasMore && len(page) > 0 {
		resp.NextCursor = encodeCursor(page[len(page)-1])
	}

	o.record(ctx, &req, resolved, resp, providerErr, ftsErr, semErr, len(providerHits), len(ftsHits), len(semHits), started, tenant)

	return resp, nil
}

// LookupOrder fetches one order from the tenant's commerce platform. Unlike
// Search there is no fallback source: the provider is authoritative for
// orders, so breaker and retry failures surface directly.
func (o *Orchestrator) LookupOrder(ctx context.Context, domain, ref string) (*provider.Order, error) {
	tenant, err := o.resolver.Tenant(ctx, domain)
	if err != nil {
		return nil, err
	}
	return o.gateway.GetOrder(ctx, tenant, ref)
}

func collectWarnings(providerErr, ftsErr, semErr error) []model.Warning {
	var warnings []model.Warning
	add := func(source model.SourceKind, err error) {
		if err == nil {
			return
		}
		kind := provider.KindOf(err)
		if errors.Is(err, context.DeadlineExceeded) {
			kind = model.ErrorKindTimeout
		}
		warnings = append(warnings, model.Warning{
			Source:  source,
			Kind:    kind,
			Message: err.Error(),
		})
	}
	add(model.SourceProvider, providerErr)
	add(model.SourceFulltext, ftsErr)
	add(model.SourceSemantic, semErr)
	return warnings
}

// record streams the search outcome to telemetry, best-effort
func (o *Orchestrator) record(ctx context.Context, req *Request, resolved *resolver.Result, resp *Response, providerErr, ftsErr, semErr error, nProvider, nFts, nSem int, started time.Time, tenant *model.Tenant) {
	providerStatus := adapter.BranchSkipped
	if tenant.HasProvider() {
		providerStatus = adapter.StatusFor(providerErr, nProvider)
	}

	rec := &adapter.SearchRecord{
		SessionID:   string(req.SessionID),
		Domain:      req.Domain,
		Query:       req.Query,
		ResolveTier: string(resolved.Tier),
		Provider:    providerStatus,
		Fulltext:    adapter.StatusFor(ftsErr, nFts),
		Semantic:    adapter.StatusFor(semErr, nSem),
		ResultCount: len(resp.Results),
		DurationMS:  time.Since(started).Milliseconds(),
	}

	if err := o.telemetry.RecordSearch(ctx, rec); err != nil {
		logging.From(ctx).Warn("failed to record search telemetry", "error", err)
	}
}
