package turn_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/whippetlabs/whippet/pkg/adapter"
	"github.com/whippetlabs/whippet/pkg/conversation"
	"github.com/whippetlabs/whippet/pkg/model"
	"github.com/whippetlabs/whippet/pkg/provider"
	"github.com/whippetlabs/whippet/pkg/resolver"
	"github.com/whippetlabs/whippet/pkg/search"
	"github.com/whippetlabs/whippet/pkg/usecase/turn"
)

// Mock session store
type mockStore struct {
	mu    sync.Mutex
	blobs map[model.SessionID][]byte
	puts  int
}

func newMockStore() *mockStore {
	return &mockStore{blobs: make(map[model.SessionID][]byte)}
}

func (m *mockStore) GetBlob(ctx context.Context, id model.SessionID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobs[id], nil
}

func (m *mockStore) PutBlob(ctx context.Context, id model.SessionID, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[id] = blob
	m.puts++
	return nil
}

// Mock archive storage
type mockStorage struct {
	objects map[model.SessionID]*bytes.Buffer
}

type nopWriteCloser struct{ *bytes.Buffer }

func (nopWriteCloser) Close() error { return nil }

func newMockStorage() *mockStorage {
	return &mockStorage{objects: make(map[model.SessionID]*bytes.Buffer)}
}

func (m *mockStorage) Put(ctx context.Context, id model.SessionID) (io.WriteCloser, error) {
	buf := &bytes.Buffer{}
	m.objects[id] = buf
	return nopWriteCloser{buf}, nil
}

func (m *mockStorage) Get(ctx context.Context, id model.SessionID) (io.ReadCloser, error) {
	buf, ok := m.objects[id]
	if !ok {
		return nil, goerr.New("archive not found", goerr.V("session_id", id))
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

// Mock repository for resolver + semantic branch
type mockRepo struct {
	tenant  *model.Tenant
	semHits []*model.ContentHit
}

func (m *mockRepo) GetTenantByDomain(ctx context.Context, domain string) (*model.Tenant, error) {
	if m.tenant != nil && m.tenant.Domain == domain {
		return m.tenant, nil
	}
	return nil, goerr.Wrap(model.ErrDomainNotFound, "no tenant", goerr.V("domain", domain))
}

func (m *mockRepo) PutTenant(ctx context.Context, tenant *model.Tenant) error { return nil }

func (m *mockRepo) SearchContent(ctx context.Context, indexID model.IndexID, embedding firestore.Vector32, limit int) ([]*model.ContentHit, error) {
	return m.semHits, nil
}

func (m *mockRepo) PutContent(ctx context.Context, doc *model.ContentDoc) error { return nil }

// Mock fulltext with query capture
type mockFulltext struct {
	mu      sync.Mutex
	hits    []adapter.FulltextHit
	queries []string
}

func (m *mockFulltext) Query(ctx context.Context, indexID model.IndexID, text string, filters adapter.FulltextFilters, limit int) ([]adapter.FulltextHit, error) {
	m.mu.Lock()
	m.queries = append(m.queries, text)
	m.mu.Unlock()
	return m.hits, nil
}

func (m *mockFulltext) lastQuery() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queries) == 0 {
		return ""
	}
	return m.queries[len(m.queries)-1]
}

type mockEmbedder struct{}

func (mockEmbedder) Embed(ctx context.Context, text string) (firestore.Vector32, error) {
	return make(firestore.Vector32, 8), nil
}

type mockProviderClient struct{}

func (mockProviderClient) SearchProducts(ctx context.Context, query string, filters provider.SearchFilters, limit int) ([]*provider.Product, error) {
	return nil, nil
}

func (mockProviderClient) GetOrder(ctx context.Context, ref string) (*provider.Order, error) {
	return nil, goerr.New("not implemented")
}

type fixture struct {
	store    *mockStore
	storage  *mockStorage
	fulltext *mockFulltext
	uc       *turn.UseCase
}

func newFixture() *fixture {
	repo := &mockRepo{
		tenant: &model.Tenant{IndexID: "idx-1", Domain: "shop.example.com"},
	}
	f := &fixture{
		store:   newMockStore(),
		storage: newMockStorage(),
		fulltext: &mockFulltext{
			hits: []adapter.FulltextHit{
				{ID: "https://shop.example.com/product/road-runner", Title: "Road Runner Gloves", URL: "https://shop.example.com/product/road-runner", Score: 0.8},
				{ID: "https://shop.example.com/product/trail-mitts", Title: "Trail Mitts", URL: "https://shop.example.com/product/trail-mitts", Score: 0.6},
				{ID: "https://shop.example.com/product/winter-liners", Title: "Winter Liners", URL: "https://shop.example.com/product/winter-liners", Score: 0.4},
			},
		},
	}

	gateway := provider.NewGateway(provider.FactoryFunc(func(cfg *model.ProviderConfig) (provider.Client, error) {
		return mockProviderClient{}, nil
	}), provider.WithRetryConfig(provider.RetryConfig{
		Attempts:  2,
		BaseDelay: time.Millisecond,
		MaxJitter: time.Millisecond,
	}))

	orch := search.New(resolver.New(nil, repo), gateway, repo, f.fulltext, mockEmbedder{})

	f.uc = turn.New(turn.NewInput{
		Store:        f.store,
		Orchestrator: orch,
		Storage:      f.storage,
	})
	return f
}

func process(t *testing.T, f *fixture, id model.SessionID, utterance string) *turn.Output {
	t.Helper()
	out, err := f.uc.ProcessTurn(context.Background(), turn.ProcessInput{
		SessionID: id,
		Domain:    "shop.example.com",
		Utterance: utterance,
	})
	gt.NoError(t, err)
	return out
}

func TestProcessTurnTracksResults(t *testing.T) {
	f := newFixture()
	id := model.NewSessionID()

	out := process(t, f, id, "show me gloves")
	gt.Equal(t, out.Turn, 1)
	gt.A(t, out.Results).Length(3)
	gt.S(t, out.ResultsBlock).Contains("1. [Road Runner Gloves]")
	gt.S(t, out.ContextBlock).Contains("## Current list (turn 1)")
	gt.S(t, out.ContextBlock).Contains("2. Trail Mitts")

	// State was persisted for the next turn
	gt.Equal(t, f.store.puts, 1)
}

func TestProcessTurnResolvesListReference(t *testing.T) {
	f := newFixture()
	id := model.NewSessionID()

	process(t, f, id, "show me gloves")

	out := process(t, f, id, "tell me more about the second one")
	gt.Equal(t, out.Turn, 2)
	gt.Equal(t, out.ResolvedQuery, "Trail Mitts")
	gt.Equal(t, f.fulltext.lastQuery(), "Trail Mitts")
}

func TestProcessTurnResolvesPronoun(t *testing.T) {
	f := newFixture()
	id := model.NewSessionID()

	process(t, f, id, "show me gloves")

	out := process(t, f, id, "is it waterproof")
	gt.S(t, out.ResolvedQuery).Contains("Winter Liners")
	gt.S(t, out.ResolvedQuery).Contains("waterproof")
}

func TestProcessTurnPronounAfterMultibyteText(t *testing.T) {
	f := newFixture()
	id := model.NewSessionID()

	process(t, f, id, "show me gloves")

	// "İstanbul" changes byte length under Unicode lowercasing; the
	// substitution offset must come from the original string
	out := process(t, f, id, "İstanbul shipping: is It available")
	gt.S(t, out.ResolvedQuery).Contains("Winter Liners")
	gt.S(t, out.ResolvedQuery).Contains("İstanbul shipping")
	gt.S(t, out.ResolvedQuery).NotContains("It available")
}

func TestProcessTurnPronounWithoutStateLeavesQuery(t *testing.T) {
	f := newFixture()
	id := model.NewSessionID()

	// No prior turn: "it" cannot resolve, the utterance passes through
	out := process(t, f, id, "is it waterproof")
	gt.Equal(t, out.ResolvedQuery, "is it waterproof")
}

func TestProcessTurnCorrection(t *testing.T) {
	f := newFixture()
	id := model.NewSessionID()

	process(t, f, id, "show me the ZF5 gloves")

	out := process(t, f, id, "sorry, ZF4 not ZF5")
	gt.Equal(t, out.ResolvedQuery, "ZF4")
	gt.S(t, out.ContextBlock).Contains("## Corrections")
	gt.S(t, out.ContextBlock).Contains(`"ZF5" -> "ZF4"`)
}

func TestProcessTurnCancelledDoesNotPersist(t *testing.T) {
	f := newFixture()
	id := model.NewSessionID()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.uc.ProcessTurn(ctx, turn.ProcessInput{
		SessionID: id,
		Domain:    "shop.example.com",
		Utterance: "show me gloves",
	})
	gt.Error(t, err)
	gt.Equal(t, f.store.puts, 0)
}

func TestProcessTurnUnknownDomain(t *testing.T) {
	f := newFixture()

	_, err := f.uc.ProcessTurn(context.Background(), turn.ProcessInput{
		SessionID: model.NewSessionID(),
		Domain:    "unknown.example.com",
		Utterance: "show me gloves",
	})
	gt.Error(t, err)
}

func TestConcurrentTurnsSerialized(t *testing.T) {
	f := newFixture()
	id := model.NewSessionID()

	errs := make(chan error, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.uc.ProcessTurn(context.Background(), turn.ProcessInput{
				SessionID: id,
				Domain:    "shop.example.com",
				Utterance: "show me gloves",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		gt.NoError(t, err)
	}

	// Every turn incremented the counter exactly once
	blob, err := f.store.GetBlob(context.Background(), id)
	gt.NoError(t, err)
	mgr, err := conversation.FromBlob(blob)
	gt.NoError(t, err)
	gt.Equal(t, mgr.Turn(), 8)
}

func TestObserveResponse(t *testing.T) {
	f := newFixture()
	id := model.NewSessionID()

	process(t, f, id, "where is my order 1042")

	err := f.uc.ObserveResponse(context.Background(), id,
		"Your order [#1042](https://shop.example.com/order/1042) is out for delivery.")
	gt.NoError(t, err)

	block, err := f.uc.Context(context.Background(), id)
	gt.NoError(t, err)
	gt.S(t, block).Contains(`order "#1042"`)
}

func TestObserveResponseWithoutSignalsSkipsPersist(t *testing.T) {
	f := newFixture()
	id := model.NewSessionID()

	process(t, f, id, "show me gloves")
	puts := f.store.puts

	gt.NoError(t, f.uc.ObserveResponse(context.Background(), id, "You're welcome!"))
	gt.Equal(t, f.store.puts, puts)
}

func TestArchive(t *testing.T) {
	f := newFixture()
	id := model.NewSessionID()

	process(t, f, id, "show me gloves")
	gt.NoError(t, f.uc.Archive(context.Background(), id))

	r, err := f.storage.Get(context.Background(), id)
	gt.NoError(t, err)
	data, err := io.ReadAll(r)
	gt.NoError(t, err)
	gt.S(t, string(data)).Contains("Road Runner Gloves")
	gt.S(t, string(data)).Contains(string(id))
}

func TestRenderResults(t *testing.T) {
	results := []*model.SearchResult{
		{Title: "Road Runner Gloves", URL: "https://s/p/rr", Payload: map[string]any{"price": "£29.90", "in_stock": true}},
		{Title: "Trail Mitts", URL: "https://s/p/tm", Payload: map[string]any{"price": "£24.00", "in_stock": false}},
		{Title: "Winter Liners", URL: "https://s/p/wl"},
	}

	block := turn.RenderResults(results)
	gt.Equal(t, block,
		"1. [Road Runner Gloves](https://s/p/rr) - £29.90\n"+
			"2. [Trail Mitts](https://s/p/tm) - £24.00 (out of stock)\n"+
			"3. [Winter Liners](https://s/p/wl)")

	gt.Equal(t, turn.RenderResults(nil), "")
}
