package worker

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/marketcrawler/internal/crawler"
	"sjsage522/marketcrawler/pkg/errors"
	"sjsage522/marketcrawler/services/cache"
	"sjsage522/marketcrawler/services/queue"
)

// MockStore implements Store in memory
type MockStore struct {
	mu      sync.Mutex
	records map[string]crawler.ProductRecord
	failOn  map[string]bool
	saves   int
}

var _ Store = (*MockStore)(nil)

func NewMockStore() *MockStore {
	return &MockStore{records: map[string]crawler.ProductRecord{}, failOn: map[string]bool{}}
}

func (m *MockStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[url]
	return ok, nil
}

func (m *MockStore) Save(ctx context.Context, url string, rec crawler.ProductRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failOn[url] {
		return false, errors.NewPersistence(url, "disk full", nil)
	}
	if _, ok := m.records[url]; ok {
		return false, nil
	}
	m.records[url] = rec
	return true, nil
}

// MockPublisher implements queue.Publisher in memory
type MockPublisher struct {
	mu        sync.Mutex
	published []string
	failOn    map[string]bool
	trimmed   bool
}

var _ queue.Publisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn[url] {
		return errors.NewQueue("publish failed", nil)
	}
	m.published = append(m.published, url)
	return nil
}

func (m *MockPublisher) Trim(ctx context.Context) error {
	m.trimmed = true
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

func testResult(n int) *crawler.Result {
	res := &crawler.Result{RunID: "test-run", Records: map[string]crawler.ProductRecord{}}
	for i := 0; i < n; i++ {
		url := fmt.Sprintf("https://shop.test/p/%d", i)
		res.Records[url] = crawler.ProductRecord{Title: fmt.Sprintf("Product %d", i)}
		res.Order = append(res.Order, url)
	}
	return res
}

func TestPersisterSaveAll(t *testing.T) {
	store := NewMockStore()
	store.records["https://shop.test/p/0"] = crawler.ProductRecord{Title: "old"}
	store.failOn["https://shop.test/p/1"] = true

	summary := NewPersister(store, 4).SaveAll(context.Background(), testResult(20))

	assert.Equal(t, Summary{Saved: 18, Skipped: 1, Failed: 1}, summary)
	assert.Equal(t, 20, store.saves)
	assert.Equal(t, "old", store.records["https://shop.test/p/0"].Title)
	assert.Equal(t, "Product 7", store.records["https://shop.test/p/7"].Title)
}

func TestPersisterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMockStore()
	summary := NewPersister(store, 0).SaveAll(ctx, testResult(5))
	assert.Equal(t, Summary{}, summary)
}

func TestProducerPublishAll(t *testing.T) {
	store := NewMockStore()
	store.records["https://shop.test/p/1"] = crawler.ProductRecord{Title: "stored"}
	pub := &MockPublisher{failOn: map[string]bool{"https://shop.test/p/2": true}}

	summary := NewProducer(store, pub).PublishAll(context.Background(), testResult(4))

	assert.Equal(t, Summary{Saved: 2, Skipped: 1, Failed: 1}, summary)
	assert.Equal(t, []string{"https://shop.test/p/0", "https://shop.test/p/3"}, pub.published)
	assert.True(t, pub.trimmed)
}

func TestProducerWithoutStore(t *testing.T) {
	pub := &MockPublisher{}
	summary := NewProducer(nil, pub).PublishAll(context.Background(), testResult(3))
	assert.Equal(t, 3, summary.Saved)
	assert.Len(t, pub.published, 3)
}

func productServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/p/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Lamp</title></head><body><h1>Blue Lamp</h1><span class="price">$25</span></body></html>`)
	})
	mux.HandleFunc("/p/empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>nothing</p></body></html>`)
	})
	mux.HandleFunc("/p/limited", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	})
	mux.HandleFunc("/p/down", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestProcessorExtract(t *testing.T) {
	server := productServer(t)
	p := NewProcessor(crawler.NewHTTPFetcher(time.Second), nil, nil)

	url, rec, err := p.Extract(context.Background(), server.URL+"/p/1#top")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/p/1", url)
	assert.Equal(t, "Blue Lamp", rec.Title)
	assert.Equal(t, "$25", rec.Price)

	_, _, err = p.Extract(context.Background(), server.URL+"/p/empty")
	assert.True(t, errors.Is(err, errors.ErrorTypeParsing))
}

func TestProcessorHandle(t *testing.T) {
	server := productServer(t)
	store := NewMockStore()
	p := NewProcessor(crawler.NewHTTPFetcher(time.Second), nil, store)
	ctx := context.Background()

	require.NoError(t, p.Handle(ctx, server.URL+"/p/1"))
	assert.Equal(t, "Blue Lamp", store.records[server.URL+"/p/1"].Title)

	// stored URLs are not fetched or saved again
	require.NoError(t, p.Handle(ctx, server.URL+"/p/1"))
	assert.Equal(t, 1, store.saves)

	err := p.Handle(ctx, server.URL+"/p/down")
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))

	err = p.Handle(ctx, server.URL+"/p/empty")
	require.Error(t, err)
	assert.False(t, errors.IsRetryable(err))
}

func TestProcessorHandleRateLimited(t *testing.T) {
	server := productServer(t)
	store := NewMockStore()
	blocklist := cache.NewHostBlocklist(cache.NewMemoryCache(), time.Minute)
	fetcher := crawler.NewHTTPFetcher(time.Second, crawler.WithBlocklist(blocklist))
	p := NewProcessor(fetcher, nil, store)
	ctx := context.Background()

	err := p.Handle(ctx, server.URL+"/p/limited")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeRateLimit))
	assert.True(t, errors.IsRetryable(err))

	// the host is now blocked, so even a healthy page stays queued
	err = p.Handle(ctx, server.URL+"/p/1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrorTypeRateLimit))
	assert.True(t, errors.IsRetryable(err))
	assert.Empty(t, store.records)
}
