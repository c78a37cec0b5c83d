package crawler

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/marketcrawler/helpers"
	"sjsage522/marketcrawler/logger"
	"sjsage522/marketcrawler/pkg/errors"
	"sjsage522/marketcrawler/services/cache"
)

// HTTPFetcher fetches pages over HTTP and parses them with goquery.
// Hosts that answer with a rate limit are skipped until their block expires.
type HTTPFetcher struct {
	client    *http.Client
	maxBytes  int64
	blocklist *cache.HostBlocklist
	metrics   *Metrics
	log       *logger.Logger
}

// FetcherOption configures an HTTPFetcher
type FetcherOption func(*HTTPFetcher)

// WithClient replaces the HTTP client
func WithClient(c *http.Client) FetcherOption {
	return func(f *HTTPFetcher) { f.client = c }
}

// WithMaxBodyBytes caps response bodies
func WithMaxBodyBytes(n int64) FetcherOption {
	return func(f *HTTPFetcher) { f.maxBytes = n }
}

// WithBlocklist enables host blocking after rate limits
func WithBlocklist(b *cache.HostBlocklist) FetcherOption {
	return func(f *HTTPFetcher) { f.blocklist = b }
}

// WithFetchMetrics records fetch durations and failures
func WithFetchMetrics(m *Metrics) FetcherOption {
	return func(f *HTTPFetcher) { f.metrics = m }
}

// NewHTTPFetcher creates a fetcher with the given request timeout
func NewHTTPFetcher(timeout time.Duration, opts ...FetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client:   helpers.NewClient(timeout),
		maxBytes: helpers.DefaultMaxBodyBytes,
		log:      logger.ForFetcher(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves and parses rawURL
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Hostname()
	}
	if f.blocklist.IsBlocked(host) {
		return nil, errors.NewRateLimit(rawURL, "host block")
	}

	start := time.Now()
	resp, err := helpers.FetchPage(ctx, f.client, rawURL, f.maxBytes)
	f.metrics.ObserveFetch(time.Since(start))
	if err != nil {
		if errors.Is(err, errors.ErrorTypeRateLimit) {
			f.blocklist.Block(host, err.Error())
		}
		f.metrics.IncFetchError(string(errors.TypeOf(err)))
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		perr := errors.NewParsing(rawURL, "failed to parse HTML", err)
		f.metrics.IncFetchError(string(perr.Type))
		return nil, perr
	}

	f.log.Debug().
		Str("url", rawURL).
		Str("final_url", resp.FinalURL).
		Int("bytes", len(resp.Body)).
		Msg("Fetched page")

	return &Page{URL: resp.FinalURL, HTML: resp.Body, Doc: doc}, nil
}

// ParsePage builds a Page from HTML already in hand
func ParsePage(pageURL string, html []byte) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, errors.NewParsing(pageURL, "failed to parse HTML", err)
	}
	return &Page{URL: pageURL, HTML: html, Doc: doc}, nil
}
