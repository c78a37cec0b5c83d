package worker

import (
	"context"
	"net/url"

	"sjsage522/marketcrawler/internal/crawler"
	"sjsage522/marketcrawler/logger"
	"sjsage522/marketcrawler/pkg/errors"
)

// Processor extracts single product pages. It backs the queue consumer and
// the extract command.
type Processor struct {
	fetcher  crawler.Fetcher
	registry *crawler.Registry
	store    Store
	log      *logger.Logger
}

// NewProcessor creates a processor. store may be nil when nothing is persisted.
func NewProcessor(fetcher crawler.Fetcher, registry *crawler.Registry, store Store) *Processor {
	if registry == nil {
		registry = crawler.DefaultRegistry()
	}
	return &Processor{fetcher: fetcher, registry: registry, store: store, log: logger.ForWorker()}
}

// Extract fetches rawURL and reads it as a detail page. It returns the
// canonical URL of the page along with the record.
func (p *Processor) Extract(ctx context.Context, rawURL string) (string, crawler.ProductRecord, error) {
	page, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return "", crawler.ProductRecord{}, err
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		return "", crawler.ProductRecord{}, errors.NewParsing(rawURL, "bad page url", err)
	}
	profile := p.registry.Resolve(base.Hostname())

	canonical := crawler.CanonicalURL(base, page.URL, profile)
	if canonical == "" {
		canonical = page.URL
	}

	rec := crawler.NewExtractor(profile).ExtractFromDetailPage(page)
	if rec.Title == "" {
		return canonical, rec, errors.NewParsing(rawURL, "no title found on page", nil)
	}
	return canonical, rec, nil
}

// Handle extracts and stores one product URL unless it is stored already
func (p *Processor) Handle(ctx context.Context, rawURL string) error {
	if p.store != nil {
		exists, err := p.store.ExistsByURL(ctx, rawURL)
		if err != nil {
			return err
		}
		if exists {
			p.log.Debug().Str("url", rawURL).Msg("Product already stored, skipping")
			return nil
		}
	}

	canonical, rec, err := p.Extract(ctx, rawURL)
	if err != nil {
		return err
	}
	if p.store == nil {
		return nil
	}

	saved, err := p.store.Save(ctx, canonical, rec)
	if err != nil {
		return err
	}
	p.log.Info().
		Str("url", canonical).
		Str("title", rec.Title).
		Bool("saved", saved).
		Msg("Processed product")
	return nil
}
