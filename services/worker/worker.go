package worker

import (
	"context"
	"sync"

	"sjsage522/marketcrawler/internal/crawler"
	"sjsage522/marketcrawler/logger"
	"sjsage522/marketcrawler/pkg/errors"
	"sjsage522/marketcrawler/services/queue"
)

// Store is the persistence collaborator used by workers
type Store interface {
	ExistsByURL(ctx context.Context, url string) (bool, error)
	Save(ctx context.Context, url string, rec crawler.ProductRecord) (bool, error)
}

// Summary counts what happened to each record of a result
type Summary struct {
	Saved   int `json:"saved"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func (s *Summary) add(o Summary) {
	s.Saved += o.Saved
	s.Skipped += o.Skipped
	s.Failed += o.Failed
}

// Persister writes a crawl result to the store with a bounded pool of goroutines
type Persister struct {
	store   Store
	workers int
	log     *logger.Logger
}

// NewPersister creates a persister running at most workers saves at a time
func NewPersister(store Store, workers int) *Persister {
	if workers < 1 {
		workers = 1
	}
	return &Persister{store: store, workers: workers, log: logger.ForWorker()}
}

// SaveAll saves every record of res. Existing URLs are skipped and a failed
// save does not stop the others. It runs only on the finished snapshot.
func (p *Persister) SaveAll(ctx context.Context, res *crawler.Result) Summary {
	jobs := make(chan string)
	results := make(chan Summary, p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var local Summary
			for url := range jobs {
				local.add(p.save(ctx, url, res.Records[url]))
			}
			results <- local
		}()
	}

	for _, url := range res.Order {
		if ctx.Err() != nil {
			break
		}
		jobs <- url
	}
	close(jobs)
	wg.Wait()
	close(results)

	var total Summary
	for s := range results {
		total.add(s)
	}

	p.log.Info().
		Str("run_id", res.RunID).
		Int("saved", total.Saved).
		Int("skipped", total.Skipped).
		Int("failed", total.Failed).
		Msg("Persisted crawl result")
	return total
}

func (p *Persister) save(ctx context.Context, url string, rec crawler.ProductRecord) Summary {
	saved, err := p.store.Save(ctx, url, rec)
	switch {
	case err != nil:
		p.log.Error().
			Err(err).
			Str("url", url).
			Str("error_type", string(errors.TypeOf(err))).
			Msg("Failed to save product")
		return Summary{Failed: 1}
	case saved:
		return Summary{Saved: 1}
	default:
		return Summary{Skipped: 1}
	}
}

// Producer publishes the product URLs of a crawl result to the queue
type Producer struct {
	store     Store
	publisher queue.Publisher
	log       *logger.Logger
}

// NewProducer creates a producer. store may be nil, in which case every URL is published.
func NewProducer(store Store, pub queue.Publisher) *Producer {
	return &Producer{store: store, publisher: pub, log: logger.ForWorker()}
}

// PublishAll publishes every URL of res not stored yet, then trims the stream
func (p *Producer) PublishAll(ctx context.Context, res *crawler.Result) Summary {
	var total Summary
	for _, url := range res.Order {
		if ctx.Err() != nil {
			break
		}
		if p.store != nil {
			exists, err := p.store.ExistsByURL(ctx, url)
			if err != nil {
				p.log.Warn().Err(err).Str("url", url).Msg("Known-URL lookup failed, publishing anyway")
			} else if exists {
				total.Skipped++
				continue
			}
		}
		if err := p.publisher.Publish(ctx, url); err != nil {
			p.log.Error().Err(err).Str("url", url).Msg("Failed to publish product URL")
			total.Failed++
			continue
		}
		total.Saved++
	}

	if err := p.publisher.Trim(ctx); err != nil {
		logger.LogError("producer", err, "stream trimming failed")
	}

	p.log.Info().
		Str("run_id", res.RunID).
		Int("published", total.Saved).
		Int("skipped", total.Skipped).
		Int("failed", total.Failed).
		Msg("Published crawl result")
	return total
}
