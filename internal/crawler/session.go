package crawler

import (
	"context"
	"net/url"
	"time"

	"github.com/google/uuid"

	"sjsage522/marketcrawler/logger"
	"sjsage522/marketcrawler/pkg/errors"
)

// SessionConfig holds the tunables of a crawl session
type SessionConfig struct {
	// RequestDelay follows every visited page and precedes every detail fetch
	RequestDelay time.Duration
	// FallbackThreshold triggers the miner when a page adds fewer new records
	FallbackThreshold int
	// DetailBudget caps detail-page fetches made by the miner per page
	DetailBudget int
}

// DefaultSessionConfig returns the stock tunables
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		RequestDelay:      time.Second,
		FallbackThreshold: 10,
		DetailBudget:      100,
	}
}

// Result is the immutable outcome of a session
type Result struct {
	RunID    string
	Records  map[string]ProductRecord
	Order    []string
	Frontier []string
	Visited  int
	Failed   int
	// Interrupted is set when the context was cancelled before the loop finished
	Interrupted bool
}

// Session crawls paginated listings one page at a time
type Session struct {
	fetcher  Fetcher
	registry *Registry
	cfg      SessionConfig
	metrics  *Metrics
}

// NewSession creates a session. metrics may be nil.
func NewSession(fetcher Fetcher, registry *Registry, cfg SessionConfig, metrics *Metrics) *Session {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Session{fetcher: fetcher, registry: registry, cfg: cfg, metrics: metrics}
}

// Run visits at most maxPages pages starting at startURL. It never fails: a
// page that cannot be fetched is logged and counted, and cancellation only
// cuts the run short.
func (s *Session) Run(ctx context.Context, startURL string, maxPages int) *Result {
	runID := uuid.NewString()
	log := logger.ForSession(runID)

	results := NewResultMap()
	front := newFrontier(startURL)
	visited, failed := 0, 0
	interrupted := false

	if u, err := url.Parse(startURL); err != nil || !u.IsAbs() || u.Host == "" || maxPages <= 0 {
		log.Warn().
			Str("start_url", startURL).
			Int("max_pages", maxPages).
			Msg("Invalid crawl input, nothing to do")
		return s.result(runID, results, front, visited, failed, interrupted)
	}

	log.Info().
		Str("start_url", startURL).
		Int("max_pages", maxPages).
		Msg("Crawl session started")

	for visited < front.Len() && visited < maxPages {
		current := front.At(visited)

		if err := s.visit(ctx, log, current, front, results); err != nil {
			failed++
			s.metrics.IncPage(OutcomeFailed)
			log.Error().
				Err(err).
				Str("url", current).
				Str("error_type", string(errors.TypeOf(err))).
				Msg("Failed to fetch page")
		} else {
			s.metrics.IncPage(OutcomeOK)
		}
		visited++

		if err := sleepCtx(ctx, s.cfg.RequestDelay); err != nil {
			interrupted = true
			log.Warn().Err(err).Int("visited", visited).Msg("Crawl interrupted")
			break
		}
	}

	log.Info().
		Int("visited", visited).
		Int("failed", failed).
		Int("frontier", front.Len()).
		Int("records", results.Len()).
		Msg("Crawl session finished")

	return s.result(runID, results, front, visited, failed, interrupted)
}

// visit processes one page. Only fetch failures are returned.
func (s *Session) visit(ctx context.Context, log *logger.Logger, pageURL string, front *frontier, results *ResultMap) error {
	page, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return err
	}

	host := ""
	if u, err := url.Parse(page.URL); err == nil {
		host = u.Hostname()
	}
	profile := s.registry.Resolve(host)
	ex := NewExtractor(profile)

	entries, cards := ex.ExtractCards(page)
	added := results.Merge(entries)
	s.metrics.AddRecords(SourceCard, added)

	mined := MineResult{}
	if cards == 0 || added < s.cfg.FallbackThreshold {
		s.metrics.IncFallback()
		miner := &Miner{
			Fetcher:      s.fetcher,
			Delay:        s.cfg.RequestDelay,
			DetailBudget: s.cfg.DetailBudget,
			Log:          log,
		}
		mined = miner.Mine(ctx, page, profile, results.Has)
		results.Merge(mined.Entries)
		s.metrics.AddRecords(SourceOwner, mined.Owner)
		s.metrics.AddRecords(SourceDetail, mined.Detail)
		s.metrics.AddRecords(SourcePlaceholder, mined.Placeholder)
	}

	discovered := DiscoverPages(page.Doc, page.URL, profile, front.Contains)
	for _, next := range discovered {
		front.Add(next)
	}

	log.Info().
		Str("url", pageURL).
		Str("profile", profile.Name).
		Int("cards", cards).
		Int("card_records", added).
		Int("mined_ids", mined.Candidates).
		Int("mined_records", len(mined.Entries)).
		Int("placeholders", mined.Placeholder).
		Int("new_pages", len(discovered)).
		Msg("Page extracted")
	return nil
}

func (s *Session) result(runID string, results *ResultMap, front *frontier, visited, failed int, interrupted bool) *Result {
	records, order := results.Snapshot()
	return &Result{
		RunID:       runID,
		Records:     records,
		Order:       order,
		Frontier:    front.List(),
		Visited:     visited,
		Failed:      failed,
		Interrupted: interrupted,
	}
}
