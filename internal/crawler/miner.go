package crawler

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/marketcrawler/logger"
	"sjsage522/marketcrawler/pkg/errors"
)

// maxOwnerDepth bounds the ancestor walk from an ID-bearing anchor
const maxOwnerDepth = 5

// Miner recovers listings from raw markup when card extraction comes up
// short. Each ID climbs a fixed ladder: owner element on the page, then the
// detail page, then a placeholder record.
type Miner struct {
	Fetcher Fetcher
	// Delay precedes every detail-page fetch
	Delay time.Duration
	// DetailBudget caps detail fetches: they only happen when fewer IDs than
	// this are left unresolved after the owner lookup
	DetailBudget int
	Log          *logger.Logger
}

// MineResult reports what each rung of the ladder produced
type MineResult struct {
	Entries     []Entry
	Candidates  int
	Owner       int
	Detail      int
	Placeholder int
}

// Mine scans page for listing IDs the known predicate does not already
// cover and resolves each of them. A cancelled context stops detail fetches;
// the remaining IDs still get placeholders.
func (m *Miner) Mine(ctx context.Context, page *Page, p *Profile, known func(string) bool) MineResult {
	var res MineResult
	base, err := url.Parse(page.URL)
	if err != nil || p.DetailURLTemplate == "" {
		return res
	}
	ex := NewExtractor(p)

	ids := MineIDs(page, p)
	res.Candidates = len(ids)

	type pending struct{ id, url string }
	var unresolved []pending
	taken := make(map[string]struct{})

	for _, id := range ids {
		detailURL := p.DetailURL(base, id)
		if detailURL == "" || known(detailURL) {
			continue
		}
		if _, ok := taken[detailURL]; ok {
			continue
		}
		taken[detailURL] = struct{}{}

		if owner := FindOwner(page.Doc, id, p); owner != nil {
			rec := ex.ExtractRecord(owner, base)
			if rec.Title != "" {
				setIfAbsent(rec.AdInfo, KeyItemID, id)
				res.Entries = append(res.Entries, Entry{URL: detailURL, Record: rec})
				res.Owner++
				continue
			}
		}
		unresolved = append(unresolved, pending{id: id, url: detailURL})
	}

	fetchDetails := len(unresolved) < m.DetailBudget && m.Fetcher != nil
	for _, u := range unresolved {
		if fetchDetails && ctx.Err() == nil {
			if rec, ok := m.fetchDetail(ctx, ex, u.url); ok {
				setIfAbsent(rec.AdInfo, KeyItemID, u.id)
				res.Entries = append(res.Entries, Entry{URL: u.url, Record: rec})
				res.Detail++
				continue
			}
		}
		res.Entries = append(res.Entries, Entry{URL: u.url, Record: placeholder(u.id)})
		res.Placeholder++
	}
	return res
}

func (m *Miner) fetchDetail(ctx context.Context, ex *Extractor, detailURL string) (ProductRecord, bool) {
	if err := sleepCtx(ctx, m.Delay); err != nil {
		return ProductRecord{}, false
	}
	page, err := m.Fetcher.Fetch(ctx, detailURL)
	if err != nil {
		m.log().Debug().
			Err(err).
			Str("url", detailURL).
			Str("error_type", string(errors.TypeOf(err))).
			Msg("Detail fetch failed")
		return ProductRecord{}, false
	}
	rec := ex.ExtractFromDetailPage(page)
	return rec, rec.Title != ""
}

func (m *Miner) log() *logger.Logger {
	if m.Log == nil {
		return logger.Nop()
	}
	return m.Log
}

func placeholder(id string) ProductRecord {
	rec := NewProductRecord()
	rec.Title = fmt.Sprintf("Product %s", id)
	rec.AdInfo[KeyItemID] = id
	return rec
}

// MineIDs returns the distinct IDs found by the markup patterns over the raw
// HTML followed by the script patterns over <script> bodies, in first-seen order
func MineIDs(page *Page, p *Profile) []string {
	var ids []string
	seen := make(map[string]struct{})
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for _, re := range p.markupIDs {
		for _, m := range re.FindAllSubmatch(page.HTML, -1) {
			add(string(m[1]))
		}
	}
	if len(p.scriptIDs) > 0 && page.Doc != nil {
		page.Doc.Find("script").Each(func(_ int, s *goquery.Selection) {
			body := s.Text()
			for _, re := range p.scriptIDs {
				for _, m := range re.FindAllStringSubmatch(body, -1) {
					add(m[1])
				}
			}
		})
	}
	return ids
}

// FindOwner locates the card that carries id: first an element whose owner
// attribute equals id, then the card around an anchor linking to id, then an
// ancestor of that anchor within maxOwnerDepth levels matching an owner hint
func FindOwner(doc *goquery.Document, id string, p *Profile) *goquery.Selection {
	cards := strings.Join(p.CardSelectors, ", ")

	for _, attr := range p.OwnerAttrs {
		el := doc.Find(fmt.Sprintf("[%s=%q]", attr, id)).First()
		if el.Length() == 0 {
			continue
		}
		if cards != "" {
			if card := el.Closest(cards); card.Length() > 0 && !skippedCard(card, p) {
				return card
			}
			if card := el.Find(cards).First(); card.Length() > 0 && !skippedCard(card, p) {
				return card
			}
		}
		if !skippedCard(el, p) {
			return el
		}
	}

	anchor := doc.Find(fmt.Sprintf("a[href*=%q]", id)).FilterFunction(func(_ int, a *goquery.Selection) bool {
		return linksTo(a.AttrOr("href", ""), id, p)
	}).First()
	if anchor.Length() == 0 {
		return nil
	}
	if cards != "" {
		if card := anchor.Closest(cards); card.Length() > 0 && !skippedCard(card, p) && goquery.NodeName(card) != "a" {
			return card
		}
	}
	parent := anchor.Parent()
	for depth := 0; depth < maxOwnerDepth && parent.Length() > 0; depth++ {
		for _, hint := range p.OwnerHints {
			if parent.Is(hint) && !skippedCard(parent, p) {
				return parent
			}
		}
		parent = parent.Parent()
	}
	return nil
}

// linksTo reports whether href points at id itself and not at a longer ID
// that merely contains it
func linksTo(href, id string, p *Profile) bool {
	if got := p.ExtractID(href); got != "" {
		return got == id
	}
	re, err := regexp.Compile(`(?:^|\D)` + regexp.QuoteMeta(id) + `(?:\D|$)`)
	return err == nil && re.MatchString(href)
}

func skippedCard(s *goquery.Selection, p *Profile) bool {
	for _, c := range p.SkipClasses {
		if s.HasClass(c) {
			return true
		}
	}
	return false
}

// sleepCtx waits for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
