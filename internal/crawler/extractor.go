package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/marketcrawler/helpers"
)

// Extractor turns cards and detail pages into records under one profile
type Extractor struct {
	Profile *Profile
}

// NewExtractor creates an extractor for p
func NewExtractor(p *Profile) *Extractor {
	return &Extractor{Profile: p}
}

// Cards returns the page's listing cards: the first card selector that
// yields anything inside the scope wins, minus cards carrying a skip class
func (e *Extractor) Cards(doc *goquery.Document) *goquery.Selection {
	root := doc.Selection
	if scope, ok := FirstMatch(root, e.Profile.Scope); ok {
		root = scope
	}
	for _, q := range e.Profile.CardSelectors {
		if strings.TrimSpace(q) == "" {
			continue
		}
		cards := root.Find(q).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return !skippedCard(s, e.Profile)
		})
		if cards.Length() > 0 {
			return cards
		}
	}
	return root.Slice(0, 0)
}

// ExtractCards runs ExtractFromCard over every card on the page and returns
// the entries in document order, deduplicated, capped at MaxCards
func (e *Extractor) ExtractCards(page *Page) (entries []Entry, cards int) {
	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, 0
	}
	sel := e.Cards(page.Doc)
	seen := make(map[string]struct{})

	sel.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		entry, ok := e.ExtractFromCard(card, base)
		if !ok {
			return true
		}
		if _, dup := seen[entry.URL]; dup {
			return true
		}
		seen[entry.URL] = struct{}{}
		entries = append(entries, entry)
		return e.Profile.MaxCards <= 0 || len(entries) < e.Profile.MaxCards
	})
	return entries, sel.Length()
}

// ExtractFromCard extracts one listing card. It fails only when the card
// has no resolvable link, or is a bare anchor without text.
func (e *Extractor) ExtractFromCard(card *goquery.Selection, base *url.URL) (Entry, bool) {
	link, ok := FirstMatch(card, e.Profile.Card.Link)
	if !ok {
		if goquery.NodeName(card) != "a" {
			return Entry{}, false
		}
		link = card
	}

	canonical := CanonicalURL(base, link.AttrOr("href", ""), e.Profile)
	if canonical == "" {
		return Entry{}, false
	}

	rec := e.ExtractRecord(card, base)
	if rec.Title == "" {
		rec.Title = helpers.CleanText(link.Text())
	}
	if rec.Title == "" {
		rec.Title = strings.TrimSpace(link.AttrOr("title", ""))
	}
	if rec.Title == "" && goquery.NodeName(card) == "a" {
		return Entry{}, false
	}

	if id := e.Profile.ExtractID(canonical); id != "" {
		setIfAbsent(rec.AdInfo, KeyItemID, id)
	}
	return Entry{URL: canonical, Record: rec}, true
}

// ExtractRecord reads the card fields of the profile from root
func (e *Extractor) ExtractRecord(root *goquery.Selection, base *url.URL) ProductRecord {
	priceRoot := root
	if e.Profile.PriceContainer != "" {
		if c := root.Closest(e.Profile.PriceContainer); c.Length() > 0 {
			priceRoot = c
		}
	}
	return e.fields(root, priceRoot, base, e.Profile.Card)
}

// ExtractFromDetailPage reads a full product page
func (e *Extractor) ExtractFromDetailPage(page *Page) ProductRecord {
	base, _ := url.Parse(page.URL)
	root := page.Doc.Selection
	rec := e.fields(root, root, base, e.Profile.Detail)

	id := e.Profile.ExtractID(page.URL)
	if id == "" {
		for _, re := range e.Profile.detailIDs {
			if m := re.FindSubmatch(page.HTML); m != nil {
				id = string(m[1])
				break
			}
		}
	}
	if id != "" {
		setIfAbsent(rec.AdInfo, KeyItemID, id)
	}
	return rec
}

func (e *Extractor) fields(root, priceRoot *goquery.Selection, base *url.URL, fs FieldSelectors) ProductRecord {
	rec := NewProductRecord()
	rec.Title = FirstText(root, fs.Title)
	rec.Description = FirstText(root, fs.Description)
	rec.Price = FirstText(priceRoot, fs.Price)
	rec.Location = FirstText(root, fs.Location)

	if img, ok := FirstMatch(root, fs.Image); ok {
		src := imageSource(img)
		if goquery.NodeName(img) == "meta" {
			src = strings.TrimSpace(img.AttrOr("content", ""))
		}
		if abs := ResolveURL(base, src); abs != "" {
			setIfAbsent(rec.GeneralInfo, KeyImageURL, abs)
		}
	}

	applyRules(root, fs.AdInfo, rec.AdInfo)
	applyRules(root, fs.GeneralInfo, rec.GeneralInfo)
	applyRules(root, fs.Features, rec.Features)
	for _, rule := range fs.LabelValues {
		scanLabelValues(root, rule, rec.Target(rule.Target))
	}
	return rec
}

func applyRules(root *goquery.Selection, rules []FieldRule, into map[string]string) {
	for _, rule := range rules {
		var v string
		if rule.Attr != "" {
			v = helpers.CleanText(FirstAttr(root, rule.Selectors, rule.Attr))
		} else {
			v = FirstText(root, rule.Selectors)
		}
		if rule.Key != "" && v != "" {
			setIfAbsent(into, rule.Key, v)
		}
	}
}

// scanLabelValues pairs each label with the next matching sibling, falling
// back to a value inside the label's parent row
func scanLabelValues(root *goquery.Selection, rule LabelValueRule, into map[string]string) {
	if rule.Label == "" || rule.Value == "" {
		return
	}
	containers := root
	if rule.Container != "" {
		containers = root.Find(rule.Container)
	}

	containers.Each(func(_ int, c *goquery.Selection) {
		c.Find(rule.Label).Each(func(_ int, label *goquery.Selection) {
			key := strings.TrimSpace(strings.TrimSuffix(helpers.CleanText(label.Text()), ":"))
			value := label.NextAllFiltered(rule.Value).First()
			if value.Length() == 0 {
				value = label.Parent().Find(rule.Value).First()
			}
			v := helpers.CleanText(value.Text())
			if key == "" || v == "" {
				return
			}
			setIfAbsent(into, key, v)
		})
	})
}

func setIfAbsent(m map[string]string, key, value string) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}
