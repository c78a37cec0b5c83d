package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// genericPagination is scanned on every page in addition to the profile's own selectors
var genericPagination = []string{
	"nav.paginator a[href]",
	"ul.pagination a[href]",
	"a[rel=next][href]",
	"a[aria-label='Next page'][href]",
	"a[href*='page=']",
	"a[href*='/page/']",
}

// DiscoverPages returns pagination links on the page as absolute URLs in
// document order, leaving out detail-page links and anything already in seen
func DiscoverPages(doc *goquery.Document, pageURL string, p *Profile, seen func(string) bool) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	queries := make([]string, 0, len(p.PaginationSelectors)+len(genericPagination))
	for _, q := range append(append([]string{}, p.PaginationSelectors...), genericPagination...) {
		if strings.TrimSpace(q) != "" {
			queries = append(queries, q)
		}
	}

	var out []string
	picked := make(map[string]struct{})
	doc.Find(strings.Join(queries, ", ")).Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if p.IsDetailURL(href) {
			return
		}
		abs := ResolveURL(base, href)
		if abs == "" || p.IsDetailURL(abs) {
			return
		}
		if u, err := url.Parse(abs); err == nil && u.Fragment != "" {
			u.Fragment = ""
			abs = u.String()
		}
		if abs == pageURL || (seen != nil && seen(abs)) {
			return
		}
		if _, dup := picked[abs]; dup {
			return
		}
		picked[abs] = struct{}{}
		out = append(out, abs)
	})
	return out
}
