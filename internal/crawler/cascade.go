package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/marketcrawler/helpers"
)

// FirstMatch evaluates queries in order against root's descendants and returns
// the first element of the first query that matches anything. Blank and
// uncompilable queries match nothing.
func FirstMatch(root *goquery.Selection, queries []string) (*goquery.Selection, bool) {
	if root == nil {
		return nil, false
	}
	for _, q := range queries {
		if strings.TrimSpace(q) == "" {
			continue
		}
		if found := root.Find(q); found.Length() > 0 {
			return found.First(), true
		}
	}
	return nil, false
}

// FirstText returns the cleaned text of the cascade match, or "" when absent
func FirstText(root *goquery.Selection, queries []string) string {
	sel, ok := FirstMatch(root, queries)
	if !ok {
		return ""
	}
	return helpers.CleanText(sel.Text())
}

// FirstAttr returns attr of the cascade match, or "" when absent
func FirstAttr(root *goquery.Selection, queries []string, attr string) string {
	sel, ok := FirstMatch(root, queries)
	if !ok {
		return ""
	}
	return strings.TrimSpace(sel.AttrOr(attr, ""))
}

// imageSource reads the first usable image URL attribute of sel
func imageSource(sel *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-lazy-src", "srcset"} {
		v := strings.TrimSpace(sel.AttrOr(attr, ""))
		if v == "" || strings.HasPrefix(v, "data:") {
			continue
		}
		if attr == "srcset" {
			v = strings.Fields(v)[0]
		}
		return v
	}
	return ""
}
