package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveURL makes href absolute against base. Fragment-only, javascript:
// and non-http(s) links resolve to "".
func ResolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if (abs.Scheme != "http" && abs.Scheme != "https") || abs.Host == "" {
		return ""
	}
	return abs.String()
}

// CanonicalURL normalizes href into the key a record is stored under: absolute,
// no fragment, lower-case host. When p derives an ID from the path the query
// is dropped so tracking-parameter variants collapse onto one key.
func CanonicalURL(base *url.URL, href string, p *Profile) string {
	abs := ResolveURL(base, href)
	if abs == "" {
		return ""
	}
	u, err := url.Parse(abs)
	if err != nil {
		return ""
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	if p != nil {
		for _, re := range p.idPath {
			if m := re.FindStringSubmatch(u.Path); m != nil {
				if p.CanonicalDetailPaths && p.DetailURLTemplate != "" {
					return ResolveURL(u, fmt.Sprintf(p.DetailURLTemplate, m[1]))
				}
				u.RawQuery = ""
				u.ForceQuery = false
				break
			}
		}
	}
	return u.String()
}

// ExtractID derives the numeric listing ID from an absolute URL, trying the
// path patterns before the query patterns
func (p *Profile) ExtractID(abs string) string {
	u, err := url.Parse(abs)
	if err != nil {
		return ""
	}
	for _, re := range p.idPath {
		if m := re.FindStringSubmatch(u.Path); m != nil {
			return m[1]
		}
	}
	for _, re := range p.idQuery {
		if m := re.FindStringSubmatch(u.RawQuery); m != nil {
			return m[1]
		}
	}
	return ""
}

// DetailURL builds the canonical detail-page URL for id, or "" when the
// profile has no template
func (p *Profile) DetailURL(base *url.URL, id string) string {
	if p.DetailURLTemplate == "" || id == "" {
		return ""
	}
	return CanonicalURL(base, fmt.Sprintf(p.DetailURLTemplate, id), p)
}
