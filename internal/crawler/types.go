package crawler

import (
	"context"
	"encoding/json"

	"github.com/PuerkitoBio/goquery"
)

// Well-known keys written into record maps
const (
	KeyItemID   = "Item ID"
	KeyImageURL = "Image URL"
)

// ProductRecord represents one extracted product listing
type ProductRecord struct {
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Price       string            `json:"price,omitempty"`
	Location    string            `json:"location,omitempty"`
	AdInfo      map[string]string `json:"adInfo"`
	GeneralInfo map[string]string `json:"generalInfo"`
	Features    map[string]string `json:"features"`
}

// NewProductRecord returns a record with empty maps
func NewProductRecord() ProductRecord {
	return ProductRecord{
		AdInfo:      map[string]string{},
		GeneralInfo: map[string]string{},
		Features:    map[string]string{},
	}
}

// MarshalJSON writes nil maps as {} so consumers never see null
func (r ProductRecord) MarshalJSON() ([]byte, error) {
	type plain ProductRecord
	p := plain(r)
	if p.AdInfo == nil {
		p.AdInfo = map[string]string{}
	}
	if p.GeneralInfo == nil {
		p.GeneralInfo = map[string]string{}
	}
	if p.Features == nil {
		p.Features = map[string]string{}
	}
	return json.Marshal(p)
}

// Target returns the map a rule writes into, creating it when nil
func (r *ProductRecord) Target(name string) map[string]string {
	switch name {
	case TargetGeneralInfo:
		if r.GeneralInfo == nil {
			r.GeneralInfo = map[string]string{}
		}
		return r.GeneralInfo
	case TargetFeatures:
		if r.Features == nil {
			r.Features = map[string]string{}
		}
		return r.Features
	default:
		if r.AdInfo == nil {
			r.AdInfo = map[string]string{}
		}
		return r.AdInfo
	}
}

// Entry pairs a canonical URL with its record
type Entry struct {
	URL    string
	Record ProductRecord
}

// Page is a fetched and parsed document
type Page struct {
	URL  string
	HTML []byte
	Doc  *goquery.Document
}

// Fetcher retrieves a page. Failures are *errors.CrawlerError values.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}
