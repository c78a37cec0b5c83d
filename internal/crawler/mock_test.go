package crawler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"sjsage522/marketcrawler/pkg/errors"
)

// fakeFetcher serves canned HTML by exact URL; unknown URLs answer 404
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	calls []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	err, failing := f.errs[url]
	html, ok := f.pages[url]
	f.mu.Unlock()

	if failing {
		return nil, err
	}
	if !ok {
		return nil, errors.NewStatus(url, 404)
	}
	return ParsePage(url, []byte(html))
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// marketProfile is a small 999-style profile for market.test and 127.0.0.1
func marketProfile() *Profile {
	return &Profile{
		Name:          "market",
		Hosts:         []string{"market.test", "127.0.0.1"},
		CardSelectors: []string{"div.card"},
		SkipClasses:   []string{"skeleton"},
		Card: FieldSelectors{
			Link:  []string{"a.title[href]"},
			Title: []string{"a.title"},
			Price: []string{"span.price"},
			Image: []string{"img"},
			AdInfo: []FieldRule{
				{Key: "Condition", Selectors: []string{"span.cond"}},
			},
		},
		Detail: FieldSelectors{
			Title:    []string{"h1"},
			Price:    []string{"span.price"},
			Location: []string{"span.loc"},
			LabelValues: []LabelValueRule{
				{Container: "dl.specs", Label: "dt", Value: "dd", Target: TargetFeatures},
			},
		},
		IDPathPatterns:    []string{`^/ro/(\d{6,12})$`},
		MarkupIDPatterns:  []string{`/ro/(\d{6,12})(?:[^\d]|$)`, `data-adid=["'](\d{6,12})["']`},
		ScriptIDPatterns:  []string{`"adid"\s*:\s*"?(\d{6,12})`},
		OwnerAttrs:        []string{"data-adid"},
		OwnerHints:        []string{"div.wrapper"},
		DetailURLTemplate: "/ro/%s",
		DetailURLShape:    `/ro/\d+`,
	}
}

func marketRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(GenericProfile(), marketProfile())
	require.NoError(t, err)
	return r
}

func compiledMarketProfile(t *testing.T) *Profile {
	t.Helper()
	p := marketProfile()
	require.NoError(t, p.Compile())
	return p
}

func noDelayConfig() SessionConfig {
	cfg := DefaultSessionConfig()
	cfg.RequestDelay = 0
	return cfg
}
