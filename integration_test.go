package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/marketcrawler/config"
	"sjsage522/marketcrawler/internal/crawler"
	"sjsage522/marketcrawler/logger"
	"sjsage522/marketcrawler/services/store"
	"sjsage522/marketcrawler/services/worker"
)

// listingHTML mimics a marketplace listing page with two cards, one
// client-rendered ad that only leaves its ID behind, and a paginator
const listingHTML = `
<!DOCTYPE html>
<html>
<head><title>Cars</title></head>
<body>
	<div class="grid">
		<div class="product"><a class="name" href="/ad/1000001">Toyota Prius</a><span class="cost">12 500 €</span></div>
		<div class="product"><a class="name" href="/ad/1000002?ref=list">Honda Civic</a><span class="cost">9 000 €</span></div>
		<div data-ad="1000003"></div>
	</div>
	<nav class="paginator"><a href="/cars?page=2">2</a></nav>
</body>
</html>
`

const profilesYAML = `
profiles:
  - name: test-market
    hosts: [127.0.0.1]
    cards: ["div.product"]
    card:
      link: ["a.name[href]"]
      title: ["a.name"]
      price: [".cost"]
    detail:
      title: ["h1"]
      price: [".cost"]
      label_values:
        - container: table.specs
          label: th
          value: td
          target: features
    id_path_patterns: ['^/ad/(\d+)$']
    markup_id_patterns: ['data-ad="(\d+)"']
    owner_attrs: [data-ad]
    detail_url_template: /ad/%s
    detail_url_shape: '/ad/\d+'
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cars", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `<html><body><div class="product"><a class="name" href="/ad/1000004">Dacia Logan</a><span class="cost">4 000 €</span></div></body></html>`)
			return
		}
		fmt.Fprint(w, listingHTML)
	})
	mux.HandleFunc("/ad/1000003", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Skoda Octavia</h1><span class="cost">7 000 €</span>
			<table class="specs"><tr><th>Fuel</th><td>Diesel</td></tr></table></body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	profiles := filepath.Join(dir, "profiles.yaml")
	require.NoError(t, os.WriteFile(profiles, []byte(profilesYAML), 0o644))

	cfg := config.LoadConfig()
	cfg.DatabasePath = filepath.Join(dir, "products.db")
	cfg.ProfilesFile = profiles
	cfg.RequestDelay = 0
	cfg.RequestTimeout = 2 * time.Second
	cfg.MemcacheAddr = ""
	cfg.MetricsAddr = ""
	return cfg
}

func TestCrawlAndPersist(t *testing.T) {
	logger.InitWithWriter(io.Discard)
	server := newTestServer(t)
	cfg := testConfig(t)
	ctx := context.Background()

	services, err := initializeServices(ctx, cfg, serviceNeeds{store: true})
	require.NoError(t, err)
	defer services.Cleanup()

	res := crawler.NewSession(services.Fetcher, services.Registry, sessionConfig(cfg), services.Metrics).
		Run(ctx, server.URL+"/cars", 5)

	assert.Equal(t, 2, res.Visited)
	assert.Equal(t, []string{server.URL + "/cars", server.URL + "/cars?page=2"}, res.Frontier)
	require.Len(t, res.Records, 4)
	assert.Equal(t, "Honda Civic", res.Records[server.URL+"/ad/1000002"].Title)

	skoda := res.Records[server.URL+"/ad/1000003"]
	assert.Equal(t, "Skoda Octavia", skoda.Title)
	assert.Equal(t, "Diesel", skoda.Features["Fuel"])

	summary := worker.NewPersister(services.Store, cfg.PersistWorkers).SaveAll(ctx, res)
	assert.Equal(t, worker.Summary{Saved: 4}, summary)

	// a second run stores nothing new
	again := crawler.NewSession(services.Fetcher, services.Registry, sessionConfig(cfg), nil).Run(ctx, server.URL+"/cars", 5)
	summary = worker.NewPersister(services.Store, cfg.PersistWorkers).SaveAll(ctx, again)
	assert.Equal(t, worker.Summary{Skipped: 4}, summary)
}

func TestCrawlCommandWritesOutput(t *testing.T) {
	server := newTestServer(t)
	cfg := testConfig(t)
	out := filepath.Join(t.TempDir(), "records.json")

	root := newRootCommand(cfg)
	root.SetArgs([]string{"crawl", "--url", server.URL + "/cars", "--max-pages", "1", "--output", out})
	require.NoError(t, root.Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var entries []outputEntry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, server.URL+"/ad/1000001", entries[0].URL)
	assert.Equal(t, "Toyota Prius", entries[0].Record.Title)

	// products reads back what crawl stored
	var buf bytes.Buffer
	root = newRootCommand(cfg)
	root.SetOut(&buf)
	root.SetArgs([]string{"products"})
	require.NoError(t, root.Execute())

	var products []store.Product
	require.NoError(t, json.Unmarshal(buf.Bytes(), &products))
	assert.Len(t, products, 3)
}

func TestExtractCommand(t *testing.T) {
	server := newTestServer(t)
	cfg := testConfig(t)

	var buf bytes.Buffer
	root := newRootCommand(cfg)
	root.SetOut(&buf)
	root.SetArgs([]string{"extract", server.URL + "/ad/1000003"})
	require.NoError(t, root.Execute())

	var entry outputEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, server.URL+"/ad/1000003", entry.URL)
	assert.Equal(t, "Skoda Octavia", entry.Record.Title)
	assert.Equal(t, "7 000 €", entry.Record.Price)
	assert.Equal(t, "1000003", entry.Record.AdInfo[crawler.KeyItemID])
}

func TestCrawlCommandRequiresURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.StartURL = ""

	root := newRootCommand(cfg)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"crawl"})
	assert.Error(t, root.Execute())
}
