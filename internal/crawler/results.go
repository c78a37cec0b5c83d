package crawler

// ResultMap maps canonical URLs to records. The first insert for a URL wins
// and insertion order is kept so snapshots and logs are deterministic.
type ResultMap struct {
	records map[string]ProductRecord
	order   []string
}

// NewResultMap creates an empty result map
func NewResultMap() *ResultMap {
	return &ResultMap{records: make(map[string]ProductRecord)}
}

// Insert stores rec under url unless url is already present.
// It reports whether the record was stored.
func (m *ResultMap) Insert(url string, rec ProductRecord) bool {
	if url == "" {
		return false
	}
	if _, exists := m.records[url]; exists {
		return false
	}
	m.records[url] = rec
	m.order = append(m.order, url)
	return true
}

// Merge inserts every entry and returns how many were new
func (m *ResultMap) Merge(entries []Entry) int {
	added := 0
	for _, e := range entries {
		if m.Insert(e.URL, e.Record) {
			added++
		}
	}
	return added
}

// Has reports whether url has a record
func (m *ResultMap) Has(url string) bool {
	_, ok := m.records[url]
	return ok
}

// Get returns the record for url
func (m *ResultMap) Get(url string) (ProductRecord, bool) {
	rec, ok := m.records[url]
	return rec, ok
}

// Len returns the number of records
func (m *ResultMap) Len() int {
	return len(m.records)
}

// Snapshot returns copies of the records and their insertion order
func (m *ResultMap) Snapshot() (map[string]ProductRecord, []string) {
	records := make(map[string]ProductRecord, len(m.records))
	for k, v := range m.records {
		records[k] = v
	}
	order := make([]string, len(m.order))
	copy(order, m.order)
	return records, order
}

// frontier is the append-only list of pages to visit, deduplicated by exact string
type frontier struct {
	urls []string
	seen map[string]struct{}
}

func newFrontier(start string) *frontier {
	f := &frontier{seen: make(map[string]struct{})}
	f.Add(start)
	return f
}

// Add appends url when it is new
func (f *frontier) Add(url string) bool {
	if url == "" {
		return false
	}
	if _, ok := f.seen[url]; ok {
		return false
	}
	f.seen[url] = struct{}{}
	f.urls = append(f.urls, url)
	return true
}

func (f *frontier) Contains(url string) bool {
	_, ok := f.seen[url]
	return ok
}

func (f *frontier) At(i int) string {
	return f.urls[i]
}

func (f *frontier) Len() int {
	return len(f.urls)
}

func (f *frontier) List() []string {
	out := make([]string, len(f.urls))
	copy(out, f.urls)
	return out
}
