package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"

	"sjsage522/marketcrawler/helpers"
	"sjsage522/marketcrawler/internal/crawler"
	"sjsage522/marketcrawler/logger"
	"sjsage522/marketcrawler/pkg/errors"
)

// Column limits applied before insert
const (
	MaxURLRunes   = 500
	MaxShortRunes = 255
)

// Product is a stored listing
type Product struct {
	ID          int64             `json:"id"`
	URL         string            `json:"url"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Price       string            `json:"price,omitempty"`
	Location    string            `json:"location,omitempty"`
	AdInfo      map[string]string `json:"adInfo"`
	GeneralInfo map[string]string `json:"generalInfo"`
	Features    map[string]string `json:"features"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Store persists product records in SQLite. URLs already seen by this
// process are remembered in an LRU so repeated saves skip the database.
type Store struct {
	db    *sql.DB
	known *lru.Cache[string, struct{}]
	log   *logger.Logger
}

// Open opens or creates the database at path. knownURLs sizes the
// known-URL cache; values below 1 default to 1024.
func Open(path string, knownURLs int) (*Store, error) {
	if knownURLs < 1 {
		knownURLs = 1024
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, errors.NewPersistence("", "failed to open database", err)
	}
	// sqlite allows one writer at a time
	db.SetMaxOpenConns(1)

	known, err := lru.New[string, struct{}](knownURLs)
	if err != nil {
		db.Close()
		return nil, errors.NewPersistence("", "failed to create known-URL cache", err)
	}

	s := &Store{db: db, known: known, log: logger.ForStore()}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, errors.NewPersistence("", "failed to initialize schema", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		title TEXT,
		description TEXT,
		price TEXT,
		location TEXT,
		ad_info TEXT NOT NULL DEFAULT '{}',
		general_info TEXT NOT NULL DEFAULT '{}',
		features TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// ExistsByURL reports whether a product with url is stored
func (s *Store) ExistsByURL(ctx context.Context, url string) (bool, error) {
	url = helpers.TruncateRunes(url, MaxURLRunes)
	if s.known.Contains(url) {
		return true, nil
	}

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM products WHERE url = ? LIMIT 1`, url).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, errors.NewPersistence(url, "failed to look up product", err)
	}
	s.known.Add(url, struct{}{})
	return true, nil
}

// Save inserts rec under url. It returns false without error when a product
// with the same url already exists.
func (s *Store) Save(ctx context.Context, url string, rec crawler.ProductRecord) (bool, error) {
	url = helpers.TruncateRunes(url, MaxURLRunes)
	if url == "" {
		return false, errors.NewPersistence(url, "empty url", nil)
	}
	if s.known.Contains(url) {
		return false, nil
	}

	adInfo, err := encodeMap(rec.AdInfo)
	if err != nil {
		return false, errors.NewPersistence(url, "failed to encode adInfo", err)
	}
	generalInfo, err := encodeMap(rec.GeneralInfo)
	if err != nil {
		return false, errors.NewPersistence(url, "failed to encode generalInfo", err)
	}
	features, err := encodeMap(rec.Features)
	if err != nil {
		return false, errors.NewPersistence(url, "failed to encode features", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO products (url, title, description, price, location, ad_info, general_info, features, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO NOTHING`,
		url,
		rec.Title,
		rec.Description,
		helpers.TruncateRunes(rec.Price, MaxShortRunes),
		helpers.TruncateRunes(rec.Location, MaxShortRunes),
		adInfo,
		generalInfo,
		features,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, errors.NewPersistence(url, "failed to insert product", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewPersistence(url, "failed to read affected rows", err)
	}
	s.known.Add(url, struct{}{})
	if n == 0 {
		s.log.Debug().Str("url", url).Msg("Product already stored")
		return false, nil
	}
	return true, nil
}

// List returns stored products, oldest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Product, error) {
	query := `SELECT id, url, title, description, price, location, ad_info, general_info, features, created_at
		FROM products ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewPersistence("", "failed to list products", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var (
			p                             Product
			title, desc, price, location  sql.NullString
			adInfo, generalInfo, features string
			createdAt                     string
		)
		if err := rows.Scan(&p.ID, &p.URL, &title, &desc, &price, &location, &adInfo, &generalInfo, &features, &createdAt); err != nil {
			return nil, errors.NewPersistence("", "failed to scan product", err)
		}
		p.Title, p.Description, p.Price, p.Location = title.String, desc.String, price.String, location.String

		if p.AdInfo, err = decodeMap(adInfo); err != nil {
			return nil, errors.NewPersistence(p.URL, "failed to decode adInfo", err)
		}
		if p.GeneralInfo, err = decodeMap(generalInfo); err != nil {
			return nil, errors.NewPersistence(p.URL, "failed to decode generalInfo", err)
		}
		if p.Features, err = decodeMap(features); err != nil {
			return nil, errors.NewPersistence(p.URL, "failed to decode features", err)
		}
		if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, errors.NewPersistence(p.URL, fmt.Sprintf("bad created_at %q", createdAt), err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewPersistence("", "failed to list products", err)
	}
	return products, nil
}

// Count returns the number of stored products
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, errors.NewPersistence("", "failed to count products", err)
	}
	return n, nil
}

func encodeMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMap(s string) (map[string]string, error) {
	m := map[string]string{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
