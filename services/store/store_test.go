package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/marketcrawler/internal/crawler"
	"sjsage522/marketcrawler/pkg/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "products.db"), 16)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndExists(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := crawler.NewProductRecord()
	rec.Title = "Toyota Prius"
	rec.Price = "12 500 €"
	rec.AdInfo[crawler.KeyItemID] = "102552121"

	exists, err := s.ExistsByURL(ctx, "https://999.md/ro/102552121")
	require.NoError(t, err)
	assert.False(t, exists)

	saved, err := s.Save(ctx, "https://999.md/ro/102552121", rec)
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = s.Save(ctx, "https://999.md/ro/102552121", crawler.ProductRecord{Title: "other"})
	require.NoError(t, err)
	assert.False(t, saved)

	exists, err = s.ExistsByURL(ctx, "https://999.md/ro/102552121")
	require.NoError(t, err)
	assert.True(t, exists)

	products, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Toyota Prius", products[0].Title)
	assert.Equal(t, "12 500 €", products[0].Price)
	assert.Equal(t, map[string]string{crawler.KeyItemID: "102552121"}, products[0].AdInfo)
	assert.Equal(t, map[string]string{}, products[0].Features)
	assert.False(t, products[0].CreatedAt.IsZero())
}

func TestSaveConflictAcrossStores(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	a, err := Open(path, 16)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(path, 16)
	require.NoError(t, err)
	defer b.Close()

	saved, err := a.Save(ctx, "https://shop.test/p/1", crawler.ProductRecord{Title: "first"})
	require.NoError(t, err)
	assert.True(t, saved)

	// b has never seen the URL, so the insert itself must skip
	saved, err = b.Save(ctx, "https://shop.test/p/1", crawler.ProductRecord{Title: "second"})
	require.NoError(t, err)
	assert.False(t, saved)

	products, err := b.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "first", products[0].Title)
}

func TestSaveTruncatesLongFields(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	longURL := "https://shop.test/" + strings.Repeat("é", 600)
	rec := crawler.ProductRecord{
		Title:    "Long",
		Price:    strings.Repeat("9", 300),
		Location: strings.Repeat("ș", 300),
	}
	saved, err := s.Save(ctx, longURL, rec)
	require.NoError(t, err)
	require.True(t, saved)

	products, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, MaxURLRunes, utf8.RuneCountInString(products[0].URL))
	assert.Equal(t, MaxShortRunes, utf8.RuneCountInString(products[0].Price))
	assert.Equal(t, MaxShortRunes, utf8.RuneCountInString(products[0].Location))

	exists, err := s.ExistsByURL(ctx, longURL)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSaveEmptyURL(t *testing.T) {
	_, err := openTestStore(t).Save(context.Background(), "", crawler.ProductRecord{Title: "x"})
	assert.True(t, errors.Is(err, errors.ErrorTypePersistence))
}

func TestConcurrentSavesOfSameURL(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	var wg sync.WaitGroup
	var inserted atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			saved, err := s.Save(ctx, "https://shop.test/p/same", crawler.ProductRecord{Title: fmt.Sprintf("copy %d", i)})
			assert.NoError(t, err)
			if saved {
				inserted.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), inserted.Load())
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestListLimit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		_, err := s.Save(ctx, fmt.Sprintf("https://shop.test/p/%d", i), crawler.ProductRecord{Title: "x"})
		require.NoError(t, err)
	}

	products, err := s.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, "https://shop.test/p/0", products[0].URL)
}
