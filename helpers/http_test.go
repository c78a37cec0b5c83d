package helpers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/marketcrawler/pkg/errors"
)

func TestFetchPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check that headers are set
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.NotEmpty(t, r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("Accept-Language"))
		assert.NotEmpty(t, r.Header.Get("Referer"))

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html><body>Hello, World!</body></html>"))
	}))
	defer server.Close()

	resp, err := FetchPage(context.Background(), NewClient(time.Second), server.URL, 0)
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body), "Hello, World!")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFetchPageFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<p>moved</p>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := FetchPage(context.Background(), NewClient(time.Second), server.URL+"/old", 0)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/new", resp.FinalURL)
	assert.Contains(t, string(resp.Body), "moved")
}

func TestFetchPageNonUTF8(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "café" in ISO-8859-1
		w.Write([]byte("<html><body>caf\xe9</body></html>"))
	}))
	defer server.Close()

	resp, err := FetchPage(context.Background(), NewClient(time.Second), server.URL, 0)
	require.NoError(t, err)
	assert.Contains(t, string(resp.Body), "café")
}

func TestFetchPageBodyCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("a", 1000)))
	}))
	defer server.Close()

	resp, err := FetchPage(context.Background(), NewClient(time.Second), server.URL, 100)
	require.NoError(t, err)
	assert.Len(t, resp.Body, 100)
}

func TestFetchPageErrors(t *testing.T) {
	serverError := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer serverError.Close()

	_, err := FetchPage(context.Background(), NewClient(time.Second), serverError.URL, 0)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeStatus, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "unexpected status code: 500")

	serverRateLimited := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer serverRateLimited.Close()

	_, err = FetchPage(context.Background(), NewClient(time.Second), serverRateLimited.URL, 0)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeRateLimit, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "retry after 60")

	serverSlow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer serverSlow.Close()

	_, err = FetchPage(context.Background(), NewClient(50*time.Millisecond), serverSlow.URL, 0)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeTimeout, errors.TypeOf(err))
}

func TestFetchPageConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	_, err := FetchPage(context.Background(), NewClient(time.Second), addr, 0)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeTransport, errors.TypeOf(err))
}
