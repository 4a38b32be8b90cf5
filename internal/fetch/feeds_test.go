package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dailybrief/internal/config"
	"dailybrief/internal/domain"
)

func rssFeed(items ...string) string {
	body := ""
	for _, item := range items {
		body += item
	}
	return `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test Feed</title>` + body + `</channel></rss>`
}

func rssItem(title, link, pubDate string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><description>desc</description><pubDate>%s</pubDate></item>`,
		title, link, pubDate)
}

func TestFeedFetcherFiltersByWindow(t *testing.T) {
	t.Parallel()

	fresh := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z)
	stale := time.Now().UTC().Add(-72 * time.Hour).Format(time.RFC1123Z)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed(
			rssItem("Fresh", "https://example.com/fresh", fresh),
			rssItem("Stale", "https://example.com/stale", stale),
			rssItem("", "https://example.com/untitled", fresh),
		))
	}))
	defer server.Close()

	fetcher, err := NewFeedFetcher(config.ArticleSourceConfig{
		Name: "test",
		URL:  "https://example.com",
		Type: "rss",
		RSS:  server.URL,
	}, server.Client(), nil)
	require.NoError(t, err)

	items, err := fetcher.Fetch(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Fresh", items[0].Title)
	require.Equal(t, "test", items[0].SourceName)
	require.Equal(t, domain.SourceTypeRSS, items[0].SourceType)
	require.Equal(t, server.URL, items[0].RSSURL)
}

func TestFeedFetcherIsolatesFailingFeed(t *testing.T) {
	t.Parallel()

	fresh := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z)

	mux := http.NewServeMux()
	mux.HandleFunc("/good", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed(rssItem("Good", "https://example.com/good", fresh)))
	})
	mux.HandleFunc("/also-good", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed(rssItem("Also Good", "https://example.com/also-good", fresh)))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher, err := NewFeedFetcher(config.ArticleSourceConfig{
		Name: "tagged",
		URL:  "https://example.com",
		Type: "rss",
		Feeds: map[string]string{
			"research": server.URL + "/good",
			"news":     server.URL + "/also-good",
			"broken":   server.URL + "/broken",
		},
	}, server.Client(), nil)
	require.NoError(t, err)

	items, err := fetcher.Fetch(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestFeedFetcherFailsWhenAllFeedsFail(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher, err := NewFeedFetcher(config.ArticleSourceConfig{
		Name: "test",
		URL:  "https://example.com",
		RSS:  server.URL,
	}, server.Client(), nil)
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background(), 24*time.Hour)
	require.Error(t, err)
}

func TestFeedFetcherParsesNaiveDatesAsUTC(t *testing.T) {
	t.Parallel()

	naive := time.Now().UTC().Add(-time.Hour).Format("2006-01-02 15:04:05")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssFeed(rssItem("Naive", "https://example.com/naive", naive)))
	}))
	defer server.Close()

	fetcher, err := NewFeedFetcher(config.ArticleSourceConfig{
		Name: "test",
		URL:  "https://example.com",
		RSS:  server.URL,
	}, server.Client(), nil)
	require.NoError(t, err)

	items, err := fetcher.Fetch(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.WithinDuration(t, time.Now().UTC().Add(-time.Hour), items[0].PublishedAt, time.Minute)
}

func TestFeedFetcherRequiresAFeed(t *testing.T) {
	t.Parallel()

	_, err := NewFeedFetcher(config.ArticleSourceConfig{Name: "empty"}, nil, nil)
	require.Error(t, err)
}
