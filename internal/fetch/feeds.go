package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"dailybrief/internal/config"
	"dailybrief/internal/domain"
	"dailybrief/internal/ports"
)

// FeedFetcher pulls articles from one logical source, either a single RSS
// feed or several tagged feeds multiplexed under one name.
type FeedFetcher struct {
	name       string
	sourceURL  string
	sourceType domain.SourceType
	feeds      map[string]string
	parser     *gofeed.Parser
	logger     *slog.Logger
}

var _ ports.ArticleSource = (*FeedFetcher)(nil)

// NewFeedFetcher builds a fetcher from one configured article source.
func NewFeedFetcher(cfg config.ArticleSourceConfig, client *http.Client, logger *slog.Logger) (*FeedFetcher, error) {
	if cfg.RSS == "" && len(cfg.Feeds) == 0 {
		return nil, fmt.Errorf("source %s: no feed configured", cfg.Name)
	}
	if logger == nil {
		logger = slog.Default()
	}

	feeds := cfg.Feeds
	if len(feeds) == 0 {
		// Single-feed sources are modeled as one untagged feed.
		feeds = map[string]string{"": cfg.RSS}
	}

	parser := gofeed.NewParser()
	if client != nil {
		parser.Client = client
	}

	sourceType := domain.SourceType(cfg.Type)
	if sourceType == "" {
		sourceType = domain.SourceTypeRSS
	}

	return &FeedFetcher{
		name:       cfg.Name,
		sourceURL:  cfg.URL,
		sourceType: sourceType,
		feeds:      feeds,
		parser:     parser,
		logger:     logger,
	}, nil
}

// Name returns the configured source name.
func (f *FeedFetcher) Name() string { return f.name }

// Fetch parses every configured feed and returns the articles published
// within the lookback window, newest-first. A failing feed is logged and
// skipped so one broken endpoint cannot take down the whole source; an error
// is returned only when every feed fails.
func (f *FeedFetcher) Fetch(ctx context.Context, window time.Duration) ([]domain.FetchedArticle, error) {
	cutoff := time.Now().UTC().Add(-window)

	var (
		items  []domain.FetchedArticle
		failed int
	)
	for feedType, feedURL := range f.feeds {
		feed, err := f.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			failed++
			f.logger.Warn("feed fetch failed", "source", f.name, "feed", feedURL, "error", err)
			continue
		}

		for _, entry := range feed.Items {
			article, ok := f.toArticle(entry, feedType, cutoff)
			if !ok {
				continue
			}
			items = append(items, article)
		}
	}

	if failed == len(f.feeds) {
		return nil, fmt.Errorf("source %s: all %d feeds failed", f.name, failed)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	return items, nil
}

func (f *FeedFetcher) toArticle(entry *gofeed.Item, feedType string, cutoff time.Time) (domain.FetchedArticle, bool) {
	if entry.Title == "" || entry.Link == "" {
		return domain.FetchedArticle{}, false
	}

	published, ok := entryTime(entry)
	if !ok || published.Before(cutoff) {
		return domain.FetchedArticle{}, false
	}

	return domain.FetchedArticle{
		SourceName:  f.name,
		SourceURL:   f.sourceURL,
		SourceType:  f.sourceType,
		RSSURL:      f.feeds[feedType],
		FeedType:    feedType,
		Title:       entry.Title,
		URL:         entry.Link,
		Description: entry.Description,
		PublishedAt: published,
	}, true
}

// entryTime resolves the publication time of a feed entry. Feeds that ship
// timestamps without a zone are read as UTC.
func entryTime(entry *gofeed.Item) (time.Time, bool) {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC(), true
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC(), true
	}
	raw := entry.Published
	if raw == "" {
		raw = entry.Updated
	}
	if raw == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
