package fetch

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"dailybrief/internal/domain"
	"dailybrief/internal/ports"
)

// Aggregator fans a fetch pass out over every registered source and merges
// the results. One misbehaving source never blocks the others; failures are
// logged and counted.
type Aggregator struct {
	articles []ports.ArticleSource
	videos   ports.VideoSource
	logger   *slog.Logger
}

// NewAggregator wires the configured sources together.
func NewAggregator(articles []ports.ArticleSource, videos ports.VideoSource, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{articles: articles, videos: videos, logger: logger}
}

// Result is the outcome of one fetch pass. Failures counts the sources that
// returned an error.
type Result struct {
	Articles []domain.FetchedArticle
	Videos   []domain.FetchedVideo
	Failures int
}

// Run executes one fetch pass over every source. Fetch only; nothing is
// persisted.
func (a *Aggregator) Run(ctx context.Context, window time.Duration) Result {
	articles, articleFailures := a.FetchArticles(ctx, window)
	videos, videoFailures := a.FetchVideos(ctx, window)
	return Result{
		Articles: articles,
		Videos:   videos,
		Failures: articleFailures + videoFailures,
	}
}

// FetchArticles pulls every article source and merges the results
// newest-first. The failure count reports sources that returned an error.
func (a *Aggregator) FetchArticles(ctx context.Context, window time.Duration) ([]domain.FetchedArticle, int) {
	var (
		items  []domain.FetchedArticle
		failed int
	)
	for _, source := range a.articles {
		fetched, err := source.Fetch(ctx, window)
		if err != nil {
			failed++
			a.logger.Error("article source failed", "source", source.Name(), "error", err)
			continue
		}
		a.logger.Info("fetched articles", "source", source.Name(), "count", len(fetched))
		items = append(items, fetched...)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	return items, failed
}

// FetchVideos pulls the video source. A nil source yields nothing.
func (a *Aggregator) FetchVideos(ctx context.Context, window time.Duration) ([]domain.FetchedVideo, int) {
	if a.videos == nil {
		return nil, 0
	}
	fetched, err := a.videos.Fetch(ctx, window)
	if err != nil {
		a.logger.Error("video source failed", "error", err)
		return nil, 1
	}
	a.logger.Info("fetched videos", "count", len(fetched))
	return fetched, 0
}
