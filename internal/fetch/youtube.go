package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"dailybrief/internal/config"
	"dailybrief/internal/domain"
	"dailybrief/internal/ports"
)

const defaultVideoFeedURL = "https://www.youtube.com/feeds/videos.xml?channel_id="

// ChannelResolver turns a channel handle into the stable UC channel id.
type ChannelResolver interface {
	Resolve(ctx context.Context, handle string) (string, error)
}

// ChannelFetcher pulls recent uploads from the configured channels via their
// public video feeds. Handles are resolved to channel ids on first use.
type ChannelFetcher struct {
	channels []config.ChannelConfig
	resolver ChannelResolver
	parser   *gofeed.Parser
	logger   *slog.Logger
	feedBase string

	resolved map[string]string
}

var _ ports.VideoSource = (*ChannelFetcher)(nil)

// NewChannelFetcher builds a fetcher over the configured channel list.
func NewChannelFetcher(channels []config.ChannelConfig, resolver ChannelResolver, client *http.Client, logger *slog.Logger) *ChannelFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	parser := gofeed.NewParser()
	if client != nil {
		parser.Client = client
	}
	return &ChannelFetcher{
		channels: channels,
		resolver: resolver,
		parser:   parser,
		logger:   logger,
		feedBase: defaultVideoFeedURL,
		resolved: make(map[string]string),
	}
}

// Fetch returns the videos published within the lookback window across all
// channels, newest-first. Shorts are excluded. A failing channel is logged
// and skipped; an error is returned only when every channel fails.
func (f *ChannelFetcher) Fetch(ctx context.Context, window time.Duration) ([]domain.FetchedVideo, error) {
	if len(f.channels) == 0 {
		return nil, nil
	}

	cutoff := time.Now().UTC().Add(-window)

	var (
		items  []domain.FetchedVideo
		failed int
	)
	for _, channel := range f.channels {
		videos, err := f.fetchChannel(ctx, channel, cutoff)
		if err != nil {
			failed++
			f.logger.Warn("channel fetch failed", "channel", channel.Identifier, "error", err)
			continue
		}
		items = append(items, videos...)
	}

	if failed == len(f.channels) {
		return nil, fmt.Errorf("all %d channels failed", failed)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	return items, nil
}

func (f *ChannelFetcher) fetchChannel(ctx context.Context, channel config.ChannelConfig, cutoff time.Time) ([]domain.FetchedVideo, error) {
	channelID, handle, err := f.channelID(ctx, channel.Identifier)
	if err != nil {
		return nil, err
	}

	feed, err := f.parser.ParseURLWithContext(f.feedBase+channelID, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse channel feed: %w", err)
	}

	name := channel.Name
	if name == "" {
		name = feed.Title
	}

	var videos []domain.FetchedVideo
	for _, entry := range feed.Items {
		if entry.Title == "" || entry.Link == "" {
			continue
		}
		if strings.Contains(entry.Link, "/shorts/") {
			continue
		}

		published, ok := entryTime(entry)
		if !ok || published.Before(cutoff) {
			continue
		}

		videoID := extractVideoID(entry)
		if videoID == "" {
			continue
		}

		videos = append(videos, domain.FetchedVideo{
			ChannelName:   name,
			ChannelID:     channelID,
			ChannelHandle: handle,
			Title:         entry.Title,
			URL:           entry.Link,
			VideoID:       videoID,
			Description:   entryMediaDescription(entry),
			PublishedAt:   published,
		})
	}
	return videos, nil
}

// channelID resolves a configured identifier to (channelID, handle). Channel
// ids pass through untouched; handles go through the resolver once and are
// cached for the life of the fetcher.
func (f *ChannelFetcher) channelID(ctx context.Context, identifier string) (string, string, error) {
	if isChannelID(identifier) {
		return identifier, "", nil
	}

	handle := strings.TrimPrefix(identifier, "@")
	if id, ok := f.resolved[handle]; ok {
		return id, handle, nil
	}

	if f.resolver == nil {
		return "", "", fmt.Errorf("no resolver for handle %s", identifier)
	}
	id, err := f.resolver.Resolve(ctx, handle)
	if err != nil {
		return "", "", fmt.Errorf("resolve handle %s: %w", identifier, err)
	}
	f.resolved[handle] = id
	return id, handle, nil
}

func isChannelID(identifier string) bool {
	return len(identifier) == 24 && strings.HasPrefix(identifier, "UC")
}

// extractVideoID reads the video id from the watch link, falling back to the
// feed entry guid of the form yt:video:<id>.
func extractVideoID(entry *gofeed.Item) string {
	if u, err := url.Parse(entry.Link); err == nil {
		if v := u.Query().Get("v"); v != "" {
			return v
		}
	}
	if id, ok := strings.CutPrefix(entry.GUID, "yt:video:"); ok {
		return id
	}
	return ""
}

// entryMediaDescription prefers the media:group description that channel
// feeds carry over the usually empty entry description.
func entryMediaDescription(entry *gofeed.Item) string {
	if media, ok := entry.Extensions["media"]; ok {
		for _, group := range media["group"] {
			for _, desc := range group.Children["description"] {
				if desc.Value != "" {
					return desc.Value
				}
			}
		}
	}
	return entry.Description
}
