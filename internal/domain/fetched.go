package domain

import "time"

// FetchedArticle is an article observed by a fetcher, not yet persisted. It
// carries the identity attributes of its origin so the ingestion step can
// resolve or create the owning source.
type FetchedArticle struct {
	SourceName  string
	SourceURL   string
	SourceType  SourceType
	RSSURL      string
	FeedType    string
	Title       string
	URL         string
	Description string
	PublishedAt time.Time
}

// FetchedVideo is a channel video observed by a fetcher, not yet persisted.
// Transcripts are never present at this stage; they are backfilled by a
// separate pass.
type FetchedVideo struct {
	ChannelName   string
	ChannelID     string
	ChannelHandle string
	Title         string
	URL           string
	VideoID       string
	Description   string
	PublishedAt   time.Time
}
