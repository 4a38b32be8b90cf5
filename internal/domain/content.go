package domain

import "time"

// SourceType classifies a content origin.
type SourceType string

const (
	SourceTypeBlog    SourceType = "blog"
	SourceTypeYouTube SourceType = "youtube"
	SourceTypeNews    SourceType = "news"
	SourceTypeSEC     SourceType = "sec"
	SourceTypeRSS     SourceType = "rss"
)

// Source is a registered content origin (feed or channel). Identity is the
// canonical URL; rss_url, channel id and username are secondary identities,
// each unique when present.
type Source struct {
	ID               int64
	Name             string
	URL              string
	Type             SourceType
	YouTubeChannelID string
	YouTubeUsername  string
	RSSURL           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Article is a stored article or blog post, deduplicated by URL.
type Article struct {
	ID                int64
	SourceID          int64
	Title             string
	URL               string
	Description       string
	FeedType          string
	Markdown          string
	MarkdownFetchedAt *time.Time
	PublishedAt       time.Time
	ScrapedAt         time.Time
	CreatedAt         time.Time
}

// HasMarkdown reports whether the full body has been backfilled.
func (a Article) HasMarkdown() bool { return a.MarkdownFetchedAt != nil }

// TranscriptStatus tracks the transcript lifecycle for a video. A video
// starts pending; a backfill pass moves it to fetched or unavailable, and
// unavailable videos are never retried.
type TranscriptStatus string

const (
	TranscriptPending     TranscriptStatus = "pending"
	TranscriptUnavailable TranscriptStatus = "unavailable"
	TranscriptFetched     TranscriptStatus = "fetched"
)

// Video is a stored channel video, deduplicated by URL and by video id.
type Video struct {
	ID                  int64
	SourceID            int64
	Title               string
	URL                 string
	VideoID             string
	Description         string
	Transcript          string
	TranscriptStatus    TranscriptStatus
	TranscriptFetchedAt *time.Time
	PublishedAt         time.Time
	ScrapedAt           time.Time
	CreatedAt           time.Time
}

// ContentType tags a digest with the kind of content it summarizes.
type ContentType string

const (
	ContentTypeArticle ContentType = "article"
	ContentTypeVideo   ContentType = "video"
)

// Digest is the generated title+summary for exactly one content item. At
// most one digest exists per content URL. CreatedAt carries the original
// publish time so time-windowed queries follow content chronology rather
// than generation time.
type Digest struct {
	ID          int64
	ArticleID   *int64
	VideoID     *int64
	URL         string
	Title       string
	Summary     string
	ContentType ContentType
	CreatedAt   time.Time
}

// DigestOutput is the summarization collaborator's structured reply.
type DigestOutput struct {
	Title   string
	Summary string
}

// UserProfile is a digest recipient with personalization attributes.
type UserProfile struct {
	ID           int64
	Email        string
	Name         string
	Background   string
	Interests    string
	SystemPrompt string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RankedItem is one entry of a ranking result. Ephemeral: produced fresh per
// ranking call, never persisted. Summary and ContentType are carried over
// from the ranked digest so the composer does not need a second lookup.
type RankedItem struct {
	DigestID    int64
	URL         string
	Title       string
	Summary     string
	ContentType ContentType
	Score       float64
	Rank        int
	Reason      string
}
