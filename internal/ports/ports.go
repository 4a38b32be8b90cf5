package ports

import (
	"context"
	"time"

	"dailybrief/internal/domain"
)

// ArticleSource pulls fresh articles from one logical origin, possibly
// multiplexing several underlying feeds.
type ArticleSource interface {
	Name() string
	Fetch(ctx context.Context, window time.Duration) ([]domain.FetchedArticle, error)
}

// VideoSource pulls fresh videos from the configured channels.
type VideoSource interface {
	Fetch(ctx context.Context, window time.Duration) ([]domain.FetchedVideo, error)
}

// SourceRegistry resolves fetch results to stable source records.
type SourceRegistry interface {
	GetOrCreate(ctx context.Context, candidate domain.Source) (domain.Source, error)
}

// ArticleStore persists articles with uniqueness by URL.
type ArticleStore interface {
	SaveNew(ctx context.Context, sourceID int64, items []domain.FetchedArticle) (int, error)
	ByURL(ctx context.Context, url string) (domain.Article, error)
	Recent(ctx context.Context, window time.Duration) ([]domain.Article, error)
	WithoutMarkdown(ctx context.Context, limit int) ([]domain.Article, error)
	SetMarkdown(ctx context.Context, id int64, markdown string) error
}

// VideoStore persists videos with uniqueness by URL and by video id.
type VideoStore interface {
	SaveNew(ctx context.Context, sourceID int64, items []domain.FetchedVideo) (int, error)
	ByURL(ctx context.Context, url string) (domain.Video, error)
	Recent(ctx context.Context, window time.Duration) ([]domain.Video, error)
	WithoutTranscript(ctx context.Context, limit int) ([]domain.Video, error)
	SetTranscript(ctx context.Context, id int64, status domain.TranscriptStatus, text string) error
}

// DigestStore persists generated digests, at most one per content URL.
type DigestStore interface {
	Create(ctx context.Context, digest domain.Digest) (domain.Digest, error)
	ExistsByURL(ctx context.Context, url string) (bool, error)
	Recent(ctx context.Context, window time.Duration) ([]domain.Digest, error)
}

// UserStore manages recipient profiles keyed by email.
type UserStore interface {
	Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
	ByEmail(ctx context.Context, email string) (domain.UserProfile, error)
	All(ctx context.Context) ([]domain.UserProfile, error)
}

// Summarizer is the external collaborator that turns content into a digest.
type Summarizer interface {
	SummarizeArticle(ctx context.Context, title, description, markdown string) (domain.DigestOutput, error)
	SummarizeVideo(ctx context.Context, title, description, transcript string) (domain.DigestOutput, error)
}

// Ranker is the external collaborator that orders digests by relevance to a
// user profile. Implementations must return one entry per input digest with
// rank values forming a permutation of 1..N.
type Ranker interface {
	Rank(ctx context.Context, digests []domain.Digest, profile domain.UserProfile) ([]domain.RankedItem, error)
}

// IntroWriter produces the email introduction paragraph across the top
// ranked items.
type IntroWriter interface {
	WriteIntroduction(ctx context.Context, items []domain.RankedItem) (string, error)
}

// BodyFetcher retrieves the full article body as markdown.
type BodyFetcher interface {
	Markdown(ctx context.Context, url string) (string, error)
}

// TranscriptFetcher retrieves a video transcript. A missing transcript is
// reported with youtube.ErrTranscriptUnavailable rather than a generic error
// so callers can record the unavailable state.
type TranscriptFetcher interface {
	Transcript(ctx context.Context, videoID string) (string, error)
}

// Mailer hands a composed message to the delivery transport.
type Mailer interface {
	Send(ctx context.Context, to, subject, textBody, htmlBody string) error
}

// Scheduler controls when the daily pipeline executes.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
