package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dailybrief/internal/domain"
	"dailybrief/internal/email"
	"dailybrief/internal/fetch"
	"dailybrief/internal/ports"
	"dailybrief/internal/youtube"
)

type memArticleSource struct {
	name  string
	items []domain.FetchedArticle
	err   error
}

func (s *memArticleSource) Name() string { return s.name }

func (s *memArticleSource) Fetch(ctx context.Context, window time.Duration) ([]domain.FetchedArticle, error) {
	return s.items, s.err
}

type memVideoSource struct {
	items []domain.FetchedVideo
}

func (s *memVideoSource) Fetch(ctx context.Context, window time.Duration) ([]domain.FetchedVideo, error) {
	return s.items, nil
}

type memRegistry struct {
	nextID  int64
	sources map[string]domain.Source
}

func newMemRegistry() *memRegistry {
	return &memRegistry{sources: make(map[string]domain.Source)}
}

func (r *memRegistry) GetOrCreate(ctx context.Context, candidate domain.Source) (domain.Source, error) {
	if src, ok := r.sources[candidate.URL]; ok {
		return src, nil
	}
	r.nextID++
	candidate.ID = r.nextID
	r.sources[candidate.URL] = candidate
	return candidate, nil
}

type memArticleStore struct {
	nextID   int64
	articles []domain.Article
}

func (s *memArticleStore) SaveNew(ctx context.Context, sourceID int64, items []domain.FetchedArticle) (int, error) {
	saved := 0
	for _, item := range items {
		if _, err := s.ByURL(ctx, item.URL); err == nil {
			continue
		}
		s.nextID++
		s.articles = append(s.articles, domain.Article{
			ID:          s.nextID,
			SourceID:    sourceID,
			Title:       item.Title,
			URL:         item.URL,
			Description: item.Description,
			PublishedAt: item.PublishedAt,
		})
		saved++
	}
	return saved, nil
}

func (s *memArticleStore) ByURL(ctx context.Context, url string) (domain.Article, error) {
	for _, a := range s.articles {
		if a.URL == url {
			return a, nil
		}
	}
	return domain.Article{}, errors.New("not found")
}

func (s *memArticleStore) Recent(ctx context.Context, window time.Duration) ([]domain.Article, error) {
	cutoff := time.Now().UTC().Add(-window)
	var out []domain.Article
	for _, a := range s.articles {
		if !a.PublishedAt.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memArticleStore) WithoutMarkdown(ctx context.Context, limit int) ([]domain.Article, error) {
	var out []domain.Article
	for _, a := range s.articles {
		if !a.HasMarkdown() {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memArticleStore) SetMarkdown(ctx context.Context, id int64, markdown string) error {
	for i := range s.articles {
		if s.articles[i].ID == id {
			now := time.Now().UTC()
			s.articles[i].Markdown = markdown
			s.articles[i].MarkdownFetchedAt = &now
			return nil
		}
	}
	return errors.New("not found")
}

type memVideoStore struct {
	nextID int64
	videos []domain.Video
}

func (s *memVideoStore) SaveNew(ctx context.Context, sourceID int64, items []domain.FetchedVideo) (int, error) {
	saved := 0
	for _, item := range items {
		if _, err := s.ByURL(ctx, item.URL); err == nil {
			continue
		}
		s.nextID++
		s.videos = append(s.videos, domain.Video{
			ID:               s.nextID,
			SourceID:         sourceID,
			Title:            item.Title,
			URL:              item.URL,
			VideoID:          item.VideoID,
			Description:      item.Description,
			TranscriptStatus: domain.TranscriptPending,
			PublishedAt:      item.PublishedAt,
		})
		saved++
	}
	return saved, nil
}

func (s *memVideoStore) ByURL(ctx context.Context, url string) (domain.Video, error) {
	for _, v := range s.videos {
		if v.URL == url {
			return v, nil
		}
	}
	return domain.Video{}, errors.New("not found")
}

func (s *memVideoStore) Recent(ctx context.Context, window time.Duration) ([]domain.Video, error) {
	cutoff := time.Now().UTC().Add(-window)
	var out []domain.Video
	for _, v := range s.videos {
		if !v.PublishedAt.Before(cutoff) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memVideoStore) WithoutTranscript(ctx context.Context, limit int) ([]domain.Video, error) {
	var out []domain.Video
	for _, v := range s.videos {
		if v.TranscriptStatus == domain.TranscriptPending {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memVideoStore) SetTranscript(ctx context.Context, id int64, status domain.TranscriptStatus, text string) error {
	for i := range s.videos {
		if s.videos[i].ID == id {
			s.videos[i].TranscriptStatus = status
			s.videos[i].Transcript = text
			return nil
		}
	}
	return errors.New("not found")
}

type memDigestStore struct {
	nextID  int64
	digests []domain.Digest
}

func (s *memDigestStore) Create(ctx context.Context, digest domain.Digest) (domain.Digest, error) {
	s.nextID++
	digest.ID = s.nextID
	s.digests = append(s.digests, digest)
	return digest, nil
}

func (s *memDigestStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	for _, d := range s.digests {
		if d.URL == url {
			return true, nil
		}
	}
	return false, nil
}

func (s *memDigestStore) Recent(ctx context.Context, window time.Duration) ([]domain.Digest, error) {
	cutoff := time.Now().UTC().Add(-window)
	var out []domain.Digest
	for _, d := range s.digests {
		if !d.CreatedAt.Before(cutoff) {
			out = append(out, d)
		}
	}
	return out, nil
}

type memUserStore struct {
	users []domain.UserProfile
}

func (s *memUserStore) Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	s.users = append(s.users, profile)
	return profile, nil
}

func (s *memUserStore) ByEmail(ctx context.Context, email string) (domain.UserProfile, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.UserProfile{}, errors.New("not found")
}

func (s *memUserStore) All(ctx context.Context) ([]domain.UserProfile, error) {
	return s.users, nil
}

type memBodyFetcher struct {
	failFor map[string]bool
}

func (f *memBodyFetcher) Markdown(ctx context.Context, url string) (string, error) {
	if f.failFor[url] {
		return "", errors.New("fetch failed")
	}
	return "# Body of " + url, nil
}

type memTranscriptFetcher struct {
	unavailable map[string]bool
}

func (f *memTranscriptFetcher) Transcript(ctx context.Context, videoID string) (string, error) {
	if f.unavailable[videoID] {
		return "", fmt.Errorf("video %s: %w", videoID, youtube.ErrTranscriptUnavailable)
	}
	return "transcript of " + videoID, nil
}

type memSummarizer struct{}

func (memSummarizer) SummarizeArticle(ctx context.Context, title, description, markdown string) (domain.DigestOutput, error) {
	return domain.DigestOutput{Title: "Digest: " + title, Summary: "summary"}, nil
}

func (memSummarizer) SummarizeVideo(ctx context.Context, title, description, transcript string) (domain.DigestOutput, error) {
	return domain.DigestOutput{Title: "Digest: " + title, Summary: "summary"}, nil
}

type memRanker struct{}

func (memRanker) Rank(ctx context.Context, digests []domain.Digest, profile domain.UserProfile) ([]domain.RankedItem, error) {
	items := make([]domain.RankedItem, 0, len(digests))
	for i, d := range digests {
		items = append(items, domain.RankedItem{
			DigestID:    d.ID,
			URL:         d.URL,
			Title:       d.Title,
			Summary:     d.Summary,
			ContentType: d.ContentType,
			Rank:        i + 1,
			Score:       float64(100 - i),
		})
	}
	return items, nil
}

type memIntro struct{}

func (memIntro) WriteIntroduction(ctx context.Context, items []domain.RankedItem) (string, error) {
	return "Here is your briefing.", nil
}

type memMailer struct {
	sent    []string
	failFor map[string]bool
}

func (m *memMailer) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	if m.failFor[to] {
		return errors.New("smtp rejected")
	}
	m.sent = append(m.sent, to)
	return nil
}

type pipelineFixture struct {
	articles *memArticleStore
	videos   *memVideoStore
	digests  *memDigestStore
	users    *memUserStore
	mailer   *memMailer
	pipeline *Pipeline
}

func newFixture(t *testing.T, articleItems []domain.FetchedArticle, videoItems []domain.FetchedVideo,
	bodies *memBodyFetcher, transcripts *memTranscriptFetcher, mailer *memMailer, users []domain.UserProfile) *pipelineFixture {
	t.Helper()

	if bodies == nil {
		bodies = &memBodyFetcher{}
	}
	if transcripts == nil {
		transcripts = &memTranscriptFetcher{}
	}
	if mailer == nil {
		mailer = &memMailer{}
	}

	fix := &pipelineFixture{
		articles: &memArticleStore{},
		videos:   &memVideoStore{},
		digests:  &memDigestStore{},
		users:    &memUserStore{users: users},
		mailer:   mailer,
	}

	aggregator := fetch.NewAggregator(
		[]ports.ArticleSource{&memArticleSource{name: "test", items: articleItems}},
		&memVideoSource{items: videoItems},
		nil,
	)

	fix.pipeline = NewPipeline(PipelineDeps{
		Aggregator:  aggregator,
		Sources:     newMemRegistry(),
		Articles:    fix.articles,
		Videos:      fix.videos,
		Digests:     fix.digests,
		Users:       fix.users,
		Bodies:      bodies,
		Transcripts: transcripts,
		Summarizer:  memSummarizer{},
		Ranker:      memRanker{},
		IntroWriter: memIntro{},
		Composer:    email.NewComposer(),
		Mailer:      mailer,

		Lookback:      24 * time.Hour,
		BackfillLimit: 50,
		HTMLEmail:     true,
	})
	return fix
}

func testArticles(n int) []domain.FetchedArticle {
	items := make([]domain.FetchedArticle, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, domain.FetchedArticle{
			SourceName:  "test",
			SourceURL:   "https://example.com",
			SourceType:  domain.SourceTypeRSS,
			Title:       fmt.Sprintf("Article %d", i),
			URL:         fmt.Sprintf("https://example.com/%d", i),
			PublishedAt: time.Now().UTC().Add(-time.Duration(i) * time.Hour),
		})
	}
	return items
}

func testVideos(ids ...string) []domain.FetchedVideo {
	items := make([]domain.FetchedVideo, 0, len(ids))
	for _, id := range ids {
		items = append(items, domain.FetchedVideo{
			ChannelName: "chan",
			ChannelID:   "UCabcdefghijklmnopqrstuv",
			Title:       "Video " + id,
			URL:         "https://www.youtube.com/watch?v=" + id,
			VideoID:     id,
			PublishedAt: time.Now().UTC().Add(-time.Hour),
		})
	}
	return items
}

func TestPipelineRunEndToEnd(t *testing.T) {
	fix := newFixture(t, testArticles(2), testVideos("vid00000001"), nil, nil, nil,
		[]domain.UserProfile{{Email: "ada@example.com", Name: "Ada"}})

	report, err := fix.pipeline.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)

	require.Equal(t, 2, report.ArticlesSaved)
	require.Equal(t, 1, report.VideosSaved)
	require.Equal(t, 2, report.BodiesFilled)
	require.Equal(t, 1, report.TranscriptsFilled)
	require.Equal(t, 3, report.DigestsCreated)
	require.Equal(t, 1, report.EmailsSent)
	require.Equal(t, []string{"ada@example.com"}, fix.mailer.sent)
}

func TestPipelineRunIsIdempotent(t *testing.T) {
	fix := newFixture(t, testArticles(2), nil, nil, nil, nil, nil)

	report, err := fix.pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, report.DigestsCreated)

	// A second run over the same feed content creates nothing new.
	report, err = fix.pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.ArticlesSaved)
	require.Zero(t, report.DigestsCreated)
	require.Len(t, fix.digests.digests, 2)
}

func TestPipelineDigestCarriesPublishTime(t *testing.T) {
	articles := testArticles(1)
	fix := newFixture(t, articles, nil, nil, nil, nil, nil)

	_, err := fix.pipeline.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, fix.digests.digests, 1)
	require.WithinDuration(t, articles[0].PublishedAt, fix.digests.digests[0].CreatedAt, time.Second)
	require.NotNil(t, fix.digests.digests[0].ArticleID)
	require.True(t, strings.HasPrefix(fix.digests.digests[0].Title, "Digest:"))
}

func TestPipelineMarksUnavailableTranscripts(t *testing.T) {
	transcripts := &memTranscriptFetcher{unavailable: map[string]bool{"vid00000002": true}}
	fix := newFixture(t, nil, testVideos("vid00000001", "vid00000002"), nil, transcripts, nil, nil)

	report, err := fix.pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.TranscriptsFilled)
	require.Zero(t, report.BackfillFailures, "unavailable is an outcome, not a failure")

	v, err := fix.videos.ByURL(context.Background(), "https://www.youtube.com/watch?v=vid00000002")
	require.NoError(t, err)
	require.Equal(t, domain.TranscriptUnavailable, v.TranscriptStatus)

	// The unavailable video still gets a digest from its metadata.
	require.Len(t, fix.digests.digests, 2)
}

func TestPipelineCountsBackfillFailures(t *testing.T) {
	bodies := &memBodyFetcher{failFor: map[string]bool{"https://example.com/1": true}}
	fix := newFixture(t, testArticles(2), nil, bodies, nil, nil, nil)

	report, err := fix.pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.BodiesFilled)
	require.Equal(t, 1, report.BackfillFailures)
	// The article without a body is still digested from its description.
	require.Equal(t, 2, report.DigestsCreated)
}

func TestPipelineIsolatesFailingRecipient(t *testing.T) {
	mailer := &memMailer{failFor: map[string]bool{"bad@example.com": true}}
	fix := newFixture(t, testArticles(1), nil, nil, nil, mailer, []domain.UserProfile{
		{Email: "bad@example.com"},
		{Email: "good@example.com"},
	})

	report, err := fix.pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.EmailsSent)
	require.Equal(t, 1, report.DeliveryFailures)
	require.Equal(t, []string{"good@example.com"}, mailer.sent)
}

func TestPipelineSkipsDeliveryWithoutDigests(t *testing.T) {
	mailer := &memMailer{}
	fix := newFixture(t, nil, nil, nil, nil, mailer, []domain.UserProfile{{Email: "ada@example.com"}})

	report, err := fix.pipeline.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.EmailsSent)
	require.Empty(t, mailer.sent)
}
