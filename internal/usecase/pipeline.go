package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dailybrief/internal/domain"
	"dailybrief/internal/email"
	"dailybrief/internal/fetch"
	"dailybrief/internal/ports"
	"dailybrief/internal/storage"
	"dailybrief/internal/youtube"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Aggregator  *fetch.Aggregator
	Sources     ports.SourceRegistry
	Articles    ports.ArticleStore
	Videos      ports.VideoStore
	Digests     ports.DigestStore
	Users       ports.UserStore
	Bodies      ports.BodyFetcher
	Transcripts ports.TranscriptFetcher
	Summarizer  ports.Summarizer
	Ranker      ports.Ranker
	IntroWriter ports.IntroWriter
	Composer    *email.Composer
	Mailer      ports.Mailer
	Logger      *slog.Logger

	Lookback      time.Duration
	BackfillLimit int
	HTMLEmail     bool
}

// Report counts the outcomes of one pipeline run. Failure counts track
// per-item errors that were absorbed without aborting the stage.
type Report struct {
	RunID             string
	ArticlesFetched   int
	VideosFetched     int
	ArticlesSaved     int
	VideosSaved       int
	SourceFailures    int
	BodiesFilled      int
	TranscriptsFilled int
	BackfillFailures  int
	DigestsCreated    int
	DigestFailures    int
	EmailsSent        int
	DeliveryFailures  int
}

// Pipeline implements the daily briefing workflow: ingest, backfill, digest,
// deliver.
type Pipeline struct {
	deps PipelineDeps
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Lookback <= 0 {
		deps.Lookback = 24 * time.Hour
	}
	return &Pipeline{deps: deps}
}

// Run executes all four stages in order. Stages isolate per-item failures;
// only infrastructure errors (storage, fetch of all sources) abort the run.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	logger := p.deps.Logger.With("run_id", report.RunID)

	logger.Info("pipeline run started", "lookback", p.deps.Lookback)

	if err := p.ingest(ctx, &report, logger); err != nil {
		return report, fmt.Errorf("ingest: %w", err)
	}
	if err := p.backfill(ctx, &report, logger); err != nil {
		return report, fmt.Errorf("backfill: %w", err)
	}
	if err := p.generateDigests(ctx, &report, logger); err != nil {
		return report, fmt.Errorf("generate digests: %w", err)
	}
	if err := p.deliver(ctx, &report, logger); err != nil {
		return report, fmt.Errorf("deliver: %w", err)
	}

	logger.Info("pipeline run finished",
		"articles_saved", report.ArticlesSaved,
		"videos_saved", report.VideosSaved,
		"digests_created", report.DigestsCreated,
		"emails_sent", report.EmailsSent)
	return report, nil
}

// ingest fetches every source and stores the new items. Fetch results are
// grouped by their origin so each batch lands under a stable source record.
func (p *Pipeline) ingest(ctx context.Context, report *Report, logger *slog.Logger) error {
	result := p.deps.Aggregator.Run(ctx, p.deps.Lookback)
	report.ArticlesFetched = len(result.Articles)
	report.VideosFetched = len(result.Videos)
	report.SourceFailures = result.Failures

	byOrigin := make(map[string][]domain.FetchedArticle)
	for _, item := range result.Articles {
		byOrigin[item.SourceURL] = append(byOrigin[item.SourceURL], item)
	}
	for _, batch := range byOrigin {
		first := batch[0]
		src, err := p.deps.Sources.GetOrCreate(ctx, domain.Source{
			Name:   first.SourceName,
			URL:    first.SourceURL,
			Type:   first.SourceType,
			RSSURL: first.RSSURL,
		})
		if err != nil {
			return fmt.Errorf("resolve source %s: %w", first.SourceURL, err)
		}
		saved, err := p.deps.Articles.SaveNew(ctx, src.ID, batch)
		if err != nil {
			return fmt.Errorf("save articles for %s: %w", src.URL, err)
		}
		report.ArticlesSaved += saved
	}

	byChannel := make(map[string][]domain.FetchedVideo)
	for _, item := range result.Videos {
		byChannel[item.ChannelID] = append(byChannel[item.ChannelID], item)
	}
	for channelID, batch := range byChannel {
		first := batch[0]
		src, err := p.deps.Sources.GetOrCreate(ctx, domain.Source{
			Name:             first.ChannelName,
			URL:              "https://www.youtube.com/channel/" + channelID,
			Type:             domain.SourceTypeYouTube,
			YouTubeChannelID: channelID,
			YouTubeUsername:  first.ChannelHandle,
		})
		if err != nil {
			return fmt.Errorf("resolve channel %s: %w", channelID, err)
		}
		saved, err := p.deps.Videos.SaveNew(ctx, src.ID, batch)
		if err != nil {
			return fmt.Errorf("save videos for %s: %w", channelID, err)
		}
		report.VideosSaved += saved
	}

	logger.Info("ingest done",
		"articles_saved", report.ArticlesSaved,
		"videos_saved", report.VideosSaved,
		"source_failures", report.SourceFailures)
	return nil
}

// backfill fills article bodies and video transcripts for items that still
// lack them. One failing item is counted and skipped; a video whose
// transcript does not exist is marked unavailable and never retried.
func (p *Pipeline) backfill(ctx context.Context, report *Report, logger *slog.Logger) error {
	articles, err := p.deps.Articles.WithoutMarkdown(ctx, p.deps.BackfillLimit)
	if err != nil {
		return fmt.Errorf("load articles without body: %w", err)
	}
	for _, article := range articles {
		markdown, err := p.deps.Bodies.Markdown(ctx, article.URL)
		if err != nil {
			report.BackfillFailures++
			logger.Warn("body fetch failed", "url", article.URL, "error", err)
			continue
		}
		if err := p.deps.Articles.SetMarkdown(ctx, article.ID, markdown); err != nil {
			return fmt.Errorf("store body for %s: %w", article.URL, err)
		}
		report.BodiesFilled++
	}

	videos, err := p.deps.Videos.WithoutTranscript(ctx, p.deps.BackfillLimit)
	if err != nil {
		return fmt.Errorf("load videos without transcript: %w", err)
	}
	for _, video := range videos {
		transcript, err := p.deps.Transcripts.Transcript(ctx, video.VideoID)
		if errors.Is(err, youtube.ErrTranscriptUnavailable) {
			if err := p.deps.Videos.SetTranscript(ctx, video.ID, domain.TranscriptUnavailable, ""); err != nil {
				return fmt.Errorf("mark transcript unavailable for %s: %w", video.VideoID, err)
			}
			continue
		}
		if err != nil {
			report.BackfillFailures++
			logger.Warn("transcript fetch failed", "video_id", video.VideoID, "error", err)
			continue
		}
		if err := p.deps.Videos.SetTranscript(ctx, video.ID, domain.TranscriptFetched, transcript); err != nil {
			return fmt.Errorf("store transcript for %s: %w", video.VideoID, err)
		}
		report.TranscriptsFilled++
	}

	logger.Info("backfill done",
		"bodies_filled", report.BodiesFilled,
		"transcripts_filled", report.TranscriptsFilled,
		"failures", report.BackfillFailures)
	return nil
}

// generateDigests summarizes recent content that has no digest yet, articles
// first, then videos. Digest timestamps carry the original publish time so
// the delivery window follows content chronology.
func (p *Pipeline) generateDigests(ctx context.Context, report *Report, logger *slog.Logger) error {
	articles, err := p.deps.Articles.Recent(ctx, p.deps.Lookback)
	if err != nil {
		return fmt.Errorf("load recent articles: %w", err)
	}
	for _, article := range articles {
		created, err := p.digestArticle(ctx, article)
		if err != nil {
			report.DigestFailures++
			logger.Warn("article digest failed", "url", article.URL, "error", err)
			continue
		}
		if created {
			report.DigestsCreated++
		}
	}

	videos, err := p.deps.Videos.Recent(ctx, p.deps.Lookback)
	if err != nil {
		return fmt.Errorf("load recent videos: %w", err)
	}
	for _, video := range videos {
		created, err := p.digestVideo(ctx, video)
		if err != nil {
			report.DigestFailures++
			logger.Warn("video digest failed", "url", video.URL, "error", err)
			continue
		}
		if created {
			report.DigestsCreated++
		}
	}

	logger.Info("digest generation done",
		"created", report.DigestsCreated,
		"failures", report.DigestFailures)
	return nil
}

func (p *Pipeline) digestArticle(ctx context.Context, article domain.Article) (bool, error) {
	exists, err := p.deps.Digests.ExistsByURL(ctx, article.URL)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	output, err := p.deps.Summarizer.SummarizeArticle(ctx, article.Title, article.Description, article.Markdown)
	if err != nil {
		return false, err
	}

	id := article.ID
	_, err = p.deps.Digests.Create(ctx, domain.Digest{
		ArticleID:   &id,
		URL:         article.URL,
		Title:       output.Title,
		Summary:     output.Summary,
		ContentType: domain.ContentTypeArticle,
		CreatedAt:   article.PublishedAt,
	})
	if errors.Is(err, storage.ErrDigestExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Pipeline) digestVideo(ctx context.Context, video domain.Video) (bool, error) {
	exists, err := p.deps.Digests.ExistsByURL(ctx, video.URL)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	output, err := p.deps.Summarizer.SummarizeVideo(ctx, video.Title, video.Description, video.Transcript)
	if err != nil {
		return false, err
	}

	id := video.ID
	_, err = p.deps.Digests.Create(ctx, domain.Digest{
		VideoID:     &id,
		URL:         video.URL,
		Title:       output.Title,
		Summary:     output.Summary,
		ContentType: domain.ContentTypeVideo,
		CreatedAt:   video.PublishedAt,
	})
	if errors.Is(err, storage.ErrDigestExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// deliver ranks the recent digests per user and sends each briefing. One
// failing recipient is counted and skipped so the rest still get their
// email. No recent digests means no email for anyone.
func (p *Pipeline) deliver(ctx context.Context, report *Report, logger *slog.Logger) error {
	digests, err := p.deps.Digests.Recent(ctx, p.deps.Lookback)
	if err != nil {
		return fmt.Errorf("load recent digests: %w", err)
	}
	if len(digests) == 0 {
		logger.Info("no recent digests, skipping delivery")
		return nil
	}

	users, err := p.deps.Users.All(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	for _, user := range users {
		if err := p.deliverTo(ctx, user, digests); err != nil {
			report.DeliveryFailures++
			logger.Error("delivery failed", "email", user.Email, "error", err)
			continue
		}
		report.EmailsSent++
	}

	logger.Info("delivery done",
		"sent", report.EmailsSent,
		"failures", report.DeliveryFailures)
	return nil
}

func (p *Pipeline) deliverTo(ctx context.Context, user domain.UserProfile, digests []domain.Digest) error {
	ranked, err := p.deps.Ranker.Rank(ctx, digests, user)
	if err != nil {
		return fmt.Errorf("rank: %w", err)
	}

	content := p.deps.Composer.Compose(user, "", ranked, time.Now().UTC())

	intro, err := p.deps.IntroWriter.WriteIntroduction(ctx, topItems(ranked))
	if err != nil {
		intro = email.FallbackIntroduction
	}
	content.Introduction = intro

	textBody := p.deps.Composer.RenderText(content)

	var htmlBody string
	if p.deps.HTMLEmail {
		htmlBody, err = p.deps.Composer.RenderHTML(content)
		if err != nil {
			return fmt.Errorf("render html: %w", err)
		}
	}

	if err := p.deps.Mailer.Send(ctx, user.Email, content.Subject, textBody, htmlBody); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

func topItems(ranked []domain.RankedItem) []domain.RankedItem {
	if len(ranked) > 10 {
		return ranked[:10]
	}
	return ranked
}
