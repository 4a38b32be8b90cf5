package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"dailybrief/internal/domain"
	"dailybrief/internal/ports"
)

// VideoRepository persists channel videos, deduplicated by URL and video id.
type VideoRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.VideoStore = (*VideoRepository)(nil)

// NewVideoRepository wires a sql.DB implementation.
func NewVideoRepository(db *sql.DB, logger *slog.Logger) *VideoRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &VideoRepository{db: db, logger: logger}
}

var videoColumns = []string{
	"id", "source_id", "title", "url", "video_id", "description",
	"transcript", "transcript_status", "transcript_fetched_at",
	"published_at", "scraped_at", "created_at",
}

// SaveNew inserts the videos that are not yet stored and reports how many
// were saved. Existing URLs and video ids are skipped; a racing duplicate
// insert is treated as already present.
func (r *VideoRepository) SaveNew(ctx context.Context, sourceID int64, items []domain.FetchedVideo) (int, error) {
	saved := 0
	for _, item := range items {
		exists, err := r.exists(ctx, item.URL, item.VideoID)
		if err != nil {
			return saved, err
		}
		if exists {
			continue
		}

		if err := r.insert(ctx, sourceID, item); err != nil {
			if isUniqueViolation(err) {
				continue
			}
			r.logger.Warn("skipping video", "url", item.URL, "error", err)
			continue
		}
		saved++
	}
	return saved, nil
}

func (r *VideoRepository) insert(ctx context.Context, sourceID int64, item domain.FetchedVideo) error {
	now := time.Now().UTC()

	query, args, err := builder.
		Insert("videos").
		Columns("source_id", "title", "url", "video_id", "description",
			"transcript_status", "published_at", "scraped_at", "created_at").
		Values(sourceID, item.Title, item.URL, item.VideoID, item.Description,
			string(domain.TranscriptPending), item.PublishedAt.UTC(), now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert video %s: %w", item.URL, err)
	}
	return nil
}

func (r *VideoRepository) exists(ctx context.Context, url, videoID string) (bool, error) {
	query, args, err := builder.
		Select("1").
		From("videos").
		Where(sq.Or{sq.Eq{"url": url}, sq.Eq{"video_id": videoID}}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query video exists: %w", err)
	}
	return true, nil
}

// ByURL returns the video with the given URL.
func (r *VideoRepository) ByURL(ctx context.Context, url string) (domain.Video, error) {
	return r.one(ctx, sq.Eq{"url": url})
}

// ByVideoID returns the video with the given platform video id.
func (r *VideoRepository) ByVideoID(ctx context.Context, videoID string) (domain.Video, error) {
	return r.one(ctx, sq.Eq{"video_id": videoID})
}

func (r *VideoRepository) one(ctx context.Context, pred any) (domain.Video, error) {
	query, args, err := builder.
		Select(videoColumns...).
		From("videos").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return domain.Video{}, fmt.Errorf("build select: %w", err)
	}

	video, err := scanVideo(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Video{}, ErrNotFound
	}
	if err != nil {
		return domain.Video{}, fmt.Errorf("query video: %w", err)
	}
	return video, nil
}

// All returns stored videos newest-first; limit <= 0 means no limit.
func (r *VideoRepository) All(ctx context.Context, limit int) ([]domain.Video, error) {
	return r.list(ctx, nil, limit)
}

// Recent returns videos published within the lookback window, newest-first.
func (r *VideoRepository) Recent(ctx context.Context, window time.Duration) ([]domain.Video, error) {
	cutoff := time.Now().UTC().Add(-window)
	return r.list(ctx, sq.GtOrEq{"published_at": cutoff}, 0)
}

// BySource returns the videos belonging to one source, newest-first.
func (r *VideoRepository) BySource(ctx context.Context, sourceID int64) ([]domain.Video, error) {
	return r.list(ctx, sq.Eq{"source_id": sourceID}, 0)
}

// WithoutTranscript returns videos whose transcript fetch has not been
// attempted yet. Videos marked unavailable are excluded so they are never
// retried.
func (r *VideoRepository) WithoutTranscript(ctx context.Context, limit int) ([]domain.Video, error) {
	return r.list(ctx, sq.Eq{"transcript_status": string(domain.TranscriptPending)}, limit)
}

func (r *VideoRepository) list(ctx context.Context, pred any, limit int) ([]domain.Video, error) {
	sel := builder.
		Select(videoColumns...).
		From("videos").
		OrderBy("published_at DESC")
	if pred != nil {
		sel = sel.Where(pred)
	}
	if limit > 0 {
		sel = sel.Limit(uint64(limit))
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []domain.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}
	return videos, nil
}

// SetTranscript records the outcome of a transcript fetch attempt and stamps
// the attempt time. Status moves to fetched (with text) or unavailable
// (empty text); a repeat call overwrites the previous outcome.
func (r *VideoRepository) SetTranscript(ctx context.Context, id int64, status domain.TranscriptStatus, text string) error {
	query, args, err := builder.
		Update("videos").
		Set("transcript", nullString(text)).
		Set("transcript_status", string(status)).
		Set("transcript_fetched_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set transcript for video %d: %w", id, err)
	}
	return nil
}

func scanVideo(row rowScanner) (domain.Video, error) {
	var (
		v          domain.Video
		desc       sql.NullString
		transcript sql.NullString
		status     string
		fetchedAt  sql.NullTime
	)
	err := row.Scan(&v.ID, &v.SourceID, &v.Title, &v.URL, &v.VideoID, &desc,
		&transcript, &status, &fetchedAt, &v.PublishedAt, &v.ScrapedAt, &v.CreatedAt)
	if err != nil {
		return domain.Video{}, err
	}
	v.Description = desc.String
	v.Transcript = transcript.String
	v.TranscriptStatus = domain.TranscriptStatus(status)
	if fetchedAt.Valid {
		t := fetchedAt.Time
		v.TranscriptFetchedAt = &t
	}
	return v, nil
}
