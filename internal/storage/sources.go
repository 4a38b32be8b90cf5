package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"dailybrief/internal/domain"
	"dailybrief/internal/ports"
)

// SourceRepository persists and resolves content sources.
type SourceRepository struct {
	db *sql.DB
}

var _ ports.SourceRegistry = (*SourceRepository)(nil)

// NewSourceRepository wires a sql.DB implementation.
func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

var sourceColumns = []string{
	"id", "name", "url", "source_type",
	"youtube_channel_id", "youtube_username", "rss_url",
	"created_at", "updated_at",
}

// GetOrCreate resolves an incoming fetch result to a stable source record,
// creating one when nothing matches. Resolution order: canonical URL, then
// rss_url for feed sources, then channel id before username for channel
// sources — channel id is checked first because a channel can be renamed
// while its id stays stable. If an insert races a concurrent duplicate, the
// unique-constraint violation is swallowed and the winner is re-resolved.
func (r *SourceRepository) GetOrCreate(ctx context.Context, candidate domain.Source) (domain.Source, error) {
	if src, err := r.resolve(ctx, candidate); err == nil {
		return src, nil
	} else if !errors.Is(err, ErrNotFound) {
		return domain.Source{}, err
	}

	src, err := r.create(ctx, candidate)
	if err == nil {
		return src, nil
	}
	if !isUniqueViolation(err) {
		return domain.Source{}, err
	}

	// Lost the race against a concurrent fetch pass. The duplicate already
	// holds one of our identities, so a fresh lookup must succeed.
	src, lookupErr := r.resolve(ctx, candidate)
	if lookupErr != nil {
		return domain.Source{}, fmt.Errorf("re-resolve after duplicate insert: %w", lookupErr)
	}
	return src, nil
}

func (r *SourceRepository) resolve(ctx context.Context, candidate domain.Source) (domain.Source, error) {
	if src, err := r.ByURL(ctx, candidate.URL); err == nil {
		return src, nil
	} else if !errors.Is(err, ErrNotFound) {
		return domain.Source{}, err
	}

	if candidate.Type == domain.SourceTypeRSS && candidate.RSSURL != "" {
		if src, err := r.byColumn(ctx, "rss_url", candidate.RSSURL); err == nil {
			return src, nil
		} else if !errors.Is(err, ErrNotFound) {
			return domain.Source{}, err
		}
	}

	if candidate.Type == domain.SourceTypeYouTube {
		if candidate.YouTubeChannelID != "" {
			if src, err := r.byColumn(ctx, "youtube_channel_id", candidate.YouTubeChannelID); err == nil {
				return src, nil
			} else if !errors.Is(err, ErrNotFound) {
				return domain.Source{}, err
			}
		}
		if candidate.YouTubeUsername != "" {
			if src, err := r.byColumn(ctx, "youtube_username", candidate.YouTubeUsername); err == nil {
				return src, nil
			} else if !errors.Is(err, ErrNotFound) {
				return domain.Source{}, err
			}
		}
	}

	return domain.Source{}, ErrNotFound
}

func (r *SourceRepository) create(ctx context.Context, candidate domain.Source) (domain.Source, error) {
	now := time.Now().UTC()

	query, args, err := builder.
		Insert("sources").
		Columns("name", "url", "source_type", "youtube_channel_id", "youtube_username", "rss_url", "created_at", "updated_at").
		Values(candidate.Name, candidate.URL, string(candidate.Type),
			nullString(candidate.YouTubeChannelID), nullString(candidate.YouTubeUsername), nullString(candidate.RSSURL),
			now, now).
		ToSql()
	if err != nil {
		return domain.Source{}, fmt.Errorf("build insert: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return domain.Source{}, fmt.Errorf("insert source %s: %w", candidate.URL, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.Source{}, fmt.Errorf("source insert id: %w", err)
	}

	candidate.ID = id
	candidate.CreatedAt = now
	candidate.UpdatedAt = now
	return candidate, nil
}

// ByID returns the source with the given id.
func (r *SourceRepository) ByID(ctx context.Context, id int64) (domain.Source, error) {
	return r.one(ctx, sq.Eq{"id": id})
}

// ByURL returns the source with the given canonical URL.
func (r *SourceRepository) ByURL(ctx context.Context, url string) (domain.Source, error) {
	return r.one(ctx, sq.Eq{"url": url})
}

func (r *SourceRepository) byColumn(ctx context.Context, column, value string) (domain.Source, error) {
	return r.one(ctx, sq.Eq{column: value})
}

func (r *SourceRepository) one(ctx context.Context, pred any) (domain.Source, error) {
	query, args, err := builder.
		Select(sourceColumns...).
		From("sources").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return domain.Source{}, fmt.Errorf("build select: %w", err)
	}

	src, err := scanSource(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Source{}, ErrNotFound
	}
	if err != nil {
		return domain.Source{}, fmt.Errorf("query source: %w", err)
	}
	return src, nil
}

// All returns every registered source.
func (r *SourceRepository) All(ctx context.Context) ([]domain.Source, error) {
	return r.list(ctx, nil)
}

// ByType returns the sources of one kind.
func (r *SourceRepository) ByType(ctx context.Context, sourceType domain.SourceType) ([]domain.Source, error) {
	return r.list(ctx, sq.Eq{"source_type": string(sourceType)})
}

func (r *SourceRepository) list(ctx context.Context, pred any) ([]domain.Source, error) {
	sel := builder.
		Select(sourceColumns...).
		From("sources").
		OrderBy("id")
	if pred != nil {
		sel = sel.Where(pred)
	}

	query, args, err := sel.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return sources, nil
}

// Touch bumps the updated_at timestamp and backfills secondary identifiers
// that were unknown when the source was first seen. Empty arguments leave
// the stored values unchanged.
func (r *SourceRepository) Touch(ctx context.Context, id int64, channelID, username, rssURL string) error {
	update := builder.Update("sources").
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": id})

	if channelID != "" {
		update = update.Set("youtube_channel_id", channelID)
	}
	if username != "" {
		update = update.Set("youtube_username", username)
	}
	if rssURL != "" {
		update = update.Set("rss_url", rssURL)
	}

	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("touch source %d: %w", id, err)
	}
	return nil
}

// Delete removes a source and, via cascade, its content items. Exercised
// only administratively; the pipeline never deletes sources.
func (r *SourceRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := builder.Delete("sources").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete source %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (domain.Source, error) {
	var (
		src       domain.Source
		srcType   string
		channelID sql.NullString
		username  sql.NullString
		rssURL    sql.NullString
	)
	err := row.Scan(&src.ID, &src.Name, &src.URL, &srcType,
		&channelID, &username, &rssURL, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		return domain.Source{}, err
	}
	src.Type = domain.SourceType(srcType)
	src.YouTubeChannelID = channelID.String
	src.YouTubeUsername = username.String
	src.RSSURL = rssURL.String
	return src, nil
}
