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

// ArticleRepository persists articles with URL as the sole dedup key.
type ArticleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.ArticleStore = (*ArticleRepository)(nil)

// NewArticleRepository wires a sql.DB implementation.
func NewArticleRepository(db *sql.DB, logger *slog.Logger) *ArticleRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArticleRepository{db: db, logger: logger}
}

var articleColumns = []string{
	"id", "source_id", "title", "url", "description", "feed_type",
	"markdown_content", "markdown_fetched_at",
	"published_at", "scraped_at", "created_at",
}

// SaveNew inserts the items that are not yet stored and reports how many
// were saved. An item whose URL already exists is skipped silently; an
// insert racing a concurrent duplicate is likewise treated as already
// present. One bad item never aborts the batch.
func (r *ArticleRepository) SaveNew(ctx context.Context, sourceID int64, items []domain.FetchedArticle) (int, error) {
	saved := 0
	for _, item := range items {
		exists, err := r.existsByURL(ctx, item.URL)
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
			r.logger.Warn("skipping article", "url", item.URL, "error", err)
			continue
		}
		saved++
	}
	return saved, nil
}

func (r *ArticleRepository) insert(ctx context.Context, sourceID int64, item domain.FetchedArticle) error {
	now := time.Now().UTC()

	query, args, err := builder.
		Insert("articles").
		Columns("source_id", "title", "url", "description", "feed_type", "published_at", "scraped_at", "created_at").
		Values(sourceID, item.Title, item.URL, item.Description, nullString(item.FeedType),
			item.PublishedAt.UTC(), now, now).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert article %s: %w", item.URL, err)
	}
	return nil
}

func (r *ArticleRepository) existsByURL(ctx context.Context, url string) (bool, error) {
	query, args, err := builder.
		Select("1").
		From("articles").
		Where(sq.Eq{"url": url}).
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
		return false, fmt.Errorf("query article exists: %w", err)
	}
	return true, nil
}

// ByURL returns the article with the given URL.
func (r *ArticleRepository) ByURL(ctx context.Context, url string) (domain.Article, error) {
	return r.one(ctx, sq.Eq{"url": url})
}

// ByID returns the article with the given id.
func (r *ArticleRepository) ByID(ctx context.Context, id int64) (domain.Article, error) {
	return r.one(ctx, sq.Eq{"id": id})
}

func (r *ArticleRepository) one(ctx context.Context, pred any) (domain.Article, error) {
	query, args, err := builder.
		Select(articleColumns...).
		From("articles").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build select: %w", err)
	}

	article, err := scanArticle(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, ErrNotFound
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("query article: %w", err)
	}
	return article, nil
}

// All returns stored articles newest-first; limit <= 0 means no limit.
func (r *ArticleRepository) All(ctx context.Context, limit int) ([]domain.Article, error) {
	return r.list(ctx, nil, limit)
}

// Recent returns articles published within the lookback window, newest-first.
func (r *ArticleRepository) Recent(ctx context.Context, window time.Duration) ([]domain.Article, error) {
	cutoff := time.Now().UTC().Add(-window)
	return r.list(ctx, sq.GtOrEq{"published_at": cutoff}, 0)
}

// BySource returns the articles belonging to one source, newest-first.
func (r *ArticleRepository) BySource(ctx context.Context, sourceID int64) ([]domain.Article, error) {
	return r.list(ctx, sq.Eq{"source_id": sourceID}, 0)
}

// WithoutMarkdown returns articles whose full body has not been fetched yet.
func (r *ArticleRepository) WithoutMarkdown(ctx context.Context, limit int) ([]domain.Article, error) {
	return r.list(ctx, sq.Eq{"markdown_content": nil}, limit)
}

func (r *ArticleRepository) list(ctx context.Context, pred any, limit int) ([]domain.Article, error) {
	sel := builder.
		Select(articleColumns...).
		From("articles").
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
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		articles = append(articles, article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return articles, nil
}

// SetMarkdown stores the backfilled body and stamps the fetch time. The
// operation is idempotent; a repeat call overwrites the previous body.
func (r *ArticleRepository) SetMarkdown(ctx context.Context, id int64, markdown string) error {
	query, args, err := builder.
		Update("articles").
		Set("markdown_content", markdown).
		Set("markdown_fetched_at", time.Now().UTC()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set markdown for article %d: %w", id, err)
	}
	return nil
}

func scanArticle(row rowScanner) (domain.Article, error) {
	var (
		a         domain.Article
		desc      sql.NullString
		feedType  sql.NullString
		markdown  sql.NullString
		fetchedAt sql.NullTime
	)
	err := row.Scan(&a.ID, &a.SourceID, &a.Title, &a.URL, &desc, &feedType,
		&markdown, &fetchedAt, &a.PublishedAt, &a.ScrapedAt, &a.CreatedAt)
	if err != nil {
		return domain.Article{}, err
	}
	a.Description = desc.String
	a.FeedType = feedType.String
	a.Markdown = markdown.String
	if fetchedAt.Valid {
		t := fetchedAt.Time
		a.MarkdownFetchedAt = &t
	}
	return a, nil
}
