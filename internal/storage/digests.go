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

// ErrDigestExists is returned when a digest is created for a URL that
// already has one. Callers are expected to check ExistsByURL first; the
// unique index is a backstop against racing generators.
var ErrDigestExists = errors.New("storage: digest already exists for url")

// DigestRepository persists generated digests, at most one per content URL.
type DigestRepository struct {
	db *sql.DB
}

var _ ports.DigestStore = (*DigestRepository)(nil)

// NewDigestRepository wires a sql.DB implementation.
func NewDigestRepository(db *sql.DB) *DigestRepository {
	return &DigestRepository{db: db}
}

var digestColumns = []string{
	"id", "article_id", "video_id", "url", "title", "summary", "content_type", "created_at",
}

// Create inserts a digest. CreatedAt defaults to now only when the caller
// left it zero; the generation step passes the item's original publish time
// so windowed queries reflect content chronology.
func (r *DigestRepository) Create(ctx context.Context, digest domain.Digest) (domain.Digest, error) {
	createdAt := digest.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query, args, err := builder.
		Insert("digests").
		Columns("article_id", "video_id", "url", "title", "summary", "content_type", "created_at").
		Values(nullInt64(digest.ArticleID), nullInt64(digest.VideoID), digest.URL,
			digest.Title, digest.Summary, string(digest.ContentType), createdAt.UTC()).
		ToSql()
	if err != nil {
		return domain.Digest{}, fmt.Errorf("build insert: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Digest{}, fmt.Errorf("%w: %s", ErrDigestExists, digest.URL)
		}
		return domain.Digest{}, fmt.Errorf("insert digest %s: %w", digest.URL, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.Digest{}, fmt.Errorf("digest insert id: %w", err)
	}

	digest.ID = id
	digest.CreatedAt = createdAt
	return digest, nil
}

// ExistsByURL reports whether a digest already covers the given content URL.
func (r *DigestRepository) ExistsByURL(ctx context.Context, url string) (bool, error) {
	query, args, err := builder.
		Select("1").
		From("digests").
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
		return false, fmt.Errorf("query digest exists: %w", err)
	}
	return true, nil
}

// ByURL returns the digest for the given content URL.
func (r *DigestRepository) ByURL(ctx context.Context, url string) (domain.Digest, error) {
	query, args, err := builder.
		Select(digestColumns...).
		From("digests").
		Where(sq.Eq{"url": url}).
		Limit(1).
		ToSql()
	if err != nil {
		return domain.Digest{}, fmt.Errorf("build select: %w", err)
	}

	digest, err := scanDigest(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Digest{}, ErrNotFound
	}
	if err != nil {
		return domain.Digest{}, fmt.Errorf("query digest: %w", err)
	}
	return digest, nil
}

// Recent returns digests whose content was published within the lookback
// window, newest-first.
func (r *DigestRepository) Recent(ctx context.Context, window time.Duration) ([]domain.Digest, error) {
	cutoff := time.Now().UTC().Add(-window)

	query, args, err := builder.
		Select(digestColumns...).
		From("digests").
		Where(sq.GtOrEq{"created_at": cutoff}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query digests: %w", err)
	}
	defer rows.Close()

	var digests []domain.Digest
	for rows.Next() {
		digest, err := scanDigest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan digest: %w", err)
		}
		digests = append(digests, digest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate digests: %w", err)
	}
	return digests, nil
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func scanDigest(row rowScanner) (domain.Digest, error) {
	var (
		d           domain.Digest
		articleID   sql.NullInt64
		videoID     sql.NullInt64
		contentType string
	)
	err := row.Scan(&d.ID, &articleID, &videoID, &d.URL, &d.Title, &d.Summary, &contentType, &d.CreatedAt)
	if err != nil {
		return domain.Digest{}, err
	}
	if articleID.Valid {
		id := articleID.Int64
		d.ArticleID = &id
	}
	if videoID.Valid {
		id := videoID.Int64
		d.VideoID = &id
	}
	d.ContentType = domain.ContentType(contentType)
	return d, nil
}
