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

// UserRepository manages recipient profiles keyed by email.
type UserRepository struct {
	db *sql.DB
}

var _ ports.UserStore = (*UserRepository)(nil)

// NewUserRepository wires a sql.DB implementation.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

var userColumns = []string{
	"id", "email", "name", "background", "interests", "system_prompt", "created_at", "updated_at",
}

// Upsert creates the profile or updates the existing one for the same
// email. Empty fields on update leave the stored values unchanged.
func (r *UserRepository) Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	existing, err := r.ByEmail(ctx, profile.Email)
	if errors.Is(err, ErrNotFound) {
		return r.create(ctx, profile)
	}
	if err != nil {
		return domain.UserProfile{}, err
	}

	update := builder.Update("user_settings").
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"id": existing.ID})

	if profile.Name != "" {
		update = update.Set("name", profile.Name)
	}
	if profile.Background != "" {
		update = update.Set("background", profile.Background)
	}
	if profile.Interests != "" {
		update = update.Set("interests", profile.Interests)
	}
	if profile.SystemPrompt != "" {
		update = update.Set("system_prompt", profile.SystemPrompt)
	}

	query, args, err := update.ToSql()
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("build update: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return domain.UserProfile{}, fmt.Errorf("update user %s: %w", profile.Email, err)
	}

	return r.ByEmail(ctx, profile.Email)
}

func (r *UserRepository) create(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	now := time.Now().UTC()

	query, args, err := builder.
		Insert("user_settings").
		Columns("email", "name", "background", "interests", "system_prompt", "created_at", "updated_at").
		Values(profile.Email, nullString(profile.Name), nullString(profile.Background),
			nullString(profile.Interests), nullString(profile.SystemPrompt), now, now).
		ToSql()
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("build insert: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			// Raced another upsert for the same email; the row exists now.
			return r.ByEmail(ctx, profile.Email)
		}
		return domain.UserProfile{}, fmt.Errorf("insert user %s: %w", profile.Email, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("user insert id: %w", err)
	}

	profile.ID = id
	profile.CreatedAt = now
	profile.UpdatedAt = now
	return profile, nil
}

// ByEmail returns the profile for the given email.
func (r *UserRepository) ByEmail(ctx context.Context, email string) (domain.UserProfile, error) {
	query, args, err := builder.
		Select(userColumns...).
		From("user_settings").
		Where(sq.Eq{"email": email}).
		Limit(1).
		ToSql()
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("build select: %w", err)
	}

	profile, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserProfile{}, ErrNotFound
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("query user: %w", err)
	}
	return profile, nil
}

// All returns every registered recipient.
func (r *UserRepository) All(ctx context.Context) ([]domain.UserProfile, error) {
	query, args, err := builder.
		Select(userColumns...).
		From("user_settings").
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.UserProfile
	for rows.Next() {
		profile, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func scanUser(row rowScanner) (domain.UserProfile, error) {
	var (
		p            domain.UserProfile
		name         sql.NullString
		background   sql.NullString
		interests    sql.NullString
		systemPrompt sql.NullString
	)
	err := row.Scan(&p.ID, &p.Email, &name, &background, &interests, &systemPrompt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.UserProfile{}, err
	}
	p.Name = name.String
	p.Background = background.String
	p.Interests = interests.String
	p.SystemPrompt = systemPrompt.String
	return p, nil
}
