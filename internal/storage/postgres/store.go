package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/hongminglow/streamhub-be/internal/models"
	"github.com/hongminglow/streamhub-be/internal/storage"
	"github.com/hongminglow/streamhub-be/internal/storage/postgres/migrations"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
)

const userColumns = `id::text, user_name, email, full_name, avatar_url, cover_image_url,
	password_hash, COALESCE(refresh_token, ''), created_at, updated_at`

// Store provides Postgres-backed persistence for users and subscriptions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to databaseURL and applies pending migrations.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

// Migrate applies pending migrations without keeping a store open.
func Migrate(ctx context.Context, databaseURL string) error {
	pool, err := connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	return migrate(ctx, pool)
}

func connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// CreateUser inserts a new user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if !storage.Required(user) {
		return models.User{}, storage.ErrInvalid
	}
	query := `
	INSERT INTO users (id, user_name, email, full_name, avatar_url, cover_image_url, password_hash)
	VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)
	RETURNING ` + userColumns
	row := s.pool.QueryRow(ctx, query,
		user.ID, user.UserName, user.Email, user.FullName, user.AvatarURL, user.CoverImageURL, user.PasswordHash)
	created, err := scanUser(row)
	if err != nil {
		return models.User{}, translate(err)
	}
	return created, nil
}

// FindByID fetches a user by id.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id::text = $1`
	return scanUser(s.pool.QueryRow(ctx, query, id))
}

// FindByUserName fetches a user by case-insensitive userName.
func (s *Store) FindByUserName(ctx context.Context, userName string) (models.User, error) {
	if userName == "" {
		return models.User{}, storage.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(user_name) = lower($1)`
	return scanUser(s.pool.QueryRow(ctx, query, userName))
}

// FindByIdentity fetches the first user matching userName or email.
func (s *Store) FindByIdentity(ctx context.Context, userName, email string) (models.User, error) {
	if userName == "" && email == "" {
		return models.User{}, storage.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users
	WHERE ($1 <> '' AND lower(user_name) = lower($1))
	   OR ($2 <> '' AND lower(email) = lower($2))
	LIMIT 1`
	return scanUser(s.pool.QueryRow(ctx, query, userName, email))
}

// UpdateRefreshToken stores token, or NULL when token is empty.
func (s *Store) UpdateRefreshToken(ctx context.Context, id, token string) error {
	const query = `UPDATE users SET refresh_token = NULLIF($2, ''), updated_at = NOW() WHERE id::text = $1`
	return s.exec(ctx, query, id, token)
}

// UpdatePasswordHash replaces the stored password hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if hash == "" {
		return storage.ErrInvalid
	}
	const query = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id::text = $1`
	return s.exec(ctx, query, id, hash)
}

// Subscribe records subscriberID following channelID. Repeats are no-ops.
func (s *Store) Subscribe(ctx context.Context, subscriberID, channelID string) error {
	const query = `
	INSERT INTO subscriptions (subscriber_id, channel_id)
	VALUES ($1::uuid, $2::uuid)
	ON CONFLICT DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, subscriberID, channelID); err != nil {
		return translate(err)
	}
	return nil
}

// Unsubscribe removes a subscription if present.
func (s *Store) Unsubscribe(ctx context.Context, subscriberID, channelID string) error {
	const query = `DELETE FROM subscriptions WHERE subscriber_id::text = $1 AND channel_id::text = $2`
	if _, err := s.pool.Exec(ctx, query, subscriberID, channelID); err != nil {
		return translate(err)
	}
	return nil
}

// ChannelStats counts subscribers of and subscriptions held by channelID.
func (s *Store) ChannelStats(ctx context.Context, channelID, viewerID string) (models.ChannelStats, error) {
	const query = `
	SELECT
		(SELECT COUNT(*) FROM subscriptions WHERE channel_id::text = $1),
		(SELECT COUNT(*) FROM subscriptions WHERE subscriber_id::text = $1),
		EXISTS (SELECT 1 FROM subscriptions WHERE channel_id::text = $1 AND subscriber_id::text = $2)`
	var stats models.ChannelStats
	if err := s.pool.QueryRow(ctx, query, channelID, viewerID).Scan(
		&stats.Subscribers, &stats.SubscribedTo, &stats.IsSubscribed,
	); err != nil {
		return models.ChannelStats{}, err
	}
	return stats, nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return storage.ErrAlreadyExists
		case codeForeignKeyViolation:
			return storage.ErrNotFound
		case codeCheckViolation, codeNotNullViolation:
			return storage.ErrInvalid
		}
	}
	return err
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(&user.ID, &user.UserName, &user.Email, &user.FullName, &user.AvatarURL,
		&user.CoverImageURL, &user.PasswordHash, &user.RefreshToken, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
