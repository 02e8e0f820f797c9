package storage

import (
	"context"
	"errors"

	"github.com/hongminglow/streamhub-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// ErrInvalid indicates a record failed a required-field check at write time.
var ErrInvalid = errors.New("record is invalid")

// UserStore captures persistence operations for user records. Implementations
// compare userName case-insensitively and update single fields atomically.
type UserStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUserName(ctx context.Context, userName string) (models.User, error)
	// FindByIdentity matches either field; empty arguments are ignored.
	FindByIdentity(ctx context.Context, userName, email string) (models.User, error)
	// UpdateRefreshToken stores token, or clears the column when token is empty.
	UpdateRefreshToken(ctx context.Context, id, token string) error
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// SubscriptionStore persists channel subscriptions between users.
type SubscriptionStore interface {
	Subscribe(ctx context.Context, subscriberID, channelID string) error
	Unsubscribe(ctx context.Context, subscriberID, channelID string) error
	// ChannelStats aggregates counts for channelID; viewerID may be empty.
	ChannelStats(ctx context.Context, channelID, viewerID string) (models.ChannelStats, error)
}

// Store is the full persistence surface used by the server.
type Store interface {
	UserStore
	SubscriptionStore
	Ping(ctx context.Context) error
	Close()
}

// Required reports whether every field the schema marks NOT NULL is present.
func Required(user models.User) bool {
	return user.ID != "" && user.UserName != "" && user.Email != "" &&
		user.FullName != "" && user.AvatarURL != "" && user.PasswordHash != ""
}
