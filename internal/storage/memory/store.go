// Package memory is an in-process storage backend used for local development
// (STORAGE_DRIVER=memory) and tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/hongminglow/streamhub-be/internal/models"
	"github.com/hongminglow/streamhub-be/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type subscription struct {
	subscriber string
	channel    string
}

// Store keeps users and subscriptions in maps guarded by a single mutex, so
// each method is atomic with respect to the others.
type Store struct {
	mu            sync.RWMutex
	users         map[string]models.User
	subscriptions map[subscription]struct{}
	now           func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:         make(map[string]models.User),
		subscriptions: make(map[subscription]struct{}),
		now:           time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// CreateUser inserts user, enforcing required fields and identity uniqueness.
func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	if !storage.Required(user) {
		return models.User{}, storage.ErrInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return models.User{}, storage.ErrAlreadyExists
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.UserName, user.UserName) || strings.EqualFold(existing.Email, user.Email) {
			return models.User{}, storage.ErrAlreadyExists
		}
	}

	now := s.now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user
	return user, nil
}

// FindByID fetches a user by id.
func (s *Store) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return user, nil
}

// FindByUserName fetches a user by case-insensitive userName.
func (s *Store) FindByUserName(ctx context.Context, userName string) (models.User, error) {
	if userName == "" {
		return models.User{}, storage.ErrNotFound
	}
	return s.FindByIdentity(ctx, userName, "")
}

// FindByIdentity fetches the first user matching userName or email.
func (s *Store) FindByIdentity(_ context.Context, userName, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if userName != "" && strings.EqualFold(user.UserName, userName) {
			return user, nil
		}
		if email != "" && strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

// UpdateRefreshToken replaces the stored refresh token; last writer wins.
func (s *Store) UpdateRefreshToken(_ context.Context, id, token string) error {
	return s.update(id, func(u *models.User) { u.RefreshToken = token })
}

// UpdatePasswordHash replaces the stored password hash.
func (s *Store) UpdatePasswordHash(_ context.Context, id, hash string) error {
	if hash == "" {
		return storage.ErrInvalid
	}
	return s.update(id, func(u *models.User) { u.PasswordHash = hash })
}

func (s *Store) update(id string, mutate func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	mutate(&user)
	user.UpdatedAt = s.now().UTC()
	s.users[id] = user
	return nil
}

// Subscribe records subscriberID following channelID. Repeats are no-ops.
func (s *Store) Subscribe(_ context.Context, subscriberID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[subscriberID]; !ok {
		return storage.ErrNotFound
	}
	if _, ok := s.users[channelID]; !ok {
		return storage.ErrNotFound
	}
	s.subscriptions[subscription{subscriber: subscriberID, channel: channelID}] = struct{}{}
	return nil
}

// Unsubscribe removes a subscription if present.
func (s *Store) Unsubscribe(_ context.Context, subscriberID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subscriptions, subscription{subscriber: subscriberID, channel: channelID})
	return nil
}

// ChannelStats counts subscribers of and subscriptions held by channelID.
func (s *Store) ChannelStats(_ context.Context, channelID, viewerID string) (models.ChannelStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats models.ChannelStats
	for sub := range s.subscriptions {
		if sub.channel == channelID {
			stats.Subscribers++
			if viewerID != "" && sub.subscriber == viewerID {
				stats.IsSubscribed = true
			}
		}
		if sub.subscriber == channelID {
			stats.SubscribedTo++
		}
	}
	return stats, nil
}
