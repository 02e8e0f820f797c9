package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/streamhub-be/internal/models"
	"github.com/hongminglow/streamhub-be/internal/storage"
)

func newUser(id, userName, email string) models.User {
	return models.User{
		ID:           id,
		UserName:     userName,
		Email:        email,
		FullName:     "Full " + userName,
		AvatarURL:    "https://cdn.example/" + userName + ".png",
		PasswordHash: "hash",
	}
}

func TestCreateUser_Uniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.CreateUser(ctx, newUser("1", "alice", "alice@x.com"))
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, newUser("2", "ALICE", "other@x.com"))
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	_, err = s.CreateUser(ctx, newUser("3", "bob", "Alice@X.com"))
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	_, err = s.FindByID(ctx, "2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateUser_RequiredFields(t *testing.T) {
	u := newUser("1", "alice", "alice@x.com")
	u.AvatarURL = ""

	_, err := New().CreateUser(context.Background(), u)
	assert.ErrorIs(t, err, storage.ErrInvalid)
}

func TestFindByIdentity(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.CreateUser(ctx, newUser("1", "alice", "alice@x.com"))
	require.NoError(t, err)

	got, err := s.FindByIdentity(ctx, "Alice", "")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)

	got, err = s.FindByIdentity(ctx, "", "alice@x.com")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)

	_, err = s.FindByIdentity(ctx, "", "")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.FindByUserName(ctx, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdateRefreshToken_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.CreateUser(ctx, newUser("1", "alice", "alice@x.com"))
	require.NoError(t, err)

	require.NoError(t, s.UpdateRefreshToken(ctx, "1", "first"))
	require.NoError(t, s.UpdateRefreshToken(ctx, "1", "second"))

	got, err := s.FindByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.RefreshToken)

	assert.ErrorIs(t, s.UpdateRefreshToken(ctx, "missing", "x"), storage.ErrNotFound)
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, u := range []models.User{
		newUser("a", "alice", "alice@x.com"),
		newUser("b", "bob", "bob@x.com"),
		newUser("c", "carol", "carol@x.com"),
	} {
		_, err := s.CreateUser(ctx, u)
		require.NoError(t, err)
	}

	require.NoError(t, s.Subscribe(ctx, "b", "a"))
	require.NoError(t, s.Subscribe(ctx, "b", "a"))
	require.NoError(t, s.Subscribe(ctx, "c", "a"))
	require.NoError(t, s.Subscribe(ctx, "a", "c"))

	stats, err := s.ChannelStats(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, models.ChannelStats{Subscribers: 2, SubscribedTo: 1, IsSubscribed: true}, stats)

	require.NoError(t, s.Unsubscribe(ctx, "b", "a"))
	stats, err = s.ChannelStats(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, models.ChannelStats{Subscribers: 1, SubscribedTo: 1, IsSubscribed: false}, stats)

	assert.ErrorIs(t, s.Subscribe(ctx, "b", "nobody"), storage.ErrNotFound)
}
