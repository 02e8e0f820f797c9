// Package account orchestrates the account lifecycle: registration, login,
// logout, token refresh, password change and channel profiles.
package account

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/streamhub-be/internal/apperr"
	"github.com/hongminglow/streamhub-be/internal/auth"
	"github.com/hongminglow/streamhub-be/internal/credentials"
	"github.com/hongminglow/streamhub-be/internal/media"
	"github.com/hongminglow/streamhub-be/internal/middleware"
	"github.com/hongminglow/streamhub-be/internal/models"
	"github.com/hongminglow/streamhub-be/internal/storage"
)

const (
	avatarFolder = "avatars"
	coverFolder  = "covers"
)

// CredentialStore is the credential layer the service depends on.
type CredentialStore interface {
	FindByIdentity(ctx context.Context, userName, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUserName(ctx context.Context, userName string) (models.User, error)
	Create(ctx context.Context, in credentials.NewUser) (models.User, error)
	VerifyPassword(user models.User, plaintext string) bool
	BurnPasswordCheck(plaintext string)
	UpdatePassword(ctx context.Context, userID, newPlaintext string) error
}

// TokenIssuer issues, rotates and revokes token pairs.
type TokenIssuer interface {
	Issue(ctx context.Context, userID string) (auth.TokenPair, error)
	Rotate(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	Revoke(ctx context.Context, userID string) error
}

// RegisterInput carries a registration request. CoverImage is optional.
type RegisterInput struct {
	FullName   string
	Email      string
	Password   string
	UserName   string
	Avatar     *media.File
	CoverImage *media.File
}

// LoginInput identifies the account by userName or email.
type LoginInput struct {
	UserName string
	Email    string
	Password string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	User   models.PublicUser
	Tokens auth.TokenPair
}

// Service implements the account operations.
type Service struct {
	creds    CredentialStore
	tokens   TokenIssuer
	subs     storage.SubscriptionStore
	uploader media.Uploader
	log      *zap.Logger
}

// NewService wires the service's collaborators.
func NewService(creds CredentialStore, tokens TokenIssuer, subs storage.SubscriptionStore, uploader media.Uploader, log *zap.Logger) *Service {
	return &Service{creds: creds, tokens: tokens, subs: subs, uploader: uploader, log: log}
}

// Register validates the input, uploads images and creates the user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (models.PublicUser, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.UserName = strings.TrimSpace(in.UserName)

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"fullName", in.FullName},
		{"email", in.Email},
		{"password", strings.TrimSpace(in.Password)},
		{"userName", in.UserName},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return models.PublicUser{}, apperr.Validation("all fields are required", missing...)
	}
	if !ValidEmail(in.Email) {
		return models.PublicUser{}, apperr.Validation("enter a valid email address", "email")
	}
	if in.Avatar == nil {
		return models.PublicUser{}, apperr.Validation("avatar image is required", "avatar")
	}

	_, err := s.creds.FindByIdentity(ctx, in.UserName, in.Email)
	switch {
	case err == nil:
		return models.PublicUser{}, apperr.Conflict("user with this userName or email already exists")
	case !apperr.IsKind(err, apperr.KindNotFound):
		return models.PublicUser{}, err
	}

	var uploaded []string
	avatar, err := s.uploader.Upload(ctx, avatarFolder, *in.Avatar)
	if err != nil {
		return models.PublicUser{}, apperr.Wrap(apperr.KindUpload, err, "failed to upload avatar image")
	}
	uploaded = append(uploaded, avatar.Key)

	var coverURL string
	if in.CoverImage != nil {
		cover, err := s.uploader.Upload(ctx, coverFolder, *in.CoverImage)
		if err != nil {
			s.discard(ctx, uploaded)
			return models.PublicUser{}, apperr.Wrap(apperr.KindUpload, err, "failed to upload cover image")
		}
		uploaded = append(uploaded, cover.Key)
		coverURL = cover.URL
	}

	user, err := s.creds.Create(ctx, credentials.NewUser{
		UserName:      in.UserName,
		Email:         in.Email,
		FullName:      in.FullName,
		Password:      in.Password,
		AvatarURL:     avatar.URL,
		CoverImageURL: coverURL,
	})
	if err != nil {
		s.discard(ctx, uploaded)
		return models.PublicUser{}, err
	}

	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("user_name", user.UserName))
	return credentials.ProjectPublic(user), nil
}

// Login checks credentials and issues a token pair. A missing account and a
// wrong password produce the same error.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	userName := strings.TrimSpace(in.UserName)
	email := strings.TrimSpace(in.Email)
	if userName == "" && email == "" {
		return LoginResult{}, apperr.Validation("userName or email is required")
	}
	if in.Password == "" {
		return LoginResult{}, apperr.Validation("password is required")
	}

	user, err := s.creds.FindByIdentity(ctx, userName, email)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			s.creds.BurnPasswordCheck(in.Password)
			return LoginResult{}, apperr.Wrap(apperr.KindAuth, err, "invalid user credentials")
		}
		return LoginResult{}, err
	}
	if !s.creds.VerifyPassword(user, in.Password) {
		return LoginResult{}, apperr.New(apperr.KindAuth, "invalid user credentials")
	}

	pair, err := s.tokens.Issue(ctx, user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: credentials.ProjectPublic(user), Tokens: pair}, nil
}

// Logout clears the stored refresh token of userID.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.tokens.Revoke(ctx, userID)
}

// RefreshAccessToken rotates refreshToken into a new pair.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return auth.TokenPair{}, apperr.Unauthorized(nil, "unauthorized request")
	}
	return s.tokens.Rotate(ctx, refreshToken)
}

// ChangePassword replaces the password of userID after checking oldPassword.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return apperr.Validation("oldPassword and newPassword are required")
	}
	user, err := s.creds.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !s.creds.VerifyPassword(user, oldPassword) {
		return apperr.New(apperr.KindAuth, "invalid old password")
	}
	return s.creds.UpdatePassword(ctx, userID, newPassword)
}

// CurrentUser returns the identity attached to ctx by the session middleware.
func (s *Service) CurrentUser(ctx context.Context) (models.PublicUser, error) {
	user, ok := middleware.UserFromContext(ctx)
	if !ok {
		return models.PublicUser{}, apperr.Internal(errors.New("no identity in request context"), "internal server error")
	}
	return user, nil
}

// ChannelProfile aggregates the channel named userName as seen by viewerID,
// which is empty for anonymous viewers.
func (s *Service) ChannelProfile(ctx context.Context, userName, viewerID string) (models.ChannelProfile, error) {
	if strings.TrimSpace(userName) == "" {
		return models.ChannelProfile{}, apperr.Validation("userName is missing")
	}
	channel, err := s.creds.FindByUserName(ctx, userName)
	if err != nil {
		return models.ChannelProfile{}, err
	}
	stats, err := s.subs.ChannelStats(ctx, channel.ID, viewerID)
	if err != nil {
		return models.ChannelProfile{}, apperr.Internal(err, "failed to load channel")
	}
	return models.ChannelProfile{
		ID:                channel.ID,
		UserName:          channel.UserName,
		FullName:          channel.FullName,
		Email:             channel.Email,
		AvatarURL:         channel.AvatarURL,
		CoverImageURL:     channel.CoverImageURL,
		SubscriberCount:   stats.Subscribers,
		SubscribedToCount: stats.SubscribedTo,
		IsSubscribed:      stats.IsSubscribed,
	}, nil
}

// Subscribe makes subscriberID follow the channel named userName.
func (s *Service) Subscribe(ctx context.Context, subscriberID, userName string) error {
	channel, err := s.channelFor(ctx, subscriberID, userName)
	if err != nil {
		return err
	}
	if err := s.subs.Subscribe(ctx, subscriberID, channel.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("channel does not exist")
		}
		return apperr.Internal(err, "failed to subscribe")
	}
	return nil
}

// Unsubscribe removes subscriberID's subscription to userName, if any.
func (s *Service) Unsubscribe(ctx context.Context, subscriberID, userName string) error {
	channel, err := s.channelFor(ctx, subscriberID, userName)
	if err != nil {
		return err
	}
	if err := s.subs.Unsubscribe(ctx, subscriberID, channel.ID); err != nil {
		return apperr.Internal(err, "failed to unsubscribe")
	}
	return nil
}

func (s *Service) channelFor(ctx context.Context, subscriberID, userName string) (models.User, error) {
	if strings.TrimSpace(userName) == "" {
		return models.User{}, apperr.Validation("userName is missing")
	}
	channel, err := s.creds.FindByUserName(ctx, userName)
	if err != nil {
		return models.User{}, err
	}
	if channel.ID == subscriberID {
		return models.User{}, apperr.Validation("cannot subscribe to your own channel")
	}
	return channel, nil
}

func (s *Service) discard(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.uploader.Delete(context.WithoutCancel(ctx), key); err != nil {
			s.log.Warn("failed to delete orphaned upload", zap.String("key", key), zap.Error(err))
		}
	}
}
