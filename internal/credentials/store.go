// Package credentials owns user identity records: field validation, password
// hashing and the public projection. Password hashes and refresh tokens never
// leave this package except through the token service's refresh-token calls.
package credentials

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/streamhub-be/internal/apperr"
	"github.com/hongminglow/streamhub-be/internal/models"
	"github.com/hongminglow/streamhub-be/internal/storage"
)

// NewUser carries the fields needed to create an account.
type NewUser struct {
	UserName      string
	Email         string
	FullName      string
	Password      string
	AvatarURL     string
	CoverImageURL string
}

// Store wraps a storage.UserStore with hashing and error classification.
type Store struct {
	users     storage.UserStore
	cost      int
	dummyHash []byte
}

// NewStore returns a credential store hashing with the given bcrypt cost.
// A cost outside bcrypt's range falls back to bcrypt.DefaultCost.
func NewStore(users storage.UserStore, cost int) *Store {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// Used to spend the same bcrypt work when no account matches a login.
	dummy, _ := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cost)
	return &Store{users: users, cost: cost, dummyHash: dummy}
}

// FindByIdentity looks a user up by userName or email.
func (s *Store) FindByIdentity(ctx context.Context, userName, email string) (models.User, error) {
	userName = normalizeUserName(userName)
	email = normalizeEmail(email)
	if userName == "" && email == "" {
		return models.User{}, apperr.Validation("userName or email is required")
	}
	user, err := s.users.FindByIdentity(ctx, userName, email)
	return user, classifyLookup(err, "user does not exist")
}

// FindByID looks a user up by id.
func (s *Store) FindByID(ctx context.Context, id string) (models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	return user, classifyLookup(err, "user does not exist")
}

// FindByUserName looks a user up by userName.
func (s *Store) FindByUserName(ctx context.Context, userName string) (models.User, error) {
	userName = normalizeUserName(userName)
	if userName == "" {
		return models.User{}, apperr.Validation("userName is required")
	}
	user, err := s.users.FindByUserName(ctx, userName)
	return user, classifyLookup(err, "channel does not exist")
}

// Create validates fields, hashes the password and persists a new user.
func (s *Store) Create(ctx context.Context, in NewUser) (models.User, error) {
	in.UserName = normalizeUserName(in.UserName)
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.AvatarURL = strings.TrimSpace(in.AvatarURL)
	in.CoverImageURL = strings.TrimSpace(in.CoverImageURL)

	if missing := missingFields(in); len(missing) > 0 {
		return models.User{}, apperr.Validation("all fields are required", missing...)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return models.User{}, err
	}

	created, err := s.users.CreateUser(ctx, models.User{
		ID:            uuid.NewString(),
		UserName:      in.UserName,
		Email:         in.Email,
		FullName:      in.FullName,
		AvatarURL:     in.AvatarURL,
		CoverImageURL: in.CoverImageURL,
		PasswordHash:  hash,
	})
	switch {
	case err == nil:
		return created, nil
	case errors.Is(err, storage.ErrAlreadyExists):
		return models.User{}, apperr.Conflict("user with this userName or email already exists")
	case errors.Is(err, storage.ErrInvalid):
		return models.User{}, apperr.Validation("all fields are required")
	default:
		return models.User{}, apperr.Internal(err, "failed to create user")
	}
}

// VerifyPassword reports whether plaintext matches the user's stored hash.
// The comparison is constant-time.
func (s *Store) VerifyPassword(user models.User, plaintext string) bool {
	if user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(plaintext)) == nil
}

// BurnPasswordCheck performs a throwaway comparison so that a login for a
// missing account costs the same as one with a wrong password.
func (s *Store) BurnPasswordCheck(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(plaintext))
}

// UpdateRefreshToken replaces the user's refresh token; an empty token clears it.
func (s *Store) UpdateRefreshToken(ctx context.Context, userID, token string) error {
	if err := s.users.UpdateRefreshToken(ctx, userID, token); err != nil {
		return classifyWrite(err, "failed to store refresh token")
	}
	return nil
}

// UpdatePassword re-hashes newPlaintext and stores it. Checking the old
// password is the caller's job.
func (s *Store) UpdatePassword(ctx context.Context, userID, newPlaintext string) error {
	if strings.TrimSpace(newPlaintext) == "" {
		return apperr.Validation("new password is required")
	}
	hash, err := s.hash(newPlaintext)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return classifyWrite(err, "failed to update password")
	}
	return nil
}

// ProjectPublic strips secrets from user.
func ProjectPublic(user models.User) models.PublicUser {
	return models.PublicUser{
		ID:            user.ID,
		UserName:      user.UserName,
		Email:         user.Email,
		FullName:      user.FullName,
		AvatarURL:     user.AvatarURL,
		CoverImageURL: user.CoverImageURL,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}
}

func (s *Store) hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apperr.Validation("password must be at most 72 bytes")
		}
		return "", apperr.Internal(err, "failed to hash password")
	}
	return string(hash), nil
}

func missingFields(in NewUser) []string {
	var missing []string
	if in.FullName == "" {
		missing = append(missing, "fullName")
	}
	if in.Email == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(in.Password) == "" {
		missing = append(missing, "password")
	}
	if in.UserName == "" {
		missing = append(missing, "userName")
	}
	if in.AvatarURL == "" {
		missing = append(missing, "avatar")
	}
	return missing
}

func classifyLookup(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return apperr.Wrap(apperr.KindNotFound, err, notFound)
	default:
		return apperr.Internal(err, "failed to fetch user")
	}
}

func classifyWrite(err error, message string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.Wrap(apperr.KindNotFound, err, "user does not exist")
	}
	return apperr.Internal(err, message)
}

func normalizeUserName(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
