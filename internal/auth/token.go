package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hongminglow/streamhub-be/internal/apperr"
	"github.com/hongminglow/streamhub-be/internal/config"
	"github.com/hongminglow/streamhub-be/internal/models"
)

// Kind distinguishes the two token types.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Verification failures. They arrive wrapped in an apperr.Error of kind
// unauthorized, so match them with errors.Is.
var (
	ErrExpired           = errors.New("token expired")
	ErrMalformed         = errors.New("token malformed")
	ErrSignatureMismatch = errors.New("token signature mismatch")
)

// ErrRevoked marks a refresh token that verifies but is no longer the one
// stored for its user.
var ErrRevoked = errors.New("refresh token revoked")

// Claims are the JWT claims carried by both token kinds. Subject holds the
// user id and ID a random token id, so two tokens minted in the same second
// still differ.
type Claims struct {
	jwt.RegisteredClaims
	Kind Kind `json:"kind"`
}

// UserID returns the subject claim.
func (c Claims) UserID() string { return c.Subject }

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// RefreshTokenStore is the slice of the credential store the token manager
// needs to persist and check refresh tokens.
type RefreshTokenStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	UpdateRefreshToken(ctx context.Context, userID, token string) error
}

// TokenManager issues, verifies and rotates signed tokens.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	store         RefreshTokenStore
	now           func() time.Time
}

// NewTokenManager creates a manager from cfg that persists refresh tokens in store.
func NewTokenManager(cfg config.TokenConfig, store RefreshTokenStore) *TokenManager {
	return &TokenManager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        cfg.Issuer,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		store:         store,
		now:           time.Now,
	}
}

// AccessTTL returns the access-token lifetime.
func (t *TokenManager) AccessTTL() time.Duration { return t.accessTTL }

// RefreshTTL returns the refresh-token lifetime.
func (t *TokenManager) RefreshTTL() time.Duration { return t.refreshTTL }

// Issue signs a new token pair for userID and stores the refresh token on the
// user record. Nothing is returned unless the store acknowledged the write.
func (t *TokenManager) Issue(ctx context.Context, userID string) (TokenPair, error) {
	access, err := t.sign(userID, KindAccess)
	if err != nil {
		return TokenPair{}, apperr.Internal(err, "error while generating tokens")
	}
	refresh, err := t.sign(userID, KindRefresh)
	if err != nil {
		return TokenPair{}, apperr.Internal(err, "error while generating tokens")
	}
	if err := t.store.UpdateRefreshToken(ctx, userID, refresh); err != nil {
		return TokenPair{}, apperr.Internal(err, "error while generating tokens")
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Verify checks the signature, expiry and kind of token.
func (t *TokenManager) Verify(token string, kind Kind) (Claims, error) {
	claims := Claims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret(kind), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Claims{}, verificationError(err, kind)
	}
	if !parsed.Valid || claims.Kind != kind || claims.Subject == "" {
		return Claims{}, apperr.Unauthorized(ErrMalformed, "invalid "+string(kind)+" token")
	}
	return claims, nil
}

// Rotate exchanges a refresh token for a new pair. The presented token must
// both verify and equal the value currently stored for its user; a token that
// verifies but has been superseded or cleared is revoked.
func (t *TokenManager) Rotate(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := t.Verify(refreshToken, KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	user, err := t.store.FindByID(ctx, claims.UserID())
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return TokenPair{}, apperr.Unauthorized(err, "invalid refresh token")
		}
		return TokenPair{}, apperr.Internal(err, "failed to fetch user")
	}

	if user.RefreshToken == "" || subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(refreshToken)) != 1 {
		return TokenPair{}, apperr.Wrap(apperr.KindRevoked, ErrRevoked, "refresh token is expired or used")
	}

	return t.Issue(ctx, user.ID)
}

// Revoke clears the stored refresh token for userID.
func (t *TokenManager) Revoke(ctx context.Context, userID string) error {
	if err := t.store.UpdateRefreshToken(ctx, userID, ""); err != nil {
		return apperr.Internal(err, "error logging out")
	}
	return nil
}

func (t *TokenManager) sign(userID string, kind Kind) (string, error) {
	now := t.now()
	ttl := t.accessTTL
	if kind == KindRefresh {
		ttl = t.refreshTTL
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Kind: kind,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret(kind))
}

func (t *TokenManager) secret(kind Kind) []byte {
	if kind == KindRefresh {
		return t.refreshSecret
	}
	return t.accessSecret
}

func verificationError(err error, kind Kind) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperr.Unauthorized(ErrExpired, string(kind)+" token expired")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperr.Unauthorized(ErrSignatureMismatch, "invalid "+string(kind)+" token")
	default:
		return apperr.Unauthorized(errors.Join(ErrMalformed, err), "invalid "+string(kind)+" token")
	}
}
