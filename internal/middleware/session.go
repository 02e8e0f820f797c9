package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/streamhub-be/internal/apperr"
	"github.com/hongminglow/streamhub-be/internal/auth"
	"github.com/hongminglow/streamhub-be/internal/credentials"
	"github.com/hongminglow/streamhub-be/internal/http/respond"
	"github.com/hongminglow/streamhub-be/internal/models"
)

// AccessTokenCookie is the cookie carrying the access token.
const AccessTokenCookie = "accessToken"

// TokenVerifier checks access tokens.
type TokenVerifier interface {
	Verify(token string, kind auth.Kind) (auth.Claims, error)
}

// UserFinder resolves a user id to its record.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

type identityKey struct{}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user models.PublicUser) context.Context {
	return context.WithValue(ctx, identityKey{}, user)
}

// UserFromContext returns the identity attached by the session middleware.
func UserFromContext(ctx context.Context) (models.PublicUser, bool) {
	user, ok := ctx.Value(identityKey{}).(models.PublicUser)
	return user, ok
}

// Session authenticates requests by access token.
type Session struct {
	tokens TokenVerifier
	users  UserFinder
	log    *zap.Logger
}

// NewSession builds the session middleware.
func NewSession(tokens TokenVerifier, users UserFinder, log *zap.Logger) *Session {
	return &Session{tokens: tokens, users: users, log: log}
}

// Resolve authenticates r and returns the caller's public identity. It never
// writes to the store.
func (s *Session) Resolve(r *http.Request) (models.PublicUser, error) {
	token := ExtractToken(r)
	if token == "" {
		return models.PublicUser{}, apperr.Unauthorized(nil, "unauthorized request")
	}

	claims, err := s.tokens.Verify(token, auth.KindAccess)
	if err != nil {
		return models.PublicUser{}, apperr.Unauthorized(err, "invalid access token")
	}

	user, err := s.users.FindByID(r.Context(), claims.UserID())
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return models.PublicUser{}, apperr.Unauthorized(err, "invalid access token")
		}
		return models.PublicUser{}, err
	}
	return credentials.ProjectPublic(user), nil
}

// Require rejects requests without a valid session.
func (s *Session) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.Resolve(r)
		if err != nil {
			respond.Error(w, s.log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// Optional attaches an identity when the request carries a valid session and
// otherwise lets the request through anonymously.
func (s *Session) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, err := s.Resolve(r); err == nil {
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractToken reads the access token from its cookie, falling back to an
// Authorization: Bearer header.
func ExtractToken(r *http.Request) string {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
