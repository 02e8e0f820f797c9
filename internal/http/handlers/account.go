package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hongminglow/streamhub-be/internal/account"
	"github.com/hongminglow/streamhub-be/internal/apperr"
	"github.com/hongminglow/streamhub-be/internal/auth"
	"github.com/hongminglow/streamhub-be/internal/config"
	"github.com/hongminglow/streamhub-be/internal/http/respond"
	"github.com/hongminglow/streamhub-be/internal/media"
	"github.com/hongminglow/streamhub-be/internal/middleware"
	"github.com/hongminglow/streamhub-be/internal/models/dto"
)

// RefreshTokenCookie is the cookie carrying the refresh token.
const RefreshTokenCookie = "refreshToken"

// AccountHandler owns the account and channel endpoints.
type AccountHandler struct {
	svc            *account.Service
	session        *middleware.Session
	cookies        config.CookieConfig
	accessTTL      time.Duration
	refreshTTL     time.Duration
	uploadMaxBytes int64
	log            *zap.Logger
}

// NewAccountHandler constructs the handler.
func NewAccountHandler(svc *account.Service, session *middleware.Session, cfg config.Config, log *zap.Logger) *AccountHandler {
	return &AccountHandler{
		svc:            svc,
		session:        session,
		cookies:        cfg.Cookies,
		accessTTL:      cfg.Tokens.AccessTTL,
		refreshTTL:     cfg.Tokens.RefreshTTL,
		uploadMaxBytes: cfg.UploadMaxBytes,
		log:            log,
	}
}

// Register attaches account routes to r.
func (h *AccountHandler) Register(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/refresh-token", h.handleRefresh)
	r.With(h.session.Optional).Get("/channel/{userName}", h.handleChannel)

	r.Group(func(r chi.Router) {
		r.Use(h.session.Require)
		r.Post("/logout", h.handleLogout)
		r.Post("/change-password", h.handleChangePassword)
		r.Get("/me", h.handleMe)
		r.Post("/channel/{userName}/subscribe", h.handleSubscribe)
		r.Delete("/channel/{userName}/subscribe", h.handleUnsubscribe)
	})
}

func (h *AccountHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	form, err := media.ParseForm(w, r, h.uploadMaxBytes)
	if err != nil {
		respond.Error(w, h.log, apperr.Validation("invalid multipart form"))
		return
	}
	defer func() {
		if err := form.Release(); err != nil {
			h.log.Warn("failed to release upload temp files", zap.Error(err))
		}
	}()

	avatar, err := form.Image("avatar")
	if err != nil {
		respond.Error(w, h.log, imageError("avatar", err))
		return
	}
	cover, err := form.Image("coverImage")
	if err != nil {
		respond.Error(w, h.log, imageError("coverImage", err))
		return
	}

	user, err := h.svc.Register(r.Context(), account.RegisterInput{
		FullName:   form.Value("fullName"),
		Email:      form.Value("email"),
		Password:   form.Value("password"),
		UserName:   form.Value("userName"),
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "User registered successfully", user)
}

func (h *AccountHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, h.log, apperr.Validation("invalid JSON payload"))
		return
	}
	res, err := h.svc.Login(r.Context(), account.LoginInput{
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	h.setSessionCookies(w, res.Tokens)
	respond.JSON(w, http.StatusOK, "User logged in successfully", dto.LoginResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	})
}

func (h *AccountHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.CurrentUser(r.Context())
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	if err := h.svc.Logout(r.Context(), user.ID); err != nil {
		respond.Error(w, h.log, err)
		return
	}
	h.clearSessionCookies(w)
	respond.JSON(w, http.StatusOK, "User logged out", nil)
}

func (h *AccountHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		var req dto.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respond.Error(w, h.log, apperr.Validation("invalid JSON payload"))
			return
		}
		token = req.RefreshToken
	}

	pair, err := h.svc.RefreshAccessToken(r.Context(), token)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	h.setSessionCookies(w, pair)
	respond.JSON(w, http.StatusOK, "Access token refreshed", dto.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AccountHandler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, h.log, apperr.Validation("invalid JSON payload"))
		return
	}
	user, err := h.svc.CurrentUser(r.Context())
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Password changed successfully", nil)
}

func (h *AccountHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.CurrentUser(r.Context())
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Current user fetched successfully", user)
}

func (h *AccountHandler) handleChannel(w http.ResponseWriter, r *http.Request) {
	var viewerID string
	if viewer, ok := middleware.UserFromContext(r.Context()); ok {
		viewerID = viewer.ID
	}
	profile, err := h.svc.ChannelProfile(r.Context(), chi.URLParam(r, "userName"), viewerID)
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Channel fetched successfully", profile)
}

func (h *AccountHandler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	h.changeSubscription(w, r, h.svc.Subscribe, "Subscribed")
}

func (h *AccountHandler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	h.changeSubscription(w, r, h.svc.Unsubscribe, "Unsubscribed")
}

type subscriptionFunc func(ctx context.Context, subscriberID, userName string) error

func (h *AccountHandler) changeSubscription(w http.ResponseWriter, r *http.Request, change subscriptionFunc, message string) {
	user, err := h.svc.CurrentUser(r.Context())
	if err != nil {
		respond.Error(w, h.log, err)
		return
	}
	if err := change(r.Context(), user.ID, chi.URLParam(r, "userName")); err != nil {
		respond.Error(w, h.log, err)
		return
	}
	respond.JSON(w, http.StatusOK, message, nil)
}

func (h *AccountHandler) setSessionCookies(w http.ResponseWriter, pair auth.TokenPair) {
	http.SetCookie(w, h.cookie(middleware.AccessTokenCookie, pair.AccessToken, h.accessTTL))
	http.SetCookie(w, h.cookie(RefreshTokenCookie, pair.RefreshToken, h.refreshTTL))
}

func (h *AccountHandler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		c := h.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func (h *AccountHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cookies.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func imageError(field string, err error) error {
	if errors.Is(err, media.ErrNotImage) {
		return apperr.Validation(field+" must be an image", field)
	}
	return apperr.Validation("failed to read "+field, field)
}
