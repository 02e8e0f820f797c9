package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/streamhub-be/internal/account"
	"github.com/hongminglow/streamhub-be/internal/auth"
	"github.com/hongminglow/streamhub-be/internal/config"
	"github.com/hongminglow/streamhub-be/internal/credentials"
	"github.com/hongminglow/streamhub-be/internal/media"
	"github.com/hongminglow/streamhub-be/internal/middleware"
	"github.com/hongminglow/streamhub-be/internal/storage/memory"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

type stubUploader struct{}

func (stubUploader) Upload(_ context.Context, folder string, f media.File) (media.Object, error) {
	key := folder + "/" + f.Name
	return media.Object{Key: key, URL: "https://cdn.example/" + key}, nil
}

func (stubUploader) Delete(context.Context, string) error { return nil }

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []string        `json:"errors"`
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.Config{
		Tokens: config.TokenConfig{
			Issuer:        "test",
			AccessSecret:  "access-secret",
			AccessTTL:     time.Minute,
			RefreshSecret: "refresh-secret",
			RefreshTTL:    time.Hour,
		},
		Cookies:        config.CookieConfig{Secure: true},
		UploadMaxBytes: 1 << 20,
	}
	log := zap.NewNop()
	store := memory.New()
	creds := credentials.NewStore(store, bcrypt.MinCost)
	tokens := auth.NewTokenManager(cfg.Tokens, creds)
	svc := account.NewService(creds, tokens, store, stubUploader{}, log)

	r := chi.NewRouter()
	NewAccountHandler(svc, middleware.NewSession(tokens, creds, log), cfg, log).Register(r)
	NewHealthHandler(time.Now(), store, log).Register(r)
	return r
}

func registerRequest(t *testing.T, fields map[string]string, avatar []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if avatar != nil {
		fw, err := mw.CreateFormFile("avatar", "avatar.png")
		require.NoError(t, err)
		_, err = fw.Write(avatar)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/register", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func jsonRequest(t *testing.T, method, path string, payload any) *http.Request {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	r := httptest.NewRequest(method, path, &body)
	r.Header.Set("Content-Type", "application/json")
	return r
}

func serve(h http.Handler, r *http.Request) (*httptest.ResponseRecorder, envelope) {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func register(t *testing.T, h http.Handler, userName, email string) {
	t.Helper()
	rec, _ := serve(h, registerRequest(t, map[string]string{
		"fullName": strings.ToUpper(userName[:1]) + userName[1:],
		"email":    email,
		"password": "p1",
		"userName": userName,
	}, pngHeader))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

type session struct {
	access  string
	refresh string
}

func login(t *testing.T, h http.Handler, userName, password string) session {
	t.Helper()
	rec, env := serve(h, jsonRequest(t, http.MethodPost, "/login", map[string]string{
		"userName": userName,
		"password": password,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return session{access: data.AccessToken, refresh: data.RefreshToken}
}

func (s session) authorize(r *http.Request) *http.Request {
	r.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: s.access})
	return r
}

func TestRegister(t *testing.T) {
	h := newRouter(t)

	rec, env := serve(h, registerRequest(t, map[string]string{
		"fullName": "Alice A",
		"email":    "Alice@X.com",
		"password": "p1",
		"userName": "Alice",
	}, pngHeader))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, http.StatusCreated, env.StatusCode)
	assert.NotContains(t, string(env.Data), "password")
	assert.NotContains(t, string(env.Data), "refreshToken")

	var user map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "alice", user["userName"])
	assert.Equal(t, "alice@x.com", user["email"])
	assert.Equal(t, "https://cdn.example/avatars/avatar.png", user["avatarUrl"])

	t.Run("duplicate", func(t *testing.T) {
		rec, env := serve(h, registerRequest(t, map[string]string{
			"fullName": "Other",
			"email":    "alice@x.com",
			"password": "p2",
			"userName": "someone",
		}, pngHeader))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.False(t, env.Success)
	})

	t.Run("missing avatar", func(t *testing.T) {
		rec, _ := serve(h, registerRequest(t, map[string]string{
			"fullName": "Bob",
			"email":    "bob@x.com",
			"password": "p1",
			"userName": "bob",
		}, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("avatar not an image", func(t *testing.T) {
		rec, env := serve(h, registerRequest(t, map[string]string{
			"fullName": "Bob",
			"email":    "bob@x.com",
			"password": "p1",
			"userName": "bob",
		}, []byte("plain text, not a picture")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, []string{"avatar"}, env.Errors)
	})

	t.Run("not multipart", func(t *testing.T) {
		rec, _ := serve(h, jsonRequest(t, http.MethodPost, "/register", map[string]string{"userName": "bob"}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLogin(t *testing.T) {
	h := newRouter(t)
	register(t, h, "alice", "alice@x.com")

	t.Run("wrong password", func(t *testing.T) {
		rec, env := serve(h, jsonRequest(t, http.MethodPost, "/login", map[string]string{
			"userName": "alice",
			"password": "nope",
		}))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
		assert.Equal(t, "invalid user credentials", env.Message)
	})

	t.Run("unknown user looks the same", func(t *testing.T) {
		rec, env := serve(h, jsonRequest(t, http.MethodPost, "/login", map[string]string{
			"userName": "ghost",
			"password": "p1",
		}))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid user credentials", env.Message)
	})

	t.Run("malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("{"))
		rec, _ := serve(h, r)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("by email sets cookies", func(t *testing.T) {
		rec, env := serve(h, jsonRequest(t, http.MethodPost, "/login", map[string]string{
			"email":    "ALICE@x.com",
			"password": "p1",
		}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotContains(t, string(env.Data), "password")

		access := cookieNamed(rec, middleware.AccessTokenCookie)
		refresh := cookieNamed(rec, RefreshTokenCookie)
		require.NotNil(t, access)
		require.NotNil(t, refresh)
		assert.True(t, access.HttpOnly)
		assert.True(t, access.Secure)
		assert.Equal(t, "/", access.Path)
		assert.Equal(t, 60, access.MaxAge)
		assert.Equal(t, 3600, refresh.MaxAge)
	})
}

func TestMe(t *testing.T) {
	h := newRouter(t)
	register(t, h, "alice", "alice@x.com")
	s := login(t, h, "alice", "p1")

	rec, _ := serve(h, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	first, _ := serve(h, s.authorize(httptest.NewRequest(http.MethodGet, "/me", nil)))
	second, _ := serve(h, s.authorize(httptest.NewRequest(http.MethodGet, "/me", nil)))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	bearer := httptest.NewRequest(http.MethodGet, "/me", nil)
	bearer.Header.Set("Authorization", "Bearer "+s.access)
	rec, env := serve(h, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"userName":"alice"`)

	wrongKind := httptest.NewRequest(http.MethodGet, "/me", nil)
	wrongKind.Header.Set("Authorization", "Bearer "+s.refresh)
	rec, _ = serve(h, wrongKind)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutRevokesRefresh(t *testing.T) {
	h := newRouter(t)
	register(t, h, "alice", "alice@x.com")
	s := login(t, h, "alice", "p1")

	rec, _ := serve(h, httptest.NewRequest(http.MethodPost, "/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := serve(h, s.authorize(httptest.NewRequest(http.MethodPost, "/logout", nil)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, env.Success)
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		c := cookieNamed(rec, name)
		require.NotNil(t, c, name)
		assert.Empty(t, c.Value)
		assert.Negative(t, c.MaxAge)
	}

	rec, _ = serve(h, jsonRequest(t, http.MethodPost, "/refresh-token", map[string]string{"refreshToken": s.refresh}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshToken(t *testing.T) {
	h := newRouter(t)
	register(t, h, "alice", "alice@x.com")
	s := login(t, h, "alice", "p1")

	t.Run("missing", func(t *testing.T) {
		rec, _ := serve(h, httptest.NewRequest(http.MethodPost, "/refresh-token", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	r := httptest.NewRequest(http.MethodPost, "/refresh-token", nil)
	r.AddCookie(&http.Cookie{Name: RefreshTokenCookie, Value: s.refresh})
	rec, env := serve(h, r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var pair struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &pair))
	assert.NotEqual(t, s.refresh, pair.RefreshToken)
	require.NotNil(t, cookieNamed(rec, RefreshTokenCookie))
	assert.Equal(t, pair.RefreshToken, cookieNamed(rec, RefreshTokenCookie).Value)

	t.Run("old token is superseded", func(t *testing.T) {
		rec, _ := serve(h, jsonRequest(t, http.MethodPost, "/refresh-token", map[string]string{"refreshToken": s.refresh}))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("new token works from body", func(t *testing.T) {
		rec, _ := serve(h, jsonRequest(t, http.MethodPost, "/refresh-token", map[string]string{"refreshToken": pair.RefreshToken}))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestChangePassword(t *testing.T) {
	h := newRouter(t)
	register(t, h, "alice", "alice@x.com")
	s := login(t, h, "alice", "p1")

	rec, _ := serve(h, s.authorize(jsonRequest(t, http.MethodPost, "/change-password", map[string]string{
		"oldPassword": "wrong",
		"newPassword": "p2",
	})))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serve(h, s.authorize(jsonRequest(t, http.MethodPost, "/change-password", map[string]string{
		"oldPassword": "p1",
	})))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(h, s.authorize(jsonRequest(t, http.MethodPost, "/change-password", map[string]string{
		"oldPassword": "p1",
		"newPassword": "p2",
	})))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = serve(h, jsonRequest(t, http.MethodPost, "/login", map[string]string{"userName": "alice", "password": "p1"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	login(t, h, "alice", "p2")
}

func TestChannelAndSubscriptions(t *testing.T) {
	h := newRouter(t)
	register(t, h, "alice", "alice@x.com")
	register(t, h, "bob", "bob@x.com")
	bob := login(t, h, "bob", "p1")

	type profile struct {
		UserName        string `json:"userName"`
		SubscriberCount int    `json:"subscriberCount"`
		IsSubscribed    bool   `json:"isSubscribed"`
	}
	fetch := func(r *http.Request) profile {
		t.Helper()
		rec, env := serve(h, r)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var p profile
		require.NoError(t, json.Unmarshal(env.Data, &p))
		return p
	}

	p := fetch(httptest.NewRequest(http.MethodGet, "/channel/Alice", nil))
	assert.Equal(t, "alice", p.UserName)
	assert.Zero(t, p.SubscriberCount)
	assert.False(t, p.IsSubscribed)

	rec, _ := serve(h, httptest.NewRequest(http.MethodPost, "/channel/alice/subscribe", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = serve(h, bob.authorize(httptest.NewRequest(http.MethodPost, "/channel/alice/subscribe", nil)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	p = fetch(bob.authorize(httptest.NewRequest(http.MethodGet, "/channel/alice", nil)))
	assert.Equal(t, 1, p.SubscriberCount)
	assert.True(t, p.IsSubscribed)

	p = fetch(httptest.NewRequest(http.MethodGet, "/channel/alice", nil))
	assert.Equal(t, 1, p.SubscriberCount)
	assert.False(t, p.IsSubscribed)

	rec, _ = serve(h, bob.authorize(httptest.NewRequest(http.MethodPost, "/channel/bob/subscribe", nil)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = serve(h, bob.authorize(httptest.NewRequest(http.MethodDelete, "/channel/alice/subscribe", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, fetch(httptest.NewRequest(http.MethodGet, "/channel/alice", nil)).SubscriberCount)

	rec, env := serve(h, httptest.NewRequest(http.MethodGet, "/channel/nobody", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "channel does not exist", env.Message)
}

func TestHealth(t *testing.T) {
	h := newRouter(t)
	rec, env := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"status":"ok"`)
}
