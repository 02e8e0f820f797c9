package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/streamhub-be/internal/account"
	"github.com/hongminglow/streamhub-be/internal/apperr"
	"github.com/hongminglow/streamhub-be/internal/auth"
	"github.com/hongminglow/streamhub-be/internal/config"
	"github.com/hongminglow/streamhub-be/internal/credentials"
	"github.com/hongminglow/streamhub-be/internal/http/handlers"
	"github.com/hongminglow/streamhub-be/internal/http/respond"
	"github.com/hongminglow/streamhub-be/internal/media"
	"github.com/hongminglow/streamhub-be/internal/middleware"
	"github.com/hongminglow/streamhub-be/internal/storage"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, store storage.Store, uploader media.Uploader, log *zap.Logger) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           NewRouter(cfg, store, uploader, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return &Server{inner: httpServer}
}

// NewRouter builds the HTTP handler tree.
func NewRouter(cfg config.Config, store storage.Store, uploader media.Uploader, log *zap.Logger) http.Handler {
	creds := credentials.NewStore(store, bcrypt.DefaultCost)
	tokens := auth.NewTokenManager(cfg.Tokens, creds)
	svc := account.NewService(creds, tokens, store, uploader, log)
	session := middleware.NewSession(tokens, creds, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, log, apperr.NotFound("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, log, apperr.New(apperr.KindMethodNotAllowed, "method not allowed"))
	})

	handlers.NewHealthHandler(time.Now(), store, log).Register(r)
	handlers.NewAccountHandler(svc, session, cfg, log).Register(r)
	return r
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
