// Package media uploads user images to object storage.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hongminglow/streamhub-be/internal/config"
)

// ErrDisabled is returned by the uploader used when no backend is configured.
var ErrDisabled = errors.New("media uploads are disabled")

// File is an upload candidate.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Object identifies a stored upload.
type Object struct {
	Key string
	URL string
}

// Uploader stores and removes media objects.
type Uploader interface {
	Upload(ctx context.Context, folder string, f File) (Object, error)
	Delete(ctx context.Context, key string) error
}

// New builds the uploader selected by cfg.Backend.
func New(ctx context.Context, cfg config.MediaConfig, log *zap.Logger) (Uploader, error) {
	switch cfg.Backend {
	case config.MediaS3:
		return NewS3(ctx, cfg)
	case config.MediaMinIO:
		return NewMinIO(ctx, cfg, log)
	case config.MediaNone:
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Backend)
	}
}

// Disabled rejects every upload.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, File) (Object, error) { return Object{}, ErrDisabled }

func (Disabled) Delete(context.Context, string) error { return nil }

// ObjectKey returns a unique key under folder keeping the file's extension.
func ObjectKey(folder, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("%s/%d/%02d/%s%s", strings.Trim(folder, "/"), now.Year(), now.Month(), uuid.NewString(), ext)
}

// PublicURL joins base and key, trimming duplicate slashes.
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
