package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// RequestInfo carries the scheme and host of the current HTTP request so media
// URLs can be built against it. A nil *RequestInfo means no request context.
type RequestInfo struct {
	Scheme string
	Host   string
}

// Upload is a file received with a request.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// Storage persists uploaded media.
type Storage interface {
	Save(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(key string, req *RequestInfo) *string
}

// mediaKey builds a collision-free object key under prefix keeping the
// original extension.
func mediaKey(prefix string, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(prefix, uuid.New().String()+ext)
}

// deleteMedia removes keys after a commit. Failures only leave orphans
// behind, so they are logged and swallowed.
func deleteMedia(ctx context.Context, storage Storage, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := storage.Delete(ctx, key); err != nil {
			slog.Warn("media delete failed", "key", key, "error", err)
		}
	}
}

// LocalStorage keeps media on disk under dir and serves it from /media.
type LocalStorage struct {
	dir    string
	domain string
}

func NewLocalStorage(dir, domain string) *LocalStorage {
	return &LocalStorage{dir: dir, domain: strings.TrimRight(domain, "/")}
}

func (s *LocalStorage) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid media key %q", key)
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *LocalStorage) Save(_ context.Context, key string, body io.Reader, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create media dir: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("create media file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("write media file: %w", err)
	}
	return f.Close()
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// URL resolves against the request host when one is known, otherwise against
// the configured media domain. An empty key has no URL.
func (s *LocalStorage) URL(key string, req *RequestInfo) *string {
	if key == "" {
		return nil
	}
	base := s.domain
	if req != nil && req.Host != "" {
		scheme := req.Scheme
		if scheme == "" {
			scheme = "http"
		}
		base = scheme + "://" + req.Host
	}
	u := base + "/media/" + strings.TrimLeft(key, "/")
	return &u
}

// Dir is the directory the HTTP layer serves under /media.
func (s *LocalStorage) Dir() string { return s.dir }
