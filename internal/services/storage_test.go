package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalStorageURL(t *testing.T) {
	s := NewLocalStorage(t.TempDir(), "https://cdn.example.com/")
	tests := []struct {
		name string
		key  string
		req  *RequestInfo
		want string
	}{
		{name: "domain fallback", key: "training/a.mp4", want: "https://cdn.example.com/media/training/a.mp4"},
		{name: "request host", key: "training/a.mp4", req: &RequestInfo{Scheme: "https", Host: "api.example.com"}, want: "https://api.example.com/media/training/a.mp4"},
		{name: "request without scheme", key: "/x.png", req: &RequestInfo{Host: "localhost:3000"}, want: "http://localhost:3000/media/x.png"},
		{name: "empty request host", key: "x.png", req: &RequestInfo{}, want: "https://cdn.example.com/media/x.png"},
	}
	for _, tt := range tests {
		got := s.URL(tt.key, tt.req)
		if got == nil || *got != tt.want {
			t.Fatalf("%s: want=%s got=%v", tt.name, tt.want, got)
		}
	}
	if got := s.URL("", &RequestInfo{Host: "api.example.com"}); got != nil {
		t.Fatalf("empty key: want=nil got=%s", *got)
	}
}

func TestLocalStorageSaveDelete(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir, "")
	ctx := context.Background()

	key := mediaKey("recommendations/abc", "Advice.WEBM")
	if !strings.HasPrefix(key, "recommendations/abc/") || !strings.HasSuffix(key, ".webm") {
		t.Fatalf("mediaKey: got %s", key)
	}
	if err := s.Save(ctx, key, strings.NewReader("video"), "video/webm"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, key))
	if err != nil || string(data) != "video" {
		t.Fatalf("stored file: data=%q err=%v", data, err)
	}

	// Keys cannot escape the media directory.
	if err := s.Save(ctx, "../../escape.txt", strings.NewReader("x"), "text/plain"); err != nil {
		t.Fatalf("Save (dotdot): %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); err != nil {
		t.Fatalf("dot-dot key must resolve inside dir: %v", err)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete of missing file must succeed: %v", err)
	}
	if err := s.Save(ctx, "", strings.NewReader("x"), ""); err == nil {
		t.Fatalf("empty key must be rejected")
	}
}
