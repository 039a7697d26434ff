package session

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestMemoryStorePushOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)
	user := uuid.New()
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	if err := s.Push(ctx, user, a, b); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := s.Push(ctx, user, a); err != nil {
		t.Fatalf("push again: %v", err)
	}
	got, _ := s.Recent(ctx, user)
	want := []uuid.UUID{a, b}
	if len(got) != len(want) {
		t.Fatalf("len: want=%d got=%d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("recent[%d]: want=%s got=%s", i, want[i], got[i])
		}
	}

	_ = s.Push(ctx, user, c, d)
	got, _ = s.Recent(ctx, user)
	if len(got) != 3 {
		t.Fatalf("capped len: want=3 got=%d", len(got))
	}
	if got[0] != d || Contains(got, b) {
		t.Fatalf("expected newest first and oldest evicted, got %v", got)
	}
}

func TestMemoryStoreIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(5)
	u1, u2 := uuid.New(), uuid.New()
	_ = s.Push(ctx, u1, uuid.New())

	got, err := s.Recent(ctx, u2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("other user: want=0 got=%d", len(got))
	}
}

func TestRedisKey(t *testing.T) {
	id := uuid.MustParse("7b1d3c64-6a57-4d8e-9a44-0a5d8b5f6f10")
	want := "recent_recommendations:7b1d3c64-6a57-4d8e-9a44-0a5d8b5f6f10"
	if got := key(id); got != want {
		t.Fatalf("key: want=%s got=%s", want, got)
	}
}
