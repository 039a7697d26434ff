package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/config"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(&config.Config{DBDriver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{err: nil, want: false},
		{err: errors.New("database is locked"), want: true},
		{err: errors.New("record not found"), want: false},
		{err: &pgconn.PgError{Code: "40P01"}, want: true},
		{err: &pgconn.PgError{Code: "55P03"}, want: true},
		{err: &pgconn.PgError{Code: "23505"}, want: false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Fatalf("IsTransient(%v): want=%v got=%v", tt.err, tt.want, got)
		}
	}
}

func TestRetrierGivesUpAfterAttempts(t *testing.T) {
	db := openTestDB(t)
	calls := 0
	r := Retrier{Attempts: 3, Delay: time.Millisecond}
	err := r.Transaction(context.Background(), db, func(tx *gorm.DB) error {
		calls++
		return errors.New("database is locked")
	})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("want ErrBusy, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("attempts: want=3 got=%d", calls)
	}
}

func TestRetrierRecoversAndSkipsPermanentErrors(t *testing.T) {
	db := openTestDB(t)
	r := Retrier{Attempts: 3, Delay: time.Millisecond}

	calls := 0
	err := r.Transaction(context.Background(), db, func(tx *gorm.DB) error {
		calls++
		if calls < 2 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("want success on second attempt, got err=%v calls=%d", err, calls)
	}

	permanent := errors.New("validation failed")
	calls = 0
	err = r.Transaction(context.Background(), db, func(tx *gorm.DB) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("permanent errors must not retry: err=%v calls=%d", err, calls)
	}
}

func TestBootstrapGroupsIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := BootstrapGroups(db); err != nil {
		t.Fatalf("BootstrapGroups: %v", err)
	}
	var first int64
	db.Table("group_permissions").Count(&first)
	if err := BootstrapGroups(db); err != nil {
		t.Fatalf("BootstrapGroups (second run): %v", err)
	}
	var second int64
	db.Table("group_permissions").Count(&second)
	if first == 0 || first != second {
		t.Fatalf("group permissions: first=%d second=%d", first, second)
	}
}
