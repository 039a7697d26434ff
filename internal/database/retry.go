package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrBusy is returned once a transaction kept hitting lock contention.
var ErrBusy = errors.New("service busy, try again")

// IsTransient reports whether err is a write-lock conflict worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03": // serialization_failure, deadlock_detected, lock_not_available
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}

// Retrier reruns whole transactions on transient lock errors.
type Retrier struct {
	Attempts int
	Delay    time.Duration
}

// Transaction runs fn in a transaction, retrying up to Attempts times with a
// fixed Delay. Non-transient errors return immediately. After the last failed
// attempt the error wraps ErrBusy.
func (r Retrier) Transaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; ; attempt++ {
		err := db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt >= attempts {
			slog.Warn("transaction gave up after lock contention", "attempts", attempt, "error", err)
			return fmt.Errorf("%w: %v", ErrBusy, err)
		}
		slog.Warn("transaction hit lock contention, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.Delay):
		}
	}
}
