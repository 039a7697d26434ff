package logging

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/models"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(&config.Config{DBDriver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

type countingHandler struct {
	level slog.Level
	n     int
}

func (c *countingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= c.level }
func (c *countingHandler) Handle(context.Context, slog.Record) error { c.n++; return nil }
func (c *countingHandler) WithAttrs([]slog.Attr) slog.Handler { return c }
func (c *countingHandler) WithGroup(string) slog.Handler { return c }

func TestMultiHandlerRoutesByLevel(t *testing.T) {
	info := &countingHandler{level: slog.LevelInfo}
	errs := &countingHandler{level: slog.LevelError}
	logger := slog.New(NewMultiHandler(info, errs))

	logger.Info("hello")
	logger.Error("boom")

	if info.n != 2 {
		t.Fatalf("info handler: want=2 got=%d", info.n)
	}
	if errs.n != 1 {
		t.Fatalf("error handler: want=1 got=%d", errs.n)
	}
}

type failingHandler struct{ countingHandler }

func (f *failingHandler) Handle(ctx context.Context, r slog.Record) error {
	f.n++
	return errors.New("sink down")
}

func TestMultiHandlerKeepsDeliveringAfterSinkError(t *testing.T) {
	bad := &failingHandler{countingHandler{level: slog.LevelInfo}}
	good := &countingHandler{level: slog.LevelInfo}
	h := NewMultiHandler(bad, nil, good)

	var r slog.Record
	r.Level = slog.LevelError
	if err := h.Handle(context.Background(), r); err == nil {
		t.Fatalf("Handle: want error from failing sink")
	}
	if bad.n != 1 || good.n != 1 {
		t.Fatalf("deliveries: want=1/1 got=%d/%d", bad.n, good.n)
	}
}

func TestDBHandlerPersistsErrors(t *testing.T) {
	db := testDB(t)
	h := NewDBHandler(db)
	logger := slog.New(h).With("request_id", "req-1")

	logger.Info("ignored")
	logger.Error("save failed", "action", "recommendation.save", "error", "boom", "instance_id", "abc")
	h.Stop()

	var logs []models.SystemLog
	if err := db.Find(&logs).Error; err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("system logs: want=1 got=%d", len(logs))
	}
	got := logs[0]
	if got.RequestID != "req-1" || got.Action != "recommendation.save" || got.Error != "boom" {
		t.Fatalf("unexpected log row: %+v", got)
	}
}

func TestPurgeBefore(t *testing.T) {
	db := testDB(t)
	old := models.SystemLog{Timestamp: time.Now().AddDate(0, 0, -40), Level: "ERROR", Message: "old"}
	fresh := models.SystemLog{Timestamp: time.Now(), Level: "ERROR", Message: "fresh"}
	if err := db.Create(&[]models.SystemLog{old, fresh}).Error; err != nil {
		t.Fatalf("Create: %v", err)
	}
	deleted, err := PurgeBefore(db, time.Now().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("PurgeBefore: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("deleted: want=1 got=%d", deleted)
	}
}
