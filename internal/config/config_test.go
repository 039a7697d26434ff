package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LOCK_RETRY_ATTEMPTS", "")
	t.Setenv("LOCK_RETRY_DELAY", "")
	cfg := Load()
	if cfg.LockRetryAttempts != 3 {
		t.Fatalf("LockRetryAttempts: want=3 got=%d", cfg.LockRetryAttempts)
	}
	if cfg.LockRetryDelay != 200*time.Millisecond {
		t.Fatalf("LockRetryDelay: want=200ms got=%s", cfg.LockRetryDelay)
	}
	if cfg.DBDriver != "postgres" {
		t.Fatalf("DBDriver: want=postgres got=%s", cfg.DBDriver)
	}
}

func TestLoadOverridesAndFallbacks(t *testing.T) {
	t.Setenv("LOCK_RETRY_ATTEMPTS", "5")
	t.Setenv("LOCK_RETRY_DELAY", "not-a-duration")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,")
	cfg := Load()
	if cfg.LockRetryAttempts != 5 {
		t.Fatalf("LockRetryAttempts: want=5 got=%d", cfg.LockRetryAttempts)
	}
	if cfg.LockRetryDelay != 200*time.Millisecond {
		t.Fatalf("LockRetryDelay fallback: want=200ms got=%s", cfg.LockRetryDelay)
	}
	brokers := cfg.KafkaBrokerList()
	if len(brokers) != 2 || brokers[0] != "a:9092" || brokers[1] != "b:9092" {
		t.Fatalf("KafkaBrokerList: got %v", brokers)
	}
}
