package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Lock contention retry on instance/recommendation writes
	LockRetryAttempts int
	LockRetryDelay    time.Duration

	// JWT
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	// Admin
	AdminEmails string

	// Media
	MediaBackend string
	MediaDir     string
	MediaDomain  string
	S3Bucket     string
	S3Endpoint   string

	// Session store for recently shown recommendations
	RedisAddr   string
	RecentLimit int
	RecentTTL   time.Duration

	// Activity event stream
	KafkaBrokers       string
	KafkaActivityTopic string

	// Server
	Port        string
	CORSOrigins string
	AppEnv      string
	SentryDSN   string

	// Template catalog seeded at startup
	TemplatesSeedPath string
}

func Load() *Config {
	return &Config{
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "healthcat_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "healthcat.db"),

		LockRetryAttempts: parseInt(getEnv("LOCK_RETRY_ATTEMPTS", "3"), 3),
		LockRetryDelay:    parseDuration(getEnv("LOCK_RETRY_DELAY", "200ms"), 200*time.Millisecond),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:  parseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m"), 15*time.Minute),
		JWTRefreshExpiry: parseDuration(getEnv("JWT_REFRESH_EXPIRY", "168h"), 168*time.Hour),

		AdminEmails: getEnv("ADMIN_EMAILS", ""),

		MediaBackend: getEnv("MEDIA_BACKEND", "local"),
		MediaDir:     getEnv("MEDIA_DIR", "media"),
		MediaDomain:  getEnv("MEDIA_DOMAIN", "http://localhost:8080"),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),

		RedisAddr:   getEnv("REDIS_ADDR", ""),
		RecentLimit: parseInt(getEnv("RECENT_RECOMMENDATIONS_LIMIT", "20"), 20),
		RecentTTL:   parseDuration(getEnv("RECENT_RECOMMENDATIONS_TTL", "720h"), 720*time.Hour),

		KafkaBrokers:       getEnv("KAFKA_BROKERS", ""),
		KafkaActivityTopic: getEnv("KAFKA_ACTIVITY_TOPIC", "activity-logs"),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		AppEnv:      getEnv("APP_ENV", "development"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),

		TemplatesSeedPath: getEnv("TEMPLATES_SEED_PATH", ""),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// KafkaBrokerList splits KAFKA_BROKERS on commas.
func (c *Config) KafkaBrokerList() []string {
	if c.KafkaBrokers == "" {
		return nil
	}
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
