package logging

import (
	"log/slog"
	"os"
)

// Setup installs a JSON slog logger on stdout. Development runs log at DEBUG.
func Setup(env string) {
	slog.SetDefault(slog.New(StdoutHandler(env)))
}

// StdoutHandler is the stdout sink shared by Setup and the fan-out logger
// installed once the database is reachable.
func StdoutHandler(env string) slog.Handler {
	level := slog.LevelInfo
	if env == "development" {
		level = slog.LevelDebug
	}
	return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
}
