// Package logging provides docq's structured logger built on [log/slog].
// It is configured once per command via [New] and distributed through
// context values using [WithLogger] / [FromContext].
//
// Environment variables, with a DOCQ_-prefixed form that wins over the
// generic one so docq can be tuned independently of other services sharing
// the environment:
//
//	DOCQ_LOG_LEVEL  / LOG_LEVEL  = debug | info | warn | error  (default: info)
//	DOCQ_LOG_FORMAT / LOG_FORMAT = json | text                  (default: json)
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// contextKey is an unexported type for context keys in this package.
type contextKey struct{}

// New constructs a [*slog.Logger] from environment variables.
// The format selects the handler (json for production, text for local use);
// the level sets the minimum severity.
func New() *slog.Logger {
	level := parseLevel(envFirst("DOCQ_LOG_LEVEL", "LOG_LEVEL"))

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(envFirst("DOCQ_LOG_FORMAT", "LOG_FORMAT")) == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// envFirst returns the first non-empty value among the named environment
// variables.
func envFirst(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the [*slog.Logger] stored in ctx.
// If no logger is present it returns [slog.Default] so callers never
// need to nil-check.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// parseLevel converts a string to a [slog.Level], defaulting to Info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
