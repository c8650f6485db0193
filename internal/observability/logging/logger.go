package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// redactedKeys never reach the log output in clear text.
var redactedKeys = map[string]struct{}{
	"code":        {},
	"secret":      {},
	"claim_code":  {},
	"office_code": {},
	"password":    {},
}

func NewJSONLogger(service, level string) *slog.Logger {
	return NewJSONLoggerTo(os.Stdout, service, level)
}

func NewJSONLoggerTo(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: redact,
	})
	return slog.New(handler).With("service", service)
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := redactedKeys[strings.ToLower(a.Key)]; ok && a.Value.String() != "" {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
