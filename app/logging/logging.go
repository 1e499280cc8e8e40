// Package logging builds the leveled logger shared by the server and its stores.
package logging

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/handlers"
)

// New returns a logger writing to w with the given level and format names.
func New(w io.Writer, level, format string) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           ParseLevel(level),
		Formatter:       ParseFormatter(format),
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Prefix:          "todo-api",
	})
}

// ParseLevel parses a level name, falling back to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// ParseFormatter parses a formatter name, falling back to text.
func ParseFormatter(format string) log.Formatter {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// Requests logs one line per handled request. The response writer is wrapped
// by gorilla/handlers, which keeps optional interfaces such as http.Flusher.
func Requests(logger *log.Logger) func(http.Handler) http.Handler {
	format := func(_ io.Writer, p handlers.LogFormatterParams) {
		logger.Info("request",
			"method", p.Request.Method,
			"path", p.URL.Path,
			"status", p.StatusCode,
			"size", p.Size,
			"duration", time.Since(p.TimeStamp).Round(time.Microsecond),
		)
	}
	return func(next http.Handler) http.Handler {
		return handlers.CustomLoggingHandler(io.Discard, next, format)
	}
}
