// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/huddlehq/huddle/internal/errreport"
)

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to w. Format "text" selects the colored tint
// handler for local development; anything else writes JSON. A non-nil reporter
// also receives error-level records.
func New(w io.Writer, level, format string, reporter errreport.Reporter) *slog.Logger {
	lvl := ParseLevel(level)

	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = tint.NewHandler(w, &tint.Options{Level: lvl, TimeFormat: time.Kitchen})
	} else {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	}
	if reporter != nil {
		if _, nop := reporter.(errreport.Nop); !nop {
			h = errreport.NewHandler(h, reporter)
		}
	}
	return slog.New(h)
}

// Setup installs a stdout logger as the slog default.
func Setup(level, format string, reporter errreport.Reporter) {
	slog.SetDefault(New(os.Stdout, level, format, reporter))
}
