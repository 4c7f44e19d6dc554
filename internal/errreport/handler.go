package errreport

import (
	"context"
	"errors"
	"log/slog"
)

// Handler is a slog.Handler that also sends error-level records to a Reporter.
// The record's "error" attribute, when it holds an error, is reported as the
// cause; the message and remaining attributes go along as extras.
type Handler struct {
	next     slog.Handler
	reporter Reporter
	attrs    []slog.Attr
}

// NewHandler wraps next.
func NewHandler(next slog.Handler, reporter Reporter) *Handler {
	return &Handler{next: next, reporter: reporter}
}

// Enabled defers to the wrapped handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle writes the record and reports it when it is at error level or above.
func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	if rec.Level >= slog.LevelError {
		h.report(ctx, rec)
	}
	return h.next.Handle(ctx, rec)
}

func (h *Handler) report(ctx context.Context, rec slog.Record) {
	extras := map[string]any{"message": rec.Message}
	var cause error
	collect := func(a slog.Attr) bool {
		if a.Key == "error" {
			if err, ok := a.Value.Any().(error); ok {
				cause = err
				return true
			}
		}
		extras[a.Key] = a.Value.String()
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	rec.Attrs(collect)
	if cause == nil {
		cause = errors.New(rec.Message)
	}
	h.reporter.Error(ctx, cause, extras)
}

// WithAttrs returns a Handler whose records carry attrs.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &Handler{next: h.next.WithAttrs(attrs), reporter: h.reporter, attrs: merged}
}

// WithGroup returns a Handler that groups subsequent attributes.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), reporter: h.reporter, attrs: h.attrs}
}
