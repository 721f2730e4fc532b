package logging

import (
	"context"
	"errors"
	"log/slog"
)

// ContextProvider returns attributes that change while the process runs,
// such as the current frame.
type ContextProvider func() []slog.Attr

// ContextHandler appends the provider's attributes to every record.
type ContextHandler struct {
	slog.Handler
	provider ContextProvider
}

// NewContextHandler wraps inner. A nil provider adds nothing.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{Handler: inner, provider: provider}
}

// Handle adds the provider's attributes and passes r on.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		if attrs := h.provider(); len(attrs) > 0 {
			r.AddAttrs(attrs...)
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewContextHandler(h.Handler.WithAttrs(attrs), h.provider)
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return NewContextHandler(h.Handler.WithGroup(name), h.provider)
}

// Fanout sends each record to every handler enabled for its level.
type Fanout []slog.Handler

// NewFanout drops nil handlers.
func NewFanout(handlers ...slog.Handler) Fanout {
	f := make(Fanout, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			f = append(f, h)
		}
	}
	return f
}

// Enabled reports whether any handler wants the level.
func (f Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers r to every enabled handler, even after one fails, and
// returns the joined failures.
func (f Fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f Fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f Fanout) each(fn func(slog.Handler) slog.Handler) Fanout {
	out := make(Fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}

// leveled gates a handler that has no level option of its own.
type leveled struct {
	slog.Handler
	level slog.Leveler
}

func (h leveled) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() && h.Handler.Enabled(ctx, level)
}

func (h leveled) WithAttrs(attrs []slog.Attr) slog.Handler {
	return leveled{Handler: h.Handler.WithAttrs(attrs), level: h.level}
}

func (h leveled) WithGroup(name string) slog.Handler {
	return leveled{Handler: h.Handler.WithGroup(name), level: h.level}
}
