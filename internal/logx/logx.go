// Package logx hands out component-scoped structured loggers.
//
// Components log through the logger returned by Logger, which always resolves against
// the current slog default handler so that tests and the viewer can redirect output
// after package initialization.
package logx

import (
	"context"
	"io"
	"log/slog"
)

// componentHandler defers to slog.Default() at log time.
type componentHandler struct {
	attrs []slog.Attr
	group string
}

func (h *componentHandler) target() slog.Handler {
	t := slog.Default().Handler()
	if len(h.attrs) > 0 {
		t = t.WithAttrs(h.attrs)
	}
	if h.group != "" {
		t = t.WithGroup(h.group)
	}
	return t
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return slog.Default().Handler().Enabled(ctx, level)
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.target().Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &componentHandler{group: h.group}
	next.attrs = append(append(next.attrs, h.attrs...), attrs...)
	return next
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	return &componentHandler{attrs: h.attrs, group: name}
}

// Logger returns a logger tagged with component=name.
//
// Parameters:
//   - name: the component name, e.g. "shader" or "compute"
//
// Returns:
//   - *slog.Logger: a logger that writes through the current default handler
func Logger(name string) *slog.Logger {
	return slog.New(&componentHandler{attrs: []slog.Attr{slog.String("component", name)}})
}

// SetOutput installs a text handler writing to w at the given level as the default
// logger and returns a function restoring the previous default.
//
// Parameters:
//   - w: the destination writer
//   - level: the minimum level to emit
//
// Returns:
//   - func(): restores the previous default logger
func SetOutput(w io.Writer, level slog.Level) func() {
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return func() { slog.SetDefault(prev) }
}
