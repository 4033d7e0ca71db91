package log

import (
	"context"
	"log/slog"
)

// dedupHandler drops attributes whose key is already bound on the logger, so
// a request logger carrying user_id does not repeat it when a call site adds
// the same field. The first bound value wins.
type dedupHandler struct {
	inner slog.Handler
	bound map[string]struct{}
}

func newDedupHandler(h slog.Handler) slog.Handler {
	if d, ok := h.(*dedupHandler); ok {
		return d
	}
	return &dedupHandler{inner: h, bound: map[string]struct{}{}}
}

func (h *dedupHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *dedupHandler) Handle(ctx context.Context, r slog.Record) error {
	if len(h.bound) == 0 {
		return h.inner.Handle(ctx, r)
	}
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	seen := make(map[string]struct{}, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		if _, ok := h.bound[a.Key]; ok {
			return true
		}
		if _, ok := seen[a.Key]; ok {
			return true
		}
		seen[a.Key] = struct{}{}
		out.AddAttrs(a)
		return true
	})
	return h.inner.Handle(ctx, out)
}

func (h *dedupHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make(map[string]struct{}, len(h.bound)+len(attrs))
	for k := range h.bound {
		bound[k] = struct{}{}
	}
	kept := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		if _, ok := bound[a.Key]; ok {
			continue
		}
		bound[a.Key] = struct{}{}
		kept = append(kept, a)
	}
	return &dedupHandler{inner: h.inner.WithAttrs(kept), bound: bound}
}

// WithGroup starts a fresh key space: grouped keys cannot collide with the
// bound top-level ones.
func (h *dedupHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &dedupHandler{inner: h.inner.WithGroup(name), bound: map[string]struct{}{}}
}
