package logging

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
)

// SessionAttrs holds the view session state stamped on log records.
type SessionAttrs struct {
	id    string
	event atomic.Pointer[string]
}

// NewSessionAttrs creates attributes for the session with the given id.
func NewSessionAttrs(id string) *SessionAttrs {
	return &SessionAttrs{id: id}
}

// SetEvent records the event currently on display. Negative means all.
func (s *SessionAttrs) SetEvent(selector int) {
	v := "all"
	if selector >= 0 {
		v = strconv.Itoa(selector)
	}
	s.event.Store(&v)
}

// Attrs returns the current attributes.
func (s *SessionAttrs) Attrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("session", s.id)}
	if ev := s.event.Load(); ev != nil {
		attrs = append(attrs, slog.String("event", *ev))
	}
	return attrs
}

// SessionHandler wraps another handler and adds the session attributes
// to each record at the time it is logged.
type SessionHandler struct {
	inner slog.Handler
	attrs *SessionAttrs
}

// NewSessionHandler wraps inner.
func NewSessionHandler(inner slog.Handler, attrs *SessionAttrs) *SessionHandler {
	return &SessionHandler{inner: inner, attrs: attrs}
}

// Enabled delegates to the inner handler.
func (h *SessionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle adds the session attributes and delegates to the inner handler.
func (h *SessionHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.attrs.Attrs()...)
	return h.inner.Handle(ctx, r)
}

// WithAttrs returns a new SessionHandler with the given attributes.
func (h *SessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SessionHandler{inner: h.inner.WithAttrs(attrs), attrs: h.attrs}
}

// WithGroup returns a new SessionHandler with the given group.
func (h *SessionHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SessionHandler{inner: h.inner.WithGroup(name), attrs: h.attrs}
}
