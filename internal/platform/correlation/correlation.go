// Package correlation tags log records with the connection they belong to.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

type contextKey struct{}

// Fields identifies one client connection in logs.
type Fields struct {
	ConnID   string
	Identity string
	Address  string
}

// NewID generates an 8-character hex connection ID (4 random bytes).
func NewID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// WithFields returns a new context carrying the given connection fields.
func WithFields(ctx context.Context, f Fields) context.Context {
	return context.WithValue(ctx, contextKey{}, f)
}

// FromContext extracts the connection fields from ctx, returning false if none are set.
func FromContext(ctx context.Context) (Fields, bool) {
	f, ok := ctx.Value(contextKey{}).(Fields)
	return f, ok && f.ConnID != ""
}

// Handler wraps an existing slog.Handler and appends conn_id, identity and
// address attributes when the context carries connection fields.
type Handler struct {
	inner slog.Handler
}

func NewHandler(inner slog.Handler) *Handler {
	return &Handler{inner: inner}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if f, ok := FromContext(ctx); ok {
		r.AddAttrs(slog.String("conn_id", f.ConnID))
		if f.Identity != "" {
			r.AddAttrs(slog.String("identity", f.Identity))
		}
		if f.Address != "" {
			r.AddAttrs(slog.String("address", f.Address))
		}
	}
	if err := h.inner.Handle(ctx, r); err != nil {
		return fmt.Errorf("correlation handler: %w", err)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{inner: h.inner.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name)}
}
