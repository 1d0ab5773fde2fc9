package buslog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kigurumiguy/friendforge/bus"
	"github.com/kigurumiguy/friendforge/message"
)

// BusHandler is a slog.Handler that mirrors log records onto a bus.Bus
// as KindLog messages, so front-ends can surface engine warnings
// inside the conversation view. It wraps another handler which keeps
// writing to the original destination.
type BusHandler struct {
	bus      bus.Bus
	inner    slog.Handler
	minLevel slog.Level
	attrs    []slog.Attr
}

// NewBusHandler creates a new BusHandler. Records below minLevel are
// passed to the inner handler only.
func NewBusHandler(b bus.Bus, inner slog.Handler, minLevel slog.Level) *BusHandler {
	return &BusHandler{
		bus:      b,
		inner:    inner,
		minLevel: minLevel,
	}
}

// Enabled reports whether either destination wants the record.
func (h *BusHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel || h.inner.Enabled(ctx, level)
}

// Handle broadcasts the record to the bus when it reaches minLevel,
// then hands it to the inner handler.
func (h *BusHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.minLevel {
		var b strings.Builder
		fmt.Fprintf(&b, "[%s] %s", r.Level, r.Message)
		for _, a := range h.attrs {
			fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		}
		r.Attrs(func(a slog.Attr) bool {
			fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
			return true
		})

		// バスが詰まっていてもログは失わない。配送失敗は無視する。
		_ = h.bus.Broadcast(&message.Message{
			Text: b.String(),
			At:   time.Now(),
			Kind: message.KindLog,
		})
	}

	if h.inner.Enabled(ctx, r.Level) {
		return h.inner.Handle(ctx, r)
	}
	return nil
}

// WithAttrs returns a new BusHandler carrying the additional attributes.
func (h *BusHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &BusHandler{
		bus:      h.bus,
		inner:    h.inner.WithAttrs(attrs),
		minLevel: h.minLevel,
		attrs:    merged,
	}
}

// WithGroup returns a new BusHandler with the given group name.
// The bus side flattens groups; only the inner handler honors them.
func (h *BusHandler) WithGroup(name string) slog.Handler {
	return &BusHandler{
		bus:      h.bus,
		inner:    h.inner.WithGroup(name),
		minLevel: h.minLevel,
		attrs:    h.attrs,
	}
}

var _ slog.Handler = (*BusHandler)(nil)
