package slog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fwojciec/domkit"
)

// Ensure LoggingHost implements domkit.Host.
var _ domkit.Host = (*LoggingHost)(nil)

// LoggingHost wraps a Host with logging of every bridge call.
type LoggingHost struct {
	next   domkit.Host
	logger *slog.Logger
}

// NewLoggingHost creates a new LoggingHost.
func NewLoggingHost(next domkit.Host, logger *slog.Logger) *LoggingHost {
	return &LoggingHost{next: next, logger: logger}
}

// FetchPayload delegates to the wrapped host and logs the payload size.
func (h *LoggingHost) FetchPayload(ctx context.Context) (payload json.RawMessage, err error) {
	defer func(begin time.Time) {
		h.logger.Debug("fetch payload",
			"bytes", len(payload),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return h.next.FetchPayload(ctx)
}

// DeliverResult delegates to the wrapped host and logs the outcome.
func (h *LoggingHost) DeliverResult(ctx context.Context, result any) (err error) {
	defer func(begin time.Time) {
		h.logger.Debug("deliver result",
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return h.next.DeliverResult(ctx, result)
}

// Log mirrors the message to the local logger before forwarding it.
func (h *LoggingHost) Log(ctx context.Context, message string) {
	h.logger.Info("host log", "message", message)
	h.next.Log(ctx, message)
}

// Invoke delegates to the wrapped host and logs the route.
func (h *LoggingHost) Invoke(ctx context.Context, route string, args []any, kwargs map[string]any) (err error) {
	defer func(begin time.Time) {
		h.logger.Debug("invoke",
			"route", route,
			"args", len(args),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return h.next.Invoke(ctx, route, args, kwargs)
}
