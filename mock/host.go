package mock

import (
	"context"
	"encoding/json"

	"github.com/fwojciec/domkit"
)

var _ domkit.Host = (*Host)(nil)

// Host is a mock implementation of domkit.Host.
// LogFn may be left nil; Log is then a no-op.
type Host struct {
	FetchPayloadFn  func(ctx context.Context) (json.RawMessage, error)
	DeliverResultFn func(ctx context.Context, result any) error
	LogFn           func(ctx context.Context, message string)
	InvokeFn        func(ctx context.Context, route string, args []any, kwargs map[string]any) error
}

func (h *Host) FetchPayload(ctx context.Context) (json.RawMessage, error) {
	return h.FetchPayloadFn(ctx)
}

func (h *Host) DeliverResult(ctx context.Context, result any) error {
	return h.DeliverResultFn(ctx, result)
}

func (h *Host) Log(ctx context.Context, message string) {
	if h.LogFn != nil {
		h.LogFn(ctx, message)
	}
}

func (h *Host) Invoke(ctx context.Context, route string, args []any, kwargs map[string]any) error {
	return h.InvokeFn(ctx, route, args, kwargs)
}
