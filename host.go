package domkit

import (
	"context"
	"encoding/json"
)

// Host is the embedding application that supplies payloads and receives
// results. Every call may block on the host and may fail.
type Host interface {
	// FetchPayload returns the data for the current operation: a head or
	// create payload for builds, a read payload for extraction.
	FetchPayload(ctx context.Context) (json.RawMessage, error)

	// DeliverResult sends a result or status payload back to the host.
	DeliverResult(ctx context.Context, result any) error

	// Log forwards a diagnostic message. It is best effort: it never
	// returns an error and must not block the caller.
	Log(ctx context.Context, message string)

	// Invoke dispatches a named host-side route. Callers do not observe
	// its completion beyond the returned error.
	Invoke(ctx context.Context, route string, args []any, kwargs map[string]any) error
}

// Operation names a session entry point the host can trigger.
type Operation string

// Session operations.
const (
	OpLoadHead Operation = "head"
	OpCreate   Operation = "create"
	OpRead     Operation = "read"
)

// ParseOperation maps a host-supplied name to an Operation. "loading" is
// accepted as an alias for the head load.
func ParseOperation(name string) (Operation, error) {
	switch name {
	case "head", "loading":
		return OpLoadHead, nil
	case "create":
		return OpCreate, nil
	case "read":
		return OpRead, nil
	}
	return "", Errorf(EINVALID, "unknown operation %q", name)
}
