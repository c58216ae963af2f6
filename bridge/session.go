// Package bridge runs host-triggered operations against a renderer and an
// extractor. Every entry point is guarded: failures are logged through the
// host and returned, and panics are recovered.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/domkit"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Steps named in host failure reports.
const (
	StepFetchPayload  = "fetch payload"
	StepDecodePayload = "decode payload"
	StepDeliverResult = "deliver result"
)

// headParent is where head payload children are attached.
const headParent = "head"

// DefaultDispatchLimit bounds how many detached invokes run at once.
const DefaultDispatchLimit = 8

// Session wires a host to a renderer and an extractor. Operations run on
// the caller's goroutine; only Call starts background work.
type Session struct {
	host      domkit.Host
	renderer  domkit.Renderer
	extractor domkit.Extractor
	logger    *slog.Logger
	tasks     errgroup.Group
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger for operation events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithDispatchLimit bounds concurrent detached invokes. Call blocks while
// the limit is reached. A non-positive n removes the limit.
func WithDispatchLimit(n int) Option {
	return func(s *Session) {
		if n <= 0 {
			n = -1
		}
		s.tasks.SetLimit(n)
	}
}

// NewSession creates a Session.
func NewSession(host domkit.Host, renderer domkit.Renderer, extractor domkit.Extractor, opts ...Option) *Session {
	s := &Session{
		host:      host,
		renderer:  renderer,
		extractor: extractor,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	s.tasks.SetLimit(DefaultDispatchLimit)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch runs the operation named by op. Unknown names are logged and
// returned as EINVALID.
func (s *Session) Dispatch(ctx context.Context, op string) error {
	operation, err := domkit.ParseOperation(op)
	if err != nil {
		s.logger.Warn("unknown operation", "op", op)
		s.host.Log(ctx, domkit.ErrorMessage(err))
		return err
	}

	switch operation {
	case domkit.OpLoadHead:
		return s.LoadHead(ctx)
	case domkit.OpCreate:
		return s.Create(ctx)
	default:
		return s.Read(ctx)
	}
}

// LoadHead fetches a head payload and builds the children of its first
// entry into the document head.
func (s *Session) LoadHead(ctx context.Context) error {
	return s.guard(ctx, domkit.OpLoadHead, func(ctx context.Context, r *run) error {
		raw, err := s.host.FetchPayload(ctx)
		if err != nil {
			return r.hostFailure(ctx, StepFetchPayload, err)
		}
		children, err := domkit.DecodeHeadPayload(raw)
		if err != nil {
			return r.hostFailure(ctx, StepDecodePayload, err)
		}

		if len(children) == 0 {
			r.log(ctx, "no elements for head")
			return nil
		}

		var status domkit.Status
		for i, c := range children {
			if err := ctx.Err(); err != nil {
				return err
			}
			count(&status, r.render(ctx, headParent, i, c))
		}
		r.log(ctx, fmt.Sprintf("head loaded (%d built, %d failed)", status.Built, status.Failed))
		return nil
	})
}

// Create fetches a create payload, builds each entry under its parent and
// delivers a status payload. A failed entry does not stop its siblings.
func (s *Session) Create(ctx context.Context) error {
	return s.guard(ctx, domkit.OpCreate, func(ctx context.Context, r *run) error {
		raw, err := s.host.FetchPayload(ctx)
		if err != nil {
			return r.hostFailure(ctx, StepFetchPayload, err)
		}
		entries, err := domkit.DecodeCreatePayload(raw)
		if err != nil {
			return r.hostFailure(ctx, StepDecodePayload, err)
		}

		var status domkit.Status
		for i, e := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			count(&status, r.render(ctx, e.Parent, i, e.Child))
		}

		if err := s.host.DeliverResult(ctx, domkit.StatusPayload{Data: status}); err != nil {
			return r.hostFailure(ctx, StepDeliverResult, err)
		}
		return nil
	})
}

// Read fetches a read payload, extracts the requested fields and delivers
// the rows. Unmatched patterns are logged.
func (s *Session) Read(ctx context.Context) error {
	return s.guard(ctx, domkit.OpRead, func(ctx context.Context, r *run) error {
		raw, err := s.host.FetchPayload(ctx)
		if err != nil {
			return r.hostFailure(ctx, StepFetchPayload, err)
		}
		req, err := domkit.DecodeReadPayload(raw)
		if err != nil {
			return r.hostFailure(ctx, StepDecodePayload, err)
		}

		extraction, err := s.extractor.Extract(ctx, req)
		if err != nil {
			r.log(ctx, fmt.Sprintf("extract failed: %v", err))
			return err
		}
		for _, d := range extraction.Diagnostics {
			r.report(ctx, d)
		}

		if err := s.host.DeliverResult(ctx, domkit.ResultPayload{Data: extraction.Rows}); err != nil {
			return r.hostFailure(ctx, StepDeliverResult, err)
		}
		return nil
	})
}

// Call invokes route on the host as a detached task. The caller does not
// observe the outcome; failures are logged.
func (s *Session) Call(ctx context.Context, route string, args []any, kwargs map[string]any) {
	ctx = context.WithoutCancel(ctx)
	s.tasks.Go(func() error {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("invoke panicked", "route", route, "panic", p)
			}
		}()
		if err := s.host.Invoke(ctx, route, args, kwargs); err != nil {
			d := domkit.Diagnostic{Kind: domkit.KindHostFailure, Subject: "invoke " + route, Message: err.Error()}
			s.logger.Error("invoke failed", "route", route, "error", err)
			s.host.Log(ctx, d.String())
		}
		return nil
	})
}

// Wait blocks until all detached invokes have finished.
func (s *Session) Wait() {
	_ = s.tasks.Wait()
}

// guard runs fn with a fresh operation id, turning panics into EINTERNAL.
func (s *Session) guard(ctx context.Context, op domkit.Operation, fn func(context.Context, *run) error) (err error) {
	id := uuid.NewString()
	r := &run{
		host:     s.host,
		renderer: s.renderer,
		logger:   s.logger.With("op", string(op), "id", id),
		op:       op,
		id:       id,
	}

	begin := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = domkit.Errorf(domkit.EINTERNAL, "%s: panic: %v", op, p)
			r.logger.Error("operation panicked", "panic", p)
			r.log(ctx, domkit.ErrorMessage(err))
		}
		if err != nil {
			r.logger.Warn("operation failed", "duration", time.Since(begin), "error", err)
			return
		}
		r.logger.Debug("operation finished", "duration", time.Since(begin))
	}()

	return fn(ctx, r)
}

// run carries the state of one guarded operation.
type run struct {
	host     domkit.Host
	renderer domkit.Renderer
	logger   *slog.Logger
	op       domkit.Operation
	id       string
}

// log sends msg to the host, prefixed with the operation and its id.
func (r *run) log(ctx context.Context, msg string) {
	r.host.Log(ctx, fmt.Sprintf("[%s %s] %s", r.op, r.id, msg))
}

func (r *run) report(ctx context.Context, d domkit.Diagnostic) {
	r.logger.Info("diagnostic", "kind", string(d.Kind), "subject", d.Subject, "message", d.Message)
	r.log(ctx, d.String())
}

// hostFailure reports a failed bridge step and returns the error that ends
// the operation.
func (r *run) hostFailure(ctx context.Context, step string, err error) error {
	r.report(ctx, domkit.Diagnostic{Kind: domkit.KindHostFailure, Subject: step, Message: err.Error()})
	if domkit.ErrorCode(err) == domkit.EINVALID {
		return err
	}
	return domkit.Errorf(domkit.EUNAVAILABLE, "%s: %v", step, err)
}

// render builds one top-level entry under parent and reports whether it
// was attached.
func (r *run) render(ctx context.Context, parent string, index int, c domkit.Child) bool {
	subject := fmt.Sprintf("%s/%d", parent, index)

	var spec *domkit.NodeSpec
	switch c := c.(type) {
	case domkit.ElementChild:
		spec = c.Spec
	case domkit.TextChild:
		r.report(ctx, domkit.Diagnostic{Kind: domkit.KindInvalidChild, Subject: subject, Message: "top-level entry must be an element"})
		return false
	case domkit.InvalidChild:
		r.report(ctx, domkit.Diagnostic{Kind: domkit.KindInvalidChild, Subject: subject, Message: c.Reason})
		return false
	default:
		r.report(ctx, domkit.Diagnostic{Kind: domkit.KindInvalidChild, Subject: subject, Message: "missing entry"})
		return false
	}

	diags, err := r.renderer.Render(ctx, parent, spec)
	for _, d := range diags {
		r.report(ctx, d)
	}
	if err == nil {
		return true
	}

	switch {
	case domkit.ErrorCode(err) == domkit.ENOTFOUND:
		r.report(ctx, domkit.Diagnostic{Kind: domkit.KindMissingParent, Subject: parent, Message: domkit.ErrorMessage(err)})
	case domkit.ErrorCode(err) == domkit.EINVALID:
		r.report(ctx, domkit.Diagnostic{Kind: domkit.KindInvalidChild, Subject: subject, Message: domkit.ErrorMessage(err)})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.log(ctx, fmt.Sprintf("%s: %v", subject, err))
	default:
		r.logger.Error("render failed", "parent", parent, "error", err)
		r.log(ctx, fmt.Sprintf("%s: render failed: %v", subject, err))
	}
	return false
}

func count(status *domkit.Status, built bool) {
	if built {
		status.Built++
		return
	}
	status.Failed++
}
