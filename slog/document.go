// Package slog provides logging decorators for the domkit services.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/domkit"
)

// Ensure the decorators implement their interfaces.
var (
	_ domkit.Renderer  = (*LoggingRenderer)(nil)
	_ domkit.Extractor = (*LoggingExtractor)(nil)
)

// LoggingRenderer wraps a Renderer with debug logging.
type LoggingRenderer struct {
	next   domkit.Renderer
	logger *slog.Logger
}

// NewLoggingRenderer creates a new LoggingRenderer.
func NewLoggingRenderer(next domkit.Renderer, logger *slog.Logger) *LoggingRenderer {
	return &LoggingRenderer{next: next, logger: logger}
}

// Render delegates to the wrapped renderer and logs the build.
func (r *LoggingRenderer) Render(ctx context.Context, parent string, spec *domkit.NodeSpec) (diags []domkit.Diagnostic, err error) {
	defer func(begin time.Time) {
		r.logger.Debug("render",
			"parent", parent,
			"element", spec.Tag,
			"diagnostics", len(diags),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return r.next.Render(ctx, parent, spec)
}

// LoggingExtractor wraps an Extractor with debug logging.
type LoggingExtractor struct {
	next   domkit.Extractor
	logger *slog.Logger
}

// NewLoggingExtractor creates a new LoggingExtractor.
func NewLoggingExtractor(next domkit.Extractor, logger *slog.Logger) *LoggingExtractor {
	return &LoggingExtractor{next: next, logger: logger}
}

// Extract delegates to the wrapped extractor and logs the row count.
func (e *LoggingExtractor) Extract(ctx context.Context, req *domkit.ExtractionRequest) (out *domkit.Extraction, err error) {
	defer func(begin time.Time) {
		var rows, diags int
		if out != nil {
			rows, diags = len(out.Rows), len(out.Diagnostics)
		}
		e.logger.Debug("extract",
			"patterns", len(req.Patterns),
			"fields", len(req.Fields),
			"rows", rows,
			"diagnostics", diags,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return e.next.Extract(ctx, req)
}
