package mock

import (
	"context"

	"github.com/fwojciec/domkit"
)

// Compile-time interface verification.
var (
	_ domkit.Renderer  = (*Renderer)(nil)
	_ domkit.Extractor = (*Extractor)(nil)
)

// Renderer is a mock implementation of domkit.Renderer.
type Renderer struct {
	RenderFn func(ctx context.Context, parent string, spec *domkit.NodeSpec) ([]domkit.Diagnostic, error)
}

func (r *Renderer) Render(ctx context.Context, parent string, spec *domkit.NodeSpec) ([]domkit.Diagnostic, error) {
	return r.RenderFn(ctx, parent, spec)
}

// Extractor is a mock implementation of domkit.Extractor.
type Extractor struct {
	ExtractFn func(ctx context.Context, req *domkit.ExtractionRequest) (*domkit.Extraction, error)
}

func (e *Extractor) Extract(ctx context.Context, req *domkit.ExtractionRequest) (*domkit.Extraction, error) {
	return e.ExtractFn(ctx, req)
}
