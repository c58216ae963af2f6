package domkit

import (
	"context"
	"strings"
)

// Field names a value to read from a matched element.
type Field string

// Field kinds understood by extractors.
const (
	FieldValue    Field = "value"
	FieldText     Field = "text"
	FieldHTML     Field = "html"
	FieldStyle    Field = "style"
	FieldMarkdown Field = "markdown"
)

// attrFieldPrefix selects a single attribute, e.g. "attr:href".
const attrFieldPrefix = "attr:"

// AttrField returns the field that reads the named attribute.
func AttrField(name string) Field {
	return Field(attrFieldPrefix + name)
}

// AttrName returns the attribute name for an attr:<name> field.
func (f Field) AttrName() (string, bool) {
	name, ok := strings.CutPrefix(string(f), attrFieldPrefix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// ExtractionRequest asks for fields from every element matching each pattern.
type ExtractionRequest struct {
	Patterns []string `json:"args"`
	Fields   []Field  `json:"filter"`
}

// Validate returns an error if the request cannot be served. A request
// without patterns is valid and yields no rows.
func (r *ExtractionRequest) Validate() error {
	if r == nil {
		return Errorf(EINVALID, "extraction request required")
	}
	return nil
}

// ExtractionResult holds one row per matched element. Rows are ordered by
// pattern, then by document order within a pattern. Each row holds one cell
// per requested field; a nil cell means the value does not apply.
type ExtractionResult [][]*string

// Extraction is the outcome of an extract call.
type Extraction struct {
	Rows        ExtractionResult
	Diagnostics []Diagnostic
}

// Renderer builds specs into a live element tree.
type Renderer interface {
	// Render builds spec and appends it as the last child of the first
	// element matching the parent selector. It returns ENOTFOUND when the
	// parent matches nothing. Per-child failures are returned as
	// diagnostics and do not stop the build.
	Render(ctx context.Context, parent string, spec *NodeSpec) ([]Diagnostic, error)
}

// Extractor reads values out of a live element tree.
type Extractor interface {
	// Extract resolves each pattern and reads the requested fields from
	// every match. Unmatched patterns are reported as diagnostics.
	Extract(ctx context.Context, req *ExtractionRequest) (*Extraction, error)
}

// StringPtr returns a pointer to s, for building result cells.
func StringPtr(s string) *string {
	return &s
}
