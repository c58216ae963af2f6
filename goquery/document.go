// Package goquery implements the tree builder and extractor against an
// in-memory HTML document parsed with golang.org/x/net/html.
package goquery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/fwojciec/domkit"
	"golang.org/x/net/html"
)

// Ensure Document implements domkit.Renderer and domkit.Extractor at compile time.
var (
	_ domkit.Renderer  = (*Document)(nil)
	_ domkit.Extractor = (*Document)(nil)
)

// Document is an in-memory HTML document that specs are built into and
// values are read from. Document is safe for concurrent use; builds only
// ever append nodes.
type Document struct {
	mu        sync.Mutex
	doc       *goquery.Document
	converter domkit.Converter
}

// Option configures a Document.
type Option func(*Document)

// WithConverter enables the markdown field using c.
func WithConverter(c domkit.Converter) Option {
	return func(d *Document) {
		d.converter = c
	}
}

// NewDocument parses HTML from r.
func NewDocument(r io.Reader, opts ...Option) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, domkit.Errorf(domkit.EINVALID, "failed to parse HTML: %v", err)
	}
	d := &Document{doc: doc}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// NewDocumentFromString parses HTML from s.
func NewDocumentFromString(s string, opts ...Option) (*Document, error) {
	return NewDocument(strings.NewReader(s), opts...)
}

// NewSkeleton returns a blank page with the given language and empty head
// and body, ready for specs to be built into.
func NewSkeleton(lang string, opts ...Option) *Document {
	if lang == "" {
		lang = "en"
	}
	page := fmt.Sprintf("<!DOCTYPE html>\n<html lang=\"%s\"><head></head><body></body></html>", html.EscapeString(lang))
	d, err := NewDocumentFromString(page, opts...)
	if err != nil {
		// The skeleton is static markup; the parser accepts any input.
		panic(err)
	}
	return d
}

// HTML renders the whole document.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	for _, n := range d.doc.Nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// Query returns the first element matching selector, or nil.
func (d *Document) Query(selector string) (*html.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.query(selector)
}

func (d *Document) query(selector string) (*html.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, domkit.Errorf(domkit.EINVALID, "invalid selector %q: %v", selector, err)
	}
	for _, root := range d.doc.Nodes {
		if n := sel.MatchFirst(root); n != nil {
			return n, nil
		}
	}
	return nil, nil
}

// Render builds spec and appends it under the first element matching parent.
func (d *Document) Render(ctx context.Context, parent string, spec *domkit.NodeSpec) ([]domkit.Diagnostic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, diags, err := d.BuildAt(parent, spec, true)
	return diags, err
}
