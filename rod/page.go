package rod

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fwojciec/domkit"
	"github.com/fwojciec/domkit/goquery"
	"github.com/go-rod/rod"
	"golang.org/x/net/html"
)

// Ensure Page implements domkit.Renderer and domkit.Extractor at compile time.
var (
	_ domkit.Renderer  = (*Page)(nil)
	_ domkit.Extractor = (*Page)(nil)
)

// insertJS creates tree with DOM calls and appends it to the first element
// matching selector. The tree is never reparsed as markup, so nesting the
// parser would rewrite (a <div> inside a <p>) is kept.
const insertJS = `(selector, tree) => {
	let parent;
	try {
		parent = document.querySelector(selector);
	} catch (e) {
		return "invalid selector: " + e.message;
	}
	if (!parent) {
		return "missing";
	}
	const build = (n) => {
		if (n.text !== undefined) {
			return document.createTextNode(n.text);
		}
		const el = document.createElement(n.tag);
		for (const [key, value] of n.attrs || []) {
			el.setAttribute(key, value);
		}
		for (const c of n.children || []) {
			el.appendChild(build(c));
		}
		return el;
	};
	let el;
	try {
		el = build(tree);
	} catch (e) {
		return "invalid element: " + e.message;
	}
	parent.appendChild(el);
	return "ok";
}`

// extractJS reads fields from every match of each pattern. Markdown cells
// carry inner markup and are converted on the Go side.
const extractJS = `(patterns, fields) => {
	const formValue = (el) => {
		switch (el.localName) {
		case "input": case "select": case "textarea": case "option": case "button":
		case "output": case "data": case "param": case "meter": case "progress":
			return el.value === undefined || el.value === null ? null : String(el.value);
		}
		return null;
	};
	const read = (el, f) => {
		switch (f) {
		case "value": return formValue(el);
		case "text": return el.textContent;
		case "html": case "markdown": return el.innerHTML;
		case "style": return el.getAttribute("style") || "";
		}
		if (f.startsWith("attr:") && f.length > 5) {
			return el.getAttribute(f.slice(5));
		}
		return null;
	};
	return patterns.map((p) => {
		let nodes;
		try {
			nodes = document.querySelectorAll(p);
		} catch (e) {
			return {error: "invalid selector: " + e.message, rows: []};
		}
		return {rows: Array.from(nodes, (el) => fields.map((f) => read(el, f)))};
	});
}`

// Page is a live browser page that specs are built into and values are
// read from. Calls are serialized.
type Page struct {
	mu        sync.Mutex
	page      *rod.Page
	converter domkit.Converter
}

// PageOption configures a Page.
type PageOption func(*Page)

// WithConverter enables the markdown field using c.
func WithConverter(c domkit.Converter) PageOption {
	return func(p *Page) {
		p.converter = c
	}
}

func newPage(p *rod.Page, opts []PageOption) *Page {
	page := &Page{page: p}
	for _, opt := range opts {
		opt(page)
	}
	return page
}

// Render builds spec and appends it under the first element matching
// parent. Elements are created in the page, so inserted scripts run.
func (p *Page) Render(ctx context.Context, parent string, spec *domkit.NodeSpec) ([]domkit.Diagnostic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	node, diags, err := goquery.Fragment(spec)
	if err != nil {
		return diags, err
	}
	tree := toDOMNode(node)

	p.mu.Lock()
	defer p.mu.Unlock()

	res, err := p.page.Context(ctx).Eval(insertJS, parent, tree)
	if err != nil {
		return diags, fmt.Errorf("inserting element: %w", err)
	}
	switch status := res.Value.Str(); {
	case status == "ok":
		return diags, nil
	case status == "missing":
		return diags, domkit.Errorf(domkit.ENOTFOUND, "parent %q matched no element", parent)
	case strings.HasPrefix(status, "invalid selector: "):
		return diags, domkit.Errorf(domkit.EINVALID, "invalid selector %q: %s", parent, strings.TrimPrefix(status, "invalid selector: "))
	case strings.HasPrefix(status, "invalid element: "):
		return diags, domkit.Errorf(domkit.EINVALID, "cannot create <%s>: %s", spec.Tag, strings.TrimPrefix(status, "invalid element: "))
	default:
		return diags, domkit.Errorf(domkit.EINTERNAL, "unexpected insert status %q", status)
	}
}

// domNode is the JSON form of a built element handed to insertJS. Text
// nodes set only Text.
type domNode struct {
	Tag      string      `json:"tag,omitempty"`
	Text     *string     `json:"text,omitempty"`
	Attrs    [][2]string `json:"attrs,omitempty"`
	Children []domNode   `json:"children,omitempty"`
}

func toDOMNode(n *html.Node) domNode {
	if n.Type == html.TextNode {
		text := n.Data
		return domNode{Text: &text}
	}
	out := domNode{Tag: n.Data}
	for _, a := range n.Attr {
		out.Attrs = append(out.Attrs, [2]string{a.Key, a.Val})
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode && c.Type != html.TextNode {
			continue
		}
		out.Children = append(out.Children, toDOMNode(c))
	}
	return out
}

type patternResult struct {
	Error string      `json:"error"`
	Rows  [][]*string `json:"rows"`
}

// Extract reads the requested fields from every element matching each
// pattern. Form values reflect the live state of the page.
func (p *Page) Extract(ctx context.Context, req *domkit.ExtractionRequest) (*domkit.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, domkit.Errorf(domkit.EINVALID, "extraction request required")
	}
	if len(req.Patterns) == 0 {
		return &domkit.Extraction{Rows: domkit.ExtractionResult{}}, nil
	}

	fields := make([]string, len(req.Fields))
	for i, f := range req.Fields {
		fields[i] = string(f)
	}

	p.mu.Lock()
	res, err := p.page.Context(ctx).Eval(extractJS, req.Patterns, fields)
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("extracting: %w", err)
	}

	var results []patternResult
	if err := res.Value.Unmarshal(&results); err != nil {
		return nil, fmt.Errorf("decoding extraction: %w", err)
	}

	out := &domkit.Extraction{Rows: domkit.ExtractionResult{}}
	for i, r := range results {
		pattern := req.Patterns[i]
		switch {
		case r.Error != "":
			out.Diagnostics = append(out.Diagnostics, unmatched(pattern, r.Error))
			continue
		case len(r.Rows) == 0:
			out.Diagnostics = append(out.Diagnostics, unmatched(pattern, "matched no elements"))
			continue
		}
		for _, row := range r.Rows {
			p.convertMarkdown(req.Fields, row)
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

// convertMarkdown replaces the inner markup in markdown cells with its
// conversion, or nil when no converter is set or conversion fails.
func (p *Page) convertMarkdown(fields []domkit.Field, row []*string) {
	for i, f := range fields {
		if f != domkit.FieldMarkdown || row[i] == nil {
			continue
		}
		if p.converter == nil {
			row[i] = nil
			continue
		}
		md, err := p.converter.Convert(*row[i])
		if err != nil {
			row[i] = nil
			continue
		}
		row[i] = &md
	}
}

func unmatched(pattern, message string) domkit.Diagnostic {
	return domkit.Diagnostic{
		Kind:    domkit.KindUnmatchedPattern,
		Subject: pattern,
		Message: message,
	}
}

// HTML returns the serialized document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page.Context(ctx).HTML()
}

// Close closes the page.
func (p *Page) Close() error {
	return p.page.Close()
}
