package goquery

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/fwojciec/domkit"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Extract reads the requested fields from every element matching each
// pattern. Patterns that fail to parse or match nothing are reported as
// diagnostics and contribute no rows.
func (d *Document) Extract(ctx context.Context, req *domkit.ExtractionRequest) (*domkit.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, domkit.Errorf(domkit.EINVALID, "extraction request required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	out := &domkit.Extraction{Rows: domkit.ExtractionResult{}}
	for _, pattern := range req.Patterns {
		sel, err := cascadia.Compile(pattern)
		if err != nil {
			out.Diagnostics = append(out.Diagnostics, unmatched(pattern, "invalid selector: "+err.Error()))
			continue
		}

		matches := d.doc.FindMatcher(sel)
		if matches.Length() == 0 {
			out.Diagnostics = append(out.Diagnostics, unmatched(pattern, "matched no elements"))
			continue
		}

		matches.Each(func(_ int, s *goquery.Selection) {
			row := make([]*string, len(req.Fields))
			for i, f := range req.Fields {
				row[i] = d.read(s, f)
			}
			out.Rows = append(out.Rows, row)
		})
	}
	return out, nil
}

func unmatched(pattern, message string) domkit.Diagnostic {
	return domkit.Diagnostic{
		Kind:    domkit.KindUnmatchedPattern,
		Subject: pattern,
		Message: message,
	}
}

// read computes one field for a single-element selection. Fields that do
// not apply, and unknown fields, yield nil.
func (d *Document) read(s *goquery.Selection, f domkit.Field) *string {
	switch f {
	case domkit.FieldValue:
		return FormValue(s.Nodes[0])
	case domkit.FieldText:
		return domkit.StringPtr(s.Text())
	case domkit.FieldHTML:
		markup, err := s.Html()
		if err != nil {
			return nil
		}
		return &markup
	case domkit.FieldStyle:
		style, _ := s.Attr("style")
		return &style
	case domkit.FieldMarkdown:
		if d.converter == nil {
			return nil
		}
		markup, err := s.Html()
		if err != nil {
			return nil
		}
		md, err := d.converter.Convert(markup)
		if err != nil {
			return nil
		}
		return &md
	}

	if name, ok := f.AttrName(); ok {
		if v, exists := s.Attr(name); exists {
			return &v
		}
	}
	return nil
}

// FormValue returns the current form value of n, or nil when n is not an
// element with a value.
func FormValue(n *html.Node) *string {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}

	switch n.DataAtom {
	case atom.Input:
		if v, ok := attr(n, "value"); ok {
			return &v
		}
		switch t, _ := attr(n, "type"); strings.ToLower(t) {
		case "checkbox", "radio":
			return domkit.StringPtr("on")
		}
		return domkit.StringPtr("")
	case atom.Textarea, atom.Output:
		return domkit.StringPtr(textContent(n))
	case atom.Select:
		return domkit.StringPtr(selectValue(n))
	case atom.Option:
		return domkit.StringPtr(optionValue(n))
	case atom.Button, atom.Data, atom.Param, atom.Meter, atom.Progress:
		v, _ := attr(n, "value")
		return &v
	}
	return nil
}

// selectValue returns the value of the first selected option, falling back
// to the first option for single-choice selects.
func selectValue(n *html.Node) string {
	var options []*html.Node
	var walk func(*html.Node)
	walk = func(p *html.Node) {
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			if c.DataAtom == atom.Option {
				options = append(options, c)
				continue
			}
			walk(c)
		}
	}
	walk(n)

	for _, o := range options {
		if _, ok := attr(o, "selected"); ok {
			return optionValue(o)
		}
	}
	if _, multiple := attr(n, "multiple"); !multiple && len(options) > 0 {
		return optionValue(options[0])
	}
	return ""
}

func optionValue(n *html.Node) string {
	if v, ok := attr(n, "value"); ok {
		return v
	}
	return strings.Join(strings.Fields(textContent(n)), " ")
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
