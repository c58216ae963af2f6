package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/domkit"
	"github.com/fwojciec/domkit/etree"
	"github.com/fwojciec/domkit/goquery"
	"github.com/fwojciec/domkit/htmltomarkdown"
	"github.com/fwojciec/domkit/http"
	"github.com/fwojciec/domkit/rod"
	"github.com/fwojciec/domkit/yaml"
)

// page is a document the commands build into and read from.
type page interface {
	domkit.Renderer
	domkit.Extractor
	HTML(ctx context.Context) (string, error)
	Close() error
}

// memoryPage adapts a goquery.Document to page.
type memoryPage struct {
	*goquery.Document
}

func (p memoryPage) HTML(context.Context) (string, error) {
	return p.Document.HTML()
}

func (p memoryPage) Close() error {
	return nil
}

// browserPage closes its browser along with the page.
type browserPage struct {
	*rod.Page
	browser *rod.Browser
}

func (p browserPage) Close() error {
	_ = p.Page.Close()
	return p.browser.Close()
}

// openPage loads location, which is a file path or an http(s) URL, or a
// blank page in lang when location is empty.
func openPage(ctx context.Context, location, lang string, browser bool) (page, error) {
	conv := htmltomarkdown.NewConverter()

	if browser && isURL(location) {
		b, err := startBrowser()
		if err != nil {
			return nil, err
		}
		p, err := b.OpenURL(ctx, location, rod.WithConverter(conv))
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		return browserPage{Page: p, browser: b}, nil
	}

	doc, err := loadDocument(ctx, location, lang, goquery.WithConverter(conv))
	if err != nil {
		return nil, err
	}
	if !browser {
		return memoryPage{doc}, nil
	}

	markup, err := doc.HTML()
	if err != nil {
		return nil, err
	}
	b, err := startBrowser()
	if err != nil {
		return nil, err
	}
	p, err := b.NewPage(ctx, markup, rod.WithConverter(conv))
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return browserPage{Page: p, browser: b}, nil
}

func loadDocument(ctx context.Context, location, lang string, opts ...goquery.Option) (*goquery.Document, error) {
	switch {
	case location == "":
		return goquery.NewSkeleton(lang, opts...), nil
	case isURL(location):
		markup, err := http.NewFetcher().Fetch(ctx, location)
		if err != nil {
			return nil, err
		}
		return goquery.NewDocumentFromString(markup, opts...)
	}

	f, err := os.Open(location)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return goquery.NewDocument(f, opts...)
}

func startBrowser() (*rod.Browser, error) {
	b, err := rod.NewBrowser()
	if err != nil {
		return nil, fmt.Errorf("failed to start browser (Chrome or Chromium must be installed): %w", err)
	}
	return b, nil
}

func isURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// readSpec reads and decodes one spec file. "-" reads from stdin.
func readSpec(stdin io.Reader, path, format string) (*domkit.NodeSpec, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	if format == "auto" || format == "" {
		format = formatFromPath(path)
	}
	switch format {
	case "xml":
		return etree.Decode(bytes.NewReader(data))
	case "yaml":
		return yaml.Decode(bytes.NewReader(data))
	default:
		return domkit.ParseNodeSpec(data)
	}
}

func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		return "xml"
	case ".yaml", ".yml":
		return "yaml"
	}
	return "json"
}
