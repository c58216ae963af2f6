// Package rod implements the tree builder and extractor against a live
// Chrome page driven by go-rod.
package rod

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Browser owns a headless Chrome process. Browser is safe for concurrent
// use; each Page is independent.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	mu       sync.Mutex
	closed   atomic.Bool
}

// BrowserOption configures the Chrome launcher.
type BrowserOption func(*launcher.Launcher)

// WithBin uses the Chrome binary at path instead of looking one up.
func WithBin(path string) BrowserOption {
	return func(l *launcher.Launcher) {
		l.Bin(path)
	}
}

// WithHeadless toggles headless mode. Browsers are headless by default.
func WithHeadless(headless bool) BrowserOption {
	return func(l *launcher.Launcher) {
		l.Headless(headless)
	}
}

// NewBrowser launches Chrome and connects to it. Close must be called when
// the Browser is no longer needed.
func NewBrowser(opts ...BrowserOption) (*Browser, error) {
	l := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Set("disable-hang-monitor").
		Leakless(true).
		Headless(true)
	for _, opt := range opts {
		opt(l)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	return &Browser{browser: browser, launcher: l}, nil
}

// NewPage opens a blank page and replaces its document with html.
func (b *Browser) NewPage(ctx context.Context, html string, opts ...PageOption) (*Page, error) {
	p, err := b.page(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.Context(ctx).SetDocumentContent(html); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("setting document: %w", err)
	}
	return newPage(p, opts), nil
}

// OpenURL navigates a new page to url and waits for it to load.
func (b *Browser) OpenURL(ctx context.Context, url string, opts ...PageOption) (*Page, error) {
	p, err := b.page(ctx)
	if err != nil {
		return nil, err
	}
	cp := p.Context(ctx)
	if err := cp.Navigate(url); err != nil {
		_ = p.Close()
		return nil, err
	}
	if err := cp.WaitLoad(); err != nil {
		_ = p.Close()
		return nil, err
	}
	return newPage(p, opts), nil
}

func (b *Browser) page(ctx context.Context) (*rod.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil, fmt.Errorf("browser closed")
	}
	return b.browser.Page(proto.TargetCreateTarget{})
}

// Close shuts down the browser and kills the launcher process. Close is
// safe to call multiple times.
func (b *Browser) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher = nil
	}
	return err
}

// LauncherPID returns the process ID of the browser launcher.
// This method exists for testing purposes to verify proper cleanup.
func (b *Browser) LauncherPID() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.launcher == nil {
		return 0
	}
	return b.launcher.PID()
}
