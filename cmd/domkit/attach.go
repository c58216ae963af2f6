package main

import (
	"fmt"

	"github.com/fwojciec/domkit/bridge"
	"github.com/fwojciec/domkit/slog"
	"github.com/fwojciec/domkit/websocket"
)

// Run executes the attach command. It serves host-pushed operations until
// the host closes the connection or the context is canceled.
func (c *AttachCmd) Run(deps *Dependencies) error {
	p, err := openPage(deps.Ctx, c.Page, c.Lang, c.Browser)
	if err != nil {
		return err
	}
	defer p.Close()

	host, err := websocket.Dial(deps.Ctx, c.URL, websocket.WithLogger(deps.Logger))
	if err != nil {
		fmt.Fprintln(deps.Stderr, "Hint: Set DOMKIT_HOST_URL or --url to the host's websocket endpoint")
		return err
	}
	defer host.Close()

	session := bridge.NewSession(
		slog.NewLoggingHost(host, deps.Logger),
		slog.NewLoggingRenderer(p, deps.Logger),
		slog.NewLoggingExtractor(p, deps.Logger),
		bridge.WithLogger(deps.Logger),
		bridge.WithDispatchLimit(c.Dispatch),
	)
	defer session.Wait()

	if c.Ready != "" {
		session.Call(deps.Ctx, c.Ready, nil, nil)
	}

	var handled, failed int
	for {
		select {
		case <-deps.Ctx.Done():
			return deps.Ctx.Err()
		case op, ok := <-host.Operations():
			if !ok {
				fmt.Fprintf(deps.Stdout, "handled %d operations (%d failed)\n", handled, failed)
				return host.Err()
			}
			handled++
			if err := session.Dispatch(deps.Ctx, op); err != nil {
				failed++
				deps.Logger.Warn("operation failed", "op", op, "error", err)
			}
		}
	}
}
