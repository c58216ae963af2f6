package main

import (
	"fmt"

	"github.com/fwojciec/domkit"
	"github.com/fwojciec/domkit/fs"
	"github.com/fwojciec/domkit/slog"
)

// Run executes the render command.
func (c *RenderCmd) Run(deps *Dependencies) error {
	specs := make([]*domkit.NodeSpec, 0, len(c.Specs))
	for _, path := range c.Specs {
		spec, err := readSpec(deps.Stdin, path, c.Format)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s: %s\n", path, domkit.ErrorMessage(err))
			return err
		}
		specs = append(specs, spec)
	}

	p, err := openPage(deps.Ctx, c.Page, c.Lang, c.Browser)
	if err != nil {
		return err
	}
	defer p.Close()

	renderer := slog.NewLoggingRenderer(p, deps.Logger)
	var failed int
	for i, spec := range specs {
		diags, err := renderer.Render(deps.Ctx, c.Parent, spec)
		for _, d := range diags {
			fmt.Fprintf(deps.Stderr, "warning: %s: %s\n", c.Specs[i], d)
		}
		if err != nil {
			failed++
			fmt.Fprintf(deps.Stderr, "error: %s: %s\n", c.Specs[i], domkit.ErrorMessage(err))
		}
	}

	html, err := p.HTML(deps.Ctx)
	if err != nil {
		return err
	}
	if c.Out != "" {
		if err := fs.WriteFile(c.Out, []byte(html)); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(deps.Stdout, html)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d specs failed to render", failed, len(specs))
	}
	return nil
}
