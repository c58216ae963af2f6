package main

import (
	"encoding/json"
	"fmt"

	"github.com/fwojciec/domkit"
	"github.com/fwojciec/domkit/slog"
)

// Run executes the extract command.
func (c *ExtractCmd) Run(deps *Dependencies) error {
	req := &domkit.ExtractionRequest{Patterns: c.Patterns}
	for _, f := range c.Fields {
		req.Fields = append(req.Fields, domkit.Field(f))
	}
	if err := req.Validate(); err != nil {
		return err
	}

	p, err := openPage(deps.Ctx, c.Page, "", c.Browser)
	if err != nil {
		return err
	}
	defer p.Close()

	out, err := slog.NewLoggingExtractor(p, deps.Logger).Extract(deps.Ctx, req)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", domkit.ErrorMessage(err))
		return err
	}
	for _, d := range out.Diagnostics {
		fmt.Fprintf(deps.Stderr, "warning: %s\n", d)
	}

	enc := json.NewEncoder(deps.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(domkit.ResultPayload{Data: out.Rows})
}
