package main

import (
	"context"
	"io"
	"log/slog"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Debug bool `help:"Log debug output to stderr"`

	Render  RenderCmd  `cmd:"" help:"Build node specs into an HTML page"`
	Extract ExtractCmd `cmd:"" help:"Read fields from the elements of an HTML page"`
	Attach  AttachCmd  `cmd:"" help:"Serve build and read operations for a websocket host"`
}

// RenderCmd is the "render" subcommand.
type RenderCmd struct {
	Specs   []string `arg:"" help:"Spec files, or - for stdin"`
	Parent  string   `default:"body" help:"CSS selector of the element to append to"`
	Format  string   `enum:"auto,json,xml,yaml" default:"auto" help:"Spec format (auto picks by file extension)"`
	Page    string   `help:"HTML file or URL to build into (default: blank page)"`
	Lang    string   `default:"en" help:"Language of the blank page"`
	Out     string   `short:"o" help:"Write the page to this file instead of stdout"`
	Browser bool     `help:"Build in headless Chrome instead of in memory"`
}

// ExtractCmd is the "extract" subcommand.
type ExtractCmd struct {
	Page     string   `required:"" help:"HTML file or URL to read"`
	Patterns []string `short:"p" name:"pattern" required:"" help:"CSS selector (repeatable)"`
	Fields   []string `short:"f" name:"field" default:"text" help:"Field: value, text, html, style, markdown or attr:NAME (repeatable)"`
	Browser  bool     `help:"Read from headless Chrome instead of in memory"`
}

// AttachCmd is the "attach" subcommand.
type AttachCmd struct {
	URL      string `name:"url" required:"" env:"DOMKIT_HOST_URL" help:"Websocket URL of the host"`
	Page     string `help:"HTML file or URL to start from (default: blank page)"`
	Lang     string `default:"en" help:"Language of the blank page"`
	Ready    string `help:"Host route to invoke once attached"`
	Dispatch int    `default:"8" help:"Concurrent detached invokes"`
	Browser  bool   `help:"Serve from headless Chrome instead of in memory"`
}
