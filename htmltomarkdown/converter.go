// Package htmltomarkdown backs the markdown extraction field.
package htmltomarkdown

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/fwojciec/domkit"
)

// Ensure Converter implements domkit.Converter at compile time.
var _ domkit.Converter = (*Converter)(nil)

// Converter turns an element's inner markup into Markdown.
type Converter struct {
	conv *converter.Converter
}

// NewConverter creates a new Converter with CommonMark and table support.
func NewConverter() *Converter {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	return &Converter{conv: conv}
}

// Convert transforms inner markup into Markdown. Elements without content
// convert to an empty string rather than an error, so an empty cell in an
// extraction row stays a value.
func (c *Converter) Convert(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	result, err := c.conv.ConvertString(html)
	if err != nil {
		return "", domkit.Errorf(domkit.EINVALID, "convert markdown: %v", err)
	}

	return strings.TrimSpace(result), nil
}
