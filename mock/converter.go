package mock

import "github.com/fwojciec/domkit"

var _ domkit.Converter = (*Converter)(nil)

// Converter is a mock implementation of domkit.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}
