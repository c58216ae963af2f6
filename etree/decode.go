// Package etree decodes node specs written as XML. An XML element maps
// directly onto a spec: its tag, attributes and interleaved text and
// element children.
package etree

import (
	"io"
	"strings"

	"github.com/beevik/etree"
	"github.com/fwojciec/domkit"
)

// Decode reads one XML document from r and returns the spec for its root
// element. Indentation (whitespace-only text spanning a line break),
// comments and processing instructions are dropped. Other whitespace, like
// the space in <b>a</b> <i>b</i>, is kept as text.
func Decode(r io.Reader) (*domkit.NodeSpec, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, domkit.Errorf(domkit.EINVALID, "parsing spec XML: %v", err)
	}

	root := doc.Root()
	if root == nil {
		return nil, domkit.Errorf(domkit.EINVALID, "spec XML has no root element")
	}
	return specFromElement(root), nil
}

// DecodeString is like Decode but reads from s.
func DecodeString(s string) (*domkit.NodeSpec, error) {
	return Decode(strings.NewReader(s))
}

func specFromElement(el *etree.Element) *domkit.NodeSpec {
	spec := &domkit.NodeSpec{Tag: el.FullTag()}
	for _, a := range el.Attr {
		spec.Attributes.Set(a.FullKey(), a.Value)
	}

	for _, tok := range el.Child {
		switch tok := tok.(type) {
		case *etree.Element:
			spec.Children = append(spec.Children, domkit.ElementChild{Spec: specFromElement(tok)})
		case *etree.CharData:
			if isIndentation(tok.Data) {
				continue
			}
			spec.Children = append(spec.Children, domkit.TextChild{Text: tok.Data})
		}
	}
	return spec
}

func isIndentation(text string) bool {
	return strings.TrimSpace(text) == "" && strings.ContainsAny(text, "\n\r")
}
