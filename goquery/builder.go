package goquery

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/fwojciec/domkit"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// BuiltElement is the element created for one spec. Parent is the node it
// was (or would have been) attached to; it is not owned.
type BuiltElement struct {
	Node   *html.Node
	Parent *html.Node
}

// HTML renders the element's outer markup.
func (e *BuiltElement) HTML() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, e.Node); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Build creates the element described by spec. When insert is true the
// element is appended as the last child of parent, which must then be
// non-nil. Malformed children are skipped and returned as diagnostics.
func (d *Document) Build(parent *html.Node, spec *domkit.NodeSpec, insert bool) (*BuiltElement, []domkit.Diagnostic, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return build(parent, spec, insert)
}

// BuildAt is like Build but resolves the parent with a CSS selector. The
// first match in document order is used.
func (d *Document) BuildAt(selector string, spec *domkit.NodeSpec, insert bool) (*BuiltElement, []domkit.Diagnostic, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	parent, err := d.query(selector)
	if err != nil && insert {
		return nil, nil, err
	}
	if parent == nil && insert {
		return nil, nil, domkit.Errorf(domkit.ENOTFOUND, "parent %q matched no element", selector)
	}
	return build(parent, spec, insert)
}

// Fragment builds a detached element for spec.
func Fragment(spec *domkit.NodeSpec) (*html.Node, []domkit.Diagnostic, error) {
	built, diags, err := build(nil, spec, false)
	if err != nil {
		return nil, diags, err
	}
	return built.Node, diags, nil
}

// RenderFragment builds spec and returns its markup.
func RenderFragment(spec *domkit.NodeSpec) (string, []domkit.Diagnostic, error) {
	built, diags, err := build(nil, spec, false)
	if err != nil {
		return "", diags, err
	}
	markup, err := built.HTML()
	return markup, diags, err
}

func build(parent *html.Node, spec *domkit.NodeSpec, insert bool) (*BuiltElement, []domkit.Diagnostic, error) {
	if insert {
		if parent == nil {
			return nil, nil, domkit.Errorf(domkit.ENOTFOUND, "parent element required")
		}
		if parent.Type != html.ElementNode && parent.Type != html.DocumentNode {
			return nil, nil, domkit.Errorf(domkit.EINVALID, "parent must be an element")
		}
	}

	var b builder
	node, err := b.element(spec, specLabel(spec))
	if err != nil {
		return nil, b.diags, err
	}
	if insert {
		parent.AppendChild(node)
	}
	return &BuiltElement{Node: node, Parent: parent}, b.diags, nil
}

// builder accumulates per-child diagnostics for one build call.
type builder struct {
	diags []domkit.Diagnostic
}

func (b *builder) element(spec *domkit.NodeSpec, path string) (*html.Node, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	tag := strings.ToLower(spec.Tag)
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for _, attr := range spec.Attributes {
		setAttr(n, strings.ToLower(attr.Key), attr.Value)
	}

	for i, c := range spec.Children {
		childPath := path + "/" + strconv.Itoa(i)
		if voidElements[tag] {
			b.report(childPath, "void element <"+tag+"> cannot have children")
			continue
		}
		switch c := c.(type) {
		case domkit.ElementChild:
			child, err := b.element(c.Spec, childPath+"/"+specLabel(c.Spec))
			if err != nil {
				b.report(childPath, domkit.ErrorMessage(err))
				continue
			}
			n.AppendChild(child)
		case domkit.TextChild:
			appendText(n, c.Text)
		case domkit.InvalidChild:
			b.report(childPath, c.Reason)
		default:
			b.report(childPath, "missing child")
		}
	}
	return n, nil
}

func (b *builder) report(path, message string) {
	b.diags = append(b.diags, domkit.Diagnostic{
		Kind:    domkit.KindInvalidChild,
		Subject: path,
		Message: message,
	})
}

func specLabel(spec *domkit.NodeSpec) string {
	if spec == nil || spec.Tag == "" {
		return "?"
	}
	return strings.ToLower(spec.Tag)
}

// voidElements cannot hold children; the serializer rejects them.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "keygen": true, "link": true,
	"meta": true, "param": true, "source": true, "track": true, "wbr": true,
}

// setAttr sets key on n, replacing an existing value in place.
func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// appendText adds text at the end of n, merging with a trailing text node.
func appendText(n *html.Node, text string) {
	if text == "" {
		return
	}
	if last := n.LastChild; last != nil && last.Type == html.TextNode {
		last.Data += text
		return
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}
