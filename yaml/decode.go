// Package yaml decodes node specs written as YAML. The shape is the same as
// the JSON form; mapping order is preserved for attributes.
package yaml

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/fwojciec/domkit"
	"gopkg.in/yaml.v3"
)

// Decode reads one YAML document from r and returns its spec.
func Decode(r io.Reader) (*domkit.NodeSpec, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, domkit.Errorf(domkit.EINVALID, "spec YAML is empty")
		}
		return nil, domkit.Errorf(domkit.EINVALID, "parsing spec YAML: %v", err)
	}

	n := &root
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	return specFromNode(n)
}

// DecodeString is like Decode but reads from s.
func DecodeString(s string) (*domkit.NodeSpec, error) {
	return Decode(strings.NewReader(s))
}

func specFromNode(n *yaml.Node) (*domkit.NodeSpec, error) {
	n = resolve(n)
	if n.Kind != yaml.MappingNode {
		return nil, domkit.Errorf(domkit.EINVALID, "line %d: node spec must be a mapping", n.Line)
	}

	spec := &domkit.NodeSpec{}
	hasElement := false
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i].Value, resolve(n.Content[i+1])
		switch key {
		case "element":
			if val.Kind != yaml.ScalarNode || isNull(val) {
				return nil, domkit.Errorf(domkit.EINVALID, "line %d: element must be a string", val.Line)
			}
			spec.Tag = val.Value
			hasElement = true
		case "attributes":
			if isNull(val) {
				continue
			}
			if val.Kind != yaml.MappingNode {
				return nil, domkit.Errorf(domkit.EINVALID, "line %d: attributes must be a mapping", val.Line)
			}
			for j := 0; j+1 < len(val.Content); j += 2 {
				k, v := val.Content[j].Value, resolve(val.Content[j+1])
				if v.Kind != yaml.ScalarNode || isNull(v) {
					return nil, domkit.Errorf(domkit.EINVALID, "line %d: attribute %q must be a string, number or boolean", v.Line, k)
				}
				spec.Attributes.Set(k, scalarText(v))
			}
		case "children":
			if isNull(val) {
				continue
			}
			if val.Kind != yaml.SequenceNode {
				return nil, domkit.Errorf(domkit.EINVALID, "line %d: children must be a sequence", val.Line)
			}
			for _, c := range val.Content {
				spec.Children = append(spec.Children, decodeChild(c))
			}
		}
	}

	if !hasElement {
		return nil, domkit.Errorf(domkit.EINVALID, "line %d: node spec has no element", n.Line)
	}
	return spec, nil
}

func decodeChild(n *yaml.Node) domkit.Child {
	n = resolve(n)
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!bool":
			return domkit.InvalidChild{Raw: n.Value, Reason: "boolean is not an element or text"}
		case "!!null":
			return domkit.InvalidChild{Raw: n.Value, Reason: "null is not an element or text"}
		}
		return domkit.TextChild{Text: scalarText(n)}
	case yaml.MappingNode:
		spec, err := specFromNode(n)
		if err != nil {
			return domkit.InvalidChild{Reason: domkit.ErrorMessage(err)}
		}
		return domkit.ElementChild{Spec: spec}
	}
	return domkit.InvalidChild{Reason: "sequence is not an element or text"}
}

// scalarText stringifies a scalar, normalizing numbers the way JSON
// numbers are normalized.
func scalarText(n *yaml.Node) string {
	switch n.ShortTag() {
	case "!!int":
		// Base prefixes (0x1F, 0o17, 0b101) are rewritten in decimal.
		if i, err := strconv.ParseInt(n.Value, 0, 64); err == nil {
			return domkit.FormatNumber(json.Number(strconv.FormatInt(i, 10)))
		}
		return domkit.FormatNumber(json.Number(n.Value))
	case "!!float":
		return domkit.FormatNumber(json.Number(n.Value))
	}
	return n.Value
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
