package domkit

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// NodeSpec declares one element and its subtree.
//
// The JSON form is {"element": "div", "attributes": {...}, "children": [...]}
// where children are nested specs, strings or numbers.
type NodeSpec struct {
	Tag        string
	Attributes Attributes
	Children   []Child
}

// Validate returns an error if the spec's own tag or attribute names are
// invalid. Children are validated as they are built so that one bad child
// does not reject its siblings.
func (s *NodeSpec) Validate() error {
	if s == nil {
		return Errorf(EINVALID, "node spec required")
	}
	if !ValidTagName(s.Tag) {
		return Errorf(EINVALID, "invalid tag name %q", s.Tag)
	}
	for _, attr := range s.Attributes {
		if !ValidAttributeName(attr.Key) {
			return Errorf(EINVALID, "invalid attribute name %q on <%s>", attr.Key, s.Tag)
		}
	}
	return nil
}

// UnmarshalJSON decodes a spec from its JSON form. Malformed children do not
// fail the decode; they are kept as InvalidChild entries.
func (s *NodeSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		Element    *string         `json:"element"`
		Attributes Attributes      `json:"attributes"`
		Children   json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		var e *Error
		if errors.As(err, &e) {
			return e
		}
		return Errorf(EINVALID, "invalid node spec: %v", err)
	}
	if raw.Element == nil {
		return Errorf(EINVALID, "node spec has no element")
	}

	children, err := decodeChildren(raw.Children)
	if err != nil {
		return err
	}

	*s = NodeSpec{
		Tag:        *raw.Element,
		Attributes: raw.Attributes,
		Children:   children,
	}
	return nil
}

// ParseNodeSpec decodes a single spec from JSON.
func ParseNodeSpec(data []byte) (*NodeSpec, error) {
	var spec NodeSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, asInvalid(err)
	}
	return &spec, nil
}

// Attribute is a single key/value pair applied to an element.
type Attribute struct {
	Key   string
	Value string
}

// Attributes is an ordered attribute list. Decoding preserves the order of
// the source object.
type Attributes []Attribute

// Get returns the value for key and whether it was present.
func (a Attributes) Get(key string) (string, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Set assigns value to key. An existing key keeps its position and takes
// the new value.
func (a *Attributes) Set(key, value string) {
	for i := range *a {
		if (*a)[i].Key == key {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Attribute{Key: key, Value: value})
}

// UnmarshalJSON decodes an attribute object, stringifying scalar values.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Errorf(EINVALID, "attributes: %v", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Errorf(EINVALID, "attributes must be an object")
	}

	var attrs Attributes
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Errorf(EINVALID, "attributes: %v", err)
		}
		key, _ := tok.(string)

		var v any
		if err := dec.Decode(&v); err != nil {
			return Errorf(EINVALID, "attribute %q: %v", key, err)
		}
		switch v := v.(type) {
		case string:
			attrs.Set(key, v)
		case json.Number:
			attrs.Set(key, FormatNumber(v))
		case bool:
			attrs.Set(key, strconv.FormatBool(v))
		default:
			return Errorf(EINVALID, "attribute %q must be a string, number or boolean", key)
		}
	}
	if _, err := dec.Token(); err != nil {
		return Errorf(EINVALID, "attributes: %v", err)
	}

	*a = attrs
	return nil
}

// Child is one entry of a spec's children. The concrete type is one of
// ElementChild, TextChild or InvalidChild.
type Child interface {
	child()
}

// ElementChild is a nested element.
type ElementChild struct {
	Spec *NodeSpec
}

// TextChild is literal text appended to the parent element.
type TextChild struct {
	Text string
}

// InvalidChild is an entry that is neither a valid nested spec nor a
// literal. It is reported when the parent is built.
type InvalidChild struct {
	Raw    string
	Reason string
}

func (ElementChild) child() {}
func (TextChild) child()    {}
func (InvalidChild) child() {}

func decodeChildren(data json.RawMessage) ([]Child, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] != '[' {
		return nil, Errorf(EINVALID, "children must be an array")
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, Errorf(EINVALID, "children: %v", err)
	}

	children := make([]Child, 0, len(entries))
	for _, entry := range entries {
		children = append(children, DecodeChild(entry))
	}
	return children, nil
}

// DecodeChild classifies one raw JSON child entry.
func DecodeChild(raw json.RawMessage) Child {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return InvalidChild{Reason: "empty entry"}
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return InvalidChild{Raw: string(raw), Reason: err.Error()}
		}
		return TextChild{Text: s}
	case '{':
		var spec NodeSpec
		if err := json.Unmarshal(raw, &spec); err != nil {
			return InvalidChild{Raw: string(raw), Reason: ErrorMessage(asInvalid(err))}
		}
		return ElementChild{Spec: &spec}
	case '[':
		return InvalidChild{Raw: string(raw), Reason: "array is not an element or text"}
	case 't', 'f':
		return InvalidChild{Raw: string(raw), Reason: "boolean is not an element or text"}
	case 'n':
		return InvalidChild{Raw: string(raw), Reason: "null is not an element or text"}
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return InvalidChild{Raw: string(raw), Reason: err.Error()}
	}
	return TextChild{Text: FormatNumber(n)}
}

// FormatNumber renders a JSON number the way a browser stringifies it:
// integers without a fraction, short decimals, exponents only for very
// large or very small magnitudes.
func FormatNumber(n json.Number) string {
	f, err := n.Float64()
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return n.String()
	}
	abs := math.Abs(f)
	if f == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	s = strings.Replace(s, "e+0", "e+", 1)
	s = strings.Replace(s, "e-0", "e-", 1)
	return s
}

// ValidTagName reports whether name can be used to create an element.
func ValidTagName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if i == 0 {
			if !unicode.IsLetter(r) {
				return false
			}
			continue
		}
		if !isNameRune(r) {
			return false
		}
	}
	return true
}

// ValidAttributeName reports whether name can be set as an attribute.
func ValidAttributeName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' && r != ':' {
				return false
			}
			continue
		}
		if !isNameRune(r) {
			return false
		}
	}
	return true
}

func isNameRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' || r == ':'
}

// asInvalid keeps application errors as-is and wraps decode errors as EINVALID.
func asInvalid(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Errorf(EINVALID, "%v", err)
}
