package domkit_test

import (
	"encoding/json"
	"testing"

	"github.com/fwojciec/domkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNodeSpec(t *testing.T) {
	t.Parallel()

	t.Run("decodes tag, ordered attributes and mixed children", func(t *testing.T) {
		t.Parallel()

		spec, err := domkit.ParseNodeSpec([]byte(`{
			"element": "label",
			"attributes": {"for": "login", "class": "field", "tabindex": 2, "hidden": false},
			"children": ["Login ", {"element": "input"}, 42]
		}`))

		require.NoError(t, err)
		assert.Equal(t, "label", spec.Tag)
		assert.Equal(t, domkit.Attributes{
			{Key: "for", Value: "login"},
			{Key: "class", Value: "field"},
			{Key: "tabindex", Value: "2"},
			{Key: "hidden", Value: "false"},
		}, spec.Attributes)
		require.Len(t, spec.Children, 3)
		assert.Equal(t, domkit.TextChild{Text: "Login "}, spec.Children[0])
		assert.Equal(t, domkit.ElementChild{Spec: &domkit.NodeSpec{Tag: "input"}}, spec.Children[1])
		assert.Equal(t, domkit.TextChild{Text: "42"}, spec.Children[2])
	})

	t.Run("keeps the first position of a repeated attribute with the last value", func(t *testing.T) {
		t.Parallel()

		spec, err := domkit.ParseNodeSpec([]byte(`{"element": "a", "attributes": {"href": "/x", "id": "y", "href": "/z"}}`))

		require.NoError(t, err)
		assert.Equal(t, domkit.Attributes{{Key: "href", Value: "/z"}, {Key: "id", Value: "y"}}, spec.Attributes)
	})

	t.Run("classifies malformed children without failing", func(t *testing.T) {
		t.Parallel()

		spec, err := domkit.ParseNodeSpec([]byte(`{"element": "p", "children": [true, null, [1], {"nope": 1}, {"element": "b", "children": 5}]}`))

		require.NoError(t, err)
		require.Len(t, spec.Children, 5)
		reasons := make([]string, 0, len(spec.Children))
		for _, c := range spec.Children {
			invalid, ok := c.(domkit.InvalidChild)
			require.True(t, ok, "expected InvalidChild, got %T", c)
			reasons = append(reasons, invalid.Reason)
		}
		assert.Contains(t, reasons[0], "boolean")
		assert.Contains(t, reasons[1], "null")
		assert.Contains(t, reasons[2], "array")
		assert.Contains(t, reasons[3], "no element")
		assert.Contains(t, reasons[4], "children must be an array")
	})

	t.Run("rejects specs without element", func(t *testing.T) {
		t.Parallel()

		_, err := domkit.ParseNodeSpec([]byte(`{"attributes": {}}`))

		require.Error(t, err)
		assert.Equal(t, domkit.EINVALID, domkit.ErrorCode(err))
	})

	t.Run("rejects non-scalar attribute values", func(t *testing.T) {
		t.Parallel()

		_, err := domkit.ParseNodeSpec([]byte(`{"element": "div", "attributes": {"data": {"a": 1}}}`))

		require.Error(t, err)
		assert.Equal(t, domkit.EINVALID, domkit.ErrorCode(err))
		assert.Contains(t, domkit.ErrorMessage(err), `attribute "data"`)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		t.Parallel()

		_, err := domkit.ParseNodeSpec([]byte(`{"element": `))

		assert.Equal(t, domkit.EINVALID, domkit.ErrorCode(err))
	})
}

func TestNodeSpec_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		spec    *domkit.NodeSpec
		wantErr bool
	}{
		{name: "simple tag", spec: &domkit.NodeSpec{Tag: "div"}},
		{name: "custom element", spec: &domkit.NodeSpec{Tag: "my-widget"}},
		{name: "namespaced attribute", spec: &domkit.NodeSpec{Tag: "svg", Attributes: domkit.Attributes{{Key: "xlink:href", Value: "#a"}}}},
		{name: "nil spec", spec: nil, wantErr: true},
		{name: "empty tag", spec: &domkit.NodeSpec{}, wantErr: true},
		{name: "tag with space", spec: &domkit.NodeSpec{Tag: "not a tag"}, wantErr: true},
		{name: "tag starting with digit", spec: &domkit.NodeSpec{Tag: "1bad"}, wantErr: true},
		{name: "attribute with quote", spec: &domkit.NodeSpec{Tag: "a", Attributes: domkit.Attributes{{Key: `x"y`}}}, wantErr: true},
		{
			name: "invalid child is not the spec's error",
			spec: &domkit.NodeSpec{Tag: "p", Children: []domkit.Child{domkit.InvalidChild{Reason: "bad"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.spec.Validate()

			if tt.wantErr {
				assert.Equal(t, domkit.EINVALID, domkit.ErrorCode(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestAttributes_Set(t *testing.T) {
	t.Parallel()

	var attrs domkit.Attributes
	attrs.Set("id", "a")
	attrs.Set("class", "x")
	attrs.Set("id", "b")

	assert.Equal(t, domkit.Attributes{{Key: "id", Value: "b"}, {Key: "class", Value: "x"}}, attrs)
	v, ok := attrs.Get("id")
	assert.True(t, ok)
	assert.Equal(t, "b", v)
	_, ok = attrs.Get("style")
	assert.False(t, ok)
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "42", want: "42"},
		{in: "1.50", want: "1.5"},
		{in: "-0.25", want: "-0.25"},
		{in: "3.0", want: "3"},
		{in: "1e21", want: "1e+21"},
		{in: "1e-7", want: "1e-7"},
		{in: "0", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, domkit.FormatNumber(json.Number(tt.in)))
		})
	}
}
