package yaml_test

import (
	"testing"

	"github.com/fwojciec/domkit"
	"github.com/fwojciec/domkit/yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("matches the equivalent JSON spec", func(t *testing.T) {
		t.Parallel()

		fromYAML, err := yaml.DecodeString(`
element: div
attributes:
  id: box
  class: card
  tabindex: 1
children:
  - "Hello "
  - element: span
    attributes: {class: name}
    children: [world]
  - 1.50
`)
		require.NoError(t, err)

		fromJSON, err := domkit.ParseNodeSpec([]byte(`{
			"element": "div",
			"attributes": {"id": "box", "class": "card", "tabindex": 1},
			"children": ["Hello ", {"element": "span", "attributes": {"class": "name"}, "children": ["world"]}, 1.50]
		}`))
		require.NoError(t, err)

		assert.Equal(t, fromJSON, fromYAML)
	})

	t.Run("writes integers with a base prefix in decimal", func(t *testing.T) {
		t.Parallel()

		spec, err := yaml.DecodeString(`
element: ol
attributes: {start: 0x1F}
children: [0o17, 0b101, -0x10, 1e3]
`)

		require.NoError(t, err)
		start, ok := spec.Attributes.Get("start")
		assert.True(t, ok)
		assert.Equal(t, "31", start)
		assert.Equal(t, []domkit.Child{
			domkit.TextChild{Text: "15"},
			domkit.TextChild{Text: "5"},
			domkit.TextChild{Text: "-16"},
			domkit.TextChild{Text: "1000"},
		}, spec.Children)
	})

	t.Run("keeps malformed children as invalid entries", func(t *testing.T) {
		t.Parallel()

		spec, err := yaml.DecodeString(`
element: p
children:
  - ok
  - true
  - ~
  - [nested]
  - {attributes: {a: b}}
`)

		require.NoError(t, err)
		require.Len(t, spec.Children, 5)
		assert.Equal(t, domkit.TextChild{Text: "ok"}, spec.Children[0])
		for _, c := range spec.Children[1:] {
			assert.IsType(t, domkit.InvalidChild{}, c)
		}
		assert.Contains(t, spec.Children[4].(domkit.InvalidChild).Reason, "no element")
	})

	t.Run("rejects a spec without element", func(t *testing.T) {
		t.Parallel()

		_, err := yaml.DecodeString(`attributes: {id: x}`)

		require.Error(t, err)
		assert.Equal(t, domkit.EINVALID, domkit.ErrorCode(err))
	})

	t.Run("rejects non-scalar attribute values", func(t *testing.T) {
		t.Parallel()

		_, err := yaml.DecodeString(`
element: div
attributes:
  data: [1, 2]
`)

		require.Error(t, err)
		assert.Contains(t, domkit.ErrorMessage(err), `attribute "data"`)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		t.Parallel()

		_, err := yaml.DecodeString(``)

		require.Error(t, err)
		assert.Equal(t, domkit.EINVALID, domkit.ErrorCode(err))
	})
}
