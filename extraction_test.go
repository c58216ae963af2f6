package domkit_test

import (
	"testing"

	"github.com/fwojciec/domkit"
	"github.com/stretchr/testify/assert"
)

func TestField_AttrName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		field  domkit.Field
		want   string
		wantOK bool
	}{
		{field: domkit.AttrField("href"), want: "href", wantOK: true},
		{field: "attr:data-id", want: "data-id", wantOK: true},
		{field: "attr:"},
		{field: domkit.FieldText},
	}

	for _, tt := range tests {
		t.Run(string(tt.field), func(t *testing.T) {
			t.Parallel()

			name, ok := tt.field.AttrName()

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, name)
		})
	}
}

func TestExtractionRequest_Validate(t *testing.T) {
	t.Parallel()

	var nilReq *domkit.ExtractionRequest
	assert.Equal(t, domkit.EINVALID, domkit.ErrorCode(nilReq.Validate()))
	assert.NoError(t, (&domkit.ExtractionRequest{}).Validate())
	assert.NoError(t, (&domkit.ExtractionRequest{Patterns: []string{"p"}}).Validate())
}

func TestDiagnostic_String(t *testing.T) {
	t.Parallel()

	d := domkit.Diagnostic{Kind: domkit.KindMissingParent, Subject: "#root", Message: "matched no element"}
	assert.Equal(t, "missing_parent: #root: matched no element", d.String())

	d = domkit.Diagnostic{Kind: domkit.KindHostFailure, Message: "connection lost"}
	assert.Equal(t, "host_failure: connection lost", d.String())
}

func TestParseOperation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want domkit.Operation
	}{
		{name: "head", want: domkit.OpLoadHead},
		{name: "loading", want: domkit.OpLoadHead},
		{name: "create", want: domkit.OpCreate},
		{name: "read", want: domkit.OpRead},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			op, err := domkit.ParseOperation(tt.name)

			assert.NoError(t, err)
			assert.Equal(t, tt.want, op)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()

		_, err := domkit.ParseOperation("update")

		assert.Equal(t, domkit.EINVALID, domkit.ErrorCode(err))
		assert.Equal(t, `unknown operation "update"`, domkit.ErrorMessage(err))
	})
}
