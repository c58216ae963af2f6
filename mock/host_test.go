package mock_test

import (
	"context"
	"testing"

	"github.com/fwojciec/domkit"
	"github.com/fwojciec/domkit/mock"
	"github.com/stretchr/testify/assert"
)

func TestHost_ImplementsInterface(t *testing.T) {
	t.Parallel()

	var _ domkit.Host = &mock.Host{}
}

func TestHost_Log(t *testing.T) {
	t.Parallel()

	t.Run("is a no-op without LogFn", func(t *testing.T) {
		t.Parallel()

		h := &mock.Host{}

		assert.NotPanics(t, func() { h.Log(context.Background(), "ignored") })
	})

	t.Run("delegates to LogFn", func(t *testing.T) {
		t.Parallel()

		var got string
		h := &mock.Host{
			LogFn: func(_ context.Context, message string) {
				got = message
			},
		}

		h.Log(context.Background(), "hello")

		assert.Equal(t, "hello", got)
	})
}
