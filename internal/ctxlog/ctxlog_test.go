package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("returns the attached logger", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := slog.New(slog.NewTextHandler(buf, nil))
		ctx := WithLogger(context.Background(), logger)

		require.True(t, Has(ctx))
		FromContext(ctx).Info("hello", "k", 1)
		assert.Contains(t, buf.String(), "hello")
		assert.Contains(t, buf.String(), "k=1")
	})

	t.Run("falls back to a discarding logger", func(t *testing.T) {
		ctx := context.Background()
		assert.False(t, Has(ctx))
		require.NotNil(t, FromContext(ctx))
		assert.NotPanics(t, func() { FromContext(ctx).Error("ignored") })
	})
}
