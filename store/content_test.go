package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryContent(t *testing.T) {
	ctx := context.Background()
	cs := NewMemoryContent()

	data := []byte(`{"user":"u1","tag":"TAG-42"}`)
	ref, err := cs.Put(ctx, data)
	require.NoError(t, err)

	t.Run("ref is the sha256 of the content", func(t *testing.T) {
		sum := sha256.Sum256(data)
		assert.Equal(t, hex.EncodeToString(sum[:]), ref)
	})

	t.Run("same bytes, same ref", func(t *testing.T) {
		again, err := cs.Put(ctx, data)
		require.NoError(t, err)
		assert.Equal(t, ref, again)
	})

	t.Run("different bytes, different ref", func(t *testing.T) {
		other, err := cs.Put(ctx, []byte("something else"))
		require.NoError(t, err)
		assert.NotEqual(t, ref, other)
	})

	t.Run("round trip", func(t *testing.T) {
		got, err := cs.Get(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("missing ref", func(t *testing.T) {
		_, err := cs.Get(ctx, "0000000000000000000000000000000000000000000000000000000000000000")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("stored copy is isolated from caller mutation", func(t *testing.T) {
		buf := []byte("mutable")
		ref, err := cs.Put(ctx, buf)
		require.NoError(t, err)
		buf[0] = 'X'
		got, err := cs.Get(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, []byte("mutable"), got)
	})
}
