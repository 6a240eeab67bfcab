package pebble

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"swapledger/internal/storage"
	"swapledger/internal/storage/storagetest"
)

func TestPebbleStore(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	storagetest.RunKV(t, store)
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()
	val, ok, err := reopened.Get(context.Background(), "swapledger/pools")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "[]", string(val))

	require.NoError(t, reopened.Close())
	_, _, err = reopened.Get(context.Background(), "swapledger/pools")
	require.ErrorIs(t, err, storage.ErrClosed)
}
