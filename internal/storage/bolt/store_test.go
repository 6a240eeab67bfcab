package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"swapledger/internal/storage"
	"swapledger/internal/storage/storagetest"
)

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := Open(path, "")
	require.NoError(t, err)
	storagetest.RunKV(t, store)
	require.NoError(t, store.Close())

	reopened, err := Open(path, "")
	require.NoError(t, err)
	val, ok, err := reopened.Get(context.Background(), "swapledger/admin")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"admin":"ops"}`, string(val))

	require.NoError(t, reopened.Close())
	require.ErrorIs(t, reopened.Set(context.Background(), "k", nil), storage.ErrClosed)
}
