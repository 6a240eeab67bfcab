// Package storagetest holds behavior tests shared by every storage.KV backend.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"swapledger/internal/storage"
)

// RunKV exercises Get, Set and SetMany against kv.
func RunKV(t *testing.T, kv storage.KV) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Set(ctx, "swapledger/admin", []byte(`{"admin":"root"}`)))
	val, ok, err := kv.Get(ctx, "swapledger/admin")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"admin":"root"}`, string(val))

	val[0] = 'X'
	again, _, err := kv.Get(ctx, "swapledger/admin")
	require.NoError(t, err)
	require.Equal(t, `{"admin":"root"}`, string(again), "returned value must be a copy")

	require.NoError(t, kv.SetMany(ctx, []storage.Entry{
		{Key: "swapledger/admin", Value: []byte(`{"admin":"ops"}`)},
		{Key: "swapledger/pools", Value: []byte(`[]`)},
	}))
	val, ok, err = kv.Get(ctx, "swapledger/admin")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"admin":"ops"}`, string(val))
	val, ok, err = kv.Get(ctx, "swapledger/pools")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `[]`, string(val))
}
