package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"swapledger/internal/model"
	"swapledger/internal/storage"
	"swapledger/internal/storage/storagetest"
)

func TestMemoryKV(t *testing.T) {
	mem := storage.NewMemory()
	storagetest.RunKV(t, mem)
	require.Equal(t, []string{"swapledger/admin", "swapledger/pools"}, mem.Keys())

	require.NoError(t, mem.Close())
	_, _, err := mem.Get(context.Background(), "swapledger/admin")
	require.ErrorIs(t, err, storage.ErrClosed)
}

func TestFileKV(t *testing.T) {
	dir := t.TempDir()
	storagetest.RunKV(t, &storage.FileKV{Dir: filepath.Join(dir, "state")})

	entries, err := os.ReadDir(filepath.Join(dir, "state"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, storage.FileStateName, entries[0].Name())
}

// A failed SetMany leaves every key at its previous value.
func TestFileKVSetManyAllOrNothing(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	kv := &storage.FileKV{Dir: dir}
	require.NoError(t, kv.SetMany(ctx, []storage.Entry{
		{Key: "swapledger/ledger", Value: []byte(`{"v":1}`)},
		{Key: "swapledger/pools", Value: []byte(`{"v":1}`)},
	}))

	blocker := filepath.Join(dir, storage.FileStateName+".tmp")
	require.NoError(t, os.Mkdir(blocker, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(blocker, "keep"), nil, 0o644))
	err := kv.SetMany(ctx, []storage.Entry{
		{Key: "swapledger/ledger", Value: []byte(`{"v":2}`)},
		{Key: "swapledger/pools", Value: []byte(`{"v":2}`)},
	})
	require.Error(t, err)
	for _, key := range []string{"swapledger/ledger", "swapledger/pools"} {
		val, ok, err := kv.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, `{"v":1}`, string(val), key)
	}

	require.NoError(t, os.RemoveAll(blocker))
	require.NoError(t, kv.SetMany(ctx, []storage.Entry{
		{Key: "swapledger/ledger", Value: []byte(`{"v":2}`)},
		{Key: "swapledger/pools", Value: []byte(`{"v":2}`)},
	}))
	reopened := &storage.FileKV{Dir: dir}
	val, ok, err := reopened.Get(ctx, "swapledger/pools")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"v":2}`, string(val))
}

func TestCachedKV(t *testing.T) {
	backend := storage.NewMemory()
	cached, err := storage.NewCached(backend, 1)
	require.NoError(t, err)
	storagetest.RunKV(t, cached)
	require.Equal(t, 1, cached.Len())

	ctx := context.Background()
	require.NoError(t, backend.Set(ctx, "swapledger/ledger", []byte("{}")))
	val, ok, err := cached.Get(ctx, "swapledger/ledger")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "{}", string(val))
}

func TestAuditLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "events.jsonl")
	sink := storage.NewAuditLog(path)
	ctx := context.Background()

	require.NoError(t, sink.Emit(ctx, []model.Event{
		{ID: "1", Kind: model.EventDeposit, Identity: "alice", AssetIn: "XLM", AmountIn: 10, Timestamp: 5},
		{ID: "2", Kind: model.EventSwap, Identity: "alice", PoolID: 1, AssetIn: "XLM", AssetOut: "USDC", AmountIn: 10, AmountOut: 9, Timestamp: 6},
	}))
	require.NoError(t, sink.Emit(ctx, nil))
	require.NoError(t, sink.Emit(ctx, []model.Event{{ID: "3", Kind: model.EventPaused, Timestamp: 7}}))

	records, tip, err := storage.ReadAuditLog(path)
	require.NoError(t, err)
	var kinds []model.EventKind
	var commits []uint64
	for _, rec := range records {
		kinds = append(kinds, rec.Event.Kind)
		commits = append(commits, rec.Commit)
	}
	require.Equal(t, []model.EventKind{model.EventDeposit, model.EventSwap, model.EventPaused}, kinds)
	require.Equal(t, []uint64{1, 1, 2}, commits)
	require.Equal(t, uint64(3), tip.Seq)
	require.Equal(t, uint64(2), tip.Commit)
	require.Equal(t, records[1].Hash, records[2].PrevHash)

	// A new writer continues the chain of the existing file.
	reopened := storage.NewAuditLog(path)
	require.NoError(t, reopened.Emit(ctx, []model.Event{{ID: "4", Kind: model.EventUnpaused, Timestamp: 8}}))
	records, tip, err = storage.ReadAuditLog(path)
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, uint64(4), records[3].Seq)
	require.Equal(t, uint64(3), tip.Commit)
	require.Equal(t, records[2].Hash, records[3].PrevHash)
}

func TestAuditLogDropsTornCommit(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	full := filepath.Join(dir, "full.jsonl")
	require.NoError(t, storage.NewAuditLog(full).Emit(ctx, []model.Event{
		{ID: "1", Kind: model.EventDeposit, Identity: "alice", AssetIn: "XLM", AmountIn: 10},
		{ID: "2", Kind: model.EventWithdraw, Identity: "alice", AssetOut: "XLM", AmountOut: 4},
	}))
	data, err := os.ReadFile(full)
	require.NoError(t, err)
	lines := strings.SplitAfter(string(data), "\n")

	// Only the first record of the commit reached the disk, then half a line.
	torn := filepath.Join(dir, "torn.jsonl")
	require.NoError(t, os.WriteFile(torn, []byte(lines[0]+`{"seq":2,"com`), 0o644))
	records, tip, err := storage.ReadAuditLog(torn)
	require.NoError(t, err)
	require.Empty(t, records)
	require.Zero(t, tip.Offset)

	sink := storage.NewAuditLog(torn)
	require.NoError(t, sink.Emit(ctx, []model.Event{{ID: "3", Kind: model.EventPaused}}))
	records, _, err = storage.ReadAuditLog(torn)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, uint64(1), records[0].Seq)
	require.Equal(t, model.EventPaused, records[0].Event.Kind)
}

func TestAuditLogDetectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	ctx := context.Background()
	sink := storage.NewAuditLog(path)
	require.NoError(t, sink.Emit(ctx, []model.Event{{ID: "1", Kind: model.EventDeposit, Identity: "alice", AssetIn: "XLM", AmountIn: 10}}))
	require.NoError(t, sink.Emit(ctx, []model.Event{{ID: "2", Kind: model.EventPaused}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	edited := strings.Replace(string(data), `"amount_in":10`, `"amount_in":1000`, 1)
	require.NotEqual(t, string(data), edited)
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	_, _, err = storage.ReadAuditLog(path)
	require.ErrorIs(t, err, storage.ErrAuditChain)
	err = storage.NewAuditLog(path).Emit(ctx, []model.Event{{ID: "3", Kind: model.EventUnpaused}})
	require.ErrorIs(t, err, storage.ErrAuditChain)

	// Dropping a whole commit breaks the sequence as well.
	lines := strings.SplitAfter(string(data), "\n")
	require.NoError(t, os.WriteFile(path, []byte(lines[1]), 0o644))
	_, _, err = storage.ReadAuditLog(path)
	require.ErrorIs(t, err, storage.ErrAuditChain)
}
