package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"swapledger/internal/model"
	"swapledger/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	dsn := os.Getenv("SWAPLEDGER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("SWAPLEDGER_TEST_PG_DSN not set")
	}
	ctx := context.Background()

	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.EnsureSchema(ctx))

	storagetest.RunKV(t, store)

	ev := model.Event{ID: uuid.NewString(), Kind: model.EventDeposit, Identity: "alice", AssetIn: "XLM", AmountIn: 10, Timestamp: 1}
	require.NoError(t, store.Emit(ctx, []model.Event{ev}))
	require.NoError(t, store.Emit(ctx, []model.Event{ev}), "duplicate ids are ignored")
}

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	require.Error(t, err)
}
