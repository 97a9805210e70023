package watermark

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/pkg/indexer"
	"github.com/goran-ethernal/IndexGraph/tests/helpers"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	database := helpers.NewTestDB(t, "watermark.db")
	t.Cleanup(func() { database.Close() })

	return NewStore(database, logger.NewNopLogger(), nil), database
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)

	_, err := store.Get(t.Context(), "unknown")
	require.ErrorIs(t, err, indexer.ErrWatermarkNotFound)

	err = store.SetSafeHeight(t.Context(), nil, "unknown", 10)
	require.ErrorIs(t, err, indexer.ErrWatermarkNotFound)
}

func TestStore_UpsertAndGet(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.Upsert(ctx, nil, &indexer.Watermark{IndexerID: "a", SafeHeight: 10, MinHeight: 10}))

	wm, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, &indexer.Watermark{IndexerID: "a", SafeHeight: 10, MinHeight: 10}, wm)

	require.NoError(t, store.Upsert(ctx, nil,
		&indexer.Watermark{IndexerID: "a", SafeHeight: 20, MinHeight: 10, ConfigHash: "abc"}))

	wm, err = store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, uint64(20), wm.SafeHeight)
	require.Equal(t, "abc", wm.ConfigHash)
}

func TestStore_SetSafeHeightAndHash(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.Upsert(ctx, nil, &indexer.Watermark{IndexerID: "a", SafeHeight: 0, MinHeight: 0}))
	require.NoError(t, store.SetSafeHeight(ctx, nil, "a", 3600))
	require.NoError(t, store.SetConfigHash(ctx, nil, "a", "hash-1"))

	wm, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, uint64(3600), wm.SafeHeight)
	require.Equal(t, "hash-1", wm.ConfigHash)

	require.NoError(t, store.SetConfigHash(ctx, nil, "a", ""))
	wm, err = store.Get(ctx, "a")
	require.NoError(t, err)
	require.Empty(t, wm.ConfigHash)
}

func TestStore_SwapSafeHeight(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.Upsert(ctx, nil, &indexer.Watermark{IndexerID: "a", SafeHeight: 100}))
	require.NoError(t, store.SwapSafeHeight(ctx, nil, "a", 100, 200))

	// a writer still holding the old height loses
	err := store.SwapSafeHeight(ctx, nil, "a", 100, 300)
	require.ErrorIs(t, err, indexer.ErrWatermarkMoved)
	require.Contains(t, err.Error(), "a is at 200, expected 100")

	wm, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, uint64(200), wm.SafeHeight)

	err = store.SwapSafeHeight(ctx, nil, "unknown", 0, 10)
	require.ErrorIs(t, err, indexer.ErrWatermarkNotFound)

	// inside a transaction the loser can still roll back its other writes
	boom := store.WithTx(ctx, func(tx *sql.Tx) error {
		return store.SwapSafeHeight(ctx, tx, "a", 150, 250)
	})
	require.ErrorIs(t, boom, indexer.ErrWatermarkMoved)
}

func TestStore_WithTxIsAtomic(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.Upsert(ctx, nil, &indexer.Watermark{IndexerID: "a"}))
	require.NoError(t, store.Upsert(ctx, nil, &indexer.Watermark{IndexerID: "b"}))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx *sql.Tx) error {
		require.NoError(t, store.SetSafeHeight(ctx, tx, "a", 100))
		require.NoError(t, store.SetSafeHeight(ctx, tx, "b", 100))
		return boom
	})
	require.ErrorIs(t, err, boom)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, wm := range all {
		require.Zero(t, wm.SafeHeight, wm.IndexerID)
	}

	require.NoError(t, store.WithTx(ctx, func(tx *sql.Tx) error {
		return store.SetSafeHeight(ctx, tx, "a", 100)
	}))

	wm, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, uint64(100), wm.SafeHeight)
}

func TestStore_DeleteAndDeleteAll(t *testing.T) {
	t.Parallel()

	store, _ := newTestStore(t)
	ctx := t.Context()

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, store.Upsert(ctx, nil, &indexer.Watermark{IndexerID: id}))
	}

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, ids(all))

	require.NoError(t, store.Delete(ctx, "b"))
	all, err = store.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, ids(all))

	require.NoError(t, store.DeleteAll(ctx))
	all, err = store.GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
	require.False(t, store.Degraded())
}

func ids(all []*indexer.Watermark) []string {
	out := make([]string, 0, len(all))
	for _, wm := range all {
		out = append(out, wm.IndexerID)
	}
	return out
}
