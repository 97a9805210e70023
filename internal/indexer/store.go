package indexer

import (
	"context"
	"database/sql"

	"github.com/goran-ethernal/IndexGraph/pkg/indexer"
)

// WatermarkStore persists the safe height of every node.
type WatermarkStore interface {
	Get(ctx context.Context, id string) (*indexer.Watermark, error)
	Upsert(ctx context.Context, tx *sql.Tx, wm *indexer.Watermark) error
	SetSafeHeight(ctx context.Context, tx *sql.Tx, id string, height uint64) error
	// SwapSafeHeight is a compare-and-set of the safe height and returns
	// indexer.ErrWatermarkMoved when the stored height is not expected.
	SwapSafeHeight(ctx context.Context, tx *sql.Tx, id string, expected, height uint64) error
	SetConfigHash(ctx context.Context, tx *sql.Tx, id, hash string) error
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	Degraded() bool
}

// Executor runs one update cycle of the node id and returns its error.
type Executor interface {
	Execute(ctx context.Context, id string, fn func() error) error
}

type inlineExecutor struct{}

func (inlineExecutor) Execute(_ context.Context, _ string, fn func() error) error {
	return fn()
}
