// Package reorg watches the blocks holding tracked transactions and rolls the
// tracked transactions indexer back when one of them leaves the canonical chain.
package reorg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/internal/metrics"
	"github.com/goran-ethernal/IndexGraph/internal/trackedtxs"
	"github.com/goran-ethernal/IndexGraph/pkg/indexer"
	pkgrpc "github.com/goran-ethernal/IndexGraph/pkg/rpc"
)

// BlockSource lists the blocks that hold indexed records.
type BlockSource interface {
	BlocksAfter(ctx context.Context, number uint64) ([]*trackedtxs.BlockRef, error)
}

// Invalidator rolls an indexer and its descendants back to a height.
type Invalidator interface {
	Invalidate(ctx context.Context, id string, target uint64) (uint64, error)
}

// Config tunes the watcher.
type Config struct {
	// IndexerID is the indexer invalidated on a reorg.
	IndexerID string
	// Depth is how many blocks below the head are re-checked.
	Depth uint64
	// Interval between checks.
	Interval time.Duration
}

// Watcher compares the stored hashes of recent tracked blocks with the chain.
type Watcher struct {
	cfg         Config
	client      pkgrpc.EthClient
	blocks      BlockSource
	invalidator Invalidator
	log         *logger.Logger
}

// NewWatcher creates a reorg watcher.
func NewWatcher(cfg Config, client pkgrpc.EthClient, blocks BlockSource, invalidator Invalidator,
	log *logger.Logger) *Watcher {
	return &Watcher{
		cfg:         cfg,
		client:      client,
		blocks:      blocks,
		invalidator: invalidator,
		log:         log.WithComponent(common.ComponentReorgWatcher),
	}
}

// Run checks on every interval until ctx is cancelled. Failed checks are
// logged and retried on the next tick, except a rollback that could not be
// applied: Run returns it so the operator deals with the indexer.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.log.Infof("watching the last %d blocks of %s every %s", w.cfg.Depth, w.cfg.IndexerID, w.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		_, err := w.Check(ctx)
		if err == nil || ctx.Err() != nil {
			continue
		}
		if rollbackFailed(err) {
			w.log.Errorf("rolling back %s failed, stopping: %v", w.cfg.IndexerID, err)
			return err
		}
		w.log.Warnf("reorg check failed: %v", err)
	}
}

func rollbackFailed(err error) bool {
	var invErr *indexer.InvalidationError
	var cfgErr *indexer.ConfigurationError
	return errors.As(err, &invErr) || errors.As(err, &cfgErr)
}

// Check verifies the stored blocks within Depth of the head. On the first
// mismatch it invalidates the indexer to just before that block and returns
// the detected reorg. It returns nil when every block is canonical.
func (w *Watcher) Check(ctx context.Context) (*DetectedError, error) {
	head, err := w.client.GetLatestBlockHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get head: %w", err)
	}
	headNum := head.Number.Uint64()

	stored, err := w.blocks.BlocksAfter(ctx, headNum-min(headNum, w.cfg.Depth))
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}

	nums := make([]uint64, len(stored))
	for i, b := range stored {
		nums[i] = b.BlockNumber
	}

	headers, err := w.client.BatchGetBlockHeaders(ctx, nums)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tracked headers: %w", err)
	}

	for i, h := range headers {
		if h.Hash() == stored[i].BlockHash {
			continue
		}

		reorg := &DetectedError{
			Block:     stored[i].BlockNumber,
			Timestamp: stored[i].Timestamp,
			Stored:    stored[i].BlockHash.Hex(),
			Canonical: h.Hash().Hex(),
		}
		w.log.Warn(reorg.Error())
		metrics.ReorgDetectedLog(w.cfg.IndexerID, headNum-reorg.Block+1)

		target := reorg.Timestamp - 1
		acked, err := w.invalidator.Invalidate(ctx, w.cfg.IndexerID, target)
		if err != nil {
			return reorg, errors.Join(reorg, err)
		}

		w.log.Infof("%s rolled back to %d", w.cfg.IndexerID, acked)
		return reorg, nil
	}

	w.log.Debugf("%d tracked blocks verified", len(stored))
	return nil, nil
}
