package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/internal/metrics"
	"github.com/goran-ethernal/IndexGraph/pkg/indexer"
)

const (
	outcomeSuccess = "success"
	outcomePartial = "partial"
	outcomeSkipped = "skipped"
	outcomeNoop    = "noop"
	outcomeError   = "error"
)

// ChildConfig configures a ChildIndexer.
type ChildConfig struct {
	ID        string
	MinHeight uint64
	// PollInterval re-triggers the node even without a parent signal.
	// Zero disables polling.
	PollInterval time.Duration
}

// ChildIndexer derives its range from its parents and hands the domain work
// to a Processor. Update cycles and invalidations of one node are serialised
// by mu; parents are only read through their cached safe heights.
type ChildIndexer struct {
	notifier

	cfg       ChildConfig
	processor indexer.Processor
	store     WatermarkStore
	log       *logger.Logger
	exec      Executor

	parents []indexer.Indexer
	trigger chan struct{}
	// subtree returns this node and its descendants in topological order.
	subtree func() []*ChildIndexer

	mu         sync.Mutex
	safe       atomic.Uint64
	configHash string
	storedHash string

	// onCycle runs at the start of every cycle while mu is held. Tests only.
	onCycle func()
}

var _ indexer.Indexer = (*ChildIndexer)(nil)

// NewChildIndexer creates a child node. Parents are attached by GraphBuilder.
func NewChildIndexer(cfg ChildConfig, processor indexer.Processor, store WatermarkStore,
	log *logger.Logger) (*ChildIndexer, error) {
	if cfg.ID == "" {
		return nil, indexer.NewConfigurationError("", "indexer id is required")
	}
	if processor == nil {
		return nil, indexer.NewConfigurationError(cfg.ID, "processor is required")
	}

	c := &ChildIndexer{
		cfg:       cfg,
		processor: processor,
		store:     store,
		log:       log.WithComponent(common.ComponentChildIndexer).With("indexer", cfg.ID),
		exec:      inlineExecutor{},
		trigger:   make(chan struct{}, 1),
	}
	c.subtree = func() []*ChildIndexer { return []*ChildIndexer{c} }

	if cp, ok := processor.(indexer.Configurable); ok {
		hash, err := indexer.Fingerprint(cp.Configuration())
		if err != nil {
			return nil, fmt.Errorf("failed to fingerprint configuration of %s: %w", cfg.ID, err)
		}
		c.configHash = hash
	}

	return c, nil
}

func (c *ChildIndexer) ID() string { return c.cfg.ID }

func (c *ChildIndexer) Parents() []indexer.Indexer { return c.parents }

func (c *ChildIndexer) MinHeight() uint64 { return c.cfg.MinHeight }

func (c *ChildIndexer) SafeHeight() uint64 { return c.safe.Load() }

func (c *ChildIndexer) wire(parents []indexer.Indexer) {
	c.parents = parents
	for _, p := range parents {
		p.Subscribe(c.trigger)
	}
}

func (c *ChildIndexer) useExecutor(exec Executor) {
	c.exec = exec
}

// Initialize creates the watermark on first run or loads the persisted one.
func (c *ChildIndexer) Initialize(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	wm, err := c.store.Get(ctx, c.cfg.ID)
	switch {
	case errors.Is(err, indexer.ErrWatermarkNotFound):
		wm = &indexer.Watermark{
			IndexerID:  c.cfg.ID,
			SafeHeight: c.cfg.MinHeight,
			MinHeight:  c.cfg.MinHeight,
			ConfigHash: c.configHash,
		}
		if err := c.store.Upsert(ctx, nil, wm); err != nil {
			return 0, fmt.Errorf("failed to create watermark of %s: %w", c.cfg.ID, err)
		}
		c.log.Infof("created watermark at min height %d", c.cfg.MinHeight)
	case err != nil:
		return 0, fmt.Errorf("failed to load watermark of %s: %w", c.cfg.ID, err)
	default:
		if wm.MinHeight != c.cfg.MinHeight {
			return 0, indexer.NewConfigurationError(c.cfg.ID,
				"persisted min height %d differs from configured %d", wm.MinHeight, c.cfg.MinHeight)
		}
		if wm.SafeHeight < wm.MinHeight {
			return 0, indexer.NewConfigurationError(c.cfg.ID,
				"persisted safe height %d is below min height %d", wm.SafeHeight, wm.MinHeight)
		}
		c.log.Infof("resuming from safe height %d", wm.SafeHeight)
	}

	c.storedHash = wm.ConfigHash
	c.setCached(wm.SafeHeight)

	return wm.SafeHeight, nil
}

// GetSafeHeight returns the durable safe height from the store.
func (c *ChildIndexer) GetSafeHeight(ctx context.Context) (uint64, error) {
	wm, err := c.store.Get(ctx, c.cfg.ID)
	if err != nil {
		return 0, err
	}
	return wm.SafeHeight, nil
}

// SetSafeHeight persists height as the new safe height of the node.
func (c *ChildIndexer) SetSafeHeight(ctx context.Context, height uint64) error {
	if height < c.cfg.MinHeight {
		return indexer.NewConfigurationError(c.cfg.ID,
			"safe height %d is below min height %d", height, c.cfg.MinHeight)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.SwapSafeHeight(ctx, nil, c.cfg.ID, c.safe.Load(), height); err != nil {
		if errors.Is(err, indexer.ErrWatermarkMoved) {
			if rerr := c.reload(ctx); rerr != nil {
				return errors.Join(err, rerr)
			}
		}
		return err
	}
	c.setCached(height)
	c.notify()

	return nil
}

// Invalidate rolls the node and every descendant back to target and returns
// the height this node acknowledges.
func (c *ChildIndexer) Invalidate(ctx context.Context, target uint64) (uint64, error) {
	acked, err := invalidateSubtree(ctx, c.store, c.subtree(), target, nil)
	if err != nil {
		return 0, err
	}
	return acked[c.cfg.ID], nil
}

// Trigger schedules an update cycle. Pending triggers coalesce.
func (c *ChildIndexer) Trigger() {
	signal(c.trigger)
}

// Run drives update cycles until ctx is cancelled. Only configuration errors
// end the loop; every other failure is logged and retried on the next trigger.
func (c *ChildIndexer) Run(ctx context.Context) error {
	var poll <-chan time.Time
	if c.cfg.PollInterval > 0 {
		ticker := time.NewTicker(c.cfg.PollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	c.Trigger()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.trigger:
		case <-poll:
		}

		var retrigger bool
		err := c.exec.Execute(ctx, c.cfg.ID, func() error {
			var err error
			retrigger, err = c.cycle(ctx)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			var cfgErr *indexer.ConfigurationError
			if errors.As(err, &cfgErr) {
				c.log.Errorf("stopping: %v", err)
				return err
			}

			c.log.Warnf("update cycle failed: %v", err)
			continue
		}

		if retrigger {
			c.Trigger()
		}
	}
}

// parentsHeight returns the lowest cached safe height among the parents.
func (c *ChildIndexer) parentsHeight() uint64 {
	target := c.parents[0].SafeHeight()
	for _, p := range c.parents[1:] {
		target = min(target, p.SafeHeight())
	}
	return target
}

func (c *ChildIndexer) window() indexer.Window {
	if w, ok := c.processor.(indexer.Windowed); ok {
		return w.Window()
	}
	return indexer.Window{}
}

// cycle runs one update and reports whether the node should run again
// right away.
func (c *ChildIndexer) cycle(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.onCycle != nil {
		c.onCycle()
	}

	if len(c.parents) == 0 {
		return false, indexer.NewConfigurationError(c.cfg.ID, "child indexer has no parents")
	}

	safe := c.safe.Load()
	target := c.parentsHeight()
	if target < safe {
		// a parent was rolled back by another process
		if err := c.reload(ctx); err != nil {
			return false, err
		}
		safe = c.safe.Load()
	}
	if target <= safe {
		metrics.UpdateOutcomeInc(c.cfg.ID, outcomeNoop)
		return false, nil
	}

	r := planRange(safe, target, c.window())
	newSafe := r.skipTo
	outcome := outcomeSkipped

	var writer indexer.Writer
	if r.fetch {
		start := time.Now()
		reached, w, err := c.processor.Update(ctx, r.from, r.to)
		metrics.UpdateDurationLog(c.cfg.ID, time.Since(start))
		if err != nil {
			metrics.UpdateOutcomeInc(c.cfg.ID, outcomeError)

			var cfgErr *indexer.ConfigurationError
			if errors.As(err, &cfgErr) {
				return false, err
			}
			return false, indexer.NewTransientFetchError(c.cfg.ID, r.from, r.to, err)
		}

		if reached < r.from || reached > r.to {
			panic(fmt.Sprintf("indexer %s reached height %d outside of range [%d, %d]",
				c.cfg.ID, reached, r.from, r.to))
		}

		newSafe, writer, outcome = reached, w, outcomeSuccess
		switch {
		case reached < r.to:
			outcome = outcomePartial
		case r.to < target:
			// the window ended inside the range
			newSafe = target
		}
	} else {
		c.log.Debugf("range (%d, %d] is outside of the processor window, skipping", safe, target)
	}

	if newSafe <= safe {
		metrics.UpdateOutcomeInc(c.cfg.ID, outcomeNoop)
		return false, nil
	}

	err := c.store.WithTx(ctx, func(tx *sql.Tx) error {
		if writer != nil {
			if err := writer(ctx, tx); err != nil {
				return err
			}
		}
		return c.store.SwapSafeHeight(ctx, tx, c.cfg.ID, safe, newSafe)
	})
	if err != nil {
		metrics.UpdateOutcomeInc(c.cfg.ID, outcomeError)
		if errors.Is(err, indexer.ErrWatermarkMoved) {
			// rolled back by another process, the fetched work is discarded
			c.log.Warnf("watermark changed outside of this process: %v", err)
			if err := c.reload(ctx); err != nil {
				return false, err
			}
			return true, nil
		}
		return false, fmt.Errorf("failed to commit safe height %d of %s: %w", newSafe, c.cfg.ID, err)
	}

	c.setCached(newSafe)
	metrics.UpdateOutcomeInc(c.cfg.ID, outcome)
	c.log.Debugf("advanced safe height %d -> %d (target %d)", safe, newSafe, target)
	c.notify()

	return newSafe < target, nil
}

func (c *ChildIndexer) setCached(height uint64) {
	c.safe.Store(height)
	metrics.SafeHeightSet(c.cfg.ID, height)
}

// reload replaces the cached safe height with the persisted one and wakes
// the children, which may now be ahead of this node. The caller holds mu.
func (c *ChildIndexer) reload(ctx context.Context) error {
	wm, err := c.store.Get(ctx, c.cfg.ID)
	if err != nil {
		return fmt.Errorf("failed to reload watermark of %s: %w", c.cfg.ID, err)
	}

	c.log.Infof("reloaded safe height %d (cached %d)", wm.SafeHeight, c.safe.Load())
	c.setCached(wm.SafeHeight)
	c.notify()

	return nil
}

// invalidateTx runs the processor rollback and moves the watermark inside tx.
// The caller holds mu and applies the returned height after commit.
func (c *ChildIndexer) invalidateTx(ctx context.Context, tx *sql.Tx, target uint64) (uint64, error) {
	acked := acknowledgedHeight(target, c.safe.Load(), c.cfg.MinHeight)

	if err := c.processor.Invalidate(ctx, tx, acked); err != nil {
		return 0, fmt.Errorf("processor rollback failed: %w", err)
	}
	if err := c.store.SwapSafeHeight(ctx, tx, c.cfg.ID, c.safe.Load(), acked); err != nil {
		return 0, err
	}

	return acked, nil
}

// configHashes returns the current and persisted configuration fingerprints.
func (c *ChildIndexer) configHashes() (current, stored string) {
	return c.configHash, c.storedHash
}

func (c *ChildIndexer) setStoredHash(hash string) {
	c.storedHash = hash
}

// invalidateSubtree rolls nodes back to target in one transaction. nodes must
// be in topological order, which is also the lock order. extra runs inside
// the same transaction after the rollbacks.
func invalidateSubtree(ctx context.Context, store WatermarkStore, nodes []*ChildIndexer,
	target uint64, extra func(tx *sql.Tx) error) (map[string]uint64, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	for _, n := range nodes {
		n.mu.Lock()
	}
	defer func() {
		for i := len(nodes) - 1; i >= 0; i-- {
			nodes[i].mu.Unlock()
		}
	}()

	acked := make(map[string]uint64, len(nodes))
	err := store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, n := range nodes {
			h, err := n.invalidateTx(ctx, tx, target)
			if err != nil {
				return fmt.Errorf("indexer %s: %w", n.cfg.ID, err)
			}
			acked[n.cfg.ID] = h
		}
		if extra != nil {
			return extra(tx)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, indexer.ErrWatermarkMoved) {
			// pick up the heights written elsewhere so a retry can succeed
			for _, n := range nodes {
				if rerr := n.reload(ctx); rerr != nil {
					n.log.Warnf("%v", rerr)
				}
			}
		}
		return nil, indexer.NewInvalidationError(nodes[0].cfg.ID, target, err)
	}

	for _, n := range nodes {
		h := acked[n.cfg.ID]
		previous := n.safe.Load()
		n.setCached(h)
		metrics.InvalidationsInc(n.cfg.ID)
		n.log.Infof("invalidated to height %d (requested %d, was %d)", h, target, previous)
		n.Trigger()
	}

	return acked, nil
}
