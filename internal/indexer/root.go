package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/internal/metrics"
	"github.com/goran-ethernal/IndexGraph/pkg/indexer"
	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// RootConfig configures a RootIndexer.
type RootConfig struct {
	ID        string
	MinHeight uint64
	// CronSpec is a six field cron expression (with seconds) or a descriptor.
	CronSpec string
	// Granularity is the step heights are truncated to.
	Granularity time.Duration
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// RootIndexer is the time driver of the graph. Its safe height is the current
// time truncated to the configured granularity and it never goes backwards.
type RootIndexer struct {
	notifier

	cfg   RootConfig
	store WatermarkStore
	log   *logger.Logger

	mu    sync.Mutex
	state indexer.State
	safe  atomic.Uint64
}

var _ indexer.Indexer = (*RootIndexer)(nil)

// NewRootIndexer validates cfg and creates a stopped root indexer.
func NewRootIndexer(cfg RootConfig, store WatermarkStore, log *logger.Logger) (*RootIndexer, error) {
	if cfg.ID == "" {
		return nil, indexer.NewConfigurationError("", "indexer id is required")
	}
	if cfg.Granularity < time.Second {
		return nil, indexer.NewConfigurationError(cfg.ID, "granularity %v is below one second", cfg.Granularity)
	}
	if _, err := cronParser.Parse(cfg.CronSpec); err != nil {
		return nil, indexer.NewConfigurationError(cfg.ID, "invalid cron spec %q: %v", cfg.CronSpec, err)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &RootIndexer{
		cfg:   cfg,
		store: store,
		log:   log.WithComponent(common.ComponentRootIndexer).With("indexer", cfg.ID),
		state: indexer.StateStopped,
	}, nil
}

func (r *RootIndexer) ID() string { return r.cfg.ID }

func (r *RootIndexer) Parents() []indexer.Indexer { return nil }

func (r *RootIndexer) MinHeight() uint64 { return r.cfg.MinHeight }

func (r *RootIndexer) SafeHeight() uint64 { return r.safe.Load() }

// State returns the lifecycle state.
func (r *RootIndexer) State() indexer.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Initialize moves the root to STARTING and persists the current clock height.
func (r *RootIndexer) Initialize(ctx context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != indexer.StateStopped {
		return 0, fmt.Errorf("root indexer %s cannot initialize in state %s", r.cfg.ID, r.state)
	}
	r.state = indexer.StateStarting

	height := r.now()

	wm, err := r.store.Get(ctx, r.cfg.ID)
	switch {
	case errors.Is(err, indexer.ErrWatermarkNotFound):
		wm = &indexer.Watermark{IndexerID: r.cfg.ID, SafeHeight: height, MinHeight: r.cfg.MinHeight}
		if err := r.store.Upsert(ctx, nil, wm); err != nil {
			r.state = indexer.StateStopped
			return 0, fmt.Errorf("failed to create watermark of %s: %w", r.cfg.ID, err)
		}
	case err != nil:
		r.state = indexer.StateStopped
		return 0, fmt.Errorf("failed to load watermark of %s: %w", r.cfg.ID, err)
	default:
		if wm.MinHeight != r.cfg.MinHeight {
			r.state = indexer.StateStopped
			return 0, indexer.NewConfigurationError(r.cfg.ID,
				"persisted min height %d differs from configured %d", wm.MinHeight, r.cfg.MinHeight)
		}
		// a clock set backwards must not move the timeline back
		height = max(height, wm.SafeHeight)
		if err := r.store.SetSafeHeight(ctx, nil, r.cfg.ID, height); err != nil {
			r.state = indexer.StateStopped
			return 0, err
		}
	}

	r.safe.Store(height)
	metrics.SafeHeightSet(r.cfg.ID, height)
	r.log.Infof("clock initialized at height %d", height)

	return height, nil
}

// Run ticks on the cron schedule until ctx is cancelled.
func (r *RootIndexer) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.state != indexer.StateStarting {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("root indexer %s cannot run in state %s", r.cfg.ID, state)
	}
	r.state = indexer.StateRunning
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.state = indexer.StateStopped
		r.mu.Unlock()
	}()

	scheduler := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := scheduler.AddFunc(r.cfg.CronSpec, func() {
		if err := r.Tick(ctx); err != nil && ctx.Err() == nil {
			r.log.Warnf("clock tick failed: %v", err)
		}
	}); err != nil {
		return indexer.NewConfigurationError(r.cfg.ID, "invalid cron spec %q: %v", r.cfg.CronSpec, err)
	}

	// subscribers may have missed the height set by Initialize
	r.notify()

	scheduler.Start()
	r.log.Infof("clock running with schedule %q", r.cfg.CronSpec)

	<-ctx.Done()
	<-scheduler.Stop().Done()
	r.log.Info("clock stopped")

	return nil
}

// Tick advances the safe height to the current clock height and notifies
// subscribers. It is a no-op when the clock has not crossed a step.
func (r *RootIndexer) Tick(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	height := r.now()
	previous := r.safe.Load()
	if height <= previous {
		return nil
	}

	if err := r.store.SetSafeHeight(ctx, nil, r.cfg.ID, height); err != nil {
		return err
	}

	r.safe.Store(height)
	metrics.SafeHeightSet(r.cfg.ID, height)
	r.log.Debugf("clock advanced %d -> %d", previous, height)
	r.notify()

	return nil
}

func (r *RootIndexer) now() uint64 {
	return max(r.cfg.MinHeight, common.UnixHeight(r.cfg.Clock(), r.cfg.Granularity))
}
