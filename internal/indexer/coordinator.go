package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alitto/pond/v2"
	"github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/internal/metrics"
	"github.com/goran-ethernal/IndexGraph/pkg/indexer"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/sync/errgroup"
)

// Coordinator owns a graph: it initialises and reconciles the nodes, runs
// them concurrently and serves invalidation requests.
type Coordinator struct {
	graph *Graph
	store WatermarkStore
	log   *logger.Logger

	pool       pond.Pool
	lastErrors *xsync.Map[string, string]
}

var _ Executor = (*Coordinator)(nil)

// NewCoordinator creates a coordinator running update cycles on a pool of
// workers goroutines.
func NewCoordinator(graph *Graph, store WatermarkStore, workers int, log *logger.Logger) *Coordinator {
	workers = max(workers, 1)

	c := &Coordinator{
		graph:      graph,
		store:      store,
		log:        log.WithComponent(common.ComponentCoordinator),
		pool:       pond.NewPool(workers, pond.WithQueueSize(len(graph.Nodes()))),
		lastErrors: xsync.NewMap[string, string](),
	}

	for _, n := range graph.Nodes() {
		if child, ok := n.(*ChildIndexer); ok {
			child.useExecutor(c)
		}
	}

	return c
}

// Graph returns the coordinated graph.
func (c *Coordinator) Graph() *Graph {
	return c.graph
}

// Execute runs fn on the worker pool and records its outcome for Status.
func (c *Coordinator) Execute(ctx context.Context, id string, fn func() error) error {
	task := c.pool.SubmitErr(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn()
	})

	err := task.Wait()
	switch {
	case errors.Is(err, pond.ErrPanic):
		// range assertions must stay fatal
		panic(err)
	case err == nil:
		c.lastErrors.Delete(id)
	case errors.Is(err, context.Canceled), errors.Is(err, pond.ErrPoolStopped):
	default:
		c.lastErrors.Store(id, err.Error())
	}

	return err
}

// Initialize loads every watermark in topological order and reconciles the
// persisted state with the current configuration and with the parents.
func (c *Coordinator) Initialize(ctx context.Context) error {
	if c.store.Degraded() {
		c.log.Warn("watermark store cannot share transactions with record writes, commits are not atomic")
	}

	for _, n := range c.graph.Nodes() {
		if _, err := n.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize indexer %s: %w", n.ID(), err)
		}
	}

	if err := c.reconcileConfig(ctx); err != nil {
		return err
	}

	return c.reconcileHeights(ctx)
}

// reconcileConfig invalidates every node whose configuration fingerprint
// changed since its data was written, together with its descendants.
func (c *Coordinator) reconcileConfig(ctx context.Context) error {
	for _, n := range c.graph.Nodes() {
		child, ok := n.(*ChildIndexer)
		if !ok {
			continue
		}

		current, stored := child.configHashes()
		switch {
		case current == stored:
			continue
		case stored == "":
			if err := c.store.SetConfigHash(ctx, nil, child.ID(), current); err != nil {
				return fmt.Errorf("failed to store config hash of %s: %w", child.ID(), err)
			}
			child.setStoredHash(current)
			continue
		}

		c.log.Warnf("configuration of %s changed, re-indexing it from height %d", child.ID(), child.MinHeight())
		if _, err := c.invalidate(ctx, child.ID(), child.MinHeight(), func(tx *sql.Tx) error {
			return c.store.SetConfigHash(ctx, tx, child.ID(), current)
		}); err != nil {
			return err
		}
		child.setStoredHash(current)
	}

	return nil
}

// reconcileHeights rolls back children that are ahead of their parents,
// which can happen after a parent was reset or reconfigured.
func (c *Coordinator) reconcileHeights(ctx context.Context) error {
	for _, n := range c.graph.Nodes() {
		child, ok := n.(*ChildIndexer)
		if !ok {
			continue
		}

		limit := child.parentsHeight()
		if child.SafeHeight() <= limit {
			continue
		}

		c.log.Warnf("indexer %s is at %d, ahead of its parents at %d, rolling back",
			child.ID(), child.SafeHeight(), limit)
		if _, err := c.invalidate(ctx, child.ID(), limit, nil); err != nil {
			return err
		}
	}

	return nil
}

// Run starts every node and blocks until ctx is cancelled or a node fails
// with a configuration error.
func (c *Coordinator) Run(ctx context.Context) error {
	defer c.pool.StopAndWait()

	g, gctx := errgroup.WithContext(ctx)
	for _, n := range c.graph.Nodes() {
		g.Go(func() error {
			metrics.ComponentHealthSet(n.ID(), true)
			defer metrics.ComponentHealthSet(n.ID(), false)

			return n.Run(gctx)
		})
	}

	c.log.Infof("coordinator running %d indexers", len(c.graph.Nodes()))
	err := g.Wait()
	c.log.Info("coordinator stopped")

	return err
}

// Invalidate rolls id and every node below it back to target in a single
// transaction and returns the height id acknowledges.
func (c *Coordinator) Invalidate(ctx context.Context, id string, target uint64) (uint64, error) {
	return c.invalidate(ctx, id, target, nil)
}

func (c *Coordinator) invalidate(ctx context.Context, id string, target uint64,
	extra func(tx *sql.Tx) error) (uint64, error) {
	n, ok := c.graph.Get(id)
	if !ok {
		return 0, indexer.NewConfigurationError(id, "unknown indexer")
	}
	if _, ok := n.(*ChildIndexer); !ok {
		return 0, indexer.NewConfigurationError(id, "root indexers cannot be invalidated")
	}

	nodes := c.graph.childSubtree(id)
	c.log.Infof("invalidating %s and %d descendants to height %d", id, len(nodes)-1, target)

	acked, err := invalidateSubtree(ctx, c.store, nodes, target, extra)
	if err != nil {
		var invErr *indexer.InvalidationError
		if errors.As(err, &invErr) {
			// a failed rollback stays visible until a cycle of id succeeds
			c.lastErrors.Store(id, err.Error())
			metrics.InvalidationFailedInc(id)
		}
		return 0, err
	}

	return acked[id], nil
}

// Status returns a snapshot of every node in topological order.
func (c *Coordinator) Status() []indexer.Status {
	nodes := c.graph.Nodes()
	out := make([]indexer.Status, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, c.status(n))
	}
	return out
}

// StatusByID returns the snapshot of one node.
func (c *Coordinator) StatusByID(id string) (indexer.Status, bool) {
	n, ok := c.graph.Get(id)
	if !ok {
		return indexer.Status{}, false
	}
	return c.status(n), true
}

func (c *Coordinator) status(n indexer.Indexer) indexer.Status {
	s := indexer.Status{
		IndexerID:  n.ID(),
		SafeHeight: n.SafeHeight(),
		MinHeight:  n.MinHeight(),
	}
	for _, p := range n.Parents() {
		s.Parents = append(s.Parents, p.ID())
	}
	if lastErr, ok := c.lastErrors.Load(n.ID()); ok {
		s.LastError = lastErr
	}
	return s
}
