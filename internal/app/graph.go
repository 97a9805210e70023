package app

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/goran-ethernal/IndexGraph/internal/coingecko"
	"github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/indexer"
	"github.com/goran-ethernal/IndexGraph/internal/l2costs"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/internal/prices"
	"github.com/goran-ethernal/IndexGraph/internal/trackedtxs"
	"github.com/goran-ethernal/IndexGraph/pkg/config"
	pkgindexer "github.com/goran-ethernal/IndexGraph/pkg/indexer"
	pkgrpc "github.com/goran-ethernal/IndexGraph/pkg/rpc"
)

// ClockID is the graph id of the root time indexer.
const ClockID = "clock"

// Sources are the external data sources the graph pulls from.
type Sources struct {
	Prices coingecko.PriceSource
	Eth    Optional[pkgrpc.EthClient]
	// Clock overrides time.Now for the root indexer.
	Clock func() time.Time
}

// NodeSpec names a node of the graph and the ids of its parents.
type NodeSpec struct {
	ID      string
	Parents []string
}

// Layout derives the nodes and edges of the graph from cfg alone, without
// opening any database or source. Nodes are listed parents first.
func Layout(cfg *config.Config) ([]NodeSpec, error) {
	nodes := []NodeSpec{{ID: ClockID}}
	for _, token := range cfg.Prices.Tokens {
		nodes = append(nodes, NodeSpec{ID: prices.IndexerID(token.ID), Parents: []string{ClockID}})
	}
	if cfg.TrackedTxs != nil {
		nodes = append(nodes, NodeSpec{ID: trackedtxs.IndexerID, Parents: []string{ClockID}})
	}

	if cfg.L2Costs != nil && cfg.L2Costs.Enabled {
		if cfg.TrackedTxs == nil {
			return nil, fmt.Errorf("l2costs requires tracked_txs")
		}
		nodes = append(nodes, NodeSpec{
			ID:      l2costs.IndexerID,
			Parents: []string{trackedtxs.IndexerID, prices.IndexerID(cfg.L2Costs.PriceToken)},
		})
	}

	return nodes, nil
}

type graphBuilder struct {
	cfg      *config.Config
	database *sql.DB
	store    indexer.WatermarkStore
	logCfg   logger.LoggingConfig
	childLog *logger.Logger
}

// BuildGraph wires the indexer graph described by cfg:
//
//	clock -> prices::<token> ...
//	clock -> tracked-txs
//	{tracked-txs, prices::<price_token>} -> l2costs
func BuildGraph(cfg *config.Config, database *sql.DB, store indexer.WatermarkStore,
	src Sources) (*indexer.Graph, error) {
	layout, err := Layout(cfg)
	if err != nil {
		return nil, err
	}
	parents := make(map[string][]string, len(layout))
	for _, n := range layout {
		parents[n.ID] = n.Parents
	}

	logCfg := LoggingConfig(cfg)
	gb := &graphBuilder{
		cfg:      cfg,
		database: database,
		store:    store,
		logCfg:   logCfg,
		childLog: logger.NewComponentLoggerFromConfig(common.ComponentChildIndexer, logCfg),
	}

	root, err := indexer.NewRootIndexer(indexer.RootConfig{
		ID:          ClockID,
		MinHeight:   cfg.Clock.MinHeight,
		CronSpec:    cfg.Clock.CronSpec,
		Granularity: cfg.Clock.Granularity.Duration,
		Clock:       src.Clock,
	}, store, logger.NewComponentLoggerFromConfig(common.ComponentRootIndexer, logCfg))
	if err != nil {
		return nil, err
	}

	b := indexer.NewGraphBuilder().Add(root)

	priceRepo := prices.NewRepository(database)
	priceLog := logger.NewComponentLoggerFromConfig(common.ComponentPriceIndexer, logCfg)
	for _, token := range cfg.Prices.Tokens {
		p := prices.NewProcessor(token, src.Prices, priceRepo, cfg.Prices.Coingecko.MaxDaysPerCall, priceLog)
		node, err := gb.child(prices.IndexerID(token.ID), p)
		if err != nil {
			return nil, err
		}
		b.Add(node, parents[node.ID()]...)
	}

	txs, err := gb.trackedTxs(src.Eth)
	if err != nil {
		return nil, err
	}
	if node, ok := txs.Get(); ok {
		b.Add(node, parents[node.ID()]...)
	}

	costs, err := gb.l2costs(priceRepo)
	if err != nil {
		return nil, err
	}
	if node, ok := costs.Get(); ok {
		b.Add(node, parents[node.ID()]...)
	}

	return b.Build()
}

func (gb *graphBuilder) child(id string, p pkgindexer.Processor) (*indexer.ChildIndexer, error) {
	return indexer.NewChildIndexer(indexer.ChildConfig{
		ID:           id,
		MinHeight:    gb.cfg.Clock.MinHeight,
		PollInterval: gb.cfg.Scheduler.PollInterval.Duration,
	}, p, gb.store, gb.childLog)
}

func (gb *graphBuilder) trackedTxs(eth Optional[pkgrpc.EthClient]) (Optional[*indexer.ChildIndexer], error) {
	if gb.cfg.TrackedTxs == nil {
		return None[*indexer.ChildIndexer](), nil
	}

	client, ok := eth.Get()
	if !ok {
		return None[*indexer.ChildIndexer](), fmt.Errorf("tracked_txs is configured but no RPC client is available")
	}

	p, err := trackedtxs.NewProcessor(*gb.cfg.TrackedTxs, client, trackedtxs.NewRepository(gb.database),
		logger.NewComponentLoggerFromConfig(common.ComponentTrackedTxs, gb.logCfg))
	if err != nil {
		return None[*indexer.ChildIndexer](), err
	}

	node, err := gb.child(trackedtxs.IndexerID, p)
	if err != nil {
		return None[*indexer.ChildIndexer](), err
	}
	return Some(node), nil
}

func (gb *graphBuilder) l2costs(priceRepo *prices.Repository) (Optional[*indexer.ChildIndexer], error) {
	if gb.cfg.L2Costs == nil || !gb.cfg.L2Costs.Enabled {
		return None[*indexer.ChildIndexer](), nil
	}

	p := l2costs.NewProcessor(*gb.cfg.L2Costs, trackedtxs.NewRepository(gb.database), priceRepo,
		l2costs.NewRepository(gb.database), logger.NewComponentLoggerFromConfig(common.ComponentL2Costs, gb.logCfg))

	node, err := gb.child(l2costs.IndexerID, p)
	if err != nil {
		return None[*indexer.ChildIndexer](), err
	}
	return Some(node), nil
}

// LoggingConfig returns the logging section of cfg, nil when absent. It keeps
// a nil *config.LoggingConfig from turning into a non-nil interface.
func LoggingConfig(cfg *config.Config) logger.LoggingConfig {
	if cfg.Logging == nil {
		return nil
	}
	return cfg.Logging
}
