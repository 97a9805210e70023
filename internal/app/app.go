// Package app assembles the indexer graph and its services from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goran-ethernal/IndexGraph/internal/coingecko"
	"github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/db"
	"github.com/goran-ethernal/IndexGraph/internal/indexer"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/internal/metrics"
	"github.com/goran-ethernal/IndexGraph/internal/migrations"
	"github.com/goran-ethernal/IndexGraph/internal/reorg"
	"github.com/goran-ethernal/IndexGraph/internal/rpc"
	"github.com/goran-ethernal/IndexGraph/internal/trackedtxs"
	"github.com/goran-ethernal/IndexGraph/internal/watermark"
	"github.com/goran-ethernal/IndexGraph/pkg/api"
	"github.com/goran-ethernal/IndexGraph/pkg/config"
	pkgrpc "github.com/goran-ethernal/IndexGraph/pkg/rpc"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// App owns the database, the coordinator and the optional HTTP servers.
type App struct {
	cfg         *config.Config
	db          *sql.DB
	store       *watermark.Store
	maintenance db.Maintenance
	eth         Optional[pkgrpc.EthClient]
	coordinator *indexer.Coordinator
	reorgs      Optional[*reorg.Watcher]
	log         *logger.Logger
}

// Open migrates and opens the database and creates the watermark store.
// Administrative commands use it without building the graph.
func Open(cfg *config.Config) (*sql.DB, *watermark.Store, db.Maintenance, error) {
	if err := migrations.RunMigrations(cfg.Database); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	database, err := db.NewSQLiteDBFromConfig(cfg.Database)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	logCfg := LoggingConfig(cfg)
	maintenance := db.NewMaintenanceCoordinator(cfg.Database.Path, database, cfg.Maintenance,
		logger.NewComponentLoggerFromConfig(common.ComponentMaintenance, logCfg))
	store := watermark.NewStore(database,
		logger.NewComponentLoggerFromConfig(common.ComponentWatermarkStore, logCfg), maintenance)

	return database, store, maintenance, nil
}

// New opens the database, connects the data sources and builds the graph.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logCfg := LoggingConfig(cfg)
	log := logger.NewComponentLoggerFromConfig(common.ComponentCoordinator, logCfg)

	database, store, maintenance, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	eth := None[pkgrpc.EthClient]()
	if cfg.TrackedTxs != nil {
		finality, err := rpc.ParseFinality(cfg.TrackedTxs.Finality)
		if err != nil {
			database.Close()
			return nil, err
		}

		client, err := rpc.NewClient(ctx, cfg.TrackedTxs.RPCURL, rpc.Options{
			RequestsPerSecond: cfg.TrackedTxs.RequestsPerSecond,
			Retry:             cfg.TrackedTxs.Retry,
			Finality:          finality,
		}, logger.NewComponentLoggerFromConfig(common.ComponentRPC, logCfg))
		if err != nil {
			database.Close()
			return nil, err
		}
		eth = Some[pkgrpc.EthClient](client)
		log.Infof("Connected to Ethereum node: %s", cfg.TrackedTxs.RPCURL)
	}

	prices := coingecko.NewClient(cfg.Prices.Coingecko,
		logger.NewComponentLoggerFromConfig(common.ComponentCoingecko, logCfg))

	graph, err := BuildGraph(cfg, database, store, Sources{Prices: prices, Eth: eth})
	if err != nil {
		if client, ok := eth.Get(); ok {
			client.Close()
		}
		database.Close()
		return nil, err
	}

	a := &App{
		cfg:         cfg,
		db:          database,
		store:       store,
		maintenance: maintenance,
		eth:         eth,
		coordinator: indexer.NewCoordinator(graph, store, cfg.Scheduler.Workers, log),
		reorgs:      None[*reorg.Watcher](),
		log:         log,
	}

	// finalized blocks cannot reorg
	if client, ok := eth.Get(); ok && cfg.TrackedTxs.Finality != string(rpc.FinalityFinalized) {
		a.reorgs = Some(reorg.NewWatcher(reorg.Config{
			IndexerID: trackedtxs.IndexerID,
			Depth:     cfg.TrackedTxs.ReorgDepth,
			Interval:  cfg.TrackedTxs.ReorgCheckInterval.Duration,
		}, client, trackedtxs.NewRepository(database), a.coordinator,
			logger.NewComponentLoggerFromConfig(common.ComponentReorgWatcher, logCfg)))
	}

	return a, nil
}

// Coordinator returns the graph coordinator.
func (a *App) Coordinator() *indexer.Coordinator {
	return a.coordinator
}

// Run initializes the graph and runs it together with maintenance, metrics
// and the status API until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.maintenance.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.maintenance.Stop(); err != nil {
			a.log.Warnf("Failed to stop maintenance: %v", err)
		}
	}()

	if a.cfg.Metrics != nil && a.cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(a.cfg.Metrics,
			logger.NewComponentLoggerFromConfig(common.ComponentAPI, LoggingConfig(a.cfg)))
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := metricsServer.Stop(shutdownCtx); err != nil {
				a.log.Warnf("Failed to stop metrics server: %v", err)
			}
		}()
	}

	if err := a.coordinator.Initialize(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.API != nil && a.cfg.API.Enabled {
		server := api.NewServer(a.cfg.API, a.coordinator,
			logger.NewComponentLoggerFromConfig(common.ComponentAPI, LoggingConfig(a.cfg)))
		g.Go(func() error {
			return server.Start(gctx)
		})
	}

	if watcher, ok := a.reorgs.Get(); ok {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	g.Go(func() error {
		return a.coordinator.Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close releases the RPC client and the database.
func (a *App) Close() error {
	if client, ok := a.eth.Get(); ok {
		client.Close()
	}
	return a.db.Close()
}
