package common

const (
	ComponentCoordinator    = "coordinator"
	ComponentRootIndexer    = "root-indexer"
	ComponentChildIndexer   = "child-indexer"
	ComponentWatermarkStore = "watermark-store"
	ComponentPriceIndexer   = "price-indexer"
	ComponentTrackedTxs     = "tracked-txs"
	ComponentL2Costs        = "l2costs"
	ComponentAPI            = "api"
	ComponentMaintenance    = "maintenance"
	ComponentRPC            = "rpc"
	ComponentCoingecko      = "coingecko"
	ComponentReorgWatcher   = "reorg-watcher"
)

var AllComponents = map[string]struct{}{
	ComponentCoordinator:    {},
	ComponentRootIndexer:    {},
	ComponentChildIndexer:   {},
	ComponentWatermarkStore: {},
	ComponentPriceIndexer:   {},
	ComponentTrackedTxs:     {},
	ComponentL2Costs:        {},
	ComponentAPI:            {},
	ComponentMaintenance:    {},
	ComponentRPC:            {},
	ComponentCoingecko:      {},
	ComponentReorgWatcher:   {},
}
