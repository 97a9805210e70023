package tests

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goran-ethernal/IndexGraph/internal/app"
	"github.com/goran-ethernal/IndexGraph/internal/coingecko"
	cgmocks "github.com/goran-ethernal/IndexGraph/internal/coingecko/mocks"
	icommon "github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/db"
	"github.com/goran-ethernal/IndexGraph/internal/indexer"
	"github.com/goran-ethernal/IndexGraph/internal/l2costs"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/internal/prices"
	rpcmocks "github.com/goran-ethernal/IndexGraph/internal/rpc/mocks"
	"github.com/goran-ethernal/IndexGraph/internal/trackedtxs"
	"github.com/goran-ethernal/IndexGraph/internal/watermark"
	"github.com/goran-ethernal/IndexGraph/pkg/api"
	"github.com/goran-ethernal/IndexGraph/pkg/config"
	pkgrpc "github.com/goran-ethernal/IndexGraph/pkg/rpc"
	"github.com/goran-ethernal/IndexGraph/tests/helpers"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	hour      = icommon.Hour
	minHeight = 8 * hour
	blockTime = 12
	headBlock = 601 // one block past 10h
	batchSig  = "SequencerBatchAppended(uint256,bytes32,uint256)"
	ethPrice  = 2000.0
)

var inbox = common.HexToAddress("0x1c479675ad559DC151F6Ec7ed3FbF8ceE79582B6")

func header(n uint64) *types.Header {
	return &types.Header{Number: new(big.Int).SetUint64(n), Time: minHeight + blockTime*n}
}

func batchLog(block uint64, tx string) types.Log {
	return types.Log{
		Address:     inbox,
		Topics:      []common.Hash{crypto.Keccak256Hash([]byte(batchSig))},
		BlockNumber: block,
		BlockHash:   common.BigToHash(new(big.Int).SetUint64(block)),
		TxHash:      common.HexToHash(tx),
	}
}

// queries records the ranges requested from the sources.
type queries struct {
	mu     sync.Mutex
	logs   []uint64 // fromBlock of every eth_getLogs call
	prices []uint64 // from of every price range call
}

func (q *queries) addLogs(from uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.logs = append(q.logs, from)
}

func (q *queries) addPrices(from uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prices = append(q.prices, from)
}

func (q *queries) snapshot() (logs, prices []uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]uint64(nil), q.logs...), append([]uint64(nil), q.prices...)
}

// chain serves three batch transactions: one in the 8h bucket and two in 9h.
func newChain(t *testing.T, q *queries, head uint64) *rpcmocks.EthClient {
	t.Helper()

	logs := []types.Log{batchLog(50, "0x01"), batchLog(320, "0x02"), batchLog(400, "0x03")}

	client := rpcmocks.NewEthClient(t)
	client.EXPECT().GetLatestBlockHeader(mock.Anything).Return(header(head), nil).Maybe()
	client.EXPECT().GetBlockHeader(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, n uint64) (*types.Header, error) {
			return header(n), nil
		}).Maybe()
	client.EXPECT().GetLogs(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, f ethereum.FilterQuery) ([]types.Log, error) {
			q.addLogs(f.FromBlock.Uint64())

			var out []types.Log
			for _, l := range logs {
				if l.BlockNumber >= f.FromBlock.Uint64() && l.BlockNumber <= f.ToBlock.Uint64() {
					out = append(out, l)
				}
			}
			return out, nil
		}).Maybe()
	client.EXPECT().BatchGetBlockHeaders(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, nums []uint64) ([]*types.Header, error) {
			out := make([]*types.Header, len(nums))
			for i, n := range nums {
				out[i] = header(n)
			}
			return out, nil
		}).Maybe()
	client.EXPECT().BatchGetReceipts(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, hashes []common.Hash) ([]*types.Receipt, error) {
			out := make([]*types.Receipt, len(hashes))
			for i, h := range hashes {
				// 100k gas at 1 gwei
				out[i] = &types.Receipt{TxHash: h, GasUsed: 100_000, EffectiveGasPrice: big.NewInt(1_000_000_000)}
			}
			return out, nil
		}).Maybe()
	client.EXPECT().Close().Maybe()

	return client
}

func newPriceSource(t *testing.T, q *queries) *cgmocks.PriceSource {
	t.Helper()

	source := cgmocks.NewPriceSource(t)
	source.EXPECT().MarketChartRange(mock.Anything, "ethereum", mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, _ string, from, to uint64) ([]coingecko.PricePoint, error) {
			q.addPrices(from)

			var out []coingecko.PricePoint
			for ts := icommon.CeilTo(from, hour); ts <= to; ts += hour {
				out = append(out, coingecko.PricePoint{Timestamp: ts, PriceUSD: ethPrice})
			}
			return out, nil
		}).Maybe()

	return source
}

func newConfig() *config.Config {
	cfg := &config.Config{
		Clock:     config.ClockConfig{CronSpec: "@every 1s", MinHeight: minHeight},
		Scheduler: config.SchedulerConfig{PollInterval: icommon.NewDuration(50 * time.Millisecond), Workers: 2},
		Prices: config.PricesConfig{
			Tokens: []config.TokenConfig{{ID: "eth", CoingeckoID: "ethereum", Since: minHeight}},
		},
		TrackedTxs: &config.TrackedTxsConfig{
			RPCURL: "http://localhost:8545",
			Configs: []config.TrackedTxConfig{{
				ID: "arbitrum-batches", Project: "arbitrum", Address: inbox.Hex(),
				Event: batchSig, Since: minHeight,
			}},
		},
		L2Costs: &config.L2CostsConfig{Enabled: true, PriceToken: "eth"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestGraph_IndexesAndAggregates(t *testing.T) {
	database := helpers.NewTestDB(t, "graph.db")
	store := watermark.NewStore(database, logger.NewNopLogger(), &db.NoOpMaintenance{})

	graph, err := app.BuildGraph(newConfig(), database, store, app.Sources{
		Prices: newPriceSource(t, &queries{}),
		Eth:    app.Some[pkgrpc.EthClient](newChain(t, &queries{}, headBlock)),
		Clock:  func() time.Time { return time.Unix(int64(10*hour+30), 0) },
	})
	require.NoError(t, err)

	coordinator := indexer.NewCoordinator(graph, store, 2, logger.NewNopLogger())
	require.NoError(t, coordinator.Initialize(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- coordinator.Run(ctx) }()

	synced := func() bool {
		s, ok := coordinator.StatusByID(l2costs.IndexerID)
		return ok && s.SafeHeight == 10*hour
	}
	require.Eventually(t, synced, 10*time.Second, 20*time.Millisecond)

	txCount, err := trackedtxs.NewRepository(database).Count(t.Context())
	require.NoError(t, err)
	require.Equal(t, 3, txCount)

	hourly, err := prices.NewRepository(database).GetHourly(t.Context(), "eth", minHeight, 10*hour)
	require.NoError(t, err)
	require.Len(t, hourly, 3)

	costs := l2costs.NewRepository(database)
	buckets, err := costs.GetByRange(t.Context(), minHeight, 10*hour)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	require.Equal(t, uint64(8*hour), buckets[0].Timestamp)
	require.Equal(t, uint64(1), buckets[0].TxCount)
	require.Equal(t, uint64(9*hour), buckets[1].Timestamp)
	require.Equal(t, uint64(2), buckets[1].TxCount)
	require.InDelta(t, 0.0002, buckets[1].GasCostETH, 1e-12)
	require.InDelta(t, 0.0002*ethPrice, buckets[1].GasCostUSD, 1e-9)

	// roll the transactions back into the 9h bucket; the aggregator follows
	acked, err := coordinator.Invalidate(t.Context(), trackedtxs.IndexerID, 9*hour+100)
	require.NoError(t, err)
	require.Equal(t, uint64(9*hour+100), acked)

	s, ok := coordinator.StatusByID(prices.IndexerID("eth"))
	require.True(t, ok)
	require.Equal(t, uint64(10*hour), s.SafeHeight, "siblings are untouched")

	require.Eventually(t, synced, 10*time.Second, 20*time.Millisecond)

	buckets, err = costs.GetByRange(t.Context(), minHeight, 10*hour)
	require.NoError(t, err)
	require.Len(t, buckets, 2)
	require.Equal(t, uint64(2), buckets[1].TxCount)

	// the status API serves the same snapshot
	srv := httptest.NewServer(api.NewServer(&config.APIConfig{}, coordinator, logger.NewNopLogger()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/indexers")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var statuses []struct {
		IndexerID  string `json:"indexer_id"`
		SafeHeight uint64 `json:"safe_height"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&statuses))
	require.Len(t, statuses, 4)
	require.Equal(t, app.ClockID, statuses[0].IndexerID)
	for _, st := range statuses {
		require.Equal(t, uint64(10*hour), st.SafeHeight, st.IndexerID)
	}

	cancel()
	require.NoError(t, <-done)
}

// startGraph builds the graph over database with a fresh watermark store, as
// a new process would, and runs it until the returned stop is called.
func startGraph(t *testing.T, database *sql.DB, now uint64, chain pkgrpc.EthClient,
	source coingecko.PriceSource) (*indexer.Coordinator, func()) {
	t.Helper()

	store := watermark.NewStore(database, logger.NewNopLogger(), &db.NoOpMaintenance{})
	graph, err := app.BuildGraph(newConfig(), database, store, app.Sources{
		Prices: source,
		Eth:    app.Some(chain),
		Clock:  func() time.Time { return time.Unix(int64(now), 0) },
	})
	require.NoError(t, err)

	coordinator := indexer.NewCoordinator(graph, store, 2, logger.NewNopLogger())
	require.NoError(t, coordinator.Initialize(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- coordinator.Run(ctx) }()

	return coordinator, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func allAt(c *indexer.Coordinator, height uint64) func() bool {
	return func() bool {
		for _, s := range c.Status() {
			if s.SafeHeight != height {
				return false
			}
		}
		return true
	}
}

func countRows(t *testing.T, database *sql.DB, table string) int {
	t.Helper()

	var n int
	require.NoError(t, database.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestGraph_RestartResumesFromWatermarks(t *testing.T) {
	database := helpers.NewTestDB(t, "restart.db")

	first, stop := startGraph(t, database, 10*hour+30,
		newChain(t, &queries{}, headBlock), newPriceSource(t, &queries{}))
	require.Eventually(t, allAt(first, 10*hour), 10*time.Second, 20*time.Millisecond)
	stop()

	txRows, priceRows, costRows := countRows(t, database, "tracked_txs"), countRows(t, database, "prices"),
		countRows(t, database, "aggregated_l2_costs")
	require.Equal(t, 3, txRows)
	require.Equal(t, 2, costRows)

	// restart at the same clock: every node is already there, nothing is fetched
	q := &queries{}
	second, stop := startGraph(t, database, 10*hour+30, newChain(t, q, headBlock), newPriceSource(t, q))
	for _, s := range second.Status() {
		require.Equal(t, uint64(10*hour), s.SafeHeight, s.IndexerID)
	}
	time.Sleep(200 * time.Millisecond)
	stop()

	logs, priceFroms := q.snapshot()
	require.Empty(t, logs)
	require.Empty(t, priceFroms)
	require.Equal(t, txRows, countRows(t, database, "tracked_txs"))
	require.Equal(t, priceRows, countRows(t, database, "prices"))
	require.Equal(t, costRows, countRows(t, database, "aggregated_l2_costs"))

	// restart an hour later: only the new hour is fetched
	q = &queries{}
	third, stop := startGraph(t, database, 11*hour+30, newChain(t, q, headBlock+300), newPriceSource(t, q))
	require.Eventually(t, allAt(third, 11*hour), 10*time.Second, 20*time.Millisecond)
	stop()

	logs, priceFroms = q.snapshot()
	require.NotEmpty(t, logs)
	for _, from := range logs {
		// block 601 is the first one after 10h
		require.GreaterOrEqual(t, from, uint64(headBlock), "logs below the persisted height were queried")
	}
	require.NotEmpty(t, priceFroms)
	for _, from := range priceFroms {
		// the price lookup reaches two hours back for the nearest point
		require.GreaterOrEqual(t, from, uint64(10*hour-2*hour))
	}

	require.Equal(t, txRows, countRows(t, database, "tracked_txs"))
	require.Equal(t, priceRows+1, countRows(t, database, "prices"), "only the 11h price is new")
	require.Equal(t, costRows, countRows(t, database, "aggregated_l2_costs"))
}
