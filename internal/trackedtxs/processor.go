package trackedtxs

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	icommon "github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/internal/metrics"
	"github.com/goran-ethernal/IndexGraph/internal/rpc"
	"github.com/goran-ethernal/IndexGraph/pkg/config"
	"github.com/goran-ethernal/IndexGraph/pkg/indexer"
	pkgrpc "github.com/goran-ethernal/IndexGraph/pkg/rpc"
)

// IndexerID is the graph id of the tracked transactions indexer.
const IndexerID = "tracked-txs"

type trackedConfig struct {
	config.TrackedTxConfig

	address common.Address
	topic   common.Hash
}

// activeAt reports whether the config covers a block with timestamp ts.
func (c trackedConfig) activeAt(ts uint64) bool {
	return ts >= c.Since && (c.Until == 0 || ts <= c.Until)
}

// intersects reports whether the config covers any timestamp in (from, to].
func (c trackedConfig) intersects(from, to uint64) bool {
	return c.Since <= to && (c.Until == 0 || c.Until > from)
}

// blockHint remembers the last block at or before a timestamp.
type blockHint struct {
	timestamp uint64
	block     uint64
	set       bool
}

// Processor fetches the transactions emitting the tracked events. Update and
// Invalidate of one node never run concurrently, so the hint needs no lock.
type Processor struct {
	cfg     config.TrackedTxsConfig
	configs []trackedConfig
	client  pkgrpc.EthClient
	repo    *Repository
	log     *logger.Logger

	hint blockHint
}

var (
	_ indexer.Processor    = (*Processor)(nil)
	_ indexer.Windowed     = (*Processor)(nil)
	_ indexer.Configurable = (*Processor)(nil)
)

// NewProcessor creates the tracked transactions processor.
func NewProcessor(cfg config.TrackedTxsConfig, client pkgrpc.EthClient, repo *Repository,
	log *logger.Logger) (*Processor, error) {
	if len(cfg.Configs) == 0 {
		return nil, indexer.NewConfigurationError(IndexerID, "no tracked configs")
	}

	configs := make([]trackedConfig, 0, len(cfg.Configs))
	for _, c := range cfg.Configs {
		if !common.IsHexAddress(c.Address) {
			return nil, indexer.NewConfigurationError(IndexerID, "config %s: invalid address %q", c.ID, c.Address)
		}
		if c.Event == "" {
			return nil, indexer.NewConfigurationError(IndexerID, "config %s: event is required", c.ID)
		}
		configs = append(configs, trackedConfig{
			TrackedTxConfig: c,
			address:         common.HexToAddress(c.Address),
			topic:           eventTopic(c.Event),
		})
	}

	return &Processor{
		cfg:     cfg,
		configs: configs,
		client:  client,
		repo:    repo,
		log:     log.WithComponent(icommon.ComponentTrackedTxs),
	}, nil
}

// eventTopic returns the topic0 of an event signature. A 32 byte hex string
// is taken as the topic itself.
func eventTopic(event string) common.Hash {
	if strings.HasPrefix(event, "0x") && len(event) == 2*common.HashLength+2 {
		return common.HexToHash(event)
	}
	return crypto.Keccak256Hash([]byte(event))
}

// Window spans the union of the config windows.
func (p *Processor) Window() indexer.Window {
	var w indexer.Window

	since, until := p.configs[0].Since, uint64(0)
	open := false
	for _, c := range p.configs {
		since = min(since, c.Since)
		if c.Until == 0 {
			open = true
		}
		until = max(until, c.Until)
	}

	// ranges are (from, to], so the block at since must stay inside
	if since > 0 {
		w.From = since - 1
	}
	if !open {
		w.To = until
	}
	return w
}

// Configuration is the set of tracked configs.
func (p *Processor) Configuration() any {
	return p.cfg.Configs
}

// Update indexes the tracked events of blocks with a timestamp in (from, to].
// The block span is capped at MaxBlocksPerCycle, and when the chain head is
// not past to only the timestamps before the head are covered, since later
// blocks may still carry the head's timestamp.
func (p *Processor) Update(ctx context.Context, from, to uint64) (uint64, indexer.Writer, error) {
	active := make([]trackedConfig, 0, len(p.configs))
	for _, c := range p.configs {
		if c.intersects(from, to) {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		p.log.Debugf("no tracked config is active in (%d, %d]", from, to)
		return to, nil, nil
	}

	head, err := p.client.GetLatestBlockHeader(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get latest block: %w", err)
	}
	headNum := head.Number.Uint64()
	if head.Time <= from {
		p.log.Debugf("chain head %d at %d is not past %d", headNum, head.Time, from)
		return from, nil, nil
	}

	reached := to
	if head.Time <= to {
		// blocks after the head may still share its timestamp
		reached = head.Time - 1
	}
	if reached <= from {
		return from, nil, nil
	}

	fromBlock, err := p.firstBlockAfter(ctx, from, p.lowerBound(from), headNum)
	if err != nil {
		return 0, nil, err
	}
	next, err := p.firstBlockAfter(ctx, reached, fromBlock, headNum)
	if err != nil {
		return 0, nil, err
	}
	if next == fromBlock {
		// no block was produced in range
		return reached, nil, nil
	}
	toBlock := next - 1

	if toBlock-fromBlock+1 > p.cfg.MaxBlocksPerCycle {
		reached, toBlock, err = p.capRange(ctx, fromBlock, toBlock)
		if err != nil {
			return 0, nil, err
		}
	}
	p.hint = blockHint{timestamp: reached, block: toBlock, set: true}

	records, err := p.collect(ctx, active, fromBlock, toBlock)
	if err != nil {
		return 0, nil, err
	}

	p.log.Debugf("found %d tracked events in blocks [%d, %d], reached %d",
		len(records), fromBlock, toBlock, reached)

	if len(records) == 0 {
		return reached, nil, nil
	}

	return reached, func(ctx context.Context, tx *sql.Tx) error {
		if err := p.repo.AddMany(ctx, tx, records); err != nil {
			return fmt.Errorf("failed to store tracked txs: %w", err)
		}
		metrics.RecordsWrittenAdd(IndexerID, len(records))
		return nil
	}, nil
}

// Invalidate deletes the transactions of blocks after target.
func (p *Processor) Invalidate(ctx context.Context, tx *sql.Tx, target uint64) error {
	deleted, err := p.repo.DeleteAfter(ctx, tx, target)
	if err != nil {
		return err
	}

	if p.hint.timestamp > target {
		p.hint = blockHint{}
	}

	p.log.Debugf("deleted %d tracked txs after %d", deleted, target)
	return nil
}

// capRange shrinks [fromBlock, toBlock] to about MaxBlocksPerCycle blocks. The
// cut falls between two timestamps so that every block at or before the
// returned timestamp lies inside the returned span.
func (p *Processor) capRange(ctx context.Context, fromBlock, toBlock uint64) (uint64, uint64, error) {
	cut := fromBlock + p.cfg.MaxBlocksPerCycle
	header, err := p.client.GetBlockHeader(ctx, cut)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get block %d: %w", cut, err)
	}

	reached := header.Time - 1
	next, err := p.firstBlockAfter(ctx, reached, fromBlock, toBlock)
	if err != nil {
		return 0, 0, err
	}
	if next == fromBlock {
		// the whole capped span shares one timestamp, take all of its blocks
		reached = header.Time
		p.log.Debugf("more than %d blocks share timestamp %d", p.cfg.MaxBlocksPerCycle, reached)

		if next, err = p.firstBlockAfter(ctx, reached, fromBlock, toBlock); err != nil {
			return 0, 0, err
		}
	}
	return reached, next - 1, nil
}

// lowerBound is the lowest block that may have a timestamp after ts.
func (p *Processor) lowerBound(ts uint64) uint64 {
	if p.hint.set && p.hint.timestamp <= ts {
		return p.hint.block + 1
	}
	return 0
}

// firstBlockAfter returns the lowest block in [lo, hi] with a timestamp after
// ts, or hi+1 when there is none.
func (p *Processor) firstBlockAfter(ctx context.Context, ts, lo, hi uint64) (uint64, error) {
	end := hi + 1
	for lo < end {
		mid := lo + (end-lo)/2
		header, err := p.client.GetBlockHeader(ctx, mid)
		if err != nil {
			return 0, fmt.Errorf("failed to get block %d: %w", mid, err)
		}
		if header.Time > ts {
			end = mid
		} else {
			lo = mid + 1
		}
	}
	return lo, nil
}

// collect fetches the tracked logs of [fromBlock, toBlock] and joins them
// with block timestamps and receipts.
func (p *Processor) collect(ctx context.Context, active []trackedConfig,
	fromBlock, toBlock uint64) ([]*Record, error) {
	addresses := make([]common.Address, 0, len(active))
	topics := make([]common.Hash, 0, len(active))
	for _, c := range active {
		addresses = append(addresses, c.address)
		topics = append(topics, c.topic)
	}

	logs, err := p.fetchLogs(ctx, ethereum.FilterQuery{
		Addresses: addresses,
		Topics:    [][]common.Hash{topics},
	}, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, nil
	}

	blockNums := make([]uint64, 0)
	seenBlocks := make(map[uint64]struct{})
	txHashes := make([]common.Hash, 0)
	seenTxs := make(map[common.Hash]struct{})
	for _, l := range logs {
		if _, ok := seenBlocks[l.BlockNumber]; !ok {
			seenBlocks[l.BlockNumber] = struct{}{}
			blockNums = append(blockNums, l.BlockNumber)
		}
		if _, ok := seenTxs[l.TxHash]; !ok {
			seenTxs[l.TxHash] = struct{}{}
			txHashes = append(txHashes, l.TxHash)
		}
	}

	headers, err := p.client.BatchGetBlockHeaders(ctx, blockNums)
	if err != nil {
		return nil, fmt.Errorf("failed to get block headers: %w", err)
	}
	timestamps := make(map[uint64]uint64, len(headers))
	for i, h := range headers {
		timestamps[blockNums[i]] = h.Time
	}

	receipts, err := p.client.BatchGetReceipts(ctx, txHashes)
	if err != nil {
		return nil, fmt.Errorf("failed to get receipts: %w", err)
	}
	byHash := make(map[common.Hash]*types.Receipt, len(receipts))
	for i, r := range receipts {
		byHash[txHashes[i]] = r
	}

	records := make([]*Record, 0, len(logs))
	for _, l := range logs {
		if l.Removed || len(l.Topics) == 0 {
			continue
		}
		ts := timestamps[l.BlockNumber]
		receipt := byHash[l.TxHash]

		for _, c := range active {
			if c.address != l.Address || c.topic != l.Topics[0] || !c.activeAt(ts) {
				continue
			}
			records = append(records, &Record{
				ConfigID:    c.ID,
				TxHash:      l.TxHash,
				LogIndex:    l.Index,
				BlockNumber: l.BlockNumber,
				BlockHash:   l.BlockHash,
				Timestamp:   ts,
				Project:     c.Project,
				Address:     l.Address,
				GasUsed:     receipt.GasUsed,
				GasPrice:    gasPrice(receipt),
			})
		}
	}

	return records, nil
}

func gasPrice(r *types.Receipt) *big.Int {
	if r.EffectiveGasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(r.EffectiveGasPrice)
}

// fetchLogs queries [fromBlock, toBlock] in chunks, shrinking the chunk when
// the node reports too many results.
func (p *Processor) fetchLogs(ctx context.Context, base ethereum.FilterQuery,
	fromBlock, toBlock uint64) ([]types.Log, error) {
	var out []types.Log

	chunk := max(p.cfg.ChunkSize, 1)
	for start := fromBlock; start <= toBlock; {
		end := min(start+chunk-1, toBlock)

		q := base
		q.FromBlock = new(big.Int).SetUint64(start)
		q.ToBlock = new(big.Int).SetUint64(end)

		logs, err := p.client.GetLogs(ctx, q)
		if err != nil {
			tooMany, data := rpc.IsTooManyResultsError(err)
			if !tooMany {
				return nil, fmt.Errorf("failed to get logs in [%d, %d]: %w", start, end, err)
			}

			if _, suggested, ok := rpc.ParseSuggestedBlockRange(data); ok && suggested >= start && suggested < end {
				chunk = suggested - start + 1
			} else if end > start {
				chunk = max((end-start+1)/2, 1) //nolint:mnd
			} else {
				return nil, fmt.Errorf("too many logs in block %d: %w", start, err)
			}

			p.log.Debugf("too many logs in [%d, %d], retrying with chunk size %d", start, end, chunk)
			continue
		}

		out = append(out, logs...)
		start = end + 1
	}

	return out, nil
}
