package l2costs

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	icommon "github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/internal/metrics"
	"github.com/goran-ethernal/IndexGraph/internal/trackedtxs"
	"github.com/goran-ethernal/IndexGraph/pkg/config"
	"github.com/goran-ethernal/IndexGraph/pkg/indexer"
)

// IndexerID is the graph id of the aggregator.
const IndexerID = "l2costs"

// TxReader reads tracked transactions by block timestamp.
type TxReader interface {
	GetByRange(ctx context.Context, tx *sql.Tx, from, to uint64) ([]*trackedtxs.Record, error)
}

// PriceReader reads hourly prices.
type PriceReader interface {
	GetHourly(ctx context.Context, tokenID string, from, to uint64) (map[uint64]float64, error)
}

// Processor joins tracked transactions with hourly prices into per project
// hour buckets. A bucket holds the transactions with a timestamp in
// [hour, hour+3600).
type Processor struct {
	cfg    config.L2CostsConfig
	txs    TxReader
	prices PriceReader
	repo   *Repository
	log    *logger.Logger
}

var (
	_ indexer.Processor    = (*Processor)(nil)
	_ indexer.Configurable = (*Processor)(nil)
)

// NewProcessor creates the aggregator.
func NewProcessor(cfg config.L2CostsConfig, txs TxReader, prices PriceReader, repo *Repository,
	log *logger.Logger) *Processor {
	return &Processor{
		cfg:    cfg,
		txs:    txs,
		prices: prices,
		repo:   repo,
		log:    log.WithComponent(icommon.ComponentL2Costs),
	}
}

// Configuration is the price series gas is valued in.
func (p *Processor) Configuration() any {
	return struct {
		PriceToken string `json:"price_token"`
	}{p.cfg.PriceToken}
}

type bucketKey struct {
	project string
	hour    uint64
}

type bucket struct {
	txs     map[common.Hash]struct{}
	gasUsed uint64
	costWei *big.Int
}

// Update re-derives every bucket touched by (from, to]. The bucket holding
// from+1 is recomputed from its start so a partially covered hour is
// replaced, never added to.
func (p *Processor) Update(ctx context.Context, from, to uint64) (uint64, indexer.Writer, error) {
	firstHour := icommon.FloorTo(from+1, icommon.Hour)
	lastHour := icommon.FloorTo(to, icommon.Hour)

	reached := to
	if hours := (lastHour-firstHour)/icommon.Hour + 1; p.cfg.BatchHours > 0 && hours > p.cfg.BatchHours {
		lastHour = firstHour + (p.cfg.BatchHours-1)*icommon.Hour
		reached = lastHour + icommon.Hour - 1
	}

	records, err := p.txs.GetByRange(ctx, nil, max(firstHour, 1)-1, reached)
	if err != nil {
		return 0, nil, err
	}

	priceByHour, err := p.prices.GetHourly(ctx, p.cfg.PriceToken, firstHour, lastHour)
	if err != nil {
		return 0, nil, err
	}

	buckets := make(map[bucketKey]*bucket)
	for _, rec := range records {
		hour := icommon.FloorTo(rec.Timestamp, icommon.Hour)
		if _, ok := priceByHour[hour]; !ok {
			// records are ordered by timestamp, so every later hour is dropped too
			reached = max(from, hour-1)
			p.log.Debugf("no %s price for hour %d, stopping at %d", p.cfg.PriceToken, hour, reached)
			break
		}

		key := bucketKey{project: rec.Project, hour: hour}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{txs: make(map[common.Hash]struct{}), costWei: new(big.Int)}
			buckets[key] = b
		}
		if _, seen := b.txs[rec.TxHash]; seen {
			continue
		}
		b.txs[rec.TxHash] = struct{}{}
		b.gasUsed += rec.GasUsed
		b.costWei.Add(b.costWei, new(big.Int).Mul(new(big.Int).SetUint64(rec.GasUsed), rec.GasPrice))
	}

	if reached <= from {
		return from, nil, nil
	}

	replaceTo := icommon.FloorTo(reached, icommon.Hour)
	out := make([]*Record, 0, len(buckets))
	for key, b := range buckets {
		if key.hour > replaceTo {
			continue
		}
		eth := weiToEther(b.costWei)
		out = append(out, &Record{
			Project:    key.project,
			Timestamp:  key.hour,
			TxCount:    uint64(len(b.txs)),
			GasUsed:    b.gasUsed,
			GasCostETH: eth,
			GasCostUSD: eth * priceByHour[key.hour],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].Project < out[j].Project
	})

	p.log.Debugf("aggregated %d buckets in [%d, %d]", len(out), firstHour, replaceTo)

	return reached, func(ctx context.Context, tx *sql.Tx) error {
		if err := p.repo.ReplaceRange(ctx, tx, firstHour, replaceTo, out); err != nil {
			return fmt.Errorf("failed to store aggregated costs: %w", err)
		}
		metrics.RecordsWrittenAdd(IndexerID, len(out))
		return nil
	}, nil
}

// Invalidate deletes every bucket holding data after target.
func (p *Processor) Invalidate(ctx context.Context, tx *sql.Tx, target uint64) error {
	deleted, err := p.repo.DeleteFrom(ctx, tx, icommon.FloorTo(target+1, icommon.Hour))
	if err != nil {
		return err
	}

	p.log.Debugf("deleted %d buckets after %d", deleted, target)
	return nil
}

func weiToEther(wei *big.Int) float64 {
	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()
	return eth
}
