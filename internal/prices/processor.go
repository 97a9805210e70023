package prices

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goran-ethernal/IndexGraph/internal/coingecko"
	"github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/internal/metrics"
	"github.com/goran-ethernal/IndexGraph/pkg/config"
	"github.com/goran-ethernal/IndexGraph/pkg/indexer"
)

const (
	secondsPerDay = 24 * common.Hour
	// maxPointDistance is how far a sample may be from the hour it prices.
	maxPointDistance = 2 * common.Hour
)

// IndexerID returns the graph id of the price indexer of token.
func IndexerID(tokenID string) string {
	return "prices::" + tokenID
}

// Processor fetches hourly prices of one token.
type Processor struct {
	token    config.TokenConfig
	source   coingecko.PriceSource
	repo     *Repository
	maxRange uint64
	log      *logger.Logger
}

var (
	_ indexer.Processor    = (*Processor)(nil)
	_ indexer.Windowed     = (*Processor)(nil)
	_ indexer.Configurable = (*Processor)(nil)
)

// NewProcessor creates a price processor fetching at most maxDaysPerCall
// days of history per update.
func NewProcessor(token config.TokenConfig, source coingecko.PriceSource, repo *Repository,
	maxDaysPerCall int, log *logger.Logger) *Processor {
	return &Processor{
		token:    token,
		source:   source,
		repo:     repo,
		maxRange: uint64(max(maxDaysPerCall, 1)) * secondsPerDay,
		log:      log.WithComponent(common.ComponentPriceIndexer).With("token", token.ID),
	}
}

// Window starts at the first timestamp prices are needed for.
func (p *Processor) Window() indexer.Window {
	return indexer.Window{From: p.token.Since}
}

// Configuration identifies the price series this processor produces.
func (p *Processor) Configuration() any {
	return p.token
}

// Update fetches the prices of every full hour in [from, to]. The boundary
// hour at from may be fetched again, which the upsert makes harmless.
func (p *Processor) Update(ctx context.Context, from, to uint64) (uint64, indexer.Writer, error) {
	fromHour := common.CeilTo(from, common.Hour)
	if fromHour > to {
		// no full hour in range
		return to, nil, nil
	}

	toHour := common.FloorTo(to, common.Hour)
	capped := false
	if toHour-fromHour > p.maxRange {
		toHour = fromHour + p.maxRange
		capped = true
	}

	queryFrom := fromHour - min(fromHour, maxPointDistance)
	points, err := p.source.MarketChartRange(ctx, p.token.CoingeckoID, queryFrom, toHour+maxPointDistance)
	if err != nil {
		return 0, nil, err
	}

	records := make([]*Record, 0, (toHour-fromHour)/common.Hour+1)
	for hour := fromHour; hour <= toHour; hour += common.Hour {
		price, ok := closestPrice(points, hour)
		if !ok {
			break
		}
		records = append(records, &Record{
			TokenID:     p.token.ID,
			CoingeckoID: p.token.CoingeckoID,
			Timestamp:   hour,
			PriceUSD:    price,
		})
	}

	if len(records) == 0 {
		p.log.Warnf("no price available near %d yet", fromHour)
		return from, nil, nil
	}

	reached := to
	last := records[len(records)-1].Timestamp
	if capped || last < toHour {
		reached = last
	}

	p.log.Debugf("fetched %d hourly prices in [%d, %d]", len(records), fromHour, last)

	return reached, func(ctx context.Context, tx *sql.Tx) error {
		if err := p.repo.AddMany(ctx, tx, records); err != nil {
			return fmt.Errorf("failed to store prices of %s: %w", p.token.ID, err)
		}
		metrics.RecordsWrittenAdd(IndexerID(p.token.ID), len(records))
		return nil
	}, nil
}

// Invalidate deletes the prices after target.
func (p *Processor) Invalidate(ctx context.Context, tx *sql.Tx, target uint64) error {
	deleted, err := p.repo.DeleteAfter(ctx, tx, p.token.ID, target)
	if err != nil {
		return err
	}

	p.log.Debugf("deleted %d prices after %d", deleted, target)
	return nil
}

// closestPrice returns the price of the sample nearest to hour, if one is
// within maxPointDistance.
func closestPrice(points []coingecko.PricePoint, hour uint64) (float64, bool) {
	best, found := uint64(0), false
	var price float64

	for _, pt := range points {
		dist := max(pt.Timestamp, hour) - min(pt.Timestamp, hour)
		if dist > maxPointDistance {
			continue
		}
		if !found || dist < best {
			best, price, found = dist, pt.PriceUSD, true
		}
	}

	return price, found
}
