// Package prices indexes hourly USD token prices.
package prices

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goran-ethernal/IndexGraph/internal/db"
	"github.com/russross/meddler"
)

const table = "prices"

// Record is the USD price of a token at an hour boundary.
type Record struct {
	TokenID     string  `meddler:"token_id"`
	CoingeckoID string  `meddler:"coingecko_id"`
	Timestamp   uint64  `meddler:"timestamp"`
	PriceUSD    float64 `meddler:"price_usd"`
}

// Repository stores price records.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new price repository.
func NewRepository(database *sql.DB) *Repository {
	return &Repository{db: database}
}

// AddMany upserts records inside tx, or autocommits when tx is nil.
func (r *Repository) AddMany(ctx context.Context, tx *sql.Tx, records []*Record) error {
	q := db.Scope(r.db, tx)
	for _, rec := range records {
		if err := db.Upsert(ctx, q, table, []string{"token_id", "timestamp"}, rec); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAfter removes the prices of tokenID strictly after timestamp.
func (r *Repository) DeleteAfter(ctx context.Context, tx *sql.Tx, tokenID string, timestamp uint64) (int64, error) {
	res, err := db.Scope(r.db, tx).ExecContext(ctx,
		`DELETE FROM prices WHERE token_id = ? AND timestamp > ?`, tokenID, timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to delete prices of %s after %d: %w", tokenID, timestamp, err)
	}

	return res.RowsAffected()
}

// GetByRange returns the prices of tokenID in [from, to] ordered by time.
func (r *Repository) GetByRange(ctx context.Context, tokenID string, from, to uint64) ([]*Record, error) {
	var records []*Record
	err := meddler.QueryAll(r.db, &records,
		`SELECT * FROM prices WHERE token_id = ? AND timestamp >= ? AND timestamp <= ? ORDER BY timestamp`,
		tokenID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices of %s in [%d, %d]: %w", tokenID, from, to, err)
	}

	return records, nil
}

// GetHourly returns the prices of tokenID in [from, to] keyed by timestamp.
func (r *Repository) GetHourly(ctx context.Context, tokenID string, from, to uint64) (map[uint64]float64, error) {
	records, err := r.GetByRange(ctx, tokenID, from, to)
	if err != nil {
		return nil, err
	}

	out := make(map[uint64]float64, len(records))
	for _, rec := range records {
		out[rec.Timestamp] = rec.PriceUSD
	}
	return out, nil
}
