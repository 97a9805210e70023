// Package l2costs aggregates the gas cost of tracked transactions per project and hour.
package l2costs

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goran-ethernal/IndexGraph/internal/db"
	"github.com/russross/meddler"
)

const table = "aggregated_l2_costs"

// Record is the cost a project paid in one hour bucket.
type Record struct {
	Project    string  `meddler:"project"`
	Timestamp  uint64  `meddler:"timestamp"`
	TxCount    uint64  `meddler:"tx_count"`
	GasUsed    uint64  `meddler:"gas_used"`
	GasCostETH float64 `meddler:"gas_cost_eth"`
	GasCostUSD float64 `meddler:"gas_cost_usd"`
}

// Repository stores aggregated costs.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new aggregated costs repository.
func NewRepository(database *sql.DB) *Repository {
	return &Repository{db: database}
}

// ReplaceRange deletes every bucket in [from, to] and inserts records, all inside tx.
func (r *Repository) ReplaceRange(ctx context.Context, tx *sql.Tx, from, to uint64, records []*Record) error {
	q := db.Scope(r.db, tx)
	if _, err := q.ExecContext(ctx,
		`DELETE FROM aggregated_l2_costs WHERE timestamp >= ? AND timestamp <= ?`, from, to); err != nil {
		return fmt.Errorf("failed to delete buckets in [%d, %d]: %w", from, to, err)
	}

	for _, rec := range records {
		if err := db.Upsert(ctx, q, table, []string{"project", "timestamp"}, rec); err != nil {
			return err
		}
	}
	return nil
}

// DeleteFrom removes every bucket starting at or after timestamp.
func (r *Repository) DeleteFrom(ctx context.Context, tx *sql.Tx, timestamp uint64) (int64, error) {
	res, err := db.Scope(r.db, tx).ExecContext(ctx,
		`DELETE FROM aggregated_l2_costs WHERE timestamp >= ?`, timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to delete buckets from %d: %w", timestamp, err)
	}

	return res.RowsAffected()
}

// GetByRange returns the buckets in [from, to] ordered by time and project.
func (r *Repository) GetByRange(ctx context.Context, from, to uint64) ([]*Record, error) {
	var records []*Record
	err := meddler.QueryAll(r.db, &records,
		`SELECT * FROM aggregated_l2_costs WHERE timestamp >= ? AND timestamp <= ?
		 ORDER BY timestamp, project`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get buckets in [%d, %d]: %w", from, to, err)
	}

	return records, nil
}
