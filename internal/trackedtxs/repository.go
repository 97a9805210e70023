// Package trackedtxs indexes the transactions emitting configured contract events.
package trackedtxs

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/IndexGraph/internal/db"
	"github.com/russross/meddler"
)

const table = "tracked_txs"

// Record is one tracked event together with the gas paid by its transaction.
type Record struct {
	ConfigID    string         `meddler:"config_id"`
	TxHash      common.Hash    `meddler:"tx_hash,hash"`
	LogIndex    uint           `meddler:"log_index"`
	BlockNumber uint64         `meddler:"block_number"`
	BlockHash   common.Hash    `meddler:"block_hash,hash"`
	Timestamp   uint64         `meddler:"timestamp"`
	Project     string         `meddler:"project"`
	Address     common.Address `meddler:"address,address"`
	GasUsed     uint64         `meddler:"gas_used"`
	GasPrice    *big.Int       `meddler:"gas_price,bigint"`
}

// BlockRef is a block holding at least one tracked record.
type BlockRef struct {
	BlockNumber uint64      `meddler:"block_number"`
	BlockHash   common.Hash `meddler:"block_hash,hash"`
	Timestamp   uint64      `meddler:"timestamp"`
}

// Repository stores tracked transactions.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new tracked transactions repository.
func NewRepository(database *sql.DB) *Repository {
	return &Repository{db: database}
}

// AddMany upserts records inside tx, or autocommits when tx is nil.
func (r *Repository) AddMany(ctx context.Context, tx *sql.Tx, records []*Record) error {
	q := db.Scope(r.db, tx)
	for _, rec := range records {
		if err := db.Upsert(ctx, q, table, []string{"config_id", "tx_hash", "log_index"}, rec); err != nil {
			return err
		}
	}
	return nil
}

// DeleteAfter removes every record with a block timestamp strictly after timestamp.
func (r *Repository) DeleteAfter(ctx context.Context, tx *sql.Tx, timestamp uint64) (int64, error) {
	res, err := db.Scope(r.db, tx).ExecContext(ctx,
		`DELETE FROM tracked_txs WHERE timestamp > ?`, timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tracked txs after %d: %w", timestamp, err)
	}

	return res.RowsAffected()
}

// GetByRange returns the records with a timestamp in (from, to], read through
// tx when it is not nil.
func (r *Repository) GetByRange(ctx context.Context, tx *sql.Tx, from, to uint64) ([]*Record, error) {
	var records []*Record
	err := meddler.QueryAll(db.Scope(r.db, tx), &records,
		`SELECT * FROM tracked_txs WHERE timestamp > ? AND timestamp <= ?
		 ORDER BY timestamp, block_number, log_index`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get tracked txs in (%d, %d]: %w", from, to, err)
	}

	return records, nil
}

// BlocksAfter returns the blocks above number that hold records, lowest first.
func (r *Repository) BlocksAfter(ctx context.Context, number uint64) ([]*BlockRef, error) {
	var blocks []*BlockRef
	err := meddler.QueryAll(r.db, &blocks,
		`SELECT DISTINCT block_number, block_hash, timestamp FROM tracked_txs
		 WHERE block_number > ? ORDER BY block_number`, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get tracked blocks after %d: %w", number, err)
	}

	return blocks, nil
}

// Count returns the number of stored records.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracked_txs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tracked txs: %w", err)
	}
	return n, nil
}
