package watermark

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/db"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/pkg/indexer"
	"github.com/russross/meddler"
)

const table = "indexer_state"

// Store persists one watermark row per indexer in SQLite.
//
// Methods taking a *sql.Tx run inside that transaction when it is non-nil and
// autocommit otherwise. Transactions opened through WithTx hold the shared
// maintenance lock for their whole lifetime, so VACUUM never interleaves with
// an update commit.
type Store struct {
	db          *sql.DB
	log         *logger.Logger
	maintenance db.Maintenance
}

// NewStore creates a new watermark store.
func NewStore(database *sql.DB, log *logger.Logger, maintenance db.Maintenance) *Store {
	if maintenance == nil {
		maintenance = &db.NoOpMaintenance{}
	}

	return &Store{
		db:          database,
		log:         log.WithComponent(common.ComponentWatermarkStore),
		maintenance: maintenance,
	}
}

// Get returns the watermark of id, or indexer.ErrWatermarkNotFound.
func (s *Store) Get(ctx context.Context, id string) (*indexer.Watermark, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	var wm indexer.Watermark
	err := meddler.QueryRow(s.db, &wm, `SELECT * FROM indexer_state WHERE indexer_id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, indexer.ErrWatermarkNotFound
		}
		return nil, fmt.Errorf("failed to get watermark of %s: %w", id, err)
	}

	return &wm, nil
}

// GetAll returns every stored watermark ordered by indexer id.
func (s *Store) GetAll(ctx context.Context) ([]*indexer.Watermark, error) {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	var all []*indexer.Watermark
	if err := meddler.QueryAll(s.db, &all, `SELECT * FROM indexer_state ORDER BY indexer_id`); err != nil {
		return nil, fmt.Errorf("failed to list watermarks: %w", err)
	}

	return all, nil
}

// Upsert creates the watermark row or replaces every column of an existing one.
func (s *Store) Upsert(ctx context.Context, tx *sql.Tx, wm *indexer.Watermark) error {
	if tx == nil {
		unlock := s.maintenance.AcquireOperationLock()
		defer unlock()
	}

	if err := db.Upsert(ctx, db.Scope(s.db, tx), table, []string{"indexer_id"}, wm); err != nil {
		return err
	}

	s.log.Debugf("stored watermark: indexer=%s, safe_height=%d, min_height=%d",
		wm.IndexerID, wm.SafeHeight, wm.MinHeight)

	return nil
}

// SetSafeHeight moves the safe height of an existing watermark.
func (s *Store) SetSafeHeight(ctx context.Context, tx *sql.Tx, id string, height uint64) error {
	if tx == nil {
		unlock := s.maintenance.AcquireOperationLock()
		defer unlock()
	}

	res, err := db.Scope(s.db, tx).ExecContext(ctx,
		`UPDATE indexer_state SET safe_height = ? WHERE indexer_id = ?`, height, id)
	if err != nil {
		return fmt.Errorf("failed to set safe height of %s: %w", id, err)
	}

	return expectOneRow(res, id)
}

// SwapSafeHeight moves the safe height of id to height only if it is still at
// expected. It returns indexer.ErrWatermarkMoved when the row holds another
// height.
func (s *Store) SwapSafeHeight(ctx context.Context, tx *sql.Tx, id string, expected, height uint64) error {
	if tx == nil {
		unlock := s.maintenance.AcquireOperationLock()
		defer unlock()
	}

	scope := db.Scope(s.db, tx)
	res, err := scope.ExecContext(ctx,
		`UPDATE indexer_state SET safe_height = ? WHERE indexer_id = ? AND safe_height = ?`, height, id, expected)
	if err != nil {
		return fmt.Errorf("failed to set safe height of %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	var current uint64
	err = scope.QueryRowContext(ctx, `SELECT safe_height FROM indexer_state WHERE indexer_id = ?`, id).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %s", indexer.ErrWatermarkNotFound, id)
	case err != nil:
		return fmt.Errorf("failed to get safe height of %s: %w", id, err)
	}

	return fmt.Errorf("%w: %s is at %d, expected %d", indexer.ErrWatermarkMoved, id, current, expected)
}

// SetConfigHash stores the configuration fingerprint of an existing watermark.
func (s *Store) SetConfigHash(ctx context.Context, tx *sql.Tx, id, hash string) error {
	if tx == nil {
		unlock := s.maintenance.AcquireOperationLock()
		defer unlock()
	}

	var value any
	if hash != "" {
		value = hash
	}

	res, err := db.Scope(s.db, tx).ExecContext(ctx,
		`UPDATE indexer_state SET config_hash = ? WHERE indexer_id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("failed to set config hash of %s: %w", id, err)
	}

	return expectOneRow(res, id)
}

// Delete removes the watermark of id. Only administrative commands use it.
func (s *Store) Delete(ctx context.Context, id string) error {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM indexer_state WHERE indexer_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete watermark of %s: %w", id, err)
	}

	s.log.Infof("deleted watermark: indexer=%s", id)
	return nil
}

// DeleteAll removes every watermark. Only administrative commands use it.
func (s *Store) DeleteAll(ctx context.Context) error {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM indexer_state`)
	if err != nil {
		return fmt.Errorf("failed to delete watermarks: %w", err)
	}

	n, _ := res.RowsAffected()
	s.log.Infof("deleted %d watermarks", n)
	return nil
}

// WithTx runs fn in one transaction while holding the maintenance lock.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	unlock := s.maintenance.AcquireOperationLock()
	defer unlock()

	return db.WithTx(ctx, s.db, fn)
}

// Degraded reports whether records and watermarks cannot share a transaction.
// SQLite always provides one.
func (s *Store) Degraded() bool {
	return false
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", indexer.ErrWatermarkNotFound, id)
	}
	return nil
}
