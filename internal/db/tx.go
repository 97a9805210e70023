package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/russross/meddler"
)

// WithTx runs fn inside a transaction and commits it when fn succeeds.
// Any error from fn rolls the whole transaction back.
func WithTx(ctx context.Context, database *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = errors.Join(err, fmt.Errorf("failed to rollback transaction: %w", rbErr))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Upsert writes the meddler tagged struct src into table, replacing the
// non-key columns of an existing row with the same conflict key.
func Upsert(ctx context.Context, q Querier, table string, conflict []string, src any) error {
	columns, err := meddler.Columns(src, true)
	if err != nil {
		return fmt.Errorf("failed to get columns for %s: %w", table, err)
	}
	values, err := meddler.Values(src, true)
	if err != nil {
		return fmt.Errorf("failed to get values for %s: %w", table, err)
	}

	placeholders, err := meddler.PlaceholdersString(src, true)
	if err != nil {
		return fmt.Errorf("failed to get placeholders for %s: %w", table, err)
	}

	isKey := make(map[string]struct{}, len(conflict))
	for _, c := range conflict {
		isKey[c] = struct{}{}
	}

	updates := make([]string, 0, len(columns))
	for _, c := range columns {
		if _, ok := isKey[c]; ok {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
	}

	action := "DO NOTHING"
	if len(updates) > 0 {
		action = "DO UPDATE SET " + strings.Join(updates, ", ")
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		table,
		strings.Join(columns, ", "),
		placeholders,
		strings.Join(conflict, ", "),
		action,
	)

	if _, err := q.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", table, err)
	}

	return nil
}
