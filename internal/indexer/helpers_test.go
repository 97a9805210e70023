package indexer

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/internal/watermark"
	"github.com/goran-ethernal/IndexGraph/pkg/indexer"
	"github.com/goran-ethernal/IndexGraph/tests/helpers"
	"github.com/stretchr/testify/require"
)

const recordsSchema = `CREATE TABLE records (
	indexer_id TEXT NOT NULL,
	height     INTEGER NOT NULL,
	PRIMARY KEY (indexer_id, height)
)`

func newTestStore(t *testing.T) (*sql.DB, *watermark.Store) {
	t.Helper()

	database := helpers.NewTestDB(t, "indexer.db")
	_, err := database.Exec(recordsSchema)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	return database, watermark.NewStore(database, logger.NewNopLogger(), nil)
}

// stubParent is a root whose height is set by the test.
type stubParent struct {
	notifier

	id string
	h  atomic.Uint64
}

func newStubParent(id string, h uint64) *stubParent {
	p := &stubParent{id: id}
	p.h.Store(h)
	return p
}

func (p *stubParent) ID() string                                 { return p.id }
func (p *stubParent) Parents() []indexer.Indexer                 { return nil }
func (p *stubParent) Initialize(context.Context) (uint64, error) { return p.h.Load(), nil }
func (p *stubParent) SafeHeight() uint64                         { return p.h.Load() }
func (p *stubParent) MinHeight() uint64                          { return 0 }

func (p *stubParent) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (p *stubParent) set(h uint64) {
	p.h.Store(h)
	p.notify()
}

// recordingProcessor writes one record per reached height into the records table.
type recordingProcessor struct {
	db *sql.DB
	id string

	mu    sync.Mutex
	calls [][2]uint64

	// step caps how far a single update goes, zero means no cap
	step          uint64
	fetchErr      error
	writeErr      error
	invalidateErr error
	// reach overrides the returned height
	reach func(from, to uint64) uint64
	block chan struct{}

	running    atomic.Int32
	overlapped atomic.Bool
}

func newRecordingProcessor(db *sql.DB, id string) *recordingProcessor {
	return &recordingProcessor{db: db, id: id}
}

func (p *recordingProcessor) Update(ctx context.Context, from, to uint64) (uint64, indexer.Writer, error) {
	if p.running.Add(1) > 1 {
		p.overlapped.Store(true)
	}
	defer p.running.Add(-1)

	p.mu.Lock()
	p.calls = append(p.calls, [2]uint64{from, to})
	p.mu.Unlock()

	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		}
	}

	if p.fetchErr != nil {
		return 0, nil, p.fetchErr
	}

	reached := to
	if p.step > 0 && to-from > p.step {
		reached = from + p.step
	}
	if p.reach != nil {
		reached = p.reach(from, to)
	}

	return reached, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO records (indexer_id, height) VALUES (?, ?)`, p.id, reached); err != nil {
			return err
		}
		return p.writeErr
	}, nil
}

func (p *recordingProcessor) Invalidate(ctx context.Context, tx *sql.Tx, target uint64) error {
	if p.invalidateErr != nil {
		return p.invalidateErr
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM records WHERE indexer_id = ? AND height > ?`, p.id, target)
	return err
}

func (p *recordingProcessor) getCalls() [][2]uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([][2]uint64(nil), p.calls...)
}

type windowedProcessor struct {
	*recordingProcessor
	window indexer.Window
}

func (p *windowedProcessor) Window() indexer.Window { return p.window }

type configurableProcessor struct {
	*recordingProcessor
	config map[string]string
}

func (p *configurableProcessor) Configuration() any { return p.config }

var errFetch = errors.New("upstream unavailable")

func records(t *testing.T, db *sql.DB, id string) []uint64 {
	t.Helper()

	rows, err := db.Query(`SELECT height FROM records WHERE indexer_id = ? ORDER BY height`, id)
	require.NoError(t, err)
	defer rows.Close()

	var out []uint64
	for rows.Next() {
		var h uint64
		require.NoError(t, rows.Scan(&h))
		out = append(out, h)
	}
	require.NoError(t, rows.Err())

	return out
}

func newChild(t *testing.T, store WatermarkStore, id string, minHeight uint64, p indexer.Processor) *ChildIndexer {
	t.Helper()

	c, err := NewChildIndexer(ChildConfig{ID: id, MinHeight: minHeight}, p, store, logger.NewNopLogger())
	require.NoError(t, err)
	return c
}

func persistedHeight(t *testing.T, store *watermark.Store, id string) uint64 {
	t.Helper()

	wm, err := store.Get(t.Context(), id)
	require.NoError(t, err)
	return wm.SafeHeight
}
