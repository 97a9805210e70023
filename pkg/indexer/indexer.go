package indexer

import (
	"context"
	"database/sql"
)

// Indexer is a node of the indexing graph. Heights are unix timestamps in
// seconds; a node's safe height means every record up to and including that
// height is durably stored.
type Indexer interface {
	// ID returns the unique, stable identifier of the node. It keys the
	// persisted watermark row.
	ID() string

	// Parents returns the nodes this indexer derives its range from, in the
	// order they were declared. Root indexers return nil.
	Parents() []Indexer

	// Initialize loads (or creates) the persisted watermark and returns the
	// safe height the node resumes from.
	Initialize(ctx context.Context) (uint64, error)

	// SafeHeight returns the last committed safe height without blocking.
	SafeHeight() uint64

	// MinHeight returns the lowest height the node will ever report.
	MinHeight() uint64

	// Subscribe registers ch to be signalled whenever the safe height
	// changes. Sends never block; a full channel already holds a pending signal.
	Subscribe(ch chan<- struct{})

	// Run drives the node until ctx is cancelled.
	Run(ctx context.Context) error
}

// Writer persists the records produced by an update. It runs inside the same
// transaction that advances the watermark.
type Writer func(ctx context.Context, tx *sql.Tx) error

// Processor is the domain logic behind a child indexer.
type Processor interface {
	// Update fetches or derives the records for the range (from, to] and
	// returns the height it actually reached, which must lie in [from, to].
	// Records are not written here; they are returned as a Writer and
	// committed together with the new safe height. A nil Writer means there
	// is nothing to write.
	Update(ctx context.Context, from, to uint64) (uint64, Writer, error)

	// Invalidate deletes every record derived from data strictly after
	// target. It runs inside tx and must be idempotent.
	Invalidate(ctx context.Context, tx *sql.Tx, target uint64) error
}

// Window is the height range a processor holds data for. A zero To means
// the window is open ended.
type Window struct {
	From uint64
	To   uint64
}

// Windowed is implemented by processors whose data only exists inside a
// height window. Ranges outside of it are skipped without fetching.
type Windowed interface {
	Window() Window
}

// Configurable is implemented by processors whose output depends on
// configuration. The fingerprint of Configuration is persisted with the
// watermark; a change invalidates the node and everything below it.
type Configurable interface {
	Configuration() any
}

// State is the lifecycle state of a root indexer.
type State string

const (
	StateStopped  State = "STOPPED"
	StateStarting State = "STARTING"
	StateRunning  State = "RUNNING"
)

// Watermark is the persisted progress of one indexer.
type Watermark struct {
	IndexerID  string `meddler:"indexer_id"`
	SafeHeight uint64 `meddler:"safe_height"`
	MinHeight  uint64 `meddler:"min_height"`
	ConfigHash string `meddler:"config_hash,zeroisnull"`
}

// Status is a read-only snapshot of one indexer, served by the status API.
type Status struct {
	IndexerID  string   `json:"indexer_id"`
	SafeHeight uint64   `json:"safe_height"`
	MinHeight  uint64   `json:"min_height"`
	Parents    []string `json:"parents,omitempty"`
	LastError  string   `json:"last_error,omitempty"`
}
