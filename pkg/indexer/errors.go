package indexer

import (
	"errors"
	"fmt"
)

// ErrWatermarkNotFound is returned by a watermark store for unknown indexers.
var ErrWatermarkNotFound = errors.New("watermark not found")

// ErrWatermarkMoved is returned by a compare-and-set of the safe height when
// the stored height is no longer the expected one, for example after another
// process rolled the indexer back.
var ErrWatermarkMoved = errors.New("watermark moved")

// ConfigurationError reports an invalid graph or watermark setup. It is fatal
// for the node it names.
type ConfigurationError struct {
	IndexerID string
	Reason    string
}

// NewConfigurationError creates a ConfigurationError with a formatted reason.
func NewConfigurationError(indexerID, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{IndexerID: indexerID, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.IndexerID == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error in indexer %s: %s", e.IndexerID, e.Reason)
}

// TransientFetchError wraps a failed update of the range (From, To]. Nothing
// was persisted; the cycle is retried on the next trigger.
type TransientFetchError struct {
	IndexerID string
	From      uint64
	To        uint64
	Err       error
}

// NewTransientFetchError creates a TransientFetchError.
func NewTransientFetchError(indexerID string, from, to uint64, err error) *TransientFetchError {
	return &TransientFetchError{IndexerID: indexerID, From: from, To: to, Err: err}
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("indexer %s failed to update range (%d, %d]: %v", e.IndexerID, e.From, e.To, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// InvalidationError reports a rollback that could not be committed. The
// persisted state is left as it was before the request.
type InvalidationError struct {
	IndexerID string
	Target    uint64
	Err       error
}

// NewInvalidationError creates an InvalidationError.
func NewInvalidationError(indexerID string, target uint64, err error) *InvalidationError {
	return &InvalidationError{IndexerID: indexerID, Target: target, Err: err}
}

func (e *InvalidationError) Error() string {
	return fmt.Sprintf("failed to invalidate indexer %s to height %d: %v", e.IndexerID, e.Target, e.Err)
}

func (e *InvalidationError) Unwrap() error {
	return e.Err
}
