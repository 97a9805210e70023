package reorg

import "fmt"

// DetectedError describes a tracked block that is no longer canonical.
type DetectedError struct {
	Block     uint64
	Timestamp uint64
	Stored    string
	Canonical string
}

func (e *DetectedError) Error() string {
	return fmt.Sprintf("reorg detected at block %d (timestamp %d): stored_hash=%s canonical_hash=%s",
		e.Block, e.Timestamp, e.Stored, e.Canonical)
}
