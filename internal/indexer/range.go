package indexer

import (
	"fmt"

	"github.com/goran-ethernal/IndexGraph/pkg/indexer"
)

// syncRange is the work one update cycle does for a node at height safe
// whose parents are at target.
type syncRange struct {
	// fetch is false when the node only moves its watermark to skipTo.
	fetch  bool
	skipTo uint64

	// from and to bound the range (from, to] passed to the processor.
	from uint64
	to   uint64
}

// planRange clamps (safe, target] to the processor window.
func planRange(safe, target uint64, w indexer.Window) syncRange {
	if safe >= target {
		panic(fmt.Sprintf("planRange called with safe height %d at or above target %d", safe, target))
	}

	closed := w.To != 0 && safe >= w.To
	if closed || target < w.From {
		return syncRange{skipTo: target}
	}

	r := syncRange{fetch: true, from: safe, to: target}
	if safe < w.From {
		r.from = w.From
	}
	if w.To != 0 && target > w.To {
		r.to = w.To
	}

	if r.from > r.to {
		panic(fmt.Sprintf("clamped range (%d, %d] is inverted", r.from, r.to))
	}
	if r.from == r.to {
		return syncRange{skipTo: target}
	}

	return r
}

// acknowledgedHeight is the height a node ends up at after invalidating to target.
func acknowledgedHeight(target, safe, minHeight uint64) uint64 {
	return max(minHeight, min(target, safe))
}
