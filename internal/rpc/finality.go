package rpc

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rpc"
)

// Finality selects the block tag the chain head is read at.
type Finality string

const (
	// FinalityFinalized reads the head at the finalized tag.
	FinalityFinalized Finality = "finalized"

	// FinalitySafe reads the head at the safe tag.
	FinalitySafe Finality = "safe"

	// FinalityLatest reads the latest block, which may still be reorged.
	FinalityLatest Finality = "latest"
)

// ParseFinality parses a finality mode.
func ParseFinality(s string) (Finality, error) {
	switch f := Finality(s); f {
	case FinalityFinalized, FinalitySafe, FinalityLatest:
		return f, nil
	default:
		return "", fmt.Errorf("invalid block finality: %s (must be one of: finalized, safe, latest)", s)
	}
}

// blockNumber is the HeaderByNumber argument for f. Unknown modes read the
// latest block.
func (f Finality) blockNumber() *big.Int {
	switch f {
	case FinalityFinalized:
		return big.NewInt(int64(rpc.FinalizedBlockNumber))
	case FinalitySafe:
		return big.NewInt(int64(rpc.SafeBlockNumber))
	default:
		return nil
	}
}
