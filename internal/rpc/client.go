package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	internalcommon "github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/internal/metrics"
	"github.com/goran-ethernal/IndexGraph/internal/retry"
	"github.com/goran-ethernal/IndexGraph/pkg/config"
	pkgrpc "github.com/goran-ethernal/IndexGraph/pkg/rpc"
	"golang.org/x/time/rate"
)

const (
	source   = "rpc"
	maxBatch = 100
)

// Compile-time check to ensure Client implements pkgrpc.EthClient interface.
var _ pkgrpc.EthClient = (*Client)(nil)

// ErrNotFound is returned when a batch element yields no result.
var ErrNotFound = errors.New("not found")

// Options tune the client behaviour.
type Options struct {
	// RequestsPerSecond bounds the request rate, zero means unlimited.
	RequestsPerSecond float64
	// Retry enables exponential backoff on transient failures.
	Retry *config.RetryConfig
	// Finality is the tag GetLatestBlockHeader reads the head at, latest when empty.
	Finality Finality
}

// Client wraps the Ethereum RPC client with rate limiting, retries and metrics.
// It implements the pkgrpc.EthClient interface.
type Client struct {
	eth      *ethclient.Client
	rpc      *rpc.Client
	limiter  *rate.Limiter
	retry    *config.RetryConfig
	finality Finality
	log      *logger.Logger
}

// NewClient creates a new RPC client connected to the given endpoint.
func NewClient(ctx context.Context, endpoint string, opts Options, log *logger.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}

	return newClient(rpcClient, opts, log), nil
}

func newClient(rpcClient *rpc.Client, opts Options, log *logger.Logger) *Client {
	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = max(1, int(opts.RequestsPerSecond))
	}

	return &Client{
		eth:      ethclient.NewClient(rpcClient),
		rpc:      rpcClient,
		limiter:  rate.NewLimiter(limit, burst),
		retry:    opts.Retry,
		finality: opts.Finality,
		log:      log.WithComponent(internalcommon.ComponentRPC),
	}
}

// Close closes the RPC client connection.
func (c *Client) Close() {
	c.eth.Close()
}

// call runs fn under the rate limiter with retries and records metrics for method.
func (c *Client) call(ctx context.Context, method string, fn func() error) error {
	return retry.Do(ctx, c.retry, method, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		start := time.Now()
		metrics.RequestInc(source, method)
		err := fn()
		metrics.RequestDurationLog(source, method, time.Since(start))
		if err != nil {
			metrics.RequestErrorInc(source, method)
			c.log.Debugf("%s failed: %v", method, err)
		}

		return err
	})
}

// GetLogs retrieves logs matching the given filter query. A "too many
// results" response is returned unretried so the caller can split the range.
func (c *Client) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.call(ctx, "eth_getLogs", func() error {
		var err error
		logs, err = c.eth.FilterLogs(ctx, query)
		if tooMany, _ := IsTooManyResultsError(err); tooMany {
			return retry.Permanent(err)
		}
		return err
	})

	return logs, err
}

// GetBlockHeader retrieves the header for a specific block number.
func (c *Client) GetBlockHeader(ctx context.Context, blockNum uint64) (*types.Header, error) {
	var header *types.Header
	err := c.call(ctx, "eth_getBlockByNumber", func() error {
		var err error
		header, err = c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNum))
		return err
	})

	return header, err
}

// GetLatestBlockHeader retrieves the head block header at the configured finality.
func (c *Client) GetLatestBlockHeader(ctx context.Context) (*types.Header, error) {
	var header *types.Header
	err := c.call(ctx, "eth_getBlockByNumber", func() error {
		var err error
		header, err = c.eth.HeaderByNumber(ctx, c.finality.blockNumber())
		return err
	})

	return header, err
}

// BatchGetBlockHeaders retrieves headers for multiple block numbers in batches of maxBatch.
func (c *Client) BatchGetBlockHeaders(ctx context.Context, blockNums []uint64) ([]*types.Header, error) {
	all := make([]*types.Header, 0, len(blockNums))

	for i := 0; i < len(blockNums); i += maxBatch {
		chunk := blockNums[i:min(i+maxBatch, len(blockNums))]
		results := make([]*types.Header, len(chunk))

		batch := make([]rpc.BatchElem, len(chunk))
		for j, blockNum := range chunk {
			batch[j] = rpc.BatchElem{
				Method: "eth_getBlockByNumber",
				Args:   []any{toBlockNumArg(blockNum), false}, // false = don't include transactions
				Result: &results[j],
			}
		}

		if err := c.batchCall(ctx, "eth_getBlockByNumber", batch); err != nil {
			return nil, err
		}
		for j, h := range results {
			if h == nil {
				return nil, fmt.Errorf("block %d: %w", chunk[j], ErrNotFound)
			}
		}

		all = append(all, results...)
	}

	return all, nil
}

// BatchGetReceipts retrieves transaction receipts in batches of maxBatch.
func (c *Client) BatchGetReceipts(ctx context.Context, txHashes []common.Hash) ([]*types.Receipt, error) {
	all := make([]*types.Receipt, 0, len(txHashes))

	for i := 0; i < len(txHashes); i += maxBatch {
		chunk := txHashes[i:min(i+maxBatch, len(txHashes))]
		results := make([]*types.Receipt, len(chunk))

		batch := make([]rpc.BatchElem, len(chunk))
		for j, hash := range chunk {
			batch[j] = rpc.BatchElem{
				Method: "eth_getTransactionReceipt",
				Args:   []any{hash},
				Result: &results[j],
			}
		}

		if err := c.batchCall(ctx, "eth_getTransactionReceipt", batch); err != nil {
			return nil, err
		}
		for j, r := range results {
			if r == nil {
				return nil, fmt.Errorf("receipt of %s: %w", chunk[j].Hex(), ErrNotFound)
			}
		}

		all = append(all, results...)
	}

	return all, nil
}

func (c *Client) batchCall(ctx context.Context, method string, batch []rpc.BatchElem) error {
	return c.call(ctx, method+"_batch", func() error {
		if err := c.rpc.BatchCallContext(ctx, batch); err != nil {
			return err
		}
		// Check for individual errors
		for _, elem := range batch {
			if elem.Error != nil {
				return elem.Error
			}
		}
		return nil
	})
}

// toBlockNumArg converts a block number to hex format.
func toBlockNumArg(blockNum uint64) string {
	return fmt.Sprintf("0x%x", blockNum)
}
