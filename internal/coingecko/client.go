// Package coingecko fetches historical USD prices from the CoinGecko API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goran-ethernal/IndexGraph/internal/common"
	"github.com/goran-ethernal/IndexGraph/internal/logger"
	"github.com/goran-ethernal/IndexGraph/internal/metrics"
	"github.com/goran-ethernal/IndexGraph/internal/retry"
	"github.com/goran-ethernal/IndexGraph/pkg/config"
	"golang.org/x/time/rate"
)

const (
	source         = "coingecko"
	apiKeyHeader   = "x-cg-pro-api-key"
	maxErrorBody   = 512
	marketChartOp  = "market_chart_range"
	millisInSecond = 1000
)

// PricePoint is one USD price sample. Timestamp is in unix seconds.
type PricePoint struct {
	Timestamp uint64
	PriceUSD  float64
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("coingecko returned %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// PriceSource returns historical prices for a coin in the range [from, to].
type PriceSource interface {
	MarketChartRange(ctx context.Context, coinID string, from, to uint64) ([]PricePoint, error)
}

// Client is a rate limited CoinGecko API client.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	retry   *config.RetryConfig
	log     *logger.Logger
}

var _ PriceSource = (*Client)(nil)

// NewClient creates a client from cfg. Defaults must already be applied.
func NewClient(cfg config.CoingeckoConfig, log *logger.Logger) *Client {
	perMinute := max(cfg.RequestsPerMinute, 1)

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout.Duration},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		retry:   cfg.Retry,
		log:     log.WithComponent(common.ComponentCoingecko),
	}
}

type marketChartResponse struct {
	Prices [][2]float64 `json:"prices"`
}

// MarketChartRange returns the USD price history of coinID between from and
// to, both unix seconds. CoinGecko serves hourly points for ranges of up to
// 90 days.
func (c *Client) MarketChartRange(ctx context.Context, coinID string, from, to uint64) ([]PricePoint, error) {
	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("from", strconv.FormatUint(from, 10))
	query.Set("to", strconv.FormatUint(to, 10))
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart/range?%s", c.baseURL, url.PathEscape(coinID), query.Encode())

	var resp marketChartResponse
	err := retry.Do(ctx, c.retry, marketChartOp, func() error {
		return c.get(ctx, endpoint, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices of %s in [%d, %d]: %w", coinID, from, to, err)
	}

	points := make([]PricePoint, 0, len(resp.Prices))
	for _, p := range resp.Prices {
		points = append(points, PricePoint{
			Timestamp: uint64(p[0]) / millisInSecond,
			PriceUSD:  p[1],
		})
	}

	c.log.Debugf("fetched %d price points of %s in [%d, %d]", len(points), coinID, from, to)
	return points, nil
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	metrics.RequestInc(source, marketChartOp)
	defer func() { metrics.RequestDurationLog(source, marketChartOp, time.Since(start)) }()

	res, err := c.http.Do(req)
	if err != nil {
		metrics.RequestErrorInc(source, marketChartOp)
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		metrics.RequestErrorInc(source, marketChartOp)
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		statusErr := &StatusError{StatusCode: res.StatusCode, Body: string(body)}
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= http.StatusInternalServerError {
			return statusErr
		}
		return retry.Permanent(statusErr)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return retry.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}

	return nil
}
