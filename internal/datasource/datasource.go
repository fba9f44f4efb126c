// Package datasource fetches the raw inputs of a scan cycle: daily price
// history and fundamentals from Yahoo Finance, and headlines from RSS feeds.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AnmolBhardwaj/StockWatcher/internal/infra"
	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
)

// PriceProvider supplies the price and fundamentals inputs for one symbol.
type PriceProvider interface {
	// History returns daily bars between from and to in chronological order.
	History(ctx context.Context, symbol string, from, to time.Time) ([]models.OHLCV, error)

	// Fundamentals returns the debt and margin ratios. A nil result with
	// a nil error means the provider has no data for the symbol.
	Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
}

// FeedProvider fetches the current items of one news feed.
type FeedProvider interface {
	Fetch(ctx context.Context, feed Feed) ([]models.RawNewsItem, error)
}

// --- Sentinel errors ---

var (
	// ErrTickerNotFound is returned when a symbol cannot be resolved.
	ErrTickerNotFound = errors.New("ticker not found")
	// ErrNoHistory is returned when a symbol resolves but has no usable bars.
	ErrNoHistory = errors.New("no price history")
	// ErrRateLimited is returned when a source rate-limits the request.
	ErrRateLimited = errors.New("rate limited by data source")
	// ErrFeedUnavailable is returned when a feed cannot be fetched or parsed.
	ErrFeedUnavailable = errors.New("feed unavailable")
)

// ErrHTTP wraps an HTTP error with status code.
type ErrHTTP struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Status, e.Body)
}

// DefaultUserAgent is the user agent string used for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// NewHTTPClient returns the shared client used by all sources.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return infra.NewHTTPClient(timeout, DefaultUserAgent)
}

// fetcher performs rate-limited GETs and returns the full body.
type fetcher struct {
	client  *http.Client
	limiter *infra.RateLimiter
}

func (f fetcher) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/html, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ErrHTTP{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}
	return io.ReadAll(resp.Body)
}
