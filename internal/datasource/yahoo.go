package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AnmolBhardwaj/StockWatcher/internal/infra"
	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
	"github.com/AnmolBhardwaj/StockWatcher/pkg/utils"
)

// YahooBaseURL is the public Yahoo Finance query host.
const YahooBaseURL = "https://query1.finance.yahoo.com"

// Yahoo implements PriceProvider using the v8 chart and v10 quoteSummary APIs.
type Yahoo struct {
	baseURL string
	fetcher fetcher
}

// YahooOption configures the Yahoo provider.
type YahooOption func(*Yahoo)

// WithYahooBaseURL points the provider at another host (tests, proxies).
func WithYahooBaseURL(u string) YahooOption {
	return func(y *Yahoo) { y.baseURL = strings.TrimRight(u, "/") }
}

// WithYahooHTTPClient sets the HTTP client.
func WithYahooHTTPClient(c *http.Client) YahooOption {
	return func(y *Yahoo) { y.fetcher.client = c }
}

// WithYahooRateLimiter shares a limiter across providers.
func WithYahooRateLimiter(rl *infra.RateLimiter) YahooOption {
	return func(y *Yahoo) { y.fetcher.limiter = rl }
}

// NewYahoo creates a Yahoo Finance price provider.
func NewYahoo(opts ...YahooOption) *Yahoo {
	y := &Yahoo{
		baseURL: YahooBaseURL,
		fetcher: fetcher{
			client:  NewHTTPClient(30 * time.Second),
			limiter: infra.NewRateLimiter(5, time.Second), // 5 req/s
		},
	}
	for _, opt := range opts {
		opt(y)
	}
	return y
}

// Name returns the data source name.
func (y *Yahoo) Name() string { return "Yahoo Finance" }

// --- Yahoo API types ---

type yfChartResponse struct {
	Chart struct {
		Result []yfChartResult `json:"result"`
		Error  *yfError        `json:"error"`
	} `json:"chart"`
}

type yfChartResult struct {
	Meta       yfChartMeta  `json:"meta"`
	Timestamp  []int64      `json:"timestamp"`
	Indicators yfIndicators `json:"indicators"`
}

type yfChartMeta struct {
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
}

type yfIndicators struct {
	Quote []yfOHLCV `json:"quote"`
}

type yfOHLCV struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

type yfSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			FinancialData *struct {
				DebtToEquity  *yfFinVal `json:"debtToEquity"`
				ProfitMargins *yfFinVal `json:"profitMargins"`
			} `json:"financialData"`
		} `json:"result"`
		Error *yfError `json:"error"`
	} `json:"quoteSummary"`
}

type yfFinVal struct {
	Raw float64 `json:"raw"`
	Fmt string  `json:"fmt"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Public methods ---

// History returns daily bars from the chart API. Sessions with no close
// are dropped.
func (y *Yahoo) History(ctx context.Context, symbol string, from, to time.Time) ([]models.OHLCV, error) {
	yfTicker := utils.ToYFinanceTicker(symbol)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&events=history",
		y.baseURL, url.PathEscape(yfTicker), from.Unix(), to.Unix())

	data, err := y.fetcher.get(ctx, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		var he *ErrHTTP
		if errors.As(err, &he) && he.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, yfTicker)
		}
		return nil, fmt.Errorf("yahoo chart %s: %w", yfTicker, err)
	}

	var resp yfChartResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse yahoo chart %s: %w", yfTicker, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrTickerNotFound, yfTicker, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, yfTicker)
	}

	candles := parseYFCandles(resp.Chart.Result[0])
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoHistory, yfTicker)
	}
	return candles, nil
}

// Fundamentals reads debtToEquity and profitMargins from the financialData
// module. Missing fields are zero; a missing module yields nil.
func (y *Yahoo) Fundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error) {
	yfTicker := utils.ToYFinanceTicker(symbol)
	u := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=financialData", y.baseURL, url.PathEscape(yfTicker))

	data, err := y.fetcher.get(ctx, u, map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("yahoo quoteSummary %s: %w", yfTicker, err)
	}

	var resp yfSummaryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse yahoo quoteSummary %s: %w", yfTicker, err)
	}
	if resp.QuoteSummary.Error != nil {
		return nil, fmt.Errorf("yahoo quoteSummary %s: %s", yfTicker, resp.QuoteSummary.Error.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 || resp.QuoteSummary.Result[0].FinancialData == nil {
		return nil, nil
	}

	fd := resp.QuoteSummary.Result[0].FinancialData
	f := &models.Fundamentals{}
	if fd.DebtToEquity != nil {
		f.DebtToEquity = fd.DebtToEquity.Raw
	}
	if fd.ProfitMargins != nil {
		f.ProfitMargins = fd.ProfitMargins.Raw
	}
	return f, nil
}

// --- Helpers ---

func parseYFCandles(result yfChartResult) []models.OHLCV {
	if len(result.Indicators.Quote) == 0 {
		return nil
	}

	q := result.Indicators.Quote[0]
	candles := make([]models.OHLCV, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		c := models.OHLCV{
			Timestamp: time.Unix(ts, 0).UTC(),
			Close:     *q.Close[i],
		}
		c.Open = valueOr(q.Open, i, c.Close)
		c.High = valueOr(q.High, i, c.Close)
		c.Low = valueOr(q.Low, i, c.Close)
		if i < len(q.Volume) && q.Volume[i] != nil {
			c.Volume = *q.Volume[i]
		}
		candles = append(candles, c)
	}
	return candles
}

func valueOr(vals []*float64, i int, fallback float64) float64 {
	if i < len(vals) && vals[i] != nil {
		return *vals[i]
	}
	return fallback
}
