// Package eodhd provides a price feed backed by the EODHD API
package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" || s == "NA" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
	DefaultExchange  = "US"

	sourceName = "eodhd"
	dateLayout = "2006-01-02"
)

// Client implements interfaces.PriceFeed
type Client struct {
	baseURL    string
	apiKey     string
	exchange   string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithExchange sets the exchange suffix appended to bare symbols
func WithExchange(exchange string) ClientOption {
	return func(c *Client) {
		if exchange = strings.ToUpper(strings.TrimSpace(exchange)); exchange != "" {
			c.exchange = exchange
		}
	}
}

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		exchange: DefaultExchange,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClientFromConfig builds a client from the [clients.eodhd] section.
func NewClientFromConfig(cfg common.EODHDConfig, logger *common.Logger) *Client {
	return NewClient(cfg.APIKey,
		WithBaseURL(cfg.BaseURL),
		WithRateLimit(cfg.RateLimit),
		WithTimeout(cfg.GetTimeout()),
		WithExchange(cfg.Exchange),
		WithLogger(logger),
	)
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// Ticker maps a portfolio symbol onto an EODHD ticker. Symbols that already
// carry an exchange suffix ("BHP.AU", "BTC-USD.CC", "GSPC.INDX") pass through;
// bare symbols get the client's default exchange.
func (c *Client) Ticker(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + "." + c.exchange
}

// realTimeResponse is the /real-time payload. EODHD sends "NA" strings for
// fields it has no value for.
type realTimeResponse struct {
	Code          string      `json:"code"`
	Timestamp     flexFloat64 `json:"timestamp"`
	Close         flexFloat64 `json:"close"`
	PreviousClose flexFloat64 `json:"previousClose"`
}

// CurrentPrice returns the latest quote for symbol. When the market has not
// traded yet the previous close is used. A symbol EODHD cannot price yields
// ErrPriceUnavailable.
func (c *Client) CurrentPrice(ctx context.Context, symbol string) (models.Quote, error) {
	ticker := c.Ticker(symbol)
	if ticker == "" {
		return models.Quote{}, fmt.Errorf("empty symbol: %w", common.ErrPriceUnavailable)
	}

	var resp realTimeResponse
	if err := c.get(ctx, "/real-time/"+url.PathEscape(ticker), nil, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return models.Quote{}, fmt.Errorf("%s: %w", ticker, common.ErrPriceUnavailable)
		}
		return models.Quote{}, err
	}

	price := float64(resp.Close)
	if price <= 0 {
		price = float64(resp.PreviousClose)
	}
	if price <= 0 {
		return models.Quote{}, fmt.Errorf("%s has no price: %w", ticker, common.ErrPriceUnavailable)
	}

	ts := time.Now().UTC()
	if resp.Timestamp > 0 {
		ts = time.Unix(int64(resp.Timestamp), 0).UTC()
	}
	return models.Quote{
		Symbol:    strings.ToUpper(strings.TrimSpace(symbol)),
		Price:     price,
		Timestamp: ts,
		Source:    sourceName,
	}, nil
}

// eodBarResponse represents the API response for EOD data
type eodBarResponse struct {
	Date          string      `json:"date"`
	Close         flexFloat64 `json:"close"`
	AdjustedClose flexFloat64 `json:"adjusted_close"`
}

// HistoricalSeries returns daily closes for symbol in [start, end], ascending.
// Adjusted closes are preferred so splits and distributions do not show up
// as price jumps.
func (c *Client) HistoricalSeries(ctx context.Context, symbol string, start, end time.Time) ([]models.PricePoint, error) {
	return c.eod(ctx, c.Ticker(symbol), start, end)
}

// BenchmarkSeries returns daily closes for an index such as "GSPC.INDX".
func (c *Client) BenchmarkSeries(ctx context.Context, benchmarkID string, start, end time.Time) ([]models.PricePoint, error) {
	ticker := strings.ToUpper(strings.TrimSpace(benchmarkID))
	if ticker != "" && !strings.Contains(ticker, ".") {
		ticker += ".INDX"
	}
	return c.eod(ctx, ticker, start, end)
}

func (c *Client) eod(ctx context.Context, ticker string, start, end time.Time) ([]models.PricePoint, error) {
	if ticker == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("period", "d")
	params.Set("order", "a")
	if !start.IsZero() {
		params.Set("from", start.Format(dateLayout))
	}
	if !end.IsZero() {
		params.Set("to", end.Format(dateLayout))
	}

	var bars []eodBarResponse
	if err := c.get(ctx, "/eod/"+url.PathEscape(ticker), params, &bars); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			c.logger.Warn().Str("ticker", ticker).Msg("No EOD history for ticker")
			return nil, nil
		}
		return nil, fmt.Errorf("eod %s: %w", ticker, err)
	}

	points := make([]models.PricePoint, 0, len(bars))
	for _, bar := range bars {
		date, err := time.Parse(dateLayout, bar.Date)
		if err != nil {
			continue
		}
		px := float64(bar.AdjustedClose)
		if px <= 0 {
			px = float64(bar.Close)
		}
		if px <= 0 {
			continue
		}
		points = append(points, models.PricePoint{Date: date, Close: px})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	c.logger.Debug().Str("ticker", ticker).Int("bars", len(points)).Msg("EOD history loaded")
	return points, nil
}

// Compile-time interface check
var _ interfaces.PriceFeed = (*Client)(nil)
