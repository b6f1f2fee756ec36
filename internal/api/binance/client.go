package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/Alias1177/SignalScanner/internal/model"
	httpClient "github.com/Alias1177/SignalScanner/internal/platform/http"
)

// DefaultBaseURL is the USDT-margined futures REST endpoint
const DefaultBaseURL = "https://fapi.binance.com"

// MaxKlineLimit is the largest page the klines endpoint serves
const MaxKlineLimit = 500

// ErrMalformedKline is returned when a kline row cannot be parsed
var ErrMalformedKline = errors.New("malformed kline")

// Client is the Binance futures API client
type Client struct {
	baseURL    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new Binance client
type ClientOptions struct {
	BaseURL         string
	ProxyURL        string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetries      int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new Binance API client
func NewClient(options ClientOptions) (*Client, error) {
	httpOpts := httpClient.ClientOptions{
		Timeout:         options.RequestTimeout,
		RequestsPerSec:  options.RequestsPerSec,
		MaxRetries:      options.MaxRetries,
		MaxRetryTimeout: options.MaxRetryTimeout,
		ProxyURL:        options.ProxyURL,
	}

	// Apply defaults if not set
	if httpOpts.Timeout == 0 {
		httpOpts.Timeout = 10 * time.Second
	}
	baseURL := strings.TrimRight(options.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	hc, err := httpClient.NewClient(httpOpts)
	if err != nil {
		return nil, fmt.Errorf("creating http client: %w", err)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: hc,
		logger:     log.With().Str("component", "binance_client").Logger(),
	}, nil
}

// get performs a GET against path and returns the body
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	c.logger.Debug().Str("url", u).Msg("Requesting")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/json") {
		c.logger.Error().Str("content_type", ct).Str("response", truncate(body)).Msg("Non JSON response")
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}

	return body, nil
}

// FetchBars fetches the most recent limit klines of pair, oldest first
func (c *Client) FetchBars(ctx context.Context, pair, interval string, limit int) (model.BarSequence, error) {
	if limit <= 0 || limit > MaxKlineLimit {
		limit = MaxKlineLimit
	}

	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "/fapi/v1/klines", params)
	if err != nil {
		return nil, err
	}

	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		c.logger.Error().Err(err).Str("response", truncate(body)).Msg("Error parsing JSON")
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	bars := make(model.BarSequence, 0, len(rows))
	for i, row := range rows {
		bar, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", pair, i, err)
		}
		bars = append(bars, bar)
	}

	c.logger.Debug().Str("pair", pair).Int("count", len(bars)).Msg("Fetched bars")
	return bars, nil
}

// parseKline decodes one positional kline row:
// [openTime, open, high, low, close, volume, closeTime, quoteVolume, trades, ...]
func parseKline(row []json.RawMessage) (model.Bar, error) {
	if len(row) < 9 {
		return model.Bar{}, fmt.Errorf("%w: %d fields", ErrMalformedKline, len(row))
	}

	var (
		bar model.Bar
		err error
	)
	if bar.OpenTime, err = parseMillis(row[0]); err != nil {
		return model.Bar{}, err
	}
	if bar.CloseTime, err = parseMillis(row[6]); err != nil {
		return model.Bar{}, err
	}

	fields := []*decimal.Decimal{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume}
	for i, dst := range fields {
		if *dst, err = parseDecimal(row[i+1]); err != nil {
			return model.Bar{}, err
		}
	}
	if bar.QuoteVolume, err = parseDecimal(row[7]); err != nil {
		return model.Bar{}, err
	}

	var trades int64
	if err := json.Unmarshal(row[8], &trades); err != nil {
		return model.Bar{}, fmt.Errorf("%w: trade count: %v", ErrMalformedKline, err)
	}
	bar.TradeCount = trades

	return bar, nil
}

func parseMillis(raw json.RawMessage) (time.Time, error) {
	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %s", ErrMalformedKline, raw)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func parseDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: value %s", ErrMalformedKline, raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: value %q", ErrMalformedKline, s)
	}
	return d, nil
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol       string `json:"symbol"`
		QuoteAsset   string `json:"quoteAsset"`
		Status       string `json:"status"`
		ContractType string `json:"contractType"`
	} `json:"symbols"`
}

// TradingPairs lists every USDT quoted perpetual contract currently trading
func (c *Client) TradingPairs(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/fapi/v1/exchangeInfo", nil)
	if err != nil {
		return nil, err
	}

	var info exchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parsing exchange info: %w", err)
	}

	var pairs []string
	for _, s := range info.Symbols {
		if s.QuoteAsset == "USDT" && s.Status == "TRADING" && s.ContractType == "PERPETUAL" {
			pairs = append(pairs, s.Symbol)
		}
	}

	c.logger.Info().Int("count", len(pairs)).Msg("Fetched USDT perpetual pairs")
	return pairs, nil
}

// CurrentPrice returns the last traded price of pair
func (c *Client) CurrentPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("symbol", pair)

	body, err := c.get(ctx, "/fapi/v1/ticker/price", params)
	if err != nil {
		return decimal.Decimal{}, err
	}

	var ticker struct {
		Symbol string          `json:"symbol"`
		Price  decimal.Decimal `json:"price"`
	}
	if err := json.Unmarshal(body, &ticker); err != nil {
		return decimal.Decimal{}, fmt.Errorf("parsing ticker: %w", err)
	}

	return ticker.Price, nil
}

func truncate(body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) > 200 {
		return string(body[:200])
	}
	return string(body)
}
