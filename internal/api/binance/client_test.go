package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T, routes map[string]string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientOptions{
		BaseURL:        srv.URL,
		RequestTimeout: time.Second,
		RequestsPerSec: 100,
		MaxRetries:     1,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

const klines = `[
 [1700000000000,"100.10","101.00","99.50","100.55","1234.5",1700003599999,"124000.25",321,"600","60000","0"],
 [1700003600000,"100.55","102.00","100.00","101.80","2000",1700007199999,"203000",400,"900","90000","0"]
]`

func TestFetchBars(t *testing.T) {
	c := newTestServer(t, map[string]string{"/fapi/v1/klines": klines})

	bars, err := c.FetchBars(context.Background(), "BTCUSDT", "1h", 2)
	if err != nil {
		t.Fatalf("FetchBars() error = %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("FetchBars() returned %d bars, want 2", len(bars))
	}

	first := bars[0]
	if got, want := first.OpenTime, time.UnixMilli(1700000000000).UTC(); !got.Equal(want) {
		t.Errorf("OpenTime = %v, want %v", got, want)
	}
	if got := first.Close.String(); got != "100.55" {
		t.Errorf("Close = %s, want 100.55", got)
	}
	if got := first.QuoteVolume.String(); got != "124000.25" {
		t.Errorf("QuoteVolume = %s, want 124000.25", got)
	}
	if first.TradeCount != 321 {
		t.Errorf("TradeCount = %d, want 321", first.TradeCount)
	}
	if got := bars.Last().High.String(); got != "102" {
		t.Errorf("last High = %s, want 102", got)
	}
}

func TestFetchBarsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"short row", `[[1700000000000,"1","2"]]`},
		{"bad price", `[[1700000000000,"x","2","1","1","1",1700003599999,"1",1,"0","0","0"]]`},
		{"bad time", `[["soon","1","2","1","1","1",1700003599999,"1",1,"0","0","0"]]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, map[string]string{"/fapi/v1/klines": tt.body})
			_, err := c.FetchBars(context.Background(), "BTCUSDT", "1h", 1)
			if !errors.Is(err, ErrMalformedKline) {
				t.Errorf("FetchBars() error = %v, want ErrMalformedKline", err)
			}
		})
	}
}

func TestTradingPairs(t *testing.T) {
	c := newTestServer(t, map[string]string{"/fapi/v1/exchangeInfo": `{"symbols":[
		{"symbol":"BTCUSDT","quoteAsset":"USDT","status":"TRADING","contractType":"PERPETUAL"},
		{"symbol":"ETHUSDT_240329","quoteAsset":"USDT","status":"TRADING","contractType":"CURRENT_QUARTER"},
		{"symbol":"ETHBUSD","quoteAsset":"BUSD","status":"TRADING","contractType":"PERPETUAL"},
		{"symbol":"LUNAUSDT","quoteAsset":"USDT","status":"SETTLING","contractType":"PERPETUAL"},
		{"symbol":"SOLUSDT","quoteAsset":"USDT","status":"TRADING","contractType":"PERPETUAL"}
	]}`})

	pairs, err := c.TradingPairs(context.Background())
	if err != nil {
		t.Fatalf("TradingPairs() error = %v", err)
	}
	want := []string{"BTCUSDT", "SOLUSDT"}
	if len(pairs) != len(want) {
		t.Fatalf("TradingPairs() = %v, want %v", pairs, want)
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("TradingPairs()[%d] = %s, want %s", i, pairs[i], want[i])
		}
	}
}

func TestCurrentPrice(t *testing.T) {
	c := newTestServer(t, map[string]string{"/fapi/v1/ticker/price": `{"symbol":"BTCUSDT","price":"43210.50","time":1700000000000}`})

	price, err := c.CurrentPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("CurrentPrice() error = %v", err)
	}
	if got := price.String(); got != "43210.5" {
		t.Errorf("CurrentPrice() = %s, want 43210.5", got)
	}
}

func TestFetchBarsHTTPError(t *testing.T) {
	c := newTestServer(t, map[string]string{})
	if _, err := c.FetchBars(context.Background(), "BTCUSDT", "1h", 1); err == nil {
		t.Errorf("FetchBars() on 404 should fail")
	}
}
