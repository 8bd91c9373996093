package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nysesim/nysesim/pkg/exchange/book"
	"github.com/nysesim/nysesim/pkg/exchange/candle"
	"github.com/nysesim/nysesim/pkg/exchange/feed"
	"github.com/nysesim/nysesim/pkg/exchange/ledger"
	"github.com/nysesim/nysesim/pkg/util"
)

var apiStart = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func newTestServer(t *testing.T) (*Server, *book.OrderBook, *ledger.Ledger) {
	t.Helper()
	agg := candle.NewAggregator(100)
	b := book.NewOrderBook(book.Config{
		Symbol:       "AAPL",
		InitialPrice: d("100"),
		Aggregator:   agg,
		Sequence:     &book.Sequence{},
		Clock:        util.NewManualClock(apiStart),
	})
	l := ledger.New("alice", d("10000"))
	s := NewServer(b, agg, feed.NewBus(), []*ledger.Ledger{l}, nil)
	return s, b, l
}

func doGET(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestMarketEndpoint(t *testing.T) {
	s, b, l := newTestServer(t)
	seller := ledger.New("seller", d("0"))
	if err := b.PlaceBuyOrder(b.NewOrder(book.Buy, book.Limit, 5, d("99"), l)); err != nil {
		t.Fatal(err)
	}
	if err := b.PlaceSellOrder(b.NewOrder(book.Sell, book.Limit, 5, d("101"), seller)); err != nil {
		t.Fatal(err)
	}

	rec := doGET(t, s, "/api/v1/market")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var got MarketSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Symbol != "AAPL" || !got.CurrentPrice.Equal(d("100")) {
		t.Errorf("summary = %+v", got)
	}
	if got.BestBid == nil || !got.BestBid.Equal(d("99")) {
		t.Errorf("best bid = %v, want 99", got.BestBid)
	}
	if got.Spread == nil || !got.Spread.Equal(d("2")) {
		t.Errorf("spread = %v, want 2", got.Spread)
	}
}

func TestDepthEndpoint(t *testing.T) {
	s, b, l := newTestServer(t)
	for _, p := range []string{"99", "98", "97"} {
		if err := b.PlaceBuyOrder(b.NewOrder(book.Buy, book.Limit, 5, d(p), l)); err != nil {
			t.Fatal(err)
		}
	}

	rec := doGET(t, s, "/api/v1/market/depth?levels=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got book.DepthSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Bids) != 2 || !got.Bids[0].Price.Equal(d("99")) {
		t.Errorf("depth = %+v, want top 2 bid levels", got.Bids)
	}

	if rec := doGET(t, s, "/api/v1/market/depth?levels=nope"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad levels: status = %d, want 400", rec.Code)
	}
	if rec := doGET(t, s, "/api/v1/market/depth?levels=-1"); rec.Code != http.StatusBadRequest {
		t.Errorf("negative levels: status = %d, want 400", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s, b, l := newTestServer(t)
	if err := b.PlaceBuyOrder(b.NewOrder(book.Buy, book.Limit, 5, d("99"), l)); err != nil {
		t.Fatal(err)
	}

	rec := doGET(t, s, "/api/v1/market/stats")
	var got book.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Bids != 1 || got.Asks != 0 {
		t.Errorf("stats = %+v, want 1 bid", got)
	}
}

func TestCandlesEndpoint(t *testing.T) {
	s, b, l := newTestServer(t)
	seller := ledger.New("seller", d("0"))
	if err := b.PlaceSellOrder(b.NewOrder(book.Sell, book.Limit, 5, d("101"), seller)); err != nil {
		t.Fatal(err)
	}
	if err := b.PlaceBuyOrder(b.NewOrder(book.Buy, book.Limit, 5, d("101"), l)); err != nil {
		t.Fatal(err)
	}

	rec := doGET(t, s, "/api/v1/market/candles/1m?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var got []CandleInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("no candles returned")
	}
	if !got[0].Close.Equal(d("101")) || !got[0].Volume.Equal(d("5")) {
		t.Errorf("current candle = %+v, want close 101 volume 5", got[0])
	}

	from := apiStart.Add(-time.Minute).Unix()
	to := apiStart.Add(time.Minute).Unix()
	rec = doGET(t, s, fmt.Sprintf("/api/v1/market/candles/1m?from=%d&to=%d", from, to))
	if rec.Code != http.StatusOK {
		t.Fatalf("range query status = %d", rec.Code)
	}

	if rec := doGET(t, s, "/api/v1/market/candles/7m"); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown timeframe: status = %d, want 400", rec.Code)
	}
	if rec := doGET(t, s, "/api/v1/market/candles/1m?from=50&to=10"); rec.Code != http.StatusBadRequest {
		t.Errorf("inverted range: status = %d, want 400", rec.Code)
	}
}

func TestLedgersEndpoint(t *testing.T) {
	s, b, l := newTestServer(t)
	seller := ledger.New("seller", d("0"))
	if err := b.PlaceSellOrder(b.NewOrder(book.Sell, book.Limit, 5, d("101"), seller)); err != nil {
		t.Fatal(err)
	}
	if err := b.PlaceBuyOrder(b.NewOrder(book.Buy, book.Limit, 5, d("101"), l)); err != nil {
		t.Fatal(err)
	}

	rec := doGET(t, s, "/api/v1/ledgers")
	var got []LedgerInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ledgers = %d, want 1", len(got))
	}
	info := got[0]
	if info.Name != "alice" || !info.Cash.Equal(d("9495")) {
		t.Errorf("ledger = %+v, want alice with cash 9495", info)
	}
	if len(info.Positions) != 1 || info.Positions[0].Quantity != 5 {
		t.Errorf("positions = %+v, want long 5", info.Positions)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := doGET(t, s, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["status"] != "ok" {
		t.Errorf("health = %v", got)
	}
}
