package candle

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Aggregator builds trade-driven OHLCV series per symbol and timeframe. It is
// fed exactly once per fill through OnTrade and depends on nothing else; all
// other methods are read-only snapshots. History is bounded: once a series
// exceeds the retention cap its oldest bucket is evicted.
type Aggregator struct {
	mu        sync.RWMutex
	retention int
	series    map[string]map[Timeframe][]Candle
}

// NewAggregator creates an aggregator keeping at most retention candles per
// (symbol, timeframe).
func NewAggregator(retention int) *Aggregator {
	if retention <= 0 {
		retention = 1000
	}
	return &Aggregator{
		retention: retention,
		series:    make(map[string]map[Timeframe][]Candle),
	}
}

// InitSymbol seeds every timeframe with an initial candle at price, so the
// book has a quotable history before the first trade.
func (a *Aggregator) InitSymbol(symbol string, price decimal.Decimal, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.initSymbolLocked(symbol, price, now)
}

func (a *Aggregator) initSymbolLocked(symbol string, price decimal.Decimal, now time.Time) {
	byTF := make(map[Timeframe][]Candle, len(Timeframes))
	for _, tf := range Timeframes {
		byTF[tf] = []Candle{newCandle(bucketStart(now, tf), price)}
	}
	a.series[symbol] = byTF
}

// OnTrade folds one fill into every timeframe's current bucket, sealing the
// old bucket and opening a new one whenever the trade crosses a boundary.
// Sealed buckets are never revisited.
func (a *Aggregator) OnTrade(symbol string, price decimal.Decimal, volume int64, ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	byTF, ok := a.series[symbol]
	if !ok {
		a.initSymbolLocked(symbol, price, ts)
		byTF = a.series[symbol]
	}

	for _, tf := range Timeframes {
		buckets := byTF[tf]
		start := bucketStart(ts, tf)
		cur := len(buckets) - 1
		if start.After(buckets[cur].Start) {
			buckets = append(buckets, newCandle(start, price))
			if len(buckets) > a.retention {
				buckets = buckets[1:]
			}
			cur = len(buckets) - 1
		}
		buckets[cur].apply(price, volume)
		byTF[tf] = buckets
	}
}

// Current returns the open bucket for a timeframe.
func (a *Aggregator) Current(symbol string, tf Timeframe) (Candle, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	buckets, ok := a.buckets(symbol, tf)
	if !ok || len(buckets) == 0 {
		return Candle{}, false
	}
	return buckets[len(buckets)-1], true
}

// Recent returns up to n buckets, newest first, current bucket included.
func (a *Aggregator) Recent(symbol string, tf Timeframe, n int) []Candle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	buckets, ok := a.buckets(symbol, tf)
	if !ok || n <= 0 {
		return nil
	}
	if n > len(buckets) {
		n = len(buckets)
	}
	out := make([]Candle, 0, n)
	for i := len(buckets) - 1; i >= len(buckets)-n; i-- {
		out = append(out, buckets[i])
	}
	return out
}

// Range returns buckets whose start time falls within [from, to], oldest first.
func (a *Aggregator) Range(symbol string, tf Timeframe, from, to time.Time) []Candle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	buckets, ok := a.buckets(symbol, tf)
	if !ok {
		return nil
	}
	var out []Candle
	for _, c := range buckets {
		if c.Start.Before(from) || c.Start.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// LatestPrice is the close of the finest timeframe's current bucket.
func (a *Aggregator) LatestPrice(symbol string) (decimal.Decimal, bool) {
	cur, ok := a.Current(symbol, Timeframes[0])
	if !ok {
		return decimal.Zero, false
	}
	return cur.Close, true
}

func (a *Aggregator) buckets(symbol string, tf Timeframe) ([]Candle, bool) {
	byTF, ok := a.series[symbol]
	if !ok {
		return nil, false
	}
	buckets, ok := byTF[tf]
	return buckets, ok
}
