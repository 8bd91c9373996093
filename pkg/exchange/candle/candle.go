package candle

import (
	"time"

	"github.com/shopspring/decimal"
)

// Timeframe is a fixed candle bucket duration.
type Timeframe time.Duration

const (
	FiveSecond    Timeframe = Timeframe(5 * time.Second)
	OneMinute     Timeframe = Timeframe(time.Minute)
	FiveMinute    Timeframe = Timeframe(5 * time.Minute)
	FifteenMinute Timeframe = Timeframe(15 * time.Minute)
	OneHour       Timeframe = Timeframe(time.Hour)
	OneDay        Timeframe = Timeframe(24 * time.Hour)
)

// Timeframes is the fixed set every aggregator maintains, finest first.
var Timeframes = []Timeframe{FiveSecond, OneMinute, FiveMinute, FifteenMinute, OneHour, OneDay}

func (tf Timeframe) Duration() time.Duration { return time.Duration(tf) }

func (tf Timeframe) String() string {
	switch tf {
	case FiveSecond:
		return "5s"
	case OneMinute:
		return "1m"
	case FiveMinute:
		return "5m"
	case FifteenMinute:
		return "15m"
	case OneHour:
		return "1h"
	case OneDay:
		return "1d"
	default:
		return time.Duration(tf).String()
	}
}

// ParseTimeframe maps a label like "5m" back to its Timeframe.
func ParseTimeframe(s string) (Timeframe, bool) {
	for _, tf := range Timeframes {
		if tf.String() == s {
			return tf, true
		}
	}
	return 0, false
}

// Candle is one OHLCV bucket. Start is aligned to the timeframe boundary.
// Open is set at bucket creation and never changes; Low <= Open,Close <= High
// holds after every update and Volume only grows.
type Candle struct {
	Start  time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

func newCandle(start time.Time, price decimal.Decimal) Candle {
	return Candle{
		Start:  start,
		Open:   price,
		High:   price,
		Low:    price,
		Close:  price,
		Volume: decimal.Zero,
	}
}

func (c *Candle) apply(price decimal.Decimal, volume int64) {
	if price.GreaterThan(c.High) {
		c.High = price
	}
	if price.LessThan(c.Low) {
		c.Low = price
	}
	c.Close = price
	c.Volume = c.Volume.Add(decimal.NewFromInt(volume))
}

// bucketStart aligns ts down to the timeframe boundary.
func bucketStart(ts time.Time, tf Timeframe) time.Time {
	return ts.Truncate(tf.Duration())
}
