package book

import (
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nysesim/nysesim/pkg/exchange/ledger"
)

type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "sell"
	}
	return "buy"
}

type Style int8

const (
	Limit Style = iota
	Market
	Stop
)

func (s Style) String() string {
	switch s {
	case Market:
		return "market"
	case Stop:
		return "stop"
	default:
		return "limit"
	}
}

// Sequence hands out process-unique, monotonically increasing order IDs.
// The ID doubles as the arrival-order tie-break, so priority stays
// deterministic under clock skew and concurrent submission.
type Sequence struct {
	n atomic.Uint64
}

func (s *Sequence) Next() uint64 { return s.n.Add(1) }

// Order is one trading intent. Everything except Remaining is immutable
// after creation; Remaining shrinks on partial fills and the order leaves
// its collection when it reaches zero.
type Order struct {
	ID        uint64
	Symbol    string
	Side      Side
	Style     Style
	Quantity  int64
	Remaining int64
	// Price is the limit price for limit orders and the trigger price for
	// stops; zero for market orders.
	Price     decimal.Decimal
	Owner     *ledger.Ledger
	CreatedAt time.Time

	// holdsStock marks a sell that reserved stock at placement; shortFlagged
	// marks a sell accepted without reservation (a short attempt).
	holdsStock   bool
	shortFlagged bool
}

// ShortFlagged reports whether the order was accepted as a short attempt.
func (o *Order) ShortFlagged() bool { return o.shortFlagged }

// Trade is one fill, emitted exactly once per settlement.
type Trade struct {
	Symbol      string          `json:"symbol"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	BuyOrderID  uint64          `json:"buy_order_id"`
	SellOrderID uint64          `json:"sell_order_id"`
	ExecutedAt  time.Time       `json:"executed_at"`
}

// TradePublisher receives every fill after settlement, e.g. for fan-out to
// websocket subscribers. Implementations must not call back into the book.
type TradePublisher interface {
	PublishTrade(Trade)
}
