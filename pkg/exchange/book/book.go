package book

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nysesim/nysesim/pkg/exchange/candle"
	"github.com/nysesim/nysesim/pkg/exchange/ledger"
	"github.com/nysesim/nysesim/pkg/util"
)

// Expected business outcomes of submission. Callers decide whether to retry,
// resize, or drop the intent.
var (
	ErrInsufficientFunds           = errors.New("insufficient funds")
	ErrInsufficientLiquidity       = errors.New("insufficient liquidity")
	ErrInsufficientReservableStock = errors.New("insufficient reservable stock")
)

// OrderBook matches orders for one symbol under price-time priority. It owns
// four priority queues (resting buys/sells, pending buy/sell stops) and the
// current and last-trade prices. Every fill settles both ledgers and is
// pushed to the candle aggregator exactly once; settlement re-evaluates
// pending stops, which can cascade.
//
// The whole submit/cancel/query surface runs under one mutex per book, so a
// reader never observes an order removed from a queue but not yet settled.
type OrderBook struct {
	mu sync.Mutex

	symbol         string
	bids           *queue
	asks           *queue
	buyStops       *queue
	sellStops      *queue
	currentPrice   decimal.Decimal
	lastTradePrice decimal.Decimal

	agg   *candle.Aggregator
	seq   *Sequence
	clock util.Clock
	log   *zap.SugaredLogger
	pub   TradePublisher
}

// Config wires an OrderBook's collaborators. Aggregator and Sequence are
// required; Clock defaults to the wall clock, Logger to a no-op, Publisher
// may be nil.
type Config struct {
	Symbol       string
	InitialPrice decimal.Decimal
	Aggregator   *candle.Aggregator
	Sequence     *Sequence
	Clock        util.Clock
	Logger       *zap.SugaredLogger
	Publisher    TradePublisher
}

func NewOrderBook(cfg Config) *OrderBook {
	if cfg.Aggregator == nil {
		panic("book: aggregator is required")
	}
	if cfg.Sequence == nil {
		panic("book: sequence is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = util.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop().Sugar()
	}

	b := &OrderBook{
		symbol:         cfg.Symbol,
		bids:           newQueue(bidPriority),
		asks:           newQueue(askPriority),
		buyStops:       newQueue(buyStopPriority),
		sellStops:      newQueue(sellStopPriority),
		currentPrice:   cfg.InitialPrice,
		lastTradePrice: cfg.InitialPrice,
		agg:            cfg.Aggregator,
		seq:            cfg.Sequence,
		clock:          cfg.Clock,
		log:            cfg.Logger,
		pub:            cfg.Publisher,
	}
	b.agg.InitSymbol(cfg.Symbol, cfg.InitialPrice, b.clock.Now())
	return b
}

// NewOrder builds an order against this book's symbol with the next sequence
// ID. Price is the limit price for limit orders and the trigger price for
// stops; pass zero for market orders.
func (b *OrderBook) NewOrder(side Side, style Style, qty int64, price decimal.Decimal, owner *ledger.Ledger) *Order {
	if qty <= 0 {
		panic(fmt.Sprintf("book: order quantity must be positive, got %d", qty))
	}
	if price.IsNegative() {
		panic("book: negative order price")
	}
	return &Order{
		ID:        b.seq.Next(),
		Symbol:    b.symbol,
		Side:      side,
		Style:     style,
		Quantity:  qty,
		Remaining: qty,
		Price:     price,
		Owner:     owner,
		CreatedAt: b.clock.Now(),
	}
}

// PlaceBuyOrder submits a buy. Market buys are all-or-nothing; limit buys
// reserve cash and rest; stops wait for the trigger price, firing on
// placement if the current price already satisfies it. A rejection leaves
// no trace in the book or the ledger.
func (b *OrderBook) PlaceBuyOrder(o *Order) error {
	if o.Side != Buy {
		panic("book: sell order submitted as buy")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	switch o.Style {
	case Market:
		err = b.executeMarketBuy(o)
	case Stop:
		b.buyStops.insert(o)
		b.log.Infow("buy_stop_placed", "id", o.ID, "symbol", b.symbol, "qty", o.Remaining, "stop", o.Price)
	default:
		err = b.placeLimitBuy(o)
	}
	if err != nil {
		return err
	}
	b.triggerStops()
	return nil
}

// PlaceSellOrder submits a sell. Sells without enough available stock are
// accepted as short attempts, not rejected.
func (b *OrderBook) PlaceSellOrder(o *Order) error {
	if o.Side != Sell {
		panic("book: buy order submitted as sell")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	switch o.Style {
	case Market:
		err = b.executeMarketSell(o)
	case Stop:
		err = b.placeSellStop(o)
	default:
		err = b.placeLimitSell(o)
	}
	if err != nil {
		return err
	}
	b.triggerStops()
	return nil
}

func (b *OrderBook) placeLimitBuy(o *Order) error {
	required := o.Price.Mul(decimal.NewFromInt(o.Remaining))
	if !o.Owner.ReserveCash(required) {
		return ErrInsufficientFunds
	}
	b.bids.insert(o)
	b.match()
	return nil
}

func (b *OrderBook) placeLimitSell(o *Order) error {
	if o.Owner.AvailableStock(b.symbol) >= o.Remaining {
		if !o.Owner.ReserveStock(b.symbol, o.Remaining) {
			return ErrInsufficientReservableStock
		}
		o.holdsStock = true
	} else {
		o.shortFlagged = true
		b.log.Infow("short_sell_accepted", "id", o.ID, "symbol", b.symbol, "qty", o.Remaining, "price", o.Price)
	}
	b.asks.insert(o)
	b.match()
	return nil
}

func (b *OrderBook) placeSellStop(o *Order) error {
	if o.Owner.AvailableStock(b.symbol) >= o.Remaining {
		if !o.Owner.ReserveStock(b.symbol, o.Remaining) {
			return ErrInsufficientReservableStock
		}
		o.holdsStock = true
	} else {
		o.shortFlagged = true
		b.log.Infow("contingent_short_stop_accepted", "id", o.ID, "symbol", b.symbol, "qty", o.Remaining, "stop", o.Price)
	}
	b.sellStops.insert(o)
	return nil
}

// executeMarketBuy fills o against resting sells from the lowest price up.
// All-or-nothing: the full quantity must be coverable by both resting
// liquidity and the buyer's cash, otherwise the order is rejected with no
// state change. The walked cost is reserved before settlement so ExecuteBuy
// always draws from reserved cash.
func (b *OrderBook) executeMarketBuy(o *Order) error {
	need := o.Remaining
	cost := decimal.Zero
	for _, ask := range b.asks.orders {
		q := min64(need, ask.Remaining)
		cost = cost.Add(ask.Price.Mul(decimal.NewFromInt(q)))
		need -= q
		if need == 0 {
			break
		}
	}
	if need > 0 {
		return ErrInsufficientLiquidity
	}
	if !o.Owner.ReserveCash(cost) {
		return ErrInsufficientFunds
	}

	for o.Remaining > 0 {
		ask := b.asks.first()
		q := min64(o.Remaining, ask.Remaining)
		price := ask.Price

		o.Owner.ExecuteBuy(b.symbol, q, price)
		ask.Owner.ExecuteSell(b.symbol, q, price)

		o.Remaining -= q
		ask.Remaining -= q
		if ask.Remaining == 0 {
			b.asks.remove(ask)
		}
		b.recordTrade(price, q, o.ID, ask.ID)
	}
	return nil
}

// executeMarketSell fills o against resting buys from the highest price
// down. The liquidity check is on share count only; selling more than the
// available stock opens or extends a short position.
func (b *OrderBook) executeMarketSell(o *Order) error {
	if b.bids.totalQuantity() < o.Remaining {
		return ErrInsufficientLiquidity
	}
	if !o.holdsStock && o.Owner.AvailableStock(b.symbol) < o.Remaining {
		o.shortFlagged = true
		b.log.Infow("market_sell_going_short", "id", o.ID, "symbol", b.symbol, "qty", o.Remaining)
	}

	for o.Remaining > 0 {
		bid := b.bids.first()
		q := min64(o.Remaining, bid.Remaining)
		price := bid.Price

		o.Owner.ExecuteSell(b.symbol, q, price)
		bid.Owner.ExecuteBuy(b.symbol, q, price)

		o.Remaining -= q
		bid.Remaining -= q
		if bid.Remaining == 0 {
			b.bids.remove(bid)
		}
		b.recordTrade(price, q, bid.ID, o.ID)
	}
	return nil
}

// match crosses the book while the best bid price reaches the best ask
// price. The execution price is the resting sell's limit price; a buy that
// fills below its own limit gets the difference released from its cash
// reservation, so reserved cash stays exactly remaining*limit per bid.
func (b *OrderBook) match() {
	for b.bids.len() > 0 && b.asks.len() > 0 {
		buy := b.bids.first()
		sell := b.asks.first()
		if buy.Price.LessThan(sell.Price) {
			break
		}

		q := min64(buy.Remaining, sell.Remaining)
		price := sell.Price

		buy.Owner.ExecuteBuy(b.symbol, q, price)
		if buy.Price.GreaterThan(price) {
			buy.Owner.ReleaseReservedCash(buy.Price.Sub(price).Mul(decimal.NewFromInt(q)))
		}
		sell.Owner.ExecuteSell(b.symbol, q, price)

		buy.Remaining -= q
		sell.Remaining -= q
		if buy.Remaining == 0 {
			b.bids.remove(buy)
		}
		if sell.Remaining == 0 {
			b.asks.remove(sell)
		}
		b.recordTrade(price, q, buy.ID, sell.ID)
	}
}

// recordTrade updates price state and feeds the aggregator; called exactly
// once per fill. Stop evaluation happens after the surrounding pass reaches
// quiescence, not here, so a pass never has its queues mutated mid-walk.
func (b *OrderBook) recordTrade(price decimal.Decimal, qty int64, buyID, sellID uint64) {
	b.currentPrice = price
	b.lastTradePrice = price
	ts := b.clock.Now()
	b.agg.OnTrade(b.symbol, price, qty, ts)
	if b.pub != nil {
		b.pub.PublishTrade(Trade{
			Symbol:      b.symbol,
			Price:       price,
			Quantity:    qty,
			BuyOrderID:  buyID,
			SellOrderID: sellID,
			ExecutedAt:  ts,
		})
	}
}

// triggerStops fires pending stops against the current price, resubmitting
// each as a market order, until no stop triggers. Each round strictly
// removes orders from a finite pending set, so cascades terminate. Runs
// inside the submission's critical section.
func (b *OrderBook) triggerStops() {
	for {
		var fired []*Order
		for {
			o := b.buyStops.first()
			if o == nil || b.currentPrice.LessThan(o.Price) {
				break
			}
			b.buyStops.remove(o)
			fired = append(fired, o)
		}
		for {
			o := b.sellStops.first()
			if o == nil || b.currentPrice.GreaterThan(o.Price) {
				break
			}
			b.sellStops.remove(o)
			fired = append(fired, o)
		}
		if len(fired) == 0 {
			return
		}

		for _, stop := range fired {
			mo := &Order{
				ID:           b.seq.Next(),
				Symbol:       b.symbol,
				Side:         stop.Side,
				Style:        Market,
				Quantity:     stop.Remaining,
				Remaining:    stop.Remaining,
				Price:        decimal.Zero,
				Owner:        stop.Owner,
				CreatedAt:    b.clock.Now(),
				holdsStock:   stop.holdsStock,
				shortFlagged: stop.shortFlagged,
			}
			b.log.Infow("stop_triggered", "stop_id", stop.ID, "side", stop.Side.String(),
				"qty", stop.Remaining, "trigger", stop.Price, "price", b.currentPrice)

			var err error
			if stop.Side == Buy {
				err = b.executeMarketBuy(mo)
			} else {
				err = b.executeMarketSell(mo)
				if err != nil && stop.holdsStock {
					stop.Owner.ReleaseReservedStock(b.symbol, stop.Remaining)
				}
			}
			if err != nil {
				b.log.Warnw("stop_execution_rejected", "stop_id", stop.ID, "err", err)
			}
		}
	}
}

// CancelBuyOrder removes a resting or pending buy by id, releasing any cash
// reservation. Unknown ids report not-found rather than an error.
func (b *OrderBook) CancelBuyOrder(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if o := b.bids.removeByID(id); o != nil {
		o.Owner.ReleaseReservedCash(o.Price.Mul(decimal.NewFromInt(o.Remaining)))
		return true
	}
	// Buy stops hold no reservation.
	return b.buyStops.removeByID(id) != nil
}

// CancelSellOrder removes a resting or pending sell by id, releasing its
// stock reservation if it held one.
func (b *OrderBook) CancelSellOrder(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if o := b.asks.removeByID(id); o != nil {
		if o.holdsStock {
			o.Owner.ReleaseReservedStock(b.symbol, o.Remaining)
		}
		return true
	}
	if o := b.sellStops.removeByID(id); o != nil {
		if o.holdsStock {
			o.Owner.ReleaseReservedStock(b.symbol, o.Remaining)
		}
		return true
	}
	return false
}

func (b *OrderBook) Symbol() string { return b.symbol }

func (b *OrderBook) CurrentPrice() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentPrice
}

func (b *OrderBook) LastTradePrice() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastTradePrice
}

// BestBid returns the highest resting buy price.
func (b *OrderBook) BestBid() (decimal.Decimal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o := b.bids.first(); o != nil {
		return o.Price, true
	}
	return decimal.Zero, false
}

// BestAsk returns the lowest resting sell price.
func (b *OrderBook) BestAsk() (decimal.Decimal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o := b.asks.first(); o != nil {
		return o.Price, true
	}
	return decimal.Zero, false
}

// Spread is best ask minus best bid; false when either side is empty.
func (b *OrderBook) Spread() (decimal.Decimal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bid := b.bids.first()
	ask := b.asks.first()
	if bid == nil || ask == nil {
		return decimal.Zero, false
	}
	return ask.Price.Sub(bid.Price), true
}

// Level is aggregate resting quantity at one price.
type Level struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

// DepthSnapshot is a consistent view of the top N price levels per side,
// bids best-first and asks best-first.
type DepthSnapshot struct {
	Symbol string  `json:"symbol"`
	Bids   []Level `json:"bids"`
	Asks   []Level `json:"asks"`
}

func (b *OrderBook) Depth(levels int) DepthSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return DepthSnapshot{
		Symbol: b.symbol,
		Bids:   aggregateLevels(b.bids, levels),
		Asks:   aggregateLevels(b.asks, levels),
	}
}

func aggregateLevels(q *queue, levels int) []Level {
	var out []Level
	for _, o := range q.orders {
		if n := len(out); n > 0 && out[n-1].Price.Equal(o.Price) {
			out[n-1].Quantity += o.Remaining
			continue
		}
		if len(out) == levels {
			break
		}
		out = append(out, Level{Price: o.Price, Quantity: o.Remaining})
	}
	return out
}

// Stats counts resting and pending orders.
type Stats struct {
	Symbol    string `json:"symbol"`
	Bids      int    `json:"bids"`
	Asks      int    `json:"asks"`
	BuyStops  int    `json:"buy_stops"`
	SellStops int    `json:"sell_stops"`
}

func (b *OrderBook) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Symbol:    b.symbol,
		Bids:      b.bids.len(),
		Asks:      b.asks.len(),
		BuyStops:  b.buyStops.len(),
		SellStops: b.sellStops.len(),
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
