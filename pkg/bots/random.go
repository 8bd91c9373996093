package bots

import (
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/nysesim/nysesim/pkg/exchange/book"
	"github.com/nysesim/nysesim/pkg/exchange/ledger"
)

// Random submits noise: limit orders of random size at up to ±5% of the
// current price, coin-flipping the side.
type Random struct {
	MaxSize int64
	Rand    *rand.Rand
}

func (r *Random) Name() string { return "random" }

func (r *Random) OnTick(b *book.OrderBook, l *ledger.Ledger) {
	if r.Rand == nil {
		r.Rand = rand.New(rand.NewSource(rand.Int63()))
	}
	price := b.CurrentPrice()
	qty := r.Rand.Int63n(r.MaxSize) + 1
	variation := decimal.NewFromFloat(0.95 + r.Rand.Float64()*0.1)
	orderPrice := price.Mul(variation).Round(2)

	if r.Rand.Intn(2) == 0 {
		if l.Cash().GreaterThanOrEqual(orderPrice.Mul(decimal.NewFromInt(qty))) {
			o := b.NewOrder(book.Buy, book.Limit, qty, orderPrice, l)
			_ = b.PlaceBuyOrder(o)
		}
		return
	}
	o := b.NewOrder(book.Sell, book.Limit, qty, orderPrice, l)
	_ = b.PlaceSellOrder(o)
}
