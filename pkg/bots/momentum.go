package bots

import (
	"github.com/shopspring/decimal"

	"github.com/nysesim/nysesim/pkg/exchange/book"
	"github.com/nysesim/nysesim/pkg/exchange/ledger"
)

// Momentum chases price movement: it market-buys when the relative price
// change since its last tick exceeds Threshold, and unwinds on the mirror
// move. Holds at most one position at a time.
type Momentum struct {
	Threshold decimal.Decimal
	Size      int64

	lastPrice   decimal.Decimal
	hasPosition bool
}

func (m *Momentum) Name() string { return "momentum" }

func (m *Momentum) OnTick(b *book.OrderBook, l *ledger.Ledger) {
	price := b.CurrentPrice()
	if m.lastPrice.IsZero() {
		m.lastPrice = price
		return
	}
	change := price.Sub(m.lastPrice).Div(m.lastPrice)
	size := decimal.NewFromInt(m.Size)

	switch {
	case change.GreaterThan(m.Threshold) && !m.hasPosition &&
		l.Cash().GreaterThanOrEqual(price.Mul(size)):
		o := b.NewOrder(book.Buy, book.Market, m.Size, decimal.Zero, l)
		if b.PlaceBuyOrder(o) == nil {
			m.hasPosition = true
		}
	case change.LessThan(m.Threshold.Neg()) && m.hasPosition:
		o := b.NewOrder(book.Sell, book.Market, m.Size, decimal.Zero, l)
		if b.PlaceSellOrder(o) == nil {
			m.hasPosition = false
		}
	}
	m.lastPrice = price
}
