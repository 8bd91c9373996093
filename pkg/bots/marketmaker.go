package bots

import (
	"github.com/shopspring/decimal"

	"github.com/nysesim/nysesim/pkg/exchange/book"
	"github.com/nysesim/nysesim/pkg/exchange/ledger"
)

var two = decimal.NewFromInt(2)

// MarketMaker provides liquidity by quoting both sides around the current
// price. Every tick it pulls its previous quotes and re-quotes at
// current ± spread/2.
type MarketMaker struct {
	Spread decimal.Decimal
	Size   int64

	active []uint64
}

func (m *MarketMaker) Name() string { return "market-maker" }

func (m *MarketMaker) OnTick(b *book.OrderBook, l *ledger.Ledger) {
	for _, id := range m.active {
		if !b.CancelBuyOrder(id) {
			b.CancelSellOrder(id)
		}
	}
	m.active = m.active[:0]

	price := b.CurrentPrice()
	half := m.Spread.Div(two)
	size := decimal.NewFromInt(m.Size)

	buyPrice := price.Sub(half)
	if buyPrice.IsPositive() && l.Cash().GreaterThanOrEqual(buyPrice.Mul(size)) {
		o := b.NewOrder(book.Buy, book.Limit, m.Size, buyPrice, l)
		if b.PlaceBuyOrder(o) == nil {
			m.active = append(m.active, o.ID)
		}
	}

	// The ask side quotes regardless of inventory; an unheld sell is just a
	// short attempt.
	sellPrice := price.Add(half)
	o := b.NewOrder(book.Sell, book.Limit, m.Size, sellPrice, l)
	if b.PlaceSellOrder(o) == nil {
		m.active = append(m.active, o.ID)
	}
}
