package bots

import (
	"github.com/shopspring/decimal"

	"github.com/nysesim/nysesim/pkg/exchange/book"
	"github.com/nysesim/nysesim/pkg/exchange/ledger"
)

var (
	oneCent   = decimal.NewFromFloat(0.01)
	minSpread = decimal.NewFromFloat(0.02)
)

// Scalper works the spread: when it is wider than two cents, it quotes one
// cent inside both the best bid and the best ask.
type Scalper struct {
	Size int64
}

func (s *Scalper) Name() string { return "scalper" }

func (s *Scalper) OnTick(b *book.OrderBook, l *ledger.Ledger) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return
	}
	if ask.Sub(bid).LessThanOrEqual(minSpread) {
		return
	}

	buyPrice := bid.Add(oneCent)
	if l.Cash().GreaterThanOrEqual(buyPrice.Mul(decimal.NewFromInt(s.Size))) {
		o := b.NewOrder(book.Buy, book.Limit, s.Size, buyPrice, l)
		_ = b.PlaceBuyOrder(o)
	}

	sellPrice := ask.Sub(oneCent)
	o := b.NewOrder(book.Sell, book.Limit, s.Size, sellPrice, l)
	_ = b.PlaceSellOrder(o)
}
