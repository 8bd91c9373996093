package bots

import (
	"github.com/shopspring/decimal"

	"github.com/nysesim/nysesim/pkg/exchange/book"
	"github.com/nysesim/nysesim/pkg/exchange/ledger"
)

const reversionWindow = 10

// MeanReversion trades against deviation from a moving-average baseline:
// buys when price sits below it by more than Threshold, sells held stock
// when above.
type MeanReversion struct {
	Threshold decimal.Decimal
	Size      int64

	history []decimal.Decimal
}

func (m *MeanReversion) Name() string { return "mean-reversion" }

func (m *MeanReversion) OnTick(b *book.OrderBook, l *ledger.Ledger) {
	price := b.CurrentPrice()

	m.history = append(m.history, price)
	if len(m.history) > reversionWindow {
		m.history = m.history[1:]
	}
	if len(m.history) < reversionWindow {
		return
	}

	baseline := decimal.Zero
	for _, p := range m.history {
		baseline = baseline.Add(p)
	}
	baseline = baseline.Div(decimal.NewFromInt(reversionWindow))

	deviation := price.Sub(baseline).Div(baseline)
	size := decimal.NewFromInt(m.Size)

	switch {
	case deviation.LessThan(m.Threshold.Neg()) &&
		l.Cash().GreaterThanOrEqual(price.Mul(size)):
		o := b.NewOrder(book.Buy, book.Market, m.Size, decimal.Zero, l)
		_ = b.PlaceBuyOrder(o)
	case deviation.GreaterThan(m.Threshold) && l.AvailableStock(b.Symbol()) >= m.Size:
		o := b.NewOrder(book.Sell, book.Market, m.Size, decimal.Zero, l)
		_ = b.PlaceSellOrder(o)
	}
}
