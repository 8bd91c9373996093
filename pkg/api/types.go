package api

import (
	"github.com/shopspring/decimal"

	"github.com/nysesim/nysesim/pkg/exchange/ledger"
)

// MarketSummary is the top-of-book view of one symbol.
type MarketSummary struct {
	Symbol         string           `json:"symbol"`
	CurrentPrice   decimal.Decimal  `json:"current_price"`
	LastTradePrice decimal.Decimal  `json:"last_trade_price"`
	BestBid        *decimal.Decimal `json:"best_bid,omitempty"`
	BestAsk        *decimal.Decimal `json:"best_ask,omitempty"`
	Spread         *decimal.Decimal `json:"spread,omitempty"`
}

// CandleInfo is one OHLCV bucket in API form.
type CandleInfo struct {
	Start  int64           `json:"start"` // unix seconds, bucket-aligned
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// PositionInfo is one ledger position with its mark-to-market P&L.
type PositionInfo struct {
	Symbol        string          `json:"symbol"`
	Quantity      int64           `json:"quantity"`
	AvgPrice      decimal.Decimal `json:"avg_price"`
	Direction     string          `json:"direction"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// LedgerInfo is a reporting snapshot of one participant.
type LedgerInfo struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Cash           decimal.Decimal  `json:"cash"`
	ReservedCash   decimal.Decimal  `json:"reserved_cash"`
	TotalCash      decimal.Decimal  `json:"total_cash"`
	Positions      []PositionInfo   `json:"positions"`
	ReservedStock  map[string]int64 `json:"reserved_stock"`
	PortfolioValue decimal.Decimal  `json:"portfolio_value"`
}

func ledgerInfo(l *ledger.Ledger, marks map[string]decimal.Decimal) LedgerInfo {
	holdings := l.Holdings()
	positions := make([]PositionInfo, 0, len(holdings))
	for sym, pos := range holdings {
		mark, ok := marks[sym]
		if !ok {
			mark = pos.AvgPrice
		}
		positions = append(positions, PositionInfo{
			Symbol:        sym,
			Quantity:      pos.Quantity,
			AvgPrice:      pos.AvgPrice,
			Direction:     pos.Direction.String(),
			UnrealizedPnL: pos.UnrealizedPnL(mark),
		})
	}
	return LedgerInfo{
		ID:             l.ID(),
		Name:           l.Name(),
		Cash:           l.Cash(),
		ReservedCash:   l.ReservedCash(),
		TotalCash:      l.TotalCash(),
		Positions:      positions,
		ReservedStock:  l.ReservedStock(),
		PortfolioValue: l.PortfolioValue(marks),
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
