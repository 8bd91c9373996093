package ledger

import "github.com/shopspring/decimal"

// Direction encodes the sign of a position; Quantity is always positive.
type Direction int8

const (
	Long Direction = iota
	Short
)

func (d Direction) String() string {
	if d == Short {
		return "short"
	}
	return "long"
}

// Position is one holding in one symbol. A fully closed position is removed
// from the ledger rather than kept at zero quantity.
type Position struct {
	Symbol    string
	Quantity  int64 // > 0 always
	AvgPrice  decimal.Decimal
	Direction Direction
}

func (p Position) IsLong() bool  { return p.Direction == Long }
func (p Position) IsShort() bool { return p.Direction == Short }

// UnrealizedPnL marks the position against the given price.
// Long: qty*(mark-entry). Short: qty*(entry-mark).
func (p Position) UnrealizedPnL(mark decimal.Decimal) decimal.Decimal {
	qty := decimal.NewFromInt(p.Quantity)
	if p.Direction == Long {
		return qty.Mul(mark.Sub(p.AvgPrice))
	}
	return qty.Mul(p.AvgPrice.Sub(mark))
}

// averageInto folds a fill into the position's entry price:
// newAvg = (oldQty*oldPrice + qty*price) / (oldQty+qty).
func averageInto(oldQty int64, oldPrice decimal.Decimal, qty int64, price decimal.Decimal) decimal.Decimal {
	oldNotional := decimal.NewFromInt(oldQty).Mul(oldPrice)
	addNotional := decimal.NewFromInt(qty).Mul(price)
	return oldNotional.Add(addNotional).Div(decimal.NewFromInt(oldQty + qty))
}
