package ledger

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger is one participant's custody state: cash, reserved cash, positions
// and reserved stock. It knows nothing about the order book; the book drives
// it through the reserve/release/execute operations below. All operations are
// atomic with respect to concurrent settlement.
//
// Reservation discipline: cash never includes reserved funds, and a long
// position's reserved stock never exceeds its quantity. Expected business
// failures (not enough cash, not enough stock) are reported as false returns;
// arithmetic that would drive a balance negative indicates a book bug and
// panics.
type Ledger struct {
	mu sync.Mutex

	id   string
	name string

	cash         decimal.Decimal
	reservedCash decimal.Decimal

	positions     map[string]Position
	reservedStock map[string]int64
}

func New(name string, initialCash decimal.Decimal) *Ledger {
	if initialCash.IsNegative() {
		panic("ledger: negative initial cash")
	}
	return &Ledger{
		id:            uuid.NewString(),
		name:          name,
		cash:          initialCash,
		reservedCash:  decimal.Zero,
		positions:     make(map[string]Position),
		reservedStock: make(map[string]int64),
	}
}

func (l *Ledger) ID() string   { return l.id }
func (l *Ledger) Name() string { return l.name }

// ReserveCash moves amount from cash to reservedCash iff cash covers it.
func (l *Ledger) ReserveCash(amount decimal.Decimal) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cash.LessThan(amount) {
		return false
	}
	l.cash = l.cash.Sub(amount)
	l.reservedCash = l.reservedCash.Add(amount)
	return true
}

// ReleaseReservedCash moves amount back from reservedCash to cash. The caller
// guarantees amount does not exceed the outstanding reservation.
func (l *Ledger) ReleaseReservedCash(amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reservedCash = l.reservedCash.Sub(amount)
	l.cash = l.cash.Add(amount)
	if l.reservedCash.IsNegative() {
		panic(fmt.Sprintf("ledger %s: reserved cash went negative: %s", l.name, l.reservedCash))
	}
}

// ReserveStock sets qty shares of a long position aside for a resting sell.
// Fails for short positions and unheld symbols.
func (l *Ledger) ReserveStock(symbol string, qty int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[symbol]
	if !ok || pos.Direction != Long {
		return false
	}
	if pos.Quantity-l.reservedStock[symbol] < qty {
		return false
	}
	l.reservedStock[symbol] += qty
	return true
}

// ReleaseReservedStock hands back up to qty reserved shares, floor zero.
func (l *Ledger) ReleaseReservedStock(symbol string, qty int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releaseReservedStockLocked(symbol, qty)
}

func (l *Ledger) releaseReservedStockLocked(symbol string, qty int64) {
	remaining := l.reservedStock[symbol] - qty
	if remaining <= 0 {
		delete(l.reservedStock, symbol)
		return
	}
	l.reservedStock[symbol] = remaining
}

// AvailableStock reports unreserved long quantity; zero for shorts and
// unheld symbols.
func (l *Ledger) AvailableStock(symbol string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[symbol]
	if !ok || pos.Direction != Long {
		return 0
	}
	return pos.Quantity - l.reservedStock[symbol]
}

// ExecuteBuy settles a buy fill of qty shares at price. The cost is drawn
// from reserved cash: limit buys reserved at placement, market buys reserve
// the walked cost immediately before settlement.
func (l *Ledger) ExecuteBuy(symbol string, qty int64, price decimal.Decimal) {
	if qty <= 0 {
		panic("ledger: buy of non-positive quantity")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cost := decimal.NewFromInt(qty).Mul(price)
	l.reservedCash = l.reservedCash.Sub(cost)
	if l.reservedCash.IsNegative() {
		panic(fmt.Sprintf("ledger %s: buy settled without reservation: %s", l.name, l.reservedCash))
	}

	pos, ok := l.positions[symbol]
	switch {
	case !ok:
		l.positions[symbol] = Position{Symbol: symbol, Quantity: qty, AvgPrice: price, Direction: Long}

	case pos.Direction == Short && pos.Quantity <= qty:
		// Cover the whole short; realize P&L, open a long with any excess.
		pnl := decimal.NewFromInt(pos.Quantity).Mul(pos.AvgPrice.Sub(price))
		l.cash = l.cash.Add(pnl)
		if rest := qty - pos.Quantity; rest > 0 {
			l.positions[symbol] = Position{Symbol: symbol, Quantity: rest, AvgPrice: price, Direction: Long}
		} else {
			delete(l.positions, symbol)
		}

	case pos.Direction == Short:
		// Partial cover; entry price unchanged.
		pnl := decimal.NewFromInt(qty).Mul(pos.AvgPrice.Sub(price))
		l.cash = l.cash.Add(pnl)
		pos.Quantity -= qty
		l.positions[symbol] = pos

	default: // add to long
		pos.AvgPrice = averageInto(pos.Quantity, pos.AvgPrice, qty, price)
		pos.Quantity += qty
		l.positions[symbol] = pos
	}
}

// ExecuteSell settles a sell fill of qty shares at price. Proceeds are
// credited unconditionally, which covers both normal sales and short-sale
// proceeds. Any stock reserved for the order is released as it fills.
func (l *Ledger) ExecuteSell(symbol string, qty int64, price decimal.Decimal) {
	if qty <= 0 {
		panic("ledger: sell of non-positive quantity")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if reserved := l.reservedStock[symbol]; reserved > 0 {
		if reserved < qty {
			l.releaseReservedStockLocked(symbol, reserved)
		} else {
			l.releaseReservedStockLocked(symbol, qty)
		}
	}

	l.cash = l.cash.Add(decimal.NewFromInt(qty).Mul(price))

	pos, ok := l.positions[symbol]
	switch {
	case !ok:
		l.positions[symbol] = Position{Symbol: symbol, Quantity: qty, AvgPrice: price, Direction: Short}

	case pos.Direction == Long && pos.Quantity == qty:
		delete(l.positions, symbol)

	case pos.Direction == Long && pos.Quantity > qty:
		pos.Quantity -= qty
		l.positions[symbol] = pos

	case pos.Direction == Long:
		// Single sell flips long straight to short for the excess.
		l.positions[symbol] = Position{Symbol: symbol, Quantity: qty - pos.Quantity, AvgPrice: price, Direction: Short}

	default: // add to short
		pos.AvgPrice = averageInto(pos.Quantity, pos.AvgPrice, qty, price)
		pos.Quantity += qty
		l.positions[symbol] = pos
	}
}

func (l *Ledger) Cash() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

func (l *Ledger) ReservedCash() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reservedCash
}

func (l *Ledger) TotalCash() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash.Add(l.reservedCash)
}

// Holdings returns a snapshot copy of all positions.
func (l *Ledger) Holdings() map[string]Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]Position, len(l.positions))
	for sym, pos := range l.positions {
		out[sym] = pos
	}
	return out
}

// ReservedStock returns a snapshot copy of the reserved-stock map.
func (l *Ledger) ReservedStock() map[string]int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int64, len(l.reservedStock))
	for sym, qty := range l.reservedStock {
		out[sym] = qty
	}
	return out
}

// UnrealizedPnL marks the position in symbol against the given price; zero if
// no position is held.
func (l *Ledger) UnrealizedPnL(symbol string, mark decimal.Decimal) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[symbol]
	if !ok {
		return decimal.Zero
	}
	return pos.UnrealizedPnL(mark)
}

// PortfolioValue is total cash plus the mark-to-market value of every
// position with a known price. Longs are valued at qty*mark, shorts at
// qty*(entry-mark).
func (l *Ledger) PortfolioValue(marks map[string]decimal.Decimal) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := l.cash.Add(l.reservedCash)
	for sym, pos := range l.positions {
		mark, ok := marks[sym]
		if !ok {
			continue
		}
		qty := decimal.NewFromInt(pos.Quantity)
		if pos.Direction == Long {
			total = total.Add(qty.Mul(mark))
		} else {
			total = total.Add(qty.Mul(pos.AvgPrice.Sub(mark)))
		}
	}
	return total
}
