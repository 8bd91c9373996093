package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestReserveCash(t *testing.T) {
	l := New("alice", d("1000"))

	if !l.ReserveCash(d("400")) {
		t.Fatal("reserve within balance should succeed")
	}
	if got := l.Cash(); !got.Equal(d("600")) {
		t.Errorf("cash = %s, want 600", got)
	}
	if got := l.ReservedCash(); !got.Equal(d("400")) {
		t.Errorf("reserved = %s, want 400", got)
	}

	if l.ReserveCash(d("601")) {
		t.Fatal("reserve beyond balance should fail")
	}
	if got := l.Cash(); !got.Equal(d("600")) {
		t.Errorf("failed reserve mutated cash: %s", got)
	}

	l.ReleaseReservedCash(d("400"))
	if got, want := l.Cash(), d("1000"); !got.Equal(want) {
		t.Errorf("cash after release = %s, want %s", got, want)
	}
	if got := l.ReservedCash(); !got.IsZero() {
		t.Errorf("reserved after release = %s, want 0", got)
	}
}

func TestReserveStock(t *testing.T) {
	l := New("bob", d("10000"))

	if l.ReserveStock("AAPL", 1) {
		t.Fatal("reserve with no position should fail")
	}

	// Long 10 AAPL at 100.
	l.ReserveCash(d("1000"))
	l.ExecuteBuy("AAPL", 10, d("100"))

	if !l.ReserveStock("AAPL", 6) {
		t.Fatal("reserve within holding should succeed")
	}
	if got := l.AvailableStock("AAPL"); got != 4 {
		t.Errorf("available = %d, want 4", got)
	}
	if l.ReserveStock("AAPL", 5) {
		t.Fatal("reserve beyond available should fail")
	}

	l.ReleaseReservedStock("AAPL", 6)
	if got := l.AvailableStock("AAPL"); got != 10 {
		t.Errorf("available after release = %d, want 10", got)
	}
	if rs := l.ReservedStock(); len(rs) != 0 {
		t.Errorf("reserved stock map should be empty, got %v", rs)
	}
}

func TestReserveStockNeverOnShort(t *testing.T) {
	l := New("carol", d("1000"))
	l.ExecuteSell("AAPL", 5, d("100")) // opens a short

	if l.ReserveStock("AAPL", 1) {
		t.Fatal("short position must not be reservable")
	}
	if got := l.AvailableStock("AAPL"); got != 0 {
		t.Errorf("available on short = %d, want 0", got)
	}
}

func TestExecuteBuyAveragesLong(t *testing.T) {
	l := New("dave", d("10000"))

	l.ReserveCash(d("1000"))
	l.ExecuteBuy("AAPL", 10, d("100"))
	l.ReserveCash(d("1200"))
	l.ExecuteBuy("AAPL", 10, d("120"))

	pos := l.Holdings()["AAPL"]
	if pos.Quantity != 20 || pos.Direction != Long {
		t.Fatalf("position = %+v, want long 20", pos)
	}
	if !pos.AvgPrice.Equal(d("110")) {
		t.Errorf("avg price = %s, want 110", pos.AvgPrice)
	}
	if got := l.Cash(); !got.Equal(d("7800")) {
		t.Errorf("cash = %s, want 7800", got)
	}
}

func TestExecuteBuyCoversShort(t *testing.T) {
	l := New("erin", d("1000"))
	l.ExecuteSell("AAPL", 10, d("100")) // short 10 @ 100, cash 2000

	// Partial cover at 90: P&L 5*(100-90)=50, short shrinks, entry unchanged.
	l.ReserveCash(d("450"))
	l.ExecuteBuy("AAPL", 5, d("90"))
	pos := l.Holdings()["AAPL"]
	if pos.Quantity != 5 || pos.Direction != Short || !pos.AvgPrice.Equal(d("100")) {
		t.Fatalf("after partial cover: %+v, want short 5 @ 100", pos)
	}
	if got := l.Cash(); !got.Equal(d("1600")) {
		t.Errorf("cash = %s, want 1600 (2000 - 450 reserved + 50 pnl)", got)
	}

	// Cover the rest and go long 3 at 95.
	l.ReserveCash(d("760"))
	l.ExecuteBuy("AAPL", 8, d("95"))
	pos = l.Holdings()["AAPL"]
	if pos.Quantity != 3 || pos.Direction != Long || !pos.AvgPrice.Equal(d("95")) {
		t.Fatalf("after flip: %+v, want long 3 @ 95", pos)
	}
}

func TestExecuteSellFlipsLongToShort(t *testing.T) {
	l := New("frank", d("10000"))
	l.ReserveCash(d("1000"))
	l.ExecuteBuy("AAPL", 10, d("100"))
	cashBefore := l.Cash()

	l.ExecuteSell("AAPL", 15, d("105"))

	pos, ok := l.Holdings()["AAPL"]
	if !ok || pos.Direction != Short {
		t.Fatalf("expected short after flip, got %+v", pos)
	}
	if pos.Quantity != 5 || !pos.AvgPrice.Equal(d("105")) {
		t.Errorf("short = %d @ %s, want 5 @ 105", pos.Quantity, pos.AvgPrice)
	}
	if got, want := l.Cash(), cashBefore.Add(d("1575")); !got.Equal(want) {
		t.Errorf("cash = %s, want %s (proceeds 15*105)", got, want)
	}
}

func TestExecuteSellRemovesClosedPosition(t *testing.T) {
	l := New("gina", d("10000"))
	l.ReserveCash(d("500"))
	l.ExecuteBuy("AAPL", 5, d("100"))
	l.ExecuteSell("AAPL", 5, d("101"))

	if _, ok := l.Holdings()["AAPL"]; ok {
		t.Fatal("fully closed position should be removed, not kept at zero")
	}
}

func TestExecuteSellReleasesReservation(t *testing.T) {
	l := New("hank", d("10000"))
	l.ReserveCash(d("1000"))
	l.ExecuteBuy("AAPL", 10, d("100"))
	l.ReserveStock("AAPL", 10)

	l.ExecuteSell("AAPL", 4, d("110"))
	if got := l.ReservedStock()["AAPL"]; got != 6 {
		t.Errorf("reserved after partial fill = %d, want 6", got)
	}

	l.ExecuteSell("AAPL", 6, d("110"))
	if rs := l.ReservedStock(); len(rs) != 0 {
		t.Errorf("reservation should be fully released, got %v", rs)
	}
}

func TestUnrealizedPnL(t *testing.T) {
	l := New("iris", d("10000"))
	l.ReserveCash(d("1000"))
	l.ExecuteBuy("AAPL", 10, d("100"))

	if got := l.UnrealizedPnL("AAPL", d("110")); !got.Equal(d("100")) {
		t.Errorf("long pnl = %s, want 100", got)
	}

	s := New("jack", d("1000"))
	s.ExecuteSell("AAPL", 10, d("100"))
	if got := s.UnrealizedPnL("AAPL", d("90")); !got.Equal(d("100")) {
		t.Errorf("short pnl = %s, want 100", got)
	}
	if got := s.UnrealizedPnL("MSFT", d("90")); !got.IsZero() {
		t.Errorf("pnl for unheld symbol = %s, want 0", got)
	}
}

func TestPortfolioValue(t *testing.T) {
	l := New("kate", d("10000"))
	l.ReserveCash(d("1000"))
	l.ExecuteBuy("AAPL", 10, d("100"))
	marks := map[string]decimal.Decimal{"AAPL": d("110")}

	// 9000 cash + 10*110 marked value.
	if got, want := l.PortfolioValue(marks), d("10100"); !got.Equal(want) {
		t.Errorf("portfolio value = %s, want %s", got, want)
	}

	s := New("liam", d("1000"))
	s.ExecuteSell("AAPL", 10, d("100")) // cash 2000, short 10 @ 100
	// 2000 cash + 10*(100-110) short value.
	if got, want := s.PortfolioValue(marks), d("1900"); !got.Equal(want) {
		t.Errorf("short portfolio value = %s, want %s", got, want)
	}
}

func TestOverdrawnSettlementPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("settling a buy without a reservation must panic")
		}
	}()
	l := New("mallory", d("10000"))
	l.ExecuteBuy("AAPL", 10, d("100")) // nothing reserved
}
