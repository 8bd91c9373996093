package feed

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nysesim/nysesim/pkg/exchange/book"
)

func TestSubscriberReceivesTrades(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()

	trade := book.Trade{
		Symbol:      "AAPL",
		Price:       decimal.NewFromInt(100),
		Quantity:    5,
		BuyOrderID:  1,
		SellOrderID: 2,
		ExecutedAt:  time.Now(),
	}
	bus.PublishTrade(trade)

	select {
	case got := <-ch:
		if got.Symbol != "AAPL" || got.Quantity != 5 {
			t.Errorf("received %+v, want the published trade", got)
		}
	default:
		t.Fatal("subscriber did not receive the trade")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	if _, open := <-ch; open {
		t.Fatal("channel should be closed after unsubscribe")
	}

	// Idempotent, and publishing to no subscribers is a no-op.
	bus.Unsubscribe(ch)
	bus.PublishTrade(book.Trade{Symbol: "AAPL"})
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			bus.PublishTrade(book.Trade{Symbol: "AAPL", Quantity: int64(i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	if len(ch) != cap(ch) {
		t.Errorf("buffer = %d/%d, expected it to fill before drops began", len(ch), cap(ch))
	}
}
