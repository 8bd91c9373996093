// Package feed fans trade events out to in-process subscribers (the API
// websocket hub, recorders). Publishing never blocks: a subscriber that
// falls behind drops events rather than stalling settlement.
package feed

import (
	"sync"

	"github.com/nysesim/nysesim/pkg/exchange/book"
)

type Bus struct {
	mu   sync.RWMutex
	subs map[chan book.Trade]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[chan book.Trade]struct{})}
}

func (b *Bus) Subscribe() chan book.Trade {
	ch := make(chan book.Trade, 100)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Bus) Unsubscribe(ch chan book.Trade) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// PublishTrade implements book.TradePublisher.
func (b *Bus) PublishTrade(t book.Trade) {
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- t:
		default:
		}
	}
	b.mu.RUnlock()
}
