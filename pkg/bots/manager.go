// Package bots contains the strategy fleet that drives the simulated
// market. Each strategy is one implementation of the Strategy interface;
// the Manager owns a ledger per bot and ticks every strategy on its own
// goroutine until the run context is cancelled.
package bots

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nysesim/nysesim/pkg/exchange/book"
	"github.com/nysesim/nysesim/pkg/exchange/ledger"
)

// Strategy is the single capability every bot variant implements. OnTick
// inspects the book and submits orders against the bot's own ledger;
// rejections are expected outcomes and simply dropped.
type Strategy interface {
	Name() string
	OnTick(b *book.OrderBook, l *ledger.Ledger)
}

type runner struct {
	ledger   *ledger.Ledger
	strategy Strategy
	interval time.Duration
}

type Manager struct {
	book *book.OrderBook
	log  *zap.SugaredLogger

	mu      sync.Mutex
	runners []*runner
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewManager(b *book.OrderBook, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{book: b, log: log}
}

// Add registers a strategy with its own freshly funded ledger. Must be
// called before Start.
func (m *Manager) Add(name string, initialCash decimal.Decimal, interval time.Duration, s Strategy) *ledger.Ledger {
	l := ledger.New(name, initialCash)
	m.mu.Lock()
	m.runners = append(m.runners, &runner{ledger: l, strategy: s, interval: interval})
	m.mu.Unlock()
	m.log.Infow("bot_added", "name", name, "strategy", s.Name(), "cash", initialCash, "interval", interval)
	return l
}

// Ledgers returns the fleet's ledgers for reporting.
func (m *Manager) Ledgers() []*ledger.Ledger {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ledger.Ledger, len(m.runners))
	for i, r := range m.runners {
		out[i] = r.ledger
	}
	return out
}

// Start launches one goroutine per bot. Each ticks immediately and then on
// its interval until ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	runners := make([]*runner, len(m.runners))
	copy(runners, m.runners)
	m.mu.Unlock()

	for _, r := range runners {
		m.wg.Add(1)
		go func(r *runner) {
			defer m.wg.Done()
			ticker := time.NewTicker(r.interval)
			defer ticker.Stop()
			r.strategy.OnTick(m.book, r.ledger)
			for {
				select {
				case <-runCtx.Done():
					return
				case <-ticker.C:
					r.strategy.OnTick(m.book, r.ledger)
				}
			}
		}(r)
	}
	m.log.Infow("bots_started", "count", len(runners))
}

// Stop cancels all bots and waits for them to finish their current tick.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.log.Info("bots_stopped")
}
