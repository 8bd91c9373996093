package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nysesim/nysesim/params"
	"github.com/nysesim/nysesim/pkg/api"
	"github.com/nysesim/nysesim/pkg/bots"
	"github.com/nysesim/nysesim/pkg/exchange/book"
	"github.com/nysesim/nysesim/pkg/exchange/candle"
	"github.com/nysesim/nysesim/pkg/exchange/feed"
	"github.com/nysesim/nysesim/pkg/util"
)

func main() {
	cfg, err := params.LoadFromEnv("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var logger *zap.Logger
	if cfg.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.LogFile)
	} else {
		logger, err = util.NewLogger()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	initialPrice, err := decimal.NewFromString(cfg.Market.InitialPrice)
	if err != nil {
		sugar.Fatalw("invalid_initial_price", "value", cfg.Market.InitialPrice, "err", err)
	}

	agg := candle.NewAggregator(cfg.Candles.Retention)
	bus := feed.NewBus()
	seq := &book.Sequence{}

	b := book.NewOrderBook(book.Config{
		Symbol:       cfg.Market.Symbol,
		InitialPrice: initialPrice,
		Aggregator:   agg,
		Sequence:     seq,
		Clock:        util.RealClock{},
		Logger:       sugar,
		Publisher:    bus,
	})
	sugar.Infow("book_created", "symbol", cfg.Market.Symbol, "initial_price", initialPrice)

	manager := bots.NewManager(b, sugar)
	if err := buildFleet(manager, cfg.Fleet); err != nil {
		sugar.Fatalw("fleet_config_invalid", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	manager.Start(ctx)

	server := api.NewServer(b, agg, bus, manager.Ledgers(), sugar)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx, cfg.Server.Addr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			sugar.Errorw("api_server_failed", "err", err)
		}
		stop()
	}

	manager.Stop()
	sugar.Infow("shutdown_complete", "symbol", cfg.Market.Symbol, "final_price", b.CurrentPrice())
}

func buildFleet(m *bots.Manager, fleet params.Fleet) error {
	for _, g := range fleet.Bots {
		cash, err := decimal.NewFromString(g.Cash)
		if err != nil {
			return fmt.Errorf("bot group %q: invalid cash %q", g.Kind, g.Cash)
		}
		for i := 1; i <= g.Count; i++ {
			s, err := newStrategy(g)
			if err != nil {
				return err
			}
			name := fmt.Sprintf("%s-%d", g.Kind, i)
			m.Add(name, cash, g.Interval(), s)
		}
	}
	return nil
}

func newStrategy(g params.BotGroup) (bots.Strategy, error) {
	switch g.Kind {
	case "market-maker":
		spread, err := decimal.NewFromString(g.Spread)
		if err != nil {
			return nil, fmt.Errorf("market-maker: invalid spread %q", g.Spread)
		}
		return &bots.MarketMaker{Spread: spread, Size: g.Size}, nil
	case "momentum":
		threshold, err := decimal.NewFromString(g.Threshold)
		if err != nil {
			return nil, fmt.Errorf("momentum: invalid threshold %q", g.Threshold)
		}
		return &bots.Momentum{Threshold: threshold, Size: g.Size}, nil
	case "mean-reversion":
		threshold, err := decimal.NewFromString(g.Threshold)
		if err != nil {
			return nil, fmt.Errorf("mean-reversion: invalid threshold %q", g.Threshold)
		}
		return &bots.MeanReversion{Threshold: threshold, Size: g.Size}, nil
	case "random":
		return &bots.Random{MaxSize: g.MaxSize}, nil
	case "scalper":
		return &bots.Scalper{Size: g.Size}, nil
	default:
		return nil, fmt.Errorf("unknown bot kind %q", g.Kind)
	}
}
