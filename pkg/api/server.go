package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nysesim/nysesim/pkg/exchange/book"
	"github.com/nysesim/nysesim/pkg/exchange/candle"
	"github.com/nysesim/nysesim/pkg/exchange/feed"
	"github.com/nysesim/nysesim/pkg/exchange/ledger"
)

// Server exposes the read-only market-data surface: prices, depth, candles,
// ledger snapshots over REST, and the live trade tape over websocket. Order
// entry stays in-process.
type Server struct {
	book    *book.OrderBook
	agg     *candle.Aggregator
	bus     *feed.Bus
	ledgers []*ledger.Ledger

	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
	srv    *http.Server
}

func NewServer(b *book.OrderBook, agg *candle.Aggregator, bus *feed.Bus, ledgers []*ledger.Ledger, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		book:    b,
		agg:     agg,
		bus:     bus,
		ledgers: ledgers,
		router:  mux.NewRouter(),
		hub:     NewHub(log),
		log:     log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/market", s.handleMarket).Methods("GET")
	api.HandleFunc("/market/depth", s.handleDepth).Methods("GET")
	api.HandleFunc("/market/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/market/candles/{timeframe}", s.handleCandles).Methods("GET")

	api.HandleFunc("/ledgers", s.handleLedgers).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start serves until ctx is cancelled, then shuts down gracefully. The
// websocket hub relays every trade from the feed bus to its clients.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)
	go s.relayTrades(ctx)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	s.srv = &http.Server{Addr: addr, Handler: c.Handler(s.router)}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	s.log.Infow("api_listening", "addr", addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) relayTrades(ctx context.Context) {
	trades := s.bus.Subscribe()
	defer s.bus.Unsubscribe(trades)
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-trades:
			if !ok {
				return
			}
			s.hub.Broadcast(map[string]any{"type": "trade", "data": t})
		}
	}
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	summary := MarketSummary{
		Symbol:         s.book.Symbol(),
		CurrentPrice:   s.book.CurrentPrice(),
		LastTradePrice: s.book.LastTradePrice(),
	}
	if bid, ok := s.book.BestBid(); ok {
		summary.BestBid = &bid
	}
	if ask, ok := s.book.BestAsk(); ok {
		summary.BestAsk = &ask
	}
	if spread, ok := s.book.Spread(); ok {
		summary.Spread = &spread
	}
	respondJSON(w, summary)
}

func (s *Server) handleDepth(w http.ResponseWriter, r *http.Request) {
	levels := 10
	if raw := r.URL.Query().Get("levels"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid levels", raw)
			return
		}
		levels = n
	}
	respondJSON(w, s.book.Depth(levels))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.book.Stats())
}

func (s *Server) handleCandles(w http.ResponseWriter, r *http.Request) {
	tf, ok := candle.ParseTimeframe(mux.Vars(r)["timeframe"])
	if !ok {
		respondError(w, http.StatusBadRequest, "unknown timeframe", mux.Vars(r)["timeframe"])
		return
	}
	symbol := s.book.Symbol()
	q := r.URL.Query()

	var candles []candle.Candle
	if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
		fromSec, err1 := strconv.ParseInt(from, 10, 64)
		toSec, err2 := strconv.ParseInt(to, 10, 64)
		if err1 != nil || err2 != nil || toSec < fromSec {
			respondError(w, http.StatusBadRequest, "invalid range", "")
			return
		}
		candles = s.agg.Range(symbol, tf, time.Unix(fromSec, 0), time.Unix(toSec, 0))
	} else {
		limit := 100
		if raw := q.Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				respondError(w, http.StatusBadRequest, "invalid limit", raw)
				return
			}
			limit = n
		}
		candles = s.agg.Recent(symbol, tf, limit)
	}

	out := make([]CandleInfo, len(candles))
	for i, c := range candles {
		out[i] = CandleInfo{
			Start:  c.Start.Unix(),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		}
	}
	respondJSON(w, out)
}

func (s *Server) handleLedgers(w http.ResponseWriter, r *http.Request) {
	marks := map[string]decimal.Decimal{s.book.Symbol(): s.book.CurrentPrice()}
	out := make([]LedgerInfo, len(s.ledgers))
	for i, l := range s.ledgers {
		out[i] = ledgerInfo(l, marks)
	}
	respondJSON(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg, Details: details})
}
