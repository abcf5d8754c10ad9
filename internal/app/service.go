package app

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"cryptoDipBot/config"
	"cryptoDipBot/internal/analytics"
	"cryptoDipBot/internal/domain"
	"cryptoDipBot/internal/ledger"
	"cryptoDipBot/internal/orderbook"
	"cryptoDipBot/internal/ports"
	"cryptoDipBot/internal/risk"
	"cryptoDipBot/internal/strategy"
)

// Service orchestrates the dip-accumulation engine: one cooperative loop that
// processes the configured symbols strictly sequentially each cycle. The
// sequencing is deliberate — capital authorization reads one shared balance
// and one totalDeployed aggregate, and parallel evaluation would let two
// symbols claim capital that only exists once.
type Service struct {
	cfg      *config.Config
	logger   ports.Logger
	exchange ports.ExchangeClient
	ledger   *ledger.Ledger
	tracker  *strategy.Tracker
	detector *strategy.TierDetector
	flash    *strategy.FlashCrashController
	exits    *strategy.ExitEvaluator
	sizer    *risk.Sizer
	governor *risk.Governor
	advisor  *orderbook.Advisor // optional, may be nil
	stats    *analytics.SessionStats

	mu     sync.Mutex
	states map[string]*domain.SymbolState

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewService creates a new engine service instance.
func NewService(
	cfg *config.Config,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	led *ledger.Ledger,
	tracker *strategy.Tracker,
	detector *strategy.TierDetector,
	flash *strategy.FlashCrashController,
	exits *strategy.ExitEvaluator,
	sizer *risk.Sizer,
	governor *risk.Governor,
	advisor *orderbook.Advisor,
) (*Service, error) {
	if cfg == nil || logger == nil || exchange == nil || led == nil ||
		tracker == nil || detector == nil || flash == nil || exits == nil ||
		sizer == nil || governor == nil {
		return nil, fmt.Errorf("missing required dependencies for Service")
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("at least one symbol must be configured")
	}

	states := make(map[string]*domain.SymbolState, len(cfg.Symbols))
	for _, symbol := range cfg.Symbols {
		states[symbol] = domain.NewSymbolState(symbol)
	}

	return &Service{
		cfg:      cfg,
		logger:   logger,
		exchange: exchange,
		ledger:   led,
		tracker:  tracker,
		detector: detector,
		flash:    flash,
		exits:    exits,
		sizer:    sizer,
		governor: governor,
		advisor:  advisor,
		stats:    analytics.NewSessionStats(time.Now().UTC()),
		states:   states,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start runs the engine loop until Stop is called or the context is
// cancelled. Stopping always drains the in-flight cycle before returning.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting dip-accumulation engine...", map[string]interface{}{
		"symbols":       s.cfg.Symbols,
		"checkInterval": s.cfg.CheckInterval.String(),
	})

	if err := s.exchange.Ping(ctx); err != nil {
		return fmt.Errorf("exchange connectivity check failed: %w", err)
	}
	if err := s.exchange.SetServerTime(ctx); err != nil {
		return fmt.Errorf("failed to set server time: %w", err)
	}

	// Crash recovery: rebuild open positions, totalDeployed and per-symbol
	// tracking state from persisted rows.
	if err := s.ledger.LoadOpen(ctx); err != nil {
		return fmt.Errorf("failed to reload ledger state: %w", err)
	}
	for _, pos := range s.ledger.OpenPositions() {
		st := s.state(pos.Symbol)
		if st == nil {
			s.logger.Warn(ctx, "Open position for unconfigured symbol, it will not be managed", map[string]interface{}{
				"symbol": pos.Symbol, "positionID": pos.ID,
			})
			continue
		}
		st.HighestSinceBuy = pos.EntryPrice
		st.LastBuyTime = pos.EntryTime
		s.logger.Info(ctx, "Recovered open position", map[string]interface{}{
			"symbol": pos.Symbol, "positionID": pos.ID,
			"entryPrice": pos.EntryPrice, "amount": pos.Amount, "tier": pos.EntryTier,
		})
	}

	for {
		s.runCycle(ctx)
		s.stats.RecordCycle()

		select {
		case <-ctx.Done():
			s.finish(context.Background())
			return ctx.Err()
		case <-s.stopCh:
			s.finish(ctx)
			return nil
		case <-time.After(s.cfg.CheckInterval):
		}
	}
}

// Stop signals the loop to exit after the in-flight cycle completes.
// Safe to call multiple times.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// finish logs the final session statistics.
func (s *Service) finish(ctx context.Context) {
	fields := s.stats.Summary(time.Now().UTC())
	if total, err := s.ledger.TotalProfit(ctx); err == nil {
		fields["allTimeProfit"] = total
	}
	fields["openPositions"] = len(s.ledger.OpenPositions())
	fields["totalDeployed"] = s.ledger.TotalDeployed()
	s.logger.Info(ctx, "Engine stopped, final statistics", fields)
}

// runCycle processes every configured symbol once, with a fixed courtesy
// delay between symbols.
func (s *Service) runCycle(ctx context.Context) {
	for i, symbol := range s.cfg.Symbols {
		s.processSymbol(ctx, symbol)
		if i < len(s.cfg.Symbols)-1 {
			time.Sleep(s.cfg.SymbolDelay)
		}
	}
}

func (s *Service) state(symbol string) *domain.SymbolState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[symbol]
}

// anyFlashActive reports whether any symbol is currently in flash-crash mode.
func (s *Service) anyFlashActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.states {
		if st.FlashCrash.Active {
			return true
		}
	}
	return false
}

// processSymbol runs one full evaluation for a symbol. Every failure is a
// per-symbol skip: logged, never fatal, and never a partial ledger mutation.
func (s *Service) processSymbol(ctx context.Context, symbol string) {
	now := time.Now().UTC()
	st := s.state(symbol)

	price, err := s.exchange.GetTickerPrice(ctx, symbol)
	if err != nil {
		s.logger.Warn(ctx, "Price fetch failed, skipping symbol this cycle", map[string]interface{}{
			"symbol": symbol, "error": err.Error(),
		})
		return
	}
	s.tracker.Record(st, price, now)

	// Exit conditions come first; a close ends this symbol's pass.
	pos := s.ledger.Open(symbol)
	if pos != nil {
		if sig := s.exits.Evaluate(pos, st, price, now); sig != nil {
			s.closePosition(ctx, st, pos, price, sig, now)
			return
		}
	}

	tierSig := s.detector.Detect(st, price, now)
	s.flash.Update(ctx, st, tierSig)
	if tierSig == nil {
		return
	}
	s.logger.Info(ctx, "Dip tier detected", map[string]interface{}{
		"symbol": symbol, "tier": tierSig.Tier, "changePct": tierSig.ChangePct, "price": price,
	})

	s.attemptBuy(ctx, st, pos, tierSig, price, now)
}

// attemptBuy sizes, authorizes and executes a buy for a fired tier.
func (s *Service) attemptBuy(ctx context.Context, st *domain.SymbolState, pos *domain.Position, sig *strategy.TierSignal, price float64, now time.Time) {
	symbol := st.Symbol
	size := s.sizer.Size(symbol, sig.OrderSizeUSD, price)
	if size <= 0 {
		return
	}

	freeBalance, err := s.exchange.GetFreeBalance(ctx, s.cfg.QuoteAsset)
	if err != nil {
		s.logger.Warn(ctx, "Balance fetch failed, skipping buy this cycle", map[string]interface{}{
			"symbol": symbol, "error": err.Error(),
		})
		return
	}

	var openValue float64
	if pos != nil {
		openValue = pos.Value()
	}
	req := risk.BuyRequest{
		Symbol:            symbol,
		SizeUSD:           size,
		FreeBalance:       freeBalance,
		TotalDeployed:     s.ledger.TotalDeployed(),
		OpenPositionValue: openValue,
		AnyFlashActive:    s.anyFlashActive(),
		HasPriorBuy:       !st.LastBuyTime.IsZero(),
		SinceLastBuy:      now.Sub(st.LastBuyTime),
		MinInterval:       s.flash.MinInterval(st),
		RapidBuyCapHit:    s.flash.RapidBuyCapReached(st),
	}
	if ok, reason := s.governor.Authorize(req); !ok {
		s.stats.RecordRefusal()
		s.logger.Info(ctx, "Buy refused by capital governor", map[string]interface{}{
			"symbol": symbol, "tier": sig.Tier, "size": size, "reason": reason,
		})
		return
	}

	// Advisory only: a nudged target is logged for context, the buy itself
	// executes at market.
	if s.advisor != nil {
		if advised, adjusted, why := s.advisor.AdjustPrice(ctx, symbol, domain.Buy, price); adjusted {
			s.logger.Info(ctx, "Order book advisor adjusted target price", map[string]interface{}{
				"symbol": symbol, "target": price, "advised": advised, "reason": why,
			})
		}
	}

	fill, err := s.exchange.MarketBuy(ctx, symbol, size)
	if err != nil {
		s.logger.Warn(ctx, "Market buy failed, skipping symbol this cycle", map[string]interface{}{
			"symbol": symbol, "size": size, "error": err.Error(),
		})
		return
	}

	merged := pos != nil
	updated, err := s.ledger.OpenOrMerge(ctx, symbol, fill.Price, fill.Quantity, sig.Tier, now)
	if err != nil {
		// The order filled but the row did not persist; the next LoadOpen
		// will miss this fill, so surface it loudly.
		s.logger.Error(ctx, err, "Buy filled but position persistence failed", map[string]interface{}{
			"symbol": symbol, "fillPrice": fill.Price, "fillQuantity": fill.Quantity,
		})
		return
	}

	s.flash.RecordBuy(st, now)
	st.HighestSinceBuy = math.Max(st.HighestSinceBuy, updated.EntryPrice)
	s.stats.RecordBuy(merged)
	s.logger.Info(ctx, "Buy executed", map[string]interface{}{
		"symbol": symbol, "tier": sig.Tier, "sizeUSD": size,
		"fillPrice": fill.Price, "entryPrice": updated.EntryPrice,
		"amount": updated.Amount, "merged": merged,
		"totalDeployed": s.ledger.TotalDeployed(),
	})
}

// closePosition liquidates an open position for a triggered exit signal.
func (s *Service) closePosition(ctx context.Context, st *domain.SymbolState, pos *domain.Position, price float64, sig *strategy.ExitSignal, now time.Time) {
	symbol := st.Symbol
	s.logger.Info(ctx, "Exit condition triggered", map[string]interface{}{
		"symbol": symbol, "positionID": pos.ID, "reason": sig.Reason, "pnlPct": sig.PnLPct,
	})

	fill, err := s.exchange.MarketSell(ctx, symbol, pos.Amount)
	if err != nil {
		// Position stays open; the exit re-triggers next cycle.
		s.logger.Warn(ctx, "Market sell failed, position remains open", map[string]interface{}{
			"symbol": symbol, "positionID": pos.ID, "error": err.Error(),
		})
		return
	}
	exitPrice := fill.Price
	if exitPrice == 0 {
		exitPrice = price
	}

	closed, err := s.ledger.Close(ctx, symbol, exitPrice, sig.Reason, now)
	if err != nil {
		s.logger.Error(ctx, err, "Sell filled but position close failed to persist", map[string]interface{}{
			"symbol": symbol, "positionID": pos.ID, "exitPrice": exitPrice,
		})
		return
	}

	// Clear transient tracking state so a later buy starts a fresh position.
	st.HighestSinceBuy = 0
	st.FlashCrash = domain.FlashCrashState{}
	s.stats.RecordClose(closed.ExitReason, closed.Profit)
	s.logger.Info(ctx, "Position liquidated", map[string]interface{}{
		"symbol": symbol, "positionID": closed.ID, "exitPrice": exitPrice,
		"profit": closed.Profit, "reason": closed.ExitReason,
	})
}
