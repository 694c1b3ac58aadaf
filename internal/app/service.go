package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"pairsniper/config"
	"pairsniper/internal/domain"
	"pairsniper/internal/ledger"
	"pairsniper/internal/policy"
	"pairsniper/internal/ports"
	"pairsniper/internal/profit"
	"pairsniper/internal/security"
)

// maxBlockSpan caps one pair scan so a long stall cannot turn into a
// single oversized log query.
const maxBlockSpan = 500

// tradeTimeout bounds a submit-to-receipt swap sequence. Swaps run on
// their own context so shutdown cannot abandon a broadcast transaction
// before the ledger records it.
const tradeTimeout = 5 * time.Minute

// SniperService orchestrates the bot: the pair monitor discovers new
// listings and screens them, the position manager walks open positions
// through their exits, and the summary loop reports totals. Each loop
// runs independently; the ledger is the only shared mutable state and
// it serializes itself.
type SniperService struct {
	cfg       *config.Config
	logger    ports.Logger
	chain     ports.ChainGateway
	evaluator *security.Evaluator
	ledger    *ledger.Ledger
	engine    *profit.Engine
	policy    *policy.TradingPolicy
	notifier  ports.Notifier

	// handlers tracks in-flight candidate screenings so Start can wait
	// for them before the final ledger flush.
	handlers sync.WaitGroup

	mu             sync.Mutex
	lastBlock      uint64
	seenPairs      map[domain.Address]struct{}
	pendingBuys    int
	pairsDetected  int
	tokensAnalyzed int
	tokensBought   int
	startTime      time.Time
}

// Stats is a point-in-time snapshot of the service counters.
type Stats struct {
	Uptime         time.Duration
	PairsDetected  int
	TokensAnalyzed int
	TokensBought   int
	OpenPositions  int
}

// NewSniperService creates the orchestrator.
func NewSniperService(
	cfg *config.Config,
	logger ports.Logger,
	chain ports.ChainGateway,
	evaluator *security.Evaluator,
	lgr *ledger.Ledger,
	engine *profit.Engine,
	pol *policy.TradingPolicy,
	notifier ports.Notifier,
) (*SniperService, error) {
	if cfg == nil || logger == nil || chain == nil || evaluator == nil || lgr == nil || engine == nil || pol == nil {
		return nil, fmt.Errorf("missing required dependencies for SniperService")
	}
	return &SniperService{
		cfg:       cfg,
		logger:    logger,
		chain:     chain,
		evaluator: evaluator,
		ledger:    lgr,
		engine:    engine,
		policy:    pol,
		notifier:  notifier,
		seenPairs: make(map[domain.Address]struct{}),
	}, nil
}

// Start runs the service until the context is canceled or a shutdown
// signal arrives, then flushes the ledger and returns.
func (s *SniperService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting sniper service...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	// Anchor the block cursor at the current head; listings from before
	// startup are stale by definition.
	head, err := s.chain.LatestBlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chain head: %w", err)
	}
	s.mu.Lock()
	s.lastBlock = head
	s.startTime = time.Now()
	s.mu.Unlock()
	s.logger.Info(ctx, "Pair monitoring anchored", map[string]interface{}{
		"block":          head,
		"wallet":         string(s.chain.WalletAddress()),
		"open_positions": s.ledger.OpenCount(),
	})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); s.pairLoop(ctx) }()
	go func() { defer wg.Done(); s.positionLoop(ctx) }()
	go func() { defer wg.Done(); s.summaryLoop(ctx) }()

	<-ctx.Done()
	wg.Wait()
	s.handlers.Wait()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer flushCancel()
	if err := s.ledger.Flush(flushCtx); err != nil {
		s.logger.Error(flushCtx, err, "Final ledger flush failed")
	}
	s.logger.Info(context.Background(), "Sniper service stopped.")
	return nil
}

// Status returns current counters.
func (s *SniperService) Status() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Uptime:         time.Since(s.startTime),
		PairsDetected:  s.pairsDetected,
		TokensAnalyzed: s.tokensAnalyzed,
		TokensBought:   s.tokensBought,
		OpenPositions:  s.ledger.OpenCount(),
	}
}

// --- pair monitoring ---

func (s *SniperService) pairLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PairPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.scanPairs(ctx); err != nil {
				s.logger.Error(ctx, err, "Pair scan failed")
				if s.notifier != nil {
					s.notifier.Error(ctx, "pair scan", err)
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.cfg.LoopErrorBackoff):
				}
			}
		}
	}
}

// scanPairs advances the block cursor and dispatches every new listing.
// The cursor only moves once the scan succeeded, so a failed range is
// retried rather than skipped.
func (s *SniperService) scanPairs(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	head, err := s.chain.LatestBlockNumber(callCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("chain head: %w", err)
	}

	s.mu.Lock()
	from := s.lastBlock + 1
	s.mu.Unlock()
	if head < from {
		return nil
	}
	to := head
	if to-from > maxBlockSpan {
		to = from + maxBlockSpan
	}

	callCtx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
	events, err := s.chain.PairsCreated(callCtx, from, to)
	cancel()
	if err != nil {
		return fmt.Errorf("pair logs %d-%d: %w", from, to, err)
	}

	s.mu.Lock()
	s.lastBlock = to
	fresh := make([]*domain.PairEvent, 0, len(events))
	for _, ev := range events {
		if _, seen := s.seenPairs[ev.Pair]; seen {
			continue
		}
		s.seenPairs[ev.Pair] = struct{}{}
		s.pairsDetected++
		fresh = append(fresh, ev)
	}
	s.mu.Unlock()

	for _, ev := range fresh {
		s.handlers.Add(1)
		go func(ev *domain.PairEvent) {
			defer s.handlers.Done()
			s.handleCandidate(ctx, ev)
		}(ev)
	}
	return nil
}

// handleCandidate screens one new listing end to end and buys it when
// it passes.
func (s *SniperService) handleCandidate(ctx context.Context, ev *domain.PairEvent) {
	refs := s.cfg.References()
	tokenAddr, ok := refs.CandidateToken(ev)
	if !ok {
		s.logger.Debug(ctx, "Pair skipped, no tradable side", map[string]interface{}{
			"pair":   string(ev.Pair),
			"token0": string(ev.Token0),
			"token1": string(ev.Token1),
		})
		return
	}
	if s.ledger.Has(tokenAddr) {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	token, err := s.chain.GetTokenMetadata(callCtx, tokenAddr)
	cancel()
	if err != nil {
		s.logger.Warn(ctx, "Token metadata fetch failed", map[string]interface{}{
			"token": string(tokenAddr),
			"error": err.Error(),
		})
		return
	}

	s.logger.Info(ctx, "New listing detected", map[string]interface{}{
		"token":  string(token.Address),
		"symbol": token.Symbol,
		"pair":   string(ev.Pair),
		"block":  ev.BlockNumber,
	})
	if s.notifier != nil {
		s.notifier.TokenDetected(ctx, token, ev.Pair)
	}

	verdict, err := s.evaluator.Evaluate(ctx, token, ev.Pair)
	if err != nil {
		s.logger.Error(ctx, err, "Evaluation aborted", map[string]interface{}{"token": string(tokenAddr)})
		return
	}
	s.mu.Lock()
	s.tokensAnalyzed++
	s.mu.Unlock()
	if s.notifier != nil {
		s.notifier.VerdictReady(ctx, verdict, token.Symbol)
	}
	if !verdict.IsSafe {
		return
	}

	s.buyCandidate(ctx, token, ev.Pair)
}

// buyCandidate applies the buy gates and executes the purchase. The
// gates run before any funds move: position capacity first, then wallet
// balance against the buy amount plus the gas reserve.
func (s *SniperService) buyCandidate(ctx context.Context, token *domain.TokenInfo, pair domain.Address) {
	if !s.reserveSlot(ctx, token.Address) {
		return
	}
	defer s.releaseSlot()

	amount := s.policy.Amount()
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	balance, err := s.chain.BNBBalance(callCtx)
	cancel()
	if err != nil {
		s.logger.Error(ctx, err, "Balance check failed", map[string]interface{}{"token": string(token.Address)})
		return
	}
	if balance < amount+s.cfg.GasReserveBNB {
		s.logger.Warn(ctx, "Buy skipped, insufficient balance", map[string]interface{}{
			"token":       string(token.Address),
			"balance":     balance,
			"needed":      amount + s.cfg.GasReserveBNB,
			"gas_reserve": s.cfg.GasReserveBNB,
		})
		return
	}

	if s.notifier != nil {
		s.notifier.BuyAttempt(ctx, token, amount)
	}
	// From submission on the swap must reach its receipt and the ledger
	// even if the run context is canceled mid-flight.
	txCtx, txCancel := context.WithTimeout(context.Background(), tradeTimeout)
	defer txCancel()
	result, err := s.chain.BuyTokens(txCtx, token.Address, amount, s.cfg.SlippagePct)
	if err != nil {
		s.logger.Error(ctx, err, "Buy failed", map[string]interface{}{
			"token":  string(token.Address),
			"symbol": token.Symbol,
			"amount": amount,
		})
		if s.notifier != nil {
			s.notifier.BuyResult(ctx, &ports.BuyReport{
				Token: token.Address, Symbol: token.Symbol, AmountBNB: amount, Err: err.Error(),
			})
		}
		return
	}

	pos, err := domain.NewPosition(*token, pair, amount, result.AmountOut, result.GasCostBNB, result.TxHash, time.Now())
	if err != nil {
		s.logger.Error(ctx, err, "Buy confirmed but position invalid", map[string]interface{}{
			"token":   string(token.Address),
			"tx_hash": result.TxHash,
		})
		return
	}
	if err := s.ledger.Add(txCtx, pos); err != nil {
		s.logger.Error(ctx, err, "Failed to record position", map[string]interface{}{
			"token":   string(token.Address),
			"tx_hash": result.TxHash,
		})
	}

	s.mu.Lock()
	s.tokensBought++
	s.mu.Unlock()
	if s.notifier != nil {
		s.notifier.BuyResult(ctx, &ports.BuyReport{
			Token:     token.Address,
			Symbol:    token.Symbol,
			AmountBNB: amount,
			Tokens:    result.AmountOut,
			GasBNB:    result.GasCostBNB,
			TxHash:    result.TxHash,
		})
	}
}

// reserveSlot claims a position slot under the service mutex so that
// concurrent candidates cannot all pass the capacity gate while their
// buys are still in flight. The open count and the pending count are
// read and bumped in one critical section.
func (s *SniperService) reserveSlot(ctx context.Context, token domain.Address) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if used := s.ledger.OpenCount() + s.pendingBuys; used >= s.cfg.MaxPositions {
		s.logger.Info(ctx, "Buy skipped, position limit reached", map[string]interface{}{
			"token":   string(token),
			"used":    used,
			"pending": s.pendingBuys,
			"limit":   s.cfg.MaxPositions,
		})
		return false
	}
	s.pendingBuys++
	return true
}

func (s *SniperService) releaseSlot() {
	s.mu.Lock()
	s.pendingBuys--
	s.mu.Unlock()
}

// --- position management ---

func (s *SniperService) positionLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PositionPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickPositions(ctx)
		}
	}
}

// tickPositions refreshes every open position and executes at most one
// exit action per position. A failure on one position is logged and the
// walk continues; the others still get their tick.
func (s *SniperService) tickPositions(ctx context.Context) {
	for _, pos := range s.ledger.OpenPositions() {
		if ctx.Err() != nil {
			return
		}
		if err := s.tickPosition(ctx, pos); err != nil {
			s.logger.Error(ctx, err, "Position tick failed", map[string]interface{}{
				"token":  string(pos.Token),
				"symbol": pos.Symbol,
			})
		}
	}
}

func (s *SniperService) tickPosition(ctx context.Context, pos domain.Position) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	reserves, err := s.chain.GetReserves(callCtx, pos.Pair)
	cancel()
	if err != nil {
		return fmt.Errorf("reserves: %w", err)
	}
	price := domain.PriceFromReserves(reserves, s.cfg.WBNBAddress, pos.Decimals)
	if price <= 0 {
		return fmt.Errorf("no usable price for pair %s", pos.Pair.Short())
	}
	if err := s.ledger.UpdatePrice(ctx, pos.Token, price); err != nil {
		return fmt.Errorf("mark: %w", err)
	}

	current, ok := s.ledger.Get(pos.Token)
	if !ok {
		return nil
	}
	action := s.engine.Decide(&current, time.Now())
	switch action.Kind {
	case profit.ActionNone:
		return nil
	case profit.ActionClose:
		return s.closePosition(ctx, current.Token, action.Reason)
	case profit.ActionSell:
		return s.executeSell(ctx, &current, action)
	}
	return nil
}

// executeSell sells the requested slice and closes the position when
// the remainder is dust.
func (s *SniperService) executeSell(ctx context.Context, pos *domain.Position, action profit.Action) error {
	sellAmount := pos.Remaining * action.Percentage

	s.logger.Info(ctx, "Exit rule triggered", map[string]interface{}{
		"token":    string(pos.Token),
		"symbol":   pos.Symbol,
		"action":   action.String(),
		"multiple": pos.Multiple(),
		"tokens":   sellAmount,
	})

	// Same contract as the buy path: once the sell is submitted it runs
	// to its receipt and the sale record regardless of shutdown.
	txCtx, txCancel := context.WithTimeout(context.Background(), tradeTimeout)
	defer txCancel()
	result, err := s.chain.SellTokens(txCtx, pos.Token, sellAmount, s.cfg.SlippagePct)
	if err != nil {
		if s.notifier != nil {
			s.notifier.Error(ctx, "sell "+pos.Symbol, err)
		}
		return fmt.Errorf("sell: %w", err)
	}

	sale := domain.SaleRecord{
		Reason:     action.Reason,
		Percentage: action.Percentage,
		TokensSold: sellAmount,
		Proceeds:   result.AmountOut,
		GasCost:    result.GasCostBNB,
		Time:       time.Now(),
		TxHash:     result.TxHash,
	}
	if err := s.ledger.RecordSale(txCtx, pos.Token, sale); err != nil {
		return fmt.Errorf("record sale: %w", err)
	}
	if s.notifier != nil {
		s.notifier.SaleExecuted(ctx, &ports.SaleReport{
			Token:       pos.Token,
			Symbol:      pos.Symbol,
			Reason:      action.Reason,
			TokensSold:  sellAmount,
			ProceedsBNB: result.AmountOut,
			GasBNB:      result.GasCostBNB,
			TxHash:      result.TxHash,
		})
	}

	if current, ok := s.ledger.Get(pos.Token); ok && current.Remaining <= s.cfg.DustThreshold {
		return s.closePosition(txCtx, pos.Token, action.Reason)
	}
	return nil
}

// closePosition retires the position, reports it, and feeds the
// realized result back into the trading policy.
func (s *SniperService) closePosition(ctx context.Context, token domain.Address, reason domain.SellReason) error {
	trade, err := s.ledger.Close(ctx, token, reason, time.Now())
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}

	s.policy.Adjust(ctx, trade.NetProfit)
	if s.notifier != nil {
		s.notifier.PositionClosed(ctx, &ports.CloseReport{
			Token:       trade.Token,
			Symbol:      trade.Symbol,
			Investment:  trade.Investment,
			NetProceeds: trade.NetProceeds,
			NetProfit:   trade.NetProfit,
			Held:        trade.ExitTime.Sub(trade.EntryTime),
			Win:         trade.Win,
			Reason:      reason,
		})
	}
	return nil
}

// --- periodic summary ---

func (s *SniperService) summaryLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SummaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.emitSummary(ctx)
		}
	}
}

func (s *SniperService) emitSummary(ctx context.Context) {
	stats := s.Status()
	totals := s.ledger.Totals()

	s.logger.Info(ctx, "Session summary", map[string]interface{}{
		"uptime":     stats.Uptime.Round(time.Second).String(),
		"pairs":      stats.PairsDetected,
		"analyzed":   stats.TokensAnalyzed,
		"bought":     stats.TokensBought,
		"open":       stats.OpenPositions,
		"wins":       totals.SuccessfulTrades,
		"losses":     totals.FailedTrades,
		"net_profit": totals.NetProfitBNB,
	})
	if s.notifier != nil {
		s.notifier.Summary(ctx, &ports.SummaryReport{
			Uptime:         stats.Uptime,
			PairsDetected:  stats.PairsDetected,
			TokensAnalyzed: stats.TokensAnalyzed,
			TokensBought:   stats.TokensBought,
			OpenPositions:  stats.OpenPositions,
			Totals:         totals,
		})
	}
}
