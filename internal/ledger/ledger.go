package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pairsniper/internal/domain"
	"pairsniper/internal/ports"
)

// Ledger owns every open position and the portfolio totals. All
// mutations funnel through its mutex and each one is followed by an
// atomic rewrite of the persisted document, so the on-disk state never
// lags by more than the write in flight.
//
// The trade archive is best-effort: archive failures are logged and
// swallowed, the ledger file alone is authoritative.
type Ledger struct {
	mu      sync.Mutex
	state   *domain.LedgerState
	store   ports.LedgerStore
	archive ports.TradeArchive
	logger  ports.Logger

	dustThreshold float64
}

// Open loads the persisted state and returns a ready ledger. archive
// may be nil.
func Open(ctx context.Context, store ports.LedgerStore, archive ports.TradeArchive, dustThreshold float64, logger ports.Logger) (*Ledger, error) {
	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: load: %w", err)
	}
	if len(state.Positions) > 0 {
		logger.Info(ctx, "Resumed open positions from ledger", map[string]interface{}{
			"count": len(state.Positions),
		})
	}
	return &Ledger{
		state:         state,
		store:         store,
		archive:       archive,
		logger:        logger,
		dustThreshold: dustThreshold,
	}, nil
}

// persistLocked writes the current state. Callers hold the mutex.
func (l *Ledger) persistLocked(ctx context.Context) error {
	if err := l.store.Save(ctx, l.state); err != nil {
		l.logger.Error(ctx, err, "Ledger persist failed; in-memory state is ahead of disk")
		return fmt.Errorf("%w: %w", ports.ErrPersistFailed, err)
	}
	return nil
}

// Add registers a freshly opened position. A second open position for
// the same token is rejected.
func (l *Ledger) Add(ctx context.Context, pos *domain.Position) error {
	op := "Add"
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.state.Positions[pos.Token]; exists {
		return fmt.Errorf("%s: %w: %s", op, ports.ErrPositionExists, pos.Token.Short())
	}
	l.state.Positions[pos.Token] = pos
	l.state.Totals.InvestedBNB += pos.Investment
	l.state.Totals.FeesPaidBNB += pos.EntryGas

	l.logger.Info(ctx, "Position opened", map[string]interface{}{
		"token":       string(pos.Token),
		"symbol":      pos.Symbol,
		"investment":  pos.Investment,
		"tokens":      pos.TokensOwned,
		"entry_price": pos.EntryPrice,
	})
	return l.persistLocked(ctx)
}

// Has reports whether the token already has an open position.
func (l *Ledger) Has(token domain.Address) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.state.Positions[token]
	return ok
}

// OpenCount returns the number of open positions.
func (l *Ledger) OpenCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.state.Positions)
}

// Get returns a copy of one open position.
func (l *Ledger) Get(token domain.Address) (domain.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.state.Positions[token]
	if !ok {
		return domain.Position{}, false
	}
	return copyPosition(pos), true
}

// OpenPositions returns copies of every open position.
func (l *Ledger) OpenPositions() []domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Position, 0, len(l.state.Positions))
	for _, pos := range l.state.Positions {
		out = append(out, copyPosition(pos))
	}
	return out
}

// UpdatePrice refreshes one position's mark. The peak only ever moves
// up.
func (l *Ledger) UpdatePrice(ctx context.Context, token domain.Address, price float64) error {
	op := "UpdatePrice"
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.state.Positions[token]
	if !ok {
		return fmt.Errorf("%s: %w: %s", op, ports.ErrPositionNotFound, token.Short())
	}
	pos.CurrentPrice = price
	pos.CurrentValue = pos.Remaining * price
	if price > pos.PeakPrice {
		pos.PeakPrice = price
	}
	return l.persistLocked(ctx)
}

// RecordSale books one executed sell against the position and rolls the
// proceeds into the portfolio totals.
func (l *Ledger) RecordSale(ctx context.Context, token domain.Address, sale domain.SaleRecord) error {
	op := "RecordSale"
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.state.Positions[token]
	if !ok {
		return fmt.Errorf("%s: %w: %s", op, ports.ErrPositionNotFound, token.Short())
	}

	pos.Sales = append(pos.Sales, sale)
	pos.Remaining -= sale.TokensSold
	if pos.Remaining < 0 {
		pos.Remaining = 0
	}
	pos.CurrentValue = pos.Remaining * pos.CurrentPrice

	l.state.Totals.GrossProceedsBNB += sale.Proceeds
	l.state.Totals.FeesPaidBNB += sale.GasCost

	l.logger.Info(ctx, "Sale recorded", map[string]interface{}{
		"token":     string(token),
		"symbol":    pos.Symbol,
		"reason":    string(sale.Reason),
		"sold":      sale.TokensSold,
		"proceeds":  sale.Proceeds,
		"remaining": pos.Remaining,
	})

	if l.archive != nil {
		if err := l.archive.RecordSale(ctx, token, pos.Symbol, &sale); err != nil {
			l.logger.Warn(ctx, "Trade archive write failed", map[string]interface{}{
				"token": string(token),
				"error": err.Error(),
			})
		}
	}
	return l.persistLocked(ctx)
}

// Close retires a position whose balance is at or below the dust
// threshold, classifies the realized result, and removes it from the
// open set. The win/loss call compares realized net proceeds against
// the initial investment only.
func (l *Ledger) Close(ctx context.Context, token domain.Address, reason domain.SellReason, now time.Time) (*domain.ClosedTrade, error) {
	op := "Close"
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.state.Positions[token]
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", op, ports.ErrPositionNotFound, token.Short())
	}
	if pos.Remaining > l.dustThreshold {
		return nil, fmt.Errorf("%s: %w: %s still holds %f tokens", op, ports.ErrPositionNotFlat, token.Short(), pos.Remaining)
	}

	netProceeds := pos.TotalNetProceeds()
	netProfit := netProceeds - pos.Investment
	trade := &domain.ClosedTrade{
		Token:       pos.Token,
		Symbol:      pos.Symbol,
		Investment:  pos.Investment,
		NetProceeds: netProceeds,
		NetProfit:   netProfit,
		EntryTime:   pos.EntryTime,
		ExitTime:    now,
		ExitReason:  reason,
		SaleCount:   len(pos.Sales),
		Win:         netProceeds > pos.Investment,
	}

	delete(l.state.Positions, token)
	l.state.Totals.NetProfitBNB += netProfit
	if trade.Win {
		l.state.Totals.SuccessfulTrades++
	} else {
		l.state.Totals.FailedTrades++
	}

	l.logger.Info(ctx, "Position closed", map[string]interface{}{
		"token":      string(token),
		"symbol":     pos.Symbol,
		"reason":     string(reason),
		"net_profit": netProfit,
		"win":        trade.Win,
		"held":       now.Sub(pos.EntryTime).String(),
	})

	if l.archive != nil {
		if _, err := l.archive.RecordClose(ctx, trade); err != nil {
			l.logger.Warn(ctx, "Trade archive write failed", map[string]interface{}{
				"token": string(token),
				"error": err.Error(),
			})
		}
	}
	if err := l.persistLocked(ctx); err != nil {
		return trade, err
	}
	return trade, nil
}

// Totals returns a copy of the running portfolio totals.
func (l *Ledger) Totals() domain.PortfolioTotals {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Totals
}

// Flush rewrites the persisted document; called on shutdown.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persistLocked(ctx)
}

func copyPosition(pos *domain.Position) domain.Position {
	clone := *pos
	clone.Sales = append([]domain.SaleRecord(nil), pos.Sales...)
	return clone
}
