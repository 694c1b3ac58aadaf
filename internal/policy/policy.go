package policy

import (
	"context"
	"sync"

	"pairsniper/internal/ports"
)

// TradingPolicy owns the per-trade buy amount. The amount starts at the
// configured base and grows as a configured fraction of each realized
// profit is folded back in, capped at a ceiling. Losses shrink it the
// same way, but never below the base.
type TradingPolicy struct {
	mu           sync.Mutex
	amount       float64
	base         float64
	ceiling      float64
	compoundRate float64
	logger       ports.Logger
}

// New builds the policy. compoundRate is the fraction of each realized
// net profit added to the buy amount, 0 disables compounding.
func New(base, ceiling, compoundRate float64, logger ports.Logger) *TradingPolicy {
	return &TradingPolicy{
		amount:       base,
		base:         base,
		ceiling:      ceiling,
		compoundRate: compoundRate,
		logger:       logger,
	}
}

// Amount returns the current per-trade buy size in BNB.
func (p *TradingPolicy) Amount() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.amount
}

// Adjust folds a realized net profit (or loss, negative) into the buy
// amount and returns the new value.
func (p *TradingPolicy) Adjust(ctx context.Context, netProfit float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := p.amount
	p.amount += netProfit * p.compoundRate
	if p.amount > p.ceiling {
		p.amount = p.ceiling
	}
	if p.amount < p.base {
		p.amount = p.base
	}
	if p.amount != prev {
		p.logger.Info(ctx, "Buy amount adjusted", map[string]interface{}{
			"previous":   prev,
			"amount":     p.amount,
			"net_profit": netProfit,
		})
	}
	return p.amount
}
