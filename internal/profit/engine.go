package profit

import (
	"fmt"
	"time"

	"pairsniper/internal/domain"
)

// Tier is one take-profit rung: when the price reaches Multiplier
// times entry, sell Percentage of the remaining balance.
type Tier struct {
	Multiplier float64
	Percentage float64
}

// ActionKind classifies what the engine wants done this tick.
type ActionKind int

const (
	// ActionNone: hold, nothing triggered.
	ActionNone ActionKind = iota
	// ActionSell: sell Percentage of the remaining balance.
	ActionSell
	// ActionClose: retire the position without selling; the balance is
	// already dust.
	ActionClose
)

// Action is the engine's decision for one position on one tick. At most
// one rule fires per tick.
type Action struct {
	Kind       ActionKind
	Reason     domain.SellReason
	Percentage float64 // fraction of remaining balance, 0..1
}

func (a Action) String() string {
	switch a.Kind {
	case ActionSell:
		return fmt.Sprintf("sell %.0f%% (%s)", a.Percentage*100, a.Reason)
	case ActionClose:
		return fmt.Sprintf("close (%s)", a.Reason)
	default:
		return "hold"
	}
}

// Engine evaluates exit rules against position snapshots. It holds no
// mutable state; everything it needs lives in the position itself, so
// decisions survive restarts.
type Engine struct {
	tiers           []Tier
	trailingStopPct float64
	maxHold         time.Duration
	dustThreshold   float64
}

// NewEngine builds the engine. Tiers must be in ascending multiplier
// order; the caller validates that at config load.
func NewEngine(tiers []Tier, trailingStopPct float64, maxHold time.Duration, dustThreshold float64) *Engine {
	return &Engine{
		tiers:           tiers,
		trailingStopPct: trailingStopPct,
		maxHold:         maxHold,
		dustThreshold:   dustThreshold,
	}
}

// Decide returns the single action to take for the position this tick.
//
// Rule order: dust close, then take-profit tiers, then the trailing
// stop, then the maximum holding time. Whichever fires first wins the
// tick; later rules get their chance on the next one.
func (e *Engine) Decide(pos *domain.Position, now time.Time) Action {
	if pos.Remaining <= e.dustThreshold {
		return Action{Kind: ActionClose, Reason: domain.SellReasonDust}
	}

	// Tiers fire at most once each, tracked by the sale tag on the
	// position, and sell a slice of what is left rather than of the
	// original stack.
	multiple := pos.Multiple()
	for i, tier := range e.tiers {
		reason := domain.TierReason(i + 1)
		if pos.HasSale(reason) {
			continue
		}
		if multiple >= tier.Multiplier {
			return Action{Kind: ActionSell, Reason: reason, Percentage: tier.Percentage}
		}
	}

	// The trailing stop arms only once the position has been in profit;
	// it never converts a straight loser into a stop-out, that is the
	// max-hold rule's job.
	if pos.TrailingArmed() {
		stop := pos.PeakPrice * (1 - e.trailingStopPct)
		if pos.CurrentPrice <= stop {
			return Action{Kind: ActionSell, Reason: domain.SellReasonTrailingStop, Percentage: 1.0}
		}
	}

	if pos.HoldDuration(now) >= e.maxHold {
		return Action{Kind: ActionSell, Reason: domain.SellReasonMaxHold, Percentage: 1.0}
	}

	return Action{Kind: ActionNone}
}
