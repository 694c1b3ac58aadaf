package domain

import (
	"fmt"
	"time"
)

// SellReason tags a sale record with the rule that triggered it.
type SellReason string

const (
	SellReasonTrailingStop SellReason = "trailing_stop_loss"
	SellReasonMaxHold      SellReason = "max_holding_time"
	SellReasonDust         SellReason = "dust_close"
	SellReasonManual       SellReason = "manual"
)

// TierReason builds the sale tag for take-profit tier i (1-based).
func TierReason(tier int) SellReason {
	return SellReason(fmt.Sprintf("take_profit_tier_%d", tier))
}

// SaleRecord is one executed partial or full sell of a position.
type SaleRecord struct {
	Reason     SellReason `json:"reason"`
	Percentage float64    `json:"percentage"` // fraction of remaining balance sold, 0..1
	TokensSold float64    `json:"tokens_sold"`
	Proceeds   float64    `json:"proceeds_bnb"` // gross BNB received
	GasCost    float64    `json:"gas_cost_bnb"`
	Time       time.Time  `json:"time"`
	TxHash     string     `json:"tx_hash"`
}

// NetProceeds returns proceeds after gas.
func (s *SaleRecord) NetProceeds() float64 {
	return s.Proceeds - s.GasCost
}

// Position is one open holding, keyed by token address (at most one open
// position per token). Mutations go through the ledger only.
type Position struct {
	Token       Address   `json:"token"`
	Pair        Address   `json:"pair"`
	Symbol      string    `json:"symbol"`
	Decimals    uint8     `json:"decimals"`
	EntryPrice  float64   `json:"entry_price_bnb"` // BNB per token, invested / tokens received
	EntryTime   time.Time `json:"entry_time"`
	Investment  float64   `json:"investment_bnb"`
	EntryGas    float64   `json:"entry_gas_bnb"`
	TokensOwned float64   `json:"tokens_owned"` // originally received
	Remaining   float64   `json:"remaining_tokens"`
	EntryTx     string    `json:"entry_tx"`

	CurrentPrice float64 `json:"current_price_bnb"`
	CurrentValue float64 `json:"current_value_bnb"`
	PeakPrice    float64 `json:"peak_price_bnb"` // monotonically non-decreasing since entry

	Sales []SaleRecord `json:"sales"`
}

// NewPosition builds a position from a confirmed buy.
func NewPosition(token TokenInfo, pair Address, investment, tokensReceived, gasCost float64, txHash string, entryTime time.Time) (*Position, error) {
	if tokensReceived <= 0 {
		return nil, fmt.Errorf("position for %s: tokens received must be positive, got %f", token.Address.Short(), tokensReceived)
	}
	if investment <= 0 {
		return nil, fmt.Errorf("position for %s: investment must be positive, got %f", token.Address.Short(), investment)
	}
	entryPrice := investment / tokensReceived
	return &Position{
		Token:        token.Address,
		Pair:         pair,
		Symbol:       token.Symbol,
		Decimals:     token.Decimals,
		EntryPrice:   entryPrice,
		EntryTime:    entryTime,
		Investment:   investment,
		EntryGas:     gasCost,
		TokensOwned:  tokensReceived,
		Remaining:    tokensReceived,
		EntryTx:      txHash,
		CurrentPrice: entryPrice,
		CurrentValue: investment,
		PeakPrice:    entryPrice,
	}, nil
}

// Multiple returns current price as a multiple of entry price.
func (p *Position) Multiple() float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return p.CurrentPrice / p.EntryPrice
}

// UnrealizedPNL returns the unrealized profit of the remaining balance
// in BNB and as a percentage of its entry cost.
func (p *Position) UnrealizedPNL() (amount, pct float64) {
	cost := p.Remaining * p.EntryPrice
	amount = p.CurrentValue - cost
	if cost > 0 {
		pct = amount / cost * 100
	}
	return amount, pct
}

// HasSale reports whether a sale with the given reason was already
// recorded. Take-profit tiers use this for fire-at-most-once semantics.
func (p *Position) HasSale(reason SellReason) bool {
	for i := range p.Sales {
		if p.Sales[i].Reason == reason {
			return true
		}
	}
	return false
}

// TotalSold sums tokens sold across all sale records.
func (p *Position) TotalSold() float64 {
	var total float64
	for i := range p.Sales {
		total += p.Sales[i].TokensSold
	}
	return total
}

// TotalNetProceeds sums net proceeds (gross minus gas) across all sales.
func (p *Position) TotalNetProceeds() float64 {
	var total float64
	for i := range p.Sales {
		total += p.Sales[i].NetProceeds()
	}
	return total
}

// TrailingArmed reports whether the trailing stop may evaluate: the
// position must have been profitable at some point since entry.
func (p *Position) TrailingArmed() bool {
	return p.PeakPrice > p.EntryPrice
}

// HoldDuration is the time the position has been open as of now.
func (p *Position) HoldDuration(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}
