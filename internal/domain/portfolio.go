package domain

// PortfolioTotals accumulates realized results across all positions.
// Updated incrementally on each sale and position close, never
// recomputed from history.
type PortfolioTotals struct {
	InvestedBNB      float64 `json:"invested_bnb"`
	GrossProceedsBNB float64 `json:"gross_proceeds_bnb"`
	FeesPaidBNB      float64 `json:"fees_paid_bnb"`
	NetProfitBNB     float64 `json:"net_profit_bnb"`
	SuccessfulTrades int     `json:"successful_trades"`
	FailedTrades     int     `json:"failed_trades"`
}

// WinRate returns the percentage of closed positions that ended
// net-positive. 0 when nothing has closed yet.
func (t *PortfolioTotals) WinRate() float64 {
	closed := t.SuccessfulTrades + t.FailedTrades
	if closed == 0 {
		return 0
	}
	return float64(t.SuccessfulTrades) / float64(closed) * 100
}

// LedgerState is the full persisted ledger document: every open
// position plus the running totals. Rewritten atomically after each
// mutation so a restart resumes where it left off.
type LedgerState struct {
	Positions map[Address]*Position `json:"positions"`
	Totals    PortfolioTotals       `json:"totals"`
}

// NewLedgerState returns an empty state ready for use.
func NewLedgerState() *LedgerState {
	return &LedgerState{Positions: make(map[Address]*Position)}
}
