package ports

import (
	"context"
	"time"

	"pairsniper/internal/domain"
)

// BuyReport describes an attempted or completed purchase.
type BuyReport struct {
	Token     domain.Address
	Symbol    string
	AmountBNB float64
	Tokens    float64
	GasBNB    float64
	TxHash    string
	Err       string // empty on success
}

// SaleReport describes one executed sell.
type SaleReport struct {
	Token       domain.Address
	Symbol      string
	Reason      domain.SellReason
	TokensSold  float64
	ProceedsBNB float64
	GasBNB      float64
	TxHash      string
}

// CloseReport describes a fully exited position.
type CloseReport struct {
	Token       domain.Address
	Symbol      string
	Investment  float64
	NetProceeds float64
	NetProfit   float64
	Held        time.Duration
	Win         bool
	Reason      domain.SellReason
}

// SummaryReport is the periodic portfolio snapshot.
type SummaryReport struct {
	Uptime         time.Duration
	PairsDetected  int
	TokensAnalyzed int
	TokensBought   int
	OpenPositions  int
	Totals         domain.PortfolioTotals
}

// Notifier emits one-way structured trading events. Implementations
// must swallow delivery failures: a dead notification channel never
// propagates back into the trading logic.
type Notifier interface {
	TokenDetected(ctx context.Context, token *domain.TokenInfo, pair domain.Address)
	VerdictReady(ctx context.Context, verdict *domain.Verdict, symbol string)
	BuyAttempt(ctx context.Context, token *domain.TokenInfo, amountBNB float64)
	BuyResult(ctx context.Context, report *BuyReport)
	SaleExecuted(ctx context.Context, report *SaleReport)
	PositionClosed(ctx context.Context, report *CloseReport)
	Summary(ctx context.Context, report *SummaryReport)
	Error(ctx context.Context, scope string, err error)
}
