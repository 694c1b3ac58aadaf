package domain

import "time"

// ClosedTrade is the archive record written when a position fully
// closes. The win/loss flag compares realized net proceeds against the
// initial investment; unrealized swings mid-hold never count.
type ClosedTrade struct {
	ID          int64
	Token       Address
	Symbol      string
	Investment  float64
	NetProceeds float64
	NetProfit   float64
	EntryTime   time.Time
	ExitTime    time.Time
	ExitReason  SellReason
	SaleCount   int
	Win         bool
}
