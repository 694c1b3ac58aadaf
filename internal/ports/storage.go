package ports

import (
	"context"

	"pairsniper/internal/domain"
)

// LedgerStore persists the full ledger document (open positions plus
// portfolio totals) so a restart can resume without re-querying the
// chain for history.
type LedgerStore interface {
	// Save atomically rewrites the persisted document.
	Save(ctx context.Context, state *domain.LedgerState) error
	// Load reads the persisted document. A missing or corrupt document
	// yields an empty state and no error; persistence problems must
	// never stop the bot from starting.
	Load(ctx context.Context) (*domain.LedgerState, error)
}

// TradeArchive keeps a durable history of executed sales and closed
// positions for later analysis. Archive failures are logged and
// swallowed by callers; history is best-effort.
type TradeArchive interface {
	// RecordSale appends one executed sale.
	RecordSale(ctx context.Context, token domain.Address, symbol string, sale *domain.SaleRecord) error
	// RecordClose appends the closing summary of a position and
	// returns its assigned ID.
	RecordClose(ctx context.Context, trade *domain.ClosedTrade) (int64, error)
	// RecentCloses retrieves the most recent closed trades, newest
	// first, up to a limit.
	RecentCloses(ctx context.Context, limit int) ([]*domain.ClosedTrade, error)
}
