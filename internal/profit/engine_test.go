package profit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairsniper/internal/domain"
)

var (
	testEntry = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	testTiers = []Tier{
		{Multiplier: 2.0, Percentage: 0.25},
		{Multiplier: 5.0, Percentage: 0.30},
		{Multiplier: 10.0, Percentage: 0.50},
	}
)

func newEngine() *Engine {
	return NewEngine(testTiers, 0.30, 4*time.Hour, 1e-9)
}

func newPosition(t *testing.T) *domain.Position {
	t.Helper()
	token := domain.TokenInfo{
		Address:  domain.MustAddress("0x1111111111111111111111111111111111111111"),
		Symbol:   "TEST",
		Decimals: 18,
	}
	pos, err := domain.NewPosition(token, "", 0.1, 1000, 0.001, "0xabc", testEntry)
	require.NoError(t, err)
	return pos
}

// setPrice marks the position the way the ledger does on a tick.
func setPrice(pos *domain.Position, multiple float64) {
	pos.CurrentPrice = pos.EntryPrice * multiple
	pos.CurrentValue = pos.Remaining * pos.CurrentPrice
	if pos.CurrentPrice > pos.PeakPrice {
		pos.PeakPrice = pos.CurrentPrice
	}
}

func TestDecideHold(t *testing.T) {
	pos := newPosition(t)
	setPrice(pos, 1.5)

	action := newEngine().Decide(pos, testEntry.Add(time.Hour))
	assert.Equal(t, ActionNone, action.Kind)
}

func TestDecideFirstTier(t *testing.T) {
	pos := newPosition(t)
	setPrice(pos, 2.1)

	action := newEngine().Decide(pos, testEntry.Add(time.Hour))
	assert.Equal(t, ActionSell, action.Kind)
	assert.Equal(t, domain.TierReason(1), action.Reason)
	assert.Equal(t, 0.25, action.Percentage)
}

func TestDecideTierFiresOnce(t *testing.T) {
	pos := newPosition(t)
	setPrice(pos, 2.1)
	pos.Sales = append(pos.Sales, domain.SaleRecord{Reason: domain.TierReason(1), TokensSold: 250})
	pos.Remaining = 750

	action := newEngine().Decide(pos, testEntry.Add(time.Hour))
	assert.Equal(t, ActionNone, action.Kind, "a fired tier must not fire again")
}

func TestDecideGapUpFiresLowestUnfiredTier(t *testing.T) {
	// Price jumps straight past tiers 1 and 2: only the lowest unfired
	// tier fires this tick, the next one gets the following tick.
	pos := newPosition(t)
	setPrice(pos, 6.0)

	action := newEngine().Decide(pos, testEntry.Add(time.Hour))
	assert.Equal(t, domain.TierReason(1), action.Reason)

	pos.Sales = append(pos.Sales, domain.SaleRecord{Reason: domain.TierReason(1), TokensSold: 250})
	pos.Remaining = 750
	action = newEngine().Decide(pos, testEntry.Add(time.Hour))
	assert.Equal(t, domain.TierReason(2), action.Reason)
	assert.Equal(t, 0.30, action.Percentage)
}

func TestDecideTrailingStop(t *testing.T) {
	pos := newPosition(t)
	setPrice(pos, 1.8) // peak below tier 1, position was profitable
	setPrice(pos, 1.2) // retraces more than 30% from peak: 1.2 < 1.8*0.7

	action := newEngine().Decide(pos, testEntry.Add(time.Hour))
	assert.Equal(t, ActionSell, action.Kind)
	assert.Equal(t, domain.SellReasonTrailingStop, action.Reason)
	assert.Equal(t, 1.0, action.Percentage)
}

func TestDecideTrailingNotArmedBelowEntry(t *testing.T) {
	// A position that only ever fell must not stop out on the trail;
	// the max-hold rule is its exit.
	pos := newPosition(t)
	setPrice(pos, 0.5)

	action := newEngine().Decide(pos, testEntry.Add(time.Hour))
	assert.Equal(t, ActionNone, action.Kind)
}

func TestDecideTrailingExactBoundary(t *testing.T) {
	pos := newPosition(t)
	setPrice(pos, 2.0)
	pos.Sales = append(pos.Sales, domain.SaleRecord{Reason: domain.TierReason(1), TokensSold: 250})
	pos.Remaining = 750

	// Exactly at the stop line triggers.
	pos.CurrentPrice = pos.PeakPrice * 0.7
	action := newEngine().Decide(pos, testEntry.Add(time.Hour))
	assert.Equal(t, domain.SellReasonTrailingStop, action.Reason)

	// A hair above it does not.
	pos.CurrentPrice = pos.PeakPrice*0.7 + 1e-12
	action = newEngine().Decide(pos, testEntry.Add(time.Hour))
	assert.Equal(t, ActionNone, action.Kind)
}

func TestDecideTierBeatsTrailing(t *testing.T) {
	// Price is both past an unfired tier and below the trail line
	// (possible after a spike): the tier wins the tick.
	pos := newPosition(t)
	setPrice(pos, 10.0)
	setPrice(pos, 2.5)

	action := newEngine().Decide(pos, testEntry.Add(time.Hour))
	assert.Equal(t, domain.TierReason(1), action.Reason)
}

func TestDecideMaxHold(t *testing.T) {
	pos := newPosition(t)
	setPrice(pos, 0.8)

	action := newEngine().Decide(pos, testEntry.Add(5*time.Hour))
	assert.Equal(t, ActionSell, action.Kind)
	assert.Equal(t, domain.SellReasonMaxHold, action.Reason)
	assert.Equal(t, 1.0, action.Percentage)
}

func TestDecideMaxHoldLosesToTrailing(t *testing.T) {
	pos := newPosition(t)
	setPrice(pos, 2.0)
	pos.Sales = append(pos.Sales, domain.SaleRecord{Reason: domain.TierReason(1), TokensSold: 250})
	pos.Remaining = 750
	setPrice(pos, 1.2)

	action := newEngine().Decide(pos, testEntry.Add(6*time.Hour))
	assert.Equal(t, domain.SellReasonTrailingStop, action.Reason)
}

func TestDecideDustCloses(t *testing.T) {
	pos := newPosition(t)
	pos.Remaining = 1e-12
	setPrice(pos, 3.0)

	action := newEngine().Decide(pos, testEntry.Add(time.Minute))
	assert.Equal(t, ActionClose, action.Kind)
	assert.Equal(t, domain.SellReasonDust, action.Reason)
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "hold", Action{}.String())
	assert.Equal(t, "sell 25% (take_profit_tier_1)",
		Action{Kind: ActionSell, Reason: domain.TierReason(1), Percentage: 0.25}.String())
	assert.Equal(t, "close (dust_close)",
		Action{Kind: ActionClose, Reason: domain.SellReasonDust}.String())
}
