package app

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairsniper/config"
	"pairsniper/internal/domain"
	"pairsniper/internal/ledger"
	"pairsniper/internal/policy"
	"pairsniper/internal/ports"
	"pairsniper/internal/profit"
	"pairsniper/internal/security"
)

// --- mocks ---

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockStore struct{}

func (m *mockStore) Save(ctx context.Context, state *domain.LedgerState) error { return nil }
func (m *mockStore) Load(ctx context.Context) (*domain.LedgerState, error) {
	return domain.NewLedgerState(), nil
}

type mockRisk struct{ data *domain.TokenSecurityData }

func (m *mockRisk) TokenSecurity(ctx context.Context, token domain.Address) (*domain.TokenSecurityData, error) {
	return m.data, nil
}

type mockOracle struct{}

func (m *mockOracle) NativeUSDPrice(ctx context.Context) float64 { return 300 }

type mockNotifier struct {
	mu           sync.Mutex
	detected     int
	verdicts     int
	attempts     int
	buys         []*ports.BuyReport
	sales        []*ports.SaleReport
	closes       []*ports.CloseReport
	summaries    int
	errorsScoped []string
}

func (m *mockNotifier) TokenDetected(ctx context.Context, token *domain.TokenInfo, pair domain.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detected++
}
func (m *mockNotifier) VerdictReady(ctx context.Context, verdict *domain.Verdict, symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts++
}
func (m *mockNotifier) BuyAttempt(ctx context.Context, token *domain.TokenInfo, amountBNB float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
}
func (m *mockNotifier) BuyResult(ctx context.Context, report *ports.BuyReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buys = append(m.buys, report)
}
func (m *mockNotifier) SaleExecuted(ctx context.Context, report *ports.SaleReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales = append(m.sales, report)
}
func (m *mockNotifier) PositionClosed(ctx context.Context, report *ports.CloseReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes = append(m.closes, report)
}
func (m *mockNotifier) Summary(ctx context.Context, report *ports.SummaryReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries++
}
func (m *mockNotifier) Error(ctx context.Context, scope string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorsScoped = append(m.errorsScoped, scope)
}

type mockChain struct {
	mu sync.Mutex

	head     uint64
	headErr  error
	events   []*domain.PairEvent
	eventErr error

	metadata map[domain.Address]*domain.TokenInfo
	metaGate chan struct{}
	balance  float64

	reserves    *domain.PairReserves
	reservesErr error
	quotes      map[domain.Address][]*big.Int

	buyResult  *ports.SwapResult
	buyErr     error
	buyCalls   int
	buyCtxErr  error
	buyEntered chan struct{}
	buyGate    chan struct{}

	sellResult  *ports.SwapResult
	sellErr     error
	sellAmounts []float64
	sellCtxErr  error
}

func (m *mockChain) IsConnected(ctx context.Context) bool { return true }
func (m *mockChain) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return m.head, m.headErr
}
func (m *mockChain) BNBBalance(ctx context.Context) (float64, error) { return m.balance, nil }
func (m *mockChain) TokenBalance(ctx context.Context, token domain.Address) (float64, error) {
	return 0, nil
}
func (m *mockChain) GetTokenMetadata(ctx context.Context, token domain.Address) (*domain.TokenInfo, error) {
	if m.metaGate != nil {
		<-m.metaGate
	}
	if info, ok := m.metadata[token]; ok {
		return info, nil
	}
	return nil, ports.ErrNotFound
}
func (m *mockChain) GetReserves(ctx context.Context, pair domain.Address) (*domain.PairReserves, error) {
	return m.reserves, m.reservesErr
}
func (m *mockChain) QuoteAmountsOut(ctx context.Context, amountIn *big.Int, path []domain.Address) ([]*big.Int, error) {
	if out, ok := m.quotes[path[0]]; ok {
		return out, nil
	}
	return nil, ports.ErrDegenerateQuote
}
func (m *mockChain) BuyTokens(ctx context.Context, token domain.Address, bnbAmount, slippagePct float64) (*ports.SwapResult, error) {
	m.mu.Lock()
	m.buyCalls++
	m.buyCtxErr = ctx.Err()
	m.mu.Unlock()
	if m.buyEntered != nil {
		m.buyEntered <- struct{}{}
	}
	if m.buyGate != nil {
		<-m.buyGate
	}
	return m.buyResult, m.buyErr
}
func (m *mockChain) SellTokens(ctx context.Context, token domain.Address, tokenAmount, slippagePct float64) (*ports.SwapResult, error) {
	m.mu.Lock()
	m.sellAmounts = append(m.sellAmounts, tokenAmount)
	m.sellCtxErr = ctx.Err()
	m.mu.Unlock()
	return m.sellResult, m.sellErr
}
func (m *mockChain) PairsCreated(ctx context.Context, fromBlock, toBlock uint64) ([]*domain.PairEvent, error) {
	return m.events, m.eventErr
}
func (m *mockChain) WalletAddress() domain.Address {
	return domain.MustAddress("0x9999999999999999999999999999999999999999")
}

// --- fixtures ---

var (
	wbnb      = domain.MustAddress("0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c")
	tokenAddr = domain.MustAddress("0x1111111111111111111111111111111111111111")
	pairAddr  = domain.MustAddress("0x2222222222222222222222222222222222222222")
)

func testConfig() *config.Config {
	return &config.Config{
		WBNBAddress:          wbnb,
		BuyAmountBNB:         0.05,
		MaxBuyAmountBNB:      1.0,
		GasReserveBNB:        0.01,
		SlippagePct:          15,
		MaxPositions:         3,
		MinLiquidityUSD:      10000,
		MaxRoundTripImpact:   0.90,
		HoneypotProbeBNB:     0.01,
		MaxBuyTaxPct:         10,
		MaxSellTaxPct:        10,
		MinHolders:           10,
		MaxHolderShare:       0.20,
		MaxCreatorShare:      0.10,
		DustThreshold:        1e-9,
		CallTimeout:          5 * time.Second,
		PairPollInterval:     time.Second,
		PositionPollInterval: time.Second,
		SummaryInterval:      time.Hour,
		LoopErrorBackoff:     10 * time.Millisecond,
	}
}

// newHealthyChain quotes a viable round trip and a 100 BNB pool priced
// at 1e-4 BNB per token.
func newHealthyChain() *mockChain {
	return &mockChain{
		head:    1000,
		balance: 1.0,
		metadata: map[domain.Address]*domain.TokenInfo{
			tokenAddr: {Address: tokenAddr, Name: "Test Token", Symbol: "TEST", Decimals: 18},
		},
		reserves: &domain.PairReserves{
			Token0:   wbnb,
			Token1:   tokenAddr,
			Reserve0: domain.ToWei(100),
			Reserve1: domain.ToUnits(1_000_000, 18),
		},
		quotes: map[domain.Address][]*big.Int{
			wbnb:      {domain.ToWei(0.01), domain.ToUnits(100, 18)},
			tokenAddr: {domain.ToUnits(100, 18), domain.ToWei(0.009)},
		},
		buyResult:  &ports.SwapResult{TxHash: "0xbuy", AmountOut: 1000, GasCostBNB: 0.001},
		sellResult: &ports.SwapResult{TxHash: "0xsell", AmountOut: 0.09, GasCostBNB: 0.001},
	}
}

func cleanRiskData() *domain.TokenSecurityData {
	return &domain.TokenSecurityData{
		IsOpenSource: true,
		BuyTaxPct:    2,
		SellTaxPct:   2,
		HolderCount:  100,
	}
}

type testHarness struct {
	service  *SniperService
	chain    *mockChain
	ledger   *ledger.Ledger
	notifier *mockNotifier
	policy   *policy.TradingPolicy
}

func newHarness(t *testing.T, cfg *config.Config, chain *mockChain, risk *domain.TokenSecurityData) *testHarness {
	t.Helper()
	logger := &mockLogger{}

	lgr, err := ledger.Open(context.Background(), &mockStore{}, nil, cfg.DustThreshold, logger)
	require.NoError(t, err)

	evaluator := security.NewEvaluator(chain, &mockRisk{data: risk}, nil, &mockOracle{},
		cfg.References(), security.Thresholds{
			MaxBuyTaxPct:          cfg.MaxBuyTaxPct,
			MaxSellTaxPct:         cfg.MaxSellTaxPct,
			MinHolders:            cfg.MinHolders,
			MinLiquidityUSD:       cfg.MinLiquidityUSD,
			MaxHolderShare:        cfg.MaxHolderShare,
			MaxCreatorShare:       cfg.MaxCreatorShare,
			RequireVerified:       false,
			WhitelistCountsAsOpen: true,
			HoneypotProbeBNB:      cfg.HoneypotProbeBNB,
			MaxRoundTripImpact:    cfg.MaxRoundTripImpact,
		}, logger)

	engine := profit.NewEngine(
		[]profit.Tier{{Multiplier: 2.0, Percentage: 0.25}, {Multiplier: 5.0, Percentage: 1.0}},
		0.30, 4*time.Hour, cfg.DustThreshold)
	pol := policy.New(cfg.BuyAmountBNB, cfg.MaxBuyAmountBNB, 0.5, logger)
	notifier := &mockNotifier{}

	svc, err := NewSniperService(cfg, logger, chain, evaluator, lgr, engine, pol, notifier)
	require.NoError(t, err)
	return &testHarness{service: svc, chain: chain, ledger: lgr, notifier: notifier, policy: pol}
}

func listingEvent() *domain.PairEvent {
	return &domain.PairEvent{Pair: pairAddr, Token0: wbnb, Token1: tokenAddr, BlockNumber: 950}
}

func (h *testHarness) openPosition(t *testing.T) {
	t.Helper()
	token := domain.TokenInfo{Address: tokenAddr, Symbol: "TEST", Decimals: 18}
	pos, err := domain.NewPosition(token, pairAddr, 0.05, 1000, 0.001, "0xbuy", time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.NoError(t, h.ledger.Add(context.Background(), pos))
}

// --- tests ---

func TestNewSniperServiceRequiresDependencies(t *testing.T) {
	_, err := NewSniperService(nil, nil, nil, nil, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestScanPairsAdvancesCursorAndDedupes(t *testing.T) {
	// A pair with no reference side is counted but never traded, which
	// keeps this test focused on the scan bookkeeping.
	other := domain.MustAddress("0x3333333333333333333333333333333333333333")
	chain := newHealthyChain()
	chain.events = []*domain.PairEvent{
		{Pair: pairAddr, Token0: tokenAddr, Token1: other, BlockNumber: 950},
	}
	h := newHarness(t, testConfig(), chain, cleanRiskData())
	h.service.lastBlock = 900

	require.NoError(t, h.service.scanPairs(context.Background()))
	assert.Equal(t, uint64(1000), h.service.lastBlock)
	assert.Equal(t, 1, h.service.Status().PairsDetected)

	// Same event again: already seen, not recounted.
	chain.head = 1010
	require.NoError(t, h.service.scanPairs(context.Background()))
	assert.Equal(t, uint64(1010), h.service.lastBlock)
	assert.Equal(t, 1, h.service.Status().PairsDetected)
}

func TestScanPairsCapsBlockSpan(t *testing.T) {
	chain := newHealthyChain()
	chain.head = 10_000
	h := newHarness(t, testConfig(), chain, cleanRiskData())
	h.service.lastBlock = 100

	require.NoError(t, h.service.scanPairs(context.Background()))
	assert.Equal(t, uint64(101+maxBlockSpan), h.service.lastBlock)
}

func TestScanPairsKeepsCursorOnError(t *testing.T) {
	chain := newHealthyChain()
	chain.eventErr = errors.New("rpc down")
	h := newHarness(t, testConfig(), chain, cleanRiskData())
	h.service.lastBlock = 900

	err := h.service.scanPairs(context.Background())
	require.Error(t, err)
	assert.Equal(t, uint64(900), h.service.lastBlock)
}

func TestHandleCandidateBuysSafeToken(t *testing.T) {
	chain := newHealthyChain()
	h := newHarness(t, testConfig(), chain, cleanRiskData())

	h.service.handleCandidate(context.Background(), listingEvent())

	assert.Equal(t, 1, chain.buyCalls)
	assert.True(t, h.ledger.Has(tokenAddr))
	pos, ok := h.ledger.Get(tokenAddr)
	require.True(t, ok)
	assert.Equal(t, 0.05, pos.Investment)
	assert.Equal(t, float64(1000), pos.Remaining)

	assert.Equal(t, 1, h.notifier.detected)
	assert.Equal(t, 1, h.notifier.verdicts)
	assert.Equal(t, 1, h.notifier.attempts)
	require.Len(t, h.notifier.buys, 1)
	assert.Empty(t, h.notifier.buys[0].Err)

	stats := h.service.Status()
	assert.Equal(t, 1, stats.TokensAnalyzed)
	assert.Equal(t, 1, stats.TokensBought)
	assert.Equal(t, 1, stats.OpenPositions)
}

func TestHandleCandidateRejectsUnsafeToken(t *testing.T) {
	risk := cleanRiskData()
	risk.IsHoneypot = true
	chain := newHealthyChain()
	h := newHarness(t, testConfig(), chain, risk)

	h.service.handleCandidate(context.Background(), listingEvent())

	assert.Zero(t, chain.buyCalls)
	assert.False(t, h.ledger.Has(tokenAddr))
	assert.Equal(t, 1, h.notifier.verdicts)
	assert.Equal(t, 1, h.service.Status().TokensAnalyzed)
}

func TestHandleCandidateSkipsHeldToken(t *testing.T) {
	chain := newHealthyChain()
	h := newHarness(t, testConfig(), chain, cleanRiskData())
	h.openPosition(t)

	h.service.handleCandidate(context.Background(), listingEvent())
	assert.Zero(t, chain.buyCalls)
	assert.Zero(t, h.notifier.detected)
}

func TestBuyCandidateRespectsPositionLimit(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPositions = 1
	chain := newHealthyChain()
	h := newHarness(t, cfg, chain, cleanRiskData())
	h.openPosition(t)

	other := &domain.TokenInfo{
		Address:  domain.MustAddress("0x4444444444444444444444444444444444444444"),
		Symbol:   "OTHER",
		Decimals: 18,
	}
	h.service.buyCandidate(context.Background(), other, pairAddr)
	assert.Zero(t, chain.buyCalls)
}

func TestBuyCandidateRespectsGasReserve(t *testing.T) {
	chain := newHealthyChain()
	// Enough for the buy alone, not for buy plus reserve.
	chain.balance = 0.055
	h := newHarness(t, testConfig(), chain, cleanRiskData())

	token := &domain.TokenInfo{Address: tokenAddr, Symbol: "TEST", Decimals: 18}
	h.service.buyCandidate(context.Background(), token, pairAddr)
	assert.Zero(t, chain.buyCalls)
	assert.False(t, h.ledger.Has(tokenAddr))
}

func TestBuyCandidateReportsFailedBuy(t *testing.T) {
	chain := newHealthyChain()
	chain.buyResult = nil
	chain.buyErr = errors.New("execution reverted")
	h := newHarness(t, testConfig(), chain, cleanRiskData())

	token := &domain.TokenInfo{Address: tokenAddr, Symbol: "TEST", Decimals: 18}
	h.service.buyCandidate(context.Background(), token, pairAddr)

	assert.False(t, h.ledger.Has(tokenAddr))
	require.Len(t, h.notifier.buys, 1)
	assert.Contains(t, h.notifier.buys[0].Err, "reverted")
	assert.Zero(t, h.service.Status().TokensBought)
}

func TestScanPairsTracksCandidateHandlers(t *testing.T) {
	// A candidate still being screened must hold up the handler wait
	// group; shutdown relies on it to drain in-flight screenings before
	// the final flush.
	chain := newHealthyChain()
	chain.events = []*domain.PairEvent{listingEvent()}
	chain.metaGate = make(chan struct{})
	h := newHarness(t, testConfig(), chain, cleanRiskData())
	h.service.lastBlock = 900

	require.NoError(t, h.service.scanPairs(context.Background()))

	waited := make(chan struct{})
	go func() { h.service.handlers.Wait(); close(waited) }()
	select {
	case <-waited:
		t.Fatal("handler wait returned while a screening was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(chain.metaGate)
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("handler wait did not return after the screening finished")
	}
	assert.Equal(t, 1, h.notifier.detected)
	assert.True(t, h.ledger.Has(tokenAddr))
}

func TestBuyCandidateCompletesAfterRunContextCanceled(t *testing.T) {
	// Cancellation between the gates and the swap must not abandon the
	// purchase: the swap runs on its own context and the position is
	// still recorded.
	chain := newHealthyChain()
	h := newHarness(t, testConfig(), chain, cleanRiskData())

	runCtx, cancel := context.WithCancel(context.Background())
	cancel()

	token := &domain.TokenInfo{Address: tokenAddr, Symbol: "TEST", Decimals: 18}
	h.service.buyCandidate(runCtx, token, pairAddr)

	assert.Equal(t, 1, chain.buyCalls)
	assert.NoError(t, chain.buyCtxErr, "swap saw a canceled context")
	assert.True(t, h.ledger.Has(tokenAddr))
}

func TestSellCompletesAfterRunContextCanceled(t *testing.T) {
	chain := newHealthyChain()
	chain.reserves.Reserve1 = domain.ToUnits(500_000, 18)
	h := newHarness(t, testConfig(), chain, cleanRiskData())
	h.openPosition(t)

	runCtx, cancel := context.WithCancel(context.Background())
	cancel()

	pos, _ := h.ledger.Get(tokenAddr)
	require.NoError(t, h.service.tickPosition(runCtx, pos))

	assert.NoError(t, chain.sellCtxErr, "swap saw a canceled context")
	updated, ok := h.ledger.Get(tokenAddr)
	require.True(t, ok)
	assert.InDelta(t, 750, updated.Remaining, 1e-9)
	require.Len(t, updated.Sales, 1)
}

func TestConcurrentBuyCandidatesHonorPositionLimit(t *testing.T) {
	// With one slot left, a second candidate arriving while the first
	// buy is still in flight must be turned away at the gate.
	cfg := testConfig()
	cfg.MaxPositions = 1
	chain := newHealthyChain()
	chain.buyEntered = make(chan struct{}, 2)
	chain.buyGate = make(chan struct{})
	h := newHarness(t, cfg, chain, cleanRiskData())

	first := &domain.TokenInfo{Address: tokenAddr, Symbol: "AAA", Decimals: 18}
	second := &domain.TokenInfo{
		Address:  domain.MustAddress("0x4444444444444444444444444444444444444444"),
		Symbol:   "BBB",
		Decimals: 18,
	}

	firstDone := make(chan struct{})
	go func() {
		h.service.buyCandidate(context.Background(), first, pairAddr)
		close(firstDone)
	}()
	<-chain.buyEntered // the first buy holds the only slot

	secondDone := make(chan struct{})
	go func() {
		h.service.buyCandidate(context.Background(), second, pairAddr)
		close(secondDone)
	}()
	select {
	case <-chain.buyEntered:
		close(chain.buyGate)
		t.Fatal("second buy passed the gate while the first was in flight")
	case <-secondDone:
	}

	close(chain.buyGate)
	<-firstDone

	assert.Equal(t, 1, chain.buyCalls)
	assert.Equal(t, 1, h.ledger.OpenCount())
	assert.True(t, h.ledger.Has(first.Address))
}

func TestTickPositionMarksPrice(t *testing.T) {
	chain := newHealthyChain()
	// 100 BNB / 1,000,000 tokens: 1e-4, below the 2x tier from a 5e-5
	// entry... equal to 2x exactly, so shrink the pool's token side a
	// touch less. Here: use a pool that prices at 1.5x entry.
	chain.reserves.Reserve1 = domain.ToUnits(1_333_333, 18)
	h := newHarness(t, testConfig(), chain, cleanRiskData())
	h.openPosition(t)

	pos, _ := h.ledger.Get(tokenAddr)
	require.NoError(t, h.service.tickPosition(context.Background(), pos))

	updated, _ := h.ledger.Get(tokenAddr)
	assert.InDelta(t, 7.5e-5, updated.CurrentPrice, 1e-9)
	assert.Empty(t, chain.sellAmounts)
}

func TestTickPositionFiresTakeProfitTier(t *testing.T) {
	// Pool prices the token at 2e-4, 4x the 5e-5 entry: past the first
	// tier, short of the second.
	chain := newHealthyChain()
	chain.reserves.Reserve1 = domain.ToUnits(500_000, 18)
	h := newHarness(t, testConfig(), chain, cleanRiskData())
	h.openPosition(t)

	pos, _ := h.ledger.Get(tokenAddr)
	require.NoError(t, h.service.tickPosition(context.Background(), pos))

	require.Len(t, chain.sellAmounts, 1)
	assert.InDelta(t, 250, chain.sellAmounts[0], 1e-9)

	updated, ok := h.ledger.Get(tokenAddr)
	require.True(t, ok, "position stays open after a partial sale")
	assert.InDelta(t, 750, updated.Remaining, 1e-9)
	require.Len(t, updated.Sales, 1)
	assert.Equal(t, domain.TierReason(1), updated.Sales[0].Reason)

	require.Len(t, h.notifier.sales, 1)
	assert.Empty(t, h.notifier.closes)
}

func TestTickPositionClosesWhenSaleLeavesDust(t *testing.T) {
	// Pool prices the token at ~6.7x entry. The first tick sells the
	// first tier's 25%; the second tick fires the 100% tier, leaves
	// nothing behind and retires the position.
	chain := newHealthyChain()
	chain.reserves.Reserve1 = domain.ToUnits(300_000, 18)
	chain.sellResult = &ports.SwapResult{TxHash: "0xsell", AmountOut: 0.08, GasCostBNB: 0.001}
	h := newHarness(t, testConfig(), chain, cleanRiskData())
	h.openPosition(t)

	pos, _ := h.ledger.Get(tokenAddr)
	require.NoError(t, h.service.tickPosition(context.Background(), pos))
	require.Len(t, chain.sellAmounts, 1)
	assert.InDelta(t, 250, chain.sellAmounts[0], 1e-9)

	pos, ok := h.ledger.Get(tokenAddr)
	require.True(t, ok)
	require.NoError(t, h.service.tickPosition(context.Background(), pos))
	require.Len(t, chain.sellAmounts, 2)
	assert.InDelta(t, 750, chain.sellAmounts[1], 1e-9)
	assert.False(t, h.ledger.Has(tokenAddr))

	require.Len(t, h.notifier.closes, 1)
	report := h.notifier.closes[0]
	assert.True(t, report.Win)
	// Two sales of 0.08 BNB, 0.001 gas each, against 0.05 invested.
	assert.InDelta(t, 0.16-0.002-0.05, report.NetProfit, 1e-9)
	assert.Equal(t, domain.TierReason(2), report.Reason)

	// The realized profit compounds into the next buy.
	assert.Greater(t, h.policy.Amount(), 0.05)
}

func TestTickPositionSellFailureKeepsPosition(t *testing.T) {
	chain := newHealthyChain()
	chain.reserves.Reserve1 = domain.ToUnits(500_000, 18)
	chain.sellResult = nil
	chain.sellErr = errors.New("TRANSFER_FROM_FAILED")
	h := newHarness(t, testConfig(), chain, cleanRiskData())
	h.openPosition(t)

	pos, _ := h.ledger.Get(tokenAddr)
	err := h.service.tickPosition(context.Background(), pos)
	require.Error(t, err)

	updated, ok := h.ledger.Get(tokenAddr)
	require.True(t, ok)
	assert.InDelta(t, 1000, updated.Remaining, 1e-9)
	assert.Contains(t, h.notifier.errorsScoped, "sell TEST")
}

func TestTickPositionReservesErrorSurfaces(t *testing.T) {
	chain := newHealthyChain()
	chain.reserves = nil
	chain.reservesErr = errors.New("rpc down")
	h := newHarness(t, testConfig(), chain, cleanRiskData())
	h.openPosition(t)

	pos, _ := h.ledger.Get(tokenAddr)
	assert.Error(t, h.service.tickPosition(context.Background(), pos))
}

func TestEmitSummaryNotifies(t *testing.T) {
	h := newHarness(t, testConfig(), newHealthyChain(), cleanRiskData())
	h.service.startTime = time.Now()
	h.service.emitSummary(context.Background())
	assert.Equal(t, 1, h.notifier.summaries)
}
