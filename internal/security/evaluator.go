package security

import (
	"context"
	"fmt"
	"sync"

	"pairsniper/internal/domain"
	"pairsniper/internal/ports"
)

// Thresholds are the configurable rejection limits applied during an
// evaluation.
type Thresholds struct {
	MaxBuyTaxPct          float64
	MaxSellTaxPct         float64
	MinHolders            int
	MinLiquidityUSD       float64
	MaxHolderShare        float64 // largest plain wallet, fraction of supply
	MaxCreatorShare       float64 // creator holdings, fraction of supply
	RequireVerified       bool
	RequireRenounced      bool
	WhitelistCountsAsOpen bool
	HoneypotProbeBNB      float64
	MaxRoundTripImpact    float64 // fraction lost across buy+sell, 0..1
}

// Evaluator runs the full security screen for one token candidate.
//
// Two checks are load-bearing and block the buy when they cannot run:
// the risk-API screen and the round-trip simulation. The remaining
// checks refine the decision; when their data source is down they log
// and step aside, blocking only on an actual negative finding.
type Evaluator struct {
	chain      ports.ChainGateway
	risk       ports.RiskDataProvider
	verifier   ports.ContractVerifier
	oracle     ports.PriceOracle
	refs       domain.ReferenceSet
	thresholds Thresholds
	logger     ports.Logger
}

// NewEvaluator wires the evaluator. verifier may be nil when no
// source-verification backend is configured; the verification check
// then relies on risk-API data alone.
func NewEvaluator(
	chain ports.ChainGateway,
	risk ports.RiskDataProvider,
	verifier ports.ContractVerifier,
	oracle ports.PriceOracle,
	refs domain.ReferenceSet,
	thresholds Thresholds,
	logger ports.Logger,
) *Evaluator {
	return &Evaluator{
		chain:      chain,
		risk:       risk,
		verifier:   verifier,
		oracle:     oracle,
		refs:       refs,
		thresholds: thresholds,
		logger:     logger,
	}
}

// riskFetch memoizes the risk-API call for one evaluation so every
// check that needs the same report shares a single request.
type riskFetch struct {
	once sync.Once
	fn   func() (*domain.TokenSecurityData, error)
	data *domain.TokenSecurityData
	err  error
}

func (f *riskFetch) get() (*domain.TokenSecurityData, error) {
	f.once.Do(func() {
		f.data, f.err = f.fn()
	})
	return f.data, f.err
}

// hardChecks cannot be skipped: an error here blocks the buy just like
// a negative finding does.
var hardChecks = map[domain.CheckName]bool{
	domain.CheckRiskAPI:   true,
	domain.CheckRoundTrip: true,
}

// Evaluate runs every check concurrently and aggregates the verdict.
// The returned verdict is always non-nil; the error is reserved for
// context cancellation.
func (e *Evaluator) Evaluate(ctx context.Context, token *domain.TokenInfo, pair domain.Address) (*domain.Verdict, error) {
	op := "Evaluate"
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrContextCanceled, ctx.Err())
	}

	fetch := &riskFetch{fn: func() (*domain.TokenSecurityData, error) {
		return e.risk.TokenSecurity(ctx, token.Address)
	}}

	checks := []struct {
		name domain.CheckName
		run  func(ctx context.Context) domain.CheckOutcome
	}{
		{domain.CheckRiskAPI, func(ctx context.Context) domain.CheckOutcome { return e.checkRiskAPI(ctx, fetch) }},
		{domain.CheckRoundTrip, func(ctx context.Context) domain.CheckOutcome { return e.checkRoundTrip(ctx, token) }},
		{domain.CheckVerification, func(ctx context.Context) domain.CheckOutcome { return e.checkVerification(ctx, token, fetch) }},
		{domain.CheckLiquidity, func(ctx context.Context) domain.CheckOutcome { return e.checkLiquidity(ctx, pair) }},
		{domain.CheckHolders, func(ctx context.Context) domain.CheckOutcome { return e.checkHolders(ctx, fetch) }},
		{domain.CheckOwnership, func(ctx context.Context) domain.CheckOutcome { return e.checkOwnership(ctx, fetch) }},
		{domain.CheckTaxes, func(ctx context.Context) domain.CheckOutcome { return e.checkTaxes(ctx, fetch) }},
		{domain.CheckWhales, func(ctx context.Context) domain.CheckOutcome { return e.checkWhales(ctx, fetch) }},
		{domain.CheckDevWallets, func(ctx context.Context) domain.CheckOutcome { return e.checkDevWallets(ctx, fetch) }},
		{domain.CheckRugPatterns, func(ctx context.Context) domain.CheckOutcome { return e.checkRugPatterns(ctx, fetch) }},
	}

	// Results are joined positionally so one panicking or slow check
	// can never shift another check's slot.
	outcomes := make([]domain.CheckOutcome, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, name domain.CheckName, run func(ctx context.Context) domain.CheckOutcome) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = domain.CheckErrored(name, fmt.Errorf("check panicked: %v", r))
				}
			}()
			outcomes[i] = run(ctx)
		}(i, check.name, check.run)
	}
	wg.Wait()

	verdict := &domain.Verdict{Token: token.Address, Checks: outcomes}
	for _, out := range outcomes {
		switch out.Status {
		case domain.CheckFailed:
			verdict.FailedReasons = append(verdict.FailedReasons, out.Reasons...)
		case domain.CheckUnavailable:
			if hardChecks[out.Check] {
				verdict.FailedReasons = append(verdict.FailedReasons,
					fmt.Sprintf("%s could not run: %v", out.Check, out.Cause))
			} else {
				e.logger.Warn(ctx, "Supplementary check unavailable", map[string]interface{}{
					"check": string(out.Check),
					"token": string(token.Address),
					"cause": out.Cause.Error(),
				})
			}
		}
	}
	verdict.IsSafe = len(verdict.FailedReasons) == 0

	e.logger.Info(ctx, "Security evaluation complete", map[string]interface{}{
		"token":   string(token.Address),
		"symbol":  token.Symbol,
		"is_safe": verdict.IsSafe,
		"reasons": len(verdict.FailedReasons),
	})
	return verdict, nil
}

// checkRiskAPI screens the provider's hard red flags.
func (e *Evaluator) checkRiskAPI(ctx context.Context, fetch *riskFetch) domain.CheckOutcome {
	data, err := fetch.get()
	if err != nil {
		return domain.CheckErrored(domain.CheckRiskAPI, err)
	}
	var reasons []string
	if data.IsHoneypot {
		reasons = append(reasons, "honeypot detected")
	}
	if data.IsBlacklisted {
		reasons = append(reasons, "blacklist mechanism present")
	}
	if len(reasons) > 0 {
		return domain.CheckNegative(domain.CheckRiskAPI, reasons...)
	}
	return domain.CheckPassed(domain.CheckRiskAPI)
}

// checkRoundTrip quotes a probe buy and the immediate sell of its
// output. No funds move; an exit that loses more than the configured
// fraction marks the token untradeable.
func (e *Evaluator) checkRoundTrip(ctx context.Context, token *domain.TokenInfo) domain.CheckOutcome {
	probe := domain.ToWei(e.thresholds.HoneypotProbeBNB)

	buyPath := []domain.Address{e.refs.WrappedNative, token.Address}
	buyAmounts, err := e.chain.QuoteAmountsOut(ctx, probe, buyPath)
	if err != nil {
		return domain.CheckErrored(domain.CheckRoundTrip, fmt.Errorf("buy quote: %w", err))
	}
	if len(buyAmounts) != len(buyPath) {
		return domain.CheckErrored(domain.CheckRoundTrip,
			fmt.Errorf("buy quote: %w: %d amounts for %d hops", ports.ErrDegenerateQuote, len(buyAmounts), len(buyPath)))
	}
	tokensOut := buyAmounts[len(buyAmounts)-1]
	if tokensOut.Sign() <= 0 {
		return domain.CheckNegative(domain.CheckRoundTrip, "buy quote returns zero tokens")
	}

	sellPath := []domain.Address{token.Address, e.refs.WrappedNative}
	sellAmounts, err := e.chain.QuoteAmountsOut(ctx, tokensOut, sellPath)
	if err != nil {
		return domain.CheckErrored(domain.CheckRoundTrip, fmt.Errorf("sell quote: %w", err))
	}
	if len(sellAmounts) != len(sellPath) {
		return domain.CheckErrored(domain.CheckRoundTrip,
			fmt.Errorf("sell quote: %w: %d amounts for %d hops", ports.ErrDegenerateQuote, len(sellAmounts), len(sellPath)))
	}
	bnbBack := domain.FromWei(sellAmounts[len(sellAmounts)-1])

	impact := 1 - bnbBack/e.thresholds.HoneypotProbeBNB
	if impact > e.thresholds.MaxRoundTripImpact {
		return domain.CheckNegative(domain.CheckRoundTrip,
			fmt.Sprintf("round-trip simulation loses %.1f%% of the probe", impact*100))
	}
	return domain.CheckPassed(domain.CheckRoundTrip)
}

// checkVerification accepts the risk provider's open-source flag first
// and only then consults the source-verification backend.
func (e *Evaluator) checkVerification(ctx context.Context, token *domain.TokenInfo, fetch *riskFetch) domain.CheckOutcome {
	if !e.thresholds.RequireVerified {
		return domain.CheckPassed(domain.CheckVerification)
	}

	if data, err := fetch.get(); err == nil {
		if data.IsOpenSource {
			return domain.CheckPassed(domain.CheckVerification)
		}
		if data.IsWhitelisted && e.thresholds.WhitelistCountsAsOpen {
			return domain.CheckPassed(domain.CheckVerification)
		}
	}

	if e.verifier == nil {
		return domain.CheckNegative(domain.CheckVerification, "contract source is not verified")
	}
	result, err := e.verifier.IsVerified(ctx, token.Address)
	if err != nil {
		return domain.CheckErrored(domain.CheckVerification, err)
	}
	if !result.Verified {
		return domain.CheckNegative(domain.CheckVerification, "contract source is not verified")
	}
	return domain.CheckPassed(domain.CheckVerification)
}

// checkLiquidity values the pool at twice its reference side in USD.
func (e *Evaluator) checkLiquidity(ctx context.Context, pair domain.Address) domain.CheckOutcome {
	reserves, err := e.chain.GetReserves(ctx, pair)
	if err != nil {
		return domain.CheckErrored(domain.CheckLiquidity, err)
	}
	native, ok := domain.NativeReserve(reserves, e.refs.WrappedNative)
	if !ok {
		return domain.CheckNegative(domain.CheckLiquidity, "pool has no wrapped-native side to value")
	}

	liquidityUSD := 2 * native * e.oracle.NativeUSDPrice(ctx)
	if liquidityUSD < e.thresholds.MinLiquidityUSD {
		return domain.CheckNegative(domain.CheckLiquidity,
			fmt.Sprintf("liquidity $%.0f below minimum $%.0f", liquidityUSD, e.thresholds.MinLiquidityUSD))
	}
	return domain.CheckPassed(domain.CheckLiquidity)
}

func (e *Evaluator) checkHolders(ctx context.Context, fetch *riskFetch) domain.CheckOutcome {
	data, err := fetch.get()
	if err != nil {
		return domain.CheckErrored(domain.CheckHolders, err)
	}
	if data.HolderCount < e.thresholds.MinHolders {
		return domain.CheckNegative(domain.CheckHolders,
			fmt.Sprintf("only %d holders, minimum is %d", data.HolderCount, e.thresholds.MinHolders))
	}
	return domain.CheckPassed(domain.CheckHolders)
}

func (e *Evaluator) checkOwnership(ctx context.Context, fetch *riskFetch) domain.CheckOutcome {
	data, err := fetch.get()
	if err != nil {
		return domain.CheckErrored(domain.CheckOwnership, err)
	}
	var reasons []string
	if data.CanTakeBackOwnership {
		reasons = append(reasons, "ownership can be reclaimed after renouncement")
	}
	if data.HiddenOwner {
		reasons = append(reasons, "hidden owner detected")
	}
	if e.thresholds.RequireRenounced && !data.OwnershipRenounced() {
		reasons = append(reasons, "ownership has not been renounced")
	}
	if len(reasons) > 0 {
		return domain.CheckNegative(domain.CheckOwnership, reasons...)
	}
	return domain.CheckPassed(domain.CheckOwnership)
}

func (e *Evaluator) checkTaxes(ctx context.Context, fetch *riskFetch) domain.CheckOutcome {
	data, err := fetch.get()
	if err != nil {
		return domain.CheckErrored(domain.CheckTaxes, err)
	}
	var reasons []string
	if data.BuyTaxPct > e.thresholds.MaxBuyTaxPct {
		reasons = append(reasons, fmt.Sprintf("buy tax %.1f%% above limit %.1f%%", data.BuyTaxPct, e.thresholds.MaxBuyTaxPct))
	}
	if data.SellTaxPct > e.thresholds.MaxSellTaxPct {
		reasons = append(reasons, fmt.Sprintf("sell tax %.1f%% above limit %.1f%%", data.SellTaxPct, e.thresholds.MaxSellTaxPct))
	}
	if len(reasons) > 0 {
		return domain.CheckNegative(domain.CheckTaxes, reasons...)
	}
	return domain.CheckPassed(domain.CheckTaxes)
}

func (e *Evaluator) checkWhales(ctx context.Context, fetch *riskFetch) domain.CheckOutcome {
	data, err := fetch.get()
	if err != nil {
		return domain.CheckErrored(domain.CheckWhales, err)
	}
	largest := data.LargestPlainHolder()
	if largest > e.thresholds.MaxHolderShare {
		return domain.CheckNegative(domain.CheckWhales,
			fmt.Sprintf("largest wallet holds %.1f%% of supply, limit is %.1f%%",
				largest*100, e.thresholds.MaxHolderShare*100))
	}
	return domain.CheckPassed(domain.CheckWhales)
}

func (e *Evaluator) checkDevWallets(ctx context.Context, fetch *riskFetch) domain.CheckOutcome {
	data, err := fetch.get()
	if err != nil {
		return domain.CheckErrored(domain.CheckDevWallets, err)
	}
	if data.CreatorOwns > e.thresholds.MaxCreatorShare {
		return domain.CheckNegative(domain.CheckDevWallets,
			fmt.Sprintf("creator holds %.1f%% of supply, limit is %.1f%%",
				data.CreatorOwns*100, e.thresholds.MaxCreatorShare*100))
	}
	return domain.CheckPassed(domain.CheckDevWallets)
}

func (e *Evaluator) checkRugPatterns(ctx context.Context, fetch *riskFetch) domain.CheckOutcome {
	data, err := fetch.get()
	if err != nil {
		return domain.CheckErrored(domain.CheckRugPatterns, err)
	}
	var reasons []string
	if data.IsMintable {
		reasons = append(reasons, "supply is mintable")
	}
	if data.SelfDestruct {
		reasons = append(reasons, "selfdestruct present in contract")
	}
	if data.IsProxy {
		reasons = append(reasons, "contract is an upgradeable proxy")
	}
	if len(reasons) > 0 {
		return domain.CheckNegative(domain.CheckRugPatterns, reasons...)
	}
	return domain.CheckPassed(domain.CheckRugPatterns)
}
