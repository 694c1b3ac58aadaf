package evmclient

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"pairsniper/internal/domain"
	"pairsniper/internal/ports"
)

const (
	swapGasLimit    = 350_000
	approveGasLimit = 100_000
	swapDeadline    = 5 * time.Minute

	receiptPollInterval = 2 * time.Second
)

var (
	gweiWei          = big.NewInt(1_000_000_000)
	fallbackGasPrice = new(big.Int).Mul(big.NewInt(5), gweiWei)

	// Unlimited approval so each token only pays the approve gas once.
	maxApproval = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// gasPrice returns the node's suggested price scaled by the configured
// multiplier and clamped to the configured ceiling. A failed suggestion
// falls back to a flat 5 gwei, which clears on BSC in normal conditions.
func (c *Client) gasPrice(ctx context.Context, eth *ethclient.Client) *big.Int {
	suggested, err := eth.SuggestGasPrice(ctx)
	if err != nil || suggested == nil || suggested.Sign() <= 0 {
		c.logger.Warn(ctx, "Gas price suggestion failed, using fallback", map[string]interface{}{
			"fallback_gwei": 5,
		})
		suggested = new(big.Int).Set(fallbackGasPrice)
	}

	scaled := new(big.Float).Mul(new(big.Float).SetInt(suggested), big.NewFloat(c.cfg.GasPriceMultiplier))
	price, _ := scaled.Int(nil)

	cap := new(big.Float).Mul(big.NewFloat(c.cfg.MaxGasPriceGwei), new(big.Float).SetInt(gweiWei))
	capInt, _ := cap.Int(nil)
	if capInt.Sign() > 0 && price.Cmp(capInt) > 0 {
		price = capInt
	}
	return price
}

// sendTx signs and submits one legacy transaction and waits for its
// receipt. Submission is never retried: a dropped or reverted trade
// must surface to the caller, not be replayed.
func (c *Client) sendTx(ctx context.Context, to common.Address, value *big.Int, data []byte, gasLimit uint64) (*types.Receipt, *big.Int, error) {
	eth, err := c.client(ctx)
	if err != nil {
		return nil, nil, err
	}

	nonce, err := eth.PendingNonceAt(ctx, c.wallet)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: nonce: %w", ports.ErrTransientNetwork, err)
	}
	price := c.gasPrice(ctx, eth)

	tx := types.NewTransaction(nonce, to, value, gasLimit, price, data)
	c.mu.Lock()
	chainID := c.chainID
	c.mu.Unlock()
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.privKey)
	if err != nil {
		return nil, nil, fmt.Errorf("sign: %w", err)
	}

	if err := eth.SendTransaction(ctx, signed); err != nil {
		return nil, nil, fmt.Errorf("%w: submit: %w", ports.ErrChainExecution, err)
	}
	c.logger.Info(ctx, "Transaction submitted", map[string]interface{}{
		"tx_hash":        signed.Hash().Hex(),
		"gas_price_gwei": new(big.Int).Div(price, gweiWei).String(),
		"gas_limit":      gasLimit,
	})

	receipt, err := c.waitReceipt(ctx, eth, signed.Hash())
	if err != nil {
		return nil, nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, price, fmt.Errorf("%w: transaction %s reverted", ports.ErrChainExecution, signed.Hash().Hex())
	}
	return receipt, price, nil
}

func (c *Client) waitReceipt(ctx context.Context, eth *ethclient.Client, hash common.Hash) (*types.Receipt, error) {
	deadline := time.Now().Add(c.cfg.ReceiptTimeout)
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := eth.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s not mined within %s", ports.ErrReceiptTimeout, hash.Hex(), c.cfg.ReceiptTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ports.ErrContextCanceled, ctx.Err())
		case <-ticker.C:
		}
	}
}

// BuyTokens swaps bnbAmount of BNB for the token and reports the
// tokens actually received, measured by balance delta so transfer
// taxes are reflected.
func (c *Client) BuyTokens(ctx context.Context, token domain.Address, bnbAmount, slippagePct float64) (*ports.SwapResult, error) {
	op := "BuyTokens"
	if bnbAmount <= 0 {
		return nil, fmt.Errorf("%s: %w: amount must be positive", op, ports.ErrInvalidInput)
	}
	if slippagePct <= 0 || slippagePct >= 100 {
		return nil, fmt.Errorf("%s: %w: slippage out of range", op, ports.ErrInvalidInput)
	}

	balance, err := c.BNBBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if balance < bnbAmount {
		return nil, fmt.Errorf("%s: %w: have %.6f BNB, need %.6f", op, ports.ErrInsufficientFunds, balance, bnbAmount)
	}

	bnbWei := domain.ToWei(bnbAmount)
	path := []domain.Address{c.cfg.WBNBAddress, token}
	amounts, err := c.QuoteAmountsOut(ctx, bnbWei, path)
	if err != nil {
		return nil, fmt.Errorf("%s: quote: %w", op, err)
	}
	minOut := applySlippage(amounts[len(amounts)-1], slippagePct)
	if minOut.Sign() <= 0 {
		return nil, fmt.Errorf("%s: %w: quoted output is zero", op, ports.ErrDegenerateQuote)
	}

	decimals, err := c.erc20Decimals(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	before, err := c.erc20BalanceOf(ctx, token, c.wallet)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hops := []common.Address{
		common.HexToAddress(string(c.cfg.WBNBAddress)),
		common.HexToAddress(string(token)),
	}
	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())
	data, err := routerABI.Pack("swapExactETHForTokens", minOut, hops, c.wallet, deadline)
	if err != nil {
		return nil, fmt.Errorf("%s: pack: %w", op, err)
	}

	receipt, price, err := c.sendTx(ctx, common.HexToAddress(string(c.cfg.RouterAddress)), bnbWei, data, swapGasLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	after, err := c.erc20BalanceOf(ctx, token, c.wallet)
	if err != nil {
		return nil, fmt.Errorf("%s: post-trade balance: %w", op, err)
	}
	received := new(big.Int).Sub(after, before)

	return &ports.SwapResult{
		TxHash:      receipt.TxHash.Hex(),
		AmountOut:   domain.FromUnits(received, decimals),
		GasCostBNB:  gasCostBNB(receipt, price),
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

// SellTokens swaps tokenAmount back to BNB, approving the router first
// when the standing allowance is too small. Proceeds are measured by
// native balance delta with the gas spend added back.
func (c *Client) SellTokens(ctx context.Context, token domain.Address, tokenAmount, slippagePct float64) (*ports.SwapResult, error) {
	op := "SellTokens"
	if tokenAmount <= 0 {
		return nil, fmt.Errorf("%s: %w: amount must be positive", op, ports.ErrInvalidInput)
	}
	if slippagePct <= 0 || slippagePct >= 100 {
		return nil, fmt.Errorf("%s: %w: slippage out of range", op, ports.ErrInvalidInput)
	}

	decimals, err := c.erc20Decimals(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	rawAmount := domain.ToUnits(tokenAmount, decimals)
	if rawAmount.Sign() <= 0 {
		return nil, fmt.Errorf("%s: %w: amount rounds to zero units", op, ports.ErrInvalidInput)
	}

	router := common.HexToAddress(string(c.cfg.RouterAddress))
	gasSpent := big.NewInt(0)

	allowance, err := c.erc20Allowance(ctx, token, c.wallet, router)
	if err != nil {
		return nil, fmt.Errorf("%s: allowance: %w", op, err)
	}
	if allowance.Cmp(rawAmount) < 0 {
		data, err := erc20ABI.Pack("approve", router, maxApproval)
		if err != nil {
			return nil, fmt.Errorf("%s: pack approve: %w", op, err)
		}
		receipt, price, err := c.sendTx(ctx, common.HexToAddress(string(token)), big.NewInt(0), data, approveGasLimit)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrApprovalFailed, err)
		}
		gasSpent.Add(gasSpent, gasSpentWei(receipt, price))
		c.logger.Debug(ctx, "Router approval confirmed", map[string]interface{}{
			"token":   string(token),
			"tx_hash": receipt.TxHash.Hex(),
		})
	}

	path := []domain.Address{token, c.cfg.WBNBAddress}
	amounts, err := c.QuoteAmountsOut(ctx, rawAmount, path)
	if err != nil {
		return nil, fmt.Errorf("%s: quote: %w", op, err)
	}
	minOut := applySlippage(amounts[len(amounts)-1], slippagePct)
	if minOut.Sign() <= 0 {
		return nil, fmt.Errorf("%s: %w: quoted output is zero", op, ports.ErrDegenerateQuote)
	}

	bnbBefore, err := c.bnbBalanceWei(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hops := []common.Address{
		common.HexToAddress(string(token)),
		common.HexToAddress(string(c.cfg.WBNBAddress)),
	}
	deadline := big.NewInt(time.Now().Add(swapDeadline).Unix())
	data, err := routerABI.Pack("swapExactTokensForETHSupportingFeeOnTransferTokens",
		rawAmount, minOut, hops, c.wallet, deadline)
	if err != nil {
		return nil, fmt.Errorf("%s: pack: %w", op, err)
	}

	receipt, price, err := c.sendTx(ctx, router, big.NewInt(0), data, swapGasLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	swapGas := gasSpentWei(receipt, price)
	gasSpent.Add(gasSpent, swapGas)

	bnbAfter, err := c.bnbBalanceWei(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: post-trade balance: %w", op, err)
	}

	// Balance delta is net of the swap's own gas; adding it back gives
	// gross proceeds, with gas reported separately.
	proceeds := new(big.Int).Sub(bnbAfter, bnbBefore)
	proceeds.Add(proceeds, swapGas)
	if proceeds.Sign() < 0 {
		proceeds = big.NewInt(0)
	}

	return &ports.SwapResult{
		TxHash:      receipt.TxHash.Hex(),
		AmountOut:   domain.FromWei(proceeds),
		GasCostBNB:  domain.FromWei(gasSpent),
		BlockNumber: receipt.BlockNumber.Uint64(),
	}, nil
}

func (c *Client) bnbBalanceWei(ctx context.Context) (*big.Int, error) {
	var wei *big.Int
	err := c.withRetry(ctx, func(eth *ethclient.Client) error {
		var err error
		wei, err = eth.BalanceAt(ctx, c.wallet, nil)
		return err
	})
	return wei, err
}

// applySlippage scales amount down by pct percent.
func applySlippage(amount *big.Int, pct float64) *big.Int {
	keep := big.NewFloat(1 - pct/100)
	out, _ := new(big.Float).Mul(new(big.Float).SetInt(amount), keep).Int(nil)
	return out
}

func gasSpentWei(receipt *types.Receipt, price *big.Int) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), price)
}

func gasCostBNB(receipt *types.Receipt, price *big.Int) float64 {
	return domain.FromWei(gasSpentWei(receipt, price))
}
