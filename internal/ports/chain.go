package ports

import (
	"context"
	"math/big"

	"pairsniper/internal/domain"
)

// SwapResult carries the essential details of a confirmed swap
// transaction. Amounts are already descaled to decimal units.
type SwapResult struct {
	TxHash      string
	AmountOut   float64 // tokens received for a buy, BNB received for a sell
	GasCostBNB  float64
	BlockNumber uint64
}

// ChainGateway abstracts read-only and transactional blockchain access.
// This decouples the sniping core from any specific RPC client.
//
// Addresses crossing this boundary are canonical domain.Address values;
// raw amounts are fixed-point integers scaled by the token's declared
// decimals.
type ChainGateway interface {
	// IsConnected reports whether the gateway currently holds a usable
	// RPC connection.
	IsConnected(ctx context.Context) bool

	// LatestBlockNumber returns the chain head block number.
	LatestBlockNumber(ctx context.Context) (uint64, error)

	// BNBBalance returns the wallet's native balance in BNB.
	BNBBalance(ctx context.Context) (float64, error)

	// TokenBalance returns the wallet's balance of a token in decimal
	// units.
	TokenBalance(ctx context.Context, token domain.Address) (float64, error)

	// GetTokenMetadata fetches name/symbol/decimals/supply. Individual
	// field lookups that revert are replaced with defaults rather than
	// failing the whole fetch.
	GetTokenMetadata(ctx context.Context, token domain.Address) (*domain.TokenInfo, error)

	// GetReserves returns the pool snapshot for a pair contract.
	GetReserves(ctx context.Context, pair domain.Address) (*domain.PairReserves, error)

	// QuoteAmountsOut asks the router for the output amounts along a
	// swap path without moving funds. A nil error means the returned
	// slice carries exactly one amount per path hop.
	QuoteAmountsOut(ctx context.Context, amountIn *big.Int, path []domain.Address) ([]*big.Int, error)

	// BuyTokens swaps bnbAmount of native currency for the token,
	// waits for the receipt, and returns the confirmed result. A
	// reverted transaction surfaces as ErrChainExecution; it is never
	// retried here.
	BuyTokens(ctx context.Context, token domain.Address, bnbAmount, slippagePct float64) (*SwapResult, error)

	// SellTokens swaps tokenAmount of the token back to native
	// currency, approving the router first when the current allowance
	// is insufficient.
	SellTokens(ctx context.Context, token domain.Address, tokenAmount, slippagePct float64) (*SwapResult, error)

	// PairsCreated returns factory PairCreated events in the block
	// range [fromBlock, toBlock], inclusive.
	PairsCreated(ctx context.Context, fromBlock, toBlock uint64) ([]*domain.PairEvent, error)

	// WalletAddress returns the configured trading wallet.
	WalletAddress() domain.Address
}

// RiskDataProvider fetches structured security metadata for a token
// from a third-party risk API.
type RiskDataProvider interface {
	TokenSecurity(ctx context.Context, token domain.Address) (*domain.TokenSecurityData, error)
}

// ContractVerifier looks up whether a contract's source is published
// and verified.
type ContractVerifier interface {
	IsVerified(ctx context.Context, token domain.Address) (*domain.VerificationResult, error)
}

// PriceOracle quotes the native asset's USD price. Implementations fall
// back to a configured constant when the feed is unreachable.
type PriceOracle interface {
	NativeUSDPrice(ctx context.Context) float64
}
