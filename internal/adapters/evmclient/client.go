package evmclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jpillora/backoff"

	"pairsniper/internal/domain"
	"pairsniper/internal/ports"
)

// Config holds the chain gateway settings.
type Config struct {
	Endpoints          []string // prioritized RPC URLs
	PrivateKey         string   // hex, with or without 0x prefix
	RouterAddress      domain.Address
	FactoryAddress     domain.Address
	WBNBAddress        domain.Address
	GasPriceMultiplier float64
	MaxGasPriceGwei    float64
	ReceiptTimeout     time.Duration
}

// connectRounds is how many full passes over the endpoint list a
// reconnect attempt makes before giving up.
const connectRounds = 3

var privateKeyPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Client implements ports.ChainGateway against BSC-compatible JSON-RPC
// endpoints, rotating through the configured list when one fails.
type Client struct {
	cfg     Config
	logger  ports.Logger
	privKey *ecdsa.PrivateKey
	wallet  common.Address

	mu      sync.Mutex
	eth     *ethclient.Client
	chainID *big.Int
	next    int // index of the next endpoint to try
}

// NewClient validates the wallet key and establishes the first RPC
// connection.
func NewClient(ctx context.Context, cfg Config, logger ports.Logger) (*Client, error) {
	op := "NewClient"
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("%s: %w: no RPC endpoints configured", op, ports.ErrConfiguration)
	}
	keyHex := strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x")
	if !privateKeyPattern.MatchString(keyHex) {
		return nil, fmt.Errorf("%s: %w: private key must be 64 hex characters", op, ports.ErrInvalidInput)
	}
	privKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrInvalidInput, err)
	}
	if cfg.ReceiptTimeout <= 0 {
		cfg.ReceiptTimeout = 2 * time.Minute
	}

	c := &Client{
		cfg:     cfg,
		logger:  logger,
		privKey: privKey,
		wallet:  crypto.PubkeyToAddress(privKey.PublicKey),
	}
	if err := c.reconnect(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}
}

// WalletAddress returns the configured trading wallet.
func (c *Client) WalletAddress() domain.Address {
	return domain.Address(strings.ToLower(c.wallet.Hex()))
}

// IsConnected reports whether the current connection answers a chain ID
// query.
func (c *Client) IsConnected(ctx context.Context) bool {
	c.mu.Lock()
	eth := c.eth
	c.mu.Unlock()
	if eth == nil {
		return false
	}
	_, err := eth.ChainID(ctx)
	return err == nil
}

// reconnect walks the endpoint list until one connection answers a
// chain ID query, making connectRounds passes with growing pauses
// between rounds.
func (c *Client) reconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.eth != nil {
		c.eth.Close()
		c.eth = nil
	}

	bo := &backoff.Backoff{Min: 500 * time.Millisecond, Max: 10 * time.Second, Factor: 2, Jitter: true}
	attempts := connectRounds * len(c.cfg.Endpoints)
	var lastErr error
	for i := 0; i < attempts; i++ {
		url := c.cfg.Endpoints[c.next%len(c.cfg.Endpoints)]
		c.next++

		eth, err := ethclient.DialContext(ctx, url)
		if err == nil {
			var chainID *big.Int
			chainID, err = eth.ChainID(ctx)
			if err == nil {
				c.eth = eth
				c.chainID = chainID
				c.logger.Info(ctx, "Connected to RPC endpoint", map[string]interface{}{
					"endpoint": url,
					"chain_id": chainID.String(),
				})
				return nil
			}
			eth.Close()
		}
		lastErr = err
		c.logger.Warn(ctx, "RPC endpoint unreachable, rotating", map[string]interface{}{
			"endpoint": url,
			"error":    err.Error(),
		})

		// Pause only after a full pass over the list.
		if (i+1)%len(c.cfg.Endpoints) == 0 && i+1 < attempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", ports.ErrContextCanceled, ctx.Err())
			case <-time.After(bo.Duration()):
			}
		}
	}
	return fmt.Errorf("%w: %w", ports.ErrAllEndpointsDown, lastErr)
}

// client returns the live connection, reconnecting first if needed.
func (c *Client) client(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	eth := c.eth
	c.mu.Unlock()
	if eth != nil {
		return eth, nil
	}
	if err := c.reconnect(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eth, nil
}

// withRetry runs a read-only call, reconnecting and retrying once when
// it fails. Trade submissions never go through here.
func (c *Client) withRetry(ctx context.Context, fn func(eth *ethclient.Client) error) error {
	eth, err := c.client(ctx)
	if err != nil {
		return err
	}
	if err = fn(eth); err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ports.ErrContextCanceled, ctx.Err())
	}
	if rcErr := c.reconnect(ctx); rcErr != nil {
		return fmt.Errorf("%w: %w", ports.ErrTransientNetwork, err)
	}
	eth, cErr := c.client(ctx)
	if cErr != nil {
		return cErr
	}
	if err = fn(eth); err != nil {
		return fmt.Errorf("%w: %w", ports.ErrTransientNetwork, err)
	}
	return nil
}

// LatestBlockNumber returns the chain head block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	op := "LatestBlockNumber"
	var bn uint64
	err := c.withRetry(ctx, func(eth *ethclient.Client) error {
		var err error
		bn, err = eth.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return bn, nil
}

// BNBBalance returns the wallet's native balance in BNB.
func (c *Client) BNBBalance(ctx context.Context) (float64, error) {
	op := "BNBBalance"
	var wei *big.Int
	err := c.withRetry(ctx, func(eth *ethclient.Client) error {
		var err error
		wei, err = eth.BalanceAt(ctx, c.wallet, nil)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return domain.FromWei(wei), nil
}

// TokenBalance returns the wallet's token balance in decimal units.
func (c *Client) TokenBalance(ctx context.Context, token domain.Address) (float64, error) {
	op := "TokenBalance"
	raw, err := c.erc20BalanceOf(ctx, token, c.wallet)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	decimals, err := c.erc20Decimals(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return domain.FromUnits(raw, decimals), nil
}

// GetTokenMetadata fetches ERC-20 metadata. Individual field calls that
// revert fall back to defaults; many sniped tokens skimp on optional
// methods.
func (c *Client) GetTokenMetadata(ctx context.Context, token domain.Address) (*domain.TokenInfo, error) {
	op := "GetTokenMetadata"
	addr := common.HexToAddress(string(token))

	info := &domain.TokenInfo{
		Address:  token,
		Name:     "Unknown",
		Symbol:   "UNKNOWN",
		Decimals: 18,
	}

	// decimals is the one field pricing cannot do without; a contract
	// with no code at all should fail the fetch outright.
	var decimalsErr error
	if out, err := c.viewCall(ctx, addr, erc20ABI, "decimals"); err == nil {
		if d, ok := out[0].(uint8); ok {
			info.Decimals = d
		}
	} else {
		decimalsErr = err
	}
	if decimalsErr != nil {
		code, err := c.codeAt(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if len(code) == 0 {
			return nil, fmt.Errorf("%s: %w: no contract at %s", op, ports.ErrNotFound, token)
		}
	}

	if out, err := c.viewCall(ctx, addr, erc20ABI, "name"); err == nil {
		if s, ok := out[0].(string); ok && s != "" {
			info.Name = s
		}
	}
	if out, err := c.viewCall(ctx, addr, erc20ABI, "symbol"); err == nil {
		if s, ok := out[0].(string); ok && s != "" {
			info.Symbol = s
		}
	}
	if out, err := c.viewCall(ctx, addr, erc20ABI, "totalSupply"); err == nil {
		if v, ok := out[0].(*big.Int); ok {
			info.TotalSupply = v
		}
	}
	if info.TotalSupply == nil {
		info.TotalSupply = big.NewInt(0)
	}
	return info, nil
}

// GetReserves returns the pool snapshot for a pair contract.
func (c *Client) GetReserves(ctx context.Context, pair domain.Address) (*domain.PairReserves, error) {
	op := "GetReserves"
	addr := common.HexToAddress(string(pair))

	t0, err := c.viewCall(ctx, addr, pairABI, "token0")
	if err != nil {
		return nil, fmt.Errorf("%s: token0: %w", op, err)
	}
	t1, err := c.viewCall(ctx, addr, pairABI, "token1")
	if err != nil {
		return nil, fmt.Errorf("%s: token1: %w", op, err)
	}
	res, err := c.viewCall(ctx, addr, pairABI, "getReserves")
	if err != nil {
		return nil, fmt.Errorf("%s: getReserves: %w", op, err)
	}

	token0, ok0 := t0[0].(common.Address)
	token1, ok1 := t1[0].(common.Address)
	r0, okR0 := res[0].(*big.Int)
	r1, okR1 := res[1].(*big.Int)
	if !ok0 || !ok1 || !okR0 || !okR1 {
		return nil, fmt.Errorf("%s: %w: unexpected return shape", op, ports.ErrUnknown)
	}

	return &domain.PairReserves{
		Pair:     pair,
		Token0:   domain.Address(strings.ToLower(token0.Hex())),
		Token1:   domain.Address(strings.ToLower(token1.Hex())),
		Reserve0: r0,
		Reserve1: r1,
	}, nil
}

// QuoteAmountsOut asks the router for output amounts along a path.
func (c *Client) QuoteAmountsOut(ctx context.Context, amountIn *big.Int, path []domain.Address) ([]*big.Int, error) {
	op := "QuoteAmountsOut"
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%s: %w: amountIn must be positive", op, ports.ErrInvalidInput)
	}
	if len(path) < 2 {
		return nil, fmt.Errorf("%s: %w: path needs at least two hops", op, ports.ErrInvalidInput)
	}

	hops := make([]common.Address, len(path))
	for i, a := range path {
		hops[i] = common.HexToAddress(string(a))
	}

	out, err := c.viewCall(ctx, common.HexToAddress(string(c.cfg.RouterAddress)), routerABI, "getAmountsOut", amountIn, hops)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: %w: unexpected return shape", op, ports.ErrUnknown)
	}
	if len(amounts) != len(path) {
		return nil, fmt.Errorf("%s: %w: router returned %d amounts for %d hops", op, ports.ErrUnknown, len(amounts), len(path))
	}
	return amounts, nil
}

// PairsCreated returns factory PairCreated events in [fromBlock, toBlock].
func (c *Client) PairsCreated(ctx context.Context, fromBlock, toBlock uint64) ([]*domain.PairEvent, error) {
	op := "PairsCreated"
	if toBlock < fromBlock {
		return nil, fmt.Errorf("%s: %w: block range inverted", op, ports.ErrInvalidInput)
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{common.HexToAddress(string(c.cfg.FactoryAddress))},
		Topics:    [][]common.Hash{{pairCreatedTopic}},
	}

	var logs []types.Log
	err := c.withRetry(ctx, func(eth *ethclient.Client) error {
		var err error
		logs, err = eth.FilterLogs(ctx, query)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	events := make([]*domain.PairEvent, 0, len(logs))
	for _, lg := range logs {
		// topics: [signature, token0, token1]; data: [pair, allPairsLength]
		if len(lg.Topics) < 3 || len(lg.Data) < 32 {
			continue
		}
		events = append(events, &domain.PairEvent{
			Pair:        domain.Address(strings.ToLower(common.BytesToAddress(lg.Data[12:32]).Hex())),
			Token0:      domain.Address(strings.ToLower(topicAddress(lg.Topics[1]).Hex())),
			Token1:      domain.Address(strings.ToLower(topicAddress(lg.Topics[2]).Hex())),
			BlockNumber: lg.BlockNumber,
		})
	}
	return events, nil
}

// --- low-level helpers ---

func (c *Client) viewCall(ctx context.Context, to common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{From: c.wallet, To: &to, Data: data}

	var raw []byte
	err = c.withRetry(ctx, func(eth *ethclient.Client) error {
		var err error
		raw, err = eth.CallContract(ctx, msg, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%s: %w: empty return", method, ports.ErrDataUnavailable)
	}
	out, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w: no return values", method, ports.ErrDataUnavailable)
	}
	return out, nil
}

func (c *Client) codeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	var code []byte
	err := c.withRetry(ctx, func(eth *ethclient.Client) error {
		var err error
		code, err = eth.CodeAt(ctx, addr, nil)
		return err
	})
	return code, err
}

func (c *Client) erc20BalanceOf(ctx context.Context, token domain.Address, owner common.Address) (*big.Int, error) {
	out, err := c.viewCall(ctx, common.HexToAddress(string(token)), erc20ABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf: %w: unexpected return shape", ports.ErrUnknown)
	}
	return v, nil
}

func (c *Client) erc20Decimals(ctx context.Context, token domain.Address) (uint8, error) {
	out, err := c.viewCall(ctx, common.HexToAddress(string(token)), erc20ABI, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: %w: unexpected return shape", ports.ErrUnknown)
	}
	return d, nil
}

func (c *Client) erc20Allowance(ctx context.Context, token domain.Address, owner, spender common.Address) (*big.Int, error) {
	out, err := c.viewCall(ctx, common.HexToAddress(string(token)), erc20ABI, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("allowance: %w: unexpected return shape", ports.ErrUnknown)
	}
	return v, nil
}

var _ ports.ChainGateway = (*Client)(nil)
