package bnbprice

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"

	"pairsniper/internal/ports"
)

const (
	symbol   = "BNBUSDT"
	cacheTTL = time.Minute
)

// Oracle implements ports.PriceOracle using the Binance spot ticker,
// caching the last good quote and falling back to a configured
// constant when no quote can be fetched at all.
type Oracle struct {
	client   *binance.Client
	fallback float64
	logger   ports.Logger

	mu        sync.Mutex
	lastPrice float64
	fetchedAt time.Time
}

// NewOracle builds a price oracle. No API key is needed; the ticker
// endpoint is public.
func NewOracle(fallback float64, logger ports.Logger) *Oracle {
	return &Oracle{
		client:   binance.NewClient("", ""),
		fallback: fallback,
		logger:   logger,
	}
}

// NativeUSDPrice returns the current BNB/USD price. The cached value is
// reused within the TTL; a stale cache beats the fallback when the feed
// is down mid-run.
func (o *Oracle) NativeUSDPrice(ctx context.Context) float64 {
	op := "NativeUSDPrice"

	o.mu.Lock()
	if o.lastPrice > 0 && time.Since(o.fetchedAt) < cacheTTL {
		price := o.lastPrice
		o.mu.Unlock()
		return price
	}
	o.mu.Unlock()

	prices, err := o.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err == nil && len(prices) > 0 {
		if price, perr := strconv.ParseFloat(prices[0].Price, 64); perr == nil && price > 0 {
			o.mu.Lock()
			o.lastPrice = price
			o.fetchedAt = time.Now()
			o.mu.Unlock()
			return price
		}
	}

	o.mu.Lock()
	stale := o.lastPrice
	o.mu.Unlock()
	if stale > 0 {
		o.logger.Warn(ctx, op+": price feed unavailable, reusing last quote", map[string]interface{}{
			"price": stale,
		})
		return stale
	}

	o.logger.Warn(ctx, op+": price feed unavailable, using fallback", map[string]interface{}{
		"fallback": o.fallback,
	})
	return o.fallback
}

var _ ports.PriceOracle = (*Oracle)(nil)
