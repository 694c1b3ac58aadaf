package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the scale of the chain's native asset (BNB/ETH).
const NativeDecimals = 18

// FromUnits converts a raw fixed-point token amount into a float using
// the token's declared decimals.
func FromUnits(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(amount, -int32(decimals)).Float64()
	return f
}

// ToUnits converts a float token amount into raw fixed-point units.
// The fractional remainder below the token's precision is truncated.
func ToUnits(amount float64, decimals uint8) *big.Int {
	return decimal.NewFromFloat(amount).Shift(int32(decimals)).BigInt()
}

// FromWei converts a wei amount to native units (BNB).
func FromWei(amount *big.Int) float64 {
	return FromUnits(amount, NativeDecimals)
}

// ToWei converts a native amount (BNB) to wei.
func ToWei(amount float64) *big.Int {
	return ToUnits(amount, NativeDecimals)
}

// PriceFromReserves derives the token's price in native units from pool
// reserves: nativeReserve / tokenReserve, with both sides descaled first.
// Returns 0 when the pool has no reference side or the token reserve is
// empty.
func PriceFromReserves(res *PairReserves, wrappedNative Address, tokenDecimals uint8) float64 {
	if res == nil {
		return 0
	}
	var nativeRaw, tokenRaw *big.Int
	switch {
	case res.Token0.Equal(wrappedNative):
		nativeRaw, tokenRaw = res.Reserve0, res.Reserve1
	case res.Token1.Equal(wrappedNative):
		nativeRaw, tokenRaw = res.Reserve1, res.Reserve0
	default:
		return 0
	}
	tokenReserve := FromUnits(tokenRaw, tokenDecimals)
	if tokenReserve == 0 {
		return 0
	}
	return FromWei(nativeRaw) / tokenReserve
}

// NativeReserve extracts the wrapped-native side of the pool in native
// units. The second return is false when neither side is the wrapped
// native asset.
func NativeReserve(res *PairReserves, wrappedNative Address) (float64, bool) {
	if res == nil {
		return 0, false
	}
	switch {
	case res.Token0.Equal(wrappedNative):
		return FromWei(res.Reserve0), true
	case res.Token1.Equal(wrappedNative):
		return FromWei(res.Reserve1), true
	default:
		return 0, false
	}
}
