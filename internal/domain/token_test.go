package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	wbnb  = MustAddress("0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c")
	busd  = MustAddress("0xe9e7cea3dedca5984780bafc599bd69add087d56")
	meme  = MustAddress("0x3333333333333333333333333333333333333333")
	meme2 = MustAddress("0x4444444444444444444444444444444444444444")
)

func testRefs() ReferenceSet {
	return ReferenceSet{WrappedNative: wbnb, Stables: []Address{busd}}
}

func TestReferenceSetContains(t *testing.T) {
	refs := testRefs()
	assert.True(t, refs.Contains(wbnb))
	assert.True(t, refs.Contains(busd))
	assert.False(t, refs.Contains(meme))
}

func TestCandidateToken(t *testing.T) {
	refs := testRefs()
	pair := MustAddress("0x5555555555555555555555555555555555555555")

	tests := []struct {
		name   string
		token0 Address
		token1 Address
		want   Address
		wantOK bool
	}{
		{name: "token vs wbnb", token0: meme, token1: wbnb, want: meme, wantOK: true},
		{name: "wbnb vs token", token0: wbnb, token1: meme, want: meme, wantOK: true},
		{name: "token vs stable", token0: meme, token1: busd, want: meme, wantOK: true},
		{name: "both reference", token0: wbnb, token1: busd, wantOK: false},
		{name: "neither reference", token0: meme, token1: meme2, wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &PairEvent{Pair: pair, Token0: tt.token0, Token1: tt.token1}
			got, ok := refs.CandidateToken(ev)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestPriceFromReserves(t *testing.T) {
	// 10 BNB against 1,000,000 tokens (18 decimals) -> 0.00001 BNB/token
	res := &PairReserves{
		Token0:   wbnb,
		Token1:   meme,
		Reserve0: ToWei(10),
		Reserve1: ToUnits(1_000_000, 18),
	}
	price := PriceFromReserves(res, wbnb, 18)
	assert.InDelta(t, 0.00001, price, 1e-15)

	// Same pool with sides flipped gives the same price.
	flipped := &PairReserves{
		Token0:   meme,
		Token1:   wbnb,
		Reserve0: ToUnits(1_000_000, 18),
		Reserve1: ToWei(10),
	}
	assert.InDelta(t, price, PriceFromReserves(flipped, wbnb, 18), 1e-18)

	// No reference side: unpriceable.
	bad := &PairReserves{Token0: meme, Token1: meme2, Reserve0: big.NewInt(1), Reserve1: big.NewInt(1)}
	assert.Equal(t, 0.0, PriceFromReserves(bad, wbnb, 18))

	// Empty token reserve.
	empty := &PairReserves{Token0: wbnb, Token1: meme, Reserve0: ToWei(10), Reserve1: big.NewInt(0)}
	assert.Equal(t, 0.0, PriceFromReserves(empty, wbnb, 18))

	assert.Equal(t, 0.0, PriceFromReserves(nil, wbnb, 18))
}

func TestNativeReserve(t *testing.T) {
	res := &PairReserves{Token0: meme, Token1: wbnb, Reserve0: big.NewInt(1), Reserve1: ToWei(25)}
	got, ok := NativeReserve(res, wbnb)
	assert.True(t, ok)
	assert.InDelta(t, 25.0, got, 1e-12)

	_, ok = NativeReserve(&PairReserves{Token0: meme, Token1: meme2, Reserve0: big.NewInt(1), Reserve1: big.NewInt(1)}, wbnb)
	assert.False(t, ok)
}

func TestAmountConversions(t *testing.T) {
	assert.InDelta(t, 1.5, FromWei(ToWei(1.5)), 1e-12)
	assert.InDelta(t, 123.456, FromUnits(ToUnits(123.456, 9), 9), 1e-9)
	assert.Equal(t, 0.0, FromUnits(nil, 18))

	// Tokens with few decimals truncate the sub-precision fraction.
	assert.Equal(t, int64(123), ToUnits(1.235, 2).Int64())
}
