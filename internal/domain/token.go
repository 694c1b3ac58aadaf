package domain

import (
	"errors"
	"math/big"
)

// ErrInvalidAddress indicates a malformed or non-hex address.
var ErrInvalidAddress = errors.New("invalid address")

// TokenInfo holds the basic ERC-20 metadata for a token candidate.
// Immutable once fetched; re-fetched per pair event.
type TokenInfo struct {
	Address     Address
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply *big.Int // raw units, scaled by Decimals
}

// PairEvent is one PairCreated log from the factory contract.
type PairEvent struct {
	Pair        Address
	Token0      Address
	Token1      Address
	BlockNumber uint64
}

// PairReserves is a snapshot of a liquidity pool's state.
type PairReserves struct {
	Pair     Address
	Token0   Address
	Token1   Address
	Reserve0 *big.Int
	Reserve1 *big.Int
}

// ReferenceSet is the configured set of reference currencies (wrapped
// native asset and stable equivalents) used to price new listings.
type ReferenceSet struct {
	WrappedNative Address
	Stables       []Address
}

// Contains reports whether addr is one of the reference currencies.
func (r ReferenceSet) Contains(addr Address) bool {
	if r.WrappedNative.Equal(addr) {
		return true
	}
	for _, s := range r.Stables {
		if s.Equal(addr) {
			return true
		}
	}
	return false
}

// CandidateToken returns the non-reference token of a new pair, or false
// when the pair is not a valid listing (both sides are reference
// currencies, or neither side is).
func (r ReferenceSet) CandidateToken(ev *PairEvent) (Address, bool) {
	ref0 := r.Contains(ev.Token0)
	ref1 := r.Contains(ev.Token1)
	switch {
	case ref0 && !ref1:
		return ev.Token1, true
	case ref1 && !ref0:
		return ev.Token0, true
	default:
		// Both reference (e.g. WBNB/BUSD) or neither: nothing to snipe,
		// and a pair with no reference side cannot be priced.
		return "", false
	}
}
