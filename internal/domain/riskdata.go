package domain

// TokenSecurityData is the structured security metadata returned by the
// risk-data provider for one token. Numeric fields are already parsed;
// boolean flags default to false when the provider omitted the key.
type TokenSecurityData struct {
	IsHoneypot           bool
	IsBlacklisted        bool
	IsOpenSource         bool
	IsWhitelisted        bool
	IsMintable           bool
	CanTakeBackOwnership bool
	HiddenOwner          bool
	IsProxy              bool
	SelfDestruct         bool
	ExternalCall         bool

	BuyTaxPct  float64 // percent, e.g. 7.5 for 7.5%
	SellTaxPct float64

	HolderCount  int
	OwnerAddress Address
	CreatorOwns  float64 // fraction of supply held by the creator, 0..1
	TopHolders   []HolderShare
}

// HolderShare is one entry of the holder-concentration breakdown.
type HolderShare struct {
	Address    Address
	Fraction   float64 // share of total supply, 0..1
	IsContract bool
	IsLocked   bool
}

// OwnershipRenounced reports whether the contract owner is the zero
// address (or no owner was reported at all).
func (d *TokenSecurityData) OwnershipRenounced() bool {
	return d.OwnerAddress == "" || d.OwnerAddress.IsZero()
}

// LargestPlainHolder returns the biggest supply share held by a
// non-contract, non-locked wallet. 0 when no holder data is present.
func (d *TokenSecurityData) LargestPlainHolder() float64 {
	var max float64
	for _, h := range d.TopHolders {
		if h.IsContract || h.IsLocked {
			continue
		}
		if h.Fraction > max {
			max = h.Fraction
		}
	}
	return max
}

// VerificationResult is the outcome of a contract source lookup.
type VerificationResult struct {
	Verified     bool
	ContractName string
}
