package domain

// CheckName identifies one security check.
type CheckName string

const (
	CheckRiskAPI      CheckName = "risk_api"
	CheckRoundTrip    CheckName = "round_trip_simulation"
	CheckVerification CheckName = "contract_verification"
	CheckLiquidity    CheckName = "liquidity"
	CheckHolders      CheckName = "holders"
	CheckOwnership    CheckName = "ownership"
	CheckTaxes        CheckName = "taxes"
	CheckWhales       CheckName = "whales"
	CheckDevWallets   CheckName = "dev_wallets"
	CheckRugPatterns  CheckName = "rug_patterns"
)

// CheckStatus is the coarse result of one check.
type CheckStatus string

const (
	// CheckOK: the check ran and found nothing wrong.
	CheckOK CheckStatus = "ok"
	// CheckFailed: the check ran and produced a negative finding.
	CheckFailed CheckStatus = "failed"
	// CheckUnavailable: the check could not run (provider error,
	// timeout). Whether this blocks depends on the check's tier.
	CheckUnavailable CheckStatus = "error"
)

// CheckOutcome is the result of one check: exactly one of the three
// states, with reasons attached to failures and the cause attached to
// unavailability.
type CheckOutcome struct {
	Check   CheckName
	Status  CheckStatus
	Reasons []string // negative findings, set when Status == CheckFailed
	Cause   error    // set when Status == CheckUnavailable
}

// CheckPassed builds an OK outcome.
func CheckPassed(name CheckName) CheckOutcome {
	return CheckOutcome{Check: name, Status: CheckOK}
}

// CheckNegative builds a failed outcome with one or more findings.
func CheckNegative(name CheckName, reasons ...string) CheckOutcome {
	return CheckOutcome{Check: name, Status: CheckFailed, Reasons: reasons}
}

// CheckErrored builds an unavailable outcome.
func CheckErrored(name CheckName, cause error) CheckOutcome {
	return CheckOutcome{Check: name, Status: CheckUnavailable, Cause: cause}
}

// Verdict is the aggregate security decision for one token candidate.
// Built once per candidate, never mutated after construction.
type Verdict struct {
	Token         Address
	IsSafe        bool
	FailedReasons []string
	Checks        []CheckOutcome // positional, one entry per check run
}

// Outcome returns the recorded outcome for a named check, if present.
func (v *Verdict) Outcome(name CheckName) (CheckOutcome, bool) {
	for _, c := range v.Checks {
		if c.Check == name {
			return c, true
		}
	}
	return CheckOutcome{}, false
}
