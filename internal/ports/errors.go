package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these standard
// errors so core code can branch with errors.Is without knowing the
// infrastructure.
var (
	// General errors
	ErrUnknown         = errors.New("unknown error occurred")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNotFound        = errors.New("resource not found")
	ErrTimeout         = errors.New("operation timed out")
	ErrContextCanceled = errors.New("operation canceled via context")
	ErrConfiguration   = errors.New("invalid or missing configuration")

	// Transport-level failures that are safe to retry at the
	// infrastructure boundary (reconnect, endpoint failover).
	ErrTransientNetwork = errors.New("transient network failure")

	// A provider responded but returned no usable data. The affected
	// check degrades; the evaluation continues.
	ErrDataUnavailable = errors.New("provider data unavailable")

	// Chain-specific errors
	ErrNotConnected      = errors.New("chain gateway is not connected")
	ErrAllEndpointsDown  = errors.New("all RPC endpoints failed")
	ErrChainExecution    = errors.New("transaction reverted or failed on chain")
	ErrReceiptTimeout    = errors.New("timed out waiting for transaction receipt")
	ErrInsufficientFunds = errors.New("insufficient funds for operation")
	ErrDegenerateQuote   = errors.New("router quote returned zero or malformed output")
	ErrApprovalFailed    = errors.New("token approval failed")

	// Ledger errors
	ErrPositionExists   = errors.New("open position already exists for token")
	ErrPositionNotFound = errors.New("no open position for token")
	ErrPositionNotFlat  = errors.New("position still holds a non-dust balance")

	// Storage errors
	ErrPersistFailed = errors.New("failed to persist ledger state")
)
