package domain

import "errors"

// Sentinel errors for the trust-accounting and payment-plan engine. Callers
// branch with errors.Is; operations wrap these with fmt.Errorf("%w: ...") to
// attach context.
var (
	// ErrNotFound is returned when a referenced entity does not exist or is
	// not visible to the calling merchant.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed input, rejected before any
	// mutation.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientFunds is returned when a disbursement would drive a
	// client ledger balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidState is returned when a state transition is attempted from
	// a state that does not permit it.
	ErrInvalidState = errors.New("invalid state")

	// ErrGatewayFailure is returned when the payment gateway cannot be
	// reached at all. Declines are recorded on the installment, not raised.
	ErrGatewayFailure = errors.New("payment gateway failure")

	// ErrReconciliationMismatch is exposed through ReconciliationReport.Err
	// for callers that need failure semantics. Reconciliation itself reports
	// mismatches as data and never raises.
	ErrReconciliationMismatch = errors.New("reconciliation mismatch")
)
