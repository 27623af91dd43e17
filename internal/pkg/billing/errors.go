package billing

import (
	"errors"
	"fmt"
)

// All errors in this package are request-scoped: they terminate processing
// of a single claim and are reported to the caller verbatim, never retried
// here and never fatal to the process.

var (
	// ErrInvalidSignature means the gateway signature did not match.
	// Not retryable with the same claim.
	ErrInvalidSignature = errors.New("invalid payment signature")

	// ErrPlanNotFound means the claimed plan id does not exist.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrPlanNotConfiguredForRail means the plan has no external product id
	// for the claim's rail. Deliberately fail-closed: a plan can never be
	// purchased through a rail it was not explicitly mapped to.
	ErrPlanNotConfiguredForRail = errors.New("plan is not configured for this payment rail")

	// ErrProductMismatch means the verified receipt does not cover the
	// product the claimed plan maps to.
	ErrProductMismatch = errors.New("receipt does not contain the expected product for this plan")

	// ErrBundleMismatch means the receipt was issued for a different app and
	// is being replayed against this backend. Hard rejection.
	ErrBundleMismatch = errors.New("receipt bundle id does not match this app")

	// ErrPlanExpired means a time-boxed plan's validity window has lapsed.
	ErrPlanExpired = errors.New("this plan has expired")

	// ErrSubscriptionNotActive means the verified app-store subscription has
	// already lapsed; the user must renew before resubmitting.
	ErrSubscriptionNotActive = errors.New("subscription is not active")
)

// ConfigurationError means a payment rail is disabled because required
// server configuration is missing. Not user-retryable.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "billing not configured: " + e.Reason
}

// ReceiptRejectedError is a terminal non-zero status from the receipt
// verification rail.
type ReceiptRejectedError struct {
	Status int
}

func (e *ReceiptRejectedError) Error() string {
	return fmt.Sprintf("receipt verification failed (status: %d)", e.Status)
}

// VerificationUnavailableError wraps a transport failure talking to the
// verification rail. The purchase itself may well be valid; the caller can
// let the user retry submission later.
type VerificationUnavailableError struct {
	Err error
}

func (e *VerificationUnavailableError) Error() string {
	return "receipt verification unavailable: " + e.Err.Error()
}

func (e *VerificationUnavailableError) Unwrap() error {
	return e.Err
}
