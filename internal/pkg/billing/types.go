package billing

import "time"

// Rail identifies a payment/purchase channel.
type Rail string

const (
	RailGateway  Rail = "GATEWAY"
	RailAppleIAP Rail = "APPLE_IAP"
)

// PurchaseClaim is an unverified, request-scoped assertion of payment.
// It is a rail-discriminated sum type: rail-specific fields exist only on
// the matching variant, so a gateway signature can never be read off an
// app-store claim.
type PurchaseClaim interface {
	Rail() Rail
	PlanID() uint
}

// GatewayClaim asserts a completed gateway order (order id + payment id +
// server-issued signature over both).
type GatewayClaim struct {
	Plan      uint
	OrderID   string
	PaymentID string
	Signature string
}

func (c GatewayClaim) Rail() Rail   { return RailGateway }
func (c GatewayClaim) PlanID() uint { return c.Plan }

// AppleIAPClaim asserts an App Store purchase via an opaque receipt blob.
// Transaction ids are optional client hints; the verified receipt is
// authoritative.
type AppleIAPClaim struct {
	Plan                  uint
	Receipt               string
	ProductID             string
	TransactionID         string
	OriginalTransactionID string
	Environment           string
}

func (c AppleIAPClaim) Rail() Rail   { return RailAppleIAP }
func (c AppleIAPClaim) PlanID() uint { return c.Plan }

// VerifiedPurchaseRecord is the canonical shape both rails' raw verification
// responses are normalized into.
type VerifiedPurchaseRecord struct {
	ProductID             string
	TransactionID         string
	OriginalTransactionID string
	PurchasedAt           time.Time
	// ExpiresAt is nil for one-time purchases where the rail reports no
	// expiry of its own.
	ExpiresAt *time.Time
	Status    int
}

// ExternalTransactionID returns the idempotency-key component derived from
// the record: the immediate transaction id, falling back to the original
// transaction id for renewing subscriptions.
func (r *VerifiedPurchaseRecord) ExternalTransactionID() string {
	if r.TransactionID != "" {
		return r.TransactionID
	}
	return r.OriginalTransactionID
}
