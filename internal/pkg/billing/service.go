package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prepvidya/PrepVidya/app/models"
	"github.com/prepvidya/PrepVidya/internal/pkg/env"
	"gorm.io/gorm"
)

// ReceiptVerifier authenticates an opaque app-store receipt for an expected
// product id. Implemented by AppStoreClient; swappable in tests.
type ReceiptVerifier interface {
	VerifyForProduct(ctx context.Context, receipt, expectedProductID string) (*VerifiedPurchaseRecord, error)
}

// PurchaseNotifier receives a best-effort notification after a new grant is
// persisted. Implementations must never block the purchase flow.
type PurchaseNotifier interface {
	NotifyPurchase(platform string, user *models.User, plan *models.Plan, grant *models.Subscription)
}

// Service is the entitlement resolver: it authenticates purchase claims
// against their issuing rail and reconciles them into the subscription
// ledger. Request-scoped and stateless; safe for concurrent use.
type Service struct {
	ledger        Ledger
	catalog       *Catalog
	verifier      ReceiptVerifier
	notifier      PurchaseNotifier
	gatewaySecret string
	now           func() time.Time
}

// NewService wires a resolver from its collaborators. notifier may be nil.
func NewService(ledger Ledger, catalog *Catalog, verifier ReceiptVerifier, notifier PurchaseNotifier, gatewaySecret string) *Service {
	return &Service{
		ledger:        ledger,
		catalog:       catalog,
		verifier:      verifier,
		notifier:      notifier,
		gatewaySecret: gatewaySecret,
		now:           time.Now,
	}
}

// NewServiceFromDB builds the production wiring: GORM ledger, default
// legacy translation table, env-configured App Store client and gateway
// secret.
func NewServiceFromDB(db *gorm.DB, notifier PurchaseNotifier) *Service {
	return NewService(
		NewLedger(db),
		NewDefaultCatalog(),
		NewAppStoreClientFromEnv(),
		notifier,
		strings.TrimSpace(env.GetEnv("GATEWAY_KEY_SECRET", "")),
	)
}

// Resolve authenticates a purchase claim and persists a grant for it.
// Repeated submission of an already-granted transaction returns the
// existing grant with created=false; it is a no-op success, never an error.
func (s *Service) Resolve(ctx context.Context, user *models.User, claim PurchaseClaim) (*models.Subscription, bool, error) {
	if user == nil || user.ID == 0 {
		return nil, false, errors.New("user is required")
	}

	plan, err := s.ledger.FindPlan(claim.PlanID())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrPlanNotFound
		}
		return nil, false, err
	}

	productID := s.catalog.ExternalProductID(plan, claim.Rail())
	if productID == "" {
		return nil, false, ErrPlanNotConfiguredForRail
	}

	// Early idempotency check with the claim-supplied transaction id. The
	// authoritative check is the ledger's unique key at insert time; this
	// one just avoids a pointless verification round trip on client retry.
	if extTxID := claimTransactionID(claim); extTxID != "" {
		existing, err := s.ledger.FindGrant(user.ID, claim.Rail(), extTxID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
	}

	switch c := claim.(type) {
	case GatewayClaim:
		return s.resolveGateway(plan, user, c)
	case AppleIAPClaim:
		return s.resolveAppleIAP(ctx, plan, user, c, productID)
	default:
		return nil, false, fmt.Errorf("unsupported payment rail: %s", claim.Rail())
	}
}

func (s *Service) resolveGateway(plan *models.Plan, user *models.User, claim GatewayClaim) (*models.Subscription, bool, error) {
	if err := VerifyGatewaySignature(claim.OrderID, claim.PaymentID, claim.Signature, s.gatewaySecret); err != nil {
		return nil, false, err
	}

	// Gateway plans are non-renewing and calendar-bound: the plan's own
	// validity timestamp is the grant's end date.
	now := s.now()
	if plan.ValidUntil == nil {
		return nil, false, ErrPlanExpired
	}
	endDate := *plan.ValidUntil
	if !endDate.After(now) {
		return nil, false, ErrPlanExpired
	}

	grant := &models.Subscription{
		UserID:        user.ID,
		PlanID:        plan.ID,
		Platform:      models.PlatformGateway,
		OrderID:       claim.OrderID,
		PaymentID:     claim.PaymentID,
		Signature:     claim.Signature,
		StartDate:     now,
		EndDate:       endDate,
		Amount:        plan.PayableAmount(),
		PaymentStatus: models.PaymentStatusSuccess,
	}
	return s.persistGrant(grant, user, plan)
}

func (s *Service) resolveAppleIAP(ctx context.Context, plan *models.Plan, user *models.User, claim AppleIAPClaim, productID string) (*models.Subscription, bool, error) {
	// The client's product id is only a hint; the catalog's answer is
	// authoritative. A contradicting hint means the client bought a
	// different product than the plan it is claiming.
	if claim.ProductID != "" && claim.ProductID != productID {
		return nil, false, ErrProductMismatch
	}

	record, err := s.verifier.VerifyForProduct(ctx, claim.Receipt, productID)
	if err != nil {
		return nil, false, err
	}

	// The verifier already filtered line items; keep the mismatch check as
	// a hard invariant against a claim substituting a cheaper product's
	// receipt for this plan's grant.
	if record.ProductID != productID {
		return nil, false, ErrProductMismatch
	}

	now := s.now()
	if record.ExpiresAt == nil {
		return nil, false, ErrSubscriptionNotActive
	}
	endDate := *record.ExpiresAt
	if !endDate.After(now) {
		return nil, false, ErrSubscriptionNotActive
	}

	// Client-supplied ids win so resubmissions key identically to the
	// first submission; the receipt-derived ids are the fallback.
	extTxID := claim.TransactionID
	if extTxID == "" {
		extTxID = record.ExternalTransactionID()
	}
	if extTxID == "" {
		extTxID = claim.OriginalTransactionID
	}

	startDate := record.PurchasedAt
	if startDate.IsZero() {
		startDate = now
	}

	orderID := record.OriginalTransactionID
	if orderID == "" {
		orderID = extTxID
	}

	notes := ""
	if claim.Environment != "" {
		notes = "environmentIOS=" + claim.Environment
	}

	grant := &models.Subscription{
		UserID:    user.ID,
		PlanID:    plan.ID,
		Platform:  models.PlatformAppleIAP,
		OrderID:   orderID,
		PaymentID: extTxID,
		// Raw receipt kept for audit/debug (can be large).
		Signature: claim.Receipt,
		StartDate: startDate,
		EndDate:   endDate,
		// The verification payload carries no price, so the internal plan
		// formula is reused for bookkeeping consistency.
		Amount:        plan.PayableAmount(),
		PaymentStatus: models.PaymentStatusSuccess,
		Notes:         notes,
	}
	return s.persistGrant(grant, user, plan)
}

func (s *Service) persistGrant(grant *models.Subscription, user *models.User, plan *models.Plan) (*models.Subscription, bool, error) {
	stored, created, err := s.ledger.InsertGrant(grant)
	if err != nil {
		return nil, false, err
	}

	if created && s.notifier != nil {
		// Fire-and-forget: notification failure must never fail the grant.
		go s.notifier.NotifyPurchase(stored.Platform, user, plan, stored)
	}
	return stored, created, nil
}

// ActiveGrant returns the user's current entitling grant, or nil. The
// answer is computed fresh from the ledger on every call; point-in-time
// evaluation at request time is all correctness needs.
func (s *Service) ActiveGrant(userID uint) (*models.Subscription, error) {
	grant, err := s.ledger.FindActiveGrant(userID, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return grant, nil
}

// HasActiveSubscription is the canonical premium-entitlement check.
func (s *Service) HasActiveSubscription(userID uint) (bool, error) {
	grant, err := s.ActiveGrant(userID)
	if err != nil {
		return false, err
	}
	return grant != nil, nil
}

func claimTransactionID(claim PurchaseClaim) string {
	switch c := claim.(type) {
	case GatewayClaim:
		return c.PaymentID
	case AppleIAPClaim:
		if c.TransactionID != "" {
			return c.TransactionID
		}
		return c.OriginalTransactionID
	default:
		return ""
	}
}
