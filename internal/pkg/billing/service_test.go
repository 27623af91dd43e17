package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/prepvidya/PrepVidya/app/models"
)

type fakeLedger struct {
	plans  map[uint]*models.Plan
	grants []models.Subscription
	nextID uint
}

func newFakeLedger(plans ...*models.Plan) *fakeLedger {
	l := &fakeLedger{plans: make(map[uint]*models.Plan), nextID: 1}
	for _, p := range plans {
		l.plans[p.ID] = p
	}
	return l
}

func (l *fakeLedger) FindPlan(id uint) (*models.Plan, error) {
	plan, ok := l.plans[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return plan, nil
}

func (l *fakeLedger) FindGrant(userID uint, rail Rail, externalTxID string) (*models.Subscription, error) {
	for i := range l.grants {
		g := &l.grants[i]
		if g.UserID == userID && g.Platform == string(rail) && g.PaymentID == externalTxID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (l *fakeLedger) InsertGrant(grant *models.Subscription) (*models.Subscription, bool, error) {
	if existing, err := l.FindGrant(grant.UserID, Rail(grant.Platform), grant.PaymentID); err == nil {
		return existing, false, nil
	}
	stored := *grant
	stored.ID = l.nextID
	l.nextID++
	l.grants = append(l.grants, stored)
	cp := stored
	return &cp, true, nil
}

func (l *fakeLedger) FindActiveGrant(userID uint, now time.Time) (*models.Subscription, error) {
	var best *models.Subscription
	for i := range l.grants {
		g := &l.grants[i]
		if g.UserID != userID || !g.IsActive(now) {
			continue
		}
		if best == nil || g.EndDate.After(best.EndDate) {
			best = g
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

type fakeVerifier struct {
	record *VerifiedPurchaseRecord
	err    error
	calls  int
}

func (v *fakeVerifier) VerifyForProduct(ctx context.Context, receipt, expectedProductID string) (*VerifiedPurchaseRecord, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return v.record, nil
}

type recordingNotifier struct {
	notified chan string
}

func (n *recordingNotifier) NotifyPurchase(platform string, user *models.User, plan *models.Plan, grant *models.Subscription) {
	n.notified <- platform
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(ledger Ledger, verifier ReceiptVerifier, notifier PurchaseNotifier) *Service {
	s := NewService(ledger, NewDefaultCatalog(), verifier, notifier, "test_key_secret")
	s.now = func() time.Time { return testNow }
	return s
}

func testPlan() *models.Plan {
	validUntil := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Plan{
		ID:             1,
		Name:           "NEET 2026",
		Amount:         1000,
		GSTRate:        18,
		ValidUntil:     &validUntil,
		AppleProductID: "neet_2026_plan",
	}
}

func testUser() *models.User {
	return &models.User{ID: 10, Name: "Asha", Email: "asha@example.com"}
}

func gatewayClaimFor(plan uint, orderID, paymentID string) GatewayClaim {
	return GatewayClaim{
		Plan:      plan,
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: signFor("test_key_secret", orderID, paymentID),
	}
}

func TestResolveGatewayClaim(t *testing.T) {
	ledger := newFakeLedger(testPlan())
	svc := newTestService(ledger, &fakeVerifier{}, nil)

	grant, created, err := svc.Resolve(context.Background(), testUser(), gatewayClaimFor(1, "order_O1", "pay_P1"))
	if err != nil {
		t.Fatalf("expected resolve to succeed, got %v", err)
	}
	if !created {
		t.Fatalf("expected a new grant")
	}

	if grant.Platform != models.PlatformGateway {
		t.Fatalf("unexpected platform %q", grant.Platform)
	}
	if grant.Amount != 1180 {
		t.Fatalf("expected amount 1180 (1000 + 18%% GST), got %d", grant.Amount)
	}
	if grant.OrderID != "order_O1" || grant.PaymentID != "pay_P1" {
		t.Fatalf("unexpected order/payment ids: %q %q", grant.OrderID, grant.PaymentID)
	}
	if !grant.StartDate.Equal(testNow) {
		t.Fatalf("expected start date %v, got %v", testNow, grant.StartDate)
	}
	if !grant.EndDate.Equal(time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end date %v", grant.EndDate)
	}
	if !grant.IsActive(testNow) {
		t.Fatalf("expected the stored grant to entitle")
	}
}

func TestResolveGatewayClaimIsIdempotent(t *testing.T) {
	ledger := newFakeLedger(testPlan())
	svc := newTestService(ledger, &fakeVerifier{}, nil)
	user := testUser()
	claim := gatewayClaimFor(1, "order_O1", "pay_P1")

	first, created, err := svc.Resolve(context.Background(), user, claim)
	if err != nil || !created {
		t.Fatalf("first resolve: created=%v err=%v", created, err)
	}

	second, created, err := svc.Resolve(context.Background(), user, claim)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if created {
		t.Fatalf("expected resubmission to reuse the existing grant")
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same grant row, got %d and %d", first.ID, second.ID)
	}
	if len(ledger.grants) != 1 {
		t.Fatalf("expected exactly one ledger row, got %d", len(ledger.grants))
	}
}

func TestResolveGatewayClaimRejectsBadSignature(t *testing.T) {
	ledger := newFakeLedger(testPlan())
	svc := newTestService(ledger, &fakeVerifier{}, nil)

	claim := gatewayClaimFor(1, "order_O1", "pay_P1")
	claim.Signature = signFor("wrong_secret", "order_O1", "pay_P1")

	_, _, err := svc.Resolve(context.Background(), testUser(), claim)
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if len(ledger.grants) != 0 {
		t.Fatalf("expected no ledger rows after rejection")
	}
}

func TestResolveGatewayClaimRejectsExpiredPlan(t *testing.T) {
	plan := testPlan()
	expired := testNow.Add(-time.Hour)
	plan.ValidUntil = &expired

	svc := newTestService(newFakeLedger(plan), &fakeVerifier{}, nil)
	_, _, err := svc.Resolve(context.Background(), testUser(), gatewayClaimFor(1, "order_O1", "pay_P1"))
	if !errors.Is(err, ErrPlanExpired) {
		t.Fatalf("expected ErrPlanExpired, got %v", err)
	}

	// A validity boundary exactly at the current instant is already lapsed.
	boundary := testNow
	plan.ValidUntil = &boundary
	svc = newTestService(newFakeLedger(plan), &fakeVerifier{}, nil)
	_, _, err = svc.Resolve(context.Background(), testUser(), gatewayClaimFor(1, "order_O1", "pay_P1"))
	if !errors.Is(err, ErrPlanExpired) {
		t.Fatalf("expected ErrPlanExpired at the boundary, got %v", err)
	}

	plan.ValidUntil = nil
	svc = newTestService(newFakeLedger(plan), &fakeVerifier{}, nil)
	_, _, err = svc.Resolve(context.Background(), testUser(), gatewayClaimFor(1, "order_O1", "pay_P1"))
	if !errors.Is(err, ErrPlanExpired) {
		t.Fatalf("expected ErrPlanExpired for open-ended plan, got %v", err)
	}
}

func TestResolveUnknownPlan(t *testing.T) {
	svc := newTestService(newFakeLedger(), &fakeVerifier{}, nil)

	_, _, err := svc.Resolve(context.Background(), testUser(), gatewayClaimFor(99, "order_O1", "pay_P1"))
	if !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestResolveAppleClaim(t *testing.T) {
	ledger := newFakeLedger(testPlan())
	expiry := testNow.Add(30 * 24 * time.Hour)
	verifier := &fakeVerifier{
		record: &VerifiedPurchaseRecord{
			ProductID:             "neet_2026_plan",
			TransactionID:         "tx-100",
			OriginalTransactionID: "tx-1",
			PurchasedAt:           testNow.Add(-time.Hour),
			ExpiresAt:             &expiry,
		},
	}
	svc := newTestService(ledger, verifier, nil)

	claim := AppleIAPClaim{Plan: 1, Receipt: "receipt-blob", Environment: "Production"}
	grant, created, err := svc.Resolve(context.Background(), testUser(), claim)
	if err != nil {
		t.Fatalf("expected resolve to succeed, got %v", err)
	}
	if !created {
		t.Fatalf("expected a new grant")
	}

	if grant.Platform != models.PlatformAppleIAP {
		t.Fatalf("unexpected platform %q", grant.Platform)
	}
	if grant.PaymentID != "tx-100" {
		t.Fatalf("expected receipt transaction id as payment id, got %q", grant.PaymentID)
	}
	if grant.OrderID != "tx-1" {
		t.Fatalf("expected original transaction id as order id, got %q", grant.OrderID)
	}
	if !grant.EndDate.Equal(expiry) {
		t.Fatalf("expected receipt expiry as end date, got %v", grant.EndDate)
	}
	if grant.Amount != 1180 {
		t.Fatalf("expected plan formula amount 1180, got %d", grant.Amount)
	}
	if grant.Notes != "environmentIOS=Production" {
		t.Fatalf("unexpected notes %q", grant.Notes)
	}
	if grant.Signature != "receipt-blob" {
		t.Fatalf("expected raw receipt to be retained")
	}
}

func TestResolveAppleClaimClientIDsSkipVerification(t *testing.T) {
	ledger := newFakeLedger(testPlan())
	expiry := testNow.Add(30 * 24 * time.Hour)
	verifier := &fakeVerifier{
		record: &VerifiedPurchaseRecord{
			ProductID:     "neet_2026_plan",
			TransactionID: "tx-100",
			ExpiresAt:     &expiry,
		},
	}
	svc := newTestService(ledger, verifier, nil)
	user := testUser()

	claim := AppleIAPClaim{Plan: 1, Receipt: "receipt-blob", TransactionID: "tx-100"}
	if _, created, err := svc.Resolve(context.Background(), user, claim); err != nil || !created {
		t.Fatalf("first resolve: created=%v err=%v", created, err)
	}
	if verifier.calls != 1 {
		t.Fatalf("expected one verification call, got %d", verifier.calls)
	}

	// The resubmission carries the known transaction id, so the ledger
	// answers before any verification round trip.
	_, created, err := svc.Resolve(context.Background(), user, claim)
	if err != nil || created {
		t.Fatalf("second resolve: created=%v err=%v", created, err)
	}
	if verifier.calls != 1 {
		t.Fatalf("expected no second verification call, got %d", verifier.calls)
	}
}

func TestResolveAppleClaimRejectsLapsedSubscription(t *testing.T) {
	cases := []struct {
		name      string
		expiresAt *time.Time
	}{
		{"no expiry", nil},
		{"expired", timePtr(testNow.Add(-time.Minute))},
		{"boundary", timePtr(testNow)},
	}

	for _, tc := range cases {
		verifier := &fakeVerifier{
			record: &VerifiedPurchaseRecord{
				ProductID:     "neet_2026_plan",
				TransactionID: "tx-100",
				ExpiresAt:     tc.expiresAt,
			},
		}
		svc := newTestService(newFakeLedger(testPlan()), verifier, nil)

		_, _, err := svc.Resolve(context.Background(), testUser(), AppleIAPClaim{Plan: 1, Receipt: "r"})
		if !errors.Is(err, ErrSubscriptionNotActive) {
			t.Fatalf("%s: expected ErrSubscriptionNotActive, got %v", tc.name, err)
		}
	}

	// One millisecond of remaining validity still entitles.
	verifier := &fakeVerifier{
		record: &VerifiedPurchaseRecord{
			ProductID:     "neet_2026_plan",
			TransactionID: "tx-100",
			ExpiresAt:     timePtr(testNow.Add(time.Millisecond)),
		},
	}
	svc := newTestService(newFakeLedger(testPlan()), verifier, nil)
	if _, _, err := svc.Resolve(context.Background(), testUser(), AppleIAPClaim{Plan: 1, Receipt: "r"}); err != nil {
		t.Fatalf("expected grant just before expiry, got %v", err)
	}
}

func TestResolveAppleClaimProductMismatch(t *testing.T) {
	verifier := &fakeVerifier{err: ErrProductMismatch}
	svc := newTestService(newFakeLedger(testPlan()), verifier, nil)

	_, _, err := svc.Resolve(context.Background(), testUser(), AppleIAPClaim{Plan: 1, Receipt: "r"})
	if !errors.Is(err, ErrProductMismatch) {
		t.Fatalf("expected ErrProductMismatch, got %v", err)
	}
}

func TestResolveAppleClaimContradictingProductHint(t *testing.T) {
	verifier := &fakeVerifier{}
	svc := newTestService(newFakeLedger(testPlan()), verifier, nil)

	claim := AppleIAPClaim{Plan: 1, Receipt: "r", ProductID: "other_product"}
	_, _, err := svc.Resolve(context.Background(), testUser(), claim)
	if !errors.Is(err, ErrProductMismatch) {
		t.Fatalf("expected ErrProductMismatch, got %v", err)
	}
	if verifier.calls != 0 {
		t.Fatalf("expected no verification call for a contradicting hint")
	}
}

func TestResolveAppleClaimPlanNotConfigured(t *testing.T) {
	plan := testPlan()
	plan.Name = "JEE 2027"
	plan.AppleProductID = ""
	verifier := &fakeVerifier{}
	svc := newTestService(newFakeLedger(plan), verifier, nil)

	_, _, err := svc.Resolve(context.Background(), testUser(), AppleIAPClaim{Plan: 1, Receipt: "r"})
	if !errors.Is(err, ErrPlanNotConfiguredForRail) {
		t.Fatalf("expected ErrPlanNotConfiguredForRail, got %v", err)
	}
	if verifier.calls != 0 {
		t.Fatalf("expected no verification call for an unmapped plan")
	}
}

func TestResolveNotifiesOnNewGrantOnly(t *testing.T) {
	ledger := newFakeLedger(testPlan())
	notifier := &recordingNotifier{notified: make(chan string, 2)}
	svc := newTestService(ledger, &fakeVerifier{}, notifier)
	user := testUser()
	claim := gatewayClaimFor(1, "order_O1", "pay_P1")

	if _, _, err := svc.Resolve(context.Background(), user, claim); err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	select {
	case platform := <-notifier.notified:
		if platform != models.PlatformGateway {
			t.Fatalf("unexpected platform %q", platform)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a purchase notification")
	}

	if _, _, err := svc.Resolve(context.Background(), user, claim); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	select {
	case <-notifier.notified:
		t.Fatalf("duplicate submission must not notify")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestActiveGrant(t *testing.T) {
	ledger := newFakeLedger(testPlan())
	svc := newTestService(ledger, &fakeVerifier{}, nil)
	user := testUser()

	active, err := svc.HasActiveSubscription(user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active {
		t.Fatalf("expected no entitlement before any grant")
	}

	if _, _, err := svc.Resolve(context.Background(), user, gatewayClaimFor(1, "order_O1", "pay_P1")); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	grant, err := svc.ActiveGrant(user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if grant == nil {
		t.Fatalf("expected an active grant")
	}

	// A different user is untouched.
	active, err = svc.HasActiveSubscription(999)
	if err != nil || active {
		t.Fatalf("expected no entitlement for another user, active=%v err=%v", active, err)
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
